package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"driver-controls/internal/config"
	"driver-controls/internal/core"
	"driver-controls/internal/hardware"
	"driver-controls/internal/logger"
	"driver-controls/internal/messaging"
	"driver-controls/internal/metrics"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the driver controls service",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}

		if cmd.Flags().Changed("log") {
			cfg.Log.Level, _ = cmd.Flags().GetString("log")
		}
		if cmd.Flags().Changed("metrics-listen") {
			cfg.Metrics.Listen, _ = cmd.Flags().GetString("metrics-listen")
		}
		if cmd.Flags().Changed("redis-host") {
			cfg.Redis.Host, _ = cmd.Flags().GetString("redis-host")
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		return run(cfg)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("log", "", "Log level (none, error, warn, info, debug or 0-4)")
	runCmd.Flags().String("metrics-listen", "", "Metrics HTTP address, empty to disable")
	runCmd.Flags().String("redis-host", "", "Redis host")
}

func newLogger(level logger.LogLevel) *logger.Logger {
	var stdLogger *log.Logger
	if os.Getenv("INVOCATION_ID") != "" {
		// Running under systemd, use minimal format
		stdLogger = log.New(os.Stdout, "", 0)
	} else {
		stdLogger = log.New(os.Stdout, "", log.LstdFlags|log.Lmicroseconds|log.Lmsgprefix)
	}
	return logger.NewLogger(stdLogger, level)
}

func run(cfg *config.Config) error {
	l := newLogger(cfg.LogLevel())
	l.Infof("Starting driver controls (instance %s, log level %s)...", cfg.InstanceID, cfg.LogLevel())

	hw, err := cfg.Hardware()
	if err != nil {
		return err
	}
	io := hardware.NewLinuxHardwareIO(hw, l)

	redis := messaging.NewRedisClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.DB, l)
	redis.SetInstanceID(cfg.InstanceID)

	system, err := core.NewSystem(cfg, io, redis, l)
	if err != nil {
		return err
	}
	if err := system.Start(context.Background()); err != nil {
		system.Shutdown()
		return fmt.Errorf("failed to start system: %w", err)
	}

	var srv *metrics.Server
	if cfg.Metrics.Listen != "" {
		srv = metrics.NewServer(cfg.Metrics.Listen, metrics.NewRouter(system.Metrics(), system), l)
		srv.Start()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	l.Infof("Received signal %v, shutting down...", sig)

	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			l.Warnf("Metrics server shutdown: %v", err)
		}
	}
	system.Shutdown()
	return nil
}

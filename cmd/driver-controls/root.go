package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "driver-controls",
	Short: "Driver controls state machines for the vehicle control unit",
	Long: `driver-controls turns pedal, switch and stalk inputs into drive, light and
power outputs. Every input is an event offered to a set of arbitrated state
machines; outputs are published to Redis.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the YAML configuration file")
}

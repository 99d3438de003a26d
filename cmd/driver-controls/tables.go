package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"driver-controls/internal/arbiter"
	"driver-controls/internal/controls"
)

var tablesCmd = &cobra.Command{
	Use:   "tables [machine...]",
	Short: "Print the transition tables of the control machines",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := arbiter.New(arbiter.DefaultCapacity)
		c, err := controls.Register(reg, controls.Deps{})
		if err != nil {
			return err
		}

		want := make(map[string]bool, len(args))
		for _, a := range args {
			want[a] = true
		}

		printed := 0
		for _, t := range c.Tables() {
			if len(want) > 0 && !want[t.Machine] {
				continue
			}
			fmt.Fprintln(cmd.OutOrStdout(), t)
			printed++
		}
		if printed == 0 {
			return fmt.Errorf("no such machine: %v (have %v)", args, reg.Machines())
		}
		return nil
	},
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List event names accepted on the Redis input list",
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range controls.EventNames() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
	},
}

func init() {
	rootCmd.AddCommand(tablesCmd)
	rootCmd.AddCommand(eventsCmd)
}

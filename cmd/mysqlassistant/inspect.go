package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [video|music|all]",
	Short: "Classify the library schemas on the target server",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logicals, err := logicalArgs(args)
		if err != nil {
			return err
		}
		s, err := newSession()
		if err != nil {
			return err
		}
		for _, l := range logicals {
			classes, err := s.Inspect(cmd.Context(), l, false)
			if err != nil {
				return err
			}
			for _, c := range classes {
				fmt.Fprintln(cmd.OutOrStdout(), c.String())
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"mysqlassistant/internal/storage"
)

var reportsCmd = &cobra.Command{
	Use:   "reports [id]",
	Short: "List stored migration reports or print one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if len(args) == 1 {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid report id: %w", err)
			}
			report, err := storage.LoadReport(cfg.Storage.Path, id)
			if err != nil {
				return err
			}
			b, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			return nil
		}

		manifests, err := storage.ListReports(cfg.Storage.Path)
		if err != nil {
			return err
		}
		if len(manifests) == 0 {
			fmt.Fprintln(out, "no reports")
			return nil
		}
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tLIBRARY\tTARGET\tSTARTED\t")
		for _, m := range manifests {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n", m.ID, m.LogicalDB, m.Target, m.StartedAt.Local().Format("2006-01-02 15:04:05"))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(reportsCmd)
}

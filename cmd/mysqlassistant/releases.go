package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"mysqlassistant/internal/registry"
)

var releasesCmd = &cobra.Command{
	Use:   "releases",
	Short: "List the supported media center releases and their schema versions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RELEASE\tVIDEO\tMUSIC\t")
		for _, r := range registry.Releases() {
			e, err := registry.Lookup(r)
			if err != nil {
				return err
			}
			mark := ""
			if r == cfg.Release {
				mark = "*"
			}
			fmt.Fprintf(w, "%d%s\tMyVideos%d\tMyMusic%d\t\n", e.Release, mark, e.Video, e.Music)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(releasesCmd)
}

package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"mysqlassistant/internal/assistant"
	"mysqlassistant/internal/model"
	"mysqlassistant/internal/settings"
)

var settingsOut string

var writeSettingsCmd = &cobra.Command{
	Use:   "write-settings [video|music|all]",
	Short: "Write advancedsettings.xml pointing the media center at the target",
	Long: `Inspects the target and writes advancedsettings.xml for every library
database it holds. The file contains the target password in clear text and
is written with owner-only permissions.`,
	Args: cobra.MaximumNArgs(1),
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
				if c.Status == model.StatusAbsent {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: no schema yet, the media center will create %s\n", l, c.SchemaName)
				}
			}
		}
		path := cfg.Settings.Path
		if settingsOut != "" {
			path = settingsOut
		}
		return writeSettings(s, path, cfg.Options(), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(writeSettingsCmd)
	writeSettingsCmd.Flags().StringVarP(&settingsOut, "out", "o", "", "output file (default is settings.path)")
}

func writeSettings(s *assistant.Session, path string, opts model.Options, out io.Writer) error {
	m, err := s.SettingsMapping()
	if err != nil {
		return err
	}
	if err := settings.Write(path, m, preferences(opts)); err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %s\n", path)
	return nil
}

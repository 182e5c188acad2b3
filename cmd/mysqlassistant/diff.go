package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mysqlassistant/internal/db"
	"mysqlassistant/internal/diff"
	"mysqlassistant/internal/inspect"
	"mysqlassistant/internal/model"
	"mysqlassistant/internal/source"
)

var diffSource string

var diffCmd = &cobra.Command{
	Use:   "diff <video|music>",
	Short: "Compare the local library tables with the target schema",
	Args:  cobra.ExactArgs(1),
	RunE:  runDiff,
}

func init() {
	rootCmd.AddCommand(diffCmd)
	diffCmd.Flags().StringVar(&diffSource, "source", "", "local library file (default is the newest one in source.dir)")
}

func runDiff(cmd *cobra.Command, args []string) error {
	logical, err := model.ParseLogicalDB(args[0])
	if err != nil {
		return err
	}
	path, err := sourcePath(diffSource, logical)
	if err != nil {
		return err
	}
	reader, err := source.Open(path)
	if err != nil {
		return err
	}
	defer reader.Close()
	inventories, err := reader.ListTables(cmd.Context())
	if err != nil {
		return err
	}

	if err := ensurePassword(); err != nil {
		return err
	}
	target, err := db.Connect(cmd.Context(), cfg.Profile(logical))
	if err != nil {
		return err
	}
	defer target.Close()
	insp := inspect.New(target, cfg.Release, logger)
	classes, err := insp.Inspect(cmd.Context(), logical)
	if err != nil {
		return err
	}
	primary, ok := inspect.Primary(classes)
	if !ok {
		return fmt.Errorf("no %s schema to compare with", logical)
	}
	fmt.Fprintln(cmd.OutOrStdout(), primary.String())
	catalog, err := insp.Catalog(cmd.Context(), primary)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), diff.Describe(diff.Compare(inventories, catalog.Schema)))
	return nil
}

// sourcePath prefers an explicit file, then the configured folder, then the
// media center's default profile folder.
func sourcePath(explicit string, logical model.LogicalDB) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	dir := cfg.Source.Dir
	if dir == "" {
		d, err := defaultSourceDir()
		if err != nil {
			return "", err
		}
		dir = d
	}
	return source.Locate(dir, logical)
}

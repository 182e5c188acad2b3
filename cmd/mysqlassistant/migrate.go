package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mysqlassistant/internal/assistant"
	"mysqlassistant/internal/inspect"
	"mysqlassistant/internal/model"
	"mysqlassistant/internal/settings"
	"mysqlassistant/internal/storage"
)

var migrateFlags struct {
	source        string
	approve       bool
	bootstrap     bool
	watched       bool
	resume        bool
	clean         bool
	batchSize     int
	writeSettings bool
}

var migrateCmd = &cobra.Command{
	Use:   "migrate <video|music|all>",
	Short: "Copy the local library into the target server",
	Long: `Copies every table the local library shares with the target schema. Rows
already on the target are kept; re-running a migration only adds what is
missing. The target schema must match the configured release; with
--bootstrap an absent schema is created so the media center can build its
tables on the next start.

Each run writes a report under storage.path.`,
	Args: cobra.ExactArgs(1),
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	f := migrateCmd.Flags()
	f.StringVar(&migrateFlags.source, "source", "", "local library file (video or music only)")
	f.BoolVar(&migrateFlags.approve, "approve", false, "do not ask for confirmation")
	f.BoolVar(&migrateFlags.bootstrap, "bootstrap", false, "create the schema when the target has none")
	f.BoolVar(&migrateFlags.watched, "watched", true, "copy watched state")
	f.BoolVar(&migrateFlags.resume, "resume", true, "copy resume points")
	f.BoolVar(&migrateFlags.clean, "clean", false, "empty the target tables before copying")
	f.IntVar(&migrateFlags.batchSize, "batch-size", 0, "rows per insert batch")
	f.BoolVar(&migrateFlags.writeSettings, "write-settings", false, "write advancedsettings.xml after a successful run")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	logicals, err := logicalArgs(args)
	if err != nil {
		return err
	}
	if migrateFlags.source != "" && len(logicals) > 1 {
		return errors.New("--source needs video or music, not all")
	}
	opts := cfg.Options()
	flags := cmd.Flags()
	if flags.Changed("watched") {
		opts.IncludeWatchedState = migrateFlags.watched
	}
	if flags.Changed("resume") {
		opts.IncludeResumePoints = migrateFlags.resume
	}
	if flags.Changed("clean") {
		opts.CleanLibraryFirst = migrateFlags.clean
	}
	bootstrap := cfg.Migration.Bootstrap || migrateFlags.bootstrap
	batch := cfg.Migration.BatchSize
	if migrateFlags.batchSize > 0 {
		batch = migrateFlags.batchSize
	}

	s, err := newSession()
	if err != nil {
		return err
	}
	if err := storage.EnsureBase(cfg.Storage.Path); err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	var failed error
	for _, logical := range logicals {
		path, err := sourcePath(migrateFlags.source, logical)
		if err != nil {
			return err
		}
		classes, err := s.Inspect(cmd.Context(), logical, false)
		if err != nil {
			return err
		}
		primary, _ := inspect.Primary(classes)
		fmt.Fprintf(out, "%s: %s -> %s on %s\n", logical, path, primary.String(), cfg.Profile(logical).String())
		if opts.CleanLibraryFirst {
			fmt.Fprintln(out, "existing rows in the target tables will be deleted first")
		}
		if !migrateFlags.approve {
			ok, err := promptYes(os.Stdin, out, "Type YES to proceed: ")
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(out, "aborted")
				return nil
			}
		}

		report, err := s.Migrate(cmd.Context(), assistant.MigrateRequest{
			LogicalDB:  logical,
			SourcePath: path,
			Options:    opts,
			Bootstrap:  bootstrap,
			BatchSize:  batch,
			OnOutcome: func(o model.MigrationOutcome) {
				fmt.Fprintf(out, "  %-24s %-16s inserted=%d skipped=%d failed=%d\n",
					o.Unit.Table, o.Kind(), o.RowsInserted, o.RowsSkippedAsDuplicate, o.RowsFailed)
			},
		})
		manifest, saveErr := storage.SaveReport(cfg.Storage.Path, report)
		if saveErr != nil {
			logger.WithError(saveErr).Error("save report")
		} else {
			fmt.Fprintf(out, "report %s saved\n", manifest.ID)
		}
		if report.Bootstrapped {
			fmt.Fprintf(out, "created %s; start the media center once so it builds the tables, then run migrate again\n", primary.SchemaName)
		}
		if err != nil {
			failed = errors.Join(failed, fmt.Errorf("%s: %w", logical, err))
			continue
		}
		fmt.Fprintf(out, "%s: %v\n", logical, report.Summary())
	}
	if failed != nil {
		return failed
	}

	if migrateFlags.writeSettings {
		return writeSettings(s, cfg.Settings.Path, opts, out)
	}
	return nil
}

func preferences(opts model.Options) *settings.Preferences {
	return &settings.Preferences{
		ImportWatchedState: opts.IncludeWatchedState,
		ImportResumePoints: opts.IncludeResumePoints,
	}
}

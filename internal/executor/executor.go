package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"mysqlassistant/internal/db"
	"mysqlassistant/internal/logging"
	"mysqlassistant/internal/model"
)

var ErrUnitNotOnTarget = errors.New("unit is not present on target")

const (
	DefaultBatchSize = 500
	// MaxRowErrors bounds the row errors kept per outcome; RowsFailed stays exact.
	MaxRowErrors = 20
)

// Source streams rows of a local table in primary key order.
type Source interface {
	StreamRows(ctx context.Context, table string, columns []string, fn func(row []any) error) error
}

type Executor struct {
	source    Source
	target    db.Target
	batchSize int
	logger    *logrus.Entry

	// OnOutcome, when set, is called after every finished unit.
	OnOutcome func(model.MigrationOutcome)
}

func New(source Source, target db.Target, batchSize int, logger *logrus.Entry) *Executor {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Executor{
		source:    source,
		target:    target,
		batchSize: batchSize,
		logger:    logging.Component(logger, "executor"),
	}
}

// Run executes units in order. Units flagged CleanFirst are emptied up
// front, last unit first, so dependent rows go before the rows they point
// at. ctx is only checked between units. Once it is done, units that were
// not emptied are left untouched, while emptied units still run so no table
// stays empty; Run then returns the outcomes together with ctx.Err().
func (e *Executor) Run(ctx context.Context, units []model.MigrationUnit) ([]model.MigrationOutcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	truncateErr := map[int]error{}
	emptied := map[int]bool{}
	work := context.WithoutCancel(ctx)
	for i := len(units) - 1; i >= 0; i-- {
		u := units[i]
		if !u.CleanFirst || !u.PresentOnTarget {
			continue
		}
		if err := e.target.Truncate(work, u.Schema, u.Table); err != nil {
			truncateErr[i] = fmt.Errorf("truncate: %w", err)
			continue
		}
		emptied[i] = true
	}

	var cancelled error
	outcomes := make([]model.MigrationOutcome, 0, len(units))
	for i, u := range units {
		if cancelled == nil && ctx.Err() != nil {
			cancelled = ctx.Err()
			e.logger.WithField("remaining", len(units)-i).Warn("migration cancelled")
		}
		if cancelled != nil && !emptied[i] {
			continue
		}
		var out model.MigrationOutcome
		if err, ok := truncateErr[i]; ok {
			out = model.MigrationOutcome{Unit: u, StartedAt: time.Now().UTC()}
			out.Fail(err)
			out.FinishedAt = out.StartedAt
			e.report(out)
		} else {
			out = e.execute(work, u, false)
		}
		outcomes = append(outcomes, out)
	}
	return outcomes, cancelled
}

// Execute copies a single unit, truncating the target table first when the
// unit asks for it.
func (e *Executor) Execute(ctx context.Context, unit model.MigrationUnit) model.MigrationOutcome {
	return e.execute(ctx, unit, unit.CleanFirst)
}

func (e *Executor) execute(ctx context.Context, unit model.MigrationUnit, truncate bool) (out model.MigrationOutcome) {
	out = model.MigrationOutcome{Unit: unit, StartedAt: time.Now().UTC()}
	defer func() {
		out.RowsFailed = out.RowsAttempted - out.RowsInserted - out.RowsSkippedAsDuplicate
		out.FinishedAt = time.Now().UTC()
		e.report(out)
	}()

	if !unit.PresentOnTarget {
		out.Fail(ErrUnitNotOnTarget)
		return out
	}
	if err := ctx.Err(); err != nil {
		out.Fail(err)
		return out
	}
	// a started table runs to its end
	work := context.WithoutCancel(ctx)

	if truncate {
		if err := e.target.Truncate(work, unit.Schema, unit.Table); err != nil {
			out.Fail(fmt.Errorf("truncate: %w", err))
			return out
		}
	}

	keyIdx := keyIndexes(unit)
	batch := make([][]any, 0, e.batchSize)
	var streamed int64

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		first := streamed - int64(len(batch))
		res, err := e.target.InsertIgnoringDuplicates(work, unit.Schema, unit.Table, unit.Columns, batch)
		out.RowsAttempted += int64(res.Processed)
		out.RowsInserted += int64(res.Inserted)
		out.RowsSkippedAsDuplicate += int64(res.Skipped)
		for _, f := range res.Failures {
			if len(out.RowErrors) >= MaxRowErrors {
				break
			}
			out.RowErrors = append(out.RowErrors, model.RowError{
				Row: first + int64(f.Index),
				Key: rowKey(batch[f.Index], keyIdx),
				Err: f.Err.Error(),
			})
		}
		batch = batch[:0]
		return err
	}

	err := e.source.StreamRows(work, unit.Table, unit.Columns, func(row []any) error {
		batch = append(batch, row)
		streamed++
		if len(batch) >= e.batchSize {
			return flush()
		}
		return nil
	})
	if err == nil {
		err = flush()
	}
	if err != nil {
		out.Fail(fmt.Errorf("copy %s.%s: %w", unit.Schema, unit.Table, err))
	}
	return out
}

func (e *Executor) report(out model.MigrationOutcome) {
	fields := logrus.Fields{
		"schema":                    out.Unit.Schema,
		"table":                     out.Unit.Table,
		"rows_attempted":            out.RowsAttempted,
		"rows_inserted":             out.RowsInserted,
		"rows_skipped_as_duplicate": out.RowsSkippedAsDuplicate,
		"rows_failed":               out.RowsFailed,
		"outcome":                   out.Kind(),
	}
	switch out.Kind() {
	case model.OutcomeAborted:
		e.logger.WithFields(fields).WithError(out.Err).Error("table aborted")
	case model.OutcomePartial, model.OutcomeAllRowsFailed:
		e.logger.WithFields(fields).Warn("table copied with row errors")
	default:
		e.logger.WithFields(fields).Info("table copied")
	}
	if e.OnOutcome != nil {
		e.OnOutcome(out)
	}
}

func keyIndexes(unit model.MigrationUnit) []int {
	var idx []int
	for _, k := range unit.PrimaryKey {
		for i, c := range unit.Columns {
			if c == k {
				idx = append(idx, i)
				break
			}
		}
	}
	return idx
}

func rowKey(row []any, idx []int) []any {
	if len(idx) == 0 {
		return nil
	}
	key := make([]any, len(idx))
	for i, j := range idx {
		key[i] = row[j]
	}
	return key
}

package model

import (
	"time"

	"github.com/google/uuid"
)

// Report is the caller-facing summary of one migration run. Target is the
// redacted profile string; credentials never appear in a report.
type Report struct {
	ID              uuid.UUID              `json:"id"`
	Release         int                    `json:"release"`
	LogicalDB       LogicalDB              `json:"logical_db"`
	Target          string                 `json:"target"`
	SourcePath      string                 `json:"source_path"`
	Options         Options                `json:"options"`
	Bootstrapped    bool                   `json:"bootstrapped,omitempty"`
	Classifications []SchemaClassification `json:"classifications"`
	Skipped         []SkippedTable         `json:"skipped,omitempty"`
	Outcomes        []MigrationOutcome     `json:"outcomes"`
	Error           string                 `json:"error,omitempty"`
	StartedAt       time.Time              `json:"started_at"`
	FinishedAt      time.Time              `json:"finished_at"`
}

// Summary counts tables per outcome kind; skipped tables are counted under
// their skip reason.
func (r Report) Summary() map[string]int {
	out := map[string]int{}
	for _, o := range r.Outcomes {
		out[string(o.Kind())]++
	}
	for _, s := range r.Skipped {
		out["skipped_"+s.Reason]++
	}
	return out
}

// Succeeded reports whether every attempted table completed without errors.
func (r Report) Succeeded() bool {
	if r.Error != "" {
		return false
	}
	for _, o := range r.Outcomes {
		switch o.Kind() {
		case OutcomeComplete, OutcomeEmpty:
		default:
			return false
		}
	}
	return true
}

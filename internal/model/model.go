package model

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// LogicalDB names one of the two library domains kept in separate schemas.
type LogicalDB string

const (
	Video LogicalDB = "video"
	Music LogicalDB = "music"
)

// LogicalDBs lists every logical database in the order they are configured.
var LogicalDBs = []LogicalDB{Video, Music}

// Prefix is the schema naming prefix; schemas are named prefix + version.
func (l LogicalDB) Prefix() string {
	switch l {
	case Video:
		return "MyVideos"
	case Music:
		return "MyMusic"
	default:
		return ""
	}
}

func ParseLogicalDB(s string) (LogicalDB, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "video", "videos":
		return Video, nil
	case "music":
		return Music, nil
	default:
		return "", fmt.Errorf("unknown logical database %q (want video or music)", s)
	}
}

// ConnectionProfile is supplied by the caller and passed by value.
type ConnectionProfile struct {
	Provider  string
	Host      string
	Port      int
	Username  string
	Password  string
	LogicalDB LogicalDB
	// Database is the postgres database holding the library schemas.
	Database string
}

func (p ConnectionProfile) Address() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// String never includes the password.
func (p ConnectionProfile) String() string {
	if p.Username == "" {
		return p.Address()
	}
	return p.Username + "@" + p.Address()
}

// Status is the outcome of comparing a found schema version with the expected one.
type Status string

const (
	StatusAbsent           Status = "ABSENT"
	StatusCurrent          Status = "CURRENT"
	StatusOutdated         Status = "OUTDATED"
	StatusNewerUnsupported Status = "NEWER_UNSUPPORTED"
)

type SchemaClassification struct {
	LogicalDB       LogicalDB `json:"logical_db"`
	SchemaName      string    `json:"schema_name"`
	FoundVersion    *int      `json:"found_version,omitempty"`
	ExpectedVersion int       `json:"expected_version"`
	Status          Status    `json:"status"`
}

// Validate checks that FoundVersion is set exactly when the status needs it.
func (c SchemaClassification) Validate() error {
	switch c.Status {
	case StatusAbsent:
		if c.FoundVersion != nil {
			return fmt.Errorf("schema %s: ABSENT classification carries a version", c.SchemaName)
		}
	case StatusCurrent, StatusOutdated, StatusNewerUnsupported:
		if c.FoundVersion == nil {
			return fmt.Errorf("schema %s: %s classification without a version", c.SchemaName, c.Status)
		}
	default:
		return fmt.Errorf("schema %s: unknown status %q", c.SchemaName, c.Status)
	}
	return nil
}

func (c SchemaClassification) String() string {
	if c.FoundVersion == nil {
		return fmt.Sprintf("%s %s (expected %d)", c.SchemaName, c.Status, c.ExpectedVersion)
	}
	return fmt.Sprintf("%s %s (found %d, expected %d)", c.SchemaName, c.Status, *c.FoundVersion, c.ExpectedVersion)
}

// TableInventory describes one source table at migration start.
type TableInventory struct {
	Name       string   `json:"name"`
	RowCount   int64    `json:"row_count"`
	Columns    []string `json:"columns"`
	PrimaryKey []string `json:"primary_key,omitempty"`
}

// Options are the user's migration choices.
type Options struct {
	IncludeWatchedState bool `json:"include_watched_state"`
	IncludeResumePoints bool `json:"include_resume_points"`
	CleanLibraryFirst   bool `json:"clean_library_first"`
}

// MigrationUnit is one source table's filtered column set aimed at one target schema.
type MigrationUnit struct {
	LogicalDB       LogicalDB `json:"logical_db"`
	Schema          string    `json:"schema"`
	Table           string    `json:"table"`
	Columns         []string  `json:"columns"`
	PrimaryKey      []string  `json:"primary_key,omitempty"`
	DroppedColumns  []string  `json:"dropped_columns,omitempty"`
	PresentOnTarget bool      `json:"present_on_target"`
	CleanFirst      bool      `json:"clean_first"`
}

// SkippedTable is a source table the planner left out.
type SkippedTable struct {
	Table  string `json:"table"`
	Reason string `json:"reason"`
}

const (
	SkipAbsentOnTarget = "absent_on_target"
	SkipBookkeeping    = "bookkeeping"
	SkipNoColumns      = "no_shared_columns"
)

// RowError is a row that neither inserted nor matched an existing key. Row
// is the zero-based position in the source stream.
type RowError struct {
	Row int64  `json:"row"`
	Key []any  `json:"key,omitempty"`
	Err string `json:"error"`
}

type MigrationOutcome struct {
	Unit                   MigrationUnit `json:"unit"`
	RowsAttempted          int64         `json:"rows_attempted"`
	RowsInserted           int64         `json:"rows_inserted"`
	RowsSkippedAsDuplicate int64         `json:"rows_skipped_as_duplicate"`
	RowsFailed             int64         `json:"rows_failed"`
	RowErrors              []RowError    `json:"row_errors,omitempty"`
	Err                    error         `json:"-"`
	Error                  string        `json:"error,omitempty"`
	StartedAt              time.Time     `json:"started_at"`
	FinishedAt             time.Time     `json:"finished_at"`
}

// OutcomeKind separates the results a user needs to tell apart.
type OutcomeKind string

const (
	OutcomeComplete      OutcomeKind = "complete"
	OutcomePartial       OutcomeKind = "partial"
	OutcomeAllRowsFailed OutcomeKind = "all_rows_failed"
	OutcomeAborted       OutcomeKind = "aborted"
	OutcomeEmpty         OutcomeKind = "empty"
)

func (o MigrationOutcome) Kind() OutcomeKind {
	switch {
	case o.Err != nil || o.Error != "":
		return OutcomeAborted
	case o.RowsAttempted == 0:
		return OutcomeEmpty
	case o.RowsFailed == o.RowsAttempted:
		return OutcomeAllRowsFailed
	case o.RowsFailed > 0:
		return OutcomePartial
	default:
		return OutcomeComplete
	}
}

// Fail records a table-level error.
func (o *MigrationOutcome) Fail(err error) {
	o.Err = err
	if err != nil {
		o.Error = err.Error()
	}
}

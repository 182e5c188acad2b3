//go:generate go run go.uber.org/mock/mockgen -package mock -destination mock/mock.go mysqlassistant/internal/db Target
package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"mysqlassistant/internal/model"
)

// Target abstracts provider-specific behavior of the central library server.
type Target interface {
	Provider() string
	Close() error
	Ping(ctx context.Context) error
	ListSchemas(ctx context.Context, prefix string) ([]string, error)
	// ReadVersionMarker reports ok=false when the marker is missing or unreadable.
	ReadVersionMarker(ctx context.Context, schema string) (version int, ok bool, err error)
	CreateSchema(ctx context.Context, schema string) error
	FetchSchema(ctx context.Context, schema string) (Schema, error)
	// InsertIgnoringDuplicates inserts rows one by one, leaving rows whose key
	// already exists untouched. A returned error aborts the whole call.
	InsertIgnoringDuplicates(ctx context.Context, schema, table string, columns []string, rows [][]any) (InsertResult, error)
	Truncate(ctx context.Context, schema, table string) error
}

// ConnectionError is returned when the server cannot be reached or refuses
// the credentials. It never carries the password.
type ConnectionError struct {
	Provider string
	Address  string
	Reason   string
	Err      error
}

const (
	ReasonUnreachable = "unreachable"
	ReasonAuth        = "authentication failed"
	ReasonPrivilege   = "insufficient privilege"
	ReasonUnknown     = "connection failed"
)

func (e *ConnectionError) Error() string {
	if e.Address == "" {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s: %s: %v", e.Provider, e.Address, e.Reason, e.Err)
}

// AsConnectionError wraps err in a ConnectionError when it is a lost
// connection or a refused login or privilege. Other errors pass through.
func AsConnectionError(provider, address string, err error) error {
	if err == nil {
		return nil
	}
	var ce *ConnectionError
	if errors.As(err, &ce) {
		return err
	}
	reason := classifyConnectError(err)
	if reason == ReasonUnknown && !isConnectionLoss(err) {
		return err
	}
	return &ConnectionError{Provider: provider, Address: address, Reason: reason, Err: err}
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Connect opens a target for the profile and verifies it with a ping.
func Connect(ctx context.Context, profile model.ConnectionProfile) (Target, error) {
	var (
		target Target
		err    error
	)
	switch strings.ToLower(profile.Provider) {
	case "", "mysql", "mariadb":
		target, err = OpenMySQL(profile)
	case "postgres":
		target, err = OpenPostgres(profile)
	case "sqlite":
		target, err = OpenSQLite(profile.Host)
	default:
		return nil, fmt.Errorf("unsupported provider %s", profile.Provider)
	}
	if err != nil {
		return nil, &ConnectionError{Provider: providerName(profile), Address: profile.Address(), Reason: ReasonUnknown, Err: err}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := target.Ping(pingCtx); err != nil {
		target.Close()
		return nil, &ConnectionError{
			Provider: target.Provider(),
			Address:  profile.Address(),
			Reason:   classifyConnectError(err),
			Err:      err,
		}
	}
	return target, nil
}

func providerName(profile model.ConnectionProfile) string {
	if profile.Provider == "" {
		return "mysql"
	}
	return strings.ToLower(profile.Provider)
}

func classifyConnectError(err error) string {
	switch {
	case isAuthError(err):
		return ReasonAuth
	case isPrivilegeError(err):
		return ReasonPrivilege
	case isNetError(err):
		return ReasonUnreachable
	default:
		return ReasonUnknown
	}
}

func isNetError(err error) bool {
	var netErr net.Error
	var opErr *net.OpError
	return errors.As(err, &netErr) || errors.As(err, &opErr)
}

// isConnectionLoss reports errors after which no further statement on the
// same handle can be trusted.
func isConnectionLoss(err error) bool {
	return errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		isNetError(err)
}

// insertRows executes query once per row. Errors accepted by fatal abort
// the call; everything else is recorded against the row.
func insertRows(ctx context.Context, conn *sql.DB, query string, rows [][]any, fatal func(error) bool) (InsertResult, error) {
	var res InsertResult
	if len(rows) == 0 {
		return res, nil
	}
	stmt, err := conn.PrepareContext(ctx, query)
	if err != nil {
		return res, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, row := range rows {
		res.Processed++
		r, err := stmt.ExecContext(ctx, row...)
		if err != nil {
			if fatal(err) {
				return res, err
			}
			res.Failures = append(res.Failures, RowFailure{Index: i, Err: err})
			continue
		}
		n, err := r.RowsAffected()
		if err != nil {
			return res, fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			res.Skipped++
		} else {
			res.Inserted++
		}
	}
	return res, nil
}

func placeholders(n int, format func(i int) string) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = format(i)
	}
	return strings.Join(parts, ", ")
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteIdents(names []string, quote func(string) string) string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = quote(n)
	}
	return strings.Join(out, ", ")
}

func escapeLike(prefix string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix)
}

// scanMarker reads a version marker row. Anything other than a lost
// connection counts as an unreadable marker.
func scanMarker(row *sql.Row) (int, bool, error) {
	var v sql.NullInt64
	if err := row.Scan(&v); err != nil {
		if isConnectionLoss(err) {
			return 0, false, err
		}
		return 0, false, nil
	}
	if !v.Valid || v.Int64 < 0 {
		return 0, false, nil
	}
	return int(v.Int64), true, nil
}

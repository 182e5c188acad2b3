package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"mysqlassistant/internal/db"
	"mysqlassistant/internal/model"
)

var ErrNoLibrary = errors.New("no library database found")

// Reader reads a local library file. It never writes to it.
type Reader struct {
	path string
	db   *sql.DB
}

// Locate returns the library file for logical with the highest version suffix.
func Locate(dir string, logical model.LogicalDB) (string, error) {
	prefix := logical.Prefix()
	if prefix == "" {
		return "", fmt.Errorf("unknown logical database %q", logical)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", dir, err)
	}
	pattern := regexp.MustCompile(`^` + prefix + `(\d+)\.db$`)
	best, bestVersion := "", -1
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := pattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		v, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if v > bestVersion {
			best, bestVersion = e.Name(), v
		}
	}
	if best == "" {
		return "", fmt.Errorf("%w: %s*.db in %s", ErrNoLibrary, prefix, dir)
	}
	return filepath.Join(dir, best), nil
}

func Open(path string) (*Reader, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("open library: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("open library: %s is a directory", path)
	}
	conn, err := db.OpenSQLiteFile(path, true)
	if err != nil {
		return nil, fmt.Errorf("open library: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("open library: %w", err)
	}
	return &Reader{path: path, db: conn}, nil
}

func (r *Reader) Path() string { return r.path }

func (r *Reader) Close() error { return r.db.Close() }

// ListTables inventories every user table with its row count, columns and key.
func (r *Reader) ListTables(ctx context.Context) ([]model.TableInventory, error) {
	names, err := db.SQLiteTables(ctx, r.db)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	out := make([]model.TableInventory, 0, len(names))
	for _, name := range names {
		cols, pk, err := db.SQLiteColumns(ctx, r.db, name)
		if err != nil {
			return nil, fmt.Errorf("columns of %s: %w", name, err)
		}
		var count int64
		if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quote(name)).Scan(&count); err != nil {
			return nil, fmt.Errorf("count %s: %w", name, err)
		}
		inv := model.TableInventory{Name: name, RowCount: count, PrimaryKey: pk}
		for _, c := range cols {
			inv.Columns = append(inv.Columns, c.Name)
		}
		out = append(out, inv)
	}
	return out, nil
}

// StreamRows calls fn for every row of table projected onto columns, in
// primary key order (rowid when the table has no declared key). An error
// from fn stops the stream and is returned as is. Calling it again starts
// over from the first row.
func (r *Reader) StreamRows(ctx context.Context, table string, columns []string, fn func(row []any) error) error {
	if len(columns) == 0 {
		return fmt.Errorf("stream %s: no columns", table)
	}
	_, pk, err := db.SQLiteColumns(ctx, r.db, table)
	if err != nil {
		return fmt.Errorf("stream %s: %w", table, err)
	}
	order := "rowid"
	if len(pk) > 0 {
		order = quoteAll(pk)
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s", quoteAll(columns), quote(table), order)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("stream %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("stream %s: %w", table, err)
		}
		if err := fn(values); err != nil {
			return err
		}
	}
	return rows.Err()
}

func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteAll(names []string) string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = quote(n)
	}
	return strings.Join(out, ", ")
}

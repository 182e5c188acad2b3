package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteTarget stores every schema as <dir>/<schema>.db. It serves offline
// consolidation into a shared folder.
type SQLiteTarget struct {
	dir string

	mu  sync.Mutex
	dbs map[string]*sql.DB
}

var errSchemaMissing = errors.New("schema does not exist")

func OpenSQLite(dir string) (*SQLiteTarget, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("sqlite target needs a directory")
	}
	return &SQLiteTarget{dir: dir, dbs: map[string]*sql.DB{}}, nil
}

// OpenSQLiteFile opens a single library file; it is shared with the source reader.
func OpenSQLiteFile(path string, readOnly bool) (*sql.DB, error) {
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if readOnly {
		dsn += "&mode=ro"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

func (s *SQLiteTarget) Provider() string { return "sqlite" }

func (s *SQLiteTarget) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for name, db := range s.dbs {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	s.dbs = map[string]*sql.DB{}
	return errors.Join(errs...)
}

func (s *SQLiteTarget) Ping(ctx context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", s.dir)
	}
	return nil
}

func (s *SQLiteTarget) handle(ctx context.Context, schema string, create bool) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if db, ok := s.dbs[schema]; ok {
		return db, nil
	}
	path := filepath.Join(s.dir, schema+".db")
	if !create {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: %s", errSchemaMissing, schema)
		}
	}
	db, err := OpenSQLiteFile(path, false)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	s.dbs[schema] = db
	return db, nil
}

func (s *SQLiteTarget) ListSchemas(ctx context.Context, prefix string) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".db") || !strings.HasPrefix(name, prefix) {
			continue
		}
		out = append(out, strings.TrimSuffix(name, ".db"))
	}
	sort.Strings(out)
	return out, nil
}

func (s *SQLiteTarget) ReadVersionMarker(ctx context.Context, schema string) (int, bool, error) {
	db, err := s.handle(ctx, schema, false)
	if err != nil {
		if errors.Is(err, errSchemaMissing) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return scanMarker(db.QueryRowContext(ctx, `SELECT idVersion FROM version LIMIT 1`))
}

func (s *SQLiteTarget) CreateSchema(ctx context.Context, schema string) error {
	_, err := s.handle(ctx, schema, true)
	return err
}

func (s *SQLiteTarget) FetchSchema(ctx context.Context, schema string) (Schema, error) {
	result := Schema{Name: schema, Tables: map[string]Table{}}
	db, err := s.handle(ctx, schema, false)
	if err != nil {
		return result, err
	}
	names, err := SQLiteTables(ctx, db)
	if err != nil {
		return result, err
	}
	for _, name := range names {
		result.Tables[name] = newTable(name)
		cols, pk, err := SQLiteColumns(ctx, db, name)
		if err != nil {
			return result, err
		}
		for _, c := range cols {
			result.addColumn(name, c)
		}
		for _, k := range pk {
			result.addPrimaryKey(name, k)
		}
	}
	return result, nil
}

func (s *SQLiteTarget) InsertIgnoringDuplicates(ctx context.Context, schema, table string, columns []string, rows [][]any) (InsertResult, error) {
	if len(columns) == 0 {
		return InsertResult{}, errors.New("no columns to insert")
	}
	db, err := s.handle(ctx, schema, false)
	if err != nil {
		return InsertResult{}, err
	}
	// ON CONFLICT only absorbs key conflicts; OR IGNORE would also hide
	// NOT NULL and CHECK violations.
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT DO NOTHING",
		quoteIdent(table),
		quoteIdents(columns, quoteIdent),
		placeholders(len(columns), func(int) string { return "?" }))
	return insertRows(ctx, db, stmt, rows, isSQLiteFatal)
}

func (s *SQLiteTarget) Truncate(ctx context.Context, schema, table string) error {
	db, err := s.handle(ctx, schema, false)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, "DELETE FROM "+quoteIdent(table))
	return err
}

func isSQLiteFatal(err error) bool {
	if isConnectionLoss(err) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "no such table") ||
		strings.Contains(msg, "has no column named") ||
		strings.Contains(msg, "database is locked")
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// SQLiteTables lists user tables, leaving out sqlite's internal ones.
func SQLiteTables(ctx context.Context, q queryer) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
SELECT name FROM sqlite_master
WHERE type='table' AND name NOT LIKE 'sqlite\_%' ESCAPE '\'
ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// SQLiteColumns returns the columns of table in declaration order and its
// primary key in key order.
func SQLiteColumns(ctx context.Context, q queryer, table string) ([]Column, []string, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table)))
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	type keyPart struct {
		name string
		pos  int
	}
	var (
		cols []Column
		keys []keyPart
	)
	for rows.Next() {
		var (
			cid, notNull, pk int
			name, dataType   string
			def              sql.NullString
		)
		if err := rows.Scan(&cid, &name, &dataType, &notNull, &def, &pk); err != nil {
			return nil, nil, err
		}
		cols = append(cols, Column{Name: name, DataType: dataType, IsNullable: notNull == 0, DefaultValue: def})
		if pk > 0 {
			keys = append(keys, keyPart{name: name, pos: pk})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].pos < keys[j].pos })
	pk := make([]string, 0, len(keys))
	for _, k := range keys {
		pk = append(pk, k.name)
	}
	return cols, pk, nil
}

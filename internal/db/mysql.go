package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"mysqlassistant/internal/model"
)

// MySQLTarget talks to a MySQL or MariaDB server; schemas are databases.
type MySQLTarget struct {
	db *sql.DB
}

// OpenMySQL builds a server-level handle; no default database is selected.
func OpenMySQL(profile model.ConnectionProfile) (*MySQLTarget, error) {
	cfg := mysql.NewConfig()
	cfg.User = profile.Username
	cfg.Passwd = profile.Password
	cfg.Net = "tcp"
	cfg.Addr = profile.Address()
	cfg.AllowNativePasswords = true
	cfg.Collation = "utf8mb4_unicode_ci"
	cfg.Timeout = 10 * time.Second

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, err
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetMaxOpenConns(2)
	return &MySQLTarget{db: db}, nil
}

func (m *MySQLTarget) Provider() string { return "mysql" }

func (m *MySQLTarget) Close() error { return m.db.Close() }

func (m *MySQLTarget) Ping(ctx context.Context) error { return m.db.PingContext(ctx) }

func (m *MySQLTarget) ListSchemas(ctx context.Context, prefix string) ([]string, error) {
	rows, err := m.db.QueryContext(ctx, `
SELECT schema_name
FROM information_schema.schemata
WHERE schema_name LIKE ?
ORDER BY schema_name`, escapeLike(prefix)+"%")
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

func (m *MySQLTarget) ReadVersionMarker(ctx context.Context, schema string) (int, bool, error) {
	stmt := fmt.Sprintf("SELECT idVersion FROM %s.`version` LIMIT 1", mysqlIdent(schema))
	return scanMarker(m.db.QueryRowContext(ctx, stmt))
}

func (m *MySQLTarget) CreateSchema(ctx context.Context, schema string) error {
	stmt := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci", mysqlIdent(schema))
	_, err := m.db.ExecContext(ctx, stmt)
	return err
}

func (m *MySQLTarget) FetchSchema(ctx context.Context, schema string) (Schema, error) {
	result := Schema{Name: schema, Tables: map[string]Table{}}

	tablesRows, err := m.db.QueryContext(ctx, `
SELECT table_name
FROM information_schema.tables
WHERE table_schema=? AND table_type='BASE TABLE'`, schema)
	if err != nil {
		return result, err
	}
	defer tablesRows.Close()

	for tablesRows.Next() {
		var name string
		if err := tablesRows.Scan(&name); err != nil {
			return result, err
		}
		result.Tables[name] = newTable(name)
	}
	if err := tablesRows.Err(); err != nil {
		return result, err
	}

	colsRows, err := m.db.QueryContext(ctx, `
SELECT table_name, column_name, column_type, is_nullable, column_default
FROM information_schema.columns
WHERE table_schema=?
ORDER BY table_name, ordinal_position`, schema)
	if err != nil {
		return result, err
	}
	defer colsRows.Close()

	for colsRows.Next() {
		var tbl, col, dataType, nullable string
		var def sql.NullString
		if err := colsRows.Scan(&tbl, &col, &dataType, &nullable, &def); err != nil {
			return result, err
		}
		result.addColumn(tbl, Column{
			Name:         col,
			DataType:     dataType,
			IsNullable:   strings.EqualFold(nullable, "YES"),
			DefaultValue: def,
		})
	}
	if err := colsRows.Err(); err != nil {
		return result, err
	}

	pkRows, err := m.db.QueryContext(ctx, `
SELECT tc.table_name, kcu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
 ON tc.constraint_name = kcu.constraint_name
 AND tc.table_schema = kcu.table_schema
 AND tc.table_name = kcu.table_name
WHERE tc.table_schema=? AND tc.constraint_type='PRIMARY KEY'
ORDER BY kcu.ordinal_position`, schema)
	if err != nil {
		return result, err
	}
	defer pkRows.Close()

	for pkRows.Next() {
		var tbl, col string
		if err := pkRows.Scan(&tbl, &col); err != nil {
			return result, err
		}
		result.addPrimaryKey(tbl, col)
	}
	return result, pkRows.Err()
}

// InsertIgnoringDuplicates uses ON DUPLICATE KEY UPDATE with a self
// assignment: an existing row is left as is and reports zero affected rows.
// INSERT IGNORE would also swallow foreign key violations.
func (m *MySQLTarget) InsertIgnoringDuplicates(ctx context.Context, schema, table string, columns []string, rows [][]any) (InsertResult, error) {
	if len(columns) == 0 {
		return InsertResult{}, errors.New("no columns to insert")
	}
	first := mysqlIdent(columns[0])
	stmt := fmt.Sprintf("INSERT INTO %s.%s (%s) VALUES (%s) ON DUPLICATE KEY UPDATE %s=%s",
		mysqlIdent(schema), mysqlIdent(table),
		quoteIdents(columns, mysqlIdent),
		placeholders(len(columns), func(int) string { return "?" }),
		first, first)
	return insertRows(ctx, m.db, stmt, rows, isMySQLFatal)
}

func (m *MySQLTarget) Truncate(ctx context.Context, schema, table string) error {
	_, err := m.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s.%s", mysqlIdent(schema), mysqlIdent(table)))
	return err
}

func mysqlIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func isMySQLFatal(err error) bool {
	if errors.Is(err, mysql.ErrInvalidConn) || isConnectionLoss(err) {
		return true
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case 1146, 1054, 1049, 1142:
			// missing table, unknown column, unknown database, denied
			return true
		}
	}
	return false
}

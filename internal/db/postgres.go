package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"mysqlassistant/internal/model"
)

// PostgresTarget keeps each library schema as a schema inside one database.
type PostgresTarget struct {
	db *sql.DB
}

func OpenPostgres(profile model.ConnectionProfile) (*PostgresTarget, error) {
	db, err := sql.Open("pgx", postgresDSN(profile))
	if err != nil {
		return nil, err
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetMaxOpenConns(2)
	return &PostgresTarget{db: db}, nil
}

func postgresDSN(profile model.ConnectionProfile) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(profile.Username, profile.Password),
		Host:     profile.Address(),
		Path:     "/" + profile.Database,
		RawQuery: url.Values{"sslmode": {"disable"}, "connect_timeout": {"10"}}.Encode(),
	}
	return u.String()
}

func (p *PostgresTarget) Provider() string { return "postgres" }

func (p *PostgresTarget) Close() error { return p.db.Close() }

func (p *PostgresTarget) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *PostgresTarget) ListSchemas(ctx context.Context, prefix string) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `
SELECT schema_name
FROM information_schema.schemata
WHERE schema_name LIKE $1
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

func (p *PostgresTarget) ReadVersionMarker(ctx context.Context, schema string) (int, bool, error) {
	stmt := fmt.Sprintf(`SELECT "idVersion" FROM %s."version" LIMIT 1`, quoteIdent(schema))
	return scanMarker(p.db.QueryRowContext(ctx, stmt))
}

func (p *PostgresTarget) CreateSchema(ctx context.Context, schema string) error {
	_, err := p.db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+quoteIdent(schema))
	return err
}

func (p *PostgresTarget) FetchSchema(ctx context.Context, schema string) (Schema, error) {
	result := Schema{Name: schema, Tables: map[string]Table{}}

	tablesRows, err := p.db.QueryContext(ctx, `
SELECT table_name
FROM information_schema.tables
WHERE table_schema=$1 AND table_type='BASE TABLE'`, schema)
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

	colsRows, err := p.db.QueryContext(ctx, `
SELECT table_name, column_name, data_type, is_nullable, column_default
FROM information_schema.columns
WHERE table_schema=$1
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

	pkRows, err := p.db.QueryContext(ctx, `
SELECT tc.table_name, kcu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON tc.constraint_name = kcu.constraint_name
 AND tc.table_schema = kcu.table_schema
 AND tc.table_name = kcu.table_name
WHERE tc.table_schema=$1 AND tc.constraint_type='PRIMARY KEY'
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

func (p *PostgresTarget) InsertIgnoringDuplicates(ctx context.Context, schema, table string, columns []string, rows [][]any) (InsertResult, error) {
	if len(columns) == 0 {
		return InsertResult{}, errors.New("no columns to insert")
	}
	stmt := fmt.Sprintf("INSERT INTO %s.%s (%s) VALUES (%s) ON CONFLICT DO NOTHING",
		quoteIdent(schema), quoteIdent(table),
		quoteIdents(columns, quoteIdent),
		placeholders(len(columns), func(i int) string { return fmt.Sprintf("$%d", i+1) }))
	return insertRows(ctx, p.db, stmt, rows, isPostgresFatal)
}

func (p *PostgresTarget) Truncate(ctx context.Context, schema, table string) error {
	_, err := p.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s.%s", quoteIdent(schema), quoteIdent(table)))
	return err
}

func isPostgresFatal(err error) bool {
	if isConnectionLoss(err) {
		return true
	}
	var pe *pgconn.PgError
	if errors.As(err, &pe) {
		switch pe.Code {
		case "42P01", "42703", "3F000", "42501":
			// undefined table, undefined column, invalid schema, denied
			return true
		}
		// connection exceptions
		return strings.HasPrefix(pe.Code, "08")
	}
	return false
}

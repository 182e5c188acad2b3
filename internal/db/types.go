package db

import (
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema holds the introspected structure of a library schema.
type Schema struct {
	Name   string
	Tables map[string]Table
}

// Table describes a table and its columns.
type Table struct {
	Name        string
	Columns     map[string]Column
	ColumnOrder []string
	PrimaryKey  []string
}

// Column describes a table column.
type Column struct {
	Name         string
	DataType     string
	IsNullable   bool
	DefaultValue sql.NullString
}

// HasTable reports whether the schema lists name.
func (s Schema) HasTable(name string) bool {
	_, ok := s.Tables[name]
	return ok
}

func (s Schema) addColumn(table string, col Column) {
	t, ok := s.Tables[table]
	if !ok {
		return
	}
	t.Columns[col.Name] = col
	t.ColumnOrder = append(t.ColumnOrder, col.Name)
	s.Tables[table] = t
}

func (s Schema) addPrimaryKey(table, col string) {
	t, ok := s.Tables[table]
	if !ok {
		return
	}
	t.PrimaryKey = append(t.PrimaryKey, col)
	s.Tables[table] = t
}

func newTable(name string) Table {
	return Table{Name: name, Columns: map[string]Column{}, PrimaryKey: []string{}}
}

// RowFailure is a row-level error; Index points into the rows passed in.
type RowFailure struct {
	Index int
	Err   error
}

// InsertResult counts the fate of each row handed to InsertIgnoringDuplicates.
type InsertResult struct {
	Processed int
	Inserted  int
	Skipped   int
	Failures  []RowFailure
}

func isAuthError(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1045
	}
	var pe *pgconn.PgError
	if errors.As(err, &pe) {
		return pe.Code == "28P01" || pe.Code == "28000"
	}
	return false
}

func isPrivilegeError(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case 1044, 1142, 1227:
			return true
		}
		return false
	}
	var pe *pgconn.PgError
	if errors.As(err, &pe) {
		return pe.Code == "42501"
	}
	return false
}

package db

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mysqlassistant/internal/model"
)

func newSQLiteTarget(t *testing.T) (*SQLiteTarget, string) {
	t.Helper()
	dir := t.TempDir()
	target, err := OpenSQLite(dir)
	require.NoError(t, err)
	t.Cleanup(func() { target.Close() })
	return target, dir
}

func execSchema(t *testing.T, dir, schema string, stmts ...string) {
	t.Helper()
	conn, err := OpenSQLiteFile(filepath.Join(dir, schema+".db"), false)
	require.NoError(t, err)
	defer conn.Close()
	for _, stmt := range stmts {
		_, err := conn.Exec(stmt)
		require.NoError(t, err, stmt)
	}
}

func TestSQLiteTargetSchemasAndMarker(t *testing.T) {
	ctx := context.Background()
	target, dir := newSQLiteTarget(t)

	require.NoError(t, target.CreateSchema(ctx, "MyVideos121"))
	require.NoError(t, target.CreateSchema(ctx, "MyMusic82"))
	execSchema(t, dir, "MyVideos119", `CREATE TABLE version (idVersion integer, iCompressCount integer)`, `INSERT INTO version VALUES (119, 0)`)

	schemas, err := target.ListSchemas(ctx, "MyVideos")
	require.NoError(t, err)
	assert.Equal(t, []string{"MyVideos119", "MyVideos121"}, schemas)

	v, ok, err := target.ReadVersionMarker(ctx, "MyVideos119")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 119, v)

	// no version table yet
	_, ok, err = target.ReadVersionMarker(ctx, "MyVideos121")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteTargetUnreadableMarker(t *testing.T) {
	ctx := context.Background()
	target, dir := newSQLiteTarget(t)
	execSchema(t, dir, "MyMusic82", `CREATE TABLE version (idVersion text)`, `INSERT INTO version VALUES ('eighty-two')`)

	_, ok, err := target.ReadVersionMarker(ctx, "MyMusic82")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteTargetFetchSchema(t *testing.T) {
	ctx := context.Background()
	target, dir := newSQLiteTarget(t)
	execSchema(t, dir, "MyVideos121",
		`CREATE TABLE path (idPath integer primary key, strPath text)`,
		`CREATE TABLE files (idFile integer primary key, idPath integer REFERENCES path(idPath), strFilename text, playCount integer, lastPlayed text)`,
	)

	schema, err := target.FetchSchema(ctx, "MyVideos121")
	require.NoError(t, err)
	require.True(t, schema.HasTable("files"))
	assert.False(t, schema.HasTable("movie"))
	files := schema.Tables["files"]
	assert.Equal(t, []string{"idFile", "idPath", "strFilename", "playCount", "lastPlayed"}, files.ColumnOrder)
	assert.Equal(t, []string{"idFile"}, files.PrimaryKey)
}

func TestSQLiteTargetInsertIgnoringDuplicates(t *testing.T) {
	ctx := context.Background()
	target, dir := newSQLiteTarget(t)
	execSchema(t, dir, "MyVideos121",
		`CREATE TABLE path (idPath integer primary key, strPath text)`,
		`CREATE TABLE files (idFile integer primary key, idPath integer REFERENCES path(idPath), strFilename text)`,
		`INSERT INTO path VALUES (1, '/media/movies/')`,
	)

	rows := [][]any{
		{int64(1), int64(1), "alien.mkv"},
		{int64(2), int64(9), "orphan.mkv"},
		{int64(3), int64(1), "heat.mkv"},
	}
	cols := []string{"idFile", "idPath", "strFilename"}

	res, err := target.InsertIgnoringDuplicates(ctx, "MyVideos121", "files", cols, rows)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Processed)
	assert.Equal(t, 2, res.Inserted)
	assert.Equal(t, 0, res.Skipped)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, 1, res.Failures[0].Index)

	res, err = target.InsertIgnoringDuplicates(ctx, "MyVideos121", "files", cols, rows)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Inserted)
	assert.Equal(t, 2, res.Skipped)
	assert.Len(t, res.Failures, 1)

	require.NoError(t, target.Truncate(ctx, "MyVideos121", "files"))
	res, err = target.InsertIgnoringDuplicates(ctx, "MyVideos121", "files", cols, rows[:1])
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
}

func TestSQLiteTargetInsertReportsConstraintViolations(t *testing.T) {
	ctx := context.Background()
	target, dir := newSQLiteTarget(t)
	execSchema(t, dir, "MyVideos121",
		`CREATE TABLE path (idPath integer primary key, strPath text NOT NULL)`,
		`INSERT INTO path VALUES (3, '/tv/')`,
	)

	cols := []string{"idPath", "strPath"}
	res, err := target.InsertIgnoringDuplicates(ctx, "MyVideos121", "path", cols, [][]any{
		{int64(1), "/a/"},
		{int64(2), nil},
		{int64(3), "/tv/"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Processed)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, 1, res.Failures[0].Index)
	assert.Contains(t, res.Failures[0].Err.Error(), "NOT NULL")
}

func TestSQLiteTargetInsertMissingTableIsFatal(t *testing.T) {
	ctx := context.Background()
	target, _ := newSQLiteTarget(t)
	require.NoError(t, target.CreateSchema(ctx, "MyVideos121"))

	_, err := target.InsertIgnoringDuplicates(ctx, "MyVideos121", "movie", []string{"idMovie"}, [][]any{{int64(1)}})
	assert.Error(t, err)
}

func TestConnectSQLite(t *testing.T) {
	ctx := context.Background()
	target, err := Connect(ctx, model.ConnectionProfile{Provider: "sqlite", Host: t.TempDir()})
	require.NoError(t, err)
	defer target.Close()
	assert.Equal(t, "sqlite", target.Provider())

	_, err = Connect(ctx, model.ConnectionProfile{Provider: "sqlite", Host: filepath.Join(t.TempDir(), "missing")})
	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "sqlite", connErr.Provider)

	_, err = Connect(ctx, model.ConnectionProfile{Provider: "oracle"})
	assert.Error(t, err)
}

func TestConnectionErrorOmitsPassword(t *testing.T) {
	profile := model.ConnectionProfile{Host: "10.0.0.5", Port: 3306, Username: "kodi", Password: "hunter2"}
	err := &ConnectionError{Provider: "mysql", Address: profile.Address(), Reason: ReasonAuth, Err: &mysql.MySQLError{Number: 1045, Message: "Access denied for user 'kodi'"}}
	assert.NotContains(t, err.Error(), "hunter2")
	assert.Contains(t, err.Error(), "10.0.0.5:3306")
}

func TestClassifyConnectError(t *testing.T) {
	assert.Equal(t, ReasonAuth, classifyConnectError(&mysql.MySQLError{Number: 1045}))
	assert.Equal(t, ReasonPrivilege, classifyConnectError(&mysql.MySQLError{Number: 1044}))
	assert.Equal(t, ReasonAuth, classifyConnectError(fmt.Errorf("connect: %w", &pgconn.PgError{Code: "28P01"})))
	assert.Equal(t, ReasonPrivilege, classifyConnectError(&pgconn.PgError{Code: "42501"}))
	assert.Equal(t, ReasonUnknown, classifyConnectError(errors.New("boom")))
}

func TestFatalClassification(t *testing.T) {
	assert.True(t, isMySQLFatal(mysql.ErrInvalidConn))
	assert.True(t, isMySQLFatal(driver.ErrBadConn))
	assert.True(t, isMySQLFatal(&mysql.MySQLError{Number: 1146}))
	assert.False(t, isMySQLFatal(&mysql.MySQLError{Number: 1452}))

	assert.True(t, isPostgresFatal(&pgconn.PgError{Code: "42P01"}))
	assert.True(t, isPostgresFatal(&pgconn.PgError{Code: "08006"}))
	assert.False(t, isPostgresFatal(&pgconn.PgError{Code: "23503"}))

	assert.True(t, isSQLiteFatal(errors.New("SQL logic error: no such table: movie (1)")))
	assert.False(t, isSQLiteFatal(errors.New("constraint failed: FOREIGN KEY constraint failed (787)")))
}

func TestPostgresDSNEscapesCredentials(t *testing.T) {
	dsn := postgresDSN(model.ConnectionProfile{
		Host:     "192.168.1.20",
		Port:     5432,
		Username: "kodi user",
		Password: "p@ss word:/1+",
		Database: "kodi",
	})
	assert.NotContains(t, dsn, "+word")

	cfg, err := pgconn.ParseConfig(dsn)
	require.NoError(t, err)
	assert.Equal(t, "kodi user", cfg.User)
	assert.Equal(t, "p@ss word:/1+", cfg.Password)
	assert.Equal(t, "192.168.1.20", cfg.Host)
	assert.Equal(t, uint16(5432), cfg.Port)
	assert.Equal(t, "kodi", cfg.Database)
}

func TestIdentifierQuoting(t *testing.T) {
	assert.Equal(t, "`My``Videos`", mysqlIdent("My`Videos"))
	assert.Equal(t, `"a""b"`, quoteIdent(`a"b`))
	assert.Equal(t, `My\_Videos\%`, escapeLike("My_Videos%"))
}

func TestAsConnectionError(t *testing.T) {
	plain := errors.New("syntax error")
	assert.Same(t, plain, AsConnectionError("mysql", "", plain))
	assert.NoError(t, AsConnectionError("mysql", "", nil))

	err := AsConnectionError("mysql", "", &mysql.MySQLError{Number: 1044, Message: "Access denied"})
	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, ReasonPrivilege, connErr.Reason)
	assert.Equal(t, "mysql: insufficient privilege: Error 1044: Access denied", err.Error())

	err = AsConnectionError("postgres", "db:5432", driver.ErrBadConn)
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, ReasonUnknown, connErr.Reason)
}

package assistant

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mysqlassistant/internal/db"
	"mysqlassistant/internal/model"
	"mysqlassistant/internal/plan"
	"mysqlassistant/internal/prober"
	"mysqlassistant/internal/registry"
)

func execFile(t *testing.T, path string, stmts ...string) {
	t.Helper()
	conn, err := db.OpenSQLiteFile(path, false)
	require.NoError(t, err)
	defer conn.Close()
	for _, stmt := range stmts {
		_, err := conn.Exec(stmt)
		require.NoError(t, err, stmt)
	}
}

var videoTables = []string{
	`CREATE TABLE path (idPath integer primary key, strPath text)`,
	`CREATE TABLE files (idFile integer primary key, idPath integer, strFilename text, playCount integer, lastPlayed text)`,
	`CREATE TABLE version (idVersion integer, iCompressCount integer)`,
}

func localLibrary(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	execFile(t, filepath.Join(dir, "MyVideos121.db"), append(append([]string{}, videoTables...),
		`CREATE TABLE videoversion (idFile integer primary key, idMedia integer)`,
		`INSERT INTO version VALUES (121, 0)`,
		`INSERT INTO path VALUES (1, '/movies/')`,
		`INSERT INTO files VALUES (1, 1, 'alien.mkv', 3, '2024-01-01 20:00:00'), (2, 1, 'heat.mkv', 0, NULL)`,
	)...)
	return dir
}

func sqliteProfile(dir string) model.ConnectionProfile {
	return model.ConnectionProfile{Provider: "sqlite", Host: dir, Username: "kodi", Password: "secret"}
}

func TestMigrateIntoCurrentSchema(t *testing.T) {
	ctx := context.Background()
	targetDir := t.TempDir()
	execFile(t, filepath.Join(targetDir, "MyVideos121.db"), append(append([]string{}, videoTables...),
		`INSERT INTO version VALUES (121, 0)`,
	)...)

	s, err := NewSession(20, sqliteProfile(targetDir), nil)
	require.NoError(t, err)

	var seen int
	report, err := s.Migrate(ctx, MigrateRequest{
		LogicalDB: model.Video,
		SourceDir: localLibrary(t),
		Options:   model.Options{IncludeResumePoints: true},
		OnOutcome: func(model.MigrationOutcome) { seen++ },
	})
	require.NoError(t, err)
	assert.True(t, report.Succeeded())
	assert.Equal(t, "kodi@"+targetDir+":0", report.Target)
	assert.NotContains(t, report.Target, "secret")
	require.Len(t, report.Outcomes, 2)
	assert.Equal(t, "path", report.Outcomes[0].Unit.Table)
	assert.Equal(t, "files", report.Outcomes[1].Unit.Table)
	assert.Equal(t, int64(2), report.Outcomes[1].RowsInserted)
	assert.NotContains(t, report.Outcomes[1].Unit.Columns, "playCount")
	assert.Equal(t, 2, seen)
	assert.ElementsMatch(t, []model.SkippedTable{
		{Table: "version", Reason: model.SkipBookkeeping},
		{Table: "videoversion", Reason: model.SkipAbsentOnTarget},
	}, report.Skipped)
	assert.Equal(t, 1, report.Summary()["skipped_"+model.SkipAbsentOnTarget])

	m, err := s.SettingsMapping()
	require.NoError(t, err)
	assert.Equal(t, "MyVideos121", m[model.Video].Schema)
	assert.Equal(t, "secret", m[model.Video].Password)
	assert.NotContains(t, m, model.Music)

	// a second run finds everything already there
	again, err := s.Migrate(ctx, MigrateRequest{LogicalDB: model.Video, SourceDir: localLibrary(t)})
	require.NoError(t, err)
	for _, out := range again.Outcomes {
		assert.Equal(t, int64(0), out.RowsInserted)
	}
	assert.NotEqual(t, report.ID, again.ID)
}

func TestMigrateBootstrapsAbsentSchema(t *testing.T) {
	targetDir := t.TempDir()
	s, err := NewSession(20, sqliteProfile(targetDir), nil)
	require.NoError(t, err)

	report, err := s.Migrate(context.Background(), MigrateRequest{
		LogicalDB: model.Video,
		SourceDir: localLibrary(t),
		Bootstrap: true,
	})
	require.NoError(t, err)
	assert.True(t, report.Bootstrapped)
	assert.Empty(t, report.Outcomes)
	require.Len(t, report.Classifications, 1)
	assert.Equal(t, model.StatusAbsent, report.Classifications[0].Status)
	assert.FileExists(t, filepath.Join(targetDir, "MyVideos121.db"))
}

func TestMigrateRefusesOutdatedSchema(t *testing.T) {
	targetDir := t.TempDir()
	execFile(t, filepath.Join(targetDir, "MyVideos119.db"), append(append([]string{}, videoTables...),
		`INSERT INTO version VALUES (119, 0)`,
	)...)
	s, err := NewSession(20, sqliteProfile(targetDir), nil)
	require.NoError(t, err)

	report, err := s.Migrate(context.Background(), MigrateRequest{LogicalDB: model.Video, SourceDir: localLibrary(t)})
	assert.ErrorIs(t, err, plan.ErrIncompatibleSchema)
	assert.NotEmpty(t, report.Error)
	assert.False(t, report.Succeeded())
	assert.Equal(t, model.StatusOutdated, report.Classifications[0].Status)
}

func TestMigrateWithoutLocalLibrary(t *testing.T) {
	s, err := NewSession(20, sqliteProfile(t.TempDir()), nil)
	require.NoError(t, err)
	_, err = s.Migrate(context.Background(), MigrateRequest{LogicalDB: model.Music, SourceDir: t.TempDir()})
	assert.Error(t, err)
}

func TestInspectIsCachedPerSession(t *testing.T) {
	targetDir := t.TempDir()
	var connects int32
	s, err := NewSession(20, sqliteProfile(targetDir), nil)
	require.NoError(t, err)
	s.WithConnector(func(ctx context.Context, p model.ConnectionProfile) (db.Target, error) {
		atomic.AddInt32(&connects, 1)
		return db.Connect(ctx, p)
	})

	ctx := context.Background()
	first, err := s.Inspect(ctx, model.Music, false)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAbsent, first[0].Status)
	_, err = s.Inspect(ctx, model.Music, false)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&connects))

	_, err = s.Inspect(ctx, model.Music, true)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&connects))

	m, err := s.SettingsMapping()
	require.NoError(t, err)
	assert.Equal(t, "MyMusic82", m[model.Music].Schema)
}

func TestInspectConnectionError(t *testing.T) {
	s, err := NewSession(20, sqliteProfile(filepath.Join(t.TempDir(), "nope")), nil)
	require.NoError(t, err)
	_, err = s.Inspect(context.Background(), model.Video, false)
	var connErr *db.ConnectionError
	assert.ErrorAs(t, err, &connErr)

	_, err = s.SettingsMapping()
	assert.Error(t, err)
}

func TestScanIsCachedPerSession(t *testing.T) {
	var dials int32
	p := prober.New(nil).WithDialer(func(ctx context.Context, network, address string) (net.Conn, error) {
		atomic.AddInt32(&dials, 1)
		if address == "10.1.2.3:3306" {
			client, server := net.Pipe()
			server.Close()
			return client, nil
		}
		return nil, errors.New("refused")
	})
	s, err := NewSession(20, model.ConnectionProfile{}, nil)
	require.NoError(t, err)
	s.WithProber(p)

	opts := prober.Options{Network: "10.1.2.0/24", Ports: []int{3306}}
	found, err := s.Scan(context.Background(), opts, false)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, int32(254), atomic.LoadInt32(&dials))

	_, err = s.Scan(context.Background(), opts, false)
	require.NoError(t, err)
	assert.Equal(t, int32(254), atomic.LoadInt32(&dials))

	s.UseCandidate(found[0])
	assert.Equal(t, "10.1.2.3:3306", s.Profile(model.Video).Address())
}

func TestNewSessionUnknownRelease(t *testing.T) {
	_, err := NewSession(99, model.ConnectionProfile{}, nil)
	assert.ErrorIs(t, err, registry.ErrUnknownRelease)
}

func TestMigrateFromExplicitPath(t *testing.T) {
	targetDir := t.TempDir()
	execFile(t, filepath.Join(targetDir, "MyVideos121.db"), append(append([]string{}, videoTables...),
		`INSERT INTO version VALUES (121, 0)`,
	)...)
	src := filepath.Join(localLibrary(t), "MyVideos121.db")
	_, err := os.Stat(src)
	require.NoError(t, err)

	s, err := NewSession(20, sqliteProfile(targetDir), nil)
	require.NoError(t, err)
	report, err := s.Migrate(context.Background(), MigrateRequest{LogicalDB: model.Video, SourcePath: src})
	require.NoError(t, err)
	assert.Equal(t, src, report.SourcePath)
}

func TestUseCandidateForgetsInspections(t *testing.T) {
	var connects int32
	s, err := NewSession(20, sqliteProfile(t.TempDir()), nil)
	require.NoError(t, err)
	s.WithConnector(func(ctx context.Context, p model.ConnectionProfile) (db.Target, error) {
		atomic.AddInt32(&connects, 1)
		return db.Connect(ctx, model.ConnectionProfile{Provider: "sqlite", Host: t.TempDir()})
	})

	ctx := context.Background()
	_, err = s.Inspect(ctx, model.Video, false)
	require.NoError(t, err)
	s.UseCandidate(prober.Candidate{Address: "10.1.2.3", Port: 3307})
	_, err = s.Inspect(ctx, model.Video, false)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&connects))
	assert.Equal(t, 3307, s.Profile(model.Video).Port)
}

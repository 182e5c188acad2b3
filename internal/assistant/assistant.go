// Package assistant holds the state of one assistant run: the sweep and
// inspection results it has already paid for, and the schemas each
// migration ended up using. A Session is discarded when the run ends.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bluele/gcache"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"mysqlassistant/internal/db"
	"mysqlassistant/internal/executor"
	"mysqlassistant/internal/inspect"
	"mysqlassistant/internal/logging"
	"mysqlassistant/internal/model"
	"mysqlassistant/internal/plan"
	"mysqlassistant/internal/prober"
	"mysqlassistant/internal/registry"
	"mysqlassistant/internal/settings"
	"mysqlassistant/internal/source"
)

// InspectionTTL bounds how long a session trusts an earlier inspection.
const InspectionTTL = 10 * time.Minute

// ConnectFunc opens a target; db.Connect by default.
type ConnectFunc func(ctx context.Context, profile model.ConnectionProfile) (db.Target, error)

type Session struct {
	ID      uuid.UUID
	Release int

	profile model.ConnectionProfile
	logger  *logrus.Entry
	prober  *prober.Prober
	connect ConnectFunc

	mu          sync.Mutex
	candidates  []prober.Candidate
	scanned     bool
	inspections gcache.Cache
	chosen      map[model.LogicalDB]model.SchemaClassification
}

// MigrateRequest names the local library and the user's choices.
type MigrateRequest struct {
	LogicalDB model.LogicalDB
	// SourcePath wins over SourceDir when both are set.
	SourcePath string
	SourceDir  string
	Options    model.Options
	Bootstrap  bool
	BatchSize  int
	OnOutcome  func(model.MigrationOutcome)
}

func NewSession(release int, profile model.ConnectionProfile, logger *logrus.Entry) (*Session, error) {
	if _, err := registry.Lookup(release); err != nil {
		return nil, err
	}
	id := uuid.New()
	logger = logging.Component(logger, "assistant").WithField("session", id.String())
	return &Session{
		ID:          id,
		Release:     release,
		profile:     profile,
		logger:      logger,
		prober:      prober.New(logger),
		connect:     db.Connect,
		inspections: gcache.New(len(model.LogicalDBs)).LRU().Expiration(InspectionTTL).Build(),
		chosen:      map[model.LogicalDB]model.SchemaClassification{},
	}, nil
}

func (s *Session) WithConnector(fn ConnectFunc) *Session {
	s.connect = fn
	return s
}

func (s *Session) WithProber(p *prober.Prober) *Session {
	s.prober = p
	return s
}

// Profile returns the session's connection profile for logical.
func (s *Session) Profile(logical model.LogicalDB) model.ConnectionProfile {
	s.mu.Lock()
	p := s.profile
	s.mu.Unlock()
	p.LogicalDB = logical
	return p
}

// UseCandidate points the session at a probed server.
func (s *Session) UseCandidate(c prober.Candidate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile.Host = c.Address
	s.profile.Port = c.Port
	s.inspections.Purge()
	s.chosen = map[model.LogicalDB]model.SchemaClassification{}
}

// Scan sweeps the network once per session; refresh forces a new sweep.
func (s *Session) Scan(ctx context.Context, opts prober.Options, refresh bool) ([]prober.Candidate, error) {
	s.mu.Lock()
	if s.scanned && !refresh {
		out := append([]prober.Candidate(nil), s.candidates...)
		s.mu.Unlock()
		return out, nil
	}
	s.mu.Unlock()

	found, err := s.prober.Sweep(ctx, opts)
	if err != nil {
		return found, err
	}
	s.mu.Lock()
	s.candidates = found
	s.scanned = true
	s.mu.Unlock()
	return append([]prober.Candidate(nil), found...), nil
}

// Inspect classifies the target's schemas for logical, reusing an earlier
// result of this session unless refresh is set.
func (s *Session) Inspect(ctx context.Context, logical model.LogicalDB, refresh bool) ([]model.SchemaClassification, error) {
	if !refresh {
		if cached, ok := s.inspected(logical); ok {
			return cached, nil
		}
	}

	target, err := s.connect(ctx, s.Profile(logical))
	if err != nil {
		return nil, err
	}
	defer target.Close()
	classes, err := inspect.New(target, s.Release, s.logger).Inspect(ctx, logical)
	if err != nil {
		return nil, err
	}
	s.remember(logical, classes)
	return classes, nil
}

func (s *Session) remember(logical model.LogicalDB, classes []model.SchemaClassification) {
	if err := s.inspections.Set(logical, classes); err != nil {
		s.logger.WithError(err).Warn("cache inspection")
	}
}

func (s *Session) inspected(logical model.LogicalDB) ([]model.SchemaClassification, bool) {
	v, err := s.inspections.Get(logical)
	if err != nil {
		return nil, false
	}
	classes, ok := v.([]model.SchemaClassification)
	return classes, ok
}

// Migrate copies one local library into the target. The target is always
// inspected again first. The report is returned even when err is set.
func (s *Session) Migrate(ctx context.Context, req MigrateRequest) (model.Report, error) {
	report := model.Report{
		ID:        uuid.New(),
		Release:   s.Release,
		LogicalDB: req.LogicalDB,
		Target:    s.Profile(req.LogicalDB).String(),
		Options:   req.Options,
		StartedAt: time.Now().UTC(),
	}
	log := s.logger.WithFields(logrus.Fields{"run": report.ID.String(), "logical_db": req.LogicalDB})

	err := s.migrate(ctx, req, &report, log)
	report.FinishedAt = time.Now().UTC()
	if err != nil {
		report.Error = err.Error()
		log.WithError(err).Error("migration failed")
		return report, err
	}
	log.WithField("summary", report.Summary()).Info("migration finished")
	return report, nil
}

func (s *Session) migrate(ctx context.Context, req MigrateRequest, report *model.Report, log *logrus.Entry) error {
	path := req.SourcePath
	if path == "" {
		var err error
		if path, err = source.Locate(req.SourceDir, req.LogicalDB); err != nil {
			return err
		}
	}
	report.SourcePath = path

	reader, err := source.Open(path)
	if err != nil {
		return err
	}
	defer reader.Close()
	inventories, err := reader.ListTables(ctx)
	if err != nil {
		return fmt.Errorf("read local library: %w", err)
	}

	target, err := s.connect(ctx, s.Profile(req.LogicalDB))
	if err != nil {
		return err
	}
	defer target.Close()

	insp := inspect.New(target, s.Release, s.logger)
	classes, err := insp.Inspect(ctx, req.LogicalDB)
	if err != nil {
		return err
	}
	s.remember(req.LogicalDB, classes)
	report.Classifications = classes

	primary, ok := inspect.Primary(classes)
	if !ok {
		return errors.New("no schema classification")
	}
	if primary.Status == model.StatusAbsent && req.Bootstrap {
		// the media center creates the tables on its next start
		if err := target.CreateSchema(ctx, primary.SchemaName); err != nil {
			return db.AsConnectionError(target.Provider(), "", fmt.Errorf("create schema %s: %w", primary.SchemaName, err))
		}
		report.Bootstrapped = true
		log.WithField("schema", primary.SchemaName).Info("schema created; start the media center once before copying rows")
	}

	catalog, err := insp.Catalog(ctx, primary)
	if err != nil {
		return err
	}
	planned, err := plan.Plan(inventories, catalog, req.Options)
	if err != nil {
		return err
	}
	report.Skipped = planned.Skipped
	s.choose(req.LogicalDB, primary)

	ex := executor.New(reader, target, req.BatchSize, s.logger)
	ex.OnOutcome = req.OnOutcome
	outcomes, err := ex.Run(ctx, planned.Units)
	report.Outcomes = outcomes
	return err
}

func (s *Session) choose(logical model.LogicalDB, c model.SchemaClassification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chosen[logical] = c
}

// SettingsMapping lists, per logical database, where the media center should
// point. Only databases migrated or resolved in this session are included.
func (s *Session) SettingsMapping() (settings.Mapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := settings.Mapping{}
	for _, logical := range model.LogicalDBs {
		c, ok := s.chosen[logical]
		if !ok {
			classes, inspected := s.inspected(logical)
			if !inspected {
				continue
			}
			if c, ok = inspect.Primary(classes); !ok {
				continue
			}
		}
		m[logical] = settings.Database{
			Type:     s.profile.Provider,
			Host:     s.profile.Host,
			Port:     s.profile.Port,
			User:     s.profile.Username,
			Password: s.profile.Password,
			Schema:   c.SchemaName,
		}
	}
	if len(m) == 0 {
		return nil, errors.New("no database has been inspected in this session")
	}
	return m, nil
}

// Package inspect classifies the library schemas found on a target server
// against the versions the selected release expects.
package inspect

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"github.com/sirupsen/logrus"

	"mysqlassistant/internal/db"
	"mysqlassistant/internal/logging"
	"mysqlassistant/internal/model"
	"mysqlassistant/internal/plan"
	"mysqlassistant/internal/registry"
)

// Inspector reads schemas; it never creates or alters one.
type Inspector struct {
	target  db.Target
	release int
	logger  *logrus.Entry
}

func New(target db.Target, release int, logger *logrus.Entry) *Inspector {
	return &Inspector{
		target:  target,
		release: release,
		logger:  logging.Component(logger, "inspect"),
	}
}

// Classify compares a found marker with the expected version.
func Classify(found, expected int) model.Status {
	switch {
	case found == expected:
		return model.StatusCurrent
	case found < expected:
		return model.StatusOutdated
	default:
		return model.StatusNewerUnsupported
	}
}

// Inspect returns one classification per schema named <prefix><digits>, or a
// single ABSENT entry named after the expected version when there is none.
// A schema whose marker is missing or unreadable is OUTDATED with version 0.
func (i *Inspector) Inspect(ctx context.Context, logical model.LogicalDB) ([]model.SchemaClassification, error) {
	expected, err := registry.ExpectedVersion(i.release, logical)
	if err != nil {
		return nil, err
	}
	prefix := logical.Prefix()

	names, err := i.target.ListSchemas(ctx, prefix)
	if err != nil {
		return nil, db.AsConnectionError(i.target.Provider(), "", fmt.Errorf("list schemas: %w", err))
	}
	names = matching(prefix, names)

	log := i.logger.WithFields(logrus.Fields{"logical_db": logical, "expected_version": expected})
	if len(names) == 0 {
		log.Info("no library schema on target")
		return []model.SchemaClassification{{
			LogicalDB:       logical,
			SchemaName:      SchemaName(logical, expected),
			ExpectedVersion: expected,
			Status:          model.StatusAbsent,
		}}, nil
	}

	out := make([]model.SchemaClassification, 0, len(names))
	for _, name := range names {
		found, ok, err := i.target.ReadVersionMarker(ctx, name)
		if err != nil {
			return nil, db.AsConnectionError(i.target.Provider(), "", fmt.Errorf("read version of %s: %w", name, err))
		}
		if !ok {
			found = 0
		}
		c := model.SchemaClassification{
			LogicalDB:       logical,
			SchemaName:      name,
			FoundVersion:    &found,
			ExpectedVersion: expected,
			Status:          Classify(found, expected),
		}
		log.WithFields(logrus.Fields{
			"schema":        name,
			"found_version": found,
			"status":        c.Status,
		}).Info("schema classified")
		out = append(out, c)
	}
	return out, nil
}

// InspectAll inspects every logical database.
func (i *Inspector) InspectAll(ctx context.Context) (map[model.LogicalDB][]model.SchemaClassification, error) {
	out := map[model.LogicalDB][]model.SchemaClassification{}
	for _, logical := range model.LogicalDBs {
		cls, err := i.Inspect(ctx, logical)
		if err != nil {
			return nil, fmt.Errorf("inspect %s: %w", logical, err)
		}
		out[logical] = cls
	}
	return out, nil
}

// Catalog lists the tables of the classified schema. ABSENT schemas have none.
func (i *Inspector) Catalog(ctx context.Context, c model.SchemaClassification) (plan.Catalog, error) {
	cat := plan.Catalog{
		Classification: c,
		Schema:         db.Schema{Name: c.SchemaName, Tables: map[string]db.Table{}},
	}
	if c.Status == model.StatusAbsent {
		return cat, nil
	}
	schema, err := i.target.FetchSchema(ctx, c.SchemaName)
	if err != nil {
		return cat, db.AsConnectionError(i.target.Provider(), "", fmt.Errorf("fetch schema %s: %w", c.SchemaName, err))
	}
	cat.Schema = schema
	return cat, nil
}

// Run connects with profile and inspects the profile's logical database.
func Run(ctx context.Context, profile model.ConnectionProfile, release int, logger *logrus.Entry) ([]model.SchemaClassification, error) {
	target, err := db.Connect(ctx, profile)
	if err != nil {
		return nil, err
	}
	defer target.Close()
	return New(target, release, logger).Inspect(ctx, profile.LogicalDB)
}

// Primary picks the classification a migration should aim at: the schema
// named after the expected version, else the newest one found.
func Primary(classes []model.SchemaClassification) (model.SchemaClassification, bool) {
	if len(classes) == 0 {
		return model.SchemaClassification{}, false
	}
	for _, c := range classes {
		if c.SchemaName == SchemaName(c.LogicalDB, c.ExpectedVersion) && c.Status != model.StatusAbsent {
			return c, true
		}
	}
	return classes[len(classes)-1], true
}

func SchemaName(logical model.LogicalDB, version int) string {
	return logical.Prefix() + strconv.Itoa(version)
}

// matching keeps names of the form <prefix><digits>, ordered by that number.
func matching(prefix string, names []string) []string {
	pattern := regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `(\d+)$`)
	type named struct {
		name    string
		version int
	}
	var found []named
	for _, n := range names {
		m := pattern.FindStringSubmatch(n)
		if m == nil {
			continue
		}
		v, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		found = append(found, named{name: n, version: v})
	}
	sort.Slice(found, func(a, b int) bool { return found[a].version < found[b].version })
	out := make([]string, len(found))
	for k, f := range found {
		out[k] = f.name
	}
	return out
}

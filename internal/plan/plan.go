// Package plan turns a local library inventory and a classified target
// schema into the ordered list of tables to copy.
package plan

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"mysqlassistant/internal/db"
	"mysqlassistant/internal/diff"
	"mysqlassistant/internal/model"
)

var ErrIncompatibleSchema = errors.New("target schema is not compatible")

// Catalog is what the planner knows about one target schema.
type Catalog struct {
	Classification model.SchemaClassification
	Schema         db.Schema
}

type Result struct {
	Units   []model.MigrationUnit
	Skipped []model.SkippedTable
}

// Referential order: lookup and parent tables before the tables pointing at them.
var tableOrder = map[model.LogicalDB][]string{
	model.Video: {
		"path", "files", "bookmark", "settings", "stacktimes", "streamdetails",
		"genre", "country", "studio", "actor", "tag", "sets", "videoversiontype",
		"movie", "tvshow", "tvshowlinkpath", "seasons", "episode", "musicvideo",
		"movielinktvshow", "videoversion", "rating", "uniqueid",
		"genre_link", "country_link", "studio_link", "actor_link", "director_link", "writer_link", "tag_link",
		"art",
	},
	model.Music: {
		"path", "source", "source_path", "artist", "genre", "role", "infosetting",
		"album", "album_artist", "album_source", "discography",
		"song", "song_artist", "song_genre", "removed_link",
		"art",
	},
}

// Tables the media center maintains itself.
var bookkeeping = map[string]struct{}{
	"version":         {},
	"versiontagscan":  {},
	"sqlite_sequence": {},
}

var (
	watchedColumns = []string{"playCount", "lastPlayed", "timesPlayed", "lastplayed"}
	resumeColumns  = []string{"timeInSeconds", "totalTimeInSeconds", "resumeTimeInSeconds", "iResumeOffset"}
)

// Plan computes the migration units for one logical database. Tables the
// target does not have are reported in Skipped and never become units.
func Plan(inventories []model.TableInventory, catalog Catalog, opts model.Options) (Result, error) {
	cls := catalog.Classification
	if err := cls.Validate(); err != nil {
		return Result{}, err
	}
	var res Result
	switch cls.Status {
	case model.StatusCurrent:
	case model.StatusAbsent:
		// nothing to copy into until the schema is bootstrapped
		for _, inv := range ordered(inventories, cls.LogicalDB) {
			if isBookkeeping(inv.Name) {
				res.Skipped = append(res.Skipped, model.SkippedTable{Table: inv.Name, Reason: model.SkipBookkeeping})
				continue
			}
			res.Skipped = append(res.Skipped, skip(inv.Name))
		}
		return res, nil
	default:
		return Result{}, fmt.Errorf("%w: %s", ErrIncompatibleSchema, cls)
	}

	d := diff.Compare(inventories, catalog.Schema)
	excluded := excludedColumns(opts)

	for _, inv := range ordered(inventories, cls.LogicalDB) {
		if isBookkeeping(inv.Name) {
			res.Skipped = append(res.Skipped, model.SkippedTable{Table: inv.Name, Reason: model.SkipBookkeeping})
			continue
		}
		td, ok := d.Tables[inv.Name]
		if !ok {
			res.Skipped = append(res.Skipped, skip(inv.Name))
			continue
		}

		unit := model.MigrationUnit{
			LogicalDB:       cls.LogicalDB,
			Schema:          cls.SchemaName,
			Table:           inv.Name,
			PresentOnTarget: true,
			CleanFirst:      opts.CleanLibraryFirst,
		}
		for _, col := range td.Shared {
			if _, drop := excluded[strings.ToLower(col)]; drop {
				unit.DroppedColumns = append(unit.DroppedColumns, col)
				continue
			}
			unit.Columns = append(unit.Columns, col)
		}
		unit.DroppedColumns = append(unit.DroppedColumns, td.OnlyInSource...)
		if len(unit.Columns) == 0 {
			res.Skipped = append(res.Skipped, model.SkippedTable{Table: inv.Name, Reason: model.SkipNoColumns})
			continue
		}
		for _, k := range inv.PrimaryKey {
			if contains(unit.Columns, k) {
				unit.PrimaryKey = append(unit.PrimaryKey, k)
			}
		}
		res.Units = append(res.Units, unit)
	}
	return res, nil
}

// ordered sorts inventories by the fixed order for logical; unknown tables
// follow by name.
func ordered(inventories []model.TableInventory, logical model.LogicalDB) []model.TableInventory {
	rank := map[string]int{}
	for i, name := range tableOrder[logical] {
		rank[name] = i
	}
	out := append([]model.TableInventory(nil), inventories...)
	sort.SliceStable(out, func(i, j int) bool {
		ri, iKnown := rank[out[i].Name]
		rj, jKnown := rank[out[j].Name]
		switch {
		case iKnown && jKnown:
			return ri < rj
		case iKnown != jKnown:
			return iKnown
		default:
			return out[i].Name < out[j].Name
		}
	})
	return out
}

func excludedColumns(opts model.Options) map[string]struct{} {
	out := map[string]struct{}{}
	if !opts.IncludeWatchedState {
		for _, c := range watchedColumns {
			out[strings.ToLower(c)] = struct{}{}
		}
	}
	if !opts.IncludeResumePoints {
		for _, c := range resumeColumns {
			out[strings.ToLower(c)] = struct{}{}
		}
	}
	return out
}

func isBookkeeping(table string) bool {
	_, ok := bookkeeping[strings.ToLower(table)]
	return ok
}

func skip(table string) model.SkippedTable {
	return model.SkippedTable{Table: table, Reason: model.SkipAbsentOnTarget}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

package diff

import (
	"fmt"
	"sort"
	"strings"

	"mysqlassistant/internal/db"
	"mysqlassistant/internal/model"
)

// SchemaDiff describes differences between a local library and a target schema.
type SchemaDiff struct {
	Schema       string
	OnlyInSource []string
	OnlyInTarget []string
	Tables       map[string]TableDiff
}

// TableDiff captures per-table differences. Column names compare case-insensitively.
type TableDiff struct {
	// Shared lists the columns present on both sides, in source order.
	Shared         []string
	OnlyInSource   []string
	OnlyInTarget   []string
	PrimaryKeySrc  []string
	PrimaryKeyDst  []string
	PrimaryKeyDiff bool
}

// Changed reports whether the table differs in columns or key.
func (td TableDiff) Changed() bool {
	return td.PrimaryKeyDiff || len(td.OnlyInSource) > 0 || len(td.OnlyInTarget) > 0
}

// Compare builds a diff between the source inventory and the target schema.
// Tables match by exact name. Every table present on both sides is listed in
// Tables, changed or not.
func Compare(source []model.TableInventory, target db.Schema) SchemaDiff {
	res := SchemaDiff{
		Schema: target.Name,
		Tables: map[string]TableDiff{},
	}

	srcTables := make([]string, 0, len(source))
	for _, inv := range source {
		srcTables = append(srcTables, inv.Name)
	}
	sort.Strings(srcTables)
	dstTables := sortedKeys(target.Tables)

	res.OnlyInSource = difference(srcTables, dstTables)
	res.OnlyInTarget = difference(dstTables, srcTables)

	for _, inv := range source {
		table, ok := target.Tables[inv.Name]
		if !ok {
			continue
		}
		res.Tables[inv.Name] = compareTable(inv, table)
	}
	return res
}

func compareTable(inv model.TableInventory, table db.Table) TableDiff {
	td := TableDiff{
		PrimaryKeySrc: append([]string{}, inv.PrimaryKey...),
		PrimaryKeyDst: append([]string{}, table.PrimaryKey...),
	}
	if !equalFoldSlices(inv.PrimaryKey, table.PrimaryKey) {
		td.PrimaryKeyDiff = true
	}

	dst := make(map[string]struct{}, len(table.Columns))
	for name := range table.Columns {
		dst[strings.ToLower(name)] = struct{}{}
	}
	src := make(map[string]struct{}, len(inv.Columns))
	for _, name := range inv.Columns {
		src[strings.ToLower(name)] = struct{}{}
		if _, ok := dst[strings.ToLower(name)]; ok {
			td.Shared = append(td.Shared, name)
		} else {
			td.OnlyInSource = append(td.OnlyInSource, name)
		}
	}
	order := table.ColumnOrder
	if len(order) == 0 {
		order = sortedKeys(table.Columns)
	}
	for _, name := range order {
		if _, ok := src[strings.ToLower(name)]; !ok {
			td.OnlyInTarget = append(td.OnlyInTarget, name)
		}
	}
	return td
}

// Describe returns a human-readable summary of differences.
func Describe(d SchemaDiff) string {
	if !d.HasChanges() {
		return "library matches " + d.Schema
	}

	var lines []string
	if len(d.OnlyInSource) > 0 {
		lines = append(lines, fmt.Sprintf("Tables only in local library: %s", strings.Join(d.OnlyInSource, ", ")))
	}
	if len(d.OnlyInTarget) > 0 {
		lines = append(lines, fmt.Sprintf("Tables only in %s: %s", d.Schema, strings.Join(d.OnlyInTarget, ", ")))
	}

	for _, name := range sortedKeys(d.Tables) {
		td := d.Tables[name]
		if len(td.OnlyInSource) > 0 {
			lines = append(lines, fmt.Sprintf("Table %s: columns only in local library: %s", name, strings.Join(td.OnlyInSource, ", ")))
		}
		if len(td.OnlyInTarget) > 0 {
			lines = append(lines, fmt.Sprintf("Table %s: columns only in %s: %s", name, d.Schema, strings.Join(td.OnlyInTarget, ", ")))
		}
		if td.PrimaryKeyDiff {
			lines = append(lines, fmt.Sprintf("Table %s primary key differs (local: %v | %s: %v)", name, td.PrimaryKeySrc, d.Schema, td.PrimaryKeyDst))
		}
	}
	return strings.Join(lines, "\n")
}

// HasChanges reports whether the diff contains meaningful differences.
func (d SchemaDiff) HasChanges() bool {
	if len(d.OnlyInSource) > 0 || len(d.OnlyInTarget) > 0 {
		return true
	}
	for _, td := range d.Tables {
		if td.Changed() {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func difference(a, b []string) []string {
	set := make(map[string]struct{}, len(b))
	for _, v := range b {
		set[v] = struct{}{}
	}
	var out []string
	for _, v := range a {
		if _, ok := set[v]; !ok {
			out = append(out, v)
		}
	}
	return out
}

func equalFoldSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(a[i], b[i]) {
			return false
		}
	}
	return true
}

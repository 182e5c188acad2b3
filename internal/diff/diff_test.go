package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mysqlassistant/internal/db"
	"mysqlassistant/internal/model"
)

func table(name string, pk []string, cols ...string) db.Table {
	t := db.Table{Name: name, Columns: map[string]db.Column{}, ColumnOrder: cols, PrimaryKey: pk}
	for _, c := range cols {
		t.Columns[c] = db.Column{Name: c, DataType: "text"}
	}
	return t
}

func TestCompare(t *testing.T) {
	source := []model.TableInventory{
		{Name: "files", Columns: []string{"idFile", "idPath", "strFilename", "playCount", "legacyFlag"}, PrimaryKey: []string{"idFile"}},
		{Name: "path", Columns: []string{"idPath", "strPath"}, PrimaryKey: []string{"idPath"}},
		{Name: "oldtable", Columns: []string{"id"}},
	}
	target := db.Schema{Name: "MyVideos121", Tables: map[string]db.Table{
		"files":        table("files", []string{"idFile"}, "idFile", "idPath", "strFileName", "playCount", "dateAdded"),
		"path":         table("path", []string{"idPath"}, "idPath", "strPath"),
		"videoversion": table("videoversion", []string{"id"}, "id"),
	}}

	d := Compare(source, target)
	assert.Equal(t, []string{"oldtable"}, d.OnlyInSource)
	assert.Equal(t, []string{"videoversion"}, d.OnlyInTarget)
	require.Contains(t, d.Tables, "files")
	files := d.Tables["files"]
	assert.Equal(t, []string{"idFile", "idPath", "strFilename", "playCount"}, files.Shared)
	assert.Equal(t, []string{"legacyFlag"}, files.OnlyInSource)
	assert.Equal(t, []string{"dateAdded"}, files.OnlyInTarget)
	assert.False(t, files.PrimaryKeyDiff)
	assert.False(t, d.Tables["path"].Changed())
	assert.True(t, d.HasChanges())

	out := Describe(d)
	assert.Contains(t, out, "Tables only in local library: oldtable")
	assert.Contains(t, out, "Table files: columns only in MyVideos121: dateAdded")
	assert.NotContains(t, out, "Table path")
}

func TestCompareIdentical(t *testing.T) {
	source := []model.TableInventory{{Name: "genre", Columns: []string{"idGenre", "strGenre"}, PrimaryKey: []string{"idGenre"}}}
	target := db.Schema{Name: "MyMusic82", Tables: map[string]db.Table{
		"genre": table("genre", []string{"idGenre"}, "idGenre", "strGenre"),
	}}
	d := Compare(source, target)
	assert.False(t, d.HasChanges())
	assert.Equal(t, "library matches MyMusic82", Describe(d))
}

func TestComparePrimaryKeyDiff(t *testing.T) {
	source := []model.TableInventory{{Name: "art", Columns: []string{"art_id", "url"}, PrimaryKey: []string{"art_id"}}}
	target := db.Schema{Name: "MyMusic82", Tables: map[string]db.Table{
		"art": table("art", nil, "art_id", "url"),
	}}
	d := Compare(source, target)
	assert.True(t, d.Tables["art"].PrimaryKeyDiff)
	assert.Contains(t, Describe(d), "primary key differs")
}

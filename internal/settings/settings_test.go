package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mysqlassistant/internal/model"
)

func TestRender(t *testing.T) {
	m := Mapping{
		model.Video: {Host: "192.168.1.20", Port: 3306, User: "kodi", Password: "kodi&pass", Schema: "MyVideos121"},
		model.Music: {Type: "MariaDB", Host: "192.168.1.20", Port: 3307, User: "kodi", Password: "kodi", Schema: "MyMusic82"},
	}
	data, err := Render(m, &Preferences{ImportWatchedState: true, CleanOnUpdate: true})
	require.NoError(t, err)
	out := string(data)

	assert.Contains(t, out, `<?xml version="1.0" encoding="UTF-8"?>`)
	assert.Contains(t, out, "<videodatabase>")
	assert.Contains(t, out, "<type>mysql</type>")
	assert.Contains(t, out, "<port>3307</port>")
	assert.Contains(t, out, "<pass>kodi&amp;pass</pass>")
	assert.Contains(t, out, "<name>MyVideos</name>")
	assert.Contains(t, out, "<name>MyMusic</name>")
	assert.Contains(t, out, "<importwatchedstate>true</importwatchedstate>")
	assert.Contains(t, out, "<importresumepoints>false</importresumepoints>")
	assert.Contains(t, out, "<musiclibrary>")
}

func TestRenderVideoOnlyWithoutPreferences(t *testing.T) {
	data, err := Render(Mapping{model.Video: {Host: "nas", Port: 3306, Schema: "MyVideos121"}}, nil)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "musicdatabase")
	assert.NotContains(t, string(data), "videolibrary")
}

func TestRenderValidates(t *testing.T) {
	_, err := Render(nil, nil)
	assert.Error(t, err)
	_, err = Render(Mapping{model.Video: {Schema: "MyVideos121"}}, nil)
	assert.Error(t, err)
}

func TestRenderRejectsNonMySQLServers(t *testing.T) {
	for _, typ := range []string{"postgres", "sqlite"} {
		_, err := Render(Mapping{model.Video: {Type: typ, Host: "nas", Port: 5432, Schema: "MyVideos121"}}, nil)
		assert.ErrorIs(t, err, ErrUnsupportedType, typ)
	}

	path := filepath.Join(t.TempDir(), "advancedsettings.xml")
	err := Write(path, Mapping{model.Video: {Type: "postgres", Host: "nas", Port: 5432, Schema: "MyVideos121"}}, nil)
	assert.ErrorIs(t, err, ErrUnsupportedType)
	assert.NoFileExists(t, path)
}

func TestWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "userdata", "advancedsettings.xml")
	require.NoError(t, Write(path, Mapping{model.Music: {Host: "nas", Port: 3306, Schema: "MyMusic84"}}, nil))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestBaseName(t *testing.T) {
	assert.Equal(t, "MyVideos", baseName("MyVideos121"))
	assert.Equal(t, "kodi_video", baseName("kodi_video"))
	assert.Equal(t, "123", baseName("123"))
}

// Package settings renders the media center's advancedsettings.xml from the
// finished database mapping. This is the only place credentials are written.
package settings

import (
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mysqlassistant/internal/model"
)

// ErrUnsupportedType is returned for servers the media center cannot use
// as a shared library.
var ErrUnsupportedType = errors.New("media center only reads mysql library databases")

// Database is one entry of the mapping handed over after a run.
type Database struct {
	Type     string
	Host     string
	Port     int
	User     string
	Password string
	Schema   string
}

type Mapping map[model.LogicalDB]Database

// Preferences become the <videolibrary> and <musiclibrary> nodes.
type Preferences struct {
	ImportWatchedState bool
	ImportResumePoints bool
	CleanOnUpdate      bool
}

type databaseNode struct {
	Type string `xml:"type"`
	Host string `xml:"host"`
	Port int    `xml:"port"`
	User string `xml:"user"`
	Pass string `xml:"pass"`
	Name string `xml:"name"`
}

type libraryNode struct {
	ImportWatchedState bool `xml:"importwatchedstate"`
	ImportResumePoints bool `xml:"importresumepoints"`
	CleanOnUpdate      bool `xml:"cleanonupdate"`
}

type document struct {
	XMLName       xml.Name      `xml:"advancedsettings"`
	VideoDatabase *databaseNode `xml:"videodatabase,omitempty"`
	MusicDatabase *databaseNode `xml:"musicdatabase,omitempty"`
	VideoLibrary  *libraryNode  `xml:"videolibrary,omitempty"`
	MusicLibrary  *libraryNode  `xml:"musiclibrary,omitempty"`
}

// Render builds the file content. prefs may be nil.
func Render(m Mapping, prefs *Preferences) ([]byte, error) {
	if len(m) == 0 {
		return nil, fmt.Errorf("no database to write")
	}
	doc := document{}
	for logical, d := range m {
		node, err := newDatabaseNode(d)
		if err != nil {
			return nil, fmt.Errorf("%s database: %w", logical, err)
		}
		switch logical {
		case model.Video:
			doc.VideoDatabase = node
		case model.Music:
			doc.MusicDatabase = node
		default:
			return nil, fmt.Errorf("unknown logical database %q", logical)
		}
	}
	if prefs != nil {
		lib := libraryNode(*prefs)
		doc.VideoLibrary = &lib
		doc.MusicLibrary = &lib
	}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), append(body, '\n')...), nil
}

// Write renders and stores the file readable by the owner only.
func Write(path string, m Mapping, prefs *Preferences) error {
	data, err := Render(m, prefs)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func newDatabaseNode(d Database) (*databaseNode, error) {
	if d.Host == "" {
		return nil, fmt.Errorf("host is required")
	}
	if d.Schema == "" {
		return nil, fmt.Errorf("schema is required")
	}
	typ := strings.ToLower(d.Type)
	switch typ {
	case "", "mysql", "mariadb":
		typ = "mysql"
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, d.Type)
	}
	return &databaseNode{
		Type: typ,
		Host: d.Host,
		Port: d.Port,
		User: d.User,
		Pass: d.Password,
		Name: baseName(d.Schema),
	}, nil
}

// baseName strips the version suffix; the media center appends its own.
func baseName(schema string) string {
	trimmed := strings.TrimRight(schema, "0123456789")
	if trimmed == "" {
		return schema
	}
	return trimmed
}

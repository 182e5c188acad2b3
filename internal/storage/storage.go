package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"mysqlassistant/internal/model"
)

var ErrChecksumMismatch = errors.New("report checksum mismatch")

// Manifest describes a report stored on disk.
type Manifest struct {
	ID         uuid.UUID       `json:"id"`
	LogicalDB  model.LogicalDB `json:"logical_db"`
	Target     string          `json:"target"`
	StartedAt  time.Time       `json:"started_at"`
	ReportFile string          `json:"report_file"`
	Checksum   string          `json:"checksum"`
}

// EnsureBase makes sure the storage root exists.
func EnsureBase(base string) error {
	return os.MkdirAll(filepath.Join(base, "reports"), 0o755)
}

// SaveReport writes reports/<id>/report.json and its manifest. Reports are
// never overwritten.
func SaveReport(base string, report model.Report) (Manifest, error) {
	if report.ID == uuid.Nil {
		return Manifest{}, fmt.Errorf("report id is required")
	}
	if err := EnsureBase(base); err != nil {
		return Manifest{}, err
	}
	lock := flock.New(filepath.Join(base, "reports", ".reports.lock"))
	if err := lock.Lock(); err != nil {
		return Manifest{}, fmt.Errorf("lock reports: %w", err)
	}
	defer lock.Unlock()

	dir := filepath.Join(base, "reports", safeName(report.ID.String()))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Manifest{}, err
	}
	manifestPath := filepath.Join(dir, "manifest.json")
	if _, err := os.Stat(manifestPath); err == nil {
		return Manifest{}, fmt.Errorf("report %s already exists", report.ID)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return Manifest{}, fmt.Errorf("encode report: %w", err)
	}
	reportPath := filepath.Join(dir, "report.json")
	if err := os.WriteFile(reportPath, data, 0o644); err != nil {
		return Manifest{}, fmt.Errorf("write report: %w", err)
	}

	manifest := Manifest{
		ID:         report.ID,
		LogicalDB:  report.LogicalDB,
		Target:     report.Target,
		StartedAt:  report.StartedAt,
		ReportFile: reportPath,
		Checksum:   computeChecksum(data),
	}
	if err := writeJSON(manifestPath, manifest); err != nil {
		return Manifest{}, err
	}
	return manifest, nil
}

// LoadReport reads a stored report and checks it against its manifest.
func LoadReport(base string, id uuid.UUID) (model.Report, error) {
	var report model.Report
	manifest, err := LoadManifest(base, id)
	if err != nil {
		return report, err
	}
	data, err := os.ReadFile(manifest.ReportFile)
	if err != nil {
		return report, fmt.Errorf("read report: %w", err)
	}
	if computeChecksum(data) != manifest.Checksum {
		return report, fmt.Errorf("%w: %s", ErrChecksumMismatch, id)
	}
	if err := json.Unmarshal(data, &report); err != nil {
		return report, fmt.Errorf("parse report: %w", err)
	}
	return report, nil
}

// LoadManifest reads metadata without loading the report body.
func LoadManifest(base string, id uuid.UUID) (Manifest, error) {
	manifestPath := filepath.Join(base, "reports", safeName(id.String()), "manifest.json")
	var manifest Manifest
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return manifest, fmt.Errorf("read manifest: %w", err)
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return manifest, fmt.Errorf("parse manifest: %w", err)
	}
	return manifest, nil
}

// ListReports returns the stored manifests, newest first.
func ListReports(base string) ([]Manifest, error) {
	entries, err := os.ReadDir(filepath.Join(base, "reports"))
	if err != nil {
		if os.IsNotExist(err) {
			return []Manifest{}, nil
		}
		return nil, err
	}
	manifests := make([]Manifest, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id, err := uuid.Parse(e.Name())
		if err != nil {
			continue
		}
		m, err := LoadManifest(base, id)
		if err != nil {
			return nil, err
		}
		manifests = append(manifests, m)
	}
	sort.Slice(manifests, func(i, j int) bool { return manifests[i].StartedAt.After(manifests[j].StartedAt) })
	return manifests, nil
}

func safeName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, " ", "_")
	return name
}

func computeChecksum(blobs ...[]byte) string {
	h := sha256.New()
	for _, b := range blobs {
		h.Write(b)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

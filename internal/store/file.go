package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/seenimoa/moodpulse/pkg/models"
	"github.com/seenimoa/moodpulse/pkg/utils"
)

// Artifact names under the output directory.
const (
	StoreFile  = "moods.json"
	ReportFile = "last_run.json"
	LatestDir  = "latest"
	HistoryDir = "history"
)

// ErrNotFound is returned when a requested artifact does not exist.
var ErrNotFound = errors.New("store: not found")

// FileStore reads and writes pipeline artifacts under one directory:
//
//	<dir>/moods.json                     combined store
//	<dir>/last_run.json                  last run report
//	<dir>/latest/<id>.json               latest record per entity
//	<dir>/history/<id>/<slotLabel>.json  one snapshot per entity and slot
type FileStore struct {
	dir string
}

// NewFileStore returns a store rooted at dir. Nothing is created until the
// first write.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the root output directory.
func (s *FileStore) Dir() string { return s.dir }

// Load reads the combined store. A missing file yields an empty store.
func (s *FileStore) Load() (models.Store, error) {
	st := models.Store{}
	err := readJSON(filepath.Join(s.dir, StoreFile), &st)
	if errors.Is(err, ErrNotFound) {
		return models.Store{}, nil
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}

// Rebuild assembles a store from the per-entity latest files. It recovers
// prior data when the combined file is unreadable.
func (s *FileStore) Rebuild() (models.Store, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, LatestDir))
	if errors.Is(err, os.ErrNotExist) {
		return models.Store{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: rebuild: %w", err)
	}

	st := models.Store{}
	for _, e := range entries {
		id, ok := strings.CutSuffix(e.Name(), ".json")
		if e.IsDir() || !ok || !utils.IsValidEntityID(id) {
			continue
		}
		rec, err := s.Latest(id)
		if err != nil {
			continue
		}
		st[id] = rec
	}
	return st, nil
}

// WriteRecord writes rec as the entity's latest record and as the
// historical snapshot for slot. A re-run within the same slot overwrites
// only that slot's snapshot.
func (s *FileStore) WriteRecord(rec models.AnalysisRecord, slot utils.Slot) error {
	if !utils.IsValidEntityID(rec.EntityID) {
		return fmt.Errorf("store: invalid entity id %q", rec.EntityID)
	}
	if err := writeJSON(s.historyPath(rec.EntityID, slot.Label), rec); err != nil {
		return err
	}
	return writeJSON(s.latestPath(rec.EntityID), rec)
}

// WriteStore atomically replaces the combined store.
func (s *FileStore) WriteStore(st models.Store) error {
	if st == nil {
		st = models.Store{}
	}
	return writeJSON(filepath.Join(s.dir, StoreFile), st)
}

// WriteReport atomically replaces the last run report.
func (s *FileStore) WriteReport(r *models.RunReport) error {
	return writeJSON(filepath.Join(s.dir, ReportFile), r)
}

// LoadReport reads the last run report.
func (s *FileStore) LoadReport() (*models.RunReport, error) {
	var r models.RunReport
	if err := readJSON(filepath.Join(s.dir, ReportFile), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Latest reads one entity's latest record.
func (s *FileStore) Latest(id string) (models.AnalysisRecord, error) {
	var rec models.AnalysisRecord
	if !utils.IsValidEntityID(id) {
		return rec, ErrNotFound
	}
	err := readJSON(s.latestPath(id), &rec)
	return rec, err
}

// History lists the slot labels with a snapshot for id, newest first.
func (s *FileStore) History(id string) ([]string, error) {
	if !utils.IsValidEntityID(id) {
		return nil, ErrNotFound
	}
	entries, err := os.ReadDir(filepath.Join(s.dir, HistoryDir, id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: history %s: %w", id, err)
	}

	labels := make([]string, 0, len(entries))
	for _, e := range entries {
		label, ok := strings.CutSuffix(e.Name(), ".json")
		if e.IsDir() || !ok {
			continue
		}
		if _, err := utils.ParseSlotLabel(label); err != nil {
			continue
		}
		labels = append(labels, label)
	}
	// Labels are zero-padded, so lexical order is chronological.
	sort.Sort(sort.Reverse(sort.StringSlice(labels)))
	return labels, nil
}

// Snapshot reads one historical record.
func (s *FileStore) Snapshot(id, label string) (models.AnalysisRecord, error) {
	var rec models.AnalysisRecord
	if !utils.IsValidEntityID(id) {
		return rec, ErrNotFound
	}
	if _, err := utils.ParseSlotLabel(label); err != nil {
		return rec, ErrNotFound
	}
	err := readJSON(s.historyPath(id, label), &rec)
	return rec, err
}

func (s *FileStore) latestPath(id string) string {
	return filepath.Join(s.dir, LatestDir, id+".json")
}

func (s *FileStore) historyPath(id, label string) string {
	return filepath.Join(s.dir, HistoryDir, id, label+".json")
}

// ── Helpers ──

// writeJSON writes v as two-space indented JSON through a temp file in the
// target directory followed by a rename, so readers never see a partial file.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", filepath.Base(path), err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("store: mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("store: create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("store: write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("store: sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("store: chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("store: rename %s: %w", path, err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("store: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("store: decode %s: %w", path, err)
	}
	return nil
}

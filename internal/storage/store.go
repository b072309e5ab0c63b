// Package storage persists control runs: one directory per run holding
// metadata.json and cycles.csv.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/pamjoint/internal/cycle"
)

const (
	metadataFile = "metadata.json"
	cyclesFile   = "cycles.csv"
)

var (
	ErrRunID    = errors.New("storage: invalid run id")
	ErrNotFound = errors.New("storage: run not found")
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) Dir() string { return s.baseDir }

type RunMetadata struct {
	ID         string             `json:"id"`
	Mode       string             `json:"mode"`
	Preset     string             `json:"preset,omitempty"`
	Timestamp  time.Time          `json:"timestamp"`
	Start      time.Time          `json:"start"`
	Seed       int64              `json:"seed,omitempty"`
	Period     float64            `json:"period_s"`
	Duration   float64            `json:"duration_s"`
	Cycles     int                `json:"cycles"`
	FailSafe   string             `json:"fail_safe"`
	Integrator string             `json:"integrator,omitempty"`
	Metrics    map[string]float64 `json:"metrics"`
}

func newRunID(mode string, now time.Time) string {
	return fmt.Sprintf("%s_%s_%s", mode, now.Format("20060102T150405"), uuid.NewString()[:8])
}

// Save writes a run and returns its id. ID, Timestamp, Start, Cycles and
// Duration are filled in from the reports.
func (s *Store) Save(meta RunMetadata, reports []cycle.Report) (string, error) {
	now := time.Now()
	if meta.Mode == "" {
		meta.Mode = "run"
	}
	meta.ID = newRunID(meta.Mode, now)
	meta.Timestamp = now
	meta.Cycles = len(reports)
	if len(reports) > 0 {
		meta.Start = reports[0].Time
		meta.Duration = reports[len(reports)-1].Time.Sub(meta.Start).Seconds() + meta.Period
	}

	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	metaFile, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, cyclesFile))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	if err := WriteCSV(csvFile, meta.Start, reports); err != nil {
		return "", fmt.Errorf("storage: write cycles: %w", err)
	}
	return meta.ID, nil
}

// List returns every readable run, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) runDir(runID string) (string, error) {
	if runID == "" || runID == "." || runID == ".." || strings.ContainsAny(runID, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrRunID, runID)
	}
	return filepath.Join(s.baseDir, runID), nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	dir, err := s.runDir(runID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, metadataFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("storage: %s: %w", runID, err)
	}
	return &meta, nil
}

// LoadCycles reads the cycle reports of a run back.
func (s *Store) LoadCycles(runID string) ([]cycle.Report, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}
	dir, _ := s.runDir(runID)

	file, err := os.Open(filepath.Join(dir, cyclesFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ReadCSV(file, meta.Start)
}

// Latest returns the most recent run, or ErrNotFound for an empty store.
func (s *Store) Latest() (*RunMetadata, error) {
	runs, err := s.List()
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrNotFound
	}
	return &runs[len(runs)-1], nil
}

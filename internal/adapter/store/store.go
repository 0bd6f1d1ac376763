package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/plutonik-a/berlin-wastewater-dashboard/internal/domain"
)

// Store persists the raw dataset as one JSON document on disk. The document
// is the same top-level array the health API delivers, so the dashboard's
// static file serving can expose it unchanged.
type Store struct {
	path   string
	logger *slog.Logger
}

// New creates a Store writing to path.
func New(path string, logger *slog.Logger) *Store {
	return &Store{path: path, logger: logger}
}

// Load reads the persisted dataset. A missing file is an empty dataset, not
// an error; a structurally invalid document (top level not an array) is.
func (s *Store) Load() ([]domain.RawSample, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.logger.Info("no persisted dataset, starting empty", "path", s.path)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}

	samples, err := domain.DecodeDataset(data)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", s.path, err)
	}
	return samples, nil
}

// Save writes the dataset atomically: marshal to a temp file in the target
// directory, then rename over the destination.
func (s *Store) Save(samples []domain.RawSample) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create dataset dir: %w", err)
	}

	data, err := json.MarshalIndent(samples, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal dataset: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".dataset-*.json")
	if err != nil {
		return fmt.Errorf("create temp dataset: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp dataset: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp dataset: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace dataset: %w", err)
	}
	return nil
}


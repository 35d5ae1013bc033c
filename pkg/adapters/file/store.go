package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aretw0/kiln/pkg/domain"
)

// DefaultPath is where fingerprints are kept when no path is configured.
var DefaultPath = filepath.Join("build", ".kiln", "fingerprints.json")

// document is the on-disk layout. Version guards future format changes.
type document struct {
	Version int                           `json:"version"`
	Records map[string]domain.Fingerprint `json:"records"`
}

const formatVersion = 1

// Store implements ports.FingerprintStore as a single JSON file.
type Store struct {
	Path string
}

// New creates a new Store at path.
// If path is empty, it defaults to DefaultPath.
func New(path string) *Store {
	if path == "" {
		path = DefaultPath
	}
	return &Store{Path: path}
}

// Load reads every fingerprint. A missing file is an empty store.
func (s *Store) Load(ctx context.Context) (map[string]domain.Fingerprint, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]domain.Fingerprint{}, nil
		}
		return nil, fmt.Errorf("failed to read fingerprint file: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrStoreCorrupted, s.Path, err)
	}
	if doc.Version != formatVersion {
		return nil, fmt.Errorf("%w: %s: unsupported version %d", domain.ErrStoreCorrupted, s.Path, doc.Version)
	}
	if doc.Records == nil {
		doc.Records = map[string]domain.Fingerprint{}
	}
	return doc.Records, nil
}

// Save writes the fingerprints atomically.
// It writes to a temporary file first, syncs via fsync, and then renames it to the destination.
func (s *Store) Save(ctx context.Context, records map[string]domain.Fingerprint) error {
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to ensure fingerprint directory: %w", err)
	}

	data, err := json.MarshalIndent(document{Version: formatVersion, Records: records}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal fingerprints: %w", err)
	}

	// Same directory, so the rename stays on one filesystem.
	tmpFile, err := os.CreateTemp(dir, "tmp-fingerprints-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Windows cannot rename an open file.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// On Windows, os.Rename fails if dest exists.
	if _, err := os.Stat(s.Path); err == nil {
		if err := os.Remove(s.Path); err != nil {
			return fmt.Errorf("failed to remove existing fingerprint file: %w", err)
		}
	}
	if err := os.Rename(tmpPath, s.Path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

package disk

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"
)

const manifestFile = "manifest.json"

type manifest struct {
	Name        string    `json:"name"`
	Version     int       `json:"version"`
	Collections []string  `json:"collections"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (m *manifest) has(collection string) bool {
	return slices.Contains(m.Collections, collection)
}

func (m *manifest) add(collection string) {
	if !m.has(collection) {
		m.Collections = append(m.Collections, collection)
		slices.Sort(m.Collections)
	}
}

// readManifest returns an empty manifest (version 0) when none exists yet.
func readManifest(dbDir string) (*manifest, error) {
	b, err := os.ReadFile(filepath.Join(dbDir, manifestFile))
	if errors.Is(err, os.ErrNotExist) {
		return &manifest{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("disk: read manifest: %w", err)
	}
	var m manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("disk: parse manifest: %w", err)
	}
	return &m, nil
}

func writeManifest(dbDir string, m *manifest) error {
	m.UpdatedAt = time.Now().UTC()
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("disk: encode manifest: %w", err)
	}
	return writeAtomic(dbDir, filepath.Join(dbDir, manifestFile), b)
}

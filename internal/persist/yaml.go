package persist

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	perrors "github.com/meow-stack/chainplan/internal/errors"
	"github.com/meow-stack/chainplan/internal/store"
)

// YAMLPersister keeps the snapshot in one YAML file, written atomically.
type YAMLPersister struct {
	path string
}

// NewYAMLPersister creates the parent directory and recovers a write that was
// interrupted between temp file and rename.
func NewYAMLPersister(path string) (*YAMLPersister, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating state dir: %w", err)
	}
	recoverInterruptedWrite(path)
	return &YAMLPersister{path: path}, nil
}

// recoverInterruptedWrite promotes an orphaned temp file when the main file
// is missing, and deletes it otherwise.
func recoverInterruptedWrite(path string) {
	tmpPath := path + ".tmp"
	if _, err := os.Stat(tmpPath); err != nil {
		return
	}
	if _, err := os.Stat(path); err == nil {
		os.Remove(tmpPath)
		return
	}
	os.Rename(tmpPath, path)
}

// Load implements Persister.
func (p *YAMLPersister) Load(ctx context.Context) (*store.Snapshot, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &store.Snapshot{}, nil
		}
		if os.IsPermission(err) {
			return nil, perrors.IOPermissionDenied(p.path, err)
		}
		return nil, perrors.IOReadError(p.path, err)
	}

	var snap store.Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, perrors.IOReadError(p.path, fmt.Errorf("parsing snapshot: %w", err))
	}
	return &snap, nil
}

// Save implements Persister (write-then-rename).
func (p *YAMLPersister) Save(ctx context.Context, snap *store.Snapshot) error {
	data, err := yaml.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}

	tmpPath := p.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return perrors.IOWriteError(tmpPath, err)
	}
	if err := os.Rename(tmpPath, p.path); err != nil {
		os.Remove(tmpPath)
		return perrors.IOWriteError(p.path, err)
	}
	return nil
}

// Close implements Persister.
func (p *YAMLPersister) Close() error {
	return nil
}

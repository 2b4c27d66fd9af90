// Package persist keeps store snapshots between chainplan invocations.
package persist

import (
	"context"
	"fmt"

	"github.com/meow-stack/chainplan/internal/config"
	"github.com/meow-stack/chainplan/internal/store"
)

// Persister loads and saves store snapshots.
type Persister interface {
	// Load returns the last saved snapshot, or an empty one if none exists.
	Load(ctx context.Context) (*store.Snapshot, error)
	Save(ctx context.Context, snap *store.Snapshot) error
	Close() error
}

// Open returns the persister selected by cfg.
func Open(cfg *config.Config, baseDir string) (Persister, error) {
	path := cfg.PersistencePath(baseDir)
	switch cfg.Persistence.Driver {
	case config.PersistenceYAML:
		return NewYAMLPersister(path)
	case config.PersistenceSQLite:
		return NewSQLitePersister(path)
	default:
		return nil, fmt.Errorf("unknown persistence driver %q", cfg.Persistence.Driver)
	}
}

// LoadInto restores the saved snapshot into st.
func LoadInto(ctx context.Context, p Persister, st *store.Store) error {
	snap, err := p.Load(ctx)
	if err != nil {
		return err
	}
	st.Restore(snap)
	return nil
}

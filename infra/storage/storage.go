// Package storage persists the tracking store as a single document, either
// as a JSON file replaced atomically or as one row of a SQLite database.
package storage

import (
	"fmt"
	"io"

	"github.com/kilianp07/porttrack/core/tracker"
)

// Backends supported by Open.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Config selects the storage backend.
type Config struct {
	// Backend is "json" or "sqlite".
	Backend string `json:"backend"`
	// Path is the file location of the store.
	Path string `json:"path"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = BackendJSON
	}
	if c.Path == "" {
		switch c.Backend {
		case BackendSQLite:
			c.Path = "data/ship_tracker.db"
		default:
			c.Path = "data/ship_tracker.json"
		}
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.Backend != BackendJSON && c.Backend != BackendSQLite {
		return fmt.Errorf("unknown storage backend %s", c.Backend)
	}
	if c.Path == "" {
		return fmt.Errorf("storage path is required")
	}
	return nil
}

// Store is a tracker.Persister holding resources.
type Store interface {
	tracker.Persister
	io.Closer
}

// Open creates the store described by cfg.
func Open(cfg Config) (Store, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case BackendSQLite:
		return NewSQLiteStore(cfg.Path)
	default:
		return NewFileStore(cfg.Path)
	}
}

package history

import "fmt"

// Backends accepted by Config.
const (
	BackendNone   = "none"
	BackendJSONL  = "jsonl"
	BackendSQLite = "sqlite"
)

// Config selects and configures the history store.
type Config struct {
	Backend    string `json:"backend"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// SetDefaults applies default values.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = BackendJSONL
	}
	if c.Path == "" {
		switch c.Backend {
		case BackendSQLite:
			c.Path = "data/history.db"
		default:
			c.Path = "data/history.jsonl"
		}
	}
	if c.MaxSizeMB <= 0 {
		c.MaxSizeMB = 10
	}
	if c.MaxBackups <= 0 {
		c.MaxBackups = 3
	}
	if c.MaxAgeDays <= 0 {
		c.MaxAgeDays = 28
	}
}

// Validate checks the backend name.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendNone, BackendJSONL, BackendSQLite:
		return nil
	default:
		return fmt.Errorf("history: unknown backend %q", c.Backend)
	}
}

// Open builds the Store described by cfg.
func Open(cfg Config) (Store, error) {
	switch cfg.Backend {
	case BackendNone:
		return NopStore{}, nil
	case BackendSQLite:
		return NewSQLiteStore(cfg.Path)
	case BackendJSONL, "":
		return NewRotatingJSONLStore(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
	default:
		return nil, fmt.Errorf("history: unknown backend %q", cfg.Backend)
	}
}

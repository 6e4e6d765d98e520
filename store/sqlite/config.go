package sqlite

import "fmt"

// Config configures the durable store.
type Config struct {
	// Path of the database file, e.g. "$XDG_CACHE_HOME/app/tiercache.db".
	Path string `yaml:"path"`
	// MaxBytes caps the summed value size across all namespaces; 0 disables
	// the cap. Writes beyond it fail with tiercache.ErrDurableFull.
	MaxBytes int64 `yaml:"max_bytes"`
}

func (c *Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.MaxBytes < 0 {
		return fmt.Errorf("max bytes must not be negative")
	}
	return nil
}

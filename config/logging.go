package config

import "fmt"

// LoggingConfig defines where logs go when stdout is taken by the terminal form.
type LoggingConfig struct {
	// File receives log lines while the terminal form runs. Empty discards them.
	File string `json:"file"`
	// MaxSizeMB triggers rotation of File.
	MaxSizeMB int `json:"max_size_mb"`
}

// Validate checks the rotation limit.
func (c LoggingConfig) Validate() error {
	if c.MaxSizeMB < 0 {
		return fmt.Errorf("logging: max_size_mb must be >= 0")
	}
	return nil
}

package config

import "fmt"

// DatasetConfig locates the training data and controls the held-out split.
type DatasetConfig struct {
	Path     string  `json:"path"`
	TestSize float64 `json:"test_size"`
	Seed     uint64  `json:"seed"`
}

// SetDefaults applies default values. A zero test_size selects 0.2, so the
// held-out split is never empty.
func (c *DatasetConfig) SetDefaults() {
	if c.Path == "" {
		c.Path = "ev_charging_patterns.csv"
	}
	if c.TestSize == 0 {
		c.TestSize = 0.2
	}
	if c.Seed == 0 {
		c.Seed = 42
	}
}

// Validate checks the split fraction.
func (c DatasetConfig) Validate() error {
	if c.TestSize <= 0 || c.TestSize >= 1 {
		return fmt.Errorf("dataset: test_size must be in (0, 1), got %v", c.TestSize)
	}
	return nil
}

// HTTPConfig configures the web front-end.
type HTTPConfig struct {
	Address string `json:"address"`
}

// SetDefaults applies default values.
func (c *HTTPConfig) SetDefaults() {
	if c.Address == "" {
		c.Address = ":5000"
	}
}

// Package simulator generates synthetic charging sessions with the same
// columns as the historical dataset, so the estimator can be trained and
// demonstrated without real data.
package simulator

import (
	"fmt"

	"github.com/kilianp07/evbill/core/model"
)

// Config holds parameters for dataset generation.
type Config struct {
	Rows int
	Seed uint64
	// MissingRate is the probability that a row has one blank cell.
	MissingRate float64
	// CommuterPct is the share of commuters; the rest is split between
	// casual drivers and long-distance travelers.
	CommuterPct float64
	// Tariffs maps time of day to the price per kWh in USD.
	Tariffs map[string]float64
}

// DefaultTariffs are the per-kWh prices used when Config.Tariffs is empty.
var DefaultTariffs = map[string]float64{
	model.TimeMorning:   0.24,
	model.TimeAfternoon: 0.28,
	model.TimeEvening:   0.34,
	model.TimeNight:     0.16,
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Rows <= 0 {
		c.Rows = 1000
	}
	if c.CommuterPct <= 0 {
		c.CommuterPct = 0.45
	}
	if len(c.Tariffs) == 0 {
		c.Tariffs = DefaultTariffs
	}
}

// Validate checks probabilities.
func (c Config) Validate() error {
	if c.MissingRate < 0 || c.MissingRate > 1 {
		return fmt.Errorf("missing rate must be in [0, 1], got %v", c.MissingRate)
	}
	if c.CommuterPct > 1 {
		return fmt.Errorf("commuter share must be <= 1, got %v", c.CommuterPct)
	}
	return nil
}

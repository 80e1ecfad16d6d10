package metrics

import "github.com/kilianp07/evbill/core/factory"

// Config lists the sinks to build and where Prometheus is exposed.
type Config struct {
	Sinks             []factory.ModuleConfig `json:"sinks"`
	PrometheusAddress string                 `json:"prometheus_address"`
}

// PrometheusEnabled reports whether a prometheus sink is configured.
func (c Config) PrometheusEnabled() bool {
	for _, s := range c.Sinks {
		if s.Type == "prometheus" {
			return true
		}
	}
	return false
}

// SetDefaults applies default values.
func (c *Config) SetDefaults() {
	if c.PrometheusAddress == "" {
		c.PrometheusAddress = ":2112"
	}
}

package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/evbill/core/forest"
	"github.com/kilianp07/evbill/core/history"
	"github.com/kilianp07/evbill/core/metrics"
	"github.com/kilianp07/evbill/infra/mqtt"
)

type Config struct {
	Dataset DatasetConfig  `json:"dataset"`
	Model   forest.Config  `json:"model"`
	HTTP    HTTPConfig     `json:"http"`
	MQTT    mqtt.Config    `json:"mqtt"`
	Metrics metrics.Config `json:"metrics"`
	History history.Config `json:"history"`
	Sentry  SentryConfig   `json:"sentry"`
	Logging LoggingConfig  `json:"logging"`
}

// Load reads the YAML or JSON file at path, when path is not empty, then
// applies K_ prefixed environment overrides (K_HTTP__ADDRESS sets
// http.address), defaults and validation.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser
		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	if err := k.Load(env.Provider("K_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.SetDefaults()
	return &cfg
}

// SetDefaults applies defaults to every section.
func (c *Config) SetDefaults() {
	c.Dataset.SetDefaults()
	if c.Model.Seed == 0 {
		c.Model.Seed = forest.DefaultSeed
	}
	c.Model.SetDefaults()
	c.HTTP.SetDefaults()
	c.MQTT.SetDefaults()
	c.Metrics.SetDefaults()
	c.History.SetDefaults()
	c.Sentry.SetDefaults()
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Dataset.Validate(); err != nil {
		return err
	}
	if err := c.Model.Validate(); err != nil {
		return fmt.Errorf("model: %w", err)
	}
	if err := c.MQTT.Validate(); err != nil {
		return err
	}
	if err := c.History.Validate(); err != nil {
		return err
	}
	if err := c.Sentry.Validate(); err != nil {
		return err
	}
	return c.Logging.Validate()
}

// Package scenarios runs YAML-described prediction checks against an
// estimator.
package scenarios

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/evbill/core/prediction"
)

// Input holds the seven fields exactly as a user would type them.
type Input struct {
	Energy      string `yaml:"energy"`
	Duration    string `yaml:"duration"`
	Rate        string `yaml:"rate"`
	Charger     string `yaml:"charger"`
	TimeOfDay   string `yaml:"time_of_day"`
	UserType    string `yaml:"user_type"`
	Temperature string `yaml:"temperature"`
}

// Raw converts the input to a prediction request.
func (i Input) Raw() prediction.RawRequest {
	return prediction.RawRequest{
		EnergyKWh:     i.Energy,
		DurationHours: i.Duration,
		RateKW:        i.Rate,
		ChargerType:   i.Charger,
		TimeOfDay:     i.TimeOfDay,
		UserType:      i.UserType,
		TemperatureC:  i.Temperature,
	}
}

type Case struct {
	Name        string   `yaml:"name"`
	Input       Input    `yaml:"input"`
	Min         *float64 `yaml:"min,omitempty"`
	Max         *float64 `yaml:"max,omitempty"`
	ExpectError bool     `yaml:"expect_error,omitempty"`
}

type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Cases       []Case `yaml:"cases"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if sc.Name == "" {
		sc.Name = filepath.Base(path)
	}
	for _, c := range sc.Cases {
		if c.Min != nil && c.Max != nil && *c.Min > *c.Max {
			return nil, fmt.Errorf("%s: case %q has min > max", path, c.Name)
		}
	}
	return &sc, nil
}

// LoadDir loads every *.yaml file under dir in name order.
func LoadDir(dir string) ([]*Scenario, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	out := make([]*Scenario, 0, len(files))
	for _, f := range files {
		sc, err := Load(f)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, nil
}

package prediction

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kilianp07/evbill/core/model"
)

// ErrInvalidInput marks a request that could not be parsed.
var ErrInvalidInput = errors.New("invalid input")

// RawRequest carries the seven fields as typed into a form.
type RawRequest struct {
	EnergyKWh     string `json:"energy_kwh"`
	DurationHours string `json:"duration_hours"`
	RateKW        string `json:"rate_kw"`
	ChargerType   string `json:"charger_type"`
	TimeOfDay     string `json:"time_of_day"`
	UserType      string `json:"user_type"`
	TemperatureC  string `json:"temperature_c"`
}

// ParseRequest converts raw into a Request. Numeric fields must parse as
// finite floats; categorical fields are trimmed and taken verbatim.
func ParseRequest(raw RawRequest) (model.Request, error) {
	var (
		r   model.Request
		err error
	)
	if r.EnergyKWh, err = parseNumber("energy_kwh", raw.EnergyKWh); err != nil {
		return r, err
	}
	if r.DurationHours, err = parseNumber("duration_hours", raw.DurationHours); err != nil {
		return r, err
	}
	if r.RateKW, err = parseNumber("rate_kw", raw.RateKW); err != nil {
		return r, err
	}
	if r.TemperatureC, err = parseNumber("temperature_c", raw.TemperatureC); err != nil {
		return r, err
	}
	r.ChargerType = strings.TrimSpace(raw.ChargerType)
	r.TimeOfDay = strings.TrimSpace(raw.TimeOfDay)
	r.UserType = strings.TrimSpace(raw.UserType)
	return r, nil
}

func parseNumber(field, v string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrInvalidInput, field, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %s: not a finite number: %q", ErrInvalidInput, field, v)
	}
	return f, nil
}

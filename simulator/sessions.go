package simulator

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"strconv"

	"github.com/kilianp07/evbill/core/model"
)

var chargerRates = map[string][2]float64{
	model.ChargerLevel1: {1.4, 3.8},
	model.ChargerLevel2: {6.0, 19.2},
	model.ChargerDCFast: {40, 150},
}

var chargerPremium = map[string]float64{
	model.ChargerLevel1: 1.0,
	model.ChargerLevel2: 1.1,
	model.ChargerDCFast: 1.6,
}

// Row is a generated session plus the index of a blanked cell, or -1.
type Row struct {
	model.Session
	Missing int
}

// Generate produces cfg.Rows sessions. The output depends only on cfg.
func Generate(cfg Config) ([]Row, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rnd := rand.New(rand.NewPCG(cfg.Seed, 0x5e55))
	rows := make([]Row, cfg.Rows)
	for i := range rows {
		rows[i] = Row{Session: session(rnd, cfg), Missing: -1}
		if cfg.MissingRate > 0 && rnd.Float64() < cfg.MissingRate {
			rows[i].Missing = rnd.IntN(len(header))
		}
	}
	return rows, nil
}

func session(rnd *rand.Rand, cfg Config) model.Session {
	charger := model.ChargerTypes[rnd.IntN(len(model.ChargerTypes))]
	tod := model.TimesOfDay[rnd.IntN(len(model.TimesOfDay))]
	user := model.UserCasualDriver
	switch p := rnd.Float64(); {
	case p < cfg.CommuterPct:
		user = model.UserCommuter
	case p < cfg.CommuterPct+(1-cfg.CommuterPct)/2:
		user = model.UserLongDistance
	}

	bounds := chargerRates[charger]
	rate := bounds[0] + rnd.Float64()*(bounds[1]-bounds[0])
	duration := 0.25 + rnd.Float64()*3.75
	if user == model.UserLongDistance {
		duration *= 0.6
	}
	temp := -10 + rnd.Float64()*45
	// cold batteries accept less energy
	efficiency := 0.85 - math.Max(0, 5-temp)*0.01
	energy := math.Min(rate*duration*efficiency, 100)

	tariff := cfg.Tariffs[tod]
	if tariff == 0 {
		tariff = DefaultTariffs[tod]
	}
	cost := energy*tariff*chargerPremium[charger] + rnd.NormFloat64()*0.5
	if user == model.UserCasualDriver {
		cost += 1.5
	}
	cost = math.Max(cost, 0.5)

	return model.Session{
		Request: model.Request{
			EnergyKWh:     round(energy, 2),
			DurationHours: round(duration, 2),
			RateKW:        round(rate, 2),
			ChargerType:   charger,
			TimeOfDay:     tod,
			UserType:      user,
			TemperatureC:  round(temp, 1),
		},
		CostUSD: round(cost, 2),
	}
}

func round(v float64, digits int) float64 {
	p := math.Pow10(digits)
	return math.Round(v*p) / p
}

var header = []string{
	model.ColumnEnergy,
	model.ColumnDuration,
	model.ColumnRate,
	model.ColumnChargerType,
	model.ColumnTimeOfDay,
	model.ColumnUserType,
	model.ColumnTemperature,
	model.ColumnCost,
}

func (r Row) record() []string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	rec := []string{
		f(r.EnergyKWh),
		f(r.DurationHours),
		f(r.RateKW),
		r.ChargerType,
		r.TimeOfDay,
		r.UserType,
		f(r.TemperatureC),
		f(r.CostUSD),
	}
	if r.Missing >= 0 && r.Missing < len(rec) {
		rec[r.Missing] = ""
	}
	return rec
}

// WriteCSV writes rows with the dataset headers.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r.record()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// LoadTariffs reads a time-of-day price table from JSON, e.g.
// {"Night": 0.12, "Evening": 0.4}. Unknown keys are rejected.
func LoadTariffs(data []byte) (map[string]float64, error) {
	var m map[string]float64
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(model.TimesOfDay))
	for _, t := range model.TimesOfDay {
		known[t] = true
	}
	for k, v := range m {
		if !known[k] {
			return nil, fmt.Errorf("unknown time of day %q", k)
		}
		if v < 0 {
			return nil, fmt.Errorf("negative tariff for %s", k)
		}
	}
	return m, nil
}

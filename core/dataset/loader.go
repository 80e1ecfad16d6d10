// Package dataset reads historical charging sessions from CSV and partitions
// them into training and held-out sets.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"

	"github.com/kilianp07/evbill/core/model"
)

// ErrMissingColumn is returned when a required header is absent.
var ErrMissingColumn = errors.New("missing column")

// Stats summarises a load.
type Stats struct {
	Rows    int
	Dropped int
}

// Kept returns the number of rows that survived cleaning.
func (s Stats) Kept() int { return s.Rows - s.Dropped }

var requiredColumns = []string{
	model.ColumnEnergy,
	model.ColumnDuration,
	model.ColumnRate,
	model.ColumnChargerType,
	model.ColumnTimeOfDay,
	model.ColumnUserType,
	model.ColumnTemperature,
	model.ColumnCost,
}

// Load reads the CSV file at path.
func Load(path string) ([]model.Session, Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Stats{}, err
	}
	defer func() { _ = f.Close() }()
	return Read(f)
}

// Read parses sessions from r. Rows with a missing or unparsable value in
// any of the eight used columns are dropped.
func Read(r io.Reader) ([]model.Session, Stats, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, Stats{}, fmt.Errorf("read header: %w", err)
	}
	idx, err := columnIndex(header)
	if err != nil {
		return nil, Stats{}, err
	}

	var (
		out   []model.Session
		stats Stats
	)
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, stats, fmt.Errorf("read row %d: %w", stats.Rows+2, err)
		}
		stats.Rows++
		s, ok := parseRow(row, idx)
		if !ok {
			stats.Dropped++
			continue
		}
		out = append(out, s)
	}
	return out, stats, nil
}

func columnIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}
	for _, c := range requiredColumns {
		if _, ok := idx[c]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingColumn, c)
		}
	}
	return idx, nil
}

func parseRow(row []string, idx map[string]int) (model.Session, bool) {
	cell := func(col string) (string, bool) {
		i := idx[col]
		if i >= len(row) {
			return "", false
		}
		v := strings.TrimSpace(row[i])
		if isMissing(v) {
			return "", false
		}
		return v, true
	}
	num := func(col string) (float64, bool) {
		v, ok := cell(col)
		if !ok {
			return 0, false
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}

	var (
		s  model.Session
		ok bool
	)
	if s.EnergyKWh, ok = num(model.ColumnEnergy); !ok {
		return s, false
	}
	if s.DurationHours, ok = num(model.ColumnDuration); !ok {
		return s, false
	}
	if s.RateKW, ok = num(model.ColumnRate); !ok {
		return s, false
	}
	if s.TemperatureC, ok = num(model.ColumnTemperature); !ok {
		return s, false
	}
	if s.CostUSD, ok = num(model.ColumnCost); !ok {
		return s, false
	}
	if s.ChargerType, ok = cell(model.ColumnChargerType); !ok {
		return s, false
	}
	if s.TimeOfDay, ok = cell(model.ColumnTimeOfDay); !ok {
		return s, false
	}
	if s.UserType, ok = cell(model.ColumnUserType); !ok {
		return s, false
	}
	return s, true
}

// isMissing mirrors the default NA markers of common CSV readers.
func isMissing(v string) bool {
	switch strings.ToLower(v) {
	case "", "na", "n/a", "nan", "null", "none", "#n/a":
		return true
	}
	return false
}

// Split shuffles records with a seeded generator and returns the training
// and held-out partitions. The held-out size is ceil(testSize*n).
func Split(records []model.Session, testSize float64, seed uint64) (train, test []model.Session) {
	n := len(records)
	if n == 0 {
		return nil, nil
	}
	nTest := int(math.Ceil(testSize * float64(n)))
	if nTest >= n {
		nTest = n - 1
	}
	if nTest < 0 {
		nTest = 0
	}
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	rnd := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	rnd.Shuffle(n, func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })

	test = make([]model.Session, 0, nTest)
	train = make([]model.Session, 0, n-nTest)
	for i, p := range perm {
		if i < nTest {
			test = append(test, records[p])
		} else {
			train = append(train, records[p])
		}
	}
	return train, test
}

package simulator

import (
	"bytes"
	"testing"

	"github.com/kilianp07/evbill/core/dataset"
	"github.com/kilianp07/evbill/core/model"
)

func TestGenerateCount(t *testing.T) {
	rows, err := Generate(Config{Rows: 5, Seed: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 5 {
		t.Fatalf("expected 5 rows, got %d", len(rows))
	}
	for _, r := range rows {
		if r.Missing != -1 {
			t.Fatalf("no cells should be blank without a missing rate")
		}
		if r.EnergyKWh <= 0 || r.CostUSD <= 0 || r.RateKW <= 0 {
			t.Fatalf("unexpected session %+v", r.Session)
		}
	}
}

func TestGenerateDeterministic(t *testing.T) {
	a, _ := Generate(Config{Rows: 50, Seed: 42})
	b, _ := Generate(Config{Rows: 50, Seed: 42})
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("row %d differs", i)
		}
	}
	c, _ := Generate(Config{Rows: 50, Seed: 43})
	same := true
	for i := range a {
		if a[i] != c[i] {
			same = false
		}
	}
	if same {
		t.Fatalf("different seeds should yield different data")
	}
}

func TestDistribution(t *testing.T) {
	rows, _ := Generate(Config{Rows: 1000, Seed: 1, CommuterPct: 0.6})
	commuters := 0
	for _, r := range rows {
		if r.UserType == model.UserCommuter {
			commuters++
		}
	}
	if commuters < 500 || commuters > 700 {
		t.Fatalf("commuter ratio unexpected: %d", commuters)
	}
}

func TestWriteCSVRoundTrip(t *testing.T) {
	rows, err := Generate(Config{Rows: 200, Seed: 7, MissingRate: 0.1})
	if err != nil {
		t.Fatal(err)
	}
	blank := 0
	for _, r := range rows {
		if r.Missing >= 0 {
			blank++
		}
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, rows); err != nil {
		t.Fatal(err)
	}
	recs, stats, err := dataset.Read(&buf)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if stats.Rows != 200 || stats.Dropped != blank || len(recs) != 200-blank {
		t.Fatalf("stats %+v, blank %d, kept %d", stats, blank, len(recs))
	}
}

func TestLoadTariffs(t *testing.T) {
	m, err := LoadTariffs([]byte(`{"Night":0.1,"Evening":0.4}`))
	if err != nil {
		t.Fatal(err)
	}
	if m[model.TimeNight] != 0.1 {
		t.Fatalf("expected 0.1 got %f", m[model.TimeNight])
	}
	if _, err := LoadTariffs([]byte(`{"Noon":0.1}`)); err == nil {
		t.Fatal("expected unknown key error")
	}
	if _, err := LoadTariffs([]byte(`invalid`)); err == nil {
		t.Fatal("expected error")
	}
}

func TestValidate(t *testing.T) {
	if _, err := Generate(Config{MissingRate: 2}); err == nil {
		t.Fatal("expected error")
	}
}

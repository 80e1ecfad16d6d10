package scenarios

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kilianp07/evbill/core/dataset"
	"github.com/kilianp07/evbill/core/forest"
	"github.com/kilianp07/evbill/core/model"
	"github.com/kilianp07/evbill/core/pipeline"
	"github.com/kilianp07/evbill/core/prediction"
	"github.com/kilianp07/evbill/simulator"
)

func TestScenario(t *testing.T) {
	rows, err := simulator.Generate(simulator.Config{Rows: 300, Seed: 3})
	if err != nil {
		t.Fatal(err)
	}
	sessions := make([]model.Session, 0, len(rows))
	for _, r := range rows {
		sessions = append(sessions, r.Session)
	}
	train, _ := dataset.Split(sessions, 0.2, 42)
	p, err := pipeline.Train(train, forest.Config{Trees: 20, Seed: 42})
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	engine := prediction.NewService(p)

	scs, err := LoadDir(".")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(scs) == 0 {
		t.Fatal("no scenarios found")
	}
	for _, sc := range scs {
		t.Run(sc.Name, func(t *testing.T) {
			res := Run(context.Background(), engine, sc)
			for _, f := range res.Failures {
				t.Error(f)
			}
		})
	}
}

func TestRunReportsFailures(t *testing.T) {
	lo, hi := 5.0, 6.0
	sc := &Scenario{Name: "bounds", Cases: []Case{
		{Name: "in-range", Input: validInput(), Min: &lo, Max: &hi},
		{Name: "too-high", Input: validInput(), Max: &lo},
		{Name: "should-fail", Input: validInput(), ExpectError: true},
	}}
	eng := &prediction.MockEngine{Cost: 5.5}
	res := Run(context.Background(), eng, sc)
	if res.Cases != 3 || len(res.Failures) != 2 || res.Passed() {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Failures[0].Case != "too-high" || res.Failures[1].Case != "should-fail" {
		t.Fatalf("unexpected failures %v", res.Failures)
	}
	for _, s := range eng.Sources() {
		if s != prediction.SourceQA {
			t.Fatalf("expected qa source, got %s", s)
		}
	}
}

func TestRunEngineError(t *testing.T) {
	sc := &Scenario{Name: "err", Cases: []Case{{Name: "c", Input: validInput(), ExpectError: true}}}
	res := Run(context.Background(), &prediction.MockEngine{Err: errors.New("boom")}, sc)
	if res.Passed() {
		t.Fatal("engine failure is not an input error")
	}
}

func TestLoadRejectsInvertedBounds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	data := "cases:\n  - name: x\n    min: 3\n    max: 1\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error")
	}
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func validInput() Input {
	return Input{Energy: "10", Duration: "1", Rate: "7", Charger: "Level 2", TimeOfDay: "Morning", UserType: "Commuter", Temperature: "20"}
}

package app

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/evbill/config"
	"github.com/kilianp07/evbill/core/factory"
	"github.com/kilianp07/evbill/core/history"
	coremetrics "github.com/kilianp07/evbill/core/metrics"
	"github.com/kilianp07/evbill/core/prediction"
	"github.com/kilianp07/evbill/infra/logger"
	"github.com/kilianp07/evbill/simulator"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	rows, err := simulator.Generate(simulator.Config{Rows: 200, Seed: 9, MissingRate: 0.05})
	require.NoError(t, err)
	path := filepath.Join(dir, "sessions.csv")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, simulator.WriteCSV(f, rows))
	require.NoError(t, f.Close())

	cfg := config.Default()
	cfg.Dataset.Path = path
	cfg.Model.Trees = 10
	cfg.HTTP.Address = "127.0.0.1:0"
	cfg.History.Path = filepath.Join(dir, "history.jsonl")
	return cfg
}

func TestTrain(t *testing.T) {
	cfg := testConfig(t)
	m, err := Train(cfg, nopLogger())
	require.NoError(t, err)
	assert.Equal(t, 200, m.Stats.Rows)
	assert.Equal(t, m.Stats.Kept(), len(m.Train)+len(m.Test))
	assert.Equal(t, len(m.Test), m.Report.Rows)
	ev := m.TrainingEvent()
	assert.Equal(t, 10, ev.Trees)
	assert.Equal(t, len(m.Train), ev.TrainRows)
}

func TestTrainMissingDataset(t *testing.T) {
	cfg := config.Default()
	cfg.Dataset.Path = filepath.Join(t.TempDir(), "absent.csv")
	_, err := Train(cfg, nopLogger())
	require.Error(t, err)
}

func TestServiceServesAndRecords(t *testing.T) {
	cfg := testConfig(t)
	svc, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	form := url.Values{
		"energy": {"20"}, "duration": {"2"}, "rate": {"7.2"}, "temperature": {"18"},
		"charger": {"Level 2"}, "time": {"Evening"}, "user": {"Commuter"},
	}
	resp, err := http.PostForm("http://"+svc.WebAddr()+"/predict", form)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	form.Set("energy", "abc")
	resp, err = http.PostForm("http://"+svc.WebAddr()+"/predict", form)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("service did not stop")
	}
	require.NoError(t, svc.Close())

	store, err := history.Open(cfg.History)
	require.NoError(t, err)
	defer store.Close()
	recs, err := store.Query(context.Background(), history.Query{Source: prediction.SourceWeb})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Empty(t, recs[0].Error)
	assert.True(t, strings.Contains(recs[1].Error, "energy_kwh"))
}

func nopLogger() logger.Logger { return logger.NopLogger{} }

type closingSink struct{ closed int }

func (c *closingSink) RecordPrediction(coremetrics.PredictionEvent) error { return nil }
func (c *closingSink) Close()                                             { c.closed++ }

func TestNewClosesSinkOnFailure(t *testing.T) {
	sink := &closingSink{}
	require.NoError(t, coremetrics.RegisterMetricsSink("app-closing", func(map[string]any) (coremetrics.MetricsSink, error) {
		return sink, nil
	}))

	cfg := testConfig(t)
	cfg.Metrics.Sinks = []factory.ModuleConfig{{Type: "app-closing"}}
	cfg.Dataset.Path = filepath.Join(t.TempDir(), "absent.csv")
	_, err := New(cfg)
	require.Error(t, err)
	assert.Equal(t, 1, sink.closed, "sink closed after training failure")

	cfg = testConfig(t)
	cfg.Metrics.Sinks = []factory.ModuleConfig{{Type: "app-closing"}}
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	cfg.History.Backend = history.BackendSQLite
	cfg.History.Path = filepath.Join(blocker, "history.db")
	_, err = New(cfg)
	require.Error(t, err)
	assert.Equal(t, 2, sink.closed, "sink closed after history failure")
}

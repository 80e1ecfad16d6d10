package metrics

import (
	"time"

	"github.com/kilianp07/evbill/core/model"
)

// PredictionEvent describes one prediction request and its outcome.
type PredictionEvent struct {
	ID      string
	Source  string
	Request model.Request
	CostUSD float64
	Err     string
	Latency time.Duration
	Time    time.Time
}

// Failed reports whether the request ended in an error.
func (e PredictionEvent) Failed() bool { return e.Err != "" }

// MetricsSink records prediction events.
type MetricsSink interface {
	RecordPrediction(ev PredictionEvent) error
}

// TrainingEvent summarises a training run and its held-out evaluation.
type TrainingEvent struct {
	Rows      int
	Dropped   int
	TrainRows int
	TestRows  int
	Trees     int
	Duration  time.Duration
	MAE       float64
	RMSE      float64
	R2        float64
	Time      time.Time
}

// TrainingRecorder is implemented by sinks able to record training runs.
type TrainingRecorder interface {
	RecordTraining(ev TrainingEvent) error
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) RecordPrediction(PredictionEvent) error { return nil }
func (NopSink) RecordTraining(TrainingEvent) error     { return nil }

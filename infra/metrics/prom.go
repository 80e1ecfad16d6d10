package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/evbill/core/metrics"
)

// PromSink records prediction events in Prometheus metrics.
type PromSink struct {
	predictions *prometheus.CounterVec
	cost        *prometheus.HistogramVec
	latency     prometheus.Histogram
	trainRows   prometheus.Gauge
	trainTime   prometheus.Gauge
	heldOutMAE  prometheus.Gauge
	heldOutR2   prometheus.Gauge
}

// NewPromSink registers prediction metrics on the default Prometheus registerer.
// The Prometheus server should be started separately with StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "charging_predictions_total",
			Help: "Total number of charging cost predictions",
		}, []string{"source", "charger_type", "status"}),
		cost: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "charging_predicted_cost_usd",
			Help:    "Distribution of predicted charging costs",
			Buckets: []float64{1, 2, 5, 10, 15, 20, 30, 50, 75, 100},
		}, []string{"charger_type"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "charging_prediction_latency_seconds",
			Help:    "Time spent producing one prediction",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
		trainRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "charging_model_training_rows",
			Help: "Rows used to fit the current model",
		}),
		trainTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "charging_model_training_seconds",
			Help: "Duration of the last training run",
		}),
		heldOutMAE: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "charging_model_heldout_mae_usd",
			Help: "Mean absolute error on the held-out partition",
		}),
		heldOutR2: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "charging_model_heldout_r2",
			Help: "Coefficient of determination on the held-out partition",
		}),
	}
	var err error
	if s.predictions, err = register(reg, s.predictions); err != nil {
		return nil, err
	}
	if s.cost, err = register(reg, s.cost); err != nil {
		return nil, err
	}
	if s.latency, err = register(reg, s.latency); err != nil {
		return nil, err
	}
	for _, g := range []*prometheus.Gauge{&s.trainRows, &s.trainTime, &s.heldOutMAE, &s.heldOutR2} {
		if *g, err = register(reg, *g); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// register returns the already registered collector when c is a duplicate.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordPrediction implements coremetrics.MetricsSink.
func (s *PromSink) RecordPrediction(ev coremetrics.PredictionEvent) error {
	status := "ok"
	if ev.Failed() {
		status = "error"
	}
	s.predictions.WithLabelValues(ev.Source, ev.Request.ChargerType, status).Inc()
	if !ev.Failed() {
		s.cost.WithLabelValues(ev.Request.ChargerType).Observe(ev.CostUSD)
		s.latency.Observe(ev.Latency.Seconds())
	}
	return nil
}

// RecordTraining implements coremetrics.TrainingRecorder.
func (s *PromSink) RecordTraining(ev coremetrics.TrainingEvent) error {
	s.trainRows.Set(float64(ev.TrainRows))
	s.trainTime.Set(ev.Duration.Seconds())
	s.heldOutMAE.Set(ev.MAE)
	s.heldOutR2.Set(ev.R2)
	return nil
}

package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/evbill/core/metrics"
	"github.com/kilianp07/evbill/infra/logger"
)

// InfluxSink writes prediction events to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordPrediction writes one charging_cost_prediction point.
func (s *InfluxSink) RecordPrediction(ev coremetrics.PredictionEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, predictionPoint(ev))
}

func predictionPoint(ev coremetrics.PredictionEvent) *write.Point {
	r := ev.Request
	p := write.NewPointWithMeasurement("charging_cost_prediction").
		AddTag("source", ev.Source).
		AddTag("charger_type", r.ChargerType).
		AddTag("time_of_day", r.TimeOfDay).
		AddTag("user_type", r.UserType).
		AddField("request_id", ev.ID).
		AddField("energy_kwh", round3(r.EnergyKWh)).
		AddField("duration_hours", round3(r.DurationHours)).
		AddField("rate_kw", round3(r.RateKW)).
		AddField("temperature_c", round3(r.TemperatureC)).
		AddField("cost_usd", round3(ev.CostUSD)).
		AddField("latency_ms", round3(ev.Latency.Seconds()*1000))
	if ev.Failed() {
		p = p.AddField("error", ev.Err)
	}
	return p.SetTime(ev.Time)
}

// RecordTraining writes one charging_model_training point.
func (s *InfluxSink) RecordTraining(ev coremetrics.TrainingEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("charging_model_training").
		AddField("rows", ev.Rows).
		AddField("dropped", ev.Dropped).
		AddField("train_rows", ev.TrainRows).
		AddField("test_rows", ev.TestRows).
		AddField("trees", ev.Trees).
		AddField("duration_ms", round3(ev.Duration.Seconds()*1000)).
		AddField("mae", round3(ev.MAE)).
		AddField("rmse", round3(ev.RMSE)).
		AddField("r2", round3(ev.R2)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the client.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}

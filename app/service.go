// Package app assembles the estimator and its front-ends from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/evbill/api/pricing"
	"github.com/kilianp07/evbill/config"
	"github.com/kilianp07/evbill/core/dataset"
	"github.com/kilianp07/evbill/core/history"
	coremetrics "github.com/kilianp07/evbill/core/metrics"
	"github.com/kilianp07/evbill/core/model"
	coremon "github.com/kilianp07/evbill/core/monitoring"
	"github.com/kilianp07/evbill/core/pipeline"
	"github.com/kilianp07/evbill/core/prediction"
	"github.com/kilianp07/evbill/infra/logger"
	"github.com/kilianp07/evbill/infra/metrics"
	"github.com/kilianp07/evbill/infra/monitoring"
	"github.com/kilianp07/evbill/infra/mqtt"
	"github.com/kilianp07/evbill/internal/eventbus"
	"github.com/kilianp07/evbill/ui/desktop"
)

// Model is a trained pipeline with its data statistics and held-out report.
type Model struct {
	Pipeline *pipeline.Pipeline
	Stats    dataset.Stats
	Train    []model.Session
	Test     []model.Session
	Report   pipeline.Report
}

// Train loads the dataset named in cfg, splits it, fits the pipeline and
// evaluates it on the held-out part.
func Train(cfg *config.Config, log logger.Logger) (*Model, error) {
	recs, stats, err := dataset.Load(cfg.Dataset.Path)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	log.Infof("loaded %d sessions from %s", stats.Kept(), cfg.Dataset.Path)
	log.Debugf("dropped %d incomplete rows", stats.Dropped)

	train, test := dataset.Split(recs, cfg.Dataset.TestSize, cfg.Dataset.Seed)
	p, err := pipeline.Train(train, cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}
	rep := p.Evaluate(test)
	info := p.Info()
	log.Infow("model trained", map[string]any{
		"train_rows": len(train),
		"test_rows":  len(test),
		"trees":      info.Trees,
		"duration":   info.TrainingTime.String(),
		"mae":        rep.MAE,
		"rmse":       rep.RMSE,
		"r2":         rep.R2,
	})
	return &Model{Pipeline: p, Stats: stats, Train: train, Test: test, Report: rep}, nil
}

// TrainingEvent summarises m for metrics sinks.
func (m *Model) TrainingEvent() coremetrics.TrainingEvent {
	return coremetrics.TrainingEvent{
		Rows:      m.Stats.Rows,
		Dropped:   m.Stats.Dropped,
		TrainRows: len(m.Train),
		TestRows:  len(m.Test),
		Trees:     m.Pipeline.Info().Trees,
		Duration:  m.Pipeline.Info().TrainingTime,
		MAE:       m.Report.MAE,
		RMSE:      m.Report.RMSE,
		R2:        m.Report.R2,
		Time:      time.Now(),
	}
}

// Service owns the trained estimator and everything that records or serves
// its predictions.
type Service struct {
	cfg      *config.Config
	Model    *Model
	Engine   *prediction.Service
	sink     coremetrics.MetricsSink
	store    history.Store
	bus      *eventbus.Bus[coremetrics.PredictionEvent]
	events   <-chan coremetrics.PredictionEvent
	recorder *history.Recorder
	web      *pricing.Server
	log      logger.Logger
}

// New trains the model and prepares the recording pipeline. Front-ends start
// with Run or RunDesktop.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		logg.Warnf("sentry disabled: %v", err)
		mon = coremon.NopMonitor{}
	}
	coremon.Init(mon)

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	m, err := Train(cfg, logg)
	if err != nil {
		closeSink(sink)
		coremon.CaptureException(err, map[string]string{"module": "training"})
		return nil, err
	}
	if tr, ok := sink.(coremetrics.TrainingRecorder); ok {
		if err := tr.RecordTraining(m.TrainingEvent()); err != nil {
			logg.Warnf("record training: %v", err)
		}
	}

	store, err := history.Open(cfg.History)
	if err != nil {
		closeSink(sink)
		return nil, fmt.Errorf("history: %w", err)
	}

	bus := eventbus.New[coremetrics.PredictionEvent](256)
	svc := &Service{
		cfg:      cfg,
		Model:    m,
		sink:     sink,
		store:    store,
		bus:      bus,
		events:   bus.Subscribe(),
		recorder: history.NewRecorder(sink, store, logger.New("history")),
		log:      logg,
	}
	svc.Engine = prediction.NewService(m.Pipeline,
		prediction.WithPublisher(bus),
		prediction.WithLogger(logger.New("prediction")),
		prediction.WithReport(m.Report),
	)
	svc.web = pricing.NewServer(cfg.HTTP.Address, svc.Engine, svc.Engine, store)
	return svc, nil
}

// WebAddr blocks until the web server is bound and returns its address.
func (s *Service) WebAddr() string { return s.web.Addr() }

// Run serves the web front-end and, when configured, the MQTT responder and
// the Prometheus endpoint. It blocks until ctx is canceled or a server fails.
func (s *Service) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.recorder.Run(ctx, s.events)
		return nil
	})
	g.Go(func() error { return s.web.Start(ctx) })
	if s.cfg.MQTT.Enabled {
		responder := mqtt.NewQuoteResponder(s.cfg.MQTT, s.Engine)
		g.Go(func() error { return responder.Run(ctx) })
	}
	if s.cfg.Metrics.PrometheusEnabled() {
		g.Go(func() error {
			s.log.Infof("prometheus metrics on %s/metrics", s.cfg.Metrics.PrometheusAddress)
			return metrics.StartPromServer(ctx, s.cfg.Metrics.PrometheusAddress)
		})
	}
	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		coremon.CaptureException(err, map[string]string{"module": "service"})
		return err
	}
	return nil
}

// RunDesktop runs the terminal form in the foreground while predictions are
// recorded in the background.
func (s *Service) RunDesktop(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.recorder.Run(ctx, s.events)
	}()
	err := desktop.Run(ctx, s.Engine)
	cancel()
	<-done
	return err
}

// Close drains pending events and releases the store and sinks.
func (s *Service) Close() error {
	s.bus.Close()
	for ev := range s.events {
		s.recorder.Record(context.Background(), ev)
	}
	closeSink(s.sink)
	coremon.Flush(2 * time.Second)
	return s.store.Close()
}

func closeSink(sink coremetrics.MetricsSink) {
	if c, ok := sink.(interface{ Close() }); ok {
		c.Close()
	}
}

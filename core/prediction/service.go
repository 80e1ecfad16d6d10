package prediction

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/evbill/core/logger"
	"github.com/kilianp07/evbill/core/metrics"
	"github.com/kilianp07/evbill/core/model"
	"github.com/kilianp07/evbill/core/pipeline"
)

// Publisher receives one event per prediction attempt.
type Publisher interface {
	Publish(ev metrics.PredictionEvent)
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sets the event publisher.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.pub = p }
}

// WithLogger sets the logger used for failed predictions.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithReport attaches the held-out evaluation of the pipeline.
func WithReport(r pipeline.Report) Option {
	return func(s *Service) { s.report = r }
}

// Service is the Engine backed by a fitted pipeline. It is safe for
// concurrent use since the pipeline is read-only.
type Service struct {
	p      *pipeline.Pipeline
	pub    Publisher
	log    logger.Logger
	report pipeline.Report
	now    func() time.Time
}

// NewService wraps a fitted pipeline.
func NewService(p *pipeline.Pipeline, opts ...Option) *Service {
	s := &Service{p: p, log: logger.NopLogger{}, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// PredictCost implements Engine.
func (s *Service) PredictCost(ctx context.Context, req model.Request) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	start := s.now()
	cost := Round(s.p.Predict(req))
	s.publish(ctx, req, cost, nil, start)
	return cost, nil
}

// PredictRaw implements Engine.
func (s *Service) PredictRaw(ctx context.Context, raw RawRequest) (model.Request, float64, error) {
	start := s.now()
	req, err := ParseRequest(raw)
	if err != nil {
		s.log.Warnf("rejecting %s request: %v", SourceFrom(ctx), err)
		s.publish(ctx, req, 0, err, start)
		return req, 0, err
	}
	cost, err := s.PredictCost(ctx, req)
	return req, cost, err
}

// Info describes the fitted pipeline.
func (s *Service) Info() pipeline.Info { return s.p.Info() }

// Report returns the held-out evaluation attached with WithReport.
func (s *Service) Report() pipeline.Report { return s.report }

func (s *Service) publish(ctx context.Context, req model.Request, cost float64, err error, start time.Time) {
	if s.pub == nil {
		return
	}
	ev := metrics.PredictionEvent{
		ID:      uuid.NewString(),
		Source:  SourceFrom(ctx),
		Request: req,
		CostUSD: cost,
		Latency: s.now().Sub(start),
		Time:    start,
	}
	if err != nil {
		ev.Err = err.Error()
	}
	s.pub.Publish(ev)
}

package history

import (
	"context"

	"github.com/kilianp07/evbill/core/logger"
	"github.com/kilianp07/evbill/core/metrics"
)

// Recorder forwards prediction events to a metrics sink and a Store.
// Failures are logged and never propagated.
type Recorder struct {
	sink  metrics.MetricsSink
	store Store
	log   logger.Logger
}

// NewRecorder returns a Recorder. A nil sink or store is skipped.
func NewRecorder(sink metrics.MetricsSink, store Store, log logger.Logger) *Recorder {
	if sink == nil {
		sink = metrics.NopSink{}
	}
	if store == nil {
		store = NopStore{}
	}
	return &Recorder{sink: sink, store: store, log: log}
}

// Record handles a single event.
func (r *Recorder) Record(ctx context.Context, ev metrics.PredictionEvent) {
	if err := r.sink.RecordPrediction(ev); err != nil {
		r.log.Warnf("metrics sink: %v", err)
	}
	if err := r.store.Append(ctx, FromEvent(ev)); err != nil {
		r.log.Warnf("history append %s: %v", ev.ID, err)
	}
}

// Run consumes events until ctx is done or events is closed.
func (r *Recorder) Run(ctx context.Context, events <-chan metrics.PredictionEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			r.Record(ctx, ev)
		}
	}
}

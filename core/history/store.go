// Package history persists prediction outcomes and answers simple queries
// over them.
package history

import (
	"context"
	"time"

	"github.com/kilianp07/evbill/core/metrics"
	"github.com/kilianp07/evbill/core/model"
)

// Record captures one prediction request and its result.
type Record struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Source    string        `json:"source"`
	Request   model.Request `json:"request"`
	CostUSD   float64       `json:"cost_usd"`
	Error     string        `json:"error,omitempty"`
	LatencyMS float64       `json:"latency_ms"`
}

// FromEvent converts a prediction event into a Record.
func FromEvent(ev metrics.PredictionEvent) Record {
	return Record{
		ID:        ev.ID,
		Timestamp: ev.Time,
		Source:    ev.Source,
		Request:   ev.Request,
		CostUSD:   ev.CostUSD,
		Error:     ev.Err,
		LatencyMS: float64(ev.Latency) / float64(time.Millisecond),
	}
}

// Query defines filters for retrieving records. Zero fields match all.
// Limit keeps only the most recent records.
type Query struct {
	Start       time.Time
	End         time.Time
	Source      string
	ChargerType string
	Limit       int
}

// Match reports whether r passes the filters of q.
func (q Query) Match(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.Source != "" && r.Source != q.Source {
		return false
	}
	if q.ChargerType != "" && r.Request.ChargerType != q.ChargerType {
		return false
	}
	return true
}

func (q Query) limit(recs []Record) []Record {
	if q.Limit > 0 && len(recs) > q.Limit {
		return recs[len(recs)-q.Limit:]
	}
	return recs
}

// Store persists Records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// NopStore drops every record.
type NopStore struct{}

func (NopStore) Append(context.Context, Record) error           { return nil }
func (NopStore) Query(context.Context, Query) ([]Record, error) { return nil, nil }
func (NopStore) Close() error                                   { return nil }

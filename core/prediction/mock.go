package prediction

import (
	"context"
	"sync"

	"github.com/kilianp07/evbill/core/model"
)

// MockEngine returns a fixed cost, or Err, and records the requests it saw.
type MockEngine struct {
	Cost float64
	Err  error

	mu       sync.Mutex
	requests []model.Request
	sources  []string
}

// PredictCost implements Engine.
func (m *MockEngine) PredictCost(ctx context.Context, req model.Request) (float64, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.sources = append(m.sources, SourceFrom(ctx))
	m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	return m.Cost, nil
}

// PredictRaw implements Engine.
func (m *MockEngine) PredictRaw(ctx context.Context, raw RawRequest) (model.Request, float64, error) {
	req, err := ParseRequest(raw)
	if err != nil {
		return req, 0, err
	}
	cost, err := m.PredictCost(ctx, req)
	return req, cost, err
}

// Requests returns a copy of the requests received so far.
func (m *MockEngine) Requests() []model.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Request(nil), m.requests...)
}

// Sources returns the source tag of each request received so far.
func (m *MockEngine) Sources() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sources...)
}

package prediction

import (
	"context"
	"fmt"
	"math"

	"github.com/kilianp07/evbill/core/model"
)

// Engine estimates charging costs.
type Engine interface {
	// PredictCost returns the estimated cost of req in USD, rounded to cents.
	PredictCost(ctx context.Context, req model.Request) (float64, error)

	// PredictRaw parses textual form input and predicts its cost. Parse
	// failures wrap ErrInvalidInput.
	PredictRaw(ctx context.Context, raw RawRequest) (model.Request, float64, error)
}

// Round rounds v to two decimal places, halves away from zero.
func Round(v float64) float64 {
	return math.Round(v*100) / 100
}

// FormatCost renders the message shown by the front-ends.
func FormatCost(v float64) string {
	return fmt.Sprintf("Estimated Charging Cost: $%.2f", v)
}

type sourceKey struct{}

// Known request sources.
const (
	SourceWeb     = "web"
	SourceAPI     = "api"
	SourceDesktop = "desktop"
	SourceMQTT    = "mqtt"
	SourceCLI     = "cli"
	SourceQA      = "qa"
)

// WithSource tags ctx with the front-end issuing a prediction.
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

// SourceFrom returns the source stored in ctx or "unknown".
func SourceFrom(ctx context.Context) string {
	if s, ok := ctx.Value(sourceKey{}).(string); ok && s != "" {
		return s
	}
	return "unknown"
}

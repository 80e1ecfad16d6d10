// Package pipeline composes the feature encoder and the tree ensemble into a
// single fitted model.
package pipeline

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/evbill/core/encoding"
	"github.com/kilianp07/evbill/core/forest"
	"github.com/kilianp07/evbill/core/model"
)

// Pipeline is a fitted encoder and regressor. It is read-only after Train.
type Pipeline struct {
	encoder   *encoding.Encoder
	regressor *forest.Forest
	rows      int
	duration  time.Duration
}

// Train fits the encoder vocabulary on train, encodes it and fits the
// regressor. It must be called once before Predict.
func Train(train []model.Session, cfg forest.Config) (*Pipeline, error) {
	if len(train) == 0 {
		return nil, forest.ErrEmptyTrainingSet
	}
	start := time.Now()
	enc := encoding.Fit(train)
	x := enc.Transform(train)
	y := make([]float64, len(train))
	for i, s := range train {
		y[i] = s.CostUSD
	}
	reg := forest.New(cfg)
	if err := reg.Fit(x, y); err != nil {
		return nil, fmt.Errorf("fit regressor: %w", err)
	}
	return &Pipeline{
		encoder:   enc,
		regressor: reg,
		rows:      len(train),
		duration:  time.Since(start),
	}, nil
}

// Predict returns the raw, unrounded cost estimate for r.
func (p *Pipeline) Predict(r model.Request) float64 {
	return p.regressor.Predict(p.encoder.TransformOne(r))
}

// Encoder exposes the fitted encoder.
func (p *Pipeline) Encoder() *encoding.Encoder { return p.encoder }

// Info describes a fitted pipeline.
type Info struct {
	TrainingRows int                 `json:"training_rows"`
	Trees        int                 `json:"trees"`
	MaxDepth     int                 `json:"max_depth"`
	Features     []string            `json:"features"`
	Importances  map[string]float64  `json:"importances"`
	Vocabulary   map[string][]string `json:"vocabulary"`
	TrainingTime time.Duration       `json:"training_time_ns"`
}

// Info summarises the fitted state.
func (p *Pipeline) Info() Info {
	names := p.encoder.FeatureNames()
	imp := p.regressor.FeatureImportances()
	byName := make(map[string]float64, len(names))
	for i, n := range names {
		if i < len(imp) {
			byName[n] = imp[i]
		}
	}
	return Info{
		TrainingRows: p.rows,
		Trees:        p.regressor.Size(),
		MaxDepth:     p.regressor.MaxDepth(),
		Features:     names,
		Importances:  byName,
		Vocabulary:   p.encoder.Vocabulary(),
		TrainingTime: p.duration,
	}
}

// Row pairs an observed and a predicted cost.
type Row struct {
	Session   model.Session `json:"session"`
	Predicted float64       `json:"predicted"`
}

// Report holds held-out error metrics.
type Report struct {
	Rows int     `json:"rows"`
	MAE  float64 `json:"mae"`
	RMSE float64 `json:"rmse"`
	R2   float64 `json:"r2"`
	Data []Row   `json:"-"`
}

// Evaluate predicts every held-out record and computes MAE, RMSE and R².
// An empty set yields a zero report.
func (p *Pipeline) Evaluate(test []model.Session) Report {
	n := len(test)
	if n == 0 {
		return Report{}
	}
	actual := make([]float64, n)
	pred := make([]float64, n)
	rows := make([]Row, n)
	var absSum float64
	for i, s := range test {
		actual[i] = s.CostUSD
		pred[i] = p.Predict(s.Request)
		absSum += math.Abs(pred[i] - actual[i])
		rows[i] = Row{Session: s, Predicted: pred[i]}
	}
	r2 := 0.0
	if n > 1 {
		r2 = stat.RSquaredFrom(pred, actual, nil)
	}
	return Report{
		Rows: n,
		MAE:  absSum / float64(n),
		RMSE: floats.Distance(pred, actual, 2) / math.Sqrt(float64(n)),
		R2:   r2,
		Data: rows,
	}
}

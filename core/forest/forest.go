// Package forest implements a bagged ensemble of regression trees.
//
// Each tree is grown on a bootstrap sample of the training rows with its own
// generator seeded from (Seed, tree index), so a fit is reproducible and does
// not depend on how many workers grow the trees.
package forest

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrEmptyTrainingSet is returned when Fit receives no rows.
	ErrEmptyTrainingSet = errors.New("empty training set")
	// ErrDimensionMismatch is returned when X and y disagree on row count.
	ErrDimensionMismatch = errors.New("dimension mismatch")
)

// Config controls tree growth. Zero values select the defaults below.
type Config struct {
	Trees           int    `json:"trees"`
	Seed            uint64 `json:"seed"`
	MaxDepth        int    `json:"max_depth"`
	MinSamplesSplit int    `json:"min_samples_split"`
	MinSamplesLeaf  int    `json:"min_samples_leaf"`
	MaxFeatures     int    `json:"max_features"`
	Workers         int    `json:"workers"`
}

const (
	DefaultTrees = 100
	DefaultSeed  = 42
)

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Trees <= 0 {
		c.Trees = DefaultTrees
	}
	if c.MinSamplesSplit < 2 {
		c.MinSamplesSplit = 2
	}
	if c.MinSamplesLeaf < 1 {
		c.MinSamplesLeaf = 1
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
}

// Validate rejects nonsensical settings.
func (c Config) Validate() error {
	if c.MaxDepth < 0 {
		return fmt.Errorf("max_depth must be >= 0")
	}
	if c.MaxFeatures < 0 {
		return fmt.Errorf("max_features must be >= 0")
	}
	return nil
}

// Forest is an ensemble of regression trees. It is immutable after Fit and
// safe for concurrent Predict calls.
type Forest struct {
	cfg         Config
	trees       []*tree
	nFeatures   int
	importances []float64
}

// New returns an unfitted forest.
func New(cfg Config) *Forest {
	cfg.SetDefaults()
	return &Forest{cfg: cfg}
}

// Fit grows cfg.Trees trees on bootstrap samples of (x, y).
func (f *Forest) Fit(x *mat.Dense, y []float64) error {
	if x == nil || len(y) == 0 {
		return ErrEmptyTrainingSet
	}
	rows, cols := x.Dims()
	if rows != len(y) {
		return fmt.Errorf("%w: %d rows, %d targets", ErrDimensionMismatch, rows, len(y))
	}

	trees := make([]*tree, f.cfg.Trees)
	imps := make([][]float64, f.cfg.Trees)
	var g errgroup.Group
	g.SetLimit(f.cfg.Workers)
	for t := range trees {
		g.Go(func() error {
			rnd := rand.New(rand.NewPCG(f.cfg.Seed, uint64(t)))
			idx := make([]int, rows)
			for i := range idx {
				idx[i] = rnd.IntN(rows)
			}
			b := &builder{
				x:           x,
				y:           y,
				cfg:         f.cfg,
				rnd:         rnd,
				nFeatures:   cols,
				importances: make([]float64, cols),
			}
			trees[t] = b.grow(idx)
			imps[t] = b.importances
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	f.trees = trees
	f.nFeatures = cols
	f.importances = make([]float64, cols)
	for _, imp := range imps {
		if s := floats.Sum(imp); s > 0 {
			floats.AddScaled(f.importances, 1/s, imp)
		}
	}
	if s := floats.Sum(f.importances); s > 0 {
		floats.Scale(1/s, f.importances)
	}
	return nil
}

// Predict returns the mean prediction of all trees for the encoded vector x.
func (f *Forest) Predict(x []float64) float64 {
	var sum float64
	for _, t := range f.trees {
		sum += t.predict(x)
	}
	return sum / float64(len(f.trees))
}

// Size returns the number of fitted trees.
func (f *Forest) Size() int { return len(f.trees) }

// Features returns the encoded vector width seen by Fit.
func (f *Forest) Features() int { return f.nFeatures }

// MaxDepth returns the depth of the deepest fitted tree.
func (f *Forest) MaxDepth() int {
	d := 0
	for _, t := range f.trees {
		d = max(d, t.depth())
	}
	return d
}

// FeatureImportances returns the normalised mean impurity decrease of each
// feature. The slice sums to 1 unless no tree ever split.
func (f *Forest) FeatureImportances() []float64 {
	return append([]float64(nil), f.importances...)
}

// Package encoding turns charging sessions into numeric feature vectors.
//
// Categorical fields are expanded into one indicator column per category
// observed during Fit, sorted lexicographically. A category never seen during
// Fit yields an all-zero block. Numeric fields follow unchanged, in the order
// energy, duration, rate, temperature.
package encoding

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/kilianp07/evbill/core/model"
)

// Encoder holds the category vocabulary learned by Fit.
type Encoder struct {
	categories [3][]string
	index      [3]map[string]int
	offsets    [3]int
	width      int
}

// Fit learns the category vocabulary of each categorical field.
func Fit(records []model.Session) *Encoder {
	var seen [3]map[string]struct{}
	for i := range seen {
		seen[i] = make(map[string]struct{})
	}
	for _, r := range records {
		for i, v := range r.Categorical() {
			seen[i][v] = struct{}{}
		}
	}
	e := &Encoder{}
	off := 0
	for i := range seen {
		cats := make([]string, 0, len(seen[i]))
		for c := range seen[i] {
			cats = append(cats, c)
		}
		sort.Strings(cats)
		e.categories[i] = cats
		e.index[i] = make(map[string]int, len(cats))
		for j, c := range cats {
			e.index[i][c] = j
		}
		e.offsets[i] = off
		off += len(cats)
	}
	e.width = off + len(model.NumericColumns)
	return e
}

// Width returns the length of an encoded vector.
func (e *Encoder) Width() int { return e.width }

// Transform encodes records into a len(records) x Width matrix.
func (e *Encoder) Transform(records []model.Session) *mat.Dense {
	if len(records) == 0 {
		return nil
	}
	x := mat.NewDense(len(records), e.width, nil)
	for i, r := range records {
		e.encodeInto(x.RawRowView(i), r.Request)
	}
	return x
}

// TransformOne encodes a single request.
func (e *Encoder) TransformOne(r model.Request) []float64 {
	v := make([]float64, e.width)
	e.encodeInto(v, r)
	return v
}

func (e *Encoder) encodeInto(dst []float64, r model.Request) {
	for i, v := range r.Categorical() {
		if j, ok := e.index[i][v]; ok {
			dst[e.offsets[i]+j] = 1
		}
	}
	base := e.offsets[2] + len(e.categories[2])
	for i, v := range r.Numeric() {
		dst[base+i] = v
	}
}

// FeatureNames returns the column names of encoded vectors.
func (e *Encoder) FeatureNames() []string {
	names := make([]string, 0, e.width)
	for i, col := range model.CategoricalColumns {
		for _, c := range e.categories[i] {
			names = append(names, col+"="+c)
		}
	}
	return append(names, model.NumericColumns...)
}

// Vocabulary returns a copy of the learned categories keyed by column header.
func (e *Encoder) Vocabulary() map[string][]string {
	out := make(map[string][]string, 3)
	for i, col := range model.CategoricalColumns {
		out[col] = append([]string(nil), e.categories[i]...)
	}
	return out
}

// Block returns the indicator slice of column within an encoded vector.
func (e *Encoder) Block(column string, v []float64) ([]float64, error) {
	i, err := fieldIndex(column)
	if err != nil {
		return nil, err
	}
	return v[e.offsets[i] : e.offsets[i]+len(e.categories[i])], nil
}

// Decode maps an indicator block back to its category. It reports false for
// an all-zero block or a block that is not one-hot.
func (e *Encoder) Decode(column string, block []float64) (string, bool) {
	i, err := fieldIndex(column)
	if err != nil || len(block) != len(e.categories[i]) {
		return "", false
	}
	hit := -1
	for j, b := range block {
		switch b {
		case 0:
		case 1:
			if hit >= 0 {
				return "", false
			}
			hit = j
		default:
			return "", false
		}
	}
	if hit < 0 {
		return "", false
	}
	return e.categories[i][hit], true
}

func fieldIndex(column string) (int, error) {
	for i, c := range model.CategoricalColumns {
		if c == column {
			return i, nil
		}
	}
	return 0, fmt.Errorf("not a categorical column: %q", column)
}

package forest

import (
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"
)

const leaf = -1

type node struct {
	feature   int
	threshold float64
	left      int
	right     int
	value     float64
}

// tree is a fitted regression tree stored as a flat node slice; node 0 is the root.
type tree struct {
	nodes []node
}

func (t *tree) predict(x []float64) float64 {
	i := 0
	for {
		n := &t.nodes[i]
		if n.feature == leaf {
			return n.value
		}
		if x[n.feature] <= n.threshold {
			i = n.left
		} else {
			i = n.right
		}
	}
}

func (t *tree) depth() int {
	var walk func(i int) int
	walk = func(i int) int {
		n := t.nodes[i]
		if n.feature == leaf {
			return 0
		}
		return 1 + max(walk(n.left), walk(n.right))
	}
	return walk(0)
}

// builder grows one tree on a bootstrap sample using squared-error splits.
type builder struct {
	x           *mat.Dense
	y           []float64
	cfg         Config
	rnd         *rand.Rand
	nFeatures   int
	importances []float64
	nodes       []node
}

func (b *builder) grow(idx []int) *tree {
	b.build(idx, 0)
	return &tree{nodes: b.nodes}
}

func sums(y []float64, idx []int) (s, sq float64) {
	for _, i := range idx {
		s += y[i]
		sq += y[i] * y[i]
	}
	return s, sq
}

func (b *builder) build(idx []int, depth int) int {
	n := len(idx)
	s, sq := sums(b.y, idx)
	mean := s / float64(n)
	sse := sq - s*s/float64(n)

	id := len(b.nodes)
	b.nodes = append(b.nodes, node{feature: leaf, value: mean})

	if n < b.cfg.MinSamplesSplit || n < 2*b.cfg.MinSamplesLeaf ||
		(b.cfg.MaxDepth > 0 && depth >= b.cfg.MaxDepth) || sse <= 1e-12 {
		return id
	}

	feat, thr, gain, ok := b.bestSplit(idx, s, sq, sse)
	if !ok {
		return id
	}
	left := make([]int, 0, n)
	right := make([]int, 0, n)
	for _, i := range idx {
		if b.x.At(i, feat) <= thr {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	b.importances[feat] += gain

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	b.nodes[id] = node{feature: feat, threshold: thr, left: l, right: r, value: mean}
	return id
}

func (b *builder) candidates() []int {
	perm := b.rnd.Perm(b.nFeatures)
	k := b.cfg.MaxFeatures
	if k <= 0 || k > b.nFeatures {
		k = b.nFeatures
	}
	return perm[:k]
}

// bestSplit scans every threshold between distinct sorted values of each
// candidate feature and returns the split with the largest SSE reduction.
func (b *builder) bestSplit(idx []int, total, sumSq, sse float64) (feature int, threshold, gain float64, ok bool) {
	n := len(idx)
	sorted := make([]int, n)
	vals := make([]float64, n)
	minLeaf := max(b.cfg.MinSamplesLeaf, 1)

	for _, f := range b.candidates() {
		copy(sorted, idx)
		sort.Slice(sorted, func(i, j int) bool { return b.x.At(sorted[i], f) < b.x.At(sorted[j], f) })
		for i, r := range sorted {
			vals[i] = b.x.At(r, f)
		}
		if vals[0] == vals[n-1] {
			continue
		}
		var sl float64
		for i := 0; i < n-1; i++ {
			sl += b.y[sorted[i]]
			if vals[i] == vals[i+1] {
				continue
			}
			nl := i + 1
			nr := n - nl
			if nl < minLeaf || nr < minLeaf {
				continue
			}
			sr := total - sl
			child := sumSq - sl*sl/float64(nl) - sr*sr/float64(nr)
			g := sse - child
			if !ok || g > gain {
				thr := (vals[i] + vals[i+1]) / 2
				if thr == vals[i+1] {
					thr = vals[i]
				}
				feature, threshold, gain, ok = f, thr, g, true
			}
		}
	}
	if ok && gain <= 0 {
		return 0, 0, 0, false
	}
	return feature, threshold, gain, ok
}

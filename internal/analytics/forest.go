package analytics

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat"
)

const eulerGamma = 0.5772156649015329

type ForestConfig struct {
	Trees int
	// MaxSamples caps the per-tree sub-sample; the effective size is
	// min(MaxSamples, len(data)).
	MaxSamples    int
	Contamination float64
	Seed          uint64
}

func DefaultForestConfig() ForestConfig {
	return ForestConfig{
		Trees:         100,
		MaxSamples:    256,
		Contamination: 0.1,
		Seed:          42,
	}
}

// treeNode is a split when Left >= 0 and a leaf otherwise. Size is the
// number of training samples that reached a leaf.
type treeNode struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t"`
	Left      int     `json:"l"`
	Right     int     `json:"r"`
	Size      int     `json:"n"`
}

type isolationTree struct {
	Nodes []treeNode `json:"nodes"`
}

// IsolationForest is an ensemble of random isolation trees. Points that are
// isolated by short paths score as outliers.
type IsolationForest struct {
	Trees         []isolationTree `json:"trees"`
	SampleSize    int             `json:"sample_size"`
	Features      int             `json:"features"`
	Contamination float64         `json:"contamination"`
	// Offset is the training-score percentile at Contamination; decision
	// values below zero are outliers.
	Offset float64 `json:"offset"`
}

var ErrMalformedInput = errors.New("malformed feature vector")

func FitIsolationForest(data [][]float64, cfg ForestConfig) (*IsolationForest, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("need at least 2 training rows, got %d", len(data))
	}
	if cfg.Trees <= 0 {
		cfg.Trees = 100
	}
	if cfg.MaxSamples <= 0 {
		cfg.MaxSamples = 256
	}
	if cfg.Contamination <= 0 || cfg.Contamination > 0.5 {
		return nil, fmt.Errorf("contamination must be in (0, 0.5], got %v", cfg.Contamination)
	}

	width := len(data[0])
	for i, row := range data {
		if len(row) != width {
			return nil, fmt.Errorf("row %d has %d features, want %d", i, len(row), width)
		}
	}

	sampleSize := cfg.MaxSamples
	if sampleSize > len(data) {
		sampleSize = len(data)
	}
	depthLimit := int(math.Ceil(math.Log2(float64(sampleSize))))

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	f := &IsolationForest{
		Trees:         make([]isolationTree, cfg.Trees),
		SampleSize:    sampleSize,
		Features:      width,
		Contamination: cfg.Contamination,
	}

	for t := range f.Trees {
		idx := rng.Perm(len(data))[:sampleSize]
		b := treeBuilder{data: data, rng: rng, depthLimit: depthLimit, width: width}
		b.build(idx, 0)
		f.Trees[t] = isolationTree{Nodes: b.nodes}
	}

	scores := make([]float64, len(data))
	for i, row := range data {
		scores[i] = f.scoreSample(row)
	}
	sort.Float64s(scores)
	f.Offset = stat.Quantile(cfg.Contamination, stat.LinInterp, scores, nil)

	return f, nil
}

type treeBuilder struct {
	data       [][]float64
	rng        *rand.Rand
	depthLimit int
	width      int
	nodes      []treeNode
}

func (b *treeBuilder) build(idx []int, depth int) int {
	id := len(b.nodes)
	b.nodes = append(b.nodes, treeNode{Left: -1, Right: -1, Size: len(idx)})
	if depth >= b.depthLimit || len(idx) <= 1 {
		return id
	}

	for _, feature := range b.rng.Perm(b.width) {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, i := range idx {
			v := b.data[i][feature]
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		if hi <= lo {
			continue
		}

		threshold := lo + b.rng.Float64()*(hi-lo)
		var left, right []int
		for _, i := range idx {
			if b.data[i][feature] <= threshold {
				left = append(left, i)
			} else {
				right = append(right, i)
			}
		}
		if len(left) == 0 || len(right) == 0 {
			continue
		}

		l := b.build(left, depth+1)
		r := b.build(right, depth+1)
		b.nodes[id] = treeNode{Feature: feature, Threshold: threshold, Left: l, Right: r, Size: len(idx)}
		return id
	}

	// Every feature is constant on this node.
	return id
}

// averagePathLength is c(n), the mean path length of an unsuccessful search
// in a binary search tree of n points.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	}
	fn := float64(n)
	return 2*(math.Log(fn-1)+eulerGamma) - 2*(fn-1)/fn
}

func (t *isolationTree) pathLength(x []float64) float64 {
	depth := 0
	i := 0
	for {
		n := t.Nodes[i]
		if n.Left < 0 {
			return float64(depth) + averagePathLength(n.Size)
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
		depth++
	}
}

// scoreSample is the negated anomaly score in [-1, 0): lower is more
// abnormal.
func (f *IsolationForest) scoreSample(x []float64) float64 {
	var total float64
	for i := range f.Trees {
		total += f.Trees[i].pathLength(x)
	}
	mean := total / float64(len(f.Trees))
	return -math.Pow(2, -mean/averagePathLength(f.SampleSize))
}

// Decision returns the shifted score; negative values are outliers.
func (f *IsolationForest) Decision(x []float64) (float64, error) {
	if err := f.check(x); err != nil {
		return 0, err
	}
	return f.scoreSample(x) - f.Offset, nil
}

func (f *IsolationForest) check(x []float64) error {
	if len(x) != f.Features {
		return fmt.Errorf("%w: %d values, forest expects %d", ErrMalformedInput, len(x), f.Features)
	}
	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: value %d is %v", ErrMalformedInput, i, v)
		}
	}
	return nil
}

func (f *IsolationForest) validate() error {
	if len(f.Trees) == 0 {
		return fmt.Errorf("forest has no trees")
	}
	if f.SampleSize < 2 {
		return fmt.Errorf("forest sample size %d is too small", f.SampleSize)
	}
	for ti, t := range f.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("tree %d is empty", ti)
		}
		for ni, n := range t.Nodes {
			if n.Left < 0 {
				continue
			}
			if n.Left >= len(t.Nodes) || n.Right < 0 || n.Right >= len(t.Nodes) || n.Left <= ni || n.Right <= ni {
				return fmt.Errorf("tree %d node %d has invalid children", ti, ni)
			}
			if n.Feature < 0 || n.Feature >= f.Features {
				return fmt.Errorf("tree %d node %d splits on unknown feature %d", ti, ni, n.Feature)
			}
		}
	}
	return nil
}

package model

import (
	"fmt"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"
)

// Classifier is the immutable, process-wide handle to the loaded forest.
// It is constructed once at startup and shared read-only by every request.
type Classifier struct {
	trees      []tree
	classes    []int
	leafOutput LeafOutput
	nFeatures  int
	summary    Summary
}

type tree struct {
	childrenLeft  []int
	childrenRight []int
	feature       []int
	threshold     []float64
	values        [][]float64
}

// Classes returns the classifier's known output class labels in order.
func (c *Classifier) Classes() []int {
	return append([]int(nil), c.classes...)
}

// NumFeatures returns the input width the forest was trained on.
func (c *Classifier) NumFeatures() int { return c.nFeatures }

// LeafOutput reports which serialized value form the artifact carries.
func (c *Classifier) LeafOutput() LeafOutput { return c.leafOutput }

// PredictProba runs the forest on a single row and returns the per-class
// probability estimates. The width of the result follows the artifact's
// node values; callers are expected to verify it matches the binary
// contract before reading columns.
func (c *Classifier) PredictProba(vec []float64) ([]float64, error) {
	if len(vec) != c.nFeatures {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInputWidth, len(vec), c.nFeatures)
	}

	if c.leafOutput == LeafPositive {
		// Scalar leaves: average the positive-class score across trees.
		sum := 0.0
		for i := range c.trees {
			leaf := c.trees[i].walk(vec)
			val := c.trees[i].values[leaf]
			if len(val) != 1 {
				return nil, fmt.Errorf("tree %d leaf carries %d values, want 1", i, len(val))
			}
			sum += clamp01(val[0])
		}
		p := sum / float64(len(c.trees))
		return []float64{1 - p, p}, nil
	}

	// Distribution leaves: normalize each leaf and average element-wise.
	width := len(c.trees[0].values[0])
	acc := make([]float64, width)
	leafNorm := make([]float64, width)
	for i := range c.trees {
		leaf := c.trees[i].walk(vec)
		val := c.trees[i].values[leaf]
		if len(val) != width {
			return nil, fmt.Errorf("tree %d leaf carries %d values, want %d", i, len(val), width)
		}
		normalize(leafNorm, val)
		floats.Add(acc, leafNorm)
	}
	floats.Scale(1/float64(len(c.trees)), acc)
	if s := floats.Sum(acc); s > 0 {
		floats.Scale(1/s, acc)
	}
	return acc, nil
}

// walk follows the decision path for one row and returns the leaf index.
// Split convention: value <= threshold goes left.
func (t *tree) walk(vec []float64) int {
	node := 0
	for t.feature[node] >= 0 {
		if vec[t.feature[node]] <= t.threshold[node] {
			node = t.childrenLeft[node]
		} else {
			node = t.childrenRight[node]
		}
	}
	return node
}

// normalize writes val scaled to unit sum into dst. A zero-sum value vector
// is passed through unchanged.
func normalize(dst, val []float64) {
	copy(dst, val)
	if s := floats.Sum(dst); s > 0 {
		floats.Scale(1/s, dst)
	}
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// Summary holds descriptive statistics about the loaded forest, logged at
// startup and exposed on the health endpoint.
type Summary struct {
	NumTrees    int        `json:"num_trees"`
	NumFeatures int        `json:"num_features"`
	LeafOutput  LeafOutput `json:"leaf_output"`
	MeanNodes   float64    `json:"mean_nodes"`
	MedianNodes float64    `json:"median_nodes"`
	MaxNodes    float64    `json:"max_nodes"`
}

// Summary returns the precomputed forest summary.
func (c *Classifier) Summary() Summary { return c.summary }

func summarize(c *Classifier) Summary {
	counts := make([]float64, len(c.trees))
	for i := range c.trees {
		counts[i] = float64(len(c.trees[i].feature))
	}
	mean, _ := stats.Mean(counts)
	med, _ := stats.Median(counts)
	max, _ := stats.Max(counts)
	return Summary{
		NumTrees:    len(c.trees),
		NumFeatures: c.nFeatures,
		LeafOutput:  c.leafOutput,
		MeanNodes:   mean,
		MedianNodes: med,
		MaxNodes:    max,
	}
}

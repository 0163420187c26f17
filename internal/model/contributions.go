package model

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Contributions is the attribution backend's raw output for a single row:
// per-feature decision-path contributions in the forest's native sign
// convention, averaged across trees. The form mirrors the artifact's leaf
// output: distribution artifacts yield one contribution row per class,
// positive artifacts yield a single positive-axis row.
type Contributions struct {
	Form LeafOutput

	// PerClass[class][feature], populated when Form is LeafDistribution.
	PerClass [][]float64

	// Positive[feature], populated when Form is LeafPositive.
	Positive []float64
}

// Contributions walks every tree's decision path for the row and credits
// the change in node value at each split to the split feature. The baseline
// left unattributed is the forest's root expectation.
func (c *Classifier) Contributions(vec []float64) (*Contributions, error) {
	if len(vec) != c.nFeatures {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInputWidth, len(vec), c.nFeatures)
	}

	if c.leafOutput == LeafPositive {
		contrib := make([]float64, c.nFeatures)
		for i := range c.trees {
			t := &c.trees[i]
			node := 0
			cur := clamp01(t.values[node][0])
			for t.feature[node] >= 0 {
				f := t.feature[node]
				next := t.childrenLeft[node]
				if vec[f] > t.threshold[node] {
					next = t.childrenRight[node]
				}
				nextVal := clamp01(t.values[next][0])
				contrib[f] += nextVal - cur
				cur = nextVal
				node = next
			}
		}
		floats.Scale(1/float64(len(c.trees)), contrib)
		return &Contributions{Form: LeafPositive, Positive: contrib}, nil
	}

	width := len(c.trees[0].values[0])
	perClass := make([][]float64, width)
	for k := range perClass {
		perClass[k] = make([]float64, c.nFeatures)
	}
	cur := make([]float64, width)
	nextVal := make([]float64, width)
	for i := range c.trees {
		t := &c.trees[i]
		node := 0
		if len(t.values[node]) != width {
			return nil, fmt.Errorf("tree %d node values carry %d entries, want %d", i, len(t.values[node]), width)
		}
		normalize(cur, t.values[node])
		for t.feature[node] >= 0 {
			f := t.feature[node]
			next := t.childrenLeft[node]
			if vec[f] > t.threshold[node] {
				next = t.childrenRight[node]
			}
			if len(t.values[next]) != width {
				return nil, fmt.Errorf("tree %d node values carry %d entries, want %d", i, len(t.values[next]), width)
			}
			normalize(nextVal, t.values[next])
			for k := 0; k < width; k++ {
				perClass[k][f] += nextVal[k] - cur[k]
			}
			copy(cur, nextVal)
			node = next
		}
	}
	for k := range perClass {
		floats.Scale(1/float64(len(c.trees)), perClass[k])
	}
	return &Contributions{Form: LeafDistribution, PerClass: perClass}, nil
}

package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"subrisk/internal/feature"
)

// LeafOutput discriminates the two serialized forms a forest's node values
// can take. Distribution artifacts carry a full per-class value vector at
// every node; positive artifacts carry a single positive-class score.
type LeafOutput string

const (
	LeafDistribution LeafOutput = "distribution"
	LeafPositive     LeafOutput = "positive"
)

var (
	// ErrClassLabels is returned when the artifact's class labels are not
	// exactly [0, 1] in that order. Probability columns are indexed
	// positionally downstream, so any other set is unusable.
	ErrClassLabels = errors.New("classifier class labels must be exactly [0, 1]")

	// ErrFeatureNames is returned when the artifact's feature names do not
	// match the canonical feature order.
	ErrFeatureNames = errors.New("classifier feature names do not match the canonical feature order")

	// ErrInputWidth is returned when an input vector's length does not match
	// the number of features the forest was trained on.
	ErrInputWidth = errors.New("input vector width does not match model feature count")
)

// Artifact is the on-disk JSON form of a pre-trained forest.
type Artifact struct {
	ModelType    string     `json:"model_type"`
	Classes      []int      `json:"classes"`
	FeatureNames []string   `json:"feature_names"`
	LeafOutput   LeafOutput `json:"leaf_output"`
	Trees        []TreeSpec `json:"trees"`
}

// TreeSpec is one decision tree in parallel-array form. Feature holds -1 at
// leaf nodes. Values holds one value vector per node: [p_neg, p_pos] for
// distribution artifacts, [p_pos] for positive artifacts.
type TreeSpec struct {
	ChildrenLeft  []int       `json:"children_left"`
	ChildrenRight []int       `json:"children_right"`
	Feature       []int       `json:"feature"`
	Threshold     []float64   `json:"threshold"`
	Values        [][]float64 `json:"values"`
}

// Load reads and validates a classifier artifact from disk. Any failure here
// is a startup condition: the caller must not serve predictions against a
// model that did not pass these gates.
func Load(path string) (*Classifier, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read classifier artifact: %w", err)
	}

	var a Artifact
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("failed to decode classifier artifact: %w", err)
	}

	return New(&a)
}

// New validates an artifact and builds an immutable classifier handle from
// it. The handle is safe for concurrent use; nothing in it is mutated after
// construction.
func New(a *Artifact) (*Classifier, error) {
	if len(a.Classes) != 2 || a.Classes[0] != 0 || a.Classes[1] != 1 {
		return nil, fmt.Errorf("%w, got %v", ErrClassLabels, a.Classes)
	}

	names := feature.Names()
	if len(a.FeatureNames) != len(names) {
		return nil, fmt.Errorf("%w: got %d features, want %d", ErrFeatureNames, len(a.FeatureNames), len(names))
	}
	for i, name := range names {
		if a.FeatureNames[i] != name {
			return nil, fmt.Errorf("%w: position %d is %q, want %q", ErrFeatureNames, i, a.FeatureNames[i], name)
		}
	}

	switch a.LeafOutput {
	case LeafDistribution, LeafPositive:
	default:
		return nil, fmt.Errorf("unknown leaf_output %q in classifier artifact", a.LeafOutput)
	}

	if len(a.Trees) == 0 {
		return nil, errors.New("classifier artifact contains no trees")
	}

	trees := make([]tree, len(a.Trees))
	for i := range a.Trees {
		t, err := newTree(&a.Trees[i], len(a.FeatureNames))
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		trees[i] = t
	}

	if a.LeafOutput == LeafDistribution {
		for i := range a.Trees {
			for j, val := range a.Trees[i].Values {
				sum := 0.0
				for _, v := range val {
					sum += v
				}
				if sum <= 0 {
					return nil, fmt.Errorf("tree %d node %d has a zero-sum value vector", i, j)
				}
			}
		}
	}

	c := &Classifier{
		trees:      trees,
		classes:    append([]int(nil), a.Classes...),
		leafOutput: a.LeafOutput,
		nFeatures:  len(a.FeatureNames),
	}
	c.summary = summarize(c)
	return c, nil
}

func newTree(spec *TreeSpec, nFeatures int) (tree, error) {
	n := len(spec.Feature)
	if n == 0 {
		return tree{}, errors.New("empty node arrays")
	}
	if len(spec.ChildrenLeft) != n || len(spec.ChildrenRight) != n ||
		len(spec.Threshold) != n || len(spec.Values) != n {
		return tree{}, errors.New("node arrays have inconsistent lengths")
	}
	for i := 0; i < n; i++ {
		if spec.Feature[i] < 0 {
			continue
		}
		if spec.Feature[i] >= nFeatures {
			return tree{}, fmt.Errorf("node %d splits on feature %d, want < %d", i, spec.Feature[i], nFeatures)
		}
		l, r := spec.ChildrenLeft[i], spec.ChildrenRight[i]
		if l < 0 || l >= n || r < 0 || r >= n {
			return tree{}, fmt.Errorf("node %d has child index out of range", i)
		}
		// Children point strictly forward, so every walk terminates.
		if l <= i || r <= i {
			return tree{}, fmt.Errorf("node %d has a non-forward child link", i)
		}
	}
	return tree{
		childrenLeft:  spec.ChildrenLeft,
		childrenRight: spec.ChildrenRight,
		feature:       spec.Feature,
		threshold:     spec.Threshold,
		values:        spec.Values,
	}, nil
}

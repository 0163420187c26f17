package explain

import (
	"fmt"

	"subrisk/internal/feature"
	"subrisk/internal/model"
)

// Attribution is one signed contribution score per feature, aligned
// positionally with the canonical feature order, for the predicted class.
// Sign convention: positive pushes toward higher risk.
type Attribution []float64

// Explainer computes per-feature contribution scores against the same
// classifier handle the predictor uses. Explanation is only attempted
// after a successful prediction; a failure here never invalidates the
// prediction already produced.
type Explainer struct {
	clf *model.Classifier
}

// New wires an explainer to the shared classifier handle.
func New(clf *model.Classifier) *Explainer {
	return &Explainer{clf: clf}
}

// Explain computes attribution scores for the predicted class.
//
// Axis selection reproduces the attribution backend's shape asymmetry
// literally: when the backend reports a per-class tensor the axis matching
// the predicted class is read, but in the binary single-pair form the
// positive-class axis is read regardless of the predicted class. The
// inconsistency is inherited behavior, kept for compatibility.
//
// Every score is sign-flipped before leaving this package so that positive
// means risk-increasing in the display convention.
func (e *Explainer) Explain(vec feature.Vector, predictedClass int) (Attribution, error) {
	if predictedClass != 0 && predictedClass != 1 {
		return nil, fmt.Errorf("predicted class must be 0 or 1, got %d", predictedClass)
	}

	contrib, err := e.clf.Contributions(vec)
	if err != nil {
		return nil, fmt.Errorf("attribution computation failed: %w", err)
	}

	var axis []float64
	switch contrib.Form {
	case model.LeafDistribution:
		if predictedClass >= len(contrib.PerClass) {
			return nil, fmt.Errorf("attribution tensor has no axis for class %d", predictedClass)
		}
		axis = contrib.PerClass[predictedClass]
	case model.LeafPositive:
		axis = contrib.Positive
	default:
		return nil, fmt.Errorf("unknown attribution form %q", contrib.Form)
	}

	if len(axis) != feature.Count {
		return nil, fmt.Errorf("attribution has %d scores, want %d", len(axis), feature.Count)
	}

	attr := make(Attribution, len(axis))
	for i, v := range axis {
		attr[i] = -v
	}
	return attr, nil
}

package predict

import (
	"errors"
	"fmt"

	"subrisk/internal/feature"
	"subrisk/internal/model"
)

// ErrOutputShape is returned when the classifier produces a probability
// count other than two. It guards against a silently mismatched or
// corrupted model artifact.
var ErrOutputShape = errors.New("classifier returned a non-binary probability output")

// Threshold is the fixed decision boundary: predicted class is positive iff
// the positive probability (in percent) is at least this value. Ties
// resolve to positive. Not configurable.
const Threshold = 50.0

// Class labels after thresholding.
const (
	ClassNegative = 0
	ClassPositive = 1
)

// Result is the immutable output of one classification. Probabilities are
// percentages and sum to 100.
type Result struct {
	ProbPositive float64 `json:"probability_positive"`
	ProbNegative float64 `json:"probability_negative"`
	Class        int     `json:"predicted_class"`
	Label        string  `json:"label"`
}

// Predictor derives a risk assessment from the shared classifier handle.
// It holds no mutable state; every call is an independent computation.
type Predictor struct {
	clf *model.Classifier
}

// New wires a predictor to an already-validated classifier handle.
func New(clf *model.Classifier) *Predictor {
	return &Predictor{clf: clf}
}

// Predict feeds the vector to the classifier and derives the risk label.
// Any failure is terminal for the submission: callers must not proceed to
// the explanation stage on error.
func (p *Predictor) Predict(vec feature.Vector) (*Result, error) {
	proba, err := p.clf.PredictProba(vec)
	if err != nil {
		return nil, fmt.Errorf("classification failed: %w", err)
	}
	if len(proba) != 2 {
		return nil, fmt.Errorf("%w: got %d outputs", ErrOutputShape, len(proba))
	}

	res := &Result{
		ProbPositive: proba[1] * 100,
		ProbNegative: proba[0] * 100,
	}
	if res.ProbPositive >= Threshold {
		res.Class = ClassPositive
		res.Label = "High risk"
	} else {
		res.Class = ClassNegative
		res.Label = "Low risk"
	}
	return res, nil
}

package types

import (
	"subrisk/internal/explain"
	"subrisk/internal/predict"
)

// AssessRequest is the body of one submitted case: one raw value per
// feature identifier. Categorical values are option indices.
type AssessRequest struct {
	Values map[string]float64 `json:"values" binding:"required"`
}

// AssessResponse is the result of one assessment. Explanation is omitted
// and ExplanationError populated when the attribution step fails; the
// prediction fields remain valid either way.
type AssessResponse struct {
	Prediction       *predict.Result     `json:"prediction"`
	Explanation      *explain.ChartModel `json:"explanation,omitempty"`
	ExplanationError string              `json:"explanation_error,omitempty"`
}

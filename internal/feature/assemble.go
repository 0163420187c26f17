package feature

import "fmt"

// Vector is the ordered sequence of scalar values fed to the classifier,
// one per Spec in canonical order. Categorical values hold the selected
// option index, numerical values hold the entered reading.
type Vector []float64

// Assemble maps one raw value per feature identifier onto a fresh Vector in
// canonical order. Values are taken as-is beyond type coercion; callers that
// accept untrusted input validate against the specs first.
func Assemble(values map[string]float64) (Vector, error) {
	vec := make(Vector, len(specs))
	for i, s := range specs {
		v, ok := values[s.ID]
		if !ok {
			return nil, fmt.Errorf("missing value for feature %s", s.ID)
		}
		vec[i] = v
	}
	return vec, nil
}

// Defaults returns the vector built from every spec's default value.
// Categorical defaults are the first option.
func Defaults() Vector {
	vec := make(Vector, len(specs))
	for i, s := range specs {
		vec[i] = s.Default
	}
	return vec
}

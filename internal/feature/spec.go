package feature

import "fmt"

// Kind distinguishes categorical inputs from bounded numerical inputs.
type Kind string

const (
	Categorical Kind = "categorical"
	Numerical   Kind = "numerical"
)

// Spec describes one input field of the assessment form. Categorical specs
// carry an ordered label set and are encoded as the selected option index;
// numerical specs carry an inclusive [Min, Max] range and a default value.
type Spec struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"display_name"`
	Kind        Kind     `json:"kind"`
	Labels      []string `json:"labels,omitempty"`
	Min         float64  `json:"min,omitempty"`
	Max         float64  `json:"max,omitempty"`
	Default     float64  `json:"default"`
	Reference   string   `json:"reference,omitempty"`
}

// Count is the number of features the classifier was trained on.
const Count = 6

// specs is the canonical feature order. The classifier consumes a positional
// vector, so this slice is never reordered at runtime.
var specs = []Spec{
	{
		ID:          "Subtype",
		DisplayName: "Molecular subtype",
		Kind:        Categorical,
		Labels:      []string{"LumA/B", "HER2+", "TNBC"},
		Reference:   "Per immunohistochemistry result",
	},
	{
		ID:          "NLR",
		DisplayName: "Neutrophil/lymphocyte ratio",
		Kind:        Numerical,
		Min:         0.0,
		Max:         10.0,
		Default:     5.0,
		Reference:   "Normal range: 0.5-3.0",
	},
	{
		ID:          "IL6",
		DisplayName: "Interleukin-6",
		Kind:        Numerical,
		Min:         0.0,
		Max:         100.0,
		Default:     5.0,
		Reference:   "Normal: <7 pg/mL",
	},
	{
		ID:          "CAR",
		DisplayName: "C-reactive protein/albumin ratio",
		Kind:        Numerical,
		Min:         0.0,
		Max:         5.0,
		Default:     0.2,
		Reference:   "Normal: <0.15",
	},
	{
		ID:          "VitD",
		DisplayName: "Vitamin D",
		Kind:        Numerical,
		Min:         0.0,
		Max:         100.0,
		Default:     35.0,
		Reference:   "Normal range: 30-100 ng/mL",
	},
	{
		ID:          "FT4",
		DisplayName: "Free thyroxine",
		Kind:        Numerical,
		Min:         0.0,
		Max:         100.0,
		Default:     15.0,
		Reference:   "Normal range: 10-31 pmol/L",
	},
}

// Specs returns the feature catalog in canonical order.
func Specs() []Spec {
	out := make([]Spec, len(specs))
	copy(out, specs)
	return out
}

// Names returns the feature identifiers in canonical order.
func Names() []string {
	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.ID
	}
	return names
}

// ByID looks up a spec by identifier.
func ByID(id string) (Spec, bool) {
	for _, s := range specs {
		if s.ID == id {
			return s, true
		}
	}
	return Spec{}, false
}

// Validate checks a raw value against the spec's declared domain. The
// assembler itself does not re-validate; this is for the request layer,
// which cannot rely on form widget constraints.
func (s Spec) Validate(value float64) error {
	switch s.Kind {
	case Categorical:
		idx := int(value)
		if float64(idx) != value || idx < 0 || idx >= len(s.Labels) {
			return fmt.Errorf("%s: option index %v outside label set of %d options", s.ID, value, len(s.Labels))
		}
	case Numerical:
		if value < s.Min || value > s.Max {
			return fmt.Errorf("%s: value %v outside range [%v, %v]", s.ID, value, s.Min, s.Max)
		}
	}
	return nil
}

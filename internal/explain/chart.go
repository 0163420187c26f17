package explain

import (
	"math"

	"subrisk/internal/feature"
)

// highContrastScore is the magnitude beyond which a bar label switches to
// the high-contrast text color for legibility inside the bar.
const highContrastScore = 0.2

// Bar is one row of the attribution chart. Bars keep the canonical feature
// order top to bottom; they are never sorted by magnitude.
type Bar struct {
	Feature        string  `json:"feature"`
	DisplayName    string  `json:"display_name"`
	Score          float64 `json:"score"`
	RiskIncreasing bool    `json:"risk_increasing"`
	AnchorRight    bool    `json:"anchor_right"`
	HighContrast   bool    `json:"high_contrast"`
}

// ChartModel is the rendered view of an attribution: signed horizontal
// bars, one per feature, with the display hints the page needs.
type ChartModel struct {
	Bars []Bar `json:"bars"`
}

// Chart builds the bar-chart view model from a (sign-flipped) attribution.
// Risk-increasing bars are the positive scores; label anchoring follows the
// bar direction.
func Chart(attr Attribution) ChartModel {
	specs := feature.Specs()
	bars := make([]Bar, len(attr))
	for i, score := range attr {
		bars[i] = Bar{
			Feature:        specs[i].ID,
			DisplayName:    specs[i].DisplayName,
			Score:          math.Round(score*100) / 100,
			RiskIncreasing: score > 0,
			AnchorRight:    score >= 0,
			HighContrast:   math.Abs(score) > highContrastScore,
		}
	}
	return ChartModel{Bars: bars}
}

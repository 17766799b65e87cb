package analytics

import (
	"math"

	"safety-tracker/internal/models"
)

type Kind string

const (
	KindTrained Kind = "isolation_forest"
	KindRules   Kind = "rules"
)

// Scorer maps a feature vector to a verdict. Implementations are safe for
// concurrent use and never fabricate an anomaly on internal failure.
type Scorer interface {
	Score(features models.FeatureVector) models.Verdict
	Kind() Kind
}

// Rule thresholds for the fallback scorer.
const (
	MaxNormalSpeed         = 50.0  // m/s, about 180 km/h
	MaxNormalBearingChange = 120.0 // degrees
	MaxNormalAccel         = 10.0  // m/s²
	StationarySpeed        = 1.0   // m/s
	ErraticBearingChange   = 90.0  // degrees
	indicatorCount         = 4
)

// RuleScorer is the deterministic fallback used when no trained model is
// available. A window is anomalous when at least two indicators fire; the
// score is the fraction of indicators that fired.
type RuleScorer struct{}

func (RuleScorer) Kind() Kind { return KindRules }

func (RuleScorer) Score(f models.FeatureVector) models.Verdict {
	indicators := 0

	if f[models.SpeedMax] > MaxNormalSpeed {
		indicators++
	}
	if f[models.BearingChangeMax] > MaxNormalBearingChange {
		indicators++
	}
	if math.Abs(f[models.AccelMax]) > MaxNormalAccel {
		indicators++
	}
	// Erratic movement while nearly stationary.
	if f[models.SpeedMean] < StationarySpeed && f[models.BearingChangeMax] > ErraticBearingChange {
		indicators++
	}

	return models.Verdict{
		IsAnomaly: indicators >= 2,
		Score:     float64(indicators) / indicatorCount,
	}
}

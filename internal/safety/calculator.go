// Package safety derives the on-demand safety score of a subject from its
// recent anomaly history and the time of day.
package safety

import (
	"context"
	"fmt"
	"time"

	"safety-tracker/internal/models"
)

const (
	BaseScore       = 100
	NoHistoryFactor = "no tracking history available"
	NightFactor     = "Traveling during late night hours"
)

// History is the read side of the anomaly store used by the calculator.
type History interface {
	Seen(ctx context.Context, subjectID string) (bool, error)
	CountSince(ctx context.Context, subjectID string, since time.Time) (int, error)
}

type Policy struct {
	Location       *time.Location
	Lookback       time.Duration
	AnomalyPenalty int
	NightPenalty   int
	// Night covers hours >= NightStartHour or < NightEndHour in Location.
	NightStartHour int
	NightEndHour   int
}

func DefaultPolicy() Policy {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		loc = time.FixedZone("IST", 5*3600+1800)
	}
	return Policy{
		Location:       loc,
		Lookback:       24 * time.Hour,
		AnomalyPenalty: 15,
		NightPenalty:   10,
		NightStartHour: 22,
		NightEndHour:   5,
	}
}

type Calculator struct {
	history History
	policy  Policy
}

func NewCalculator(history History, policy Policy) *Calculator {
	if policy.Location == nil {
		policy.Location = time.UTC
	}
	return &Calculator{history: history, policy: policy}
}

func (c *Calculator) Compute(ctx context.Context, subjectID string, now time.Time) (models.SafetyScore, error) {
	seen, err := c.history.Seen(ctx, subjectID)
	if err != nil {
		return models.SafetyScore{}, err
	}
	if !seen {
		return models.SafetyScore{Score: BaseScore, Factors: []string{NoHistoryFactor}}, nil
	}

	recent, err := c.history.CountSince(ctx, subjectID, now.Add(-c.policy.Lookback))
	if err != nil {
		return models.SafetyScore{}, err
	}

	score := BaseScore
	factors := []string{}
	if recent > 0 {
		score -= recent * c.policy.AnomalyPenalty
		factors = append(factors, fmt.Sprintf("Detected %d recent movement anomalies", recent))
	}
	if c.IsNight(now) {
		score -= c.policy.NightPenalty
		factors = append(factors, NightFactor)
	}

	return models.SafetyScore{Score: clamp(score, 0, BaseScore), Factors: factors}, nil
}

// IsNight reports whether now falls in the night window of the reference
// timezone.
func (c *Calculator) IsNight(now time.Time) bool {
	hour := now.In(c.policy.Location).Hour()
	start, end := c.policy.NightStartHour, c.policy.NightEndHour
	if start <= end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

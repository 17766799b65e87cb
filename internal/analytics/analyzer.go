package analytics

import (
	"sync"
	"time"

	"safety-tracker/internal/models"
)

const recentAnomalyLimit = 100

// Analyzer scores feature vectors through the current scorer and keeps
// process-wide counters plus the most recent anomalous results.
type Analyzer struct {
	scorer    Scorer
	anomalies []models.AnalysisResult
	stats     models.AnalyticsStats
	mu        sync.RWMutex
}

func NewAnalyzer(scorer Scorer) *Analyzer {
	return &Analyzer{
		scorer:    scorer,
		anomalies: make([]models.AnalysisResult, 0, recentAnomalyLimit),
	}
}

func (a *Analyzer) Analyze(subjectID string, features models.FeatureVector) models.Verdict {
	verdict := a.scorer.Score(features)

	a.mu.Lock()
	defer a.mu.Unlock()

	a.stats.TotalScored++
	if verdict.IsAnomaly {
		now := time.Now()
		a.stats.TotalAnomalies++
		a.stats.LastAnomalyTime = now

		a.anomalies = append(a.anomalies, models.AnalysisResult{
			Timestamp: now,
			SubjectID: subjectID,
			Features:  features,
			Verdict:   verdict,
		})
		if len(a.anomalies) > recentAnomalyLimit {
			a.anomalies = a.anomalies[1:]
		}
	}
	a.stats.AnomalyRate = float64(a.stats.TotalAnomalies) / float64(a.stats.TotalScored)

	return verdict
}

func (a *Analyzer) Kind() Kind {
	return a.scorer.Kind()
}

func (a *Analyzer) GetCurrentStats() models.AnalyticsStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := a.stats
	stats.Scorer = string(a.scorer.Kind())
	return stats
}

func (a *Analyzer) GetRecentAnomalies(limit int) []models.AnalysisResult {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if limit > len(a.anomalies) || limit <= 0 {
		limit = len(a.anomalies)
	}

	out := make([]models.AnalysisResult, limit)
	copy(out, a.anomalies[len(a.anomalies)-limit:])
	return out
}

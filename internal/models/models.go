package models

import (
	"math"
	"time"
)

type LocationSample struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
}

// Timestamps must fit in int64 nanoseconds since the epoch, roughly the
// years 1678 through 2262.
var (
	minTimestamp = time.Unix(0, math.MinInt64)
	maxTimestamp = time.Unix(0, math.MaxInt64)
)

// Valid reports whether the coordinates are in range and the timestamp, when
// set, is representable. A zero timestamp marks an unparseable time.
func (s LocationSample) Valid() bool {
	if !(s.Latitude >= -90 && s.Latitude <= 90 &&
		s.Longitude >= -180 && s.Longitude <= 180) {
		return false
	}
	if s.Timestamp.IsZero() {
		return true
	}
	return !s.Timestamp.Before(minTimestamp) && !s.Timestamp.After(maxTimestamp)
}

type Verdict struct {
	IsAnomaly bool    `json:"is_anomaly"`
	Score     float64 `json:"score"`
}

type AnomalyRecord struct {
	ID              int64     `json:"id"`
	SubjectID       string    `json:"user_id"`
	Latitude        float64   `json:"latitude"`
	Longitude       float64   `json:"longitude"`
	Timestamp       time.Time `json:"timestamp"`
	AnomalyScore    float64   `json:"anomaly_score"`
	Resolved        bool      `json:"is_resolved"`
	ResolutionNotes string    `json:"resolution_notes"`
	CreatedAt       time.Time `json:"created_at"`
}

type SafetyScore struct {
	Score   int      `json:"score"`
	Factors []string `json:"factors"`
}

type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Alert is the payload handed to notification sinks once an anomaly has been
// recorded.
type Alert struct {
	ID              string    `json:"alert_id"`
	Type            string    `json:"alert_type"`
	SubjectID       string    `json:"user_id"`
	AnomalyRecordID int64     `json:"anomaly_record_id,omitempty"`
	AnomalyScore    float64   `json:"anomaly_score"`
	Location        Location  `json:"location"`
	Timestamp       time.Time `json:"timestamp"`
	Description     string    `json:"description"`
}

const AlertTypeLocationAnomaly = "location_anomaly"

type AnalysisResult struct {
	Timestamp time.Time     `json:"timestamp"`
	SubjectID string        `json:"user_id"`
	Features  FeatureVector `json:"features"`
	Verdict   Verdict       `json:"verdict"`
}

type AnalyticsStats struct {
	Scorer          string    `json:"scorer"`
	TotalScored     int64     `json:"total_scored"`
	TotalAnomalies  int64     `json:"total_anomalies"`
	AnomalyRate     float64   `json:"anomaly_rate"`
	LastAnomalyTime time.Time `json:"last_anomaly_time,omitempty"`
}

// Package tracker composes the window store, scorer, anomaly store and alert
// dispatcher into the session and ingestion operations exposed to clients.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"safety-tracker/internal/analytics"
	"safety-tracker/internal/cache"
	"safety-tracker/internal/clock"
	"safety-tracker/internal/features"
	"safety-tracker/internal/models"
	"safety-tracker/internal/safety"
	"safety-tracker/internal/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ErrInvalidSample   = errors.New("invalid location sample")
	ErrNoActiveSession = errors.New("no active tracking session")
)

var (
	samplesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "samples_processed_total",
		Help: "Total number of location samples accepted",
	})

	anomaliesDetected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "anomalies_detected_total",
		Help: "Total number of anomalies detected",
	})

	degradedOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "degraded_operations_total",
		Help: "Total number of operations accepted without being fully processed",
	}, []string{"operation"})
)

type Status string

const (
	StatusProcessed Status = "processed"
	// StatusPending means the window does not yet hold enough points for a
	// verdict.
	StatusPending Status = "pending"
	// StatusDegraded means the request was accepted but infrastructure
	// failures kept it from being fully processed.
	StatusDegraded Status = "degraded"
)

type Outcome struct {
	Status    Status          `json:"status"`
	Verdict   *models.Verdict `json:"verdict,omitempty"`
	AnomalyID int64           `json:"anomaly_id,omitempty"`
	AlertID   string          `json:"alert_id,omitempty"`
	Reason    string          `json:"reason,omitempty"`
}

type SessionResult struct {
	Degraded bool
	Reason   string
}

type EndResult struct {
	Cleared  int64
	Degraded bool
	Reason   string
}

// Notifier hands alerts off without blocking.
type Notifier interface {
	Notify(alert models.Alert) (id string, ok bool)
}

type Service struct {
	windows  cache.WindowStore
	analyzer *analytics.Analyzer
	store    store.AnomalyStore
	notifier Notifier
	safety   *safety.Calculator
	clock    clock.Clock
}

type Deps struct {
	Windows  cache.WindowStore
	Analyzer *analytics.Analyzer
	Store    store.AnomalyStore
	Notifier Notifier
	Safety   *safety.Calculator
	Clock    clock.Clock
}

func NewService(d Deps) *Service {
	if d.Clock == nil {
		d.Clock = clock.RealClock{}
	}
	if d.Safety == nil {
		d.Safety = safety.NewCalculator(d.Store, safety.DefaultPolicy())
	}
	return &Service{
		windows:  d.Windows,
		analyzer: d.Analyzer,
		store:    d.Store,
		notifier: d.Notifier,
		safety:   d.Safety,
		clock:    d.Clock,
	}
}

func (s *Service) Now() time.Time {
	return s.clock.Now()
}

func (s *Service) Analyzer() *analytics.Analyzer {
	return s.analyzer
}

func (s *Service) StartSession(ctx context.Context, subjectID string) SessionResult {
	var failures []string

	if err := s.store.Touch(ctx, subjectID); err != nil {
		log.Printf("Failed to register subject %s: %v", subjectID, err)
		failures = append(failures, fmt.Sprintf("subject registry unavailable: %v", err))
	}
	if err := s.windows.Start(ctx, subjectID); err != nil {
		log.Printf("Failed to start session for %s: %v", subjectID, err)
		failures = append(failures, fmt.Sprintf("session store unavailable: %v", err))
	}
	return degraded("start_session", failures)
}

// EndSession clears the window and deletes every anomaly record of the
// subject. The two effects are independent: records are deleted even when
// the window store is unavailable.
func (s *Service) EndSession(ctx context.Context, subjectID string) EndResult {
	var failures []string

	if err := s.windows.Reset(ctx, subjectID); err != nil {
		log.Printf("Failed to reset window for %s: %v", subjectID, err)
		failures = append(failures, fmt.Sprintf("session store unavailable: %v", err))
	}

	n, err := s.store.DeleteForSubject(ctx, subjectID)
	if err != nil {
		log.Printf("Failed to clear anomalies for %s: %v", subjectID, err)
		failures = append(failures, fmt.Sprintf("anomaly store unavailable: %v", err))
	}

	r := degraded("end_session", failures)
	return EndResult{Cleared: n, Degraded: r.Degraded, Reason: r.Reason}
}

// Submit ingests one sample. Errors are returned only for malformed samples
// and missing sessions; infrastructure failures yield a degraded outcome.
func (s *Service) Submit(ctx context.Context, subjectID string, sample models.LocationSample) (Outcome, error) {
	if subjectID == "" || !sample.Valid() {
		return Outcome{}, ErrInvalidSample
	}

	active, err := s.windows.HasActiveSession(ctx, subjectID)
	if err != nil {
		log.Printf("Failed to check session for %s: %v", subjectID, err)
		return degradedOutcome("submit", nil, fmt.Sprintf("session store unavailable: %v", err)), nil
	}
	if !active {
		return Outcome{}, ErrNoActiveSession
	}

	window, err := s.windows.Append(ctx, subjectID, sample)
	if err != nil {
		log.Printf("Failed to append sample for %s: %v", subjectID, err)
		return degradedOutcome("submit", nil, fmt.Sprintf("session store unavailable: %v", err)), nil
	}
	samplesProcessed.Inc()

	fv, ok := features.Extract(window)
	if !ok {
		return Outcome{Status: StatusPending}, nil
	}

	verdict := s.analyzer.Analyze(subjectID, fv)
	out := Outcome{Status: StatusProcessed, Verdict: &verdict}
	if !verdict.IsAnomaly {
		return out, nil
	}

	anomaliesDetected.Inc()
	ts := sample.Timestamp
	if ts.IsZero() {
		ts = s.clock.Now()
	}
	log.Printf("Anomaly detected: user=%s score=%.4f", subjectID, verdict.Score)

	id, err := s.store.Record(ctx, models.AnomalyRecord{
		SubjectID:    subjectID,
		Latitude:     sample.Latitude,
		Longitude:    sample.Longitude,
		Timestamp:    ts,
		AnomalyScore: verdict.Score,
		CreatedAt:    s.clock.Now(),
	})
	if err != nil {
		log.Printf("Failed to record anomaly for %s: %v", subjectID, err)
		return degradedOutcome("record_anomaly", &verdict, fmt.Sprintf("anomaly store unavailable: %v", err)), nil
	}
	out.AnomalyID = id

	if s.notifier != nil {
		out.AlertID, _ = s.notifier.Notify(models.Alert{
			Type:            models.AlertTypeLocationAnomaly,
			SubjectID:       subjectID,
			AnomalyRecordID: id,
			AnomalyScore:    verdict.Score,
			Location:        models.Location{Lat: sample.Latitude, Lng: sample.Longitude},
			Timestamp:       ts,
			Description:     fmt.Sprintf("Unusual movement pattern detected for user %s", subjectID),
		})
	}
	return out, nil
}

func (s *Service) SafetyScore(ctx context.Context, subjectID string, now time.Time) (models.SafetyScore, error) {
	return s.safety.Compute(ctx, subjectID, now)
}

// ResetAnomalies deletes every record of the subject regardless of session
// state and reports how many were removed.
func (s *Service) ResetAnomalies(ctx context.Context, subjectID string) (int64, error) {
	return s.store.DeleteForSubject(ctx, subjectID)
}

func (s *Service) ListUnresolved(ctx context.Context) ([]models.AnomalyRecord, error) {
	return s.store.ListUnresolved(ctx)
}

func (s *Service) Resolve(ctx context.Context, id int64, notes string) error {
	return s.store.Resolve(ctx, id, notes)
}

// degraded counts the operation once however many of its steps failed and
// joins the failure reasons.
func degraded(operation string, failures []string) SessionResult {
	if len(failures) == 0 {
		return SessionResult{}
	}
	degradedOperations.WithLabelValues(operation).Inc()
	return SessionResult{Degraded: true, Reason: strings.Join(failures, "; ")}
}

func degradedOutcome(operation string, verdict *models.Verdict, reason string) Outcome {
	degradedOperations.WithLabelValues(operation).Inc()
	return Outcome{Status: StatusDegraded, Verdict: verdict, Reason: reason}
}

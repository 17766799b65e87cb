package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"safety-tracker/internal/models"
	"safety-tracker/internal/store"
	"safety-tracker/internal/tracker"

	"github.com/gorilla/mux"
)

type subjectRequest struct {
	UserID string `json:"user_id"`
}

type trackLocationRequest struct {
	UserID    string   `json:"user_id"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Timestamp string   `json:"timestamp"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
	Speed     *float64 `json:"speed,omitempty"`
	Heading   *float64 `json:"heading,omitempty"`
}

type resolveRequest struct {
	IsResolved      bool   `json:"is_resolved"`
	ResolutionNotes string `json:"resolution_notes"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// parseTimestamp returns the zero time for unparseable input; such samples
// are kept but contribute no movement pair.
func parseTimestamp(raw string, now time.Time) time.Time {
	if raw == "" {
		return now
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts
		}
	}
	return time.Time{}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeSubject(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req subjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return "", false
	}
	return req.UserID, true
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   Version,
	})
}

func (s *Server) getAnalyticsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tracker.Analyzer().GetCurrentStats())
}

func (s *Server) getAnomaliesHandler(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
		limit = v
	}
	writeJSON(w, http.StatusOK, s.tracker.Analyzer().GetRecentAnomalies(limit))
}

func (s *Server) startJourneyHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := decodeSubject(w, r)
	if !ok {
		return
	}

	res := s.tracker.StartSession(r.Context(), userID)
	body := map[string]interface{}{
		"message": "Journey started",
		"user_id": userID,
	}
	if res.Degraded {
		body["warning"] = res.Reason
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) endJourneyHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := decodeSubject(w, r)
	if !ok {
		return
	}

	res := s.tracker.EndSession(r.Context(), userID)
	body := map[string]interface{}{
		"message":            "Journey ended",
		"safety_score_reset": true,
		"anomalies_cleared":  res.Cleared,
	}
	if res.Degraded {
		body["warning"] = res.Reason
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) trackLocationHandler(w http.ResponseWriter, r *http.Request) {
	var req trackLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.UserID == "" || req.Latitude == nil || req.Longitude == nil {
		writeError(w, http.StatusBadRequest, "user_id, latitude and longitude are required")
		return
	}

	sample := models.LocationSample{
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
		Timestamp: parseTimestamp(req.Timestamp, s.tracker.Now()),
	}

	out, err := s.tracker.Submit(r.Context(), req.UserID, sample)
	switch {
	case errors.Is(err, tracker.ErrInvalidSample):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, tracker.ErrNoActiveSession):
		writeError(w, http.StatusBadRequest, "No active journey found")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	body := map[string]interface{}{
		"status": out.Status,
	}
	if out.Verdict != nil {
		body["is_anomaly"] = out.Verdict.IsAnomaly
		body["anomaly_score"] = out.Verdict.Score
	}
	if out.AlertID != "" {
		body["alert_id"] = out.AlertID
	}
	if out.Status == tracker.StatusDegraded {
		body["warning"] = out.Reason
	}
	writeJSON(w, http.StatusAccepted, body)
}

func (s *Server) safetyScoreHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	score, err := s.tracker.SafetyScore(r.Context(), userID, s.tracker.Now())
	if err != nil {
		log.Printf("Failed to compute safety score for %s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "failed to compute safety score")
		return
	}
	writeJSON(w, http.StatusOK, score)
}

func (s *Server) resetAnomaliesHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := decodeSubject(w, r)
	if !ok {
		return
	}

	n, err := s.tracker.ResetAnomalies(r.Context(), userID)
	if err != nil {
		log.Printf("Failed to reset anomalies for %s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "failed to reset anomalies")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Anomalies reset",
		"deleted": n,
	})
}

func (s *Server) listAnomaliesHandler(w http.ResponseWriter, r *http.Request) {
	records, err := s.tracker.ListUnresolved(r.Context())
	if err != nil {
		log.Printf("Failed to list anomalies: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list anomalies")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) resolveAnomalyHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid anomaly id")
		return
	}

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !req.IsResolved {
		writeError(w, http.StatusBadRequest, "only is_resolved=true is supported")
		return
	}

	err = s.tracker.Resolve(r.Context(), id, req.ResolutionNotes)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		log.Printf("Failed to resolve anomaly %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to resolve anomaly")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":               id,
		"is_resolved":      true,
		"resolution_notes": req.ResolutionNotes,
	})
}

func (s *Server) reloadModelHandler(w http.ResponseWriter, r *http.Request) {
	if s.models == nil {
		writeError(w, http.StatusNotImplemented, "model reload not configured")
		return
	}
	if err := s.models.Reload(s.modelPath); err != nil {
		log.Printf("Model reload failed: %v", err)
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.updateScorerGauge()
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Model reloaded",
		"scorer":  string(s.models.Kind()),
	})
}

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"safety-tracker/internal/models"
)

// WebhookSink POSTs the alert to an HTTP endpoint.
type WebhookSink struct {
	url    string
	client *http.Client
}

func NewWebhookSink(url string, timeout time.Duration) *WebhookSink {
	return &WebhookSink{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (w *WebhookSink) Name() string { return "webhook" }

type webhookPayload struct {
	UserID       string          `json:"user_id"`
	AnomalyScore float64         `json:"anomaly_score"`
	Location     models.Location `json:"location"`
	Timestamp    string          `json:"timestamp"`
	AlertType    string          `json:"alert_type"`
	AlertID      string          `json:"alert_id"`
}

func (w *WebhookSink) Send(ctx context.Context, alert models.Alert) error {
	body, err := json.Marshal(webhookPayload{
		UserID:       alert.SubjectID,
		AnomalyScore: alert.AnomalyScore,
		Location:     alert.Location,
		Timestamp:    alert.Timestamp.UTC().Format(time.RFC3339Nano),
		AlertType:    alert.Type,
		AlertID:      alert.ID,
	})
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

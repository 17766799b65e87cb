package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"safety-tracker/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	alerts []models.Alert
	err    error
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Send(ctx context.Context, alert models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, alert)
	return s.err
}

func (s *recordingSink) received() []models.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Alert(nil), s.alerts...)
}

// blockingSink holds every send until release is closed or ctx expires.
type blockingSink struct {
	release chan struct{}
	ctxErrs chan error
}

func (s *blockingSink) Name() string { return "blocking" }

func (s *blockingSink) Send(ctx context.Context, alert models.Alert) error {
	select {
	case <-s.release:
		return nil
	case <-ctx.Done():
		s.ctxErrs <- ctx.Err()
		return ctx.Err()
	}
}

func sampleAlert(subject string) models.Alert {
	return models.Alert{
		SubjectID:    subject,
		AnomalyScore: -0.2,
		Location:     models.Location{Lat: 12.97, Lng: 77.59},
		Timestamp:    time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestDispatcher_DeliversToAllSinks(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{err: errors.New("boom")}
	d := NewDispatcher(Options{QueueSize: 10, Workers: 1}, a, b)

	id, ok := d.Notify(sampleAlert("alice"))
	require.True(t, ok)
	assert.NotEmpty(t, id)
	d.Close()

	for _, s := range []*recordingSink{a, b} {
		got := s.received()
		require.Len(t, got, 1)
		assert.Equal(t, id, got[0].ID)
		assert.Equal(t, models.AlertTypeLocationAnomaly, got[0].Type)
		assert.Equal(t, "alice", got[0].SubjectID)
	}
}

func TestDispatcher_NeverBlocks(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{}), ctxErrs: make(chan error, 16)}
	d := NewDispatcher(Options{QueueSize: 2, Workers: 1, Timeout: time.Minute}, sink)

	start := time.Now()
	accepted := 0
	for i := 0; i < 10; i++ {
		if _, ok := d.Notify(sampleAlert("bob")); ok {
			accepted++
		}
	}
	assert.Less(t, time.Since(start), time.Second)
	// One alert in flight on the worker plus a full queue.
	assert.LessOrEqual(t, accepted, 3)
	assert.GreaterOrEqual(t, accepted, 2)

	close(sink.release)
	d.Close()

	_, ok := d.Notify(sampleAlert("bob"))
	assert.False(t, ok, "closed dispatcher drops")
	d.Close()
}

func TestDispatcher_SendTimeout(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{}), ctxErrs: make(chan error, 1)}
	d := NewDispatcher(Options{QueueSize: 1, Workers: 1, Timeout: 20 * time.Millisecond}, sink)
	defer d.Close()

	_, ok := d.Notify(sampleAlert("carol"))
	require.True(t, ok)

	select {
	case err := <-sink.ctxErrs:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(2 * time.Second):
		t.Fatal("send was not cancelled")
	}
}

func TestWebhookSink(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	alert := sampleAlert("dave")
	alert.ID = "a-1"
	alert.Type = models.AlertTypeLocationAnomaly
	require.NoError(t, NewWebhookSink(srv.URL, time.Second).Send(context.Background(), alert))

	assert.Equal(t, "dave", got["user_id"])
	assert.Equal(t, -0.2, got["anomaly_score"])
	assert.Equal(t, "location_anomaly", got["alert_type"])
	assert.Equal(t, "2024-03-01T12:00:00Z", got["timestamp"])
	assert.Equal(t, map[string]interface{}{"lat": 12.97, "lng": 77.59}, got["location"])
}

func TestWebhookSink_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhookSink(srv.URL, time.Second).Send(context.Background(), sampleAlert("erin"))
	assert.ErrorContains(t, err, "502")

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer slow.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, NewWebhookSink(slow.URL, time.Second).Send(ctx, sampleAlert("erin")))
}

func TestRedisSink(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	ctx := context.Background()

	sub := client.Subscribe(ctx, "admin_alerts")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	alert := sampleAlert("frank")
	alert.ID = "a-2"
	require.NoError(t, NewRedisSink(client, "admin_alerts").Send(ctx, alert))

	select {
	case msg := <-sub.Channel():
		var got models.Alert
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, "a-2", got.ID)
		assert.Equal(t, "frank", got.SubjectID)
	case <-time.After(2 * time.Second):
		t.Fatal("no alert published")
	}

	mr.Close()
	assert.Error(t, NewRedisSink(client, "admin_alerts").Send(ctx, alert))
}

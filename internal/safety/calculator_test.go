package safety

import (
	"context"
	"errors"
	"testing"
	"time"

	"safety-tracker/internal/models"
	"safety-tracker/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 12:00 IST.
var noonIST = time.Date(2024, 3, 1, 6, 30, 0, 0, time.UTC)

func TestCompute_NeverSeen(t *testing.T) {
	c := NewCalculator(store.NewMemoryStore(), DefaultPolicy())

	got, err := c.Compute(context.Background(), "ghost", noonIST)
	require.NoError(t, err)
	assert.Equal(t, models.SafetyScore{Score: 100, Factors: []string{NoHistoryFactor}}, got)
}

func TestCompute_Penalties(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	c := NewCalculator(s, DefaultPolicy())

	require.NoError(t, s.Touch(ctx, "alice"))
	got, err := c.Compute(ctx, "alice", noonIST)
	require.NoError(t, err)
	assert.Equal(t, 100, got.Score)
	assert.NotNil(t, got.Factors)
	assert.Empty(t, got.Factors)

	_, err = s.Record(ctx, models.AnomalyRecord{SubjectID: "alice", Timestamp: noonIST.Add(-time.Hour)})
	require.NoError(t, err)
	got, err = c.Compute(ctx, "alice", noonIST)
	require.NoError(t, err)
	assert.Equal(t, 85, got.Score)
	assert.Equal(t, []string{"Detected 1 recent movement anomalies"}, got.Factors)

	t.Run("lookback bound is inclusive", func(t *testing.T) {
		_, err := s.Record(ctx, models.AnomalyRecord{SubjectID: "alice", Timestamp: noonIST.Add(-24 * time.Hour)})
		require.NoError(t, err)
		_, err = s.Record(ctx, models.AnomalyRecord{SubjectID: "alice", Timestamp: noonIST.Add(-24*time.Hour - time.Second)})
		require.NoError(t, err)

		got, err := c.Compute(ctx, "alice", noonIST)
		require.NoError(t, err)
		assert.Equal(t, 70, got.Score)
	})
}

func TestCompute_MonotonicAndClamped(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	c := NewCalculator(s, DefaultPolicy())
	midnightIST := time.Date(2024, 3, 1, 18, 30, 0, 0, time.UTC)

	for _, now := range []time.Time{noonIST, midnightIST} {
		subject := "s-" + now.Format("1504")
		require.NoError(t, s.Touch(ctx, subject))

		prev := 101
		for i := 0; i < 10; i++ {
			got, err := c.Compute(ctx, subject, now)
			require.NoError(t, err)
			assert.LessOrEqual(t, got.Score, prev)
			assert.GreaterOrEqual(t, got.Score, 0)
			assert.LessOrEqual(t, got.Score, 100)
			prev = got.Score

			_, err = s.Record(ctx, models.AnomalyRecord{SubjectID: subject, Timestamp: now.Add(-time.Minute)})
			require.NoError(t, err)
		}
		assert.Equal(t, 0, prev)
	}
}

func TestIsNight(t *testing.T) {
	c := NewCalculator(store.NewMemoryStore(), DefaultPolicy())
	ist := DefaultPolicy().Location

	tests := []struct {
		hour, minute int
		night        bool
	}{
		{21, 59, false},
		{22, 0, true},
		{23, 30, true},
		{0, 0, true},
		{4, 59, true},
		{5, 0, false},
		{12, 0, false},
	}
	for _, tt := range tests {
		now := time.Date(2024, 3, 1, tt.hour, tt.minute, 0, 0, ist)
		assert.Equal(t, tt.night, c.IsNight(now), "%02d:%02d IST", tt.hour, tt.minute)
	}

	t.Run("reference zone, not the caller's", func(t *testing.T) {
		// 23:00 UTC is 04:30 IST.
		assert.True(t, c.IsNight(time.Date(2024, 3, 1, 23, 0, 0, 0, time.UTC)))
		// 18:00 UTC is 23:30 IST.
		assert.True(t, c.IsNight(time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)))
		// 23:40 UTC is 05:10 IST.
		assert.False(t, c.IsNight(time.Date(2024, 3, 1, 23, 40, 0, 0, time.UTC)))
	})
}

func TestCompute_NightFactor(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.Touch(ctx, "owl"))
	c := NewCalculator(s, DefaultPolicy())

	got, err := c.Compute(ctx, "owl", time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, models.SafetyScore{Score: 90, Factors: []string{NightFactor}}, got)
}

type failingHistory struct{}

func (failingHistory) Seen(context.Context, string) (bool, error) {
	return false, errors.New("database is locked")
}

func (failingHistory) CountSince(context.Context, string, time.Time) (int, error) {
	return 0, nil
}

func TestCompute_HistoryError(t *testing.T) {
	_, err := NewCalculator(failingHistory{}, DefaultPolicy()).Compute(context.Background(), "x", noonIST)
	assert.Error(t, err)
}

package clock

import (
	"testing"
	"time"
)

func TestRealClock_Now(t *testing.T) {
	clock := RealClock{}
	before := time.Now()
	now := clock.Now()
	after := time.Now()

	if now.Before(before) || now.After(after) {
		t.Errorf("Now() = %v, expected between %v and %v", now, before, after)
	}
}

func TestMockClock(t *testing.T) {
	fixedTime := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	clock := NewMockClock(fixedTime)

	if !clock.Now().Equal(fixedTime) {
		t.Errorf("got %v, want %v", clock.Now(), fixedTime)
	}

	clock.Advance(90 * time.Minute)
	if want := fixedTime.Add(90 * time.Minute); !clock.Now().Equal(want) {
		t.Errorf("after Advance got %v, want %v", clock.Now(), want)
	}

	newTime := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	clock.Set(newTime)
	if !clock.Now().Equal(newTime) {
		t.Errorf("after Set got %v, want %v", clock.Now(), newTime)
	}
}

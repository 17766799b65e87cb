package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLocationSample_Valid(t *testing.T) {
	noon := time.Date(2024, 3, 1, 6, 30, 0, 0, time.UTC)

	tests := []struct {
		name   string
		sample LocationSample
		want   bool
	}{
		{"in range", LocationSample{Latitude: 12.97, Longitude: 77.59, Timestamp: noon}, true},
		{"poles and antimeridian", LocationSample{Latitude: -90, Longitude: 180, Timestamp: noon}, true},
		{"zero timestamp", LocationSample{Latitude: 1, Longitude: 1}, true},
		{"latitude too large", LocationSample{Latitude: 90.1, Longitude: 0, Timestamp: noon}, false},
		{"longitude too small", LocationSample{Latitude: 0, Longitude: -180.5, Timestamp: noon}, false},
		{"year 3000", LocationSample{Latitude: 1, Longitude: 1, Timestamp: time.Date(3000, 1, 1, 0, 0, 0, 0, time.UTC)}, false},
		{"year 1600", LocationSample{Latitude: 1, Longitude: 1, Timestamp: time.Date(1600, 1, 1, 0, 0, 0, 0, time.UTC)}, false},
		{"last representable instant", LocationSample{Latitude: 1, Longitude: 1, Timestamp: time.Unix(0, 1<<63-1)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.sample.Valid())
		})
	}
}

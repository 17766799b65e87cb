package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistance(t *testing.T) {
	t.Parallel()

	t.Run("identical points", func(t *testing.T) {
		t.Parallel()
		for _, p := range [][2]float64{{0, 0}, {19.076, 72.8777}, {-89.9, 179.9}, {45, -120}} {
			assert.Equal(t, 0.0, Distance(p[0], p[1], p[0], p[1]))
		}
	})

	t.Run("symmetric", func(t *testing.T) {
		t.Parallel()
		d1 := Distance(19.0760, 72.8777, 28.6139, 77.2090)
		d2 := Distance(28.6139, 77.2090, 19.0760, 72.8777)
		assert.InDelta(t, d1, d2, 1e-6)
	})

	t.Run("one degree of latitude", func(t *testing.T) {
		t.Parallel()
		assert.InDelta(t, 111195, Distance(0, 0, 1, 0), 1)
	})

	t.Run("mumbai to delhi", func(t *testing.T) {
		t.Parallel()
		assert.InDelta(t, 1150000, Distance(19.0760, 72.8777, 28.6139, 77.2090), 10000)
	})
}

func TestBearing(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		want                   float64
	}{
		{"north", 0, 0, 1, 0, 0},
		{"east", 0, 0, 0, 1, 90},
		{"south", 1, 0, 0, 0, 180},
		{"west", 0, 1, 0, 0, 270},
		{"same point", 10, 10, 10, 10, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Bearing(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.Less(t, got, 360.0)
		})
	}
}

func TestBearingDelta(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 20.0, BearingDelta(350, 10))
	assert.Equal(t, 20.0, BearingDelta(10, 350))
	assert.Equal(t, 180.0, BearingDelta(0, 180))
	assert.Equal(t, 0.0, BearingDelta(42, 42))
	assert.InDelta(t, 90.0, BearingDelta(45, 315), 1e-9)

	for x := 0.0; x < 360; x += 7.5 {
		for y := 0.0; y < 360; y += 11.25 {
			d := BearingDelta(x, y)
			assert.GreaterOrEqual(t, d, 0.0)
			assert.LessOrEqual(t, d, 180.0)
		}
	}
}

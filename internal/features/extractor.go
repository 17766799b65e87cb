// Package features turns a window of location samples into the fixed-length
// kinematic vector consumed by the anomaly scorers.
package features

import (
	"math"
	"sort"

	"safety-tracker/internal/geo"
	"safety-tracker/internal/models"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// AccelerationInterval is the nominal spacing, in seconds, used to turn
// consecutive speed differences into accelerations regardless of the observed
// interval. The trained baseline assumes it; changing it means retraining.
const AccelerationInterval = 10.0

// Extract computes the feature vector for window. It reports false when fewer
// than two usable points remain, which callers treat as "no verdict yet".
func Extract(window []models.LocationSample) (models.FeatureVector, bool) {
	var fv models.FeatureVector
	if len(window) < 2 {
		return fv, false
	}

	sorted := make([]models.LocationSample, len(window))
	copy(sorted, window)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	speeds := make([]float64, 0, len(sorted)-1)
	bearings := make([]float64, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		prev, curr := sorted[i-1], sorted[i]
		if prev.Timestamp.IsZero() || curr.Timestamp.IsZero() {
			continue
		}
		dt := curr.Timestamp.Sub(prev.Timestamp).Seconds()
		if dt <= 0 {
			continue
		}

		d := geo.Distance(prev.Latitude, prev.Longitude, curr.Latitude, curr.Longitude)
		speeds = append(speeds, d/dt)
		bearings = append(bearings, geo.Bearing(prev.Latitude, prev.Longitude, curr.Latitude, curr.Longitude))
	}
	if len(speeds) == 0 {
		return fv, false
	}

	bearingChanges := make([]float64, 0, len(bearings))
	for i := 1; i < len(bearings); i++ {
		bearingChanges = append(bearingChanges, geo.BearingDelta(bearings[i-1], bearings[i]))
	}

	accels := make([]float64, 0, len(speeds))
	for i := 1; i < len(speeds); i++ {
		accels = append(accels, (speeds[i]-speeds[i-1])/AccelerationInterval)
	}

	fv[models.SpeedMean] = mean(speeds)
	fv[models.SpeedStd] = stdDev(speeds)
	fv[models.SpeedMax] = maxOf(speeds)
	fv[models.SpeedMin] = minOf(speeds)

	fv[models.BearingChangeMean] = mean(bearingChanges)
	fv[models.BearingChangeStd] = stdDev(bearingChanges)
	fv[models.BearingChangeMax] = maxOf(bearingChanges)

	fv[models.AccelMean] = mean(accels)
	fv[models.AccelStd] = stdDev(accels)
	fv[models.AccelMax] = maxOf(accels)
	fv[models.AccelMin] = minOf(accels)

	fv[models.PointCount] = float64(len(sorted))
	fv[models.CurrentSpeed] = speeds[len(speeds)-1]

	var total float64
	for _, a := range accels {
		total += math.Abs(a)
	}
	fv[models.TotalAccelMagnitude] = total

	return fv, true
}

// The helpers below return 0 for an empty series.

func mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return stat.Mean(x, nil)
}

// stdDev is the population standard deviation; a single element yields 0.
func stdDev(x []float64) float64 {
	if len(x) < 2 {
		return 0
	}
	return math.Sqrt(stat.PopVariance(x, nil))
}

func maxOf(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return floats.Max(x)
}

func minOf(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return floats.Min(x)
}

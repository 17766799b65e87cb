package models

// FeatureCount is the length of every FeatureVector.
const FeatureCount = 14

// Positions inside a FeatureVector. The order is part of the trained model
// contract and must not change without retraining.
const (
	SpeedMean = iota
	SpeedStd
	SpeedMax
	SpeedMin
	BearingChangeMean
	BearingChangeStd
	BearingChangeMax
	AccelMean
	AccelStd
	AccelMax
	AccelMin
	PointCount
	CurrentSpeed
	TotalAccelMagnitude
)

// FeatureVector summarizes the kinematics of one window snapshot.
type FeatureVector [FeatureCount]float64

func (f FeatureVector) Slice() []float64 {
	out := make([]float64, FeatureCount)
	copy(out, f[:])
	return out
}

var featureNames = [FeatureCount]string{
	"speed_mean", "speed_std", "speed_max", "speed_min",
	"bearing_change_mean", "bearing_change_std", "bearing_change_max",
	"accel_mean", "accel_std", "accel_max", "accel_min",
	"n_points", "current_speed", "total_accel_magnitude",
}

func FeatureNames() []string {
	out := make([]string, FeatureCount)
	copy(out, featureNames[:])
	return out
}

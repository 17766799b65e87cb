package analytics

import (
	"math"
	"math/rand/v2"

	"safety-tracker/internal/models"

	"gonum.org/v1/gonum/stat/distuv"
)

// SyntheticBaseline draws n feature vectors approximating normal pedestrian
// and vehicle movement. It is a calibration placeholder, not ground truth:
// nothing in it comes from observed traffic.
func SyntheticBaseline(n int, seed uint64) [][]float64 {
	src := rand.NewPCG(seed, seed)
	rng := rand.New(src)

	normal := func(mu, sigma float64) float64 {
		return distuv.Normal{Mu: mu, Sigma: sigma, Src: src}.Rand()
	}
	exponential := func(scale float64) float64 {
		return distuv.Exponential{Rate: 1 / scale, Src: src}.Rand()
	}

	data := make([][]float64, 0, n)
	for i := 0; i < n; i++ {
		var f models.FeatureVector

		// Walking to urban driving, 0.5-15 m/s.
		speedMean := math.Max(0.5, math.Min(normal(5, 3), 15))
		speedStd := exponential(1) + 0.1
		f[models.SpeedMean] = speedMean
		f[models.SpeedStd] = speedStd
		f[models.SpeedMax] = speedMean + exponential(2)
		f[models.SpeedMin] = math.Max(0, speedMean-exponential(1))

		bearingMean := exponential(10)
		f[models.BearingChangeMean] = bearingMean
		f[models.BearingChangeStd] = exponential(5) + 1
		f[models.BearingChangeMax] = bearingMean + exponential(20)

		f[models.AccelMean] = normal(0, 0.5)
		f[models.AccelStd] = exponential(0.5) + 0.1
		f[models.AccelMax] = normal(2, 1)
		f[models.AccelMin] = normal(-2, 1)

		f[models.PointCount] = float64(15 + rng.IntN(16))
		f[models.CurrentSpeed] = math.Max(0, normal(speedMean, speedStd/2))
		f[models.TotalAccelMagnitude] = exponential(5)

		data = append(data, f.Slice())
	}
	return data
}

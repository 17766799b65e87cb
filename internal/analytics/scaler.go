package analytics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// StandardScaler centers each feature on its training mean and divides by the
// population standard deviation. Constant features keep a scale of 1.
type StandardScaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

func FitStandardScaler(data [][]float64) (*StandardScaler, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot fit scaler on empty data")
	}
	width := len(data[0])
	s := &StandardScaler{
		Mean:  make([]float64, width),
		Scale: make([]float64, width),
	}

	column := make([]float64, len(data))
	for j := 0; j < width; j++ {
		for i, row := range data {
			if len(row) != width {
				return nil, fmt.Errorf("row %d has %d features, want %d", i, len(row), width)
			}
			column[i] = row[j]
		}
		mean, variance := stat.PopMeanVariance(column, nil)
		s.Mean[j] = mean
		s.Scale[j] = math.Sqrt(variance)
		if s.Scale[j] == 0 {
			s.Scale[j] = 1
		}
	}
	return s, nil
}

func (s *StandardScaler) Transform(x []float64) ([]float64, error) {
	if len(x) != len(s.Mean) || len(s.Scale) != len(s.Mean) {
		return nil, fmt.Errorf("feature vector has %d values, scaler expects %d", len(x), len(s.Mean))
	}
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = (v - s.Mean[i]) / s.Scale[i]
	}
	return out, nil
}

package analytics

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"safety-tracker/internal/models"
)

const modelVersion = 1

// Model bundles the fitted scaler and forest. Once built it is read-only and
// can be shared across goroutines.
type Model struct {
	Version   int              `json:"version"`
	Features  []string         `json:"features"`
	TrainedAt time.Time        `json:"trained_at"`
	Scaler    *StandardScaler  `json:"scaler"`
	Forest    *IsolationForest `json:"forest"`
}

func Train(data [][]float64, cfg ForestConfig) (*Model, error) {
	scaler, err := FitStandardScaler(data)
	if err != nil {
		return nil, fmt.Errorf("failed to fit scaler: %w", err)
	}

	scaled := make([][]float64, len(data))
	for i, row := range data {
		if scaled[i], err = scaler.Transform(row); err != nil {
			return nil, fmt.Errorf("failed to scale row %d: %w", i, err)
		}
	}

	forest, err := FitIsolationForest(scaled, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to fit isolation forest: %w", err)
	}

	return &Model{
		Version:   modelVersion,
		Features:  models.FeatureNames(),
		TrainedAt: time.Now().UTC(),
		Scaler:    scaler,
		Forest:    forest,
	}, nil
}

// Decide scales x and returns whether it is an outlier together with the
// decision value.
func (m *Model) Decide(x []float64) (bool, float64, error) {
	scaled, err := m.Scaler.Transform(x)
	if err != nil {
		return false, 0, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	decision, err := m.Forest.Decision(scaled)
	if err != nil {
		return false, 0, err
	}
	return decision < 0, decision, nil
}

// Save writes the model as JSON via a temporary file so readers never see a
// partial document.
func (m *Model) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal model: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".model-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp model file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write model: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close model file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to install model: %w", err)
	}
	return nil
}

func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse model %s: %w", path, err)
	}
	if m.Version != modelVersion {
		return nil, fmt.Errorf("model %s has version %d, want %d", path, m.Version, modelVersion)
	}
	if m.Scaler == nil || m.Forest == nil {
		return nil, fmt.Errorf("model %s is missing scaler or forest", path)
	}
	if len(m.Scaler.Mean) != models.FeatureCount || m.Forest.Features != models.FeatureCount {
		return nil, fmt.Errorf("model %s expects %d features, want %d", path, m.Forest.Features, models.FeatureCount)
	}
	if err := m.Forest.validate(); err != nil {
		return nil, fmt.Errorf("model %s: %w", path, err)
	}
	return &m, nil
}

// TrainedScorer wraps a fitted Model. Inference failures degrade to a
// non-anomalous verdict.
type TrainedScorer struct {
	model *Model
}

func NewTrainedScorer(m *Model) *TrainedScorer {
	return &TrainedScorer{model: m}
}

func (s *TrainedScorer) Kind() Kind { return KindTrained }

func (s *TrainedScorer) Score(features models.FeatureVector) (v models.Verdict) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Anomaly inference panicked: %v", r)
			v = models.Verdict{}
		}
	}()

	isAnomaly, decision, err := s.model.Decide(features[:])
	if err != nil {
		log.Printf("Anomaly inference failed: %v", err)
		return models.Verdict{}
	}
	return models.Verdict{IsAnomaly: isAnomaly, Score: decision}
}

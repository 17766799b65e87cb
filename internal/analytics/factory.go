package analytics

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"

	"safety-tracker/internal/config"
	"safety-tracker/internal/models"
)

type Options struct {
	ModelPath       string
	TrainIfMissing  bool
	TrainingSamples int
	Forest          ForestConfig
}

// OptionsFromConfig maps the model section of the service config.
func OptionsFromConfig(cfg config.ModelConfig) Options {
	return Options{
		ModelPath:       cfg.Path,
		TrainIfMissing:  cfg.TrainIfMissing,
		TrainingSamples: cfg.TrainingSamples,
		Forest: ForestConfig{
			Trees:         cfg.Trees,
			Contamination: cfg.Contamination,
			Seed:          cfg.Seed,
		},
	}
}

// NewScorer picks the scorer for this process: a persisted model when one
// loads, a freshly trained synthetic model when allowed, and the rule scorer
// otherwise.
func NewScorer(opts Options) Scorer {
	if opts.ModelPath != "" {
		m, err := LoadModel(opts.ModelPath)
		switch {
		case err == nil:
			log.Printf("Loaded anomaly model from %s", opts.ModelPath)
			return NewTrainedScorer(m)
		case !errors.Is(err, os.ErrNotExist):
			log.Printf("Failed to load anomaly model, using rule-based scoring: %v", err)
			return RuleScorer{}
		}
	}

	if !opts.TrainIfMissing {
		log.Printf("No anomaly model available, using rule-based scoring")
		return RuleScorer{}
	}

	m, err := TrainSynthetic(opts)
	if err != nil {
		log.Printf("Failed to train anomaly model, using rule-based scoring: %v", err)
		return RuleScorer{}
	}
	if opts.ModelPath != "" {
		if err := m.Save(opts.ModelPath); err != nil {
			log.Printf("Failed to save anomaly model: %v", err)
		} else {
			log.Printf("Trained anomaly model saved to %s", opts.ModelPath)
		}
	}
	return NewTrainedScorer(m)
}

// TrainSynthetic fits a model on the synthetic baseline.
func TrainSynthetic(opts Options) (*Model, error) {
	n := opts.TrainingSamples
	if n <= 0 {
		n = 1000
	}
	cfg := opts.Forest
	if cfg.Contamination == 0 {
		cfg.Contamination = DefaultForestConfig().Contamination
	}
	return Train(SyntheticBaseline(n, cfg.Seed), cfg)
}

type scorerRef struct {
	Scorer
}

// Holder publishes the active scorer. Readers never lock; Reload and Swap
// replace the scorer atomically, so a reader sees either the old or the new
// one.
type Holder struct {
	current atomic.Pointer[scorerRef]
	mu      sync.Mutex
}

func NewHolder(s Scorer) *Holder {
	h := &Holder{}
	h.current.Store(&scorerRef{s})
	return h
}

func (h *Holder) Score(features models.FeatureVector) models.Verdict {
	return h.current.Load().Score(features)
}

func (h *Holder) Kind() Kind {
	return h.current.Load().Kind()
}

func (h *Holder) Swap(s Scorer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current.Store(&scorerRef{s})
}

// Reload replaces the scorer with the model stored at path. On failure the
// current scorer stays in place.
func (h *Holder) Reload(path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	m, err := LoadModel(path)
	if err != nil {
		return fmt.Errorf("failed to reload model: %w", err)
	}
	h.current.Store(&scorerRef{NewTrainedScorer(m)})
	log.Printf("Reloaded anomaly model from %s", path)
	return nil
}

// Command train fits the isolation forest on the synthetic baseline and
// writes the model file the server loads at startup.
package main

import (
	"flag"
	"log"

	"safety-tracker/internal/analytics"
	"safety-tracker/internal/config"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found, using environment variables")
	}

	configPath := flag.String("config", "config.yaml", "Path to YAML config file")
	out := flag.String("out", "", "Model output path (defaults to model.path from config)")
	samples := flag.Int("samples", 0, "Number of synthetic training samples (0 uses config)")
	trees := flag.Int("trees", 0, "Number of trees (0 uses config)")
	seed := flag.Uint64("seed", 0, "Random seed (0 uses config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	opts := analytics.OptionsFromConfig(cfg.Model)
	if *out != "" {
		opts.ModelPath = *out
	}
	if *samples > 0 {
		opts.TrainingSamples = *samples
	}
	if *trees > 0 {
		opts.Forest.Trees = *trees
	}
	if *seed > 0 {
		opts.Forest.Seed = *seed
	}

	log.Printf("Training isolation forest: samples=%d trees=%d contamination=%.3f seed=%d",
		opts.TrainingSamples, opts.Forest.Trees, opts.Forest.Contamination, opts.Forest.Seed)

	m, err := analytics.TrainSynthetic(opts)
	if err != nil {
		log.Fatalf("Training failed: %v", err)
	}

	data := analytics.SyntheticBaseline(opts.TrainingSamples, opts.Forest.Seed)
	flagged := 0
	for _, row := range data {
		isAnomaly, _, err := m.Decide(row)
		if err != nil {
			log.Fatalf("Scoring training data failed: %v", err)
		}
		if isAnomaly {
			flagged++
		}
	}
	log.Printf("Training data flagged: %d/%d (offset %.4f)", flagged, len(data), m.Forest.Offset)

	if err := m.Save(opts.ModelPath); err != nil {
		log.Fatalf("Failed to save model: %v", err)
	}
	log.Printf("Model saved to %s", opts.ModelPath)
}

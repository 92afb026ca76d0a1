package main

import (
	"errors"
	"flag"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sarchlab/snnstage/artifact"
	"github.com/sarchlab/snnstage/config"
	"github.com/sarchlab/snnstage/verify"
)

// main grades the agreement of every backend over a windows file.
func main() {
	cfgPath := flag.String("config", "", "run configuration (YAML)")
	envFile := flag.String("env", ".env", "environment override file")
	reportPath := flag.String("report", "", "also write the report to this file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.ApplyEnv(*envFile); err != nil {
		log.Fatalf("Failed to apply environment: %v", err)
	}

	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Level(),
	})
	slog.SetDefault(slog.New(handler))

	if cfg.Windows == "" {
		log.Fatal("No windows file configured")
	}

	model, err := artifact.LoadModel(cfg.Exports)
	if err != nil {
		log.Fatalf("Failed to load exports: %v", err)
	}
	model, err = cfg.Apply(model)
	if err != nil {
		log.Fatalf("Invalid parameters: %v", err)
	}

	b := verify.MakeVerifierBuilder().WithWorkers(cfg.Workers)

	w1, w2, err := artifact.LoadFloatWeights(
		filepath.Join(cfg.Exports, artifact.FloatWeightsFile))
	switch {
	case err == nil:
		b = b.WithOriginalWeights(w1, w2)
	case errors.Is(err, artifact.ErrMissingArtifact):
		slog.Info("no original float weights, skipping float-orig backend")
	default:
		log.Fatalf("Failed to load float weights: %v", err)
	}

	v, err := b.Build(model)
	if err != nil {
		log.Fatalf("Failed to build engines: %v", err)
	}

	f, err := os.Open(cfg.Windows)
	if err != nil {
		log.Fatalf("Failed to open windows: %v", err)
	}
	samples, err := artifact.ParseVectors(f)
	f.Close()
	if err != nil {
		log.Fatalf("Failed to parse windows: %v", err)
	}

	report, err := v.Verify(samples)
	if err != nil {
		log.Fatalf("Verification failed: %v", err)
	}

	report.Write(os.Stdout)
	if *reportPath != "" {
		if err := report.SaveToFile(*reportPath); err != nil {
			log.Fatalf("Failed to save report: %v", err)
		}
	}

	if !report.Ready() {
		log.Fatalf("Backends disagree beyond tolerance")
	}
}

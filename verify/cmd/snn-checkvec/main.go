package main

import (
	"flag"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sarchlab/snnstage/artifact"
	"github.com/sarchlab/snnstage/config"
	"github.com/sarchlab/snnstage/verify"
)

// main re-runs a golden vector file against the exported integer engine.
func main() {
	cfgPath := flag.String("config", "", "run configuration (YAML)")
	envFile := flag.String("env", ".env", "environment override file")
	vecPath := flag.String("vectors", "", "vector file (default <output>/test_vectors.txt)")
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

	if *vecPath == "" {
		*vecPath = filepath.Join(cfg.Output, verify.VectorsFile)
	}

	model, err := artifact.LoadModel(cfg.Exports)
	if err != nil {
		log.Fatalf("Failed to load exports: %v", err)
	}
	model, err = cfg.Apply(model)
	if err != nil {
		log.Fatalf("Invalid parameters: %v", err)
	}
	eng, err := model.FixedEngine()
	if err != nil {
		log.Fatalf("Failed to build engine: %v", err)
	}

	f, err := os.Open(*vecPath)
	if err != nil {
		log.Fatalf("Failed to open vectors: %v", err)
	}
	vecs, err := artifact.ParseVectors(f)
	f.Close()
	if err != nil {
		log.Fatalf("Failed to parse vectors: %v", err)
	}

	res := verify.CheckVectors(eng, vecs)
	res.Write(os.Stdout)
	if !res.Passed() {
		log.Fatalf("%d of %d vectors do not match", len(res.Mismatches), res.Checked)
	}
}

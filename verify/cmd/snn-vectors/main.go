package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/sarchlab/snnstage/artifact"
	"github.com/sarchlab/snnstage/config"
	"github.com/sarchlab/snnstage/verify"
)

// main writes the golden vector bundle for RTL simulation.
func main() {
	cfgPath := flag.String("config", "", "run configuration (YAML)")
	envFile := flag.String("env", ".env", "environment override file")
	noPatterns := flag.Bool("no-patterns", false, "skip the standard stimulus patterns")
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

	model, err := artifact.LoadModel(cfg.Exports)
	if err != nil {
		log.Fatalf("Failed to load exports: %v", err)
	}
	model, err = cfg.Apply(model)
	if err != nil {
		log.Fatalf("Invalid parameters: %v", err)
	}

	gen, err := verify.NewGenerator(model)
	if err != nil {
		log.Fatalf("Failed to build engine: %v", err)
	}

	var cases []verify.TracedCase
	if !*noPatterns {
		cases = gen.Cases(verify.Patterns(model.Params.WindowLen))
	}

	var vecs []artifact.Vector
	if cfg.Windows != "" {
		samples, err := loadWindows(cfg.Windows)
		if err != nil {
			log.Fatalf("Failed to load windows: %v", err)
		}
		if cfg.Vectors > 0 && len(samples) > cfg.Vectors {
			samples = samples[:cfg.Vectors]
		}
		vecs = gen.Golden(samples)
	}

	if err := gen.WriteBundle(cfg.Output, cases, vecs); err != nil {
		log.Fatalf("Failed to write bundle: %v", err)
	}

	fmt.Println("============================================================")
	fmt.Printf("SUMMARY: %d test cases, %d vectors in %s/\n",
		len(cases), len(vecs), cfg.Output)
	fmt.Println("============================================================")
	for _, c := range cases {
		fmt.Printf("  %-30s class=%d counts=%v\n", c.Name, c.Result.Class, c.Result.Counts)
	}
}

func loadWindows(path string) ([]artifact.Vector, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return artifact.ParseVectors(f)
}

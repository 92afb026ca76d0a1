package main

import (
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/sarchlab/akita/v4/monitoring"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/snnstage/artifact"
	"github.com/sarchlab/snnstage/config"
	"github.com/sarchlab/snnstage/emu"
	"github.com/sarchlab/snnstage/verify"
)

// main classifies a windows file through the host driver and the
// configured device model.
func main() {
	cfgPath := flag.String("config", "", "run configuration (YAML)")
	envFile := flag.String("env", ".env", "environment override file")
	logPath := flag.String("log", "snn_emulate.log", "log file")
	dumpRegs := flag.Bool("regs", false, "print the register file after the run")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.ApplyEnv(*envFile); err != nil {
		log.Fatalf("Failed to apply environment: %v", err)
	}

	logFile, err := os.Create(*logPath)
	if err != nil {
		log.Fatalf("Failed to create log file: %v", err)
	}
	atexit.Register(func() {
		logFile.Sync()
		logFile.Close()
	})

	handler := slog.NewJSONHandler(logFile, &slog.HandlerOptions{
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

	b := config.MakePlatformBuilder().WithConfig(cfg)
	var monitor *monitoring.Monitor
	if cfg.Monitor {
		monitor = monitoring.NewMonitor()
		b = b.WithMonitor(monitor)
	}

	platform, err := b.Build("SNN", model)
	if err != nil {
		log.Fatalf("Failed to build platform: %v", err)
	}
	if monitor != nil {
		monitor.StartServer()
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
	if cfg.Vectors > 0 && len(samples) > cfg.Vectors {
		samples = samples[:cfg.Vectors]
	}

	res := verify.EvaluatePlatform(platform, samples)
	res.Write(os.Stdout)

	if *dumpRegs {
		emu.PrintRegisters(os.Stdout, platform.Device.Registers())
	}

	atexit.Exit(0)
}

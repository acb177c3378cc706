// Package main implements the device detection probe entry point.
package main

import (
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/KojoZero/azahar/internal/config"
	"github.com/KojoZero/azahar/internal/logger"
	"github.com/KojoZero/azahar/internal/probe"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (defaults apply if not provided)")
	device := flag.String("device", "", "Preferred device name substring (overrides config)")
	validation := flag.Bool("validation", false, "Enable the Khronos validation layer")
	smokeFrames := flag.Int("smoke-frames", 0, "Present N frames against a synthetic host after detection")
	flag.Parse()

	var cfg *config.Settings
	var err error

	if *configPath != "" {
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Printf("Failed to load config: %v", err)
			os.Exit(1)
		}
	} else {
		cfg = config.Default()
	}

	if *device != "" {
		cfg.Renderer.PreferredDevice = *device
	}
	if *validation {
		cfg.Renderer.EnableValidation = true
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)

	p := probe.New(cfg)
	report, err := p.Run()
	if err != nil {
		slog.Error("Detection failed", "error", err)
		os.Exit(1)
	}
	if !report.Supported {
		slog.Warn("No usable Vulkan device, hardware rendering will be unavailable")
		os.Exit(1)
	}

	if *smokeFrames > 0 {
		if err := p.Smoke(cfg, *smokeFrames); err != nil {
			slog.Error("Smoke run failed", "error", err)
			os.Exit(1)
		}
	}
}

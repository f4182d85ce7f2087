package main

import (
	"context"
	"image"
	"log/slog"

	"github.com/harishchavandke01/FaceClear/internal/config"
	"github.com/harishchavandke01/FaceClear/internal/imageproc"
	"github.com/harishchavandke01/FaceClear/internal/inference"
	"github.com/harishchavandke01/FaceClear/internal/logger"
	"github.com/harishchavandke01/FaceClear/internal/pipeline"
)

// setup loads the environment and builds the logger and the restoration
// pipeline shared by every command.
func setup(ctx context.Context) (config.Config, *slog.Logger, pipeline.Pipeline, error) {
	envPath := config.LoadDotEnv()
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, pipeline.Pipeline{}, err
	}
	log := logger.New(logger.Config{Level: logger.ParseLevel(cfg.LogLevel), Format: cfg.LogFormat})
	if envPath != "" {
		log.Debug("loaded dotenv", "path", envPath)
	}

	m, err := inference.Load(ctx, inference.Config{
		Backend:   cfg.ModelBackend,
		URL:       cfg.ModelURL,
		Name:      cfg.ModelName,
		Timeout:   cfg.ModelTimeout,
		Serialize: cfg.InferSerialize,
	})
	if err != nil {
		return config.Config{}, nil, pipeline.Pipeline{}, err
	}
	log.Info("model loaded", "backend", cfg.ModelBackend, "name", cfg.ModelName, "serialize", cfg.InferSerialize)

	if err := inference.Warmup(ctx, m, cfg.TargetSize, cfg.TargetSize); err != nil {
		log.Warn("model warm-up failed", "error", err)
	}

	p := pipeline.Pipeline{
		Model:      m,
		TargetSize: image.Pt(cfg.TargetSize, cfg.TargetSize),
		Normalize:  imageproc.Normalization(cfg.Normalize),
	}
	return cfg, log, p, nil
}

// Package main implements the forecaster's startup sequence.
//
// This file contains Bootstrap, which turns configuration into a ready
// pipeline:
//
//	ping asset source → load scaler → load model → assemble → warm up
//
// Bootstrap runs exactly once, before any listener is opened. Every failure is
// wrapped in pipeline.ErrStartup; main logs it and exits without serving.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/HatiCode/loadforecaster/cmd/forecaster/config"
	"github.com/HatiCode/loadforecaster/cmd/forecaster/metrics"
	fmodels "github.com/HatiCode/loadforecaster/cmd/forecaster/models"
	"github.com/HatiCode/loadforecaster/pkg/assets"
	"github.com/HatiCode/loadforecaster/pkg/pipeline"
	"github.com/HatiCode/loadforecaster/pkg/scaling"
)

// newAssetSource opens the source named by cfg.AssetSource. Sources holding
// a connection also implement io.Closer.
func newAssetSource(cfg *config.Config) (assets.Source, error) {
	switch cfg.AssetSource {
	case config.SourceFile:
		return assets.NewFileSource(), nil
	case config.SourceRedis:
		src, err := assets.NewRedisSource(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisKeyPrefix)
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		return nil, fmt.Errorf("invalid asset source %q", cfg.AssetSource)
	}
}

// loadScaler reads and decodes the scaler artifact.
func loadScaler(ctx context.Context, src assets.Source, name string) (scaling.Scaler, error) {
	data, err := src.Load(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("load scaler artifact from %s: %w", src.Name(), err)
	}
	s, err := scaling.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("decode scaler artifact %q: %w", name, err)
	}
	return s, nil
}

// Bootstrap loads the scaler and model from src, assembles the pipeline and
// runs a warmup forecast. m may be nil.
func Bootstrap(ctx context.Context, cfg *config.Config, src assets.Source, logger *slog.Logger, m *metrics.Metrics) (*pipeline.Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	if pinger, ok := src.(assets.Pinger); ok {
		if err := pinger.Ping(ctx); err != nil {
			return nil, fmt.Errorf("%w: asset source %s unreachable: %w", pipeline.ErrStartup, src.Name(), err)
		}
	}

	scaler, err := loadScaler(ctx, src, cfg.ScalerAsset)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", pipeline.ErrStartup, err)
	}
	logger.Info("scaler loaded", "kind", scaler.Name(), "source", src.Name(), "asset", cfg.ScalerAsset)

	model, err := fmodels.New(ctx, cfg, src, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", pipeline.ErrStartup, err)
	}

	opts := []pipeline.Option{pipeline.WithLogger(logger)}
	if m != nil {
		opts = append(opts, pipeline.WithObserver(m))
	}
	p, err := pipeline.New(scaler, model, opts...)
	if err != nil {
		return nil, err
	}

	if err := p.Warmup(ctx); err != nil {
		return nil, err
	}

	if m != nil {
		m.SetModelInfo(model.Name(), scaler.Name())
	}
	logger.Info("pipeline ready",
		"model", model.Name(),
		"scaler", scaler.Name(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return p, nil
}

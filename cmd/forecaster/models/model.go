// Package models selects and constructs the forecasting model named in the
// configuration.
package models

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/HatiCode/loadforecaster/cmd/forecaster/config"
	"github.com/HatiCode/loadforecaster/pkg/assets"
	"github.com/HatiCode/loadforecaster/pkg/httpx"
	"github.com/HatiCode/loadforecaster/pkg/models"
	"github.com/HatiCode/loadforecaster/pkg/pipeline"
)

// New creates the model selected by cfg.Model. The lstm model is decoded from
// the artifact cfg.ModelAsset read through src.
func New(ctx context.Context, cfg *config.Config, src assets.Source, logger *slog.Logger) (models.Model, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Model {
	case config.ModelLSTM:
		data, err := src.Load(ctx, cfg.ModelAsset)
		if err != nil {
			return nil, fmt.Errorf("load model artifact from %s: %w", src.Name(), err)
		}
		m, err := models.ParseSequential(data)
		if err != nil {
			return nil, fmt.Errorf("decode model artifact %q: %w", cfg.ModelAsset, err)
		}
		steps, features := m.InputShape()
		logger.Info("initializing lstm model",
			"name", m.Name(),
			"source", src.Name(),
			"asset", cfg.ModelAsset,
			"input_shape", []int{steps, features},
		)
		return m, nil

	case config.ModelBaseline:
		logger.Info("initializing baseline model")
		return models.NewBaselineModel(pipeline.WindowSize), nil

	case config.ModelBYOM:
		client, err := httpx.NewClient(cfg.TLS, cfg.BYOMTimeout)
		if err != nil {
			return nil, fmt.Errorf("create byom client: %w", err)
		}
		logger.Info("initializing BYOM model",
			"url", cfg.BYOMURL,
			"value_path", cfg.BYOMValuePath,
			"timeout", cfg.BYOMTimeout,
		)
		return models.NewBYOMModel(cfg.BYOMURL, cfg.BYOMValuePath, pipeline.WindowSize, 1, client), nil

	default:
		return nil, fmt.Errorf("invalid model type %q", cfg.Model)
	}
}

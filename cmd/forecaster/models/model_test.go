package models

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/HatiCode/loadforecaster/cmd/forecaster/config"
	"github.com/HatiCode/loadforecaster/pkg/assets"
	"github.com/HatiCode/loadforecaster/pkg/models"
)

const lstmArtifact = `{
  "format": "keras-sequential",
  "name": "smart_load_forecaster",
  "input_shape": [30, 1],
  "layers": [
    {"type": "lstm", "units": 1, "kernel": [[0.5, 0.4, 0.3, 0.2]], "recurrent_kernel": [[0.1, 0.2, 0.3, 0.4]], "bias": [0, 1, 0, 0]},
    {"type": "dense", "units": 1, "kernel": [[2]], "bias": [0.1]}
  ]
}`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNew(t *testing.T) {
	src := assets.NewMemorySource()
	if err := src.Put("model.json", []byte(lstmArtifact)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	tests := []struct {
		name     string
		mutate   func(c *config.Config)
		wantName string
	}{
		{
			name:     "lstm",
			mutate:   func(c *config.Config) { c.ModelAsset = "model.json" },
			wantName: "smart_load_forecaster",
		},
		{
			name:     "baseline",
			mutate:   func(c *config.Config) { c.Model = config.ModelBaseline },
			wantName: "baseline",
		},
		{
			name: "byom",
			mutate: func(c *config.Config) {
				c.Model = config.ModelBYOM
				c.BYOMURL = "http://model-server:8501/predict"
			},
			wantName: "byom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Defaults()
			tt.mutate(cfg)

			m, err := New(context.Background(), cfg, src, discardLogger())
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if m.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", m.Name(), tt.wantName)
			}
			steps, features := m.InputShape()
			if steps != 30 || features != 1 {
				t.Errorf("InputShape() = (%d, %d), want (30, 1)", steps, features)
			}
		})
	}
}

func TestNew_Errors(t *testing.T) {
	src := assets.NewMemorySource()
	_ = src.Put("corrupt.json", []byte(`{"format":"keras-sequential"}`))

	tests := []struct {
		name    string
		mutate  func(c *config.Config)
		wantErr error
	}{
		{
			name:    "missing artifact",
			mutate:  func(c *config.Config) { c.ModelAsset = "missing.json" },
			wantErr: assets.ErrNotFound,
		},
		{
			name:    "corrupt artifact",
			mutate:  func(c *config.Config) { c.ModelAsset = "corrupt.json" },
			wantErr: models.ErrInvalidArtifact,
		},
		{
			name:   "unknown model",
			mutate: func(c *config.Config) { c.Model = "arima" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Defaults()
			tt.mutate(cfg)

			_, err := New(context.Background(), cfg, src, discardLogger())
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

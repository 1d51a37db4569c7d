// Package models provides the frozen forecasting models the pipeline invokes.
//
// Every model consumes a [batch, timesteps, features] sequence of scaled
// values and returns a [batch, outputs] matrix of scaled predictions. Models
// are read-only after construction: Predict never mutates model state, so a
// single instance is shared by all concurrent requests.
//
// Available models:
//   - Sequential: recurrent network (LSTM/Dense) decoded from exported weights
//   - BaselineModel: trend and momentum extrapolation, needs no artifact
//   - BYOMModel: delegates to an external model server over HTTP
package models

import (
	"context"
	"errors"
	"fmt"

	"github.com/HatiCode/loadforecaster/pkg/tensor"
)

var (
	// ErrInvalidArtifact is returned when a model artifact cannot be decoded.
	ErrInvalidArtifact = errors.New("invalid model artifact")

	// ErrInputShape is returned when Predict receives a tensor whose
	// timesteps or features differ from the model's input shape.
	ErrInputShape = errors.New("model input shape mismatch")
)

// Model is a frozen single-step regressor.
type Model interface {
	// Name returns the model identifier.
	Name() string

	// InputShape returns the (timesteps, features) the model expects.
	InputShape() (steps, features int)

	// Predict runs inference on x and returns one row per batch element.
	Predict(ctx context.Context, x tensor.Sequence) (tensor.Matrix, error)
}

// checkInput verifies x against the model's declared input shape.
func checkInput(m Model, x tensor.Sequence) error {
	steps, features := m.InputShape()
	if x.Steps() != steps || x.Features() != features {
		return fmt.Errorf("%w: %s expects [*,%d,%d], got %v", ErrInputShape, m.Name(), steps, features, x.Shape())
	}
	return nil
}

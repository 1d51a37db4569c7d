package models

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/HatiCode/loadforecaster/pkg/tensor"
)

// Sequential is a frozen feed-forward stack of recurrent and dense layers,
// decoded from weights exported by the training environment.
//
// The artifact layout is:
//
//	{
//	  "format": "keras-sequential",
//	  "name": "smart_load_forecaster",
//	  "input_shape": [30, 1],
//	  "layers": [
//	    {"type": "lstm", "units": 50, "return_sequences": true,
//	     "kernel": [[...]], "recurrent_kernel": [[...]], "bias": [...]},
//	    {"type": "dropout"},
//	    {"type": "lstm", "units": 50, ...},
//	    {"type": "dense", "units": 1, "kernel": [[...]], "bias": [...]}
//	  ]
//	}
//
// LSTM gate blocks are ordered input, forget, cell, output, matching the
// exporting library. Dropout layers are identity at inference time.
type Sequential struct {
	name     string
	steps    int
	features int
	outputs  int
	layers   []layer
}

type layer interface {
	forward(in [][]float64) [][]float64
}

// ParseSequential decodes a Sequential model artifact and validates that
// every layer's weights agree with the width of the layer feeding it.
func ParseSequential(data []byte) (*Sequential, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: not valid JSON", ErrInvalidArtifact)
	}
	doc := gjson.ParseBytes(data)

	if f := doc.Get("format"); f.Exists() && f.String() != "keras-sequential" {
		return nil, fmt.Errorf("%w: unsupported format %q", ErrInvalidArtifact, f.String())
	}

	shape := doc.Get("input_shape").Array()
	if len(shape) != 2 || shape[0].Int() <= 0 || shape[1].Int() <= 0 {
		return nil, fmt.Errorf("%w: input_shape must be [timesteps, features]", ErrInvalidArtifact)
	}

	m := &Sequential{
		name:     doc.Get("name").String(),
		steps:    int(shape[0].Int()),
		features: int(shape[1].Int()),
	}
	if m.name == "" {
		m.name = "sequential"
	}

	layers := doc.Get("layers").Array()
	if len(layers) == 0 {
		return nil, fmt.Errorf("%w: no layers", ErrInvalidArtifact)
	}

	width, sequence := m.features, true
	for i, ld := range layers {
		kind := strings.ToLower(ld.Get("type").String())
		switch kind {
		case "lstm":
			if !sequence {
				return nil, fmt.Errorf("%w: layer %d: lstm needs sequence input", ErrInvalidArtifact, i)
			}
			l, err := parseLSTM(ld, width)
			if err != nil {
				return nil, fmt.Errorf("layer %d: %w", i, err)
			}
			m.layers = append(m.layers, l)
			width, sequence = l.units, l.returnSequences

		case "dense":
			l, err := parseDense(ld, width)
			if err != nil {
				return nil, fmt.Errorf("layer %d: %w", i, err)
			}
			m.layers = append(m.layers, l)
			width = l.units

		case "dropout":

		default:
			return nil, fmt.Errorf("%w: layer %d: unsupported type %q", ErrInvalidArtifact, i, kind)
		}
	}

	if sequence {
		return nil, fmt.Errorf("%w: final layer must produce a single step, not a sequence", ErrInvalidArtifact)
	}
	m.outputs = width

	return m, nil
}

// Name returns the model identifier.
func (m *Sequential) Name() string { return m.name }

// InputShape implements Model.
func (m *Sequential) InputShape() (int, int) { return m.steps, m.features }

// Outputs returns the width of the prediction row.
func (m *Sequential) Outputs() int { return m.outputs }

// Predict runs the forward pass for each batch element independently.
func (m *Sequential) Predict(_ context.Context, x tensor.Sequence) (tensor.Matrix, error) {
	if err := checkInput(m, x); err != nil {
		return tensor.Matrix{}, err
	}

	out := make([]float64, 0, x.Batch()*m.outputs)
	for b := 0; b < x.Batch(); b++ {
		act := make([][]float64, x.Steps())
		for t := range act {
			act[t] = x.Step(b, t)
		}
		for _, l := range m.layers {
			act = l.forward(act)
		}
		out = append(out, act[len(act)-1]...)
	}

	return tensor.NewMatrix(x.Batch(), m.outputs, out)
}

type lstmLayer struct {
	units           int
	returnSequences bool
	kernel          [][]float64 // [in][4*units]
	recurrent       [][]float64 // [units][4*units]
	bias            []float64   // [4*units]
	activation      activation
	recurrentAct    activation
}

func parseLSTM(ld gjson.Result, in int) (*lstmLayer, error) {
	units := int(ld.Get("units").Int())
	if units <= 0 {
		return nil, fmt.Errorf("%w: lstm units must be > 0", ErrInvalidArtifact)
	}

	kernel, err := floatMatrix(ld.Get("kernel"), in, 4*units, "kernel")
	if err != nil {
		return nil, err
	}
	recurrent, err := floatMatrix(ld.Get("recurrent_kernel"), units, 4*units, "recurrent_kernel")
	if err != nil {
		return nil, err
	}
	bias, err := optionalVector(ld.Get("bias"), 4*units, "bias")
	if err != nil {
		return nil, err
	}
	act, err := lookupActivation(ld.Get("activation"), "tanh")
	if err != nil {
		return nil, err
	}
	recAct, err := lookupActivation(ld.Get("recurrent_activation"), "sigmoid")
	if err != nil {
		return nil, err
	}

	return &lstmLayer{
		units:           units,
		returnSequences: ld.Get("return_sequences").Bool(),
		kernel:          kernel,
		recurrent:       recurrent,
		bias:            bias,
		activation:      act,
		recurrentAct:    recAct,
	}, nil
}

func (l *lstmLayer) forward(in [][]float64) [][]float64 {
	u := l.units
	h := make([]float64, u)
	c := make([]float64, u)
	z := make([]float64, 4*u)

	var seq [][]float64
	if l.returnSequences {
		seq = make([][]float64, 0, len(in))
	}

	for _, x := range in {
		copy(z, l.bias)
		for k, xv := range x {
			row := l.kernel[k]
			for j := range z {
				z[j] += xv * row[j]
			}
		}
		for k, hv := range h {
			row := l.recurrent[k]
			for j := range z {
				z[j] += hv * row[j]
			}
		}

		next := make([]float64, u)
		for j := 0; j < u; j++ {
			i := l.recurrentAct(z[j])
			f := l.recurrentAct(z[u+j])
			g := l.activation(z[2*u+j])
			o := l.recurrentAct(z[3*u+j])
			c[j] = f*c[j] + i*g
			next[j] = o * l.activation(c[j])
		}
		h = next

		if l.returnSequences {
			seq = append(seq, h)
		}
	}

	if l.returnSequences {
		return seq
	}
	return [][]float64{h}
}

type denseLayer struct {
	units      int
	kernel     [][]float64 // [in][units]
	bias       []float64   // [units]
	activation activation
}

func parseDense(ld gjson.Result, in int) (*denseLayer, error) {
	units := int(ld.Get("units").Int())
	if units <= 0 {
		return nil, fmt.Errorf("%w: dense units must be > 0", ErrInvalidArtifact)
	}
	kernel, err := floatMatrix(ld.Get("kernel"), in, units, "kernel")
	if err != nil {
		return nil, err
	}
	bias, err := optionalVector(ld.Get("bias"), units, "bias")
	if err != nil {
		return nil, err
	}
	act, err := lookupActivation(ld.Get("activation"), "linear")
	if err != nil {
		return nil, err
	}
	return &denseLayer{units: units, kernel: kernel, bias: bias, activation: act}, nil
}

func (l *denseLayer) forward(in [][]float64) [][]float64 {
	out := make([][]float64, len(in))
	for t, x := range in {
		y := make([]float64, l.units)
		copy(y, l.bias)
		for k, xv := range x {
			row := l.kernel[k]
			for j := range y {
				y[j] += xv * row[j]
			}
		}
		for j := range y {
			y[j] = l.activation(y[j])
		}
		out[t] = y
	}
	return out
}

type activation func(float64) float64

func lookupActivation(v gjson.Result, def string) (activation, error) {
	name := def
	if v.Exists() && v.String() != "" {
		name = strings.ToLower(v.String())
	}
	switch name {
	case "linear":
		return func(x float64) float64 { return x }, nil
	case "relu":
		return func(x float64) float64 { return math.Max(0, x) }, nil
	case "sigmoid":
		return func(x float64) float64 { return 1 / (1 + math.Exp(-x)) }, nil
	case "hard_sigmoid":
		return func(x float64) float64 { return math.Min(1, math.Max(0, 0.2*x+0.5)) }, nil
	case "tanh":
		return math.Tanh, nil
	default:
		return nil, fmt.Errorf("%w: unsupported activation %q", ErrInvalidArtifact, name)
	}
}

func floatMatrix(v gjson.Result, rows, cols int, name string) ([][]float64, error) {
	if !v.IsArray() {
		return nil, fmt.Errorf("%w: %s must be a [%d][%d] array", ErrInvalidArtifact, name, rows, cols)
	}
	items := v.Array()
	if len(items) != rows {
		return nil, fmt.Errorf("%w: %s has %d rows, want %d", ErrInvalidArtifact, name, len(items), rows)
	}
	out := make([][]float64, rows)
	for i, item := range items {
		row, err := floatVector(item, cols, fmt.Sprintf("%s[%d]", name, i))
		if err != nil {
			return nil, err
		}
		out[i] = row
	}
	return out, nil
}

func floatVector(v gjson.Result, n int, name string) ([]float64, error) {
	if !v.IsArray() {
		return nil, fmt.Errorf("%w: %s must be an array of %d numbers", ErrInvalidArtifact, name, n)
	}
	items := v.Array()
	if len(items) != n {
		return nil, fmt.Errorf("%w: %s has %d values, want %d", ErrInvalidArtifact, name, len(items), n)
	}
	out := make([]float64, n)
	for i, item := range items {
		if item.Type != gjson.Number {
			return nil, fmt.Errorf("%w: %s[%d] is not numeric", ErrInvalidArtifact, name, i)
		}
		out[i] = item.Float()
	}
	return out, nil
}

// optionalVector decodes a bias vector; layers exported without bias get zeros.
func optionalVector(v gjson.Result, n int, name string) ([]float64, error) {
	if !v.Exists() || v.Type == gjson.Null {
		return make([]float64, n), nil
	}
	return floatVector(v, n, name)
}

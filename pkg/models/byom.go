package models

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/HatiCode/loadforecaster/pkg/tensor"
)

// DefaultBYOMValuePath extracts the first output of every prediction row from
// a model server response such as {"predictions": [[0.42]]}.
const DefaultBYOMValuePath = "predictions.#.0"

// BYOMModel implements a model that delegates predictions to an external HTTP
// model server. Any runtime can be used (TensorFlow Serving, a Python sidecar,
// a custom service) as long as it accepts
//
//	POST {"instances": [[[x1], [x2], ..., [xN]]]}
//
// and answers with JSON from which ValuePath selects one number per instance.
type BYOMModel struct {
	endpoint  string
	valuePath string
	steps     int
	features  int
	client    *http.Client
}

type byomRequest struct {
	Instances [][][]float64 `json:"instances"`
}

// NewBYOMModel creates a new BYOM model that delegates to an external HTTP service.
// A nil client gets a default client with a 30 second timeout.
func NewBYOMModel(endpoint, valuePath string, steps, features int, client *http.Client) *BYOMModel {
	if valuePath == "" {
		valuePath = DefaultBYOMValuePath
	}
	if client == nil {
		client = &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				MaxIdleConnsPerHost: 2,
			},
		}
	}
	return &BYOMModel{
		endpoint:  endpoint,
		valuePath: valuePath,
		steps:     steps,
		features:  features,
		client:    client,
	}
}

// Name returns the model identifier.
func (m *BYOMModel) Name() string {
	return "byom"
}

// InputShape implements Model.
func (m *BYOMModel) InputShape() (int, int) { return m.steps, m.features }

// Predict sends x to the external model server.
func (m *BYOMModel) Predict(ctx context.Context, x tensor.Sequence) (tensor.Matrix, error) {
	if err := checkInput(m, x); err != nil {
		return tensor.Matrix{}, err
	}

	req := byomRequest{Instances: make([][][]float64, x.Batch())}
	for b := range req.Instances {
		inst := make([][]float64, x.Steps())
		for t := range inst {
			inst[t] = x.Step(b, t)
		}
		req.Instances[b] = inst
	}

	body, err := json.Marshal(req)
	if err != nil {
		return tensor.Matrix{}, fmt.Errorf("byom: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return tensor.Matrix{}, fmt.Errorf("byom: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(httpReq)
	if err != nil {
		return tensor.Matrix{}, fmt.Errorf("byom: http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return tensor.Matrix{}, fmt.Errorf("byom: http %d: %s", resp.StatusCode, string(bodyBytes))
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return tensor.Matrix{}, fmt.Errorf("byom: read response: %w", err)
	}
	if !gjson.ValidBytes(respBody) {
		return tensor.Matrix{}, fmt.Errorf("byom: response is not valid JSON")
	}

	result := gjson.GetBytes(respBody, m.valuePath)
	if !result.Exists() {
		return tensor.Matrix{}, fmt.Errorf("byom: value path %q not found in response", m.valuePath)
	}

	items := []gjson.Result{result}
	if result.IsArray() {
		items = result.Array()
	}
	if len(items) != x.Batch() {
		return tensor.Matrix{}, fmt.Errorf("byom: expected %d predictions, got %d", x.Batch(), len(items))
	}

	values := make([]float64, len(items))
	for i, item := range items {
		if item.Type != gjson.Number {
			return tensor.Matrix{}, fmt.Errorf("byom: prediction %d is not numeric: %s", i, item.Raw)
		}
		values[i] = item.Float()
	}

	return tensor.NewMatrix(x.Batch(), 1, values)
}

package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls the Forecaster service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Predict sends window and returns the forecast. Errors carry the server's
// gRPC status.
func (c *Client) Predict(ctx context.Context, window []float64, opts ...grpc.CallOption) (float64, error) {
	values := make([]any, len(window))
	for i, v := range window {
		values[i] = v
	}
	req, err := structpb.NewStruct(map[string]any{FieldRecentConsumption: values})
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.PredictRaw(ctx, req, opts...)
	if err != nil {
		return 0, err
	}

	field, ok := resp.GetFields()[FieldPrediction]
	if !ok {
		return 0, fmt.Errorf("response missing %s", FieldPrediction)
	}
	n, ok := field.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("response field %s is not a number", FieldPrediction)
	}
	return n.NumberValue, nil
}

// PredictRaw sends an arbitrary request struct.
func (c *Client) PredictRaw(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, PredictMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

package scaling

import (
	"errors"
	"math"
	"testing"

	"github.com/HatiCode/loadforecaster/pkg/tensor"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		artifact string
		kind     string
		in       float64
		want     float64
	}{
		{
			name:     "minmax from fitted terms",
			artifact: `{"kind":"minmax","min_":[-0.25],"scale_":[0.005]}`,
			kind:     "minmax",
			in:       150,
			want:     0.5,
		},
		{
			name:     "minmax from data range",
			artifact: `{"kind":"minmax","data_min_":[50],"data_max_":[250],"feature_range":[0,1]}`,
			kind:     "minmax",
			in:       150,
			want:     0.5,
		},
		{
			name:     "minmax default feature range",
			artifact: `{"kind":"MinMaxScaler","data_min_":[0],"data_max_":[400]}`,
			kind:     "minmax",
			in:       100,
			want:     0.25,
		},
		{
			name:     "standard",
			artifact: `{"kind":"standard","mean_":[200],"scale_":[50]}`,
			kind:     "standard",
			in:       300,
			want:     2,
		},
		{
			name:     "standard without mean",
			artifact: `{"kind":"standard","mean_":null,"scale_":[4]}`,
			kind:     "standard",
			in:       8,
			want:     2,
		},
		{
			name:     "bare numbers",
			artifact: `{"kind":"standard","mean_":10,"scale_":2}`,
			kind:     "standard",
			in:       14,
			want:     2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Parse([]byte(tt.artifact))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if s.Name() != tt.kind {
				t.Errorf("Name() = %q, want %q", s.Name(), tt.kind)
			}
			got, err := s.Transform(tensor.Column{tt.in})
			if err != nil {
				t.Fatalf("Transform: %v", err)
			}
			if math.Abs(got[0]-tt.want) > tolerance {
				t.Errorf("Transform(%v) = %v, want %v", tt.in, got[0], tt.want)
			}
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		artifact string
	}{
		{name: "not json", artifact: `scaler.save`},
		{name: "missing kind", artifact: `{"min_":[0],"scale_":[1]}`},
		{name: "unknown kind", artifact: `{"kind":"robust","center_":[0]}`},
		{name: "multi feature", artifact: `{"kind":"minmax","min_":[0,0],"scale_":[1,1]}`},
		{name: "missing scale", artifact: `{"kind":"minmax","min_":[0]}`},
		{name: "zero scale", artifact: `{"kind":"minmax","min_":[0],"scale_":[0]}`},
		{name: "non numeric", artifact: `{"kind":"standard","mean_":["a"],"scale_":[1]}`},
		{name: "bad feature range", artifact: `{"kind":"minmax","data_min_":[0],"data_max_":[1],"feature_range":[0]}`},
		{name: "missing data range", artifact: `{"kind":"minmax","data_min_":[0]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.artifact))
			if !errors.Is(err, ErrInvalidArtifact) {
				t.Errorf("expected ErrInvalidArtifact, got %v", err)
			}
		})
	}
}

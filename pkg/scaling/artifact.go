package scaling

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Parse decodes a scaler artifact.
//
// Supported layouts (attribute names follow the exporting library):
//
//	{"kind": "minmax", "min_": [m], "scale_": [s]}
//	{"kind": "minmax", "data_min_": [a], "data_max_": [b], "feature_range": [lo, hi]}
//	{"kind": "standard", "mean_": [mu], "scale_": [sigma]}
//
// Per-feature attributes must describe exactly one feature.
func Parse(data []byte) (Scaler, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: not valid JSON", ErrInvalidArtifact)
	}
	doc := gjson.ParseBytes(data)

	kind := strings.ToLower(doc.Get("kind").String())
	switch kind {
	case "minmax", "min_max", "minmaxscaler":
		return parseMinMax(doc)
	case "standard", "standardscaler":
		return parseStandard(doc)
	case "":
		return nil, fmt.Errorf("%w: missing 'kind'", ErrInvalidArtifact)
	default:
		return nil, fmt.Errorf("%w: unsupported kind %q (must be minmax or standard)", ErrInvalidArtifact, kind)
	}
}

func parseMinMax(doc gjson.Result) (Scaler, error) {
	if doc.Get("min_").Exists() || doc.Get("scale_").Exists() {
		min, err := feature(doc, "min_", 0, false)
		if err != nil {
			return nil, err
		}
		scale, err := feature(doc, "scale_", 0, false)
		if err != nil {
			return nil, err
		}
		return NewMinMaxScaler(min, scale)
	}

	dataMin, err := feature(doc, "data_min_", 0, false)
	if err != nil {
		return nil, err
	}
	dataMax, err := feature(doc, "data_max_", 0, false)
	if err != nil {
		return nil, err
	}

	lo, hi := 0.0, 1.0
	if fr := doc.Get("feature_range"); fr.Exists() {
		bounds := fr.Array()
		if len(bounds) != 2 {
			return nil, fmt.Errorf("%w: feature_range must have 2 elements, got %d", ErrInvalidArtifact, len(bounds))
		}
		lo, hi = bounds[0].Float(), bounds[1].Float()
	}
	return NewMinMaxScalerFromRange(dataMin, dataMax, lo, hi)
}

func parseStandard(doc gjson.Result) (Scaler, error) {
	mean, err := feature(doc, "mean_", 0, true)
	if err != nil {
		return nil, err
	}
	scale, err := feature(doc, "scale_", 1, true)
	if err != nil {
		return nil, err
	}
	return NewStandardScaler(mean, scale)
}

// feature reads a single-feature attribute stored either as a one-element
// array or a bare number. Missing or null attributes fall back to def when
// optional is set.
func feature(doc gjson.Result, path string, def float64, optional bool) (float64, error) {
	v := doc.Get(path)
	if !v.Exists() || v.Type == gjson.Null {
		if optional {
			return def, nil
		}
		return 0, fmt.Errorf("%w: missing %q", ErrInvalidArtifact, path)
	}

	if v.IsArray() {
		items := v.Array()
		if len(items) != 1 {
			return 0, fmt.Errorf("%w: %q describes %d features, expected 1", ErrInvalidArtifact, path, len(items))
		}
		v = items[0]
	}
	if v.Type != gjson.Number {
		return 0, fmt.Errorf("%w: %q is not numeric", ErrInvalidArtifact, path)
	}
	return v.Float(), nil
}

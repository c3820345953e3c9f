// Package params resolves the parameter set handed to the image generation API.
//
// Parameters travel as an open key/value map so that model-specific keys the
// server knows nothing about still reach the upstream model. Only the keys
// that drive dimension derivation get typed accessors.
package params

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

const (
	KeyPrompt            = "prompt"
	KeyNegativePrompt    = "negative_prompt"
	KeyWidth             = "width"
	KeyHeight            = "height"
	KeyNumOutputs        = "num_outputs"
	KeyScheduler         = "scheduler"
	KeyNumInferenceSteps = "num_inference_steps"
	KeyGuidanceScale     = "guidance_scale"
	KeyAspectRatio       = "aspect_ratio"
	KeyMegapixels        = "megapixels"
	KeyOutputFormat      = "output_format"
	KeySeed              = "seed"
)

// AspectRatioCustom disables dimension derivation; width and height are used as given.
const AspectRatioCustom = "custom"

// Values is a parameter bag. A nil Values behaves as empty.
type Values map[string]any

// Clone returns a shallow copy. Clone of nil is an empty, non-nil map.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Merge overlays layers left to right; later layers win key by key.
func Merge(layers ...Values) Values {
	size := 0
	for _, l := range layers {
		size += len(l)
	}
	out := make(Values, size)
	for _, l := range layers {
		for k, val := range l {
			out[k] = val
		}
	}
	return out
}

// String returns the value at key when it holds a string.
func (v Values) String(key string) (string, bool) {
	s, ok := v[key].(string)
	return s, ok
}

// Int returns the value at key as an integer. JSON numbers decode as float64,
// so whole floats are accepted; fractional values are not.
func (v Values) Int(key string) (int, bool) {
	switch n := v[key].(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) || n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, false
		}
		return i, true
	}
	return 0, false
}

// AspectRatio reports the aspect_ratio key. Non-string values are treated as absent.
func (v Values) AspectRatio() (string, bool) {
	s, ok := v.String(KeyAspectRatio)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// Megapixels returns the megapixels selector, or "" when unset or not a string.
func (v Values) Megapixels() string {
	s, _ := v.String(KeyMegapixels)
	return s
}

func (v Values) Width() (int, bool)  { return v.Int(KeyWidth) }
func (v Values) Height() (int, bool) { return v.Int(KeyHeight) }

// Decode parses a JSON object into Values. Empty input and JSON null yield an empty map.
func Decode(raw []byte) (Values, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return Values{}, nil
	}
	var out Values
	if err := json.Unmarshal([]byte(trimmed), &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = Values{}
	}
	return out, nil
}

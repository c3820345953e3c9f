package params

import (
	"math"
	"strconv"
	"strings"
)

const (
	MinDimension = 512
	MaxDimension = 1536

	dimensionStep      = 8
	defaultPixelBudget = 1_000_000
	quarterPixelBudget = 250_000
)

// Dimensions is a width/height pair in pixels.
type Dimensions struct {
	Width  int
	Height int
}

// Known-good sizes for common ratios. These replace the computed values outright.
var presetDimensions = map[string]Dimensions{
	"16:9": {Width: 1024, Height: 576},
	"9:16": {Width: 576, Height: 1024},
	"4:3":  {Width: 1024, Height: 768},
	"3:4":  {Width: 768, Height: 1024},
}

// Preset looks up the fixed dimensions for an aspect ratio string.
func Preset(aspectRatio string) (Dimensions, bool) {
	d, ok := presetDimensions[aspectRatio]
	return d, ok
}

// PixelBudget maps the megapixels selector to a pixel count.
func PixelBudget(megapixels string) int {
	if megapixels == "0.25" {
		return quarterPixelBudget
	}
	return defaultPixelBudget
}

// Derive computes dimensions for a "W:H" aspect ratio. ok is false when the
// ratio cannot be parsed; callers keep whatever dimensions they already have.
func Derive(aspectRatio, megapixels string) (d Dimensions, ok bool) {
	if p, ok := Preset(aspectRatio); ok {
		return p, true
	}

	w, h, ok := parseRatio(aspectRatio)
	if !ok {
		return Dimensions{}, false
	}

	ratio := w / h
	budget := float64(PixelBudget(megapixels))

	// Extreme ratios overflow int; stay in float64 until clamped.
	height := math.Round(math.Sqrt(budget / ratio))
	width := math.Round(height * ratio)

	return Dimensions{
		Width:  clamp(floorToStep(width)),
		Height: clamp(floorToStep(height)),
	}, true
}

// parseRatio reads the first two colon-separated fields. Trailing fields are ignored.
func parseRatio(s string) (w, h float64, ok bool) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 {
		return 0, 0, false
	}
	w, ok = parsePositive(parts[0])
	if !ok {
		return 0, 0, false
	}
	h, ok = parsePositive(parts[1])
	if !ok {
		return 0, 0, false
	}
	return w, h, true
}

func parsePositive(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0, false
	}
	return f, true
}

func floorToStep(n float64) float64 {
	return math.Floor(n/dimensionStep) * dimensionStep
}

// clamp bounds n to [MinDimension, MaxDimension]. NaN maps to MinDimension.
func clamp(n float64) int {
	if math.IsNaN(n) || n < MinDimension {
		return MinDimension
	}
	if n > MaxDimension {
		return MaxDimension
	}
	return int(n)
}

// Package generation turns a prompt plus parameter overrides into generated
// image URLs. It picks the model, layers model and user parameters through
// the resolver and calls the upstream generator under a concurrency limit.
package generation

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"headshotstudio/internal/params"
	"headshotstudio/internal/store"
)

// DefaultModel is used when no LoRA model is requested or the requested one is unavailable.
const DefaultModel = "stability-ai/sdxl:c221b2b8ef527988fb59bf24a8b97c4561f1c671f73bd389f866bfb27c061316"

// Generator runs a model and returns its output image URLs in order.
type Generator interface {
	Run(ctx context.Context, modelRef string, input map[string]any) ([]string, error)
}

// ModelStore is the slice of the data store generation reads from.
type ModelStore interface {
	ActiveLoraModel(ctx context.Context, id string) (*store.LoraModel, error)
	UserCustomParameters(ctx context.Context, profileID, loraID string) (params.Values, error)
}

type Request struct {
	Prompt    string
	ModelID   string
	ProfileID string
	Overrides params.Values
}

type Result struct {
	ImageURLs  []string      `json:"imageUrls"`
	ModelID    string        `json:"modelId,omitempty"`
	ModelName  string        `json:"modelName"`
	ModelRef   string        `json:"-"`
	Parameters params.Values `json:"parameters"`
}

type Options struct {
	DefaultModel string
	Concurrency  int
}

type Service struct {
	models       ModelStore
	gen          Generator
	defaultModel string
	slots        *semaphore.Weighted
}

func NewService(models ModelStore, gen Generator, opts Options) *Service {
	if strings.TrimSpace(opts.DefaultModel) == "" {
		opts.DefaultModel = DefaultModel
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &Service{
		models:       models,
		gen:          gen,
		defaultModel: opts.DefaultModel,
		slots:        semaphore.NewWeighted(int64(opts.Concurrency)),
	}
}

func (s *Service) Generate(ctx context.Context, req Request) (*Result, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, &InvalidInputError{Field: "prompt", Message: "Prompt is required"}
	}

	modelRef := s.defaultModel
	modelName := "SDXL"
	var (
		modelID  string
		defaults params.Values
		custom   params.Values
	)

	if id := strings.TrimSpace(req.ModelID); id != "" {
		m, err := s.models.ActiveLoraModel(ctx, id)
		switch {
		case err == nil:
			modelID = m.ID
			modelRef = m.Ref()
			modelName = m.Name
			defaults = m.DefaultParameters
		case errors.Is(err, store.ErrNotFound):
			log.Warn().Str("lora_id", id).Msg("lora model not found or inactive, using default model")
		default:
			return nil, &UpstreamUnavailableError{Op: "load model", Err: err}
		}
	}

	if modelID != "" && req.ProfileID != "" {
		c, err := s.models.UserCustomParameters(ctx, req.ProfileID, modelID)
		if err != nil {
			return nil, &UpstreamUnavailableError{Op: "load custom parameters", Err: err}
		}
		custom = c
	}

	resolved := params.Resolve(prompt, defaults, custom, req.Overrides)
	input := wireInput(resolved)

	if err := s.slots.Acquire(ctx, 1); err != nil {
		return nil, &UpstreamUnavailableError{Op: "wait for generation slot", Err: err}
	}
	defer s.slots.Release(1)

	log.Info().Str("model", modelRef).Interface("width", input[params.KeyWidth]).Interface("height", input[params.KeyHeight]).Msg("generating image")

	urls, err := s.gen.Run(ctx, modelRef, input)
	if err != nil {
		return nil, &UpstreamUnavailableError{Op: "generate image", Err: err}
	}
	if len(urls) == 0 {
		return nil, &UpstreamUnavailableError{Op: "generate image", Err: errors.New("no image returned")}
	}

	return &Result{
		ImageURLs:  urls,
		ModelID:    modelID,
		ModelName:  modelName,
		ModelRef:   modelRef,
		Parameters: resolved,
	}, nil
}

// wireFallbacks replace absent or zero values in the upstream input.
var wireFallbacks = map[string]any{
	params.KeyOutputFormat:      "png",
	params.KeyWidth:             1024,
	params.KeyHeight:            1024,
	params.KeyAspectRatio:       "1:1",
	params.KeyNumOutputs:        1,
	params.KeyNumInferenceSteps: 30,
	params.KeyGuidanceScale:     7.5,
}

func wireInput(resolved params.Values) map[string]any {
	input := make(map[string]any, len(resolved)+len(wireFallbacks))
	for k, v := range resolved {
		input[k] = v
	}
	for k, fallback := range wireFallbacks {
		if isZero(input[k]) {
			input[k] = fallback
		}
	}
	return input
}

func isZero(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case int:
		return t == 0
	case int64:
		return t == 0
	case float64:
		return t == 0
	}
	return false
}

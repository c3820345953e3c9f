package generation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"headshotstudio/internal/params"
	"headshotstudio/internal/store"
)

type fakeModels struct {
	models  map[string]*store.LoraModel
	custom  map[string]params.Values
	loadErr error
}

func (f *fakeModels) ActiveLoraModel(_ context.Context, id string) (*store.LoraModel, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	m, ok := f.models[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return m, nil
}

func (f *fakeModels) UserCustomParameters(_ context.Context, profileID, loraID string) (params.Values, error) {
	return f.custom[profileID+"/"+loraID], nil
}

type fakeGenerator struct {
	mu     sync.Mutex
	ref    string
	input  map[string]any
	urls   []string
	err    error
	delay  time.Duration
	active atomic.Int32
	peak   atomic.Int32
}

func (g *fakeGenerator) Run(ctx context.Context, modelRef string, input map[string]any) ([]string, error) {
	n := g.active.Add(1)
	defer g.active.Add(-1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if g.delay > 0 {
		time.Sleep(g.delay)
	}
	g.mu.Lock()
	g.ref = modelRef
	g.input = input
	g.mu.Unlock()
	return g.urls, g.err
}

var headshotModel = &store.LoraModel{
	ID:          "lora-1",
	ReplicateID: "thomisont/betterthanheadshots-tjt",
	Version:     "dd5079e7",
	Name:        "Better Than Headshots",
	IsActive:    true,
	DefaultParameters: params.Values{
		"num_inference_steps": 40.0,
		"aspect_ratio":        "3:4",
	},
}

func TestGenerateRejectsEmptyPrompt(t *testing.T) {
	gen := &fakeGenerator{urls: []string{"u"}}
	svc := NewService(&fakeModels{}, gen, Options{})

	_, err := svc.Generate(context.Background(), Request{Prompt: "   "})
	var invalid *InvalidInputError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "prompt", invalid.Field)
	assert.Empty(t, gen.ref, "generator must not be called")
}

func TestGenerateDefaultModel(t *testing.T) {
	gen := &fakeGenerator{urls: []string{"https://x/1.png"}}
	svc := NewService(&fakeModels{}, gen, Options{})

	res, err := svc.Generate(context.Background(), Request{
		Prompt:    " a studio portrait ",
		Overrides: params.Values{"aspect_ratio": "16:9"},
	})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, gen.ref)
	assert.Equal(t, []string{"https://x/1.png"}, res.ImageURLs)
	assert.Equal(t, "a studio portrait", gen.input["prompt"])
	assert.Equal(t, 1024, gen.input["width"])
	assert.Equal(t, 576, gen.input["height"])
	assert.Equal(t, "png", gen.input["output_format"])
	assert.Equal(t, params.DefaultNegativePrompt, gen.input["negative_prompt"])
}

func TestGenerateLayersModelAndUserParameters(t *testing.T) {
	gen := &fakeGenerator{urls: []string{"u"}}
	models := &fakeModels{
		models: map[string]*store.LoraModel{"lora-1": headshotModel},
		custom: map[string]params.Values{"p1/lora-1": {"guidance_scale": 5.0, "aspect_ratio": "custom", "width": 640.0, "height": 896.0}},
	}
	svc := NewService(models, gen, Options{})

	res, err := svc.Generate(context.Background(), Request{
		Prompt:    "BTHEADSHOTS portrait",
		ModelID:   "lora-1",
		ProfileID: "p1",
		Overrides: params.Values{"num_outputs": 2},
	})
	require.NoError(t, err)
	assert.Equal(t, "thomisont/betterthanheadshots-tjt:dd5079e7", gen.ref)
	assert.Equal(t, "lora-1", res.ModelID)
	assert.Equal(t, "Better Than Headshots", res.ModelName)
	assert.Equal(t, 40.0, gen.input["num_inference_steps"])
	assert.Equal(t, 5.0, gen.input["guidance_scale"])
	assert.Equal(t, 2, gen.input["num_outputs"])
	assert.Equal(t, 640.0, gen.input["width"])
	assert.Equal(t, 896.0, gen.input["height"])
}

func TestGenerateUnknownModelFallsBack(t *testing.T) {
	gen := &fakeGenerator{urls: []string{"u"}}
	svc := NewService(&fakeModels{}, gen, Options{DefaultModel: "owner/base:v1"})

	res, err := svc.Generate(context.Background(), Request{Prompt: "p", ModelID: "missing"})
	require.NoError(t, err)
	assert.Equal(t, "owner/base:v1", gen.ref)
	assert.Empty(t, res.ModelID)
}

func TestGenerateStoreFault(t *testing.T) {
	gen := &fakeGenerator{urls: []string{"u"}}
	svc := NewService(&fakeModels{loadErr: errors.New("db down")}, gen, Options{})

	_, err := svc.Generate(context.Background(), Request{Prompt: "p", ModelID: "lora-1"})
	var upstream *UpstreamUnavailableError
	require.ErrorAs(t, err, &upstream)
	assert.Contains(t, err.Error(), "db down")
}

func TestGenerateUpstreamFailureKeepsMessage(t *testing.T) {
	cause := errors.New("replicate: billing issue: insufficient credit")
	gen := &fakeGenerator{err: cause}
	svc := NewService(&fakeModels{}, gen, Options{})

	_, err := svc.Generate(context.Background(), Request{Prompt: "p"})
	var upstream *UpstreamUnavailableError
	require.ErrorAs(t, err, &upstream)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "insufficient credit")
}

func TestGenerateEmptyOutput(t *testing.T) {
	svc := NewService(&fakeModels{}, &fakeGenerator{}, Options{})

	_, err := svc.Generate(context.Background(), Request{Prompt: "p"})
	var upstream *UpstreamUnavailableError
	assert.ErrorAs(t, err, &upstream)
}

func TestGenerateBoundsConcurrency(t *testing.T) {
	gen := &fakeGenerator{urls: []string{"u"}, delay: 20 * time.Millisecond}
	svc := NewService(&fakeModels{}, gen, Options{Concurrency: 2})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Generate(context.Background(), Request{Prompt: "p"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, gen.peak.Load(), int32(2))
}

func TestGenerateCanceledWhileWaiting(t *testing.T) {
	gen := &fakeGenerator{urls: []string{"u"}, delay: 100 * time.Millisecond}
	svc := NewService(&fakeModels{}, gen, Options{Concurrency: 1})

	go func() { _, _ = svc.Generate(context.Background(), Request{Prompt: "first"}) }()
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := svc.Generate(ctx, Request{Prompt: "second"})
	var upstream *UpstreamUnavailableError
	require.ErrorAs(t, err, &upstream)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWireInputFallbacks(t *testing.T) {
	in := wireInput(params.Values{
		"prompt":              "p",
		"width":               0,
		"aspect_ratio":        "",
		"num_inference_steps": 0.0,
		"scheduler":           "K_EULER",
	})
	assert.Equal(t, 1024, in["width"])
	assert.Equal(t, 1024, in["height"])
	assert.Equal(t, "1:1", in["aspect_ratio"])
	assert.Equal(t, 30, in["num_inference_steps"])
	assert.Equal(t, 7.5, in["guidance_scale"])
	assert.Equal(t, 1, in["num_outputs"])
	assert.Equal(t, "png", in["output_format"])
	assert.Equal(t, "K_EULER", in["scheduler"])
}

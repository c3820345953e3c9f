// Package replicate runs image models on Replicate through the official SDK:
// it creates predictions, waits for them and reads model metadata.
package replicate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	replicatego "github.com/replicate/replicate-go"
	"github.com/rs/zerolog/log"
)

const DefaultBaseURL = "https://api.replicate.com/v1"

var (
	ErrMissingToken = errors.New("replicate: REPLICATE_API_TOKEN is not configured")
	ErrEmptyOutput  = errors.New("replicate: prediction returned no images")
)

type Options struct {
	BaseURL      string
	Token        string
	HTTPClient   *http.Client
	PollInterval time.Duration
	Timeout      time.Duration
}

type Client struct {
	api          *replicatego.Client
	initErr      error
	pollInterval time.Duration
	timeout      time.Duration
}

func New(opts Options) *Client {
	c := &Client{
		pollInterval: opts.PollInterval,
		timeout:      opts.Timeout,
	}
	if c.pollInterval <= 0 {
		c.pollInterval = 2 * time.Second
	}
	if c.timeout <= 0 {
		c.timeout = 3 * time.Minute
	}

	token := strings.TrimSpace(opts.Token)
	if token == "" {
		c.initErr = ErrMissingToken
		return c
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}

	api, err := replicatego.NewClient(
		replicatego.WithToken(token),
		replicatego.WithBaseURL(baseURL),
		replicatego.WithHTTPClient(withPreferWait(httpClient)),
	)
	if err != nil {
		c.initErr = fmt.Errorf("replicate: create client: %w", err)
		return c
	}
	c.api = api
	return c
}

// Run creates a prediction for modelRef and waits for its output URLs.
//
// "owner/name:version" runs that version, "owner/name" the model's latest
// version through the model's own endpoint.
func (c *Client) Run(ctx context.Context, modelRef string, input map[string]any) ([]string, error) {
	if c.initErr != nil {
		return nil, c.initErr
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	pred, err := c.createPrediction(ctx, modelRef, input)
	if err != nil {
		return nil, err
	}
	if !terminal(pred.Status) {
		if err := c.api.Wait(ctx, pred, replicatego.WithPollingInterval(c.pollInterval)); err != nil {
			return nil, fmt.Errorf("replicate: waiting for prediction %s: %w", pred.ID, err)
		}
		log.Debug().Str("prediction", pred.ID).Str("status", string(pred.Status)).Msg("prediction finished")
	}
	if pred.Status != replicatego.Succeeded {
		return nil, &PredictionError{ID: pred.ID, Status: string(pred.Status), Message: predictionErrorMessage(pred)}
	}

	urls := outputURLs(pred.Output)
	if len(urls) == 0 {
		return nil, ErrEmptyOutput
	}
	return urls, nil
}

func terminal(s replicatego.Status) bool {
	switch s {
	case replicatego.Succeeded, replicatego.Failed, replicatego.Canceled:
		return true
	}
	return false
}

func (c *Client) createPrediction(ctx context.Context, modelRef string, input map[string]any) (*replicatego.Prediction, error) {
	modelRef = strings.TrimSpace(modelRef)
	name, version, versioned := strings.Cut(modelRef, ":")
	owner, model, ok := strings.Cut(name, "/")
	if !ok || owner == "" || model == "" || (versioned && version == "") {
		return nil, fmt.Errorf("replicate: malformed model reference %q", modelRef)
	}

	log.Debug().Str("model", modelRef).Msg("creating prediction")

	in := replicatego.PredictionInput(input)
	if versioned {
		return c.api.CreatePrediction(ctx, version, in, nil, false)
	}
	return c.api.CreatePredictionWithModel(ctx, owner, model, in, nil, false)
}

// ModelDescription returns the description of "owner/name". A version
// suffix is ignored.
func (c *Client) ModelDescription(ctx context.Context, modelRef string) (string, error) {
	if c.initErr != nil {
		return "", c.initErr
	}
	name, _, _ := strings.Cut(strings.TrimSpace(modelRef), ":")
	owner, model, ok := strings.Cut(name, "/")
	if !ok || owner == "" || model == "" || strings.Contains(model, "/") {
		return "", fmt.Errorf("replicate: malformed model reference %q", modelRef)
	}
	m, err := c.api.GetModel(ctx, owner, model)
	if err != nil {
		return "", err
	}
	return m.Description, nil
}

// preferWait sets "Prefer: wait" on prediction creation; the API then holds
// the response until the output is ready or its own deadline passes.
type preferWait struct {
	base http.RoundTripper
}

func withPreferWait(hc *http.Client) *http.Client {
	base := hc.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	out := *hc
	out.Transport = preferWait{base: base}
	return &out
}

func (t preferWait) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method == http.MethodPost && strings.HasSuffix(req.URL.Path, "/predictions") {
		req = req.Clone(req.Context())
		req.Header.Set("Prefer", "wait")
	}
	return t.base.RoundTrip(req)
}

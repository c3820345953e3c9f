package replicate

import (
	"fmt"
	"strings"

	replicatego "github.com/replicate/replicate-go"
)

// APIError is a non-2xx answer from the API. Status carries the HTTP code.
type APIError = replicatego.APIError

// outputURLs returns the output as a list of URLs. Models return either a
// single string or a list of strings.
func outputURLs(output replicatego.PredictionOutput) []string {
	switch out := output.(type) {
	case string:
		if strings.TrimSpace(out) == "" {
			return nil
		}
		return []string{out}
	case []any:
		urls := make([]string, 0, len(out))
		for _, item := range out {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				urls = append(urls, s)
			}
		}
		return urls
	}
	return nil
}

func predictionErrorMessage(p *replicatego.Prediction) string {
	switch e := p.Error.(type) {
	case string:
		if e != "" {
			return e
		}
	case map[string]any:
		if msg, ok := e["message"]; ok {
			return fmt.Sprint(msg)
		}
	}
	if p.Status == replicatego.Canceled {
		return "prediction was canceled"
	}
	return "prediction failed"
}

// PredictionError reports a prediction that ended without output.
type PredictionError struct {
	ID      string
	Status  string
	Message string
}

func (e *PredictionError) Error() string {
	return fmt.Sprintf("replicate: prediction %s %s: %s", e.ID, e.Status, e.Message)
}

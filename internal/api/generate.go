package api

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"headshotstudio/internal/generation"
	"headshotstudio/internal/httpx"
	"headshotstudio/internal/params"
	"headshotstudio/internal/replicate"
)

type generateRequest struct {
	Prompt     string        `json:"prompt"`
	LoraID     string        `json:"loraId"`
	Parameters params.Values `json:"parameters"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	genReq := generation.Request{
		Prompt:    req.Prompt,
		ModelID:   req.LoraID,
		Overrides: req.Parameters,
	}
	if p, ok := profileFromContext(r.Context()); ok {
		genReq.ProfileID = p.ID
	}

	res, err := s.gen.Generate(r.Context(), genReq)
	if err != nil {
		status, msg := generationErrorResponse(err)
		log.Error().Err(err).Int("status", status).Msg("image generation failed")
		httpx.WriteError(w, status, msg)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"imageUrls":  res.ImageURLs,
		"imageUrl":   res.ImageURLs[0],
		"modelId":    res.ModelID,
		"modelName":  res.ModelName,
		"parameters": res.Parameters,
	})
}

func generationErrorResponse(err error) (int, string) {
	var invalid *generation.InvalidInputError
	if errors.As(err, &invalid) {
		return http.StatusBadRequest, invalid.Message
	}
	if errors.Is(err, replicate.ErrMissingToken) {
		return http.StatusInternalServerError, "Server configuration error: Missing API token"
	}
	var apiErr *replicate.APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
		return http.StatusUnauthorized, "Authentication error with image generation service. Please check API key."
	}
	return http.StatusBadGateway, "Error connecting to image generation service: " + err.Error()
}

package api

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"headshotstudio/internal/httpx"
	"headshotstudio/internal/lora"
	"headshotstudio/internal/params"
	"headshotstudio/internal/store"
)

type loraParametersRequest struct {
	LoraID           string        `json:"lora_id"`
	CustomParameters params.Values `json:"custom_parameters"`
}

// handleLoraModels never fails the request: the model picker falls back to
// the base model when the list is empty.
func (s *Server) handleLoraModels(w http.ResponseWriter, r *http.Request) {
	var profileID any
	pid := ""
	if p, ok := profileFromContext(r.Context()); ok {
		pid = p.ID
		profileID = p.ID
	}

	models, err := s.registry.List(r.Context(), pid)
	if err != nil {
		log.Error().Err(err).Msg("failed to list lora models")
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"models": []lora.Model{},
			"error":  "Failed to fetch LoRA models",
		})
		return
	}

	body := map[string]any{
		"models":  models,
		"user_id": profileID,
	}
	if len(models) == 0 {
		body["message"] = "No models available"
	}
	httpx.WriteJSON(w, http.StatusOK, body)
}

func (s *Server) handleLoraParametersSave(w http.ResponseWriter, r *http.Request) {
	var req loraParametersRequest
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	p, _ := profileFromContext(r.Context())

	err := s.registry.SaveCustomParameters(r.Context(), p.ID, req.LoraID, req.CustomParameters)
	switch {
	case err == nil:
	case errors.Is(err, lora.ErrModelRequired):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, store.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "LoRA model not found")
		return
	default:
		log.Error().Err(err).Str("lora_id", req.LoraID).Msg("failed to save custom parameters")
		httpx.WriteError(w, http.StatusInternalServerError, "Failed to save custom parameters")
		return
	}

	custom := req.CustomParameters
	if custom == nil {
		custom = params.Values{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"access": map[string]any{
			"profile_id":        p.ID,
			"lora_id":           req.LoraID,
			"custom_parameters": custom,
		},
	})
}

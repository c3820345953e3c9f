package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"headshotstudio/internal/httpx"
	"headshotstudio/internal/store"
)

type favoriteRequest struct {
	ImageID   string `json:"imageId"`
	AuthToken string `json:"authToken"`
}

func (s *Server) handleFavoriteAdd(w http.ResponseWriter, r *http.Request) {
	var req favoriteRequest
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	imageID := strings.TrimSpace(req.ImageID)
	if imageID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "Image ID is required")
		return
	}

	p, ok := s.bodyProfile(w, r, req.AuthToken)
	if !ok {
		return
	}

	if _, err := s.store.ImageByID(r.Context(), imageID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "Image not found")
			return
		}
		httpx.WriteError(w, http.StatusInternalServerError, "Failed to check image")
		return
	}

	if err := s.store.AddFavorite(r.Context(), p.ID, imageID); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			httpx.WriteError(w, http.StatusBadRequest, "Image already in favorites")
			return
		}
		log.Error().Err(err).Msg("failed to add favorite")
		httpx.WriteError(w, http.StatusInternalServerError, "Failed to add favorite")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"favorite": map[string]any{
			"profile_id": p.ID,
			"image_id":   imageID,
		},
	})
}

func (s *Server) handleFavoriteRemove(w http.ResponseWriter, r *http.Request) {
	imageID := strings.TrimSpace(r.URL.Query().Get("imageId"))
	if imageID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "Image ID is required")
		return
	}
	p, _ := profileFromContext(r.Context())

	n, err := s.store.RemoveFavorite(r.Context(), p.ID, imageID)
	if err != nil {
		log.Error().Err(err).Msg("failed to remove favorite")
		httpx.WriteError(w, http.StatusInternalServerError, "Failed to remove favorite")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"removed": n,
	})
}

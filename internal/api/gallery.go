package api

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"headshotstudio/internal/httpx"
)

const galleryLimit = 50

func (s *Server) handleGallery(w http.ResponseWriter, r *http.Request) {
	images, err := s.store.PublicImages(r.Context(), galleryLimit)
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch public images")
		httpx.WriteError(w, http.StatusInternalServerError, "Failed to fetch public images")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"images":  images,
	})
}

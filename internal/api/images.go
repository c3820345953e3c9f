package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"headshotstudio/internal/httpx"
	"headshotstudio/internal/params"
	"headshotstudio/internal/store"
)

const defaultImageTitle = "Generated Image"

type imageSaveRequest struct {
	ImageURL        string          `json:"imageUrl"`
	Prompt          string          `json:"prompt"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	IsPublic        bool            `json:"isPublic"`
	ModelParameters json.RawMessage `json:"modelParameters"`
	AuthToken       string          `json:"authToken"`
}

type imagePatchRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	IsPublic    *bool   `json:"is_public"`
}

// parseModelParameters accepts a JSON object or a string holding one.
// Anything unparseable becomes an empty set.
func parseModelParameters(raw json.RawMessage) params.Values {
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		raw = json.RawMessage(encoded)
	}
	v, err := params.Decode(raw)
	if err != nil {
		return params.Values{}
	}
	return v
}

func (s *Server) handleImageSave(w http.ResponseWriter, r *http.Request) {
	var req imageSaveRequest
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if strings.TrimSpace(req.ImageURL) == "" || strings.TrimSpace(req.Prompt) == "" {
		httpx.WriteError(w, http.StatusBadRequest, "Image URL and prompt are required")
		return
	}

	p, ok := s.bodyProfile(w, r, req.AuthToken)
	if !ok {
		return
	}

	img := store.Image{
		ID:              uuid.NewString(),
		OwnerID:         p.ID,
		ImageURL:        strings.TrimSpace(req.ImageURL),
		Title:           strings.TrimSpace(req.Title),
		Description:     req.Description,
		Prompt:          req.Prompt,
		ModelParameters: parseModelParameters(req.ModelParameters),
		IsPublic:        req.IsPublic,
	}
	if img.Title == "" {
		img.Title = defaultImageTitle
	}

	if s.mirror != nil {
		mirrored, err := s.mirror.Mirror(r.Context(), img.ID, img.ImageURL)
		if err != nil {
			log.Warn().Err(err).Str("image_id", img.ID).Msg("cdn mirror failed, keeping upstream url")
		} else {
			img.ImageURL = mirrored
		}
	}

	if err := s.store.CreateImage(r.Context(), img); err != nil {
		log.Error().Err(err).Str("profile_id", p.ID).Msg("failed to save image")
		httpx.WriteError(w, http.StatusInternalServerError, "Failed to save image: "+err.Error())
		return
	}

	if err := s.store.AddFavorite(r.Context(), p.ID, img.ID); err != nil && !errors.Is(err, store.ErrDuplicate) {
		log.Warn().Err(err).Str("image_id", img.ID).Msg("auto-favorite failed")
	}

	if img.IsPublic {
		s.gallery.publish(store.GalleryImage{Image: img, Username: usernameOrUnknown(p.Username)})
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"image":   img,
	})
}

func (s *Server) handleImagesList(w http.ResponseWriter, r *http.Request) {
	p, _ := profileFromContext(r.Context())
	images, err := s.store.FavoriteImages(r.Context(), p.ID)
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch favorite images")
		httpx.WriteError(w, http.StatusInternalServerError, "Failed to fetch images")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"images":  images,
	})
}

// ownedImage loads the path image and checks the caller owns it. It writes
// the error response itself.
func (s *Server) ownedImage(w http.ResponseWriter, r *http.Request) (*store.Image, bool) {
	p, _ := profileFromContext(r.Context())
	img, err := s.store.ImageByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "Image not found")
			return nil, false
		}
		httpx.WriteError(w, http.StatusInternalServerError, "Failed to fetch image")
		return nil, false
	}
	if img.OwnerID != p.ID {
		httpx.WriteError(w, http.StatusForbidden, "You do not own this image")
		return nil, false
	}
	return img, true
}

func (s *Server) handleImagePatch(w http.ResponseWriter, r *http.Request) {
	var req imagePatchRequest
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	upd := store.ImageUpdate{Title: req.Title, Description: req.Description, IsPublic: req.IsPublic}
	if upd.Empty() {
		httpx.WriteError(w, http.StatusBadRequest, "Nothing to update")
		return
	}

	img, ok := s.ownedImage(w, r)
	if !ok {
		return
	}
	wasPublic := img.IsPublic

	if err := s.store.UpdateImage(r.Context(), img.ID, upd); err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "Failed to update image")
		return
	}
	if upd.Title != nil {
		img.Title = *upd.Title
	}
	if upd.Description != nil {
		img.Description = *upd.Description
	}
	if upd.IsPublic != nil {
		img.IsPublic = *upd.IsPublic
	}

	if img.IsPublic && !wasPublic {
		p, _ := profileFromContext(r.Context())
		s.gallery.publish(store.GalleryImage{Image: *img, Username: usernameOrUnknown(p.Username)})
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"image":   img,
	})
}

func (s *Server) handleImageDelete(w http.ResponseWriter, r *http.Request) {
	img, ok := s.ownedImage(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteImage(r.Context(), img.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "Image not found")
			return
		}
		httpx.WriteError(w, http.StatusInternalServerError, "Failed to delete image")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

func usernameOrUnknown(name string) string {
	if strings.TrimSpace(name) == "" {
		return store.UnknownUsername
	}
	return name
}

package api

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"headshotstudio/internal/db"
	"headshotstudio/internal/httpx"
	"headshotstudio/internal/lora"
	"headshotstudio/internal/store"
)

type tableStatus struct {
	Exists bool    `json:"exists"`
	Error  *string `json:"error"`
}

type loraTriggerRequest struct {
	LoraID      string `json:"lora_id"`
	TriggerWord string `json:"trigger_word"`
}

func (s *Server) handleDebugTables(w http.ResponseWriter, r *http.Request) {
	var (
		mu      sync.Mutex
		results = make(map[string]tableStatus, len(db.Tables))
	)

	g, ctx := errgroup.WithContext(r.Context())
	for _, table := range db.Tables {
		table := table
		g.Go(func() error {
			exists, err := s.store.TableExists(ctx, table)
			st := tableStatus{Exists: exists}
			if err != nil {
				msg := err.Error()
				st.Error = &msg
			}
			mu.Lock()
			results[table] = st
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"environment": map[string]bool{
			"replicateToken": strings.TrimSpace(s.cfg.ReplicateAPIToken) != "",
			"adminToken":     strings.TrimSpace(s.cfg.AdminToken) != "",
			"cdnMirror":      s.cfg.BunnyConfigured(),
		},
		"tables": results,
	})
}

func (s *Server) handleDebugTriggerColumn(w http.ResponseWriter, r *http.Request) {
	added, err := db.EnsureTriggerWordColumn(r.Context(), s.store.DB())
	if err != nil {
		var manual *db.ManualMigrationError
		if errors.As(err, &manual) {
			httpx.WriteJSON(w, http.StatusOK, map[string]any{
				"success":   false,
				"error":     "Could not add column. Manual database update required.",
				"statement": manual.Statement,
				"details":   manual.Cause.Error(),
			})
			return
		}
		httpx.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := s.store.SetTriggerWordByReplicateID(r.Context(), lora.KnownModelRef, lora.KnownTriggerWord); err != nil {
		log.Warn().Err(err).Msg("failed to set known trigger word")
	}

	msg := "trigger_word column already exists"
	if added {
		msg = "Added trigger_word column"
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"added":   added,
		"message": msg,
	})
}

func (s *Server) handleDebugLoraTrigger(w http.ResponseWriter, r *http.Request) {
	var req loraTriggerRequest
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	req.LoraID = strings.TrimSpace(req.LoraID)
	req.TriggerWord = strings.TrimSpace(req.TriggerWord)
	if req.LoraID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "Missing lora_id parameter")
		return
	}
	if req.TriggerWord == "" {
		httpx.WriteError(w, http.StatusBadRequest, "Missing trigger_word parameter")
		return
	}

	m, err := s.registry.SetTriggerWord(r.Context(), req.LoraID, req.TriggerWord)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "LoRA model not found")
			return
		}
		httpx.WriteError(w, http.StatusInternalServerError, "Failed to update LoRA model")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": `Updated LoRA model with trigger word "` + req.TriggerWord + `"`,
		"model":   m,
	})
}

func (s *Server) handleDebugSetupLora(w http.ResponseWriter, r *http.Request) {
	if err := db.Migrate(r.Context(), s.store.DB()); err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	n, err := s.registry.SeedBuiltin(r.Context())
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"seeded":  n,
		"message": "LoRA tables ready",
	})
}

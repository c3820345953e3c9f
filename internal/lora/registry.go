// Package lora manages the LoRA model registry: listing active models with
// per-user settings, discovering trigger words and seeding the catalogue.
package lora

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"headshotstudio/internal/params"
	"headshotstudio/internal/store"
)

var ErrModelRequired = errors.New("LoRA model ID is required")

// Store is the persistence the registry needs.
type Store interface {
	ActiveLoraModels(ctx context.Context) ([]store.LoraModel, error)
	LoraModel(ctx context.Context, id string) (*store.LoraModel, error)
	UpsertLoraModel(ctx context.Context, m store.LoraModel) error
	SetTriggerWord(ctx context.Context, loraID, word string) error
	UserLoraAccess(ctx context.Context, profileID string) (map[string]store.UserLoraAccess, error)
	UpsertUserLoraAccess(ctx context.Context, profileID, loraID string, custom params.Values) error
}

// Describer fetches a model description from Replicate.
type Describer interface {
	ModelDescription(ctx context.Context, modelRef string) (string, error)
}

// Model is a registry entry, enriched with the caller's settings when known.
type Model struct {
	store.LoraModel
	CustomParameters params.Values `json:"custom_parameters,omitempty"`
	IsOwner          *bool         `json:"is_owner,omitempty"`
	CanUse           *bool         `json:"can_use,omitempty"`
}

type Registry struct {
	store     Store
	describer Describer
}

func NewRegistry(s Store, d Describer) *Registry {
	return &Registry{store: s, describer: d}
}

// List returns the active models. Missing trigger words are discovered and
// saved best-effort. With a profileID, models the profile has settings for
// carry custom_parameters, is_owner and can_use.
func (r *Registry) List(ctx context.Context, profileID string) ([]Model, error) {
	models, err := r.store.ActiveLoraModels(ctx)
	if err != nil {
		return nil, err
	}

	for i := range models {
		m := &models[i]
		if m.TriggerWord != "" || m.ReplicateID == "" {
			continue
		}
		word := r.DiscoverTriggerWord(ctx, m.ReplicateID)
		if word == "" {
			continue
		}
		m.TriggerWord = word
		if err := r.store.SetTriggerWord(ctx, m.ID, word); err != nil {
			log.Warn().Err(err).Str("lora_id", m.ID).Msg("failed to persist trigger word")
		}
	}

	var access map[string]store.UserLoraAccess
	if profileID != "" {
		access, err = r.store.UserLoraAccess(ctx, profileID)
		if err != nil {
			log.Warn().Err(err).Str("profile_id", profileID).Msg("failed to load user lora access")
		}
	}

	out := make([]Model, 0, len(models))
	for _, m := range models {
		entry := Model{LoraModel: m}
		if a, ok := access[m.ID]; ok {
			isOwner, canUse := a.IsOwner, a.CanUse
			entry.CustomParameters = a.CustomParameters
			entry.IsOwner = &isOwner
			entry.CanUse = &canUse
		}
		out = append(out, entry)
	}
	return out, nil
}

// DiscoverTriggerWord asks Replicate for the model description and extracts
// the trigger word. Without a describer, or when the lookup fails, only the
// model name is consulted.
func (r *Registry) DiscoverTriggerWord(ctx context.Context, modelRef string) string {
	if r.describer == nil {
		return KnownTriggerWordFor(modelRef)
	}
	desc, err := r.describer.ModelDescription(ctx, modelRef)
	if err != nil {
		log.Debug().Err(err).Str("model", modelRef).Msg("model description unavailable")
		return KnownTriggerWordFor(modelRef)
	}
	return ExtractTriggerWord(modelRef, desc)
}

// SaveCustomParameters stores a profile's parameters for a model.
func (r *Registry) SaveCustomParameters(ctx context.Context, profileID, loraID string, custom params.Values) error {
	loraID = strings.TrimSpace(loraID)
	if loraID == "" {
		return ErrModelRequired
	}
	if _, err := r.store.LoraModel(ctx, loraID); err != nil {
		return err
	}
	return r.store.UpsertUserLoraAccess(ctx, profileID, loraID, custom)
}

// SetTriggerWord overrides the trigger word of an existing model.
func (r *Registry) SetTriggerWord(ctx context.Context, loraID, word string) (*store.LoraModel, error) {
	m, err := r.store.LoraModel(ctx, loraID)
	if err != nil {
		return nil, err
	}
	if err := r.store.SetTriggerWord(ctx, loraID, word); err != nil {
		return nil, err
	}
	m.TriggerWord = word
	return m, nil
}

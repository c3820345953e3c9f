package lora

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"headshotstudio/internal/params"
	"headshotstudio/internal/store"
)

//go:embed seed.yaml
var builtinSeed []byte

type seedFile struct {
	Models []seedModel `yaml:"models"`
}

type seedModel struct {
	ReplicateID       string         `yaml:"replicate_id"`
	Name              string         `yaml:"name"`
	Owner             string         `yaml:"owner"`
	Version           string         `yaml:"version"`
	Description       string         `yaml:"description"`
	TriggerWord       string         `yaml:"trigger_word"`
	Active            *bool          `yaml:"active"`
	DefaultParameters map[string]any `yaml:"default_parameters"`
}

// ParseSeed reads a model seed document.
func ParseSeed(r io.Reader) ([]store.LoraModel, error) {
	var doc seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("parse model seed: %w", err)
	}

	out := make([]store.LoraModel, 0, len(doc.Models))
	for i, m := range doc.Models {
		ref := strings.TrimSpace(m.ReplicateID)
		if ref == "" {
			return nil, fmt.Errorf("parse model seed: models[%d]: replicate_id is required", i)
		}
		name, _, _ := strings.Cut(ref, ":")
		owner := strings.TrimSpace(m.Owner)
		if owner == "" {
			owner, _, _ = strings.Cut(name, "/")
		}
		title := strings.TrimSpace(m.Name)
		if title == "" {
			title = name
		}
		active := true
		if m.Active != nil {
			active = *m.Active
		}
		out = append(out, store.LoraModel{
			ID:                uuid.NewString(),
			ReplicateID:       ref,
			Name:              title,
			Owner:             owner,
			Version:           strings.TrimSpace(m.Version),
			Description:       strings.TrimSpace(m.Description),
			TriggerWord:       strings.TrimSpace(m.TriggerWord),
			IsActive:          active,
			DefaultParameters: params.Values(m.DefaultParameters),
		})
	}
	return out, nil
}

// Seed upserts every model of a seed document and returns how many were written.
func (r *Registry) Seed(ctx context.Context, src io.Reader) (int, error) {
	models, err := ParseSeed(src)
	if err != nil {
		return 0, err
	}
	for _, m := range models {
		if err := r.store.UpsertLoraModel(ctx, m); err != nil {
			return 0, fmt.Errorf("seed model %s: %w", m.ReplicateID, err)
		}
	}
	return len(models), nil
}

func (r *Registry) SeedFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return r.Seed(ctx, f)
}

// SeedBuiltin installs the models bundled with the binary.
func (r *Registry) SeedBuiltin(ctx context.Context) (int, error) {
	return r.Seed(ctx, bytes.NewReader(builtinSeed))
}

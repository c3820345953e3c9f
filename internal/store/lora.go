package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"headshotstudio/internal/params"
)

type LoraModel struct {
	ID                string        `json:"id"`
	ReplicateID       string        `json:"replicate_id"`
	Name              string        `json:"name"`
	Owner             string        `json:"owner"`
	Version           string        `json:"version"`
	Description       string        `json:"description"`
	TriggerWord       string        `json:"trigger_word,omitempty"`
	IsActive          bool          `json:"is_active"`
	DefaultParameters params.Values `json:"default_parameters"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// Ref is the Replicate model reference, "owner/name:version" when versioned.
func (m LoraModel) Ref() string {
	if strings.Contains(m.ReplicateID, ":") || m.Version == "" {
		return m.ReplicateID
	}
	return m.ReplicateID + ":" + m.Version
}

type UserLoraAccess struct {
	ProfileID        string
	LoraID           string
	IsOwner          bool
	CanUse           bool
	CustomParameters params.Values
}

const loraColumns = `id, replicate_id, name, owner, version, COALESCE(description, ''),
	COALESCE(trigger_word, ''), is_active, default_parameters, created_at, updated_at`

func scanLoraModel(sc rowScanner) (LoraModel, error) {
	var (
		m        LoraModel
		active   int
		defaults []byte
	)
	err := sc.Scan(&m.ID, &m.ReplicateID, &m.Name, &m.Owner, &m.Version, &m.Description,
		&m.TriggerWord, &active, &defaults, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return LoraModel{}, err
	}
	m.IsActive = active != 0
	m.DefaultParameters = decodeValues(defaults)
	return m, nil
}

func (s *Store) ActiveLoraModels(ctx context.Context) ([]LoraModel, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+loraColumns+" FROM lora_models WHERE is_active = 1 ORDER BY name ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []LoraModel{}
	for rows.Next() {
		m, err := scanLoraModel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ActiveLoraModel loads one active model. Inactive and missing models yield ErrNotFound.
func (s *Store) ActiveLoraModel(ctx context.Context, id string) (*LoraModel, error) {
	return s.loraWhere(ctx, "id = ? AND is_active = 1", id)
}

func (s *Store) LoraModel(ctx context.Context, id string) (*LoraModel, error) {
	return s.loraWhere(ctx, "id = ?", id)
}

func (s *Store) LoraModelByReplicateID(ctx context.Context, replicateID string) (*LoraModel, error) {
	return s.loraWhere(ctx, "replicate_id = ?", replicateID)
}

func (s *Store) loraWhere(ctx context.Context, where string, arg any) (*LoraModel, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+loraColumns+" FROM lora_models WHERE "+where+" LIMIT 1", arg)
	m, err := scanLoraModel(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// UpsertLoraModel inserts a model or refreshes the one sharing its replicate_id.
// An existing trigger word is kept when m carries none.
func (s *Store) UpsertLoraModel(ctx context.Context, m LoraModel) error {
	defaults, err := encodeValues(m.DefaultParameters)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO lora_models (id, replicate_id, name, owner, version, description, trigger_word, is_active, default_parameters)
		VALUES (?, ?, ?, ?, ?, ?, NULLIF(?, ''), ?, ?)
		ON DUPLICATE KEY UPDATE
			name = VALUES(name),
			owner = VALUES(owner),
			version = VALUES(version),
			description = VALUES(description),
			trigger_word = COALESCE(VALUES(trigger_word), trigger_word),
			is_active = VALUES(is_active),
			default_parameters = VALUES(default_parameters)
	`, m.ID, m.ReplicateID, m.Name, m.Owner, m.Version, m.Description, m.TriggerWord, boolInt(m.IsActive), defaults)
	return err
}

func (s *Store) SetTriggerWord(ctx context.Context, loraID, word string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE lora_models SET trigger_word = ? WHERE id = ?", word, loraID)
	return err
}

func (s *Store) SetTriggerWordByReplicateID(ctx context.Context, replicateID, word string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE lora_models SET trigger_word = ? WHERE replicate_id = ?", word, replicateID)
	return err
}

// UserCustomParameters returns a profile's saved parameters for a model,
// nil when none were saved.
func (s *Store) UserCustomParameters(ctx context.Context, profileID, loraID string) (params.Values, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT custom_parameters
		FROM user_lora_access
		WHERE profile_id = ? AND lora_id = ?
		LIMIT 1
	`, profileID, loraID).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return decodeValues(raw), nil
}

// UserLoraAccess returns every access row of a profile keyed by model id.
func (s *Store) UserLoraAccess(ctx context.Context, profileID string) (map[string]UserLoraAccess, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT lora_id, is_owner, can_use, custom_parameters
		FROM user_lora_access
		WHERE profile_id = ?
	`, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]UserLoraAccess{}
	for rows.Next() {
		var (
			a       UserLoraAccess
			isOwner int
			canUse  int
			raw     []byte
		)
		if err := rows.Scan(&a.LoraID, &isOwner, &canUse, &raw); err != nil {
			return nil, err
		}
		a.ProfileID = profileID
		a.IsOwner = isOwner != 0
		a.CanUse = canUse != 0
		a.CustomParameters = decodeValues(raw)
		out[a.LoraID] = a
	}
	return out, rows.Err()
}

// UpsertUserLoraAccess saves custom parameters. New rows grant use without ownership.
func (s *Store) UpsertUserLoraAccess(ctx context.Context, profileID, loraID string, custom params.Values) error {
	encoded, err := encodeValues(custom)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_lora_access (profile_id, lora_id, is_owner, can_use, custom_parameters)
		VALUES (?, ?, 0, 1, ?)
		ON DUPLICATE KEY UPDATE custom_parameters = VALUES(custom_parameters)
	`, profileID, loraID, encoded)
	return err
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

type Profile struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// CreateProfile inserts a profile. A taken email yields ErrDuplicate.
func (s *Store) CreateProfile(ctx context.Context, p Profile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (id, email, username, password_hash)
		VALUES (?, ?, ?, ?)
	`, p.ID, strings.ToLower(strings.TrimSpace(p.Email)), p.Username, p.PasswordHash)
	return mapDuplicate(err)
}

func (s *Store) ProfileByEmail(ctx context.Context, email string) (*Profile, error) {
	return s.profileWhere(ctx, "email = ?", strings.ToLower(strings.TrimSpace(email)))
}

func (s *Store) ProfileByID(ctx context.Context, id string) (*Profile, error) {
	return s.profileWhere(ctx, "id = ?", id)
}

func (s *Store) profileWhere(ctx context.Context, where string, arg any) (*Profile, error) {
	var p Profile
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, username, password_hash, created_at
		FROM profiles
		WHERE `+where+`
		LIMIT 1
	`, arg).Scan(&p.ID, &p.Email, &p.Username, &p.PasswordHash, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

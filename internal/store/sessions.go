package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type Session struct {
	ID          int64
	TokenSHA256 string
	ProfileID   string
	ExpiresAt   time.Time
	IP          string
	UserAgent   string
}

func (s *Store) CreateSession(ctx context.Context, sess Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (token_sha256, profile_id, expires_at, ip, user_agent)
		VALUES (?, ?, ?, ?, ?)
	`, sess.TokenSHA256, sess.ProfileID, sess.ExpiresAt, sess.IP, sess.UserAgent)
	return err
}

// SessionByToken returns the unexpired session for a token hash with its profile.
func (s *Store) SessionByToken(ctx context.Context, tokenSHA string) (*Session, *Profile, error) {
	var (
		sess Session
		p    Profile
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT
			s.id,
			s.token_sha256,
			s.expires_at,
			p.id,
			p.email,
			p.username,
			p.created_at
		FROM sessions s
		JOIN profiles p ON p.id = s.profile_id
		WHERE s.token_sha256 = ? AND s.expires_at > NOW()
		LIMIT 1
	`, tokenSHA).Scan(&sess.ID, &sess.TokenSHA256, &sess.ExpiresAt, &p.ID, &p.Email, &p.Username, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	sess.ProfileID = p.ID
	return &sess, &p, nil
}

// TouchSession moves the session expiry forward.
func (s *Store) TouchSession(ctx context.Context, id int64, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, "UPDATE sessions SET last_seen_at = NOW(), expires_at = ? WHERE id = ?", expiresAt, id)
	return err
}

func (s *Store) DeleteSession(ctx context.Context, tokenSHA string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE token_sha256 = ?", tokenSHA)
	return err
}

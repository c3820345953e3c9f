// Package store is the MySQL repository behind the HTTP API: profiles,
// sessions, images, favorites and the LoRA model registry.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"headshotstudio/internal/db"
	"headshotstudio/internal/params"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

type Store struct {
	db *sql.DB
}

func New(sqlDB *sql.DB) *Store {
	return &Store{db: sqlDB}
}

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// TableExists checks information_schema for a table in the current database.
func (s *Store) TableExists(ctx context.Context, table string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM information_schema.tables
		WHERE table_schema = DATABASE() AND table_name = ?
	`, table).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func encodeValues(v params.Values) (string, error) {
	if v == nil {
		return "{}", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// decodeValues tolerates NULL and malformed JSON columns; both read as empty.
func decodeValues(raw []byte) params.Values {
	v, err := params.Decode(raw)
	if err != nil {
		return params.Values{}
	}
	return v
}

func mapDuplicate(err error) error {
	if db.IsDuplicateEntry(err) {
		return ErrDuplicate
	}
	return err
}

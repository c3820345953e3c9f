package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"headshotstudio/internal/params"
)

// UnknownUsername labels gallery images whose owner has no username.
const UnknownUsername = "Unknown User"

type Image struct {
	ID              string        `json:"id"`
	OwnerID         string        `json:"user_id"`
	ImageURL        string        `json:"image_url"`
	Title           string        `json:"title"`
	Description     string        `json:"description"`
	Prompt          string        `json:"prompt"`
	ModelParameters params.Values `json:"model_parameters"`
	IsPublic        bool          `json:"is_public"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

type GalleryImage struct {
	Image
	Username string `json:"username"`
}

// ImageUpdate lists the mutable image fields; nil fields are left alone.
type ImageUpdate struct {
	Title       *string
	Description *string
	IsPublic    *bool
}

func (u ImageUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.IsPublic == nil
}

const imageColumns = `i.id, i.owner_id, i.image_url, i.title, i.description, i.prompt,
	i.model_parameters, i.is_public, i.created_at, i.updated_at`

func scanImage(sc rowScanner, extra ...any) (Image, error) {
	var (
		img      Image
		rawModel []byte
		isPublic int
	)
	dest := append([]any{
		&img.ID, &img.OwnerID, &img.ImageURL, &img.Title, &img.Description, &img.Prompt,
		&rawModel, &isPublic, &img.CreatedAt, &img.UpdatedAt,
	}, extra...)
	if err := sc.Scan(dest...); err != nil {
		return Image{}, err
	}
	img.ModelParameters = decodeValues(rawModel)
	img.IsPublic = isPublic != 0
	return img, nil
}

func (s *Store) CreateImage(ctx context.Context, img Image) error {
	model, err := encodeValues(img.ModelParameters)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO images (id, owner_id, image_url, title, description, prompt, model_parameters, is_public)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, img.ID, img.OwnerID, img.ImageURL, img.Title, img.Description, img.Prompt, model, boolInt(img.IsPublic))
	return err
}

func (s *Store) ImageByID(ctx context.Context, id string) (*Image, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+imageColumns+" FROM images i WHERE i.id = ? LIMIT 1", id)
	img, err := scanImage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &img, nil
}

func (s *Store) UpdateImage(ctx context.Context, id string, u ImageUpdate) error {
	if u.Empty() {
		return nil
	}
	var (
		sets []string
		args []any
	)
	if u.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *u.Title)
	}
	if u.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *u.Description)
	}
	if u.IsPublic != nil {
		sets = append(sets, "is_public = ?")
		args = append(args, boolInt(*u.IsPublic))
	}
	args = append(args, id)
	_, err := s.db.ExecContext(ctx, "UPDATE images SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	return err
}

// DeleteImage removes an image and every favorite pointing at it.
func (s *Store) DeleteImage(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM favorites WHERE image_id = ?", id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM images WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// FavoriteImages lists the images a profile has favorited, newest first.
func (s *Store) FavoriteImages(ctx context.Context, profileID string) ([]Image, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+imageColumns+`
		FROM favorites f
		JOIN images i ON i.id = f.image_id
		WHERE f.profile_id = ?
		ORDER BY i.created_at DESC
	`, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Image{}
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, img)
	}
	return out, rows.Err()
}

// PublicImages lists the newest public images with their owner's username.
func (s *Store) PublicImages(ctx context.Context, limit int) ([]GalleryImage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+imageColumns+`, COALESCE(NULLIF(p.username, ''), ?)
		FROM images i
		LEFT JOIN profiles p ON p.id = i.owner_id
		WHERE i.is_public = 1
		ORDER BY i.created_at DESC
		LIMIT ?
	`, UnknownUsername, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []GalleryImage{}
	for rows.Next() {
		var username string
		img, err := scanImage(rows, &username)
		if err != nil {
			return nil, err
		}
		out = append(out, GalleryImage{Image: img, Username: username})
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

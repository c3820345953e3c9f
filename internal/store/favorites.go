package store

import "context"

// AddFavorite records a favorite. Favoriting twice yields ErrDuplicate.
func (s *Store) AddFavorite(ctx context.Context, profileID, imageID string) error {
	_, err := s.db.ExecContext(ctx, "INSERT INTO favorites (profile_id, image_id) VALUES (?, ?)", profileID, imageID)
	return mapDuplicate(err)
}

func (s *Store) RemoveFavorite(ctx context.Context, profileID, imageID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM favorites WHERE profile_id = ? AND image_id = ?", profileID, imageID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

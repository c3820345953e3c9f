package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Tables lists every table the application owns, in creation order.
var Tables = []string{"profiles", "sessions", "images", "favorites", "lora_models", "user_lora_access"}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS profiles (
		id CHAR(36) NOT NULL PRIMARY KEY,
		email VARCHAR(255) NOT NULL,
		username VARCHAR(100) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_profiles_email (email)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		token_sha256 CHAR(64) NOT NULL,
		profile_id CHAR(36) NOT NULL,
		expires_at DATETIME NOT NULL,
		last_seen_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		ip VARCHAR(64) NOT NULL DEFAULT '',
		user_agent VARCHAR(255) NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_sessions_token (token_sha256),
		KEY idx_sessions_profile (profile_id),
		CONSTRAINT fk_sessions_profile FOREIGN KEY (profile_id) REFERENCES profiles (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	`CREATE TABLE IF NOT EXISTS images (
		id CHAR(36) NOT NULL PRIMARY KEY,
		owner_id CHAR(36) NOT NULL,
		image_url TEXT NOT NULL,
		title VARCHAR(255) NOT NULL DEFAULT 'Generated Image',
		description TEXT NOT NULL,
		prompt TEXT NOT NULL,
		model_parameters JSON NOT NULL,
		is_public TINYINT(1) NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		KEY idx_images_public (is_public, created_at),
		KEY idx_images_owner (owner_id),
		CONSTRAINT fk_images_owner FOREIGN KEY (owner_id) REFERENCES profiles (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	`CREATE TABLE IF NOT EXISTS favorites (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		profile_id CHAR(36) NOT NULL,
		image_id CHAR(36) NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_favorites_profile_image (profile_id, image_id),
		KEY idx_favorites_image (image_id),
		CONSTRAINT fk_favorites_profile FOREIGN KEY (profile_id) REFERENCES profiles (id) ON DELETE CASCADE,
		CONSTRAINT fk_favorites_image FOREIGN KEY (image_id) REFERENCES images (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	`CREATE TABLE IF NOT EXISTS lora_models (
		id CHAR(36) NOT NULL PRIMARY KEY,
		replicate_id VARCHAR(255) NOT NULL,
		name VARCHAR(255) NOT NULL,
		owner VARCHAR(255) NOT NULL,
		version VARCHAR(100) NOT NULL DEFAULT '',
		description TEXT NULL,
		trigger_word VARCHAR(100) NULL,
		is_active TINYINT(1) NOT NULL DEFAULT 1,
		default_parameters JSON NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_lora_models_replicate (replicate_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	`CREATE TABLE IF NOT EXISTS user_lora_access (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		profile_id CHAR(36) NOT NULL,
		lora_id CHAR(36) NOT NULL,
		is_owner TINYINT(1) NOT NULL DEFAULT 0,
		can_use TINYINT(1) NOT NULL DEFAULT 1,
		custom_parameters JSON NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_user_lora (profile_id, lora_id),
		CONSTRAINT fk_user_lora_profile FOREIGN KEY (profile_id) REFERENCES profiles (id) ON DELETE CASCADE,
		CONSTRAINT fk_user_lora_model FOREIGN KEY (lora_id) REFERENCES lora_models (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
}

// Migrate creates missing tables. Safe to run on every start.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create table %s: %w", Tables[i], err)
		}
	}
	return nil
}

// ManualMigrationError is returned when a schema change could not be applied
// and an operator has to run the statement by hand.
type ManualMigrationError struct {
	Statement string
	Cause     error
}

func (e *ManualMigrationError) Error() string {
	return fmt.Sprintf("could not apply schema change, run manually: %s (cause: %v)", e.Statement, e.Cause)
}

func (e *ManualMigrationError) Unwrap() error { return e.Cause }

const addTriggerWordColumn = "ALTER TABLE lora_models ADD COLUMN trigger_word VARCHAR(100) NULL"

// EnsureTriggerWordColumn adds lora_models.trigger_word to databases created
// before the column existed. It reports whether the column was added by this call.
//
// Fallbacks run in order: information_schema lookup, ALTER TABLE, then a
// ManualMigrationError carrying the statement. A failed lookup is not fatal;
// the ALTER is attempted anyway and a duplicate-column error means the column
// is already there.
func EnsureTriggerWordColumn(ctx context.Context, db *sql.DB) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM information_schema.columns
		WHERE table_schema = DATABASE()
			AND table_name = 'lora_models'
			AND column_name = 'trigger_word'
	`).Scan(&n)
	if err == nil && n > 0 {
		return false, nil
	}

	_, alterErr := db.ExecContext(ctx, addTriggerWordColumn)
	if alterErr == nil {
		return true, nil
	}
	if hasErrNum(alterErr, ErrNumDuplicateColumn) {
		return false, nil
	}
	if err != nil {
		alterErr = errors.Join(err, alterErr)
	}
	return false, &ManualMigrationError{Statement: addTriggerWordColumn, Cause: alterErr}
}

package stock

import (
	"context"

	errors "github.com/Laisky/errors/v2"
)

// migrationStatements creates the stock tables and indexes when absent.
// files.category holds the category name without a foreign key; the guard
// enforces the reference so soft-deleted files never pin a category.
var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS profiles (
		id UUID PRIMARY KEY,
		username VARCHAR(255) NOT NULL UNIQUE,
		user_type VARCHAR(16) NOT NULL DEFAULT 'user' CHECK (user_type IN ('admin', 'user')),
		full_name TEXT,
		avatar_url TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS categories (
		id UUID PRIMARY KEY,
		name VARCHAR(255) NOT NULL UNIQUE,
		description TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		created_by UUID
	)`,
	`CREATE TABLE IF NOT EXISTS files (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		original_name TEXT NOT NULL,
		size BIGINT NOT NULL CHECK (size >= 0),
		category VARCHAR(255) NOT NULL,
		description TEXT,
		file_path TEXT NOT NULL,
		mime_type VARCHAR(255),
		uploaded_by UUID,
		uploaded_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
		deleted_at TIMESTAMPTZ,
		CONSTRAINT files_deleted_consistent CHECK (is_deleted = (deleted_at IS NOT NULL))
	)`,
	`CREATE INDEX IF NOT EXISTS idx_files_category_active ON files (category) WHERE is_deleted = false`,
	`CREATE INDEX IF NOT EXISTS idx_files_uploaded_at ON files (uploaded_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_files_file_path ON files (file_path)`,
	`CREATE INDEX IF NOT EXISTS idx_profiles_created_at ON profiles (created_at DESC)`,
}

// runMigrations executes every migration statement in order.
func runMigrations(ctx context.Context, db DB) error {
	for _, stmt := range migrationStatements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return errors.Wrap(err, "execute stock migration")
		}
	}

	return nil
}

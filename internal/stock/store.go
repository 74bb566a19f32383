package stock

import (
	"context"
	"time"
)

// Store is the record store the service reads from and writes through.
// Read methods run outside transactions; every write goes through InTx.
type Store interface {
	ListFiles(ctx context.Context, q FileQuery) ([]File, error)
	// GetFile returns a NOT_FOUND *Error when no row matches.
	GetFile(ctx context.Context, id string, includeDeleted bool) (*File, error)
	ListCategories(ctx context.Context, q CategoryQuery) ([]Category, error)
	FindCategories(ctx context.Context, l CategoryLookup) ([]Category, error)
	ListProfiles(ctx context.Context, q ProfileQuery) ([]UserProfile, error)
	FindProfiles(ctx context.Context, l ProfileLookup) ([]UserProfile, error)
	StatsRows(ctx context.Context, q StatsQuery) ([]FileStatRow, error)
	// ActiveFileCategories returns the category name of every active file.
	ActiveFileCategories(ctx context.Context) ([]string, error)
	// InTx runs fn in one transaction, committing when fn returns nil.
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the write surface available inside a store transaction.
type Tx interface {
	// LockCategory locks the matching category row for the rest of the
	// transaction. exclusive selects FOR UPDATE over FOR SHARE.
	// It returns a NOT_FOUND *Error when no row matches.
	LockCategory(ctx context.Context, l CategoryLookup, exclusive bool) (*Category, error)
	CountActiveFiles(ctx context.Context, category string) (int64, error)
	// LockFile returns the row, deleted or not, locked for update.
	LockFile(ctx context.Context, id string) (*File, error)
	InsertFile(ctx context.Context, f File) (*File, error)
	UpdateFile(ctx context.Context, id string, patch FilePatch) (*File, error)
	DeleteFile(ctx context.Context, id string) error
	InsertCategory(ctx context.Context, c Category) (*Category, error)
	UpdateCategory(ctx context.Context, id string, patch CategoryPatch) (*Category, error)
	// RenameFileCategory re-points every file filed under from to to.
	RenameFileCategory(ctx context.Context, from, to string) (int64, error)
	DeleteCategory(ctx context.Context, id string) error
}

// FilePatch is a partial file update. Nil fields are left untouched.
type FilePatch struct {
	Name        *string
	Category    *string
	Description *string
	// SoftDelete marks the row deleted and stamps deleted_at with At.
	SoftDelete bool
	// Restore clears the deleted flag and timestamp.
	Restore bool
	At      time.Time
}

// CategoryPatch is a partial category update. Nil fields are left untouched.
type CategoryPatch struct {
	Name        *string
	Description *string
}

func (p FilePatch) empty() bool {
	return p.Name == nil && p.Category == nil && p.Description == nil && !p.SoftDelete && !p.Restore
}

package stock

import (
	"context"
	"fmt"
	"strings"

	errors "github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Laisky/docstock/library/log"
)

const pgUniqueViolation = "23505"

// DB defines the database capabilities required by the PostgreSQL store.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

var _ DB = (*pgxpool.Pool)(nil)

// querier is the subset shared by pools and transactions.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store on PostgreSQL through pgx.
type PostgresStore struct {
	db     DB
	logger logSDK.Logger
}

// NewPostgresStore constructs a PostgresStore and creates its tables when absent.
func NewPostgresStore(ctx context.Context, db DB, logger logSDK.Logger) (*PostgresStore, error) {
	if db == nil {
		return nil, errors.New("database is required")
	}
	if logger == nil {
		logger = log.Logger.Named("stock_store")
	}

	store := &PostgresStore{db: db, logger: logger}
	if err := runMigrations(ctx, db); err != nil {
		return nil, errors.Wrap(err, "migrate stock tables")
	}

	return store, nil
}

// ListFiles implements Store.
func (s *PostgresStore) ListFiles(ctx context.Context, q FileQuery) ([]File, error) {
	query, args := fileListSQL(q)
	return queryFiles(ctx, s.db, query, args...)
}

// GetFile implements Store.
func (s *PostgresStore) GetFile(ctx context.Context, id string, includeDeleted bool) (*File, error) {
	query := "SELECT " + fileColumns + " FROM files WHERE id = $1"
	if !includeDeleted {
		query += " AND is_deleted = false"
	}
	file, err := scanFile(s.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, translateError(err, "file")
	}
	return file, nil
}

// ListCategories implements Store.
func (s *PostgresStore) ListCategories(ctx context.Context, q CategoryQuery) ([]Category, error) {
	query, args := categoryListSQL(q)
	return queryCategories(ctx, s.db, query, args...)
}

// FindCategories implements Store.
func (s *PostgresStore) FindCategories(ctx context.Context, l CategoryLookup) ([]Category, error) {
	query, args := categoryLookupSQL(l)
	return queryCategories(ctx, s.db, query, args...)
}

// ListProfiles implements Store.
func (s *PostgresStore) ListProfiles(ctx context.Context, q ProfileQuery) ([]UserProfile, error) {
	query, args := profileListSQL(q)
	return queryProfiles(ctx, s.db, query, args...)
}

// FindProfiles implements Store.
func (s *PostgresStore) FindProfiles(ctx context.Context, l ProfileLookup) ([]UserProfile, error) {
	query, args := profileLookupSQL(l)
	return queryProfiles(ctx, s.db, query, args...)
}

// StatsRows implements Store.
func (s *PostgresStore) StatsRows(ctx context.Context, q StatsQuery) ([]FileStatRow, error) {
	query, args := statsSQL(q)
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, translateError(err, "file")
	}
	defer rows.Close()

	result := make([]FileStatRow, 0)
	for rows.Next() {
		var row FileStatRow
		if err := rows.Scan(&row.Category, &row.Size, &row.UploadedAt); err != nil {
			return nil, translateError(err, "file")
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError(err, "file")
	}
	return result, nil
}

// ActiveFileCategories implements Store.
func (s *PostgresStore) ActiveFileCategories(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, "SELECT category FROM files WHERE is_deleted = false")
	if err != nil {
		return nil, translateError(err, "file")
	}
	defer rows.Close()

	result := make([]string, 0)
	for rows.Next() {
		var category string
		if err := rows.Scan(&category); err != nil {
			return nil, translateError(err, "file")
		}
		result = append(result, category)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError(err, "file")
	}
	return result, nil
}

// InTx implements Store. The transaction is rolled back when fn fails.
func (s *PostgresStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return translateError(err, "transaction")
	}

	if err := fn(&postgresTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			s.logger.Warn("rollback stock transaction", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return translateError(err, "transaction")
	}
	return nil
}

type postgresTx struct {
	tx pgx.Tx
}

// LockCategory implements Tx.
func (t *postgresTx) LockCategory(ctx context.Context, l CategoryLookup, exclusive bool) (*Category, error) {
	column, value := "name", l.Name
	if l.ID != "" {
		column, value = "id", l.ID
	}
	mode := "FOR SHARE"
	if exclusive {
		mode = "FOR UPDATE"
	}
	query := fmt.Sprintf("SELECT %s FROM categories WHERE %s = $1 %s", categoryColumns, column, mode)
	category, err := scanCategory(t.tx.QueryRow(ctx, query, value))
	if err != nil {
		return nil, translateError(err, "category")
	}
	return category, nil
}

// CountActiveFiles implements Tx.
func (t *postgresTx) CountActiveFiles(ctx context.Context, category string) (int64, error) {
	var count int64
	err := t.tx.QueryRow(ctx,
		"SELECT COUNT(*) FROM files WHERE category = $1 AND is_deleted = false",
		category,
	).Scan(&count)
	if err != nil {
		return 0, translateError(err, "file")
	}
	return count, nil
}

// LockFile implements Tx.
func (t *postgresTx) LockFile(ctx context.Context, id string) (*File, error) {
	file, err := scanFile(t.tx.QueryRow(ctx, "SELECT "+fileColumns+" FROM files WHERE id = $1 FOR UPDATE", id))
	if err != nil {
		return nil, translateError(err, "file")
	}
	return file, nil
}

// InsertFile implements Tx.
func (t *postgresTx) InsertFile(ctx context.Context, f File) (*File, error) {
	row := t.tx.QueryRow(ctx, `
		INSERT INTO files (
			id, name, original_name, size, category, description, file_path,
			mime_type, uploaded_by, uploaded_at, is_deleted, deleted_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, false, NULL
		)
		RETURNING `+fileColumns,
		f.ID, f.Name, f.OriginalName, f.Size, f.Category, f.Description, f.FilePath,
		f.MimeType, f.UploadedBy, f.UploadedAt,
	)
	file, err := scanFile(row)
	if err != nil {
		return nil, translateError(err, "file")
	}
	return file, nil
}

// UpdateFile implements Tx.
func (t *postgresTx) UpdateFile(ctx context.Context, id string, patch FilePatch) (*File, error) {
	if patch.empty() {
		return nil, newValidationError("", "required", "nothing to update")
	}

	b := &sqlBuilder{}
	if patch.Name != nil {
		b.add("name = %s", *patch.Name)
	}
	if patch.Category != nil {
		b.add("category = %s", *patch.Category)
	}
	if patch.Description != nil {
		b.add("description = %s", *patch.Description)
	}
	switch {
	case patch.SoftDelete:
		b.add("is_deleted = true, deleted_at = %s", patch.At)
	case patch.Restore:
		b.clauses = append(b.clauses, "is_deleted = false, deleted_at = NULL")
	}

	b.args = append(b.args, id)
	query := fmt.Sprintf("UPDATE files SET %s WHERE id = $%d RETURNING %s",
		strings.Join(b.clauses, ", "), len(b.args), fileColumns)
	file, err := scanFile(t.tx.QueryRow(ctx, query, b.args...))
	if err != nil {
		return nil, translateError(err, "file")
	}
	return file, nil
}

// DeleteFile implements Tx.
func (t *postgresTx) DeleteFile(ctx context.Context, id string) error {
	tag, err := t.tx.Exec(ctx, "DELETE FROM files WHERE id = $1", id)
	if err != nil {
		return translateError(err, "file")
	}
	if tag.RowsAffected() == 0 {
		return newNotFoundError("file", "File not found")
	}
	return nil
}

// InsertCategory implements Tx.
func (t *postgresTx) InsertCategory(ctx context.Context, c Category) (*Category, error) {
	row := t.tx.QueryRow(ctx, `
		INSERT INTO categories (id, name, description, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+categoryColumns,
		c.ID, c.Name, c.Description, c.CreatedAt, c.CreatedBy,
	)
	category, err := scanCategory(row)
	if err != nil {
		return nil, translateError(err, "category")
	}
	return category, nil
}

// UpdateCategory implements Tx.
func (t *postgresTx) UpdateCategory(ctx context.Context, id string, patch CategoryPatch) (*Category, error) {
	b := &sqlBuilder{}
	if patch.Name != nil {
		b.add("name = %s", *patch.Name)
	}
	if patch.Description != nil {
		b.add("description = %s", *patch.Description)
	}
	if len(b.clauses) == 0 {
		return nil, newValidationError("", "required", "nothing to update")
	}

	b.args = append(b.args, id)
	query := fmt.Sprintf("UPDATE categories SET %s WHERE id = $%d RETURNING %s",
		strings.Join(b.clauses, ", "), len(b.args), categoryColumns)
	category, err := scanCategory(t.tx.QueryRow(ctx, query, b.args...))
	if err != nil {
		return nil, translateError(err, "category")
	}
	return category, nil
}

// RenameFileCategory implements Tx.
func (t *postgresTx) RenameFileCategory(ctx context.Context, from, to string) (int64, error) {
	tag, err := t.tx.Exec(ctx, "UPDATE files SET category = $1 WHERE category = $2", to, from)
	if err != nil {
		return 0, translateError(err, "file")
	}
	return tag.RowsAffected(), nil
}

// DeleteCategory implements Tx.
func (t *postgresTx) DeleteCategory(ctx context.Context, id string) error {
	tag, err := t.tx.Exec(ctx, "DELETE FROM categories WHERE id = $1", id)
	if err != nil {
		return translateError(err, "category")
	}
	if tag.RowsAffected() == 0 {
		return newNotFoundError("category", "Category not found")
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFile(row rowScanner) (*File, error) {
	var f File
	if err := row.Scan(
		&f.ID,
		&f.Name,
		&f.OriginalName,
		&f.Size,
		&f.Category,
		&f.Description,
		&f.FilePath,
		&f.MimeType,
		&f.UploadedBy,
		&f.UploadedAt,
		&f.IsDeleted,
		&f.DeletedAt,
	); err != nil {
		return nil, err
	}
	return &f, nil
}

func scanCategory(row rowScanner) (*Category, error) {
	var c Category
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.CreatedBy); err != nil {
		return nil, err
	}
	return &c, nil
}

func scanProfile(row rowScanner) (*UserProfile, error) {
	var (
		p        UserProfile
		userType string
	)
	if err := row.Scan(&p.ID, &p.Username, &userType, &p.FullName, &p.AvatarURL, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.UserType = Role(userType)
	return &p, nil
}

func queryFiles(ctx context.Context, q querier, query string, args ...any) ([]File, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, translateError(err, "file")
	}
	defer rows.Close()

	result := make([]File, 0)
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, translateError(err, "file")
		}
		result = append(result, *file)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError(err, "file")
	}
	return result, nil
}

func queryCategories(ctx context.Context, q querier, query string, args ...any) ([]Category, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, translateError(err, "category")
	}
	defer rows.Close()

	result := make([]Category, 0)
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, translateError(err, "category")
		}
		result = append(result, *category)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError(err, "category")
	}
	return result, nil
}

func queryProfiles(ctx context.Context, q querier, query string, args ...any) ([]UserProfile, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, translateError(err, "user")
	}
	defer rows.Close()

	result := make([]UserProfile, 0)
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, translateError(err, "user")
		}
		result = append(result, *profile)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError(err, "user")
	}
	return result, nil
}

// translateError maps pgx failures onto typed stock errors.
// Store messages are kept verbatim.
func translateError(err error, entity string) error {
	if err == nil {
		return nil
	}
	if _, ok := AsError(err); ok {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return newNotFoundError(entity, notFoundMessage(entity))
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == pgUniqueViolation {
			return NewError(ErrCodeConflict, pgErr.Message).
				WithDetail("constraint", pgErr.ConstraintName).
				WithDetail("entity", entity)
		}
		return NewError(ErrCodeStore, pgErr.Message).WithDetail("sqlstate", pgErr.Code)
	}

	return newStoreError(err)
}

func notFoundMessage(entity string) string {
	switch entity {
	case "file":
		return "File not found"
	case "category":
		return "Category not found"
	case "user":
		return "User not found"
	default:
		return entity + " not found"
	}
}

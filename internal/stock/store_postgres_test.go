package stock

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/Laisky/docstock/library/log"
)

var (
	fileColumnNames = []string{
		"id", "name", "original_name", "size", "category", "description", "file_path",
		"mime_type", "uploaded_by", "uploaded_at", "is_deleted", "deleted_at",
	}
	categoryColumnNames = []string{"id", "name", "description", "created_at", "created_by"}
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	for _, stmt := range migrationStatements {
		mock.ExpectExec(regexp.QuoteMeta(stmt)).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	}

	store, err := NewPostgresStore(context.Background(), mock, log.Logger.Named("stock_store_test"))
	require.NoError(t, err)
	return store, mock
}

func TestPostgresStore_Migrations(t *testing.T) {
	_, mock := newMockStore(t)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListFiles(t *testing.T) {
	store, mock := newMockStore(t)
	uploadedAt := time.Date(2024, 4, 2, 9, 0, 0, 0, time.UTC)
	desc := "Monthly report"

	mock.ExpectQuery(`FROM files WHERE is_deleted = false AND \(name ILIKE \$1 OR original_name ILIKE \$2 OR description ILIKE \$3\) ORDER BY uploaded_at DESC, id DESC LIMIT \$4 OFFSET \$5`).
		WithArgs("%report%", "%report%", "%report%", 10, 0).
		WillReturnRows(mock.NewRows(fileColumnNames).
			AddRow("f-1", "r.pdf", "R.pdf", int64(42), "A", &desc, "k1", nil, nil, uploadedAt, false, nil))

	files, err := store.ListFiles(context.Background(), FileQuery{Search: "report", Limit: 10})
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, "f-1", files[0].ID)
	require.Equal(t, int64(42), files[0].Size)
	require.Equal(t, desc, *files[0].Description)
	require.Nil(t, files[0].MimeType)
	require.Nil(t, files[0].DeletedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetFileNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`FROM files WHERE id = \$1 AND is_deleted = false`).
		WithArgs("f-404").
		WillReturnError(pgx.ErrNoRows)

	_, err := store.GetFile(context.Background(), "f-404", false)
	typed, ok := AsError(err)
	require.True(t, ok)
	require.Equal(t, ErrCodeNotFound, typed.Code)
	require.Equal(t, "File not found", typed.Message)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteCategoryGuardInTransaction(t *testing.T) {
	store, mock := newMockStore(t)
	svc, err := NewService(store, DefaultSettings(), nil, log.Logger.Named("stock_store_test"), nil)
	require.NoError(t, err)
	createdAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM categories WHERE id = \$1 FOR UPDATE`).
		WithArgs("c-1").
		WillReturnRows(mock.NewRows(categoryColumnNames).AddRow("c-1", "A", nil, createdAt, nil))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM files WHERE category = \$1 AND is_deleted = false`).
		WithArgs("A").
		WillReturnRows(mock.NewRows([]string{"count"}).AddRow(int64(3)))
	mock.ExpectRollback()

	_, err = svc.DeleteCategory(context.Background(), "c-1")
	typed, ok := AsError(err)
	require.True(t, ok)
	require.Equal(t, ErrCodeConflict, typed.Code)
	require.Equal(t, int64(3), typed.Details["blocking_file_count"])

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM categories WHERE id = \$1 FOR UPDATE`).
		WithArgs("c-1").
		WillReturnRows(mock.NewRows(categoryColumnNames).AddRow("c-1", "A", nil, createdAt, nil))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM files`).
		WithArgs("A").
		WillReturnRows(mock.NewRows([]string{"count"}).AddRow(int64(0)))
	mock.ExpectExec(`DELETE FROM categories WHERE id = \$1`).
		WithArgs("c-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	deleted, err := svc.DeleteCategory(context.Background(), "c-1")
	require.NoError(t, err)
	require.Equal(t, "A", deleted.Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertCategoryConflict(t *testing.T) {
	store, mock := newMockStore(t)
	svc, err := NewService(store, DefaultSettings(), nil, log.Logger.Named("stock_store_test"), nil)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO categories`).
		WithArgs(pgxmock.AnyArg(), "Safety", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{
			Code:           "23505",
			Message:        `duplicate key value violates unique constraint "categories_name_key"`,
			ConstraintName: "categories_name_key",
		})
	mock.ExpectRollback()

	_, err = svc.CreateCategory(context.Background(), CreateCategoryRequest{Name: "Safety"})
	typed, ok := AsError(err)
	require.True(t, ok)
	require.Equal(t, ErrCodeConflict, typed.Code)
	require.Equal(t, "categories_name_key", typed.Details["constraint"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SoftDeleteStampsTimestamp(t *testing.T) {
	store, mock := newMockStore(t)
	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE files SET is_deleted = true, deleted_at = $1 WHERE id = $2 RETURNING")).
		WithArgs(at, "f-1").
		WillReturnRows(mock.NewRows(fileColumnNames).
			AddRow("f-1", "a", "a", int64(1), "A", nil, "k", nil, nil, at, true, &at))
	mock.ExpectCommit()

	var updated *File
	err := store.InTx(context.Background(), func(tx Tx) error {
		var err error
		updated, err = tx.UpdateFile(context.Background(), "f-1", FilePatch{SoftDelete: true, At: at})
		return err
	})
	require.NoError(t, err)
	require.True(t, updated.IsDeleted)
	require.Equal(t, at, *updated.DeletedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTranslateError(t *testing.T) {
	err := translateError(&pgconn.PgError{Code: "42P01", Message: `relation "files" does not exist`}, "file")
	typed, ok := AsError(err)
	require.True(t, ok)
	require.Equal(t, ErrCodeStore, typed.Code)
	require.Equal(t, `relation "files" does not exist`, typed.Message)
	require.Equal(t, "42P01", typed.Details["sqlstate"])

	passthrough := NewError(ErrCodeConflict, "x")
	require.Equal(t, error(passthrough), translateError(passthrough, "file"))
}

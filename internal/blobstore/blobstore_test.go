package blobstore

import (
	"context"
	"io"
	"regexp"
	"strings"
	"testing"
	"time"

	errors "github.com/Laisky/errors/v2"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/require"
)

func TestBuildKey(t *testing.T) {
	now := time.UnixMilli(1709280000123)
	require.Equal(t, "1709280000123-abc.pdf", buildKey("Quarterly Report.PDF", now, "abc"))
	require.Equal(t, "1709280000123-abc", buildKey("README", now, "abc"))
	require.Equal(t, "1709280000123-abc.gz", buildKey("backup.tar.gz", now, "abc"))
}

func TestGenerateKeyIsUnique(t *testing.T) {
	now := time.Now()
	first := GenerateKey("a.txt", now)
	second := GenerateKey("a.txt", now)
	require.NotEqual(t, first, second)
	require.Regexp(t, regexp.MustCompile(`^\d+-[0-9a-f]{12}\.txt$`), first)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Upload(ctx, "k1.txt", strings.NewReader("hello"), 5, "text/plain")
	require.NoError(t, err)

	rc, info, err := store.Download(ctx, "k1.txt")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "hello", string(body))
	require.Equal(t, int64(5), info.Size)

	listed, err := store.List(ctx, "k")
	require.NoError(t, err)
	require.Len(t, listed, 1)

	require.NoError(t, store.Delete(ctx, "k1.txt"))
	_, _, err = store.Download(ctx, "k1.txt")
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestTranslateMinioError(t *testing.T) {
	err := translateMinioError(minio.ErrorResponse{Code: "NoSuchKey", Message: "gone"}, "k")
	require.True(t, errors.Is(err, ErrNotFound))

	err = translateMinioError(minio.ErrorResponse{Code: "AccessDenied", Message: "no"}, "k")
	require.False(t, errors.Is(err, ErrNotFound))
}

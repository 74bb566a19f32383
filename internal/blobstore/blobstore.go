// Package blobstore stores uploaded file bytes under opaque keys.
package blobstore

import (
	"context"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	errors "github.com/Laisky/errors/v2"
	gutils "github.com/Laisky/go-utils/v6"
)

// ErrNotFound is returned when no blob exists under the requested key.
var ErrNotFound = errors.New("blob not found")

// ObjectInfo describes a stored blob.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// Store is the byte-storage abstraction behind uploads, downloads and reconciliation.
type Store interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (ObjectInfo, error)
	// Download opens the blob. The caller must close the reader.
	Download(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// GenerateKey returns `<unix-millis>-<random>.<ext>` for an uploaded file.
// The extension is taken from originalName, lowercased; names without one get none.
func GenerateKey(originalName string, now time.Time) string {
	return buildKey(originalName, now, randomSuffix())
}

func buildKey(originalName string, now time.Time, random string) string {
	key := strconv.FormatInt(now.UnixMilli(), 10) + "-" + random
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(strings.TrimSpace(originalName)), "."))
	if ext != "" && !strings.ContainsAny(ext, `/\ `) {
		key += "." + ext
	}
	return key
}

// randomSuffix takes the random tail of a UUIDv7.
func randomSuffix() string {
	raw := strings.ReplaceAll(gutils.UUID7(), "-", "")
	return raw[len(raw)-12:]
}

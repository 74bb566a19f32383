package reconcile

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	errors "github.com/Laisky/errors/v2"
	"github.com/stretchr/testify/require"

	"github.com/Laisky/docstock/internal/blobstore"
	"github.com/Laisky/docstock/internal/stock"
	"github.com/Laisky/docstock/library/db/redis"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type staticFiles struct {
	files []stock.File
	err   error
	query stock.FileQuery
}

func (s *staticFiles) ListFiles(_ context.Context, q stock.FileQuery) ([]stock.File, error) {
	s.query = q
	return s.files, s.err
}

type memoryQueue struct {
	mu    sync.Mutex
	tasks []redis.OrphanBlobTask
}

func (q *memoryQueue) PopOrphanBlobTasks(_ context.Context, limit int) ([]redis.OrphanBlobTask, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if limit > len(q.tasks) {
		limit = len(q.tasks)
	}
	popped := q.tasks[:limit]
	q.tasks = q.tasks[limit:]
	return popped, nil
}

func (q *memoryQueue) AddOrphanBlobTask(_ context.Context, path, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, redis.OrphanBlobTask{Path: path, Reason: reason})
	return nil
}

type failingDeletes struct {
	*blobstore.MemoryStore
}

func (failingDeletes) Delete(context.Context, string) error {
	return errors.New("access denied")
}

func putBlob(t *testing.T, store *blobstore.MemoryStore, key string, age time.Duration) {
	t.Helper()
	_, err := store.Upload(context.Background(), key, strings.NewReader(key), int64(len(key)), "text/plain")
	require.NoError(t, err)
	store.Touch(key, testNow.Add(-age))
}

func orphanKeys(report *Report) []string {
	keys := make([]string, 0, len(report.OrphanBlobs))
	for _, orphan := range report.OrphanBlobs {
		keys = append(keys, orphan.Key)
	}
	return keys
}

func fixture(t *testing.T) (*blobstore.MemoryStore, *staticFiles) {
	t.Helper()
	blobs := blobstore.NewMemoryStore()
	putBlob(t, blobs, "1-active.pdf", 48*time.Hour)
	putBlob(t, blobs, "2-deleted.pdf", 48*time.Hour)
	putBlob(t, blobs, "3-old-orphan.pdf", 48*time.Hour)
	putBlob(t, blobs, "4-fresh-orphan.pdf", time.Minute)

	files := &staticFiles{files: []stock.File{
		{ID: "f-1", Name: "active", FilePath: "1-active.pdf"},
		{ID: "f-2", Name: "deleted", FilePath: "2-deleted.pdf", IsDeleted: true},
		{ID: "f-3", Name: "lost", FilePath: "9-lost.pdf"},
	}}
	return blobs, files
}

func TestNewValidates(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)

	_, err = New(Options{Files: &staticFiles{}, Blobs: blobstore.NewMemoryStore(), GracePeriod: -time.Second})
	require.Error(t, err)
}

func TestRunReportOnly(t *testing.T) {
	blobs, files := fixture(t)
	queue := &memoryQueue{}
	require.NoError(t, queue.AddOrphanBlobTask(context.Background(), "4-fresh-orphan.pdf", "insert failed"))

	r, err := New(Options{Files: files, Blobs: blobs, Queue: queue, GracePeriod: time.Hour, Clock: func() time.Time { return testNow }})
	require.NoError(t, err)

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	require.True(t, files.query.IncludeDeleted)
	require.Zero(t, files.query.Limit)

	require.Equal(t, 4, report.BlobCount)
	require.Equal(t, 3, report.FileCount)
	require.Equal(t, []string{"3-old-orphan.pdf", "4-fresh-orphan.pdf"}, orphanKeys(report))
	require.Zero(t, report.DeletedCount())
	require.Equal(t, []MissingBlob{{FileID: "f-3", Name: "lost", FilePath: "9-lost.pdf"}}, report.MissingBlobs)

	// a report-only pass leaves the queue alone
	require.Len(t, queue.tasks, 1)
	objects, err := blobs.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, objects, 4)
}

func TestRunDeletesOrphansPastGrace(t *testing.T) {
	blobs, files := fixture(t)
	queue := &memoryQueue{}

	r, err := New(Options{
		Files:         files,
		Blobs:         blobs,
		Queue:         queue,
		DeleteOrphans: true,
		GracePeriod:   time.Hour,
		Clock:         func() time.Time { return testNow },
	})
	require.NoError(t, err)

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.DeletedCount())
	require.True(t, report.OrphanBlobs[0].Deleted)
	require.False(t, report.OrphanBlobs[1].Deleted)

	objects, err := blobs.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, objects, 3)
	_, _, err = blobs.Download(context.Background(), "3-old-orphan.pdf")
	require.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestRunDeletesQueuedOrphansRegardlessOfAge(t *testing.T) {
	blobs, files := fixture(t)
	queue := &memoryQueue{}
	require.NoError(t, queue.AddOrphanBlobTask(context.Background(), "4-fresh-orphan.pdf", "insert failed"))
	require.NoError(t, queue.AddOrphanBlobTask(context.Background(), "gone.pdf", "purge"))

	r, err := New(Options{
		Files:         files,
		Blobs:         blobs,
		Queue:         queue,
		DeleteOrphans: true,
		GracePeriod:   24 * 365 * time.Hour,
		Clock:         func() time.Time { return testNow },
	})
	require.NoError(t, err)

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, report.QueuedTasks)
	require.Equal(t, 1, report.DeletedCount())
	require.Equal(t, "insert failed", report.OrphanBlobs[1].Reason)
	require.True(t, report.OrphanBlobs[1].Deleted)
	require.Empty(t, queue.tasks)
}

func TestRunRequeuesUndeletableBlobs(t *testing.T) {
	memory, files := fixture(t)
	queue := &memoryQueue{}
	require.NoError(t, queue.AddOrphanBlobTask(context.Background(), "4-fresh-orphan.pdf", "insert failed"))

	r, err := New(Options{
		Files:         files,
		Blobs:         failingDeletes{MemoryStore: memory},
		Queue:         queue,
		DeleteOrphans: true,
		Clock:         func() time.Time { return testNow },
	})
	require.NoError(t, err)

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Zero(t, report.DeletedCount())
	require.Equal(t, []redis.OrphanBlobTask{{Path: "4-fresh-orphan.pdf", Reason: "insert failed"}}, queue.tasks)
}

func TestRunListingFailureKeepsQueue(t *testing.T) {
	blobs, files := fixture(t)
	files.err = errors.New("connection refused")
	queue := &memoryQueue{}
	require.NoError(t, queue.AddOrphanBlobTask(context.Background(), "4-fresh-orphan.pdf", ""))

	r, err := New(Options{Files: files, Blobs: blobs, Queue: queue, DeleteOrphans: true})
	require.NoError(t, err)

	_, err = r.Run(context.Background())
	require.ErrorContains(t, err, "list files")
	require.Len(t, queue.tasks, 1)
}

func TestRunWithPrefixKeepsOutOfScopeWork(t *testing.T) {
	blobs, files := fixture(t)
	queue := &memoryQueue{}
	ctx := context.Background()
	require.NoError(t, queue.AddOrphanBlobTask(ctx, "3-old-orphan.pdf", "purge"))
	require.NoError(t, queue.AddOrphanBlobTask(ctx, "4-fresh-orphan.pdf", "insert failed"))
	require.NoError(t, queue.AddOrphanBlobTask(ctx, "4-gone.pdf", "insert failed"))

	r, err := New(Options{
		Files:         files,
		Blobs:         blobs,
		Queue:         queue,
		Prefix:        "4-",
		DeleteOrphans: true,
		GracePeriod:   time.Hour,
		Clock:         func() time.Time { return testNow },
	})
	require.NoError(t, err)

	report, err := r.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.BlobCount)
	require.Equal(t, []string{"4-fresh-orphan.pdf"}, orphanKeys(report))
	require.Equal(t, 1, report.DeletedCount())
	// rows outside the prefix are not compared against a partial listing
	require.Empty(t, report.MissingBlobs)

	require.Equal(t, []redis.OrphanBlobTask{{Path: "3-old-orphan.pdf", Reason: "purge"}}, queue.tasks)
	_, _, err = blobs.Download(ctx, "3-old-orphan.pdf")
	require.NoError(t, err)
}

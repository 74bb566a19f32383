package redis

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) (*DB, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	db := NewDB(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = db.Close() })
	return db, mr
}

func TestDecodeOrphanBlobTask(t *testing.T) {
	task := decodeOrphanBlobTask(`{"path":"1700000000000-ab12.pdf","reason":"insert failed"}`)
	require.Equal(t, "1700000000000-ab12.pdf", task.Path)
	require.Equal(t, "insert failed", task.Reason)

	bare := decodeOrphanBlobTask("1700000000000-cd34.pdf")
	require.Equal(t, "1700000000000-cd34.pdf", bare.Path)
	require.Empty(t, bare.Reason)
}

func TestOrphanBlobTaskRoundTrip(t *testing.T) {
	ctx := context.Background()
	db, _ := newTestDB(t)

	require.NoError(t, db.AddOrphanBlobTask(ctx, "1700000000000-ab12.pdf", "insert failed"))
	require.NoError(t, db.AddOrphanBlobTask(ctx, "1700000000001-cd34.png", "delete failed"))

	tasks, err := db.PopOrphanBlobTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	require.Equal(t, "1700000000000-ab12.pdf", tasks[0].Path)
	require.Equal(t, "insert failed", tasks[0].Reason)
	require.False(t, tasks[0].CreatedAt.IsZero())
	require.Equal(t, "1700000000001-cd34.png", tasks[1].Path)

	tasks, err = db.PopOrphanBlobTasks(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, tasks)
}

func TestOrphanBlobQueueKeepsEveryEntry(t *testing.T) {
	ctx := context.Background()
	db, mr := newTestDB(t)

	const total = 1000
	for i := 0; i < total; i++ {
		require.NoError(t, db.AddOrphanBlobTask(ctx, fmt.Sprintf("blob-%04d.pdf", i), "insert failed"))
	}

	queued, err := mr.List(KeyTaskOrphanBlobs)
	require.NoError(t, err)
	require.Len(t, queued, total)

	tasks, err := db.PopOrphanBlobTasks(ctx, 400)
	require.NoError(t, err)
	require.Len(t, tasks, 400)
	require.Equal(t, "blob-0000.pdf", tasks[0].Path)
	require.Equal(t, "blob-0399.pdf", tasks[399].Path)

	tasks, err = db.PopOrphanBlobTasks(ctx, total)
	require.NoError(t, err)
	require.Len(t, tasks, total-400)
}

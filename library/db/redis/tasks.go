package redis

import (
	"context"
	"encoding/json"
	"time"

	errors "github.com/Laisky/errors/v2"
	"github.com/redis/go-redis/v9"
)

// OrphanBlobTask records a blob whose metadata row was never written.
type OrphanBlobTask struct {
	Path      string    `json:"path"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// AddOrphanBlobTask queues a blob path for the next reconcile pass.
func (db *DB) AddOrphanBlobTask(ctx context.Context, path, reason string) error {
	task := &OrphanBlobTask{
		Path:      path,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	}

	payload, err := json.Marshal(task)
	if err != nil {
		return errors.Wrap(err, "marshal orphan task")
	}

	// the queue is never trimmed, every entry must reach reconcile
	if err := db.client.RPush(ctx, KeyTaskOrphanBlobs, payload).Err(); err != nil {
		return errors.Wrap(err, "rpush")
	}

	return nil
}

// PopOrphanBlobTasks drains up to limit queued tasks, oldest first.
func (db *DB) PopOrphanBlobTasks(ctx context.Context, limit int) ([]OrphanBlobTask, error) {
	tasks := make([]OrphanBlobTask, 0)
	for len(tasks) < limit {
		raw, err := db.client.LPop(ctx, KeyTaskOrphanBlobs).Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return tasks, errors.Wrap(err, "lpop")
		}

		tasks = append(tasks, decodeOrphanBlobTask(raw))
	}

	return tasks, nil
}

// decodeOrphanBlobTask tolerates entries pushed as a bare path.
func decodeOrphanBlobTask(raw string) OrphanBlobTask {
	var task OrphanBlobTask
	if err := json.Unmarshal([]byte(raw), &task); err != nil || task.Path == "" {
		return OrphanBlobTask{Path: raw}
	}
	return task
}

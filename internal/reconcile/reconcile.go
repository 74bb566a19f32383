// Package reconcile compares stored blobs with file rows and cleans up
// blobs that no row references.
package reconcile

import (
	"context"
	"sort"
	"strings"
	"time"

	errors "github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Laisky/docstock/internal/blobstore"
	"github.com/Laisky/docstock/internal/stock"
	"github.com/Laisky/docstock/library/db/redis"
	"github.com/Laisky/docstock/library/log"
)

const (
	// DefaultGracePeriod protects blobs whose row insert may still be in flight.
	DefaultGracePeriod = time.Hour
	defaultDrainLimit  = 1000
)

// FileLister reads file rows.
type FileLister interface {
	ListFiles(ctx context.Context, q stock.FileQuery) ([]stock.File, error)
}

// OrphanQueue holds blob keys that an upload or purge failed to remove.
type OrphanQueue interface {
	PopOrphanBlobTasks(ctx context.Context, limit int) ([]redis.OrphanBlobTask, error)
	AddOrphanBlobTask(ctx context.Context, path, reason string) error
}

// Options configures a Reconciler. Files and Blobs are required.
type Options struct {
	Files FileLister
	Blobs blobstore.Store
	// Queue is drained only when DeleteOrphans is set.
	Queue OrphanQueue
	// Prefix limits the pass to blob keys and file paths under it.
	Prefix string
	// DeleteOrphans removes unreferenced blobs older than GracePeriod.
	// Queued blobs are removed regardless of age.
	DeleteOrphans bool
	GracePeriod   time.Duration
	DrainLimit    int
	Logger        logSDK.Logger
	Clock         func() time.Time
}

// OrphanBlob is a stored blob no file row points at.
type OrphanBlob struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
	// Reason is set when the blob was queued by a failed cleanup.
	Reason  string `json:"reason,omitempty"`
	Deleted bool   `json:"deleted"`
}

// MissingBlob is a file row, active or soft-deleted, whose blob is gone.
type MissingBlob struct {
	FileID    string `json:"file_id"`
	Name      string `json:"name"`
	FilePath  string `json:"file_path"`
	IsDeleted bool   `json:"is_deleted"`
}

// Report is the outcome of one pass.
type Report struct {
	CheckedAt    time.Time     `json:"checked_at"`
	BlobCount    int           `json:"blob_count"`
	FileCount    int           `json:"file_count"`
	QueuedTasks  int           `json:"queued_tasks"`
	OrphanBlobs  []OrphanBlob  `json:"orphan_blobs"`
	MissingBlobs []MissingBlob `json:"missing_blobs"`
}

// DeletedCount counts orphan blobs removed during the pass.
func (r *Report) DeletedCount() (n int) {
	for _, orphan := range r.OrphanBlobs {
		if orphan.Deleted {
			n++
		}
	}
	return n
}

// Reconciler runs reconcile passes.
type Reconciler struct {
	opts Options
}

// New validates opts and fills defaults.
func New(opts Options) (*Reconciler, error) {
	if opts.Files == nil {
		return nil, errors.New("file lister is required")
	}
	if opts.Blobs == nil {
		return nil, errors.New("blob store is required")
	}
	if opts.GracePeriod < 0 {
		return nil, errors.Errorf("grace period must not be negative, got %s", opts.GracePeriod)
	}
	if opts.DrainLimit <= 0 {
		opts.DrainLimit = defaultDrainLimit
	}
	if opts.Logger == nil {
		opts.Logger = log.Logger.Named("reconcile")
	}
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Now().UTC() }
	}

	return &Reconciler{opts: opts}, nil
}

// Run lists blobs and rows concurrently and reports both kinds of drift.
func (r *Reconciler) Run(ctx context.Context) (*Report, error) {
	logger := r.opts.Logger
	now := r.opts.Clock()

	var (
		blobs []blobstore.ObjectInfo
		files []stock.File
		tasks []redis.OrphanBlobTask
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		if blobs, err = r.opts.Blobs.List(gctx, r.opts.Prefix); err != nil {
			return errors.Wrap(err, "list blobs")
		}
		return nil
	})
	g.Go(func() (err error) {
		if files, err = r.opts.Files.ListFiles(gctx, stock.FileQuery{IncludeDeleted: true}); err != nil {
			return errors.Wrap(err, "list files")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// the queue is drained after both listings succeed so a failed pass keeps it intact
	if r.opts.DeleteOrphans && r.opts.Queue != nil {
		var err error
		if tasks, err = r.opts.Queue.PopOrphanBlobTasks(ctx, r.opts.DrainLimit); err != nil {
			return nil, errors.Wrap(err, "drain orphan blob queue")
		}
	}

	report := &Report{
		CheckedAt:    now,
		BlobCount:    len(blobs),
		FileCount:    len(files),
		QueuedTasks:  len(tasks),
		OrphanBlobs:  []OrphanBlob{},
		MissingBlobs: []MissingBlob{},
	}

	referenced := make(map[string]struct{}, len(files))
	for _, f := range files {
		referenced[f.FilePath] = struct{}{}
	}
	stored := make(map[string]struct{}, len(blobs))
	for _, b := range blobs {
		stored[b.Key] = struct{}{}
	}
	reasons := make(map[string]string, len(tasks))
	for _, task := range tasks {
		reasons[task.Path] = task.Reason
	}

	for _, b := range blobs {
		if _, ok := referenced[b.Key]; ok {
			continue
		}
		orphan := OrphanBlob{Key: b.Key, Size: b.Size, LastModified: b.LastModified}
		reason, queued := reasons[b.Key]
		orphan.Reason = reason
		if r.opts.DeleteOrphans && (queued || now.Sub(b.LastModified) >= r.opts.GracePeriod) {
			orphan.Deleted = r.deleteOrphan(ctx, orphan, queued)
		}
		report.OrphanBlobs = append(report.OrphanBlobs, orphan)
	}

	r.requeueUnlisted(ctx, tasks, stored)

	for _, f := range files {
		if _, ok := stored[f.FilePath]; ok || !r.inScope(f.FilePath) {
			continue
		}
		logger.Error("file row has no blob",
			zap.String("file_id", f.ID),
			zap.String("file_path", f.FilePath),
			zap.Bool("is_deleted", f.IsDeleted))
		report.MissingBlobs = append(report.MissingBlobs, MissingBlob{
			FileID:    f.ID,
			Name:      f.Name,
			FilePath:  f.FilePath,
			IsDeleted: f.IsDeleted,
		})
	}
	sort.Slice(report.MissingBlobs, func(i, j int) bool {
		return report.MissingBlobs[i].FilePath < report.MissingBlobs[j].FilePath
	})

	logger.Info("reconcile finished",
		zap.Int("blobs", report.BlobCount),
		zap.Int("files", report.FileCount),
		zap.Int("orphan_blobs", len(report.OrphanBlobs)),
		zap.Int("deleted_blobs", report.DeletedCount()),
		zap.Int("missing_blobs", len(report.MissingBlobs)))
	return report, nil
}

func (r *Reconciler) inScope(key string) bool {
	return strings.HasPrefix(key, r.opts.Prefix)
}

// requeueUnlisted puts back tasks for blobs outside the listed prefix; they
// belong to a later pass. A task inside the prefix whose blob is not listed
// is settled, the blob is already gone.
func (r *Reconciler) requeueUnlisted(ctx context.Context, tasks []redis.OrphanBlobTask, stored map[string]struct{}) {
	for _, task := range tasks {
		if _, ok := stored[task.Path]; ok || r.inScope(task.Path) {
			continue
		}
		if err := r.opts.Queue.AddOrphanBlobTask(ctx, task.Path, task.Reason); err != nil {
			r.opts.Logger.Error("requeue orphan blob outside prefix",
				zap.Error(err), zap.String("file_path", task.Path))
		}
	}
}

// deleteOrphan removes one blob. A queued blob that cannot be removed goes
// back on the queue for the next pass.
func (r *Reconciler) deleteOrphan(ctx context.Context, orphan OrphanBlob, queued bool) bool {
	err := r.opts.Blobs.Delete(ctx, orphan.Key)
	if err == nil || errors.Is(err, blobstore.ErrNotFound) {
		r.opts.Logger.Info("orphan blob deleted", zap.String("file_path", orphan.Key))
		return true
	}

	r.opts.Logger.Error("delete orphan blob", zap.Error(err), zap.String("file_path", orphan.Key))
	if queued {
		if qErr := r.opts.Queue.AddOrphanBlobTask(ctx, orphan.Key, orphan.Reason); qErr != nil {
			r.opts.Logger.Error("requeue orphan blob", zap.Error(qErr), zap.String("file_path", orphan.Key))
		}
	}
	return false
}

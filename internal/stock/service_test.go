package stock

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Laisky/docstock/library/log"
)

const testUploader = "0190c5d2-7a11-7000-8000-0000000000aa"

type testEnv struct {
	store      *MemoryStore
	svc        *Service
	dispatcher *Dispatcher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithStore(t, NewMemoryStore(), DefaultSettings(), nil)
}

func newTestEnvWithStore(t *testing.T, store Store, settings Settings, cache StatsCache) *testEnv {
	t.Helper()

	var (
		mu  sync.Mutex
		now = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
		seq int
	)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Minute)
		return now
	}

	svc, err := NewService(store, settings, cache, log.Logger.Named("stock_test"), clock)
	require.NoError(t, err)
	svc.newID = func() string {
		mu.Lock()
		defer mu.Unlock()
		seq++
		return fmt.Sprintf("00000000-0000-7000-8000-%012d", seq)
	}

	dispatcher, err := NewDispatcher(svc, log.Logger.Named("stock_test"))
	require.NoError(t, err)

	env := &testEnv{svc: svc, dispatcher: dispatcher}
	if mem, ok := store.(*MemoryStore); ok {
		env.store = mem
	}
	return env
}

func (e *testEnv) call(t *testing.T, name string, args map[string]any) Envelope {
	t.Helper()
	return e.dispatcher.Dispatch(context.Background(), name, args)
}

func (e *testEnv) mustCall(t *testing.T, name string, args map[string]any) Envelope {
	t.Helper()
	env := e.call(t, name, args)
	if env.IsError() {
		require.FailNow(t, "unexpected error envelope", "%s: %s %s", name, env.Err.Code, env.Err.Message)
	}
	return env
}

func (e *testEnv) createCategory(t *testing.T, name string) *Category {
	t.Helper()
	env := e.mustCall(t, string(OpCreateCategory), map[string]any{"name": name})
	payload, ok := env.Data.(categoryMutationPayload)
	require.True(t, ok)
	require.True(t, payload.Success)
	return payload.Category
}

func (e *testEnv) createFile(t *testing.T, name, category string, size int64, description string) *File {
	t.Helper()
	args := map[string]any{
		"name":          name,
		"original_name": name,
		"size":          float64(size),
		"category":      category,
		"file_path":     "1709280000000-" + name,
		"uploaded_by":   testUploader,
	}
	if description != "" {
		args["description"] = description
	}
	env := e.mustCall(t, string(OpCreateFile), args)
	payload, ok := env.Data.(fileMutationPayload)
	require.True(t, ok)
	return payload.File
}

func TestDispatch_StatsAndGuardScenario(t *testing.T) {
	env := newTestEnv(t)
	catA := env.createCategory(t, "A")
	env.createCategory(t, "B")

	var inA []*File
	for i, size := range []int64{100, 200, 300} {
		inA = append(inA, env.createFile(t, fmt.Sprintf("a-%d.pdf", i), "A", size, ""))
	}
	env.createFile(t, "b.pdf", "B", 400, "")

	statsEnv := env.mustCall(t, string(OpGetFileStats), nil)
	stats, ok := statsEnv.Data.(*FileStats)
	require.True(t, ok)
	require.Equal(t, int64(4), stats.TotalFiles)
	require.Equal(t, int64(1000), stats.TotalSize)
	require.Equal(t, int64(250), stats.AverageFileSize)
	require.Equal(t, map[string]CategoryTotals{
		"A": {Count: 3, TotalSize: 600},
		"B": {Count: 1, TotalSize: 400},
	}, stats.FilesByCategory)

	blocked := env.call(t, string(OpDeleteCategory), map[string]any{"id": catA.ID})
	require.True(t, blocked.IsError())
	require.Equal(t, ErrCodeConflict, blocked.Err.Code)
	require.Equal(t, KindConflict, blocked.Kind())
	require.Contains(t, blocked.Err.Message, "3 files")
	require.Equal(t, int64(3), blocked.Err.Details["blocking_file_count"])

	for _, f := range inA {
		deleted := env.mustCall(t, string(OpDeleteFile), map[string]any{"id": f.ID})
		payload, ok := deleted.Data.(fileDeletionPayload)
		require.True(t, ok)
		require.True(t, payload.DeletedFile.IsDeleted)
		require.NotNil(t, payload.DeletedFile.DeletedAt)
	}

	removed := env.mustCall(t, string(OpDeleteCategory), map[string]any{"id": catA.ID})
	payload, ok := removed.Data.(categoryDeletionPayload)
	require.True(t, ok)
	require.Equal(t, "A", payload.DeletedCategory.Name)

	missing := env.call(t, string(OpGetCategory), map[string]any{"name": "A"})
	require.True(t, missing.IsError())
	require.Equal(t, ErrCodeNotFound, missing.Err.Code)
}

func TestDispatch_ListFilesSearchIsCaseInsensitive(t *testing.T) {
	env := newTestEnv(t)
	env.createCategory(t, "Operations")
	match := env.createFile(t, "q1.pdf", "Operations", 10, "Quarterly Report")
	env.createFile(t, "notes.txt", "Operations", 20, "meeting notes")

	listed := env.mustCall(t, string(OpListFiles), map[string]any{"search": "report"})
	payload, ok := listed.Data.(fileListPayload)
	require.True(t, ok)
	require.Equal(t, 1, payload.Count)
	require.Equal(t, match.ID, payload.Files[0].ID)
}

func TestDispatch_CategoryUsageWithoutFiles(t *testing.T) {
	env := newTestEnv(t)
	env.createCategory(t, "Safety")
	env.createCategory(t, "Training")

	usageEnv := env.mustCall(t, string(OpGetCategoryUsage), map[string]any{})
	payload, ok := usageEnv.Data.(categoryUsagePayload)
	require.True(t, ok)
	require.Len(t, payload.CategoryUsage, 2)
	for _, usage := range payload.CategoryUsage {
		require.Zero(t, usage.FileCount)
		require.Zero(t, usage.UsagePercentage)
	}
}

func TestDispatch_SoftDeleteInvariant(t *testing.T) {
	env := newTestEnv(t)
	env.createCategory(t, "Other")
	file := env.createFile(t, "doc.pdf", "Other", 5, "")
	require.False(t, file.IsDeleted)
	require.Nil(t, file.DeletedAt)

	first := env.mustCall(t, string(OpUpdateFile), map[string]any{"id": file.ID, "is_deleted": true})
	deleted := first.Data.(fileMutationPayload).File
	require.True(t, deleted.IsDeleted)
	require.NotNil(t, deleted.DeletedAt)

	again := env.mustCall(t, string(OpDeleteFile), map[string]any{"id": file.ID})
	redeleted := again.Data.(fileDeletionPayload).DeletedFile
	require.True(t, redeleted.IsDeleted)
	require.True(t, redeleted.DeletedAt.After(*deleted.DeletedAt))

	third := env.mustCall(t, string(OpUpdateFile), map[string]any{"id": file.ID, "is_deleted": true})
	require.True(t, third.Data.(fileMutationPayload).File.DeletedAt.After(*redeleted.DeletedAt))

	hidden := env.call(t, string(OpGetFile), map[string]any{"id": file.ID})
	require.True(t, hidden.IsError())
	require.Equal(t, ErrCodeNotFound, hidden.Err.Code)

	listed := env.mustCall(t, string(OpListFiles), map[string]any{"include_deleted": true})
	require.Equal(t, 1, listed.Data.(fileListPayload).Count)

	restored := env.mustCall(t, string(OpRestoreFile), map[string]any{"id": file.ID})
	active := restored.Data.(fileMutationPayload).File
	require.False(t, active.IsDeleted)
	require.Nil(t, active.DeletedAt)

	got := env.mustCall(t, string(OpGetFile), map[string]any{"id": file.ID})
	require.Equal(t, file.ID, got.Data.(*File).ID)
}

func TestDispatch_RestoreRequiresCategory(t *testing.T) {
	env := newTestEnv(t)
	category := env.createCategory(t, "Temp")
	file := env.createFile(t, "doc.pdf", "Temp", 5, "")

	env.mustCall(t, string(OpDeleteFile), map[string]any{"id": file.ID})
	env.mustCall(t, string(OpDeleteCategory), map[string]any{"id": category.ID})

	restored := env.call(t, string(OpRestoreFile), map[string]any{"id": file.ID})
	require.True(t, restored.IsError())
	require.Equal(t, ErrCodeNotFound, restored.Err.Code)
	require.Equal(t, "Temp", restored.Err.Details["category"])
}

func TestDispatch_FileCategoryMustExist(t *testing.T) {
	env := newTestEnv(t)
	env.createCategory(t, "Training")

	created := env.call(t, string(OpCreateFile), map[string]any{
		"name":          "x.pdf",
		"original_name": "x.pdf",
		"size":          1,
		"category":      "Nope",
		"file_path":     "k",
		"uploaded_by":   testUploader,
	})
	require.True(t, created.IsError())
	require.Equal(t, ErrCodeNotFound, created.Err.Code)

	file := env.createFile(t, "y.pdf", "Training", 1, "")
	moved := env.call(t, string(OpUpdateFile), map[string]any{"id": file.ID, "category": "Nope"})
	require.True(t, moved.IsError())
	require.Equal(t, ErrCodeNotFound, moved.Err.Code)

	unchanged := env.mustCall(t, string(OpGetFile), map[string]any{"id": file.ID})
	require.Equal(t, "Training", unchanged.Data.(*File).Category)
}

func TestDispatch_CategoryRenameMovesFiles(t *testing.T) {
	env := newTestEnv(t)
	category := env.createCategory(t, "Regs")
	file := env.createFile(t, "r.pdf", "Regs", 1, "")

	updated := env.mustCall(t, string(OpUpdateCategory), map[string]any{"id": category.ID, "name": "Regulations"})
	require.Equal(t, "Regulations", updated.Data.(categoryMutationPayload).Category.Name)

	got := env.mustCall(t, string(OpGetFile), map[string]any{"id": file.ID})
	require.Equal(t, "Regulations", got.Data.(*File).Category)
}

func TestDispatch_DuplicateCategoryConflicts(t *testing.T) {
	env := newTestEnv(t)
	env.createCategory(t, "Safety")

	dup := env.call(t, string(OpCreateCategory), map[string]any{"name": "Safety"})
	require.True(t, dup.IsError())
	require.Equal(t, ErrCodeConflict, dup.Err.Code)

	listed := env.mustCall(t, string(OpListCategories), nil)
	require.Equal(t, 1, listed.Data.(categoryListPayload).Count)
}

func TestDispatch_ValidationAndUnknownOperation(t *testing.T) {
	env := newTestEnv(t)

	unknown := env.call(t, "drop_everything", nil)
	require.True(t, unknown.IsError())
	require.Equal(t, ErrCodeUnknownOperation, unknown.Err.Code)
	require.Equal(t, "Unknown tool: drop_everything", unknown.Err.Message)

	invalid := env.call(t, string(OpGetFile), map[string]any{"id": "not-a-uuid"})
	require.True(t, invalid.IsError())
	require.Equal(t, KindValidation, invalid.Kind())
	require.Equal(t, "id", invalid.Err.Details["field"])
}

func TestDispatch_Users(t *testing.T) {
	env := newTestEnv(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	env.store.PutProfile(UserProfile{ID: "00000000-0000-7000-8000-0000000000b1", Username: "alice", UserType: RoleAdmin, CreatedAt: base})
	env.store.PutProfile(UserProfile{ID: "00000000-0000-7000-8000-0000000000b2", Username: "bob", UserType: RoleUser, CreatedAt: base.Add(time.Hour)})

	all := env.mustCall(t, string(OpListUsers), nil)
	users := all.Data.(userListPayload)
	require.Equal(t, 2, users.Count)
	require.Equal(t, "bob", users.Users[0].Username)

	admins := env.mustCall(t, string(OpListUsers), map[string]any{"user_type": "admin"})
	require.Equal(t, 1, admins.Data.(userListPayload).Count)

	byName := env.mustCall(t, string(OpGetUser), map[string]any{"username": "alice"})
	require.Equal(t, RoleAdmin, byName.Data.(*UserProfile).UserType)

	missing := env.call(t, string(OpGetUser), map[string]any{"username": "carol"})
	require.True(t, missing.IsError())
	require.Equal(t, ErrCodeNotFound, missing.Err.Code)
}

func TestService_SeedCategoriesIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.svc.SeedCategories(ctx, DefaultCategorySeeds)
	require.NoError(t, err)
	require.Equal(t, len(DefaultCategorySeeds), created)

	created, err = env.svc.SeedCategories(ctx, DefaultCategorySeeds)
	require.NoError(t, err)
	require.Zero(t, created)
}

func TestService_PurgeFile(t *testing.T) {
	env := newTestEnv(t)
	env.createCategory(t, "Other")
	file := env.createFile(t, "gone.pdf", "Other", 3, "")

	purged, err := env.svc.PurgeFile(context.Background(), file.ID)
	require.NoError(t, err)
	require.Equal(t, file.FilePath, purged.FilePath)

	_, err = env.svc.PurgeFile(context.Background(), file.ID)
	require.True(t, IsCode(err, ErrCodeNotFound))
}

type countingStore struct {
	*MemoryStore
	statsCalls int
}

func (s *countingStore) StatsRows(ctx context.Context, q StatsQuery) ([]FileStatRow, error) {
	s.statsCalls++
	return s.MemoryStore.StatsRows(ctx, q)
}

type fakeStatsCache struct {
	generation int64
	entries    map[string][]byte
}

func (c *fakeStatsCache) Generation(context.Context) (int64, error) { return c.generation, nil }

func (c *fakeStatsCache) Bump(context.Context) error {
	c.generation++
	return nil
}

func (c *fakeStatsCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := c.entries[key]
	return v, ok, nil
}

func (c *fakeStatsCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.entries[key] = value
	return nil
}

func TestService_FileStatsCache(t *testing.T) {
	store := &countingStore{MemoryStore: NewMemoryStore()}
	cache := &fakeStatsCache{entries: map[string][]byte{}}
	settings := DefaultSettings()
	settings.StatsCache.Enabled = true
	env := newTestEnvWithStore(t, store, settings, cache)
	ctx := context.Background()

	env.createCategory(t, "A")
	env.createFile(t, "one.pdf", "A", 10, "")
	require.Equal(t, int64(2), cache.generation)

	first, err := env.svc.FileStats(ctx, FileStatsRequest{})
	require.NoError(t, err)
	second, err := env.svc.FileStats(ctx, FileStatsRequest{})
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, store.statsCalls)

	env.createFile(t, "two.pdf", "A", 30, "")
	third, err := env.svc.FileStats(ctx, FileStatsRequest{})
	require.NoError(t, err)
	require.Equal(t, 2, store.statsCalls)
	require.Equal(t, int64(2), third.TotalFiles)
	require.Equal(t, int64(20), third.AverageFileSize)
}

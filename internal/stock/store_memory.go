package stock

import (
	"context"
	"maps"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store used for local runs without PostgreSQL.
// Transactions are serialized by one lock and rolled back by snapshot.
type MemoryStore struct {
	mu         sync.RWMutex
	files      map[string]File
	categories map[string]Category
	profiles   map[string]UserProfile
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		files:      map[string]File{},
		categories: map[string]Category{},
		profiles:   map[string]UserProfile{},
	}
}

// PutProfile inserts or replaces a user profile. Profiles are read-only through Store.
func (m *MemoryStore) PutProfile(p UserProfile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.ID] = p
}

// ListFiles implements Store.
func (m *MemoryStore) ListFiles(_ context.Context, q FileQuery) ([]File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := make([]File, 0)
	for _, f := range m.files {
		if q.Matches(f) {
			matched = append(matched, f)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].UploadedAt.Equal(matched[j].UploadedAt) {
			return matched[i].UploadedAt.After(matched[j].UploadedAt)
		}
		return matched[i].ID > matched[j].ID
	})
	return paginate(matched, q.Limit, q.Offset), nil
}

// GetFile implements Store.
func (m *MemoryStore) GetFile(_ context.Context, id string, includeDeleted bool) (*File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	f, ok := m.files[id]
	if !ok || (!includeDeleted && f.IsDeleted) {
		return nil, newNotFoundError("file", notFoundMessage("file"))
	}
	return &f, nil
}

// ListCategories implements Store.
func (m *MemoryStore) ListCategories(_ context.Context, q CategoryQuery) ([]Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return paginate(m.sortedCategories(), q.Limit, q.Offset), nil
}

// FindCategories implements Store.
func (m *MemoryStore) FindCategories(_ context.Context, l CategoryLookup) ([]Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := make([]Category, 0)
	for _, c := range m.sortedCategories() {
		if (l.ID != "" && c.ID == l.ID) || (l.ID == "" && c.Name == l.Name) {
			matched = append(matched, c)
		}
	}
	return paginate(matched, lookupLimit, 0), nil
}

// ListProfiles implements Store.
func (m *MemoryStore) ListProfiles(_ context.Context, q ProfileQuery) ([]UserProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := make([]UserProfile, 0)
	for _, p := range m.profiles {
		if q.UserType == "" || p.UserType == q.UserType {
			matched = append(matched, p)
		}
	}
	sortProfiles(matched)
	return paginate(matched, q.Limit, q.Offset), nil
}

// FindProfiles implements Store.
func (m *MemoryStore) FindProfiles(_ context.Context, l ProfileLookup) ([]UserProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := make([]UserProfile, 0)
	for _, p := range m.profiles {
		if (l.ID != "" && p.ID == l.ID) || (l.ID == "" && p.Username == l.Username) {
			matched = append(matched, p)
		}
	}
	sortProfiles(matched)
	return paginate(matched, lookupLimit, 0), nil
}

// StatsRows implements Store.
func (m *MemoryStore) StatsRows(_ context.Context, q StatsQuery) ([]FileStatRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	filter := FileQuery{Category: q.Category, Range: q.Range}
	rows := make([]FileStatRow, 0)
	for _, f := range m.files {
		if filter.Matches(f) {
			rows = append(rows, FileStatRow{Category: f.Category, Size: f.Size, UploadedAt: f.UploadedAt})
		}
	}
	return rows, nil
}

// ActiveFileCategories implements Store.
func (m *MemoryStore) ActiveFileCategories(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.files))
	for _, f := range m.files {
		if !f.IsDeleted {
			names = append(names, f.Category)
		}
	}
	return names, nil
}

// InTx implements Store.
func (m *MemoryStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	files := maps.Clone(m.files)
	categories := maps.Clone(m.categories)
	if err := fn(&memoryTx{store: m}); err != nil {
		m.files = files
		m.categories = categories
		return err
	}
	return nil
}

func (m *MemoryStore) sortedCategories() []Category {
	all := make([]Category, 0, len(m.categories))
	for _, c := range m.categories {
		all = append(all, c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all
}

func sortProfiles(profiles []UserProfile) {
	sort.Slice(profiles, func(i, j int) bool {
		if !profiles[i].CreatedAt.Equal(profiles[j].CreatedAt) {
			return profiles[i].CreatedAt.After(profiles[j].CreatedAt)
		}
		return profiles[i].ID > profiles[j].ID
	})
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// memoryTx runs with the store lock held.
type memoryTx struct {
	store *MemoryStore
}

func (t *memoryTx) findCategory(l CategoryLookup) (Category, bool) {
	for _, c := range t.store.categories {
		if (l.ID != "" && c.ID == l.ID) || (l.ID == "" && c.Name == l.Name) {
			return c, true
		}
	}
	return Category{}, false
}

// LockCategory implements Tx.
func (t *memoryTx) LockCategory(_ context.Context, l CategoryLookup, _ bool) (*Category, error) {
	c, ok := t.findCategory(l)
	if !ok {
		return nil, newNotFoundError("category", notFoundMessage("category"))
	}
	return &c, nil
}

// CountActiveFiles implements Tx.
func (t *memoryTx) CountActiveFiles(_ context.Context, category string) (int64, error) {
	var count int64
	for _, f := range t.store.files {
		if !f.IsDeleted && f.Category == category {
			count++
		}
	}
	return count, nil
}

// LockFile implements Tx.
func (t *memoryTx) LockFile(_ context.Context, id string) (*File, error) {
	f, ok := t.store.files[id]
	if !ok {
		return nil, newNotFoundError("file", notFoundMessage("file"))
	}
	return &f, nil
}

// InsertFile implements Tx.
func (t *memoryTx) InsertFile(_ context.Context, f File) (*File, error) {
	if _, ok := t.store.files[f.ID]; ok {
		return nil, NewError(ErrCodeConflict, `duplicate key value violates unique constraint "files_pkey"`).
			WithDetail("constraint", "files_pkey")
	}
	f.IsDeleted = false
	f.DeletedAt = nil
	t.store.files[f.ID] = f
	return &f, nil
}

// UpdateFile implements Tx.
func (t *memoryTx) UpdateFile(_ context.Context, id string, patch FilePatch) (*File, error) {
	if patch.empty() {
		return nil, newValidationError("", "required", "nothing to update")
	}
	f, ok := t.store.files[id]
	if !ok {
		return nil, newNotFoundError("file", notFoundMessage("file"))
	}
	if patch.Name != nil {
		f.Name = *patch.Name
	}
	if patch.Category != nil {
		f.Category = *patch.Category
	}
	if patch.Description != nil {
		desc := *patch.Description
		f.Description = &desc
	}
	switch {
	case patch.SoftDelete:
		at := patch.At
		f.IsDeleted = true
		f.DeletedAt = &at
	case patch.Restore:
		f.IsDeleted = false
		f.DeletedAt = nil
	}
	t.store.files[id] = f
	return &f, nil
}

// DeleteFile implements Tx.
func (t *memoryTx) DeleteFile(_ context.Context, id string) error {
	if _, ok := t.store.files[id]; !ok {
		return newNotFoundError("file", notFoundMessage("file"))
	}
	delete(t.store.files, id)
	return nil
}

// InsertCategory implements Tx.
func (t *memoryTx) InsertCategory(_ context.Context, c Category) (*Category, error) {
	if _, ok := t.findCategory(CategoryLookup{Name: c.Name}); ok {
		return nil, NewError(ErrCodeConflict, `duplicate key value violates unique constraint "categories_name_key"`).
			WithDetail("constraint", "categories_name_key").
			WithDetail("entity", "category")
	}
	t.store.categories[c.ID] = c
	return &c, nil
}

// UpdateCategory implements Tx.
func (t *memoryTx) UpdateCategory(_ context.Context, id string, patch CategoryPatch) (*Category, error) {
	c, ok := t.store.categories[id]
	if !ok {
		return nil, newNotFoundError("category", notFoundMessage("category"))
	}
	if patch.Name != nil && *patch.Name != c.Name {
		if _, taken := t.findCategory(CategoryLookup{Name: *patch.Name}); taken {
			return nil, NewError(ErrCodeConflict, `duplicate key value violates unique constraint "categories_name_key"`).
				WithDetail("constraint", "categories_name_key").
				WithDetail("entity", "category")
		}
		c.Name = *patch.Name
	}
	if patch.Description != nil {
		desc := *patch.Description
		c.Description = &desc
	}
	t.store.categories[id] = c
	return &c, nil
}

// RenameFileCategory implements Tx.
func (t *memoryTx) RenameFileCategory(_ context.Context, from, to string) (int64, error) {
	var moved int64
	for id, f := range t.store.files {
		if f.Category == from {
			f.Category = to
			t.store.files[id] = f
			moved++
		}
	}
	return moved, nil
}

// DeleteCategory implements Tx.
func (t *memoryTx) DeleteCategory(_ context.Context, id string) error {
	if _, ok := t.store.categories[id]; !ok {
		return newNotFoundError("category", notFoundMessage("category"))
	}
	delete(t.store.categories, id)
	return nil
}

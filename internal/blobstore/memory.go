package blobstore

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	errors "github.com/Laisky/errors/v2"
)

type memoryObject struct {
	data []byte
	info ObjectInfo
}

// MemoryStore keeps blobs in process memory. Used for local runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	now     func() time.Time
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: map[string]memoryObject{},
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Upload implements Store.
func (m *MemoryStore) Upload(_ context.Context, key string, r io.Reader, _ int64, contentType string) (ObjectInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return ObjectInfo{}, errors.Wrap(err, "read upload")
	}

	info := ObjectInfo{Key: key, Size: int64(len(data)), ContentType: contentType, LastModified: m.now()}
	m.mu.Lock()
	m.objects[key] = memoryObject{data: data, info: info}
	m.mu.Unlock()
	return info, nil
}

// Download implements Store.
func (m *MemoryStore) Download(_ context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	m.mu.RLock()
	obj, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ObjectInfo{}, errors.Wrapf(ErrNotFound, "key %q", key)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), obj.info, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

// List implements Store.
func (m *MemoryStore) List(_ context.Context, prefix string) ([]ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	objects := make([]ObjectInfo, 0, len(m.objects))
	for key, obj := range m.objects {
		if strings.HasPrefix(key, prefix) {
			objects = append(objects, obj.info)
		}
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

// Touch overrides the modification time of a stored blob.
func (m *MemoryStore) Touch(key string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if obj, ok := m.objects[key]; ok {
		obj.info.LastModified = at
		m.objects[key] = obj
	}
}

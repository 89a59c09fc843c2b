package storage

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"contractapi/internal/apperr"
)

type memoryObject struct {
	data []byte
	info ObjectInfo
}

// MemoryStorage keeps objects in process. It backs local development when no
// MinIO endpoint is configured, and tests.
type MemoryStorage struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	now     func() time.Time
}

func NewMemory() *MemoryStorage {
	return &MemoryStorage{objects: map[string]memoryObject{}, now: time.Now}
}

var _ Storage = (*MemoryStorage)(nil)

func (m *MemoryStorage) Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("read object body: %w", err)
	}
	sum := md5.Sum(data)
	info := ObjectInfo{
		Key:          key,
		Size:         int64(len(data)),
		ETag:         hex.EncodeToString(sum[:]),
		ContentType:  opt.ContentType,
		LastModified: m.now(),
		Metadata:     opt.Metadata,
	}

	m.mu.Lock()
	m.objects[key] = memoryObject{data: data, info: info}
	m.mu.Unlock()
	return info, nil
}

func (m *MemoryStorage) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	m.mu.RLock()
	obj, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ObjectInfo{}, apperr.NotFound("object", key)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), obj.info, nil
}

func (m *MemoryStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

// PresignGet returns a memory:// URL; it is only meaningful to tests.
func (m *MemoryStorage) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	m.mu.RLock()
	_, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return "", apperr.NotFound("object", key)
	}
	u := url.URL{Scheme: "memory", Path: "/" + key}
	q := u.Query()
	q.Set("expires", m.now().Add(expiry).UTC().Format(time.RFC3339))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Len reports the number of stored objects.
func (m *MemoryStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

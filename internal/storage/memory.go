package storage

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

// MemoryStore keeps images in memory. It is useful for tests and for a
// throwaway server; nothing is served back over HTTP.
// This implementation is safe for concurrent use.
type MemoryStore struct {
	prefix  string
	objects map[string][]byte
	mu      sync.RWMutex
	seq     int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(prefix string) *MemoryStore {
	return &MemoryStore{
		prefix:  prefix,
		objects: make(map[string][]byte),
	}
}

// Put stores the image under a sequential key.
func (m *MemoryStore) Put(_ context.Context, name, contentType string, r io.Reader) (string, error) {
	ext, ok := ExtensionFor(contentType)
	if !ok {
		return "", fmt.Errorf("unsupported image type %q", contentType)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read image %s: %w", name, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	key := "img-" + strconv.Itoa(m.seq) + ext
	m.objects[key] = data
	return joinURL(m.prefix, key), nil
}

// Get returns the bytes stored at url.
func (m *MemoryStore) Get(url string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key := url[strings.LastIndex(url, "/")+1:]
	data, ok := m.objects[key]
	return data, ok
}

// Len returns the number of stored images.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

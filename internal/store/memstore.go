package store

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/iammorganparry/clive/apps/sessions/internal/models"
)

// MemStore keeps records in memory. It is used by tests and by the "memory" backend.
type MemStore struct {
	mu      sync.Mutex
	records map[string]models.Attributes
	open    int
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{records: make(map[string]models.Attributes)}
}

// OpenHandles returns the number of handles not yet closed.
func (s *MemStore) OpenHandles() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Put replaces a record wholesale. It is a seeding helper and bypasses handles.
func (s *MemStore) Put(path string, attrs models.Attributes) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make(models.Attributes, len(attrs))
	for k, v := range attrs {
		cp[k] = v
	}
	s.records[path] = cp
}

// Record returns a copy of the record at path, or nil.
func (s *MemStore) Record(path string) models.Attributes {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[path]
	if !ok {
		return nil
	}
	cp := make(models.Attributes, len(rec))
	for k, v := range rec {
		cp[k] = v
	}
	return cp
}

func (s *MemStore) Enumerate(root string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := root + PathSeparator
	var keys []string
	for p := range s.records {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		key := p[len(prefix):]
		if strings.Contains(key, PathSeparator) {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *MemStore) Open(path string, writable bool) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[path]; !ok {
		return nil, nil
	}
	s.open++
	return &memHandle{store: s, path: path, writable: writable}, nil
}

func (s *MemStore) Create(path string) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[path]; !ok {
		s.records[path] = make(models.Attributes)
	}
	s.open++
	return &memHandle{store: s, path: path, writable: true}, nil
}

func (s *MemStore) Delete(path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[path]; !ok {
		return false, nil
	}
	delete(s.records, path)
	return true, nil
}

// Rename moves a record under the store lock, so no reader sees both or neither.
func (s *MemStore) Rename(oldPath, newPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[oldPath]
	if !ok {
		return fmt.Errorf("rename %s: %w", oldPath, models.ErrStaleRecord)
	}
	if _, exists := s.records[newPath]; exists {
		return fmt.Errorf("rename to %s: %w", newPath, ErrExists)
	}
	s.records[newPath] = rec
	delete(s.records, oldPath)
	return nil
}

func (s *MemStore) Close() error { return nil }

type memHandle struct {
	store    *MemStore
	path     string
	writable bool
	closed   bool
}

func (h *memHandle) Path() string { return h.path }

func (h *memHandle) Get(name string) (models.Value, bool, error) {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	if h.closed {
		return models.Value{}, false, ErrClosed
	}
	v, ok := h.store.records[h.path][name]
	return v, ok, nil
}

func (h *memHandle) Set(name string, v models.Value) error {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	if !h.writable {
		return ErrReadOnly
	}
	rec, ok := h.store.records[h.path]
	if !ok {
		return fmt.Errorf("set %s on %s: %w", name, h.path, models.ErrStaleRecord)
	}
	rec[name] = v
	return nil
}

func (h *memHandle) Names() ([]string, error) {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}
	rec := h.store.records[h.path]
	names := make([]string, 0, len(rec))
	for n := range rec {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (h *memHandle) Close() error {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	if !h.closed {
		h.closed = true
		h.store.open--
	}
	return nil
}

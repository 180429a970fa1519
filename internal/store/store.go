// Package store is the record store adapter: a flat namespace of records, each holding
// named typed values. It has no knowledge of folders or templates.
package store

import (
	"errors"
	"strings"

	"github.com/iammorganparry/clive/apps/sessions/internal/models"
)

// PathSeparator joins a namespace root and a record key into a record path.
const PathSeparator = `\`

var (
	ErrReadOnly = errors.New("record handle is read-only")
	ErrClosed   = errors.New("record handle is closed")
	ErrExists   = errors.New("record already exists")
)

// Handle is an open record. Every handle must be closed, including on error paths.
type Handle interface {
	Path() string
	Get(name string) (models.Value, bool, error)
	Set(name string, v models.Value) error
	// Names returns the record's value names in sorted order.
	Names() ([]string, error)
	Close() error
}

// Store is the flat record store.
type Store interface {
	// Enumerate returns the sorted keys of the records directly under root.
	Enumerate(root string) ([]string, error)
	// Open returns (nil, nil) when no record exists at path.
	Open(path string, writable bool) (Handle, error)
	// Create opens the record at path for writing, creating it if needed.
	Create(path string) (Handle, error)
	Delete(path string) (bool, error)
	Close() error
}

// Renamer is implemented by stores that can move a record and its values atomically.
type Renamer interface {
	Rename(oldPath, newPath string) error
}

// Join builds a record path from a root and a key.
func Join(root, key string) string {
	if root == "" {
		return key
	}
	return root + PathSeparator + key
}

// Split returns the parent path and the last key of a record path.
func Split(path string) (parent, key string) {
	i := strings.LastIndex(path, PathSeparator)
	if i < 0 {
		return "", path
	}
	return path[:i], path[i+len(PathSeparator):]
}

// ReadAll loads every value of an open record.
func ReadAll(h Handle) (models.Attributes, error) {
	names, err := h.Names()
	if err != nil {
		return nil, err
	}
	attrs := make(models.Attributes, len(names))
	for _, n := range names {
		v, ok, err := h.Get(n)
		if err != nil {
			return nil, err
		}
		if ok {
			attrs[n] = v
		}
	}
	return attrs, nil
}

// Exists reports whether a record exists at path, releasing the handle it opened.
func Exists(s Store, path string) (bool, error) {
	h, err := s.Open(path, false)
	if err != nil {
		return false, err
	}
	if h == nil {
		return false, nil
	}
	return true, h.Close()
}

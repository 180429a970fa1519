// Package export writes selected session records to portable files.
package export

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/iammorganparry/clive/apps/sessions/internal/models"
	"github.com/iammorganparry/clive/apps/sessions/internal/store"
)

// Exporter serializes session records. Export returns the number of records
// written; records that no longer exist are skipped and not counted.
type Exporter interface {
	FileTypeDescription() string
	FileTypeExtension() string
	Export(w io.Writer, sessions []*models.Session) (int, error)
}

// Source reads the records being exported.
type Source struct {
	Store store.Store
	Root  string
}

// record loads one session record. A vanished record yields ok=false.
func (src Source) record(key string) (names []string, attrs models.Attributes, ok bool, err error) {
	h, err := src.Store.Open(store.Join(src.Root, key), false)
	if err != nil {
		return nil, nil, false, fmt.Errorf("open %s: %w", key, err)
	}
	if h == nil {
		return nil, nil, false, nil
	}
	defer h.Close()

	attrs, err = store.ReadAll(h)
	if err != nil {
		return nil, nil, false, fmt.Errorf("read %s: %w", key, err)
	}
	names = make([]string, 0, len(attrs))
	for n := range attrs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, attrs, true, nil
}

// WriteFile exports sessions to path. No file is created for an empty list.
func WriteFile(e Exporter, path string, sessions []*models.Session) (int, error) {
	if len(sessions) == 0 {
		return 0, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create export file: %w", err)
	}
	n, err := e.Export(f, sessions)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close export file: %w", cerr)
	}
	return n, err
}

// ForFormat returns the exporter registered for a format name. An empty name
// selects the registry format.
func ForFormat(format string, src Source, hive string) (Exporter, error) {
	switch format {
	case "", "reg":
		return NewRegExporter(src, hive), nil
	case "yaml", "yml":
		return NewYAMLExporter(src), nil
	default:
		return nil, fmt.Errorf("unknown export format %q", format)
	}
}

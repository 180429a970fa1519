package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/iammorganparry/clive/apps/sessions/internal/models"
)

// BadgerConfig holds configuration for a BadgerDB-backed store.
type BadgerConfig struct {
	// Path is the directory for BadgerDB files. Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	InMemory bool

	SyncWrites bool

	// Logger receives BadgerDB's internal logging. If nil, it is discarded.
	Logger *zap.Logger

	// GCInterval is how often to run value log garbage collection. 0 disables it.
	GCInterval time.Duration

	GCDiscardRatio float64
}

// DefaultBadgerConfig returns production defaults for a store at path.
func DefaultBadgerConfig(path string) BadgerConfig {
	return BadgerConfig{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryBadgerConfig returns a configuration for tests.
func InMemoryBadgerConfig() BadgerConfig {
	return BadgerConfig{InMemory: true}
}

// badgerLogger adapts zap to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *zap.SugaredLogger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Errorf(format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warnf(format, args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Infof(format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debugf(format, args...)
}

const (
	recordPrefix = "r/"
	valuePrefix  = "v/"
)

func recordKey(path string) []byte { return []byte(recordPrefix + path) }

func valueKey(path, name string) []byte { return []byte(valuePrefix + path + "\x00" + name) }

func valuesPrefix(path string) []byte { return []byte(valuePrefix + path + "\x00") }

func encodeValue(v models.Value) []byte {
	if v.IsDWord() {
		buf := make([]byte, 5)
		buf[0] = byte(models.KindDWord)
		binary.BigEndian.PutUint32(buf[1:], v.DWord)
		return buf
	}
	return append([]byte{byte(models.KindString)}, v.Str...)
}

func decodeValue(b []byte) (models.Value, error) {
	if len(b) == 0 {
		return models.Value{}, errors.New("empty value")
	}
	switch models.ValueKind(b[0]) {
	case models.KindDWord:
		if len(b) != 5 {
			return models.Value{}, fmt.Errorf("dword value has %d bytes", len(b)-1)
		}
		return models.DWordValue(binary.BigEndian.Uint32(b[1:])), nil
	case models.KindString:
		return models.StringValue(string(b[1:])), nil
	default:
		return models.Value{}, fmt.Errorf("unknown value kind %d", b[0])
	}
}

// BadgerStore keeps each record as a marker key plus one key per value.
type BadgerStore struct {
	db     *badger.DB
	logger *zap.Logger

	stopGC chan struct{}
	gcDone chan struct{}
	once   sync.Once
}

// OpenBadger opens a BadgerDB store, creating the directory if needed.
func OpenBadger(cfg BadgerConfig) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)

	logger := cfg.Logger
	if logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: logger.Named("badger").Sugar()})
	} else {
		logger = zap.NewNop()
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	s := &BadgerStore{db: db, logger: logger}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.stopGC = make(chan struct{})
		s.gcDone = make(chan struct{})
		go s.runGC(cfg.GCInterval, cfg.GCDiscardRatio)
	}
	return s, nil
}

func (s *BadgerStore) runGC(interval time.Duration, ratio float64) {
	defer close(s.gcDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopGC:
			return
		case <-ticker.C:
			// ErrNoRewrite means no GC was needed.
			if err := s.db.RunValueLogGC(ratio); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				s.logger.Warn("badger value log GC error", zap.Error(err))
			}
		}
	}
}

func (s *BadgerStore) Enumerate(root string) ([]string, error) {
	prefix := recordKey(root + PathSeparator)
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key()[len(prefix):])
			if strings.Contains(key, PathSeparator) {
				continue
			}
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, unavailable("enumerate records", err)
	}
	return keys, nil
}

func hasRecord(txn *badger.Txn, path string) (bool, error) {
	_, err := txn.Get(recordKey(path))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// valueKeys collects the value keys of a record. The iterator is closed before
// the caller writes in the same transaction.
func valueKeys(txn *badger.Txn, path string) ([][]byte, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = valuesPrefix(path)
	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Rewind(); it.Valid(); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys, nil
}

func (s *BadgerStore) Open(path string, writable bool) (Handle, error) {
	var ok bool
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		ok, err = hasRecord(txn, path)
		return err
	})
	if err != nil {
		return nil, unavailable("open record", err)
	}
	if !ok {
		return nil, nil
	}
	return &badgerHandle{store: s, path: path, writable: writable}, nil
}

func (s *BadgerStore) Create(path string) (Handle, error) {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(path), nil)
	})
	if err != nil {
		return nil, unavailable("create record", err)
	}
	return &badgerHandle{store: s, path: path, writable: true}, nil
}

func (s *BadgerStore) Delete(path string) (bool, error) {
	var deleted bool
	err := s.db.Update(func(txn *badger.Txn) error {
		ok, err := hasRecord(txn, path)
		if err != nil || !ok {
			return err
		}
		keys, err := valueKeys(txn, path)
		if err != nil {
			return err
		}
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		deleted = true
		return txn.Delete(recordKey(path))
	})
	if err != nil {
		return false, unavailable("delete record", err)
	}
	return deleted, nil
}

// Rename moves a record and its values in one read-write transaction.
func (s *BadgerStore) Rename(oldPath, newPath string) error {
	var domainErr error
	err := s.db.Update(func(txn *badger.Txn) error {
		ok, err := hasRecord(txn, oldPath)
		if err != nil {
			return err
		}
		if !ok {
			domainErr = fmt.Errorf("rename %s: %w", oldPath, models.ErrStaleRecord)
			return nil
		}
		taken, err := hasRecord(txn, newPath)
		if err != nil {
			return err
		}
		if taken {
			domainErr = fmt.Errorf("rename to %s: %w", newPath, ErrExists)
			return nil
		}

		keys, err := valueKeys(txn, oldPath)
		if err != nil {
			return err
		}
		oldPrefix := len(valuesPrefix(oldPath))
		for _, k := range keys {
			item, err := txn.Get(k)
			if err != nil {
				return err
			}
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := txn.Set(valueKey(newPath, string(k[oldPrefix:])), val); err != nil {
				return err
			}
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		if err := txn.Delete(recordKey(oldPath)); err != nil {
			return err
		}
		return txn.Set(recordKey(newPath), nil)
	})
	if err != nil {
		return unavailable("rename record", err)
	}
	return domainErr
}

func (s *BadgerStore) Close() error {
	s.once.Do(func() {
		if s.stopGC != nil {
			close(s.stopGC)
			<-s.gcDone
		}
	})
	return s.db.Close()
}

type badgerHandle struct {
	store    *BadgerStore
	path     string
	writable bool
	closed   bool
}

func (h *badgerHandle) Path() string { return h.path }

func (h *badgerHandle) Get(name string) (models.Value, bool, error) {
	if h.closed {
		return models.Value{}, false, ErrClosed
	}
	var (
		v     models.Value
		found bool
	)
	err := h.store.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(valueKey(h.path, name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(b []byte) error {
			v, err = decodeValue(b)
			found = err == nil
			return err
		})
	})
	if err != nil {
		return models.Value{}, false, unavailable("get value", err)
	}
	return v, found, nil
}

func (h *badgerHandle) Set(name string, v models.Value) error {
	if h.closed {
		return ErrClosed
	}
	if !h.writable {
		return ErrReadOnly
	}
	var stale bool
	err := h.store.db.Update(func(txn *badger.Txn) error {
		ok, err := hasRecord(txn, h.path)
		if err != nil {
			return err
		}
		if !ok {
			stale = true
			return nil
		}
		return txn.Set(valueKey(h.path, name), encodeValue(v))
	})
	if err != nil {
		return unavailable("set value", err)
	}
	if stale {
		return fmt.Errorf("set %s on %s: %w", name, h.path, models.ErrStaleRecord)
	}
	return nil
}

func (h *badgerHandle) Names() ([]string, error) {
	if h.closed {
		return nil, ErrClosed
	}
	var names []string
	err := h.store.db.View(func(txn *badger.Txn) error {
		keys, err := valueKeys(txn, h.path)
		if err != nil {
			return err
		}
		n := len(valuesPrefix(h.path))
		for _, k := range keys {
			names = append(names, string(k[n:]))
		}
		return nil
	})
	if err != nil {
		return nil, unavailable("list values", err)
	}
	return names, nil
}

func (h *badgerHandle) Close() error {
	h.closed = true
	return nil
}

// Package sessions persists session records and keeps the cached session list
// and folder tree in step with the store.
package sessions

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/iammorganparry/clive/apps/sessions/internal/models"
	"github.com/iammorganparry/clive/apps/sessions/internal/store"
)

// StorageOptions locate sessions inside the record store.
type StorageOptions struct {
	// Root is the store path the session records live under.
	Root string
	// Separator is the folder path separator. It is escaped in session keys.
	Separator string
	// DefaultSessionName is the display name of the template session.
	DefaultSessionName string
}

// Storage reads and writes session records. Every handle it opens is closed
// before the method returns.
type Storage struct {
	store      store.Store
	codec      models.KeyCodec
	root       string
	defaultKey string
	defaultDsp string
	logger     *zap.Logger
}

func NewStorage(s store.Store, opts StorageOptions, logger *zap.Logger) *Storage {
	if logger == nil {
		logger = zap.NewNop()
	}
	codec := models.KeyCodec{Separator: opts.Separator}
	return &Storage{
		store:      s,
		codec:      codec,
		root:       opts.Root,
		defaultKey: codec.Encode(opts.DefaultSessionName),
		defaultDsp: opts.DefaultSessionName,
		logger:     logger,
	}
}

// Codec returns the key codec used for session names.
func (st *Storage) Codec() models.KeyCodec { return st.codec }

// DefaultKey returns the record key of the template session.
func (st *Storage) DefaultKey() string { return st.defaultKey }

// Root returns the store path of the session namespace.
func (st *Storage) Root() string { return st.root }

func (st *Storage) path(key string) string {
	return store.Join(st.root, key)
}

// IsDefaultSessionName reports whether name is the template session's key or display name.
func (st *Storage) IsDefaultSessionName(name string) bool {
	return name == st.defaultKey || strings.EqualFold(name, st.defaultDsp)
}

// GetSessionList enumerates every session record. Records without any value
// are skipped.
func (st *Storage) GetSessionList() ([]*models.Session, error) {
	keys, err := st.store.Enumerate(st.root)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	list := make([]*models.Session, 0, len(keys))
	for _, key := range keys {
		attrs, err := st.read(key)
		if err != nil {
			return nil, fmt.Errorf("read session %s: %w", key, err)
		}
		if len(attrs) == 0 {
			continue
		}
		list = append(list, st.sessionFrom(key, attrs))
	}
	return list, nil
}

// read loads a record's values. A missing record yields (nil, nil).
func (st *Storage) read(key string) (models.Attributes, error) {
	h, err := st.store.Open(st.path(key), false)
	if err != nil || h == nil {
		return nil, err
	}
	defer h.Close()
	return store.ReadAll(h)
}

func (st *Storage) sessionFrom(key string, attrs models.Attributes) *models.Session {
	str := func(name string) string {
		if v, ok := attrs[name]; ok && v.IsString() {
			return v.Str
		}
		return ""
	}
	s := models.NewSession(st.codec, key, str(models.AttrFolder))
	s.Hostname = str(models.AttrHostname)
	s.Username = str(models.AttrUsername)
	s.Protocol = str(models.AttrProtocol)
	s.PortForwards = str(models.AttrPortForwardings)
	s.RemoteCommand = str(models.AttrRemoteCommand)
	if v, ok := attrs[models.AttrPortNumber]; ok && v.IsDWord() {
		s.PortNumber = int(v.Int())
	}
	return s
}

// GetSessionAttributes returns the sorted value names of a session record.
func (st *Storage) GetSessionAttributes(s *models.Session) ([]string, error) {
	h, err := st.store.Open(st.path(s.Name), false)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, fmt.Errorf("session %s: %w", s.Name, models.ErrStaleRecord)
	}
	defer h.Close()
	return h.Names()
}

// ReadAttributes returns every value of a session record.
func (st *Storage) ReadAttributes(s *models.Session) (models.Attributes, error) {
	attrs, err := st.read(s.Name)
	if err != nil {
		return nil, err
	}
	if attrs == nil {
		return nil, fmt.Errorf("session %s: %w", s.Name, models.ErrStaleRecord)
	}
	return attrs, nil
}

// SaveFolder writes the session's folder path. A record that no longer exists
// is left alone.
func (st *Storage) SaveFolder(s *models.Session) error {
	h, err := st.store.Open(st.path(s.Name), true)
	if err != nil {
		return fmt.Errorf("save folder for %s: %w", s.Name, err)
	}
	if h == nil {
		st.logger.Debug("save folder skipped, record gone", zap.String("session", s.Name))
		return nil
	}
	defer h.Close()
	if err := h.Set(models.AttrFolder, models.StringValue(s.FolderPath)); err != nil {
		return fmt.Errorf("save folder for %s: %w", s.Name, err)
	}
	return nil
}

func sortedNames(attrs models.Attributes) []string {
	names := make([]string, 0, len(attrs))
	for n := range attrs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// templateAttrs reads the template record, mapping its absence to ErrTemplateMissing.
func (st *Storage) templateAttrs(tmpl *models.Session) (models.Attributes, error) {
	if tmpl == nil {
		return nil, fmt.Errorf("no template given: %w", models.ErrTemplateMissing)
	}
	attrs, err := st.read(tmpl.Name)
	if err != nil {
		return nil, fmt.Errorf("read template %s: %w", tmpl.Name, err)
	}
	if attrs == nil {
		return nil, fmt.Errorf("template %s: %w", tmpl.Name, models.ErrTemplateMissing)
	}
	return attrs, nil
}

// CreateNewSession writes a new record seeded from the template. Hostname and
// folder are always written; the username is blanked unless requested.
func (st *Storage) CreateNewSession(req models.NewSessionRequest) (*models.Session, error) {
	if err := models.ValidateSessionName(req.SessionName, st.defaultDsp); err != nil {
		return nil, err
	}
	attrs, err := st.templateAttrs(req.Template)
	if err != nil {
		return nil, err
	}

	key := st.codec.Encode(req.SessionName)
	exists, err := store.Exists(st.store, st.path(key))
	if err != nil {
		return nil, fmt.Errorf("check session %s: %w", key, err)
	}
	if exists {
		return nil, fmt.Errorf("session %q: %w", req.SessionName, models.ErrDuplicateName)
	}

	values := make(models.Attributes, len(attrs)+2)
	for n, v := range attrs {
		values[n] = v
	}
	if !req.CopyDefaultUsername {
		if _, ok := values[models.AttrUsername]; ok {
			values[models.AttrUsername] = models.StringValue("")
		}
	}
	values[models.AttrHostname] = models.StringValue(req.Hostname)
	values[models.AttrFolder] = models.StringValue(req.SessionFolder)
	for n, v := range req.Overrides {
		values[n] = v
	}

	if err := st.writeRecord(key, values); err != nil {
		return nil, err
	}

	st.logger.Info("session created",
		zap.String("session", key),
		zap.String("template", req.Template.Name),
		zap.Int("attributes", len(values)),
	)
	return st.sessionFrom(key, values), nil
}

// writeRecord creates a record with the given values. A record left half
// written by a failed Set is deleted again.
func (st *Storage) writeRecord(key string, values models.Attributes) error {
	path := st.path(key)
	h, err := st.store.Create(path)
	if err != nil {
		return fmt.Errorf("create session %s: %w", key, err)
	}

	var werr error
	for _, n := range sortedNames(values) {
		if werr = h.Set(n, values[n]); werr != nil {
			werr = fmt.Errorf("write %s on %s: %w", n, key, werr)
			break
		}
	}
	h.Close()

	if werr != nil {
		if _, err := st.store.Delete(path); err != nil {
			st.logger.Warn("remove partial session", zap.String("session", key), zap.Error(err))
		}
		return werr
	}
	return nil
}

// RenameSession moves a record to the key derived from newName. Stores that
// implement store.Renamer do this atomically. Otherwise the copy is written in
// full before the original is removed, so an interrupted rename leaves both.
func (st *Storage) RenameSession(s *models.Session, newName string) (*models.Session, error) {
	if s.Name == st.defaultKey {
		return nil, fmt.Errorf("%w: the default session cannot be renamed", models.ErrInvalidName)
	}
	if err := models.ValidateSessionName(newName, st.defaultDsp); err != nil {
		return nil, err
	}

	newKey := st.codec.Encode(newName)
	renamed := s.Clone()
	renamed.Name = newKey
	renamed.DisplayText = st.codec.Decode(newKey)
	if newKey == s.Name {
		return renamed, nil
	}

	oldPath, newPath := st.path(s.Name), st.path(newKey)
	exists, err := store.Exists(st.store, oldPath)
	if err != nil {
		return nil, fmt.Errorf("check session %s: %w", s.Name, err)
	}
	if !exists {
		return nil, fmt.Errorf("rename %s: %w", s.Name, models.ErrStaleRecord)
	}
	taken, err := store.Exists(st.store, newPath)
	if err != nil {
		return nil, fmt.Errorf("check session %s: %w", newKey, err)
	}
	if taken {
		return nil, fmt.Errorf("session %q: %w", newName, models.ErrDuplicateName)
	}

	if r, ok := st.store.(store.Renamer); ok {
		if err := r.Rename(oldPath, newPath); err != nil {
			if errors.Is(err, store.ErrExists) {
				return nil, fmt.Errorf("session %q: %w", newName, models.ErrDuplicateName)
			}
			return nil, fmt.Errorf("rename %s: %w", s.Name, err)
		}
	} else {
		attrs, err := st.read(s.Name)
		if err != nil {
			return nil, fmt.Errorf("read session %s: %w", s.Name, err)
		}
		if attrs == nil {
			return nil, fmt.Errorf("rename %s: %w", s.Name, models.ErrStaleRecord)
		}
		if err := st.writeRecord(newKey, attrs); err != nil {
			return nil, err
		}
		if _, err := st.store.Delete(oldPath); err != nil {
			return nil, fmt.Errorf("remove old session %s: %w", s.Name, err)
		}
	}

	st.logger.Info("session renamed", zap.String("from", s.Name), zap.String("to", newKey))
	return renamed, nil
}

// verify checks that every session still has a record. It names all missing
// sessions in the returned error.
func (st *Storage) verify(list []*models.Session) error {
	var missing []string
	for _, s := range list {
		ok, err := store.Exists(st.store, st.path(s.Name))
		if err != nil {
			return fmt.Errorf("check session %s: %w", s.Name, err)
		}
		if !ok {
			missing = append(missing, s.Name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("sessions %s: %w", strings.Join(missing, ", "), models.ErrStaleRecord)
	}
	return nil
}

// copyable applies the copy policy to one attribute name. Hostname and folder
// are never copied.
func copyable(req *models.CopySessionRequest, name string) bool {
	if name == models.AttrHostname || name == models.AttrFolder {
		return false
	}
	switch req.Policy {
	case models.CopyAll:
		return true
	case models.CopyExclude:
		return !req.Selected(name)
	case models.CopyInclude:
		return req.Selected(name)
	}
	return false
}

// CopySessionAttributes writes template attributes onto every target. If any
// target is gone nothing is written.
func (st *Storage) CopySessionAttributes(req models.CopySessionRequest) (int, error) {
	if _, err := models.ParseCopyPolicy(string(req.Policy)); err != nil {
		return 0, err
	}
	attrs, err := st.templateAttrs(req.Template)
	if err != nil {
		return 0, err
	}
	if err := st.verify(req.TargetSessions); err != nil {
		return 0, err
	}

	var names []string
	for _, n := range sortedNames(attrs) {
		if copyable(&req, n) {
			names = append(names, n)
		}
	}

	written := 0
	for _, target := range req.TargetSessions {
		if err := st.setAll(target.Name, attrs, names); err != nil {
			return written, err
		}
		written++
	}

	st.logger.Info("session attributes copied",
		zap.String("template", req.Template.Name),
		zap.String("policy", string(req.Policy)),
		zap.Strings("attributes", names),
		zap.Int("targets", written),
	)
	return written, nil
}

func (st *Storage) setAll(key string, attrs models.Attributes, names []string) error {
	h, err := st.store.Open(st.path(key), true)
	if err != nil {
		return fmt.Errorf("open session %s: %w", key, err)
	}
	if h == nil {
		return fmt.Errorf("session %s: %w", key, models.ErrStaleRecord)
	}
	defer h.Close()
	for _, n := range names {
		if err := h.Set(n, attrs[n]); err != nil {
			return fmt.Errorf("write %s on %s: %w", n, key, err)
		}
	}
	return nil
}

// DeleteSessions removes every listed record, or none if any is already gone.
func (st *Storage) DeleteSessions(list []*models.Session) error {
	if err := st.verify(list); err != nil {
		return err
	}
	for _, s := range list {
		if _, err := st.store.Delete(st.path(s.Name)); err != nil {
			return fmt.Errorf("delete session %s: %w", s.Name, err)
		}
	}
	st.logger.Info("sessions deleted", zap.Int("count", len(list)))
	return nil
}

// RestoreSessions writes exported records back to the store. Unless overwrite
// is set, an existing record with any of the keys aborts the restore before
// anything is written.
func (st *Storage) RestoreSessions(records map[string]models.Attributes, overwrite bool) (int, error) {
	keys := make([]string, 0, len(records))
	for k := range records {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if k == "" || strings.Contains(k, store.PathSeparator) {
			return 0, fmt.Errorf("%w: record key %q", models.ErrInvalidName, k)
		}
		if overwrite {
			continue
		}
		exists, err := store.Exists(st.store, st.path(k))
		if err != nil {
			return 0, fmt.Errorf("check session %s: %w", k, err)
		}
		if exists {
			return 0, fmt.Errorf("session %q: %w", st.codec.Decode(k), models.ErrDuplicateName)
		}
	}

	written := 0
	for _, k := range keys {
		if overwrite {
			if _, err := st.store.Delete(st.path(k)); err != nil {
				return written, fmt.Errorf("replace session %s: %w", k, err)
			}
		}
		if err := st.writeRecord(k, records[k]); err != nil {
			return written, err
		}
		written++
	}
	st.logger.Info("sessions restored", zap.Int("count", written), zap.Bool("overwrite", overwrite))
	return written, nil
}

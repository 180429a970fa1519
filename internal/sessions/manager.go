package sessions

import (
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/iammorganparry/clive/apps/sessions/internal/export"
	"github.com/iammorganparry/clive/apps/sessions/internal/hierarchy"
	"github.com/iammorganparry/clive/apps/sessions/internal/models"
)

// ManagerOptions configure the tree and export behaviour of a Manager.
type ManagerOptions struct {
	Tree hierarchy.Options
	// Hive prefixes record paths in registry exports.
	Hive string
	// FolderLaunchWarning is the session count above which launching a folder
	// asks for confirmation. 0 disables the warning.
	FolderLaunchWarning int
}

// Manager owns the cached session list and folder tree. Mutations return an
// Event describing what the caller should redraw or reload. It is not safe for
// concurrent use.
type Manager struct {
	storage  *Storage
	opts     ManagerOptions
	logger   *zap.Logger
	sessions []*models.Session
	tree     *hierarchy.Tree
}

// NewManager creates a manager with an empty tree. Call Refresh to load sessions.
func NewManager(storage *Storage, opts ManagerOptions, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		storage: storage,
		opts:    opts,
		logger:  logger,
		tree:    hierarchy.New(opts.Tree),
	}
}

func (m *Manager) Storage() *Storage { return m.storage }

// Refresh reloads the session list and rebuilds the tree. When the store is
// unavailable the manager falls back to an empty tree and returns the error.
func (m *Manager) Refresh() (ev models.Event, err error) {
	defer observe("refresh", time.Now(), &err)

	list, err := m.storage.GetSessionList()
	if err != nil {
		if errors.Is(err, models.ErrStoreUnavailable) {
			m.logger.Warn("session store unavailable, showing empty tree", zap.Error(err))
			m.sessions = nil
			m.tree = hierarchy.New(m.opts.Tree)
			sessionCount.Set(0)
			return models.Event{Invalidate: true}, err
		}
		return models.Event{}, err
	}

	m.sessions = list
	m.tree = hierarchy.Build(list, m.opts.Tree)
	sessionCount.Set(float64(len(list)))
	m.logger.Debug("session tree rebuilt", zap.Int("sessions", len(list)), zap.Int("nodes", m.tree.Len()))
	return models.Event{Invalidate: true}, nil
}

// GetSessionList returns the cached sessions in store order.
func (m *Manager) GetSessionList() []*models.Session { return m.sessions }

func (m *Manager) Tree() *hierarchy.Tree { return m.tree }

// FindSession looks a session up by record key.
func (m *Manager) FindSession(name string) *models.Session {
	for _, s := range m.sessions {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// FindDefaultSession returns the template session, or nil if it does not exist.
func (m *Manager) FindDefaultSession() *models.Session {
	return m.FindSession(m.storage.DefaultKey())
}

func (m *Manager) IsDefaultSessionName(name string) bool {
	return m.storage.IsDefaultSessionName(name)
}

// SessionAttributes returns every stored value of s.
func (m *Manager) SessionAttributes(s *models.Session) (models.Attributes, error) {
	return m.storage.ReadAttributes(s)
}

// CreateNewSession creates a record from a template and adds it to the tree.
func (m *Manager) CreateNewSession(req models.NewSessionRequest) (s *models.Session, ev models.Event, err error) {
	defer observe("create", time.Now(), &err)

	s, err = m.storage.CreateNewSession(req)
	if err != nil {
		return nil, models.Event{}, err
	}
	m.sessions = append(m.sessions, s)
	m.tree.InsertSession(s)
	sessionCount.Set(float64(len(m.sessions)))
	return s, models.Event{Invalidate: true, Persisted: 1}, nil
}

// RenameSession renames a record and swaps it in the list and tree.
func (m *Manager) RenameSession(s *models.Session, newName string) (renamed *models.Session, ev models.Event, err error) {
	defer observe("rename", time.Now(), &err)

	renamed, err = m.storage.RenameSession(s, newName)
	if err != nil {
		if errors.Is(err, models.ErrStaleRecord) {
			return nil, models.Event{Reload: true}, err
		}
		return nil, models.Event{}, err
	}
	if renamed.Name == s.Name {
		return renamed, models.Event{}, nil
	}

	for i, cur := range m.sessions {
		if cur.Name == s.Name {
			m.sessions[i] = renamed
		}
	}
	out := m.tree.ReplaceSession(s.Name, renamed)
	return renamed, m.event(out, 1), nil
}

// CopySessionAttributes copies template attributes onto the targets and reloads
// the list so cached fields reflect the new values.
func (m *Manager) CopySessionAttributes(req models.CopySessionRequest) (ev models.Event, err error) {
	defer observe("copy_attributes", time.Now(), &err)

	n, err := m.storage.CopySessionAttributes(req)
	if err != nil {
		if errors.Is(err, models.ErrStaleRecord) {
			return models.Event{Reload: true}, err
		}
		return models.Event{Persisted: n}, err
	}
	ev, err = m.Refresh()
	ev.Persisted = n
	return ev, err
}

// DeleteSessions deletes the records and removes them from the tree.
func (m *Manager) DeleteSessions(list []*models.Session) (ev models.Event, err error) {
	defer observe("delete", time.Now(), &err)

	if err = m.storage.DeleteSessions(list); err != nil {
		if errors.Is(err, models.ErrStaleRecord) {
			return models.Event{Reload: true}, err
		}
		return models.Event{}, err
	}

	gone := make(map[string]bool, len(list))
	var out hierarchy.Outcome
	for _, s := range list {
		gone[s.Name] = true
		o := m.tree.RemoveSession(s.Name)
		out.Pruned = append(out.Pruned, o.Pruned...)
	}
	kept := m.sessions[:0]
	for _, s := range m.sessions {
		if !gone[s.Name] {
			kept = append(kept, s)
		}
	}
	m.sessions = kept
	sessionCount.Set(float64(len(kept)))
	return m.event(out, 0), nil
}

// SaveFolder writes the session's current folder path to the store.
func (m *Manager) SaveFolder(s *models.Session) (err error) {
	defer observe("save_folder", time.Now(), &err)
	return m.storage.SaveFolder(s)
}

// BackupSessionsToFile exports the sessions to path in the given format ("reg"
// or "yaml") and returns how many records were written.
func (m *Manager) BackupSessionsToFile(list []*models.Session, path, format string) (n int, err error) {
	defer observe("backup", time.Now(), &err)

	e, err := m.Exporter(format)
	if err != nil {
		return 0, err
	}
	n, err = export.WriteFile(e, path, list)
	if err != nil {
		return n, err
	}
	m.logger.Info("sessions exported", zap.String("path", path), zap.String("format", e.FileTypeExtension()), zap.Int("count", n))
	return n, nil
}

// RestoreFromFile writes the records of a YAML export back to the store and
// reloads the tree.
func (m *Manager) RestoreFromFile(path string, overwrite bool) (ev models.Event, err error) {
	defer observe("restore", time.Now(), &err)

	f, err := os.Open(path)
	if err != nil {
		return models.Event{}, fmt.Errorf("open backup: %w", err)
	}
	defer f.Close()

	root, records, err := export.ReadDocument(f)
	if err != nil {
		return models.Event{}, err
	}
	if root != "" && root != m.storage.Root() {
		m.logger.Warn("restoring backup taken under a different root",
			zap.String("backup_root", root), zap.String("root", m.storage.Root()))
	}

	n, err := m.storage.RestoreSessions(records, overwrite)
	if err != nil {
		if n > 0 {
			ev, _ = m.Refresh()
		}
		ev.Persisted = n
		return ev, err
	}
	ev, err = m.Refresh()
	ev.Persisted = n
	return ev, err
}

// Exporter returns the exporter for a format name.
func (m *Manager) Exporter(format string) (export.Exporter, error) {
	src := export.Source{Store: m.storage.store, Root: m.storage.Root()}
	return export.ForFormat(format, src, m.opts.Hive)
}

// event persists the sessions an outcome changed and converts it to an Event.
func (m *Manager) event(out hierarchy.Outcome, persisted int) models.Event {
	if n := len(out.Pruned); n > 0 {
		foldersPruned.Add(float64(n))
	}
	return models.Event{
		Invalidate: out.Invalidate || len(out.Pruned) > 0 || persisted > 0,
		Persisted:  persisted,
		Pruned:     out.Pruned,
	}
}

// apply writes back every session whose folder path changed. A failed write
// leaves the tree ahead of the store, so the event asks for a reload.
func (m *Manager) apply(out hierarchy.Outcome) (models.Event, error) {
	for i, s := range out.Changed {
		if err := m.storage.SaveFolder(s); err != nil {
			recordsPersisted.Add(float64(i))
			return models.Event{Invalidate: true, Reload: true, Persisted: i}, err
		}
	}
	recordsPersisted.Add(float64(len(out.Changed)))
	return m.event(out, len(out.Changed)), nil
}

// Move re-parents a node under a folder and persists the changed folder paths.
func (m *Manager) Move(node, target hierarchy.NodeID) (ev models.Event, err error) {
	defer observe("move", time.Now(), &err)

	out, err := m.tree.Move(node, target)
	if err != nil {
		return models.Event{}, err
	}
	return m.apply(out)
}

// Copy clones a node under a folder in the tree only.
func (m *Manager) Copy(node, target hierarchy.NodeID) (ev models.Event, err error) {
	defer observe("copy", time.Now(), &err)

	out, err := m.tree.Copy(node, target)
	if err != nil {
		return models.Event{}, err
	}
	return m.event(out, 0), nil
}

// CreateFolder adds an empty folder. It is dropped on the next Refresh unless a
// session is moved into it.
func (m *Manager) CreateFolder(parent hierarchy.NodeID, name string) (id hierarchy.NodeID, ev models.Event, err error) {
	defer observe("create_folder", time.Now(), &err)

	out, err := m.tree.CreateFolder(parent, name)
	if err != nil {
		return 0, models.Event{}, err
	}
	return out.Node, m.event(out, 0), nil
}

// WrapInFolder creates a folder next to node and moves node into it.
func (m *Manager) WrapInFolder(node hierarchy.NodeID, name string) (id hierarchy.NodeID, ev models.Event, err error) {
	defer observe("wrap_folder", time.Now(), &err)

	out, err := m.tree.WrapInFolder(node, name)
	if err != nil {
		return 0, models.Event{}, err
	}
	ev, err = m.apply(out)
	return out.Node, ev, err
}

// RenameFolder renames a folder and persists the new folder paths below it.
func (m *Manager) RenameFolder(node hierarchy.NodeID, newName string) (ev models.Event, err error) {
	defer observe("rename_folder", time.Now(), &err)

	out, err := m.tree.RenameFolder(node, newName)
	if err != nil {
		return models.Event{}, err
	}
	return m.apply(out)
}

// LaunchPlan lists the sessions a folder launch would open.
type LaunchPlan struct {
	Sessions []*models.Session `json:"sessions"`
	// Warn is set when the count exceeds the configured threshold.
	Warn bool `json:"warn"`
}

// FolderLaunchPlan collects the sessions under a folder for launching.
func (m *Manager) FolderLaunchPlan(folder hierarchy.NodeID, recursive bool) (LaunchPlan, error) {
	if m.tree.Folder(folder) == nil {
		return LaunchPlan{}, fmt.Errorf("folder %d: %w", folder, models.ErrNotFound)
	}
	list := m.tree.Sessions(folder, recursive)
	return LaunchPlan{
		Sessions: list,
		Warn:     m.opts.FolderLaunchWarning > 0 && len(list) > m.opts.FolderLaunchWarning,
	}, nil
}

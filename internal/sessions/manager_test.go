package sessions

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iammorganparry/clive/apps/sessions/internal/hierarchy"
	"github.com/iammorganparry/clive/apps/sessions/internal/models"
	"github.com/iammorganparry/clive/apps/sessions/internal/store"
)

var managerOpts = ManagerOptions{
	Tree:                hierarchy.Options{RootName: "Sessions", Separator: `\`},
	FolderLaunchWarning: 1,
}

// brokenStore fails enumeration as an unreadable namespace would.
type brokenStore struct{ store.Store }

func (brokenStore) Enumerate(string) ([]string, error) {
	return nil, fmt.Errorf("enumerate: %w", models.ErrStoreUnavailable)
}

func newManager(t *testing.T) (*store.MemStore, *Manager) {
	t.Helper()
	ms, st := seeded(t)
	m := NewManager(st, managerOpts, zap.NewNop())
	ev, err := m.Refresh()
	require.NoError(t, err)
	require.True(t, ev.Invalidate)
	return ms, m
}

func node(t *testing.T, m *Manager, key string) hierarchy.NodeID {
	t.Helper()
	id, ok := m.Tree().Find(key)
	require.True(t, ok, "node %q not in tree:\n%s", key, m.Tree())
	return id
}

func TestManagerRefresh(t *testing.T) {
	_, m := newManager(t)
	assert.Len(t, m.GetSessionList(), 3)
	assert.Equal(t, map[string][]string{
		models.FolderKey("Sessions"):      {"Default%20Settings", models.FolderKey(`Sessions\Prod`)},
		models.FolderKey(`Sessions\Prod`): {"db01", "web01"},
	}, m.Tree().Structure())
	assert.NotNil(t, m.FindDefaultSession())
	assert.True(t, m.IsDefaultSessionName("Default Settings"))
}

func TestManagerStoreUnavailable(t *testing.T) {
	ms, st := seeded(t)
	st.store = brokenStore{ms}
	m := NewManager(st, managerOpts, nil)

	ev, err := m.Refresh()
	assert.ErrorIs(t, err, models.ErrStoreUnavailable)
	assert.True(t, ev.Invalidate)
	assert.Empty(t, m.GetSessionList())
	assert.Equal(t, 1, m.Tree().Len())
}

func TestManagerMovePersistsFolder(t *testing.T) {
	ms, m := newManager(t)
	web, _, _ := m.Tree().FindSession("web01")

	ev, err := m.Move(web, hierarchy.RootID)
	require.NoError(t, err)
	assert.True(t, ev.Invalidate)
	assert.Equal(t, 1, ev.Persisted)
	assert.Empty(t, ev.Pruned)
	assert.Equal(t, models.StringValue("Sessions"), ms.Record(path("web01"))[models.AttrFolder])

	// The cached list shares the session, so it sees the new path too.
	assert.Equal(t, "Sessions", m.FindSession("web01").FolderPath)

	// A rebuild from the store reproduces the edited tree.
	want := m.Tree().Structure()
	_, err = m.Refresh()
	require.NoError(t, err)
	assert.Equal(t, want, m.Tree().Structure())
}

func TestManagerMoveLastSessionPrunes(t *testing.T) {
	_, m := newManager(t)
	for _, name := range []string{"web01", "db01"} {
		id, _, _ := m.Tree().FindSession(name)
		ev, err := m.Move(id, hierarchy.RootID)
		require.NoError(t, err)
		if name == "db01" {
			assert.Equal(t, []string{`Sessions\Prod`}, ev.Pruned)
		}
	}
	_, ok := m.Tree().Find(models.FolderKey(`Sessions\Prod`))
	assert.False(t, ok)
}

func TestManagerCyclicMoveLeavesStore(t *testing.T) {
	ms, m := newManager(t)
	prod := node(t, m, models.FolderKey(`Sessions\Prod`))
	before := ms.Record(path("web01"))

	_, err := m.Move(prod, prod)
	assert.ErrorIs(t, err, models.ErrCyclicMove)
	assert.Equal(t, before, ms.Record(path("web01")))
}

func TestManagerFolderOperations(t *testing.T) {
	ms, m := newManager(t)
	prod := node(t, m, models.FolderKey(`Sessions\Prod`))

	ev, err := m.RenameFolder(prod, "Production")
	require.NoError(t, err)
	assert.Equal(t, 2, ev.Persisted)
	assert.Equal(t, models.StringValue(`Sessions\Production`), ms.Record(path("db01"))[models.AttrFolder])

	db, _, _ := m.Tree().FindSession("db01")
	wrapper, ev, err := m.WrapInFolder(db, "Databases")
	require.NoError(t, err)
	assert.Equal(t, 1, ev.Persisted)
	assert.Equal(t, `Sessions\Production\Databases`, m.Tree().Folder(wrapper).Path)
	assert.Equal(t, models.StringValue(`Sessions\Production\Databases`), ms.Record(path("db01"))[models.AttrFolder])

	empty, ev, err := m.CreateFolder(hierarchy.RootID, "Scratch")
	require.NoError(t, err)
	assert.True(t, ev.Invalidate)
	assert.Equal(t, 0, ev.Persisted)

	web, _, _ := m.Tree().FindSession("web01")
	ev, err = m.Copy(web, empty)
	require.NoError(t, err)
	assert.Equal(t, 0, ev.Persisted)
	assert.Equal(t, models.StringValue(`Sessions\Production`), ms.Record(path("web01"))[models.AttrFolder])

	_, _, err = m.CreateFolder(hierarchy.RootID, "Scratch")
	assert.ErrorIs(t, err, models.ErrDuplicateFolder)
}

func TestManagerMoveCopiedSessionLeavesStore(t *testing.T) {
	ms, m := newManager(t)
	web, _, _ := m.Tree().FindSession("web01")

	_, err := m.Copy(web, hierarchy.RootID)
	require.NoError(t, err)
	var clone hierarchy.NodeID
	for _, c := range m.Tree().Children(hierarchy.RootID) {
		if m.Tree().Entry(c).Key() == "web01" {
			clone = c
		}
	}
	require.NotZero(t, clone)

	other, _, err := m.CreateFolder(hierarchy.RootID, "Other")
	require.NoError(t, err)
	ev, err := m.Move(clone, other)
	require.NoError(t, err)
	assert.Equal(t, 0, ev.Persisted)

	assert.Equal(t, models.StringValue(`Sessions\Prod`), ms.Record(path("web01"))[models.AttrFolder])
	assert.Equal(t, `Sessions\Prod`, m.FindSession("web01").FolderPath)

	_, err = m.Refresh()
	require.NoError(t, err)
	assert.Equal(t, []string{"db01", "web01"}, m.Tree().Structure()[models.FolderKey(`Sessions\Prod`)])
	_, ok := m.Tree().Find(models.FolderKey(`Sessions\Other`))
	assert.False(t, ok)
}

func TestManagerCreateRenameDelete(t *testing.T) {
	ms, m := newManager(t)

	s, ev, err := m.CreateNewSession(models.NewSessionRequest{
		Template:      m.FindDefaultSession(),
		SessionName:   "cache01",
		SessionFolder: `Sessions\Prod`,
		Hostname:      "10.0.0.3",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, ev.Persisted)
	assert.Same(t, s, m.FindSession("cache01"))
	assert.Equal(t, 3, m.Tree().SessionCount(node(t, m, models.FolderKey(`Sessions\Prod`)), false))

	renamed, ev, err := m.RenameSession(s, "cache 01")
	require.NoError(t, err)
	assert.True(t, ev.Invalidate)
	assert.Nil(t, m.FindSession("cache01"))
	assert.NotNil(t, m.FindSession(renamed.Name))
	_, _, ok := m.Tree().FindSession(renamed.Name)
	assert.True(t, ok)

	ev, err = m.DeleteSessions([]*models.Session{m.FindSession("web01"), m.FindSession("db01"), renamed})
	require.NoError(t, err)
	assert.Equal(t, []string{`Sessions\Prod`}, ev.Pruned)
	assert.Len(t, m.GetSessionList(), 1)
	keys, _ := ms.Enumerate(root)
	assert.Equal(t, []string{"Default%20Settings"}, keys)
}

func TestManagerDeleteStaleAsksReload(t *testing.T) {
	ms, m := newManager(t)
	ms.Delete(path("db01"))

	ev, err := m.DeleteSessions([]*models.Session{m.FindSession("web01"), m.FindSession("db01")})
	assert.ErrorIs(t, err, models.ErrStaleRecord)
	assert.True(t, ev.Reload)
	assert.NotNil(t, ms.Record(path("web01")))
}

func TestManagerCopyAttributesReloads(t *testing.T) {
	_, m := newManager(t)

	ev, err := m.CopySessionAttributes(models.CopySessionRequest{
		Template:           m.FindSession("web01"),
		TargetSessions:     []*models.Session{m.FindSession("db01")},
		Policy:             models.CopyInclude,
		SelectedAttributes: []string{models.AttrProtocol},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, ev.Persisted)
	assert.Equal(t, "ssh", m.FindSession("db01").Protocol)
}

func TestManagerBackup(t *testing.T) {
	_, m := newManager(t)
	dir := t.TempDir()

	n, err := m.BackupSessionsToFile(m.GetSessionList(), filepath.Join(dir, "all.reg"), "")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = m.BackupSessionsToFile(nil, filepath.Join(dir, "none.yaml"), "yaml")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	_, err = os.Stat(filepath.Join(dir, "none.yaml"))
	assert.True(t, os.IsNotExist(err))

	_, err = m.BackupSessionsToFile(m.GetSessionList(), filepath.Join(dir, "x"), "csv")
	assert.Error(t, err)
}

func TestManagerRestore(t *testing.T) {
	ms, m := newManager(t)
	backup := filepath.Join(t.TempDir(), "prod.yaml")

	prod := []*models.Session{m.FindSession("web01"), m.FindSession("db01")}
	_, err := m.BackupSessionsToFile(prod, backup, "yaml")
	require.NoError(t, err)

	// Existing records block a restore without overwrite, and nothing is written.
	ms.Delete(path("db01"))
	_, err = m.RestoreFromFile(backup, false)
	assert.ErrorIs(t, err, models.ErrDuplicateName)
	assert.Nil(t, ms.Record(path("db01")))

	ev, err := m.RestoreFromFile(backup, true)
	require.NoError(t, err)
	assert.Equal(t, 2, ev.Persisted)
	assert.True(t, ev.Invalidate)
	assert.Equal(t, models.StringValue("telnet"), ms.Record(path("db01"))[models.AttrProtocol])
	assert.Equal(t, models.DWordValue(2222), ms.Record(path("web01"))[models.AttrPortNumber])
	assert.NotNil(t, m.FindSession("db01"))

	_, err = m.RestoreFromFile(filepath.Join(t.TempDir(), "missing.yaml"), true)
	assert.Error(t, err)
}

func TestStorageRestoreRejectsBadKeys(t *testing.T) {
	_, st := seeded(t)
	_, err := st.RestoreSessions(map[string]models.Attributes{`a\b`: {}}, true)
	assert.ErrorIs(t, err, models.ErrInvalidName)
}

func TestManagerFolderLaunchPlan(t *testing.T) {
	_, m := newManager(t)
	prod := node(t, m, models.FolderKey(`Sessions\Prod`))

	plan, err := m.FolderLaunchPlan(prod, false)
	require.NoError(t, err)
	assert.Len(t, plan.Sessions, 2)
	assert.True(t, plan.Warn)

	plan, err = m.FolderLaunchPlan(hierarchy.RootID, false)
	require.NoError(t, err)
	assert.Len(t, plan.Sessions, 1)
	assert.False(t, plan.Warn)

	web, _, _ := m.Tree().FindSession("web01")
	_, err = m.FolderLaunchPlan(web, true)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

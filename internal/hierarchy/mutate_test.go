package hierarchy

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iammorganparry/clive/apps/sessions/internal/models"
)

func fixture() *Tree {
	return Build([]*models.Session{
		session("a1", `Sessions\A`),
		session("a2", `Sessions\A\Inner`),
		session("b1", `Sessions\B`),
		session("root1", ""),
	}, opts)
}

func names(ss []*models.Session) []string {
	var out []string
	for _, s := range ss {
		out = append(out, s.Name)
	}
	return out
}

func TestMoveIntoDescendantFails(t *testing.T) {
	tree := fixture()
	before := tree.Structure()
	a := mustFind(t, tree, folderKey(`Sessions\A`))
	inner := mustFind(t, tree, folderKey(`Sessions\A\Inner`))

	_, err := tree.Move(a, inner)
	assert.ErrorIs(t, err, models.ErrCyclicMove)
	_, err = tree.Move(a, a)
	assert.ErrorIs(t, err, models.ErrCyclicMove)

	if diff := cmp.Diff(before, tree.Structure()); diff != "" {
		t.Errorf("tree changed after failed move (-before +after):\n%s", diff)
	}
}

func TestMoveFolderRewritesDescendants(t *testing.T) {
	tree := fixture()
	a := mustFind(t, tree, folderKey(`Sessions\A`))
	b := mustFind(t, tree, folderKey(`Sessions\B`))

	out, err := tree.Move(a, b)
	require.NoError(t, err)
	assert.True(t, out.Invalidate)
	assert.ElementsMatch(t, []string{"a1", "a2"}, names(out.Changed))
	assert.Empty(t, out.Pruned)

	prefix := tree.Folder(b).Path + `\` + "A"
	for _, s := range tree.Sessions(a, true) {
		assert.True(t, strings.HasPrefix(s.FolderPath, prefix), "%s has folder path %q", s.Name, s.FolderPath)
	}
	_, a2, _ := tree.FindSession("a2")
	assert.Equal(t, `Sessions\B\A\Inner`, a2.FolderPath)

	// Keys follow the new paths.
	mustFind(t, tree, folderKey(`Sessions\B\A\Inner`))
	_, ok := tree.Find(folderKey(`Sessions\A`))
	assert.False(t, ok)
}

func TestMovePrunesEmptiedFolders(t *testing.T) {
	tree := fixture()
	id, _, _ := tree.FindSession("b1")

	out, err := tree.Move(id, RootID)
	require.NoError(t, err)
	assert.Equal(t, []string{`Sessions\B`}, out.Pruned)
	assert.Equal(t, []string{"b1"}, names(out.Changed))
	assert.Equal(t, "Sessions", out.Changed[0].FolderPath)

	_, ok := tree.Find(folderKey(`Sessions\B`))
	assert.False(t, ok)
}

func TestMoveCascadingPrune(t *testing.T) {
	tree := Build([]*models.Session{session("deep", `X\Y\Z`), session("top", "")}, opts)
	id, _, _ := tree.FindSession("deep")

	out, err := tree.Move(id, RootID)
	require.NoError(t, err)
	assert.Equal(t, []string{`Sessions\X\Y\Z`, `Sessions\X\Y`, `Sessions\X`}, out.Pruned)
	assert.Equal(t, map[string][]string{folderKey("Sessions"): {"deep", "top"}}, tree.Structure())
}

func TestPruneKeepsProtectedFolders(t *testing.T) {
	o := opts
	o.Protected = []string{"Keep"}
	tree := Build([]*models.Session{session("s", `Keep\Sub`)}, o)
	id, _, _ := tree.FindSession("s")

	out, err := tree.Move(id, RootID)
	require.NoError(t, err)
	assert.Equal(t, []string{`Sessions\Keep\Sub`}, out.Pruned)
	mustFind(t, tree, folderKey(`Sessions\Keep`))
}

func TestMoveNoops(t *testing.T) {
	tree := fixture()
	before := tree.Structure()
	a1, _, _ := tree.FindSession("a1")
	root1, _, _ := tree.FindSession("root1")
	a := mustFind(t, tree, folderKey(`Sessions\A`))

	out, err := tree.Move(a1, root1)
	require.NoError(t, err, "session target")
	assert.False(t, out.Invalidate)

	out, err = tree.Move(a1, a)
	require.NoError(t, err, "same parent")
	assert.False(t, out.Invalidate)

	assert.Equal(t, before, tree.Structure())
}

func TestMoveErrors(t *testing.T) {
	tree := Build([]*models.Session{
		session("x", `A\Dup`),
		session("y", `Dup`),
	}, opts)
	dup := mustFind(t, tree, folderKey(`Sessions\A\Dup`))

	_, err := tree.Move(dup, RootID)
	assert.ErrorIs(t, err, models.ErrDuplicateFolder)

	a := mustFind(t, tree, folderKey(`Sessions\A`))
	_, err = tree.Move(RootID, a)
	assert.ErrorIs(t, err, models.ErrRootFolder)

	_, err = tree.Move(NodeID(42), a)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCopyDoesNotPersist(t *testing.T) {
	tree := fixture()
	a := mustFind(t, tree, folderKey(`Sessions\A`))
	b := mustFind(t, tree, folderKey(`Sessions\B`))

	out, err := tree.Copy(a, b)
	require.NoError(t, err)
	assert.Empty(t, out.Changed)
	assert.Equal(t, folderKey(`Sessions\B\A`), tree.Entry(out.Node).Key())
	assert.Equal(t, 3, tree.SessionCount(b, true))

	// The originals keep their paths.
	_, a1, _ := tree.FindSession("a1")
	assert.Equal(t, `Sessions\A`, a1.FolderPath)
	clones := tree.Sessions(out.Node, true)
	require.Len(t, clones, 2)
	assert.Equal(t, `Sessions\B\A\Inner`, clones[1].FolderPath)
}

func TestCopiedSessionsStayTreeOnly(t *testing.T) {
	tree := fixture()
	a := mustFind(t, tree, folderKey(`Sessions\A`))
	b := mustFind(t, tree, folderKey(`Sessions\B`))

	a1, _, _ := tree.FindSession("a1")
	out, err := tree.Copy(a1, b)
	require.NoError(t, err)
	clone := out.Node

	out, err = tree.Move(clone, RootID)
	require.NoError(t, err)
	assert.Empty(t, out.Changed)
	assert.Equal(t, "Sessions", tree.Entry(clone).(*models.Session).FolderPath)
	assert.Equal(t, `Sessions\A`, tree.Entry(a1).(*models.Session).FolderPath)

	// A copied folder renamed along with its parent reports only the originals.
	_, err = tree.Copy(a, b)
	require.NoError(t, err)
	out, err = tree.RenameFolder(b, "Bee")
	require.NoError(t, err)
	assert.Equal(t, []string{"b1"}, names(out.Changed))
	_, a2, _ := tree.FindSession("a2")
	assert.Equal(t, `Sessions\A\Inner`, a2.FolderPath)
}

func TestFolderNamedAfterRootRejected(t *testing.T) {
	tree := fixture()
	a := mustFind(t, tree, folderKey(`Sessions\A`))
	before := tree.Structure()

	_, err := tree.CreateFolder(a, "Sessions")
	assert.ErrorIs(t, err, models.ErrInvalidName)
	_, err = tree.RenameFolder(a, "Sessions")
	assert.ErrorIs(t, err, models.ErrInvalidName)
	b1, _, _ := tree.FindSession("b1")
	_, err = tree.WrapInFolder(b1, "Sessions")
	assert.ErrorIs(t, err, models.ErrInvalidName)

	if diff := cmp.Diff(before, tree.Structure()); diff != "" {
		t.Errorf("tree changed (-want +got):\n%s", diff)
	}
}

func TestCreateFolder(t *testing.T) {
	tree := fixture()

	out, err := tree.CreateFolder(RootID, "New")
	require.NoError(t, err)
	assert.Equal(t, `Sessions\New`, tree.Folder(out.Node).Path)

	_, err = tree.CreateFolder(RootID, "New")
	assert.ErrorIs(t, err, models.ErrDuplicateFolder)
	_, err = tree.CreateFolder(RootID, `bad\name`)
	assert.ErrorIs(t, err, models.ErrInvalidName)
	_, err = tree.CreateFolder(RootID, "")
	assert.ErrorIs(t, err, models.ErrInvalidName)

	s, _, _ := tree.FindSession("root1")
	_, err = tree.CreateFolder(s, "Nope")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestWrapInFolder(t *testing.T) {
	tree := fixture()
	a := mustFind(t, tree, folderKey(`Sessions\A`))

	out, err := tree.WrapInFolder(a, "Team")
	require.NoError(t, err)
	assert.Equal(t, folderKey(`Sessions\Team`), tree.Entry(out.Node).Key())
	assert.ElementsMatch(t, []string{"a1", "a2"}, names(out.Changed))

	_, a2, _ := tree.FindSession("a2")
	assert.Equal(t, `Sessions\Team\A\Inner`, a2.FolderPath)

	_, err = tree.WrapInFolder(RootID, "X")
	assert.ErrorIs(t, err, models.ErrRootFolder)
}

func TestRenameFolder(t *testing.T) {
	tree := fixture()
	a := mustFind(t, tree, folderKey(`Sessions\A`))

	out, err := tree.RenameFolder(a, "Zed")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a1", "a2"}, names(out.Changed))
	_, a2, _ := tree.FindSession("a2")
	assert.Equal(t, `Sessions\Zed\Inner`, a2.FolderPath)

	// Re-sorted within the parent.
	var order []string
	for _, c := range tree.Children(RootID) {
		order = append(order, tree.Entry(c).Display())
	}
	assert.Equal(t, []string{"B", "root1", "Zed"}, order)

	b := mustFind(t, tree, folderKey(`Sessions\B`))
	_, err = tree.RenameFolder(b, "Zed")
	assert.ErrorIs(t, err, models.ErrDuplicateFolder)
	_, err = tree.RenameFolder(RootID, "Other")
	assert.ErrorIs(t, err, models.ErrRootFolder)

	out, err = tree.RenameFolder(b, "B")
	require.NoError(t, err)
	assert.Empty(t, out.Changed)
}

func TestRemoveInsertReplaceSession(t *testing.T) {
	tree := fixture()

	out := tree.RemoveSession("b1")
	assert.Equal(t, []string{`Sessions\B`}, out.Pruned)
	assert.False(t, tree.RemoveSession("b1").Invalidate)

	out = tree.InsertSession(session("n1", `Fresh\Deep`))
	assert.True(t, out.Invalidate)
	mustFind(t, tree, folderKey(`Sessions\Fresh\Deep`))

	renamed := session("n2", `Fresh\Deep`)
	out = tree.ReplaceSession("n1", renamed)
	assert.Empty(t, out.Pruned, "the shared folder survives the swap")
	assert.Equal(t, renamed, tree.Entry(out.Node))
	_, _, ok := tree.FindSession("n1")
	assert.False(t, ok)
}

func TestTombstonedIDsNotReused(t *testing.T) {
	tree := fixture()
	id, _, _ := tree.FindSession("b1")
	tree.RemoveSession("b1")
	assert.Nil(t, tree.Entry(id))

	out := tree.InsertSession(session("b1", "B"))
	assert.NotEqual(t, id, out.Node)
}

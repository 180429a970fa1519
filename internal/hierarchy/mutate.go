package hierarchy

import (
	"fmt"

	"github.com/iammorganparry/clive/apps/sessions/internal/models"
)

// Outcome reports what a mutation did. Changed holds the sessions whose folder
// path changed and must be written back; nothing else needs persisting.
type Outcome struct {
	Node       NodeID
	Changed    []*models.Session
	Pruned     []string
	Invalidate bool
}

func (o *Outcome) merge(other Outcome) {
	o.Changed = append(o.Changed, other.Changed...)
	o.Pruned = append(o.Pruned, other.Pruned...)
	o.Invalidate = o.Invalidate || other.Invalidate
}

// relocate recomputes folder paths below id after id was placed under a folder
// whose path is parentPath. Copied sessions follow along but are not reported.
func (t *Tree) relocate(id NodeID, parentPath string, changed []*models.Session) []*models.Session {
	switch e := t.nodes[id].entry.(type) {
	case *models.Session:
		if e.FolderPath != parentPath {
			e.FolderPath = parentPath
			if !t.nodes[id].copied {
				changed = append(changed, e)
			}
		}
	case *models.Folder:
		e.Path = t.childPath(parentPath, e.Name)
		for _, c := range t.nodes[id].children {
			changed = t.relocate(c, e.Path, changed)
		}
	}
	return changed
}

// prune removes empty folders starting at id and moving upward. It stops at the
// root, a protected folder, or the first non-empty folder.
func (t *Tree) prune(id NodeID) []string {
	var pruned []string
	for id != RootID && t.live(id) {
		f, ok := t.nodes[id].entry.(*models.Folder)
		if !ok || len(t.nodes[id].children) > 0 || t.protected(f.Path) {
			break
		}
		parent := t.nodes[id].parent
		t.detach(id)
		t.tombstone(id)
		pruned = append(pruned, f.Path)
		id = parent
	}
	return pruned
}

// Prune removes id if it is an empty folder, cascading upward.
func (t *Tree) Prune(id NodeID) Outcome {
	pruned := t.prune(id)
	return Outcome{Pruned: pruned, Invalidate: len(pruned) > 0}
}

// checkTransfer validates a move or copy. It returns ok=false when the request
// is a silent no-op.
func (t *Tree) checkTransfer(id, target NodeID) (bool, error) {
	if err := t.check(id); err != nil {
		return false, err
	}
	if err := t.check(target); err != nil {
		return false, err
	}
	dst := t.Folder(target)
	if dst == nil {
		return false, nil
	}
	if id == RootID {
		return false, fmt.Errorf("move root folder: %w", models.ErrRootFolder)
	}
	if id == target || t.IsAncestor(id, target) {
		return false, fmt.Errorf("move %q into %q: %w", t.nodes[id].entry.Display(), dst.Path, models.ErrCyclicMove)
	}
	if t.nodes[id].parent == target {
		return false, nil
	}
	if f, ok := t.nodes[id].entry.(*models.Folder); ok {
		if _, dup := t.childFolder(target, models.FolderKey(t.childPath(dst.Path, f.Name))); dup {
			return false, fmt.Errorf("folder %q already exists in %q: %w", f.Name, dst.Path, models.ErrDuplicateFolder)
		}
	}
	return true, nil
}

// Move re-parents id under target. A target that is not a folder is ignored.
// On error the tree is unchanged.
func (t *Tree) Move(id, target NodeID) (Outcome, error) {
	ok, err := t.checkTransfer(id, target)
	if err != nil || !ok {
		return Outcome{}, err
	}

	oldParent := t.nodes[id].parent
	t.detach(id)
	changed := t.relocate(id, t.Folder(target).Path, nil)
	t.attach(target, id)

	return Outcome{
		Node:       id,
		Changed:    changed,
		Pruned:     t.prune(oldParent),
		Invalidate: true,
	}, nil
}

// Copy deep-clones id under target. Cloned sessions carry the new folder path
// but are not persisted, including when they are later moved or renamed with
// their folder.
func (t *Tree) Copy(id, target NodeID) (Outcome, error) {
	ok, err := t.checkTransfer(id, target)
	if err != nil || !ok {
		return Outcome{}, err
	}
	clone := t.clone(id, target, t.Folder(target).Path)
	return Outcome{Node: clone, Invalidate: true}, nil
}

func (t *Tree) clone(id, parent NodeID, parentPath string) NodeID {
	switch e := t.nodes[id].entry.(type) {
	case *models.Session:
		s := e.Clone()
		s.FolderPath = parentPath
		nid := t.add(parent, s)
		t.nodes[nid].copied = true
		return nid
	case *models.Folder:
		f := &models.Folder{Name: e.Name, Path: t.childPath(parentPath, e.Name)}
		nid := t.add(parent, f)
		for _, c := range t.Children(id) {
			t.clone(c, nid, f.Path)
		}
		return nid
	}
	return -1
}

// validateFolderName applies the model rules and rejects the root name, which
// Build drops from folder paths.
func (t *Tree) validateFolderName(name string) error {
	if err := models.ValidateFolderName(name, t.opts.Separator); err != nil {
		return err
	}
	if name == t.opts.RootName {
		return fmt.Errorf("%w: %q is the root folder name", models.ErrInvalidName, name)
	}
	return nil
}

// CreateFolder adds an empty folder under parent. The folder exists only in the
// tree until a session is moved into it.
func (t *Tree) CreateFolder(parent NodeID, name string) (Outcome, error) {
	if err := t.check(parent); err != nil {
		return Outcome{}, err
	}
	dst := t.Folder(parent)
	if dst == nil {
		return Outcome{}, fmt.Errorf("create folder under %q: %w", t.nodes[parent].entry.Display(), models.ErrNotFound)
	}
	if err := t.validateFolderName(name); err != nil {
		return Outcome{}, err
	}
	path := t.childPath(dst.Path, name)
	if _, dup := t.childFolder(parent, models.FolderKey(path)); dup {
		return Outcome{}, fmt.Errorf("folder %q already exists in %q: %w", name, dst.Path, models.ErrDuplicateFolder)
	}
	id := t.add(parent, &models.Folder{Name: name, Path: path})
	return Outcome{Node: id, Invalidate: true}, nil
}

// WrapInFolder creates a folder next to id and moves id into it.
func (t *Tree) WrapInFolder(id NodeID, name string) (Outcome, error) {
	if err := t.check(id); err != nil {
		return Outcome{}, err
	}
	if id == RootID {
		return Outcome{}, fmt.Errorf("wrap root folder: %w", models.ErrRootFolder)
	}
	out, err := t.CreateFolder(t.nodes[id].parent, name)
	if err != nil {
		return Outcome{}, err
	}
	folder := out.Node
	moved, err := t.Move(id, folder)
	if err != nil {
		t.detach(folder)
		t.tombstone(folder)
		return Outcome{}, err
	}
	out.merge(moved)
	out.Node = folder
	return out, nil
}

// RenameFolder changes a folder's name and the folder path of everything below it.
func (t *Tree) RenameFolder(id NodeID, newName string) (Outcome, error) {
	if err := t.check(id); err != nil {
		return Outcome{}, err
	}
	if id == RootID {
		return Outcome{}, fmt.Errorf("rename root folder: %w", models.ErrRootFolder)
	}
	f := t.Folder(id)
	if f == nil {
		return Outcome{}, fmt.Errorf("rename %q: not a folder: %w", t.nodes[id].entry.Display(), models.ErrNotFound)
	}
	if err := t.validateFolderName(newName); err != nil {
		return Outcome{}, err
	}
	if newName == f.Name {
		return Outcome{Node: id}, nil
	}
	parent := t.nodes[id].parent
	parentPath := t.Folder(parent).Path
	if _, dup := t.childFolder(parent, models.FolderKey(t.childPath(parentPath, newName))); dup {
		return Outcome{}, fmt.Errorf("folder %q already exists in %q: %w", newName, parentPath, models.ErrDuplicateFolder)
	}

	t.detach(id)
	f.Name = newName
	t.nodes[id].fold = models.SortKey(f)
	changed := t.relocate(id, parentPath, nil)
	t.attach(parent, id)
	return Outcome{Node: id, Changed: changed, Invalidate: true}, nil
}

// RemoveSession drops every node for the named session and prunes the folders
// it leaves empty. Removing an unknown session is a no-op.
func (t *Tree) RemoveSession(name string) Outcome {
	var out Outcome
	for {
		id, _, ok := t.FindSession(name)
		if !ok {
			return out
		}
		parent := t.nodes[id].parent
		t.detach(id)
		t.tombstone(id)
		out.Pruned = append(out.Pruned, t.prune(parent)...)
		out.Invalidate = true
	}
}

// InsertSession attaches a session at its folder path, creating folders as needed.
func (t *Tree) InsertSession(s *models.Session) Outcome {
	if s == nil || s.Name == "" {
		return Outcome{}
	}
	return Outcome{Node: t.insert(s), Invalidate: true}
}

// ReplaceSession swaps the node of oldName for s, keeping folders that would
// otherwise be pruned in between.
func (t *Tree) ReplaceSession(oldName string, s *models.Session) Outcome {
	if oldName == s.Name {
		out := t.RemoveSession(oldName)
		ins := t.InsertSession(s)
		out.merge(ins)
		out.Node = ins.Node
		return out
	}
	out := t.InsertSession(s)
	node := out.Node
	out.merge(t.RemoveSession(oldName))
	out.Node = node
	return out
}

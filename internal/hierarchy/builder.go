package hierarchy

import (
	"strings"

	"github.com/iammorganparry/clive/apps/sessions/internal/models"
)

// Build reconstructs the tree from a flat session list. Folder nodes are
// synthesized from each session's folder path; the sessions themselves are
// attached by pointer, so edits to the tree are visible through the list.
func Build(sessions []*models.Session, opts Options) *Tree {
	t := New(opts)
	for _, s := range sessions {
		if s == nil || s.Name == "" {
			continue
		}
		t.insert(s)
	}
	return t
}

// segments splits a folder path, dropping empty segments and the root name.
func (t *Tree) segments(folderPath string) []string {
	if folderPath == "" {
		return nil
	}
	var raw []string
	if t.opts.Separator == "" {
		raw = []string{folderPath}
	} else {
		raw = strings.Split(folderPath, t.opts.Separator)
	}
	segs := raw[:0]
	for _, seg := range raw {
		if seg == "" || seg == t.opts.RootName {
			continue
		}
		segs = append(segs, seg)
	}
	return segs
}

// ensureFolder walks folderPath from the root, creating missing folders.
func (t *Tree) ensureFolder(folderPath string) NodeID {
	parent := RootID
	path := t.opts.RootName
	for _, seg := range t.segments(folderPath) {
		path = t.childPath(path, seg)
		key := models.FolderKey(path)
		id, ok := t.childFolder(parent, key)
		if !ok {
			id = t.add(parent, &models.Folder{Name: seg, Path: path})
		}
		parent = id
	}
	return parent
}

func (t *Tree) insert(s *models.Session) NodeID {
	parent := t.ensureFolder(s.FolderPath)
	for _, c := range t.nodes[parent].children {
		if t.nodes[c].entry.Key() == s.Name {
			return c
		}
	}
	return t.add(parent, s)
}

package api

import (
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/iammorganparry/clive/apps/sessions/internal/hierarchy"
	"github.com/iammorganparry/clive/apps/sessions/internal/models"
	"github.com/iammorganparry/clive/apps/sessions/internal/sessions"
)

type TreeHandler struct {
	g      *Service
	logger *zap.Logger
}

func NewTreeHandler(g *Service, logger *zap.Logger) *TreeHandler {
	return &TreeHandler{g: g, logger: logger}
}

// resolve maps a node key to its id. The empty key names the root; session
// display names are accepted in place of their keys.
func resolve(m *sessions.Manager, key string) (hierarchy.NodeID, error) {
	if key == "" {
		return hierarchy.RootID, nil
	}
	t := m.Tree()
	if id, ok := t.Find(key); ok {
		return id, nil
	}
	if id, ok := t.Find(m.Storage().Codec().Encode(key)); ok {
		return id, nil
	}
	return 0, fmt.Errorf("node %q: %w", key, models.ErrNotFound)
}

func treeNode(t *hierarchy.Tree, id hierarchy.NodeID) *models.TreeNode {
	e := t.Entry(id)
	n := &models.TreeNode{Key: e.Key(), Name: e.Display()}
	switch v := e.(type) {
	case *models.Folder:
		n.Kind = "folder"
		n.Path = v.Path
		for _, c := range t.Children(id) {
			n.Children = append(n.Children, treeNode(t, c))
		}
	case *models.Session:
		n.Kind = "session"
		n.Path = v.FolderPath
		n.Session = v
	}
	return n
}

// Get handles GET /tree.
func (h *TreeHandler) Get(w http.ResponseWriter, r *http.Request) {
	var root *models.TreeNode
	h.g.Do(func(m *sessions.Manager) { root = treeNode(m.Tree(), hierarchy.RootID) })
	writeJSON(w, http.StatusOK, root)
}

// Launch handles GET /tree/launch?folder=<key>&recursive=true.
func (h *TreeHandler) Launch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	recursive := false
	if v := q.Get("recursive"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid recursive flag")
			return
		}
		recursive = b
	}

	var (
		plan sessions.LaunchPlan
		err  error
	)
	h.g.Do(func(m *sessions.Manager) {
		var id hierarchy.NodeID
		if id, err = resolve(m, q.Get("folder")); err != nil {
			return
		}
		plan, err = m.FolderLaunchPlan(id, recursive)
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if plan.Sessions == nil {
		plan.Sessions = []*models.Session{}
	}
	writeJSON(w, http.StatusOK, plan)
}

type transferFunc func(m *sessions.Manager, node, target hierarchy.NodeID) (models.Event, error)

func (h *TreeHandler) transfer(w http.ResponseWriter, r *http.Request, fn transferFunc) {
	var req models.TreeMoveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	var (
		ev  models.Event
		key string
		err error
	)
	h.g.Do(func(m *sessions.Manager) {
		var node, target hierarchy.NodeID
		if node, err = resolve(m, req.Node); err != nil {
			return
		}
		if target, err = resolve(m, req.Target); err != nil {
			return
		}
		key = m.Tree().Entry(node).Key()
		ev, err = fn(m, node, target)
		if err != nil && ev.Reload {
			if _, rerr := m.Refresh(); rerr != nil {
				h.logger.Warn("reload after failed write-back", zap.Error(rerr))
			}
		}
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.MutationResponse{Event: ev, Key: key})
}

// Move handles POST /tree/move. Folder paths of every moved session are persisted.
func (h *TreeHandler) Move(w http.ResponseWriter, r *http.Request) {
	h.transfer(w, r, (*sessions.Manager).Move)
}

// Copy handles POST /tree/copy. The copy lives in the tree only.
func (h *TreeHandler) Copy(w http.ResponseWriter, r *http.Request) {
	h.transfer(w, r, (*sessions.Manager).Copy)
}

// CreateFolder handles POST /tree/folders.
func (h *TreeHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	var req models.CreateFolderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	var (
		ev  models.Event
		key string
		err error
	)
	h.g.Do(func(m *sessions.Manager) {
		var id hierarchy.NodeID
		if req.Wrap != "" {
			var node hierarchy.NodeID
			if node, err = resolve(m, req.Wrap); err != nil {
				return
			}
			id, ev, err = m.WrapInFolder(node, req.Name)
		} else {
			var parent hierarchy.NodeID
			if parent, err = resolve(m, req.Parent); err != nil {
				return
			}
			id, ev, err = m.CreateFolder(parent, req.Name)
		}
		if err == nil {
			key = m.Tree().Entry(id).Key()
		}
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, models.MutationResponse{Event: ev, Key: key})
}

// RenameFolder handles POST /tree/folders/rename.
func (h *TreeHandler) RenameFolder(w http.ResponseWriter, r *http.Request) {
	var req models.RenameFolderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	var (
		ev  models.Event
		key string
		err error
	)
	h.g.Do(func(m *sessions.Manager) {
		var node hierarchy.NodeID
		if node, err = resolve(m, req.Node); err != nil {
			return
		}
		ev, err = m.RenameFolder(node, req.NewName)
		if err == nil {
			key = m.Tree().Entry(node).Key()
		}
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.MutationResponse{Event: ev, Key: key})
}

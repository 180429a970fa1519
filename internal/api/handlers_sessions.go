package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/iammorganparry/clive/apps/sessions/internal/models"
	"github.com/iammorganparry/clive/apps/sessions/internal/sessions"
)

type SessionHandler struct {
	g      *Service
	logger *zap.Logger
}

func NewSessionHandler(g *Service, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{g: g, logger: logger}
}

// lookup resolves a session by store key, falling back to its display text.
func lookup(m *sessions.Manager, name string) (*models.Session, error) {
	if s := m.FindSession(name); s != nil {
		return s, nil
	}
	if s := m.FindSession(m.Storage().Codec().Encode(name)); s != nil {
		return s, nil
	}
	return nil, fmt.Errorf("session %q: %w", name, models.ErrNotFound)
}

func lookupAll(m *sessions.Manager, names []string) ([]*models.Session, error) {
	list := make([]*models.Session, 0, len(names))
	for _, n := range names {
		s, err := lookup(m, n)
		if err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, nil
}

// Refresh handles POST /refresh.
func (h *SessionHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var (
		ev  models.Event
		err error
	)
	h.g.Do(func(m *sessions.Manager) { ev, err = m.Refresh() })
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.MutationResponse{Event: ev})
}

// List handles GET /sessions.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	var list []*models.Session
	h.g.Do(func(m *sessions.Manager) { list = m.GetSessionList() })
	if list == nil {
		list = []*models.Session{}
	}
	writeJSON(w, http.StatusOK, list)
}

// Get handles GET /sessions/{name}.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var (
		detail models.SessionDetail
		err    error
	)
	h.g.Do(func(m *sessions.Manager) {
		var s *models.Session
		if s, err = lookup(m, name); err != nil {
			return
		}
		var attrs models.Attributes
		if attrs, err = m.SessionAttributes(s); err != nil {
			return
		}
		detail.Session = s
		detail.Attributes = make(map[string]models.AttributeView, len(attrs))
		for n, v := range attrs {
			detail.Attributes[n] = v.View()
		}
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// Create handles POST /sessions.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	overrides := make(models.Attributes, len(req.Overrides))
	for n, view := range req.Overrides {
		v, err := models.ParseValue(view.Kind, view.Value)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("override %s: %v", n, err))
			return
		}
		overrides[n] = v
	}

	var (
		s   *models.Session
		ev  models.Event
		err error
	)
	h.g.Do(func(m *sessions.Manager) {
		var tmpl *models.Session
		if tmpl, err = lookup(m, req.Template); err != nil {
			err = fmt.Errorf("template %q: %w", req.Template, models.ErrTemplateMissing)
			return
		}
		s, ev, err = m.CreateNewSession(models.NewSessionRequest{
			Template:            tmpl,
			SessionName:         req.Name,
			SessionFolder:       req.Folder,
			Hostname:            req.Hostname,
			Overrides:           overrides,
			CopyDefaultUsername: req.CopyDefaultUsername,
		})
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		Session *models.Session `json:"session"`
		Event   models.Event    `json:"event"`
	}{s, ev})
}

// Rename handles POST /sessions/{name}/rename.
func (h *SessionHandler) Rename(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req models.RenameSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	var (
		renamed *models.Session
		ev      models.Event
		err     error
	)
	h.g.Do(func(m *sessions.Manager) {
		var s *models.Session
		if s, err = lookup(m, name); err != nil {
			return
		}
		renamed, ev, err = m.RenameSession(s, req.NewName)
		if err == nil || !ev.Reload {
			return
		}
		// The record vanished underneath us. Reload so the next request sees the store.
		if _, rerr := m.Refresh(); rerr != nil {
			h.logger.Warn("reload after stale rename failed", zap.Error(rerr))
		}
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.MutationResponse{Event: ev, Key: renamed.Name})
}

// Delete handles POST /sessions/delete.
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req models.SessionNamesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	var (
		ev  models.Event
		err error
	)
	h.g.Do(func(m *sessions.Manager) {
		var list []*models.Session
		if list, err = lookupAll(m, req.Names); err != nil {
			return
		}
		ev, err = m.DeleteSessions(list)
		if err != nil && ev.Reload {
			if _, rerr := m.Refresh(); rerr != nil {
				h.logger.Warn("reload after stale delete failed", zap.Error(rerr))
			}
		}
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.MutationResponse{Event: ev})
}

// CopyAttributes handles POST /sessions/copy-attributes.
func (h *SessionHandler) CopyAttributes(w http.ResponseWriter, r *http.Request) {
	var req models.CopyAttributesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	policy, err := models.ParseCopyPolicy(req.Policy)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var ev models.Event
	h.g.Do(func(m *sessions.Manager) {
		var tmpl *models.Session
		if tmpl, err = lookup(m, req.Template); err != nil {
			err = fmt.Errorf("template %q: %w", req.Template, models.ErrTemplateMissing)
			return
		}
		var targets []*models.Session
		if targets, err = lookupAll(m, req.Targets); err != nil {
			return
		}
		ev, err = m.CopySessionAttributes(models.CopySessionRequest{
			Template:           tmpl,
			TargetSessions:     targets,
			Policy:             policy,
			SelectedAttributes: req.Attributes,
		})
		if err != nil && ev.Reload {
			if _, rerr := m.Refresh(); rerr != nil {
				h.logger.Warn("reload after stale copy failed", zap.Error(rerr))
			}
		}
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.MutationResponse{Event: ev})
}

// Export handles POST /sessions/export?format=reg|yaml. The export is written
// to the response body instead of a file.
func (h *SessionHandler) Export(w http.ResponseWriter, r *http.Request) {
	var req models.SessionNamesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	h.g.Do(func(m *sessions.Manager) {
		e, err := m.Exporter(r.URL.Query().Get("format"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		list, err := lookupAll(m, req.Names)
		if err != nil {
			writeEngineError(w, err)
			return
		}

		contentType := "text/plain; charset=utf-8"
		if e.FileTypeExtension() == "yaml" {
			contentType = "application/yaml"
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="sessions.%s"`, e.FileTypeExtension()))
		w.WriteHeader(http.StatusOK)
		if _, err := e.Export(w, list); err != nil {
			h.logger.Error("export failed mid-stream", zap.Error(err))
		}
	})
}

// Backup handles POST /sessions/backup, writing the export to a server-side path.
func (h *SessionHandler) Backup(w http.ResponseWriter, r *http.Request) {
	var req models.BackupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	var (
		n   int
		err error
	)
	h.g.Do(func(m *sessions.Manager) {
		var list []*models.Session
		if list, err = lookupAll(m, req.Names); err != nil {
			return
		}
		n, err = m.BackupSessionsToFile(list, req.Path, req.Format)
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.BackupResponse{Count: n, Path: req.Path})
}

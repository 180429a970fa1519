package api

import (
	"net/http"

	"github.com/iammorganparry/clive/apps/sessions/internal/models"
	"github.com/iammorganparry/clive/apps/sessions/internal/sessions"
)

type HealthHandler struct {
	g *Service
}

func NewHealthHandler(g *Service) *HealthHandler {
	return &HealthHandler{g: g}
}

// Check reads the store directly so a store that went away after startup is
// reported even though the cached tree is still served.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	resp := models.HealthResponse{Status: "healthy"}

	var err error
	h.g.Do(func(m *sessions.Manager) {
		var list []*models.Session
		list, err = m.Storage().GetSessionList()
		resp.SessionCount = len(list)
	})

	if err != nil {
		resp.Store = models.ServiceCheck{Status: "unhealthy", Message: err.Error()}
		resp.Status = "degraded"
	} else {
		resp.Store = models.ServiceCheck{Status: "healthy"}
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

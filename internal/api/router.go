package api

import (
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/iammorganparry/clive/apps/sessions/internal/sessions"
)

// Service serializes access to a Manager, which is not safe for concurrent use.
// Anything outside the router that touches the manager while the server runs,
// such as the store watcher, goes through Do as well.
type Service struct {
	mu  sync.Mutex
	mgr *sessions.Manager
}

func NewService(mgr *sessions.Manager) *Service {
	return &Service{mgr: mgr}
}

// Do runs fn with exclusive access to the manager.
func (s *Service) Do(fn func(m *sessions.Manager)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.mgr)
}

// NewRouter creates the chi router with all routes and middleware.
func NewRouter(svc *Service, apiKey string, logger *zap.Logger) *chi.Mux {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(CORS)
	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(Recovery(logger))

	health := NewHealthHandler(svc)
	sessionH := NewSessionHandler(svc, logger)
	tree := NewTreeHandler(svc, logger)

	r.Get("/health", health.Check)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(apiKey))

		r.Post("/refresh", sessionH.Refresh)

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", sessionH.List)
			r.Post("/", sessionH.Create)
			r.Post("/delete", sessionH.Delete)
			r.Post("/copy-attributes", sessionH.CopyAttributes)
			r.Post("/export", sessionH.Export)
			r.Post("/backup", sessionH.Backup)
			r.Get("/{name}", sessionH.Get)
			r.Post("/{name}/rename", sessionH.Rename)
		})

		r.Route("/tree", func(r chi.Router) {
			r.Get("/", tree.Get)
			r.Get("/launch", tree.Launch)
			r.Post("/move", tree.Move)
			r.Post("/copy", tree.Copy)
			r.Post("/folders", tree.CreateFolder)
			r.Post("/folders/rename", tree.RenameFolder)
		})
	})

	return r
}

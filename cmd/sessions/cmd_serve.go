package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iammorganparry/clive/apps/sessions/internal/api"
	"github.com/iammorganparry/clive/apps/sessions/internal/render"
	"github.com/iammorganparry/clive/apps/sessions/internal/sessions"
	"github.com/iammorganparry/clive/apps/sessions/internal/watch"
)

// watchPath returns the file to follow for external changes, or "" when the
// backend has nothing on disk another process could write to.
func (a *app) watchPath() string {
	if a.cfg.WatchPath != "" {
		return a.cfg.WatchPath
	}
	if a.cfg.StoreBackend == "sqlite" {
		return a.cfg.DBPath
	}
	return ""
}

// startWatcher refreshes the manager through refresh whenever the store file
// changes. It returns once the watcher goroutine is running.
func (a *app) startWatcher(ctx context.Context, refresh func()) (<-chan error, error) {
	path := a.watchPath()
	if path == "" {
		return nil, fmt.Errorf("backend %q has no file to watch; set SESSIONS_WATCH_PATH", a.cfg.StoreBackend)
	}
	w, err := watch.New(path, watch.DefaultDebounce, refresh, a.logger)
	if err != nil {
		return nil, err
	}
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	return done, nil
}

func newServeCmd(a *app) *cobra.Command {
	var (
		port      int
		watchFile bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the session tree over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port == 0 {
				port = a.cfg.Port
			}
			logger := a.logger
			svc := api.NewService(a.mgr)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var watched <-chan error
			if watchFile {
				var err error
				watched, err = a.startWatcher(ctx, func() {
					svc.Do(func(m *sessions.Manager) {
						if _, err := m.Refresh(); err != nil {
							logger.Warn("refresh after store change failed", zap.Error(err))
						}
					})
				})
				if err != nil {
					return err
				}
			}

			addr := fmt.Sprintf(":%d", port)
			srv := &http.Server{
				Addr:         addr,
				Handler:      api.NewRouter(svc, a.cfg.APIKey, logger),
				ReadTimeout:  30 * time.Second,
				WriteTimeout: 60 * time.Second,
				IdleTimeout:  120 * time.Second,
			}

			serveErr := make(chan error, 1)
			go func() {
				logger.Info("sessions server starting", zap.String("addr", addr), zap.String("backend", a.cfg.StoreBackend))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
				close(serveErr)
			}()

			select {
			case err := <-serveErr:
				if err != nil {
					return fmt.Errorf("server error: %w", err)
				}
			case <-ctx.Done():
			}
			logger.Info("shutting down...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("shutdown error", zap.Error(err))
			}

			stop()
			if watched != nil {
				if err := <-watched; err != nil {
					logger.Warn("store watcher stopped", zap.Error(err))
				}
			}
			logger.Info("server stopped")
			return nil
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (default: PORT or 8742)")
	cmd.Flags().BoolVarP(&watchFile, "watch", "w", false, "reload the tree when the store file changes")
	return cmd
}

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Redraw the tree whenever the store changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, render.Tree(a.mgr.Tree()))

			done, err := a.startWatcher(ctx, func() {
				if _, err := a.mgr.Refresh(); err != nil {
					fmt.Fprintln(out, render.Error(err))
					return
				}
				fmt.Fprintln(out, render.HeaderStyle.Render(time.Now().Format(time.TimeOnly)+" store changed"))
				fmt.Fprintln(out, render.Tree(a.mgr.Tree()))
			})
			if err != nil {
				return err
			}
			return <-done
		},
	}
}

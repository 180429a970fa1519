package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iammorganparry/clive/apps/sessions/internal/config"
	"github.com/iammorganparry/clive/apps/sessions/internal/hierarchy"
	"github.com/iammorganparry/clive/apps/sessions/internal/logging"
	"github.com/iammorganparry/clive/apps/sessions/internal/models"
	"github.com/iammorganparry/clive/apps/sessions/internal/sessions"
	"github.com/iammorganparry/clive/apps/sessions/internal/store"
)

// app carries the state shared by every subcommand once PersistentPreRunE ran.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	store  store.Store
	mgr    *sessions.Manager

	// flags
	backend string
	dbPath  string
	verbose bool
	asJSON  bool
}

// newRootCmd builds the command tree. The returned app must be closed after
// Execute, whether or not the command succeeded.
func newRootCmd() (*cobra.Command, *app) {
	a := &app{}

	cmd := &cobra.Command{
		Use:           "sessions",
		Short:         "Organise saved terminal sessions into folders",
		Long:          "Browse, edit and export saved sessions kept in a flat record store, grouped into a folder tree.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}

	f := cmd.PersistentFlags()
	f.StringVar(&a.backend, "backend", "", "record store backend (memory, sqlite, badger)")
	f.StringVar(&a.dbPath, "db", "", "path of the sqlite file or badger directory")
	f.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")
	f.BoolVar(&a.asJSON, "json", false, "print JSON instead of tables")

	cmd.AddCommand(
		newListCmd(a),
		newShowCmd(a),
		newNewCmd(a),
		newRenameCmd(a),
		newRmCmd(a),
		newCopyAttrsCmd(a),
		newExportCmd(a),
		newImportCmd(a),
		newTreeCmd(a),
		newMvCmd(a),
		newMkdirCmd(a),
		newRenameFolderCmd(a),
		newLaunchCmd(a),
		newServeCmd(a),
		newWatchCmd(a),
	)
	return cmd, a
}

func (a *app) setup() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if a.backend != "" {
		cfg.StoreBackend = a.backend
	}
	if a.dbPath != "" {
		switch cfg.StoreBackend {
		case "badger":
			cfg.BadgerPath = a.dbPath
		default:
			cfg.DBPath = a.dbPath
		}
	}
	if a.verbose {
		cfg.LogLevel = "debug"
	}
	a.cfg = cfg

	if a.logger, err = logging.New(cfg.LogLevel); err != nil {
		return err
	}

	if a.store, err = openStore(cfg, a.logger); err != nil {
		return err
	}

	st := sessions.NewStorage(a.store, sessions.StorageOptions{
		Root:               cfg.SessionsRoot,
		Separator:          cfg.PathSeparator,
		DefaultSessionName: cfg.DefaultSessionName,
	}, a.logger)
	a.mgr = sessions.NewManager(st, sessions.ManagerOptions{
		Tree: hierarchy.Options{
			RootName:  cfg.RootFolderName,
			Separator: cfg.PathSeparator,
			Protected: cfg.ProtectedFolders,
		},
		Hive:                cfg.ExportHive,
		FolderLaunchWarning: cfg.FolderLaunchWarning,
	}, a.logger)

	if _, err := a.mgr.Refresh(); err != nil && !errors.Is(err, models.ErrStoreUnavailable) {
		return err
	}
	return nil
}

func (a *app) close() error {
	var err error
	if a.store != nil {
		err = a.store.Close()
		a.store = nil
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	return err
}

// openStore opens the backend named in the configuration.
func openStore(cfg *config.Config, logger *zap.Logger) (store.Store, error) {
	switch cfg.StoreBackend {
	case "memory":
		return store.NewMemStore(), nil
	case "badger":
		bcfg := store.DefaultBadgerConfig(cfg.BadgerPath)
		bcfg.Logger = logger
		return store.OpenBadger(bcfg)
	case "sqlite":
		db, err := store.OpenDB(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		return store.NewSQLiteStore(db), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

// resolveSession finds a session by record key or display name.
func (a *app) resolveSession(name string) (*models.Session, error) {
	if s := a.mgr.FindSession(name); s != nil {
		return s, nil
	}
	if s := a.mgr.FindSession(a.mgr.Storage().Codec().Encode(name)); s != nil {
		return s, nil
	}
	return nil, fmt.Errorf("session %q: %w", name, models.ErrNotFound)
}

func (a *app) resolveSessions(names []string) ([]*models.Session, error) {
	list := make([]*models.Session, 0, len(names))
	for _, n := range names {
		s, err := a.resolveSession(n)
		if err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, nil
}

// resolveNode maps a command-line argument to a tree node. Sessions are
// matched first; anything else is read as a folder path, with or without the
// root folder name in front. An empty argument names the root.
func (a *app) resolveNode(arg string) (hierarchy.NodeID, error) {
	if arg == "" {
		return hierarchy.RootID, nil
	}
	t := a.mgr.Tree()
	codec := a.mgr.Storage().Codec()
	candidates := []string{
		arg,
		codec.Encode(arg),
		models.FolderKey(arg),
		models.FolderKey(a.cfg.RootFolderName + a.cfg.PathSeparator + arg),
	}
	for _, key := range candidates {
		if id, ok := t.Find(key); ok {
			return id, nil
		}
	}
	return 0, fmt.Errorf("node %q: %w", arg, models.ErrNotFound)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

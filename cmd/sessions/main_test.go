package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iammorganparry/clive/apps/sessions/internal/models"
	"github.com/iammorganparry/clive/apps/sessions/internal/store"
)

const root = `Software\SimonTatham\PuTTY\Sessions`

// seedDB writes a default session into a fresh sqlite store.
func seedDB(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "sessions.db")
	db, err := store.OpenDB(dbPath)
	require.NoError(t, err)
	s := store.NewSQLiteStore(db)
	h, err := s.Create(store.Join(root, models.DefaultSessionKey))
	require.NoError(t, err)
	require.NoError(t, h.Set(models.AttrUsername, models.StringValue("admin")))
	require.NoError(t, h.Set(models.AttrProtocol, models.StringValue("ssh")))
	require.NoError(t, h.Close())
	require.NoError(t, s.Close())

	t.Setenv("SESSIONS_CONFIG", "")
	t.Setenv("STORE_BACKEND", "sqlite")
	t.Setenv("SESSIONS_DB_PATH", dbPath)
	t.Setenv("LOG_LEVEL", "error")
	return dbPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd, a := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	require.NoError(t, a.close())
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	require.NoError(t, err, out)
	return out
}

func showSession(t *testing.T, name string) models.SessionDetail {
	t.Helper()
	var detail models.SessionDetail
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "show", "--json", name)), &detail))
	return detail
}

func TestCLIWorkflow(t *testing.T) {
	seedDB(t)

	out := mustRun(t, "new", "web01", "--host", "10.0.0.1", "--folder", `Sessions\Prod`, "--set", "PortNumber:dword=2222")
	assert.Contains(t, out, "created web01")
	mustRun(t, "new", "db01", "--host", "10.0.0.2", "--folder", `Sessions\Prod`, "--copy-username")

	detail := showSession(t, "web01")
	assert.Equal(t, `Sessions\Prod`, detail.Session.FolderPath)
	assert.Equal(t, 2222, detail.Session.PortNumber)
	assert.Equal(t, "", detail.Session.Username)
	assert.Equal(t, "admin", showSession(t, "db01").Session.Username)

	assert.Contains(t, mustRun(t, "tree"), "Prod")

	// Folders can be named with or without the root folder.
	mustRun(t, "mkdir", "Ops", "web01")
	assert.Equal(t, `Sessions\Ops`, showSession(t, "web01").Session.FolderPath)

	mustRun(t, "rename-folder", "Ops", "Operations")
	assert.Equal(t, `Sessions\Operations`, showSession(t, "web01").Session.FolderPath)

	mustRun(t, "mv", "db01", "")
	assert.Equal(t, "Sessions", showSession(t, "db01").Session.FolderPath)

	mustRun(t, "copy-attrs", "web01", "db01", "--policy", "include", "--attr", "PortNumber")
	assert.Equal(t, 2222, showSession(t, "db01").Session.PortNumber)

	mustRun(t, "rename", "web01", "web 01")
	assert.Equal(t, "web%2001", showSession(t, "web 01").Session.Name)

	var list []models.Session
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "list", "--json")), &list))
	assert.Len(t, list, 3)

	mustRun(t, "rm", "web 01", "db01")
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "list", "--json")), &list))
	assert.Len(t, list, 1)
}

func TestCLIExportImport(t *testing.T) {
	seedDB(t)
	mustRun(t, "new", "web01", "--host", "10.0.0.1")

	reg := mustRun(t, "export", "web01")
	assert.Contains(t, reg, `[HKEY_CURRENT_USER\Software\SimonTatham\PuTTY\Sessions\web01]`)

	backup := filepath.Join(t.TempDir(), "backup.yaml")
	mustRun(t, "export", "--all", "--format", "yaml", "-o", backup)

	mustRun(t, "rm", "web01")
	_, err := run(t, "show", "web01")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = run(t, "import", backup)
	assert.ErrorIs(t, err, models.ErrDuplicateName)

	mustRun(t, "import", "--overwrite", backup)
	assert.Equal(t, "10.0.0.1", showSession(t, "web01").Session.Hostname)
}

func TestCLIErrors(t *testing.T) {
	seedDB(t)

	_, err := run(t, "new", "Default Settings")
	assert.ErrorIs(t, err, models.ErrInvalidName)

	_, err = run(t, "new", "x", "--template", "ghost")
	assert.ErrorIs(t, err, models.ErrTemplateMissing)

	_, err = run(t, "mv", "nothing", "")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = run(t, "export")
	assert.Error(t, err)

	_, err = run(t, "copy-attrs", "Default Settings", "Default Settings", "--policy", "some")
	assert.Error(t, err)
}

func TestCLILaunchWarning(t *testing.T) {
	seedDB(t)
	t.Setenv("FOLDER_LAUNCH_WARNING", "1")
	mustRun(t, "new", "a", "--folder", `Sessions\Web`)
	mustRun(t, "new", "b", "--folder", `Sessions\Web`)

	_, err := run(t, "launch", "Web")
	assert.Error(t, err)

	out := mustRun(t, "launch", "Web", "--yes")
	assert.Equal(t, "a\nb\n", out)
}

func TestParseOverrides(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    models.Attributes
		wantErr bool
	}{
		{"string", []string{"TermType=xterm"}, models.Attributes{"TermType": models.StringValue("xterm")}, false},
		{"dword", []string{"PortNumber:dword=22"}, models.Attributes{"PortNumber": models.DWordValue(22)}, false},
		{"empty value", []string{"RemoteCommand="}, models.Attributes{"RemoteCommand": models.StringValue("")}, false},
		{"missing equals", []string{"TermType"}, nil, true},
		{"bad kind", []string{"X:qword=1"}, nil, true},
		{"bad dword", []string{"X:dword=abc"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseOverrides(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

package models

import (
	"fmt"
	"strings"
)

// CopyPolicy selects which template attributes a bulk copy writes.
type CopyPolicy string

const (
	CopyAll     CopyPolicy = "ALL"
	CopyExclude CopyPolicy = "EXCLUDE"
	CopyInclude CopyPolicy = "INCLUDE"
)

// ParseCopyPolicy accepts the policy names case-insensitively.
func ParseCopyPolicy(s string) (CopyPolicy, error) {
	switch p := CopyPolicy(strings.ToUpper(s)); p {
	case CopyAll, CopyExclude, CopyInclude:
		return p, nil
	}
	return "", fmt.Errorf("unknown copy policy %q", s)
}

// NewSessionRequest describes a session created from a template.
type NewSessionRequest struct {
	Template            *Session
	SessionName         string
	SessionFolder       string
	Hostname            string
	Overrides           Attributes
	CopyDefaultUsername bool
}

// CopySessionRequest describes a bulk attribute copy.
type CopySessionRequest struct {
	Template           *Session
	TargetSessions     []*Session
	Policy             CopyPolicy
	SelectedAttributes []string
}

// Selected reports whether name is one of the selected attributes.
func (r *CopySessionRequest) Selected(name string) bool {
	for _, a := range r.SelectedAttributes {
		if a == name {
			return true
		}
	}
	return false
}

// Event tells the caller what a mutation changed. It replaces observer callbacks.
type Event struct {
	// Invalidate is set when the session list or tree changed and views should redraw.
	Invalidate bool `json:"invalidate"`
	// Reload is set when the store must be re-read before the tree is trusted again.
	Reload bool `json:"reload"`
	// Persisted counts records written back to the store.
	Persisted int `json:"persisted"`
	// Pruned lists the folder paths removed because they became empty.
	Pruned []string `json:"pruned,omitempty"`
}

// --- HTTP payloads ---

// CreateSessionRequest is the payload for POST /sessions.
type CreateSessionRequest struct {
	Template            string                   `json:"template" validate:"required"`
	Name                string                   `json:"name" validate:"required"`
	Folder              string                   `json:"folder"`
	Hostname            string                   `json:"hostname"`
	Overrides           map[string]AttributeView `json:"overrides,omitempty"`
	CopyDefaultUsername bool                     `json:"copyDefaultUsername"`
}

// RenameSessionRequest is the payload for POST /sessions/{name}/rename.
type RenameSessionRequest struct {
	NewName string `json:"newName" validate:"required"`
}

// SessionNamesRequest is the payload for batch endpoints that take session names.
type SessionNamesRequest struct {
	Names []string `json:"names" validate:"required,min=1,dive,required"`
}

// CopyAttributesRequest is the payload for POST /sessions/copy-attributes.
type CopyAttributesRequest struct {
	Template   string   `json:"template" validate:"required"`
	Targets    []string `json:"targets" validate:"required,min=1,dive,required"`
	Policy     string   `json:"policy" validate:"required,oneof=ALL EXCLUDE INCLUDE all exclude include"`
	Attributes []string `json:"attributes"`
}

// BackupRequest is the payload for POST /sessions/backup.
type BackupRequest struct {
	Names  []string `json:"names" validate:"required,min=1,dive,required"`
	Path   string   `json:"path" validate:"required"`
	Format string   `json:"format" validate:"omitempty,oneof=reg yaml"`
}

// BackupResponse reports how many records were written.
type BackupResponse struct {
	Count int    `json:"count"`
	Path  string `json:"path"`
}

// TreeMoveRequest is the payload for POST /tree/move and POST /tree/copy.
type TreeMoveRequest struct {
	Node   string `json:"node" validate:"required"`
	Target string `json:"target" validate:"required"`
}

// CreateFolderRequest is the payload for POST /tree/folders. When Wrap is set the
// named node is moved into the new folder, which is created next to it.
type CreateFolderRequest struct {
	Parent string `json:"parent"`
	Wrap   string `json:"wrap"`
	Name   string `json:"name" validate:"required"`
}

// RenameFolderRequest is the payload for POST /tree/folders/rename.
type RenameFolderRequest struct {
	Node    string `json:"node" validate:"required"`
	NewName string `json:"newName" validate:"required"`
}

// SessionDetail is returned from GET /sessions/{name}.
type SessionDetail struct {
	Session    *Session                 `json:"session"`
	Attributes map[string]AttributeView `json:"attributes"`
}

// TreeNode is the JSON encoding of one tree node.
type TreeNode struct {
	Key      string      `json:"key"`
	Kind     string      `json:"kind"`
	Name     string      `json:"name"`
	Path     string      `json:"path,omitempty"`
	Session  *Session    `json:"session,omitempty"`
	Children []*TreeNode `json:"children,omitempty"`
}

// MutationResponse is returned from tree mutation endpoints.
type MutationResponse struct {
	Event Event  `json:"event"`
	Key   string `json:"key,omitempty"`
}

// HealthResponse is returned from GET /health.
type HealthResponse struct {
	Status       string       `json:"status"`
	Store        ServiceCheck `json:"store"`
	SessionCount int          `json:"sessionCount"`
}

type ServiceCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

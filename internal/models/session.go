package models

import "fmt"

// Attribute names with meaning to the engine. Everything else is passed through.
const (
	AttrFolder          = "PsmPath"
	AttrHostname        = "HostName"
	AttrUsername        = "UserName"
	AttrProtocol        = "Protocol"
	AttrPortNumber      = "PortNumber"
	AttrPortForwardings = "PortForwardings"
	AttrRemoteCommand   = "RemoteCommand"
)

// DefaultSessionKey is the store key of the session new sessions are templated from.
const DefaultSessionKey = "Default%20Settings"

// Entry is a tree payload: either a *Session backed by a store record or a synthetic
// *Folder. The set of implementations is closed.
type Entry interface {
	Key() string
	Display() string
	entry()
}

// Session is one record in the flat store.
type Session struct {
	Name          string `json:"name"`
	DisplayText   string `json:"displayText"`
	FolderPath    string `json:"folderPath"`
	Hostname      string `json:"hostname,omitempty"`
	Username      string `json:"username,omitempty"`
	Protocol      string `json:"protocol,omitempty"`
	PortForwards  string `json:"portForwards,omitempty"`
	RemoteCommand string `json:"remoteCommand,omitempty"`
	PortNumber    int    `json:"portNumber"`
}

// NewSession builds a session from its store key, decoding the display text.
func NewSession(codec KeyCodec, name, folderPath string) *Session {
	return &Session{
		Name:        name,
		DisplayText: codec.Decode(name),
		FolderPath:  folderPath,
		PortNumber:  -1,
	}
}

func (s *Session) Key() string { return s.Name }
func (s *Session) Display() string { return s.DisplayText }
func (*Session) entry() {}

// ToolTip is the one-line summary shown next to a session.
func (s *Session) ToolTip() string {
	if s.Username != "" {
		return fmt.Sprintf("%s@%s", s.Username, s.Hostname)
	}
	return s.Hostname
}

// Clone returns a copy that can be mutated independently.
func (s *Session) Clone() *Session {
	c := *s
	return &c
}

// Folder is a synthetic grouping node. It exists only in the tree.
type Folder struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

func (f *Folder) Key() string { return FolderKey(f.Path) }
func (f *Folder) Display() string { return f.Name }
func (*Folder) entry() {}

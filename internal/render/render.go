package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/lipgloss/tree"

	"github.com/iammorganparry/clive/apps/sessions/internal/hierarchy"
	"github.com/iammorganparry/clive/apps/sessions/internal/models"
)

// Tree draws the folder tree from the root down. Sessions show their tooltip
// next to the display name.
func Tree(t *hierarchy.Tree) string {
	return subtree(t, hierarchy.RootID).
		Enumerator(tree.RoundedEnumerator).
		EnumeratorStyle(EnumeratorStyle).
		RootStyle(RootStyle).
		String()
}

func subtree(t *hierarchy.Tree, id hierarchy.NodeID) *tree.Tree {
	node := tree.Root(t.Entry(id).Display())
	for _, c := range t.Children(id) {
		switch e := t.Entry(c).(type) {
		case *models.Folder:
			node.Child(subtree(t, c).RootStyle(FolderStyle))
		case *models.Session:
			node.Child(sessionLine(e))
		}
	}
	return node
}

func sessionLine(s *models.Session) string {
	line := SessionStyle.Render(s.DisplayText)
	if tip := s.ToolTip(); tip != "" {
		line += " " + ToolTipStyle.Render(tip)
	}
	return line
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ColorBorder)).
		Headers(headers...)
}

// Sessions draws the session list as a table.
func Sessions(list []*models.Session) string {
	t := newTable("NAME", "FOLDER", "HOST", "USER", "PROTOCOL", "PORT").
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case col == 1:
				return TableDimCellStyle
			default:
				return TableCellStyle
			}
		})
	for _, s := range list {
		port := ""
		if s.PortNumber >= 0 {
			port = fmt.Sprint(s.PortNumber)
		}
		t.Row(s.DisplayText, s.FolderPath, s.Hostname, s.Username, s.Protocol, port)
	}
	return t.String()
}

// Attributes draws every stored value of a session, sorted by name.
func Attributes(s *models.Session, attrs models.Attributes) string {
	names := make([]string, 0, len(attrs))
	for n := range attrs {
		names = append(names, n)
	}
	sort.Strings(names)

	t := newTable("ATTRIBUTE", "KIND", "VALUE").
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case col == 1:
				return KindStyle
			default:
				return TableCellStyle
			}
		})
	for _, n := range names {
		v := attrs[n]
		t.Row(n, v.Kind.String(), v.String())
	}

	var b strings.Builder
	b.WriteString(HeaderStyle.Render(s.DisplayText))
	if s.Name != s.DisplayText {
		b.WriteString(" " + ToolTipStyle.Render("("+s.Name+")"))
	}
	b.WriteString("\n")
	b.WriteString(t.String())
	return b.String()
}

// Event summarises a mutation result on one line.
func Event(ev models.Event) string {
	var parts []string
	if ev.Persisted > 0 {
		parts = append(parts, fmt.Sprintf("%d record(s) written", ev.Persisted))
	}
	if len(ev.Pruned) > 0 {
		parts = append(parts, "pruned "+strings.Join(ev.Pruned, ", "))
	}
	if ev.Reload {
		return WarnStyle.Render("store changed underneath, reload required")
	}
	if len(parts) == 0 {
		parts = append(parts, "no changes written")
	}
	return SuccessStyle.Render(strings.Join(parts, "; "))
}

// Error renders an error for the status line.
func Error(err error) string {
	return ErrorStyle.Render("error: " + err.Error())
}

// Package render draws sessions and the folder tree for the terminal.
package render

import "github.com/charmbracelet/lipgloss"

// One Dark Pro color palette
var (
	ColorFgPrimary   = lipgloss.Color("#ABB2BF")
	ColorFgSecondary = lipgloss.Color("#828997")
	ColorFgComment   = lipgloss.Color("#5C6370")

	ColorRed     = lipgloss.Color("#E06C75")
	ColorGreen   = lipgloss.Color("#98C379")
	ColorYellow  = lipgloss.Color("#E5C07B")
	ColorBlue    = lipgloss.Color("#61AFEF")
	ColorMagenta = lipgloss.Color("#C678DD")
	ColorCyan    = lipgloss.Color("#56B6C2")

	ColorBorder = lipgloss.Color("#3F4451")
)

var (
	HeaderStyle = lipgloss.NewStyle().
			Foreground(ColorRed).
			Bold(true)

	// Tree styles
	RootStyle = lipgloss.NewStyle().
			Foreground(ColorMagenta).
			Bold(true)

	FolderStyle = lipgloss.NewStyle().
			Foreground(ColorBlue).
			Bold(true)

	SessionStyle = lipgloss.NewStyle().
			Foreground(ColorFgPrimary)

	ToolTipStyle = lipgloss.NewStyle().
			Foreground(ColorFgComment)

	EnumeratorStyle = lipgloss.NewStyle().
			Foreground(ColorBorder).
			PaddingRight(1)

	// Table styles
	TableHeaderStyle = lipgloss.NewStyle().
				Foreground(ColorMagenta).
				Bold(true).
				Padding(0, 1)

	TableCellStyle = lipgloss.NewStyle().
			Foreground(ColorFgPrimary).
			Padding(0, 1)

	TableDimCellStyle = lipgloss.NewStyle().
				Foreground(ColorFgSecondary).
				Padding(0, 1)

	KindStyle = lipgloss.NewStyle().
			Foreground(ColorCyan).
			Padding(0, 1)

	// Status line styles
	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorGreen)

	WarnStyle = lipgloss.NewStyle().
			Foreground(ColorYellow)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorRed).
			Bold(true)
)

// Package style provides the terminal styles used by planmd output.
package style

import "github.com/charmbracelet/lipgloss"

var (
	// Bold is used for headers and summaries.
	Bold = lipgloss.NewStyle().Bold(true)

	// Dim is used for secondary details.
	Dim = lipgloss.NewStyle().Faint(true)

	// Success marks passing checks.
	Success = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)

	// Error marks failing checks.
	Error = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)

	// Warning marks fallbacks and non-fatal problems.
	Warning = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
)

// Icons used in command output.
const (
	IconPass = "✓"
	IconFail = "✗"
	IconStep = "○"
)

// Package cli renders normalized grading results for the terminal.
package cli

import (
	"github.com/charmbracelet/lipgloss"

	types "github.com/okian/gradeboard/internal/domain/types"
)

// Status colours, best to worst.
var (
	ColorExcellent        = lipgloss.Color("#2E7D32")
	ColorGood             = lipgloss.Color("#8BC34A")
	ColorSatisfactory     = lipgloss.Color("#FFC107")
	ColorNeedsImprovement = lipgloss.Color("#FF8A65")
	ColorUnsatisfactory   = lipgloss.Color("#E53935")
	ColorPending          = lipgloss.Color("#9E9E9E")
	ColorBorder           = lipgloss.Color("#5C6B7A")
)

var statusColors = map[types.Status]lipgloss.Color{
	types.StatusExcellent:        ColorExcellent,
	types.StatusGood:             ColorGood,
	types.StatusSatisfactory:     ColorSatisfactory,
	types.StatusNeedsImprovement: ColorNeedsImprovement,
	types.StatusUnsatisfactory:   ColorUnsatisfactory,
	types.StatusPending:          ColorPending,
}

// Styles groups the styles used by the renderers.
type Styles struct {
	Title  lipgloss.Style
	Header lipgloss.Style
	Cell   lipgloss.Style
	Muted  lipgloss.Style
}

// DefaultStyles returns the standard palette.
func DefaultStyles() Styles {
	return Styles{
		Title:  lipgloss.NewStyle().Bold(true).MarginBottom(1),
		Header: lipgloss.NewStyle().Bold(true).Padding(0, 1),
		Cell:   lipgloss.NewStyle().Padding(0, 1),
		Muted:  lipgloss.NewStyle().Foreground(ColorBorder),
	}
}

// StatusStyle returns the foreground style for s. Unknown statuses render
// like Pending.
func StatusStyle(s types.Status) lipgloss.Style {
	c, ok := statusColors[s]
	if !ok {
		c = ColorPending
	}
	return lipgloss.NewStyle().Foreground(c).Bold(s == types.StatusExcellent)
}

// Status renders s in its colour.
func Status(s types.Status) string {
	return StatusStyle(s).Render(string(s))
}

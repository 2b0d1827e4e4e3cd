// Package theme holds the terminal styles of the teach and review commands.
package theme

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"
)

// Color palette
var (
	Primary   = lipgloss.Color("#6366F1") // Indigo
	Secondary = lipgloss.Color("#14B8A6") // Teal
	Accent    = lipgloss.Color("#F59E0B") // Amber
	Success   = lipgloss.Color("#22C55E") // Green
	Error     = lipgloss.Color("#F43F5E") // Rose
	Text      = lipgloss.Color("#F8FAFC") // White
	TextDim   = lipgloss.Color("#94A3B8") // Slate
	Border    = lipgloss.Color("#334155") // Slate
)

// Typography
var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary)

	Body = lipgloss.NewStyle().
		Foreground(Text)

	Hint = lipgloss.NewStyle().
		Foreground(TextDim).
		Italic(true)

	Label = lipgloss.NewStyle().
		Foreground(TextDim).
		Width(12)
)

// Conversation
var (
	Persona = lipgloss.NewStyle().
		Foreground(Secondary).
		Bold(true)

	Question = lipgloss.NewStyle().
			Foreground(Accent)

	Card = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Border).
		Padding(0, 1)
)

// States
var (
	Good = lipgloss.NewStyle().
		Foreground(Success).
		Bold(true)

	Bad = lipgloss.NewStyle().
		Foreground(Error).
		Bold(true)
)

const (
	barFilled = "█"
	barEmpty  = "░"
)

// ScoreBar draws v in [0,1] as a width-cell bar followed by the percentage.
// Scores at or above 0.7 are drawn in the success color.
func ScoreBar(v float64, width int) string {
	v = min(max(v, 0), 1)
	if width <= 0 {
		width = 10
	}
	n := int(v*float64(width) + 0.5)

	style := Bad
	if v >= 0.7 {
		style = Good
	}
	bar := style.Render(strings.Repeat(barFilled, n)) + Hint.Render(strings.Repeat(barEmpty, width-n))
	return fmt.Sprintf("%s %3.0f%%", bar, v*100)
}

// Bullets renders items as a dimmed heading plus one "•" line per item,
// or nothing when items is empty.
func Bullets(heading string, items []string) string {
	if len(items) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(Hint.Render(heading))
	for _, it := range items {
		b.WriteString("\n  • ")
		b.WriteString(Body.Render(it))
	}
	return b.String()
}

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/lotas/mailvox/internal/types"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	glyphStyle   = lipgloss.NewStyle().Bold(true)
	stateStyle   = lipgloss.NewStyle().Faint(true)
	summaryStyle = lipgloss.NewStyle().PaddingLeft(2)
	noticeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle    = lipgloss.NewStyle().Faint(true)
)

// glyph returns the widget's icon for each visual state.
func glyph(s types.State) string {
	switch s {
	case types.Idle:
		return "✉"
	case types.Requesting:
		return "⟳"
	case types.PlayReady:
		return "▶"
	case types.Playing:
		return "♪"
	case types.Paused:
		return "⏸"
	case types.Unreachable:
		return "✖"
	default:
		return "?"
	}
}

const barWidth = 30

func progressBar(frac float64) string {
	filled := int(frac * barWidth)
	if filled > barWidth {
		filled = barWidth
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("mailvox"))
	b.WriteString("\n\n")

	state := m.machine.State()
	g := glyphStyle.Render(glyph(state))
	if state == types.Unreachable {
		g = errorStyle.Render(glyph(state))
	}
	fmt.Fprintf(&b, "  %s  %s\n", g, stateStyle.Render(state.String()))

	if state == types.Playing || state == types.Paused {
		fmt.Fprintf(&b, "  %s %3.0f%%\n", progressBar(m.machine.Progress()), m.machine.Progress()*100)
	}

	if summary := m.machine.Result().Summary; summary != "" {
		b.WriteString("\n")
		b.WriteString(summaryStyle.Render(wrap(summary, 72)))
		b.WriteString("\n")
	}

	if notice := m.machine.Notice(); notice != "" {
		b.WriteString("\n  ")
		b.WriteString(noticeStyle.Render(notice))
		b.WriteString("\n")
	}

	if m.status != "" {
		b.WriteString("\n  ")
		b.WriteString(stateStyle.Render(m.status))
		b.WriteString("\n")
	}

	if m.srv != nil {
		line := fmt.Sprintf("extension: waiting on :%d", m.srv.Port())
		if m.srv.Connected() {
			line = "extension: connected"
		}
		b.WriteString("\n  ")
		b.WriteString(stateStyle.Render(line))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	help := "space: play/pause · q: quit"
	if m.machine.Downloadable() {
		help = "space: play/pause · d: download · q: quit"
	}
	b.WriteString(helpStyle.Render("  " + help))
	b.WriteString("\n")

	return b.String()
}

// wrap breaks text into lines at most width runes long, on word boundaries.
func wrap(text string, width int) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}
	var lines []string
	line := words[0]
	for _, w := range words[1:] {
		if len(line)+1+len(w) > width {
			lines = append(lines, line)
			line = w
			continue
		}
		line += " " + w
	}
	lines = append(lines, line)
	return strings.Join(lines, "\n")
}

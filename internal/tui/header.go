package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Header renders the run title and the aggregate progress bar.
type Header struct {
	runName        string
	progress       float64
	checkpointedAt time.Time
	width          int
}

// NewHeader creates a new Header.
func NewHeader(runName string) *Header {
	return &Header{
		runName: runName,
		width:   80,
	}
}

// SetWidth sets the header width.
func (h *Header) SetWidth(width int) {
	h.width = width
}

// SetProgress updates the aggregate progress shown in the bar.
func (h *Header) SetProgress(progress float64, checkpointedAt time.Time) {
	h.progress = progress
	h.checkpointedAt = checkpointedAt
}

// View renders the header.
func (h *Header) View() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("75")).
		Render("concord")
	name := lipgloss.NewStyle().
		Foreground(lipgloss.Color("252")).
		Render(h.runName)

	barWidth := h.width - 30
	if barWidth < 10 {
		barWidth = 10
	}
	filled := int(h.progress * float64(barWidth))
	if filled > barWidth {
		filled = barWidth
	}
	bar := lipgloss.NewStyle().Foreground(lipgloss.Color("34")).Render(strings.Repeat("█", filled)) +
		lipgloss.NewStyle().Foreground(lipgloss.Color("238")).Render(strings.Repeat("░", barWidth-filled))

	pct := fmt.Sprintf(" %3.0f%%", h.progress*100)

	updated := ""
	if !h.checkpointedAt.IsZero() {
		updated = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")).
			Render(fmt.Sprintf("  checkpoint %s", h.checkpointedAt.Format("15:04:05")))
	}

	line1 := lipgloss.NewStyle().Padding(0, 1).Render(title + "  " + name)
	line2 := lipgloss.NewStyle().Padding(0, 1).Render(bar + pct + updated)

	return lipgloss.JoinVertical(lipgloss.Left, line1, line2)
}

// Height returns the header height in lines.
func (h *Header) Height() int {
	return 2
}

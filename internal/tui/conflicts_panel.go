package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/concordlabs/concord/internal/monitor"
	"github.com/concordlabs/concord/pkg/models"
)

// ConflictsPanel displays the conflict list and the open-issue feed in
// a scrollable viewport.
type ConflictsPanel struct {
	conflicts []*models.Conflict
	issues    []monitor.Issue
	viewport  viewport.Model
	width     int
	height    int
	focused   bool

	titleStyle    lipgloss.Style
	borderStyle   lipgloss.Style
	lowStyle      lipgloss.Style
	mediumStyle   lipgloss.Style
	highStyle     lipgloss.Style
	criticalStyle lipgloss.Style
	resolvedStyle lipgloss.Style
	dimStyle      lipgloss.Style
}

// NewConflictsPanel creates a new ConflictsPanel instance.
func NewConflictsPanel() *ConflictsPanel {
	return &ConflictsPanel{
		viewport: viewport.New(40, 10),

		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Padding(0, 1),

		borderStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")),

		lowStyle:      lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		mediumStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")), // Orange
		highStyle:     lipgloss.NewStyle().Foreground(lipgloss.Color("203")), // Light red
		criticalStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		resolvedStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("28")),
		dimStyle:      lipgloss.NewStyle().Foreground(lipgloss.Color("243")),
	}
}

// SetData updates the displayed conflicts and issues.
func (p *ConflictsPanel) SetData(conflicts []*models.Conflict, issues []monitor.Issue) {
	p.conflicts = conflicts
	p.issues = issues
	p.viewport.SetContent(p.content())
}

// SetSize updates the panel dimensions.
func (p *ConflictsPanel) SetSize(width, height int) {
	p.width = width
	p.height = height
	p.viewport.Width = width - 2
	p.viewport.Height = height - 3
	p.viewport.SetContent(p.content())
}

// SetFocused sets whether this panel has keyboard focus.
func (p *ConflictsPanel) SetFocused(focused bool) {
	p.focused = focused
}

// Update forwards scroll keys to the viewport.
func (p *ConflictsPanel) Update(msg tea.KeyMsg) tea.Cmd {
	if !p.focused {
		return nil
	}
	var cmd tea.Cmd
	p.viewport, cmd = p.viewport.Update(msg)
	return cmd
}

// severityStyle maps a severity to its display style.
func (p *ConflictsPanel) severityStyle(s models.Severity) lipgloss.Style {
	switch s {
	case models.SeverityCritical:
		return p.criticalStyle
	case models.SeverityHigh:
		return p.highStyle
	case models.SeverityMedium:
		return p.mediumStyle
	default:
		return p.lowStyle
	}
}

func (p *ConflictsPanel) content() string {
	var lines []string

	for _, c := range p.conflicts {
		marker := p.severityStyle(c.Severity).Render("●")
		status := p.dimStyle.Render("open")
		if c.Resolved {
			method := ""
			if c.Resolution != nil {
				method = c.Resolution.Method
			}
			status = p.resolvedStyle.Render("resolved:" + method)
		}
		lines = append(lines, fmt.Sprintf(" %s %s [%s] %s", marker, c.Type, status, c.Description))
	}
	if len(p.conflicts) == 0 {
		lines = append(lines, p.dimStyle.Render("  no conflicts"))
	}

	if len(p.issues) > 0 {
		lines = append(lines, "")
		lines = append(lines, p.dimStyle.Render(" Issues"))
		for _, issue := range p.issues {
			marker := p.severityStyle(issue.Severity).Render("!")
			lines = append(lines, fmt.Sprintf(" %s %s: %s", marker, issue.Type, issue.Description))
		}
	}

	return strings.Join(lines, "\n")
}

// View renders the panel.
func (p *ConflictsPanel) View() string {
	innerWidth := p.width - 2
	if innerWidth < 10 {
		innerWidth = 10
	}

	title := p.titleStyle.Render(fmt.Sprintf("Conflicts (%d)", len(p.conflicts)))
	content := lipgloss.JoinVertical(lipgloss.Left, title, p.viewport.View())
	return p.borderStyle.Width(innerWidth).Height(p.height - 2).Render(content)
}

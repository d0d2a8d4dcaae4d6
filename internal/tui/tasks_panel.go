package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/concordlabs/concord/pkg/models"
)

// TasksPanel displays a scrollable list of tasks with status indicators.
type TasksPanel struct {
	tasks        []*models.Task
	progress     map[string]float64
	selected     int
	scrollOffset int
	width        int
	height       int
	focused      bool

	titleStyle    lipgloss.Style
	borderStyle   lipgloss.Style
	selectedStyle lipgloss.Style
	pendingStyle  lipgloss.Style
	runningStyle  lipgloss.Style
	doneStyle     lipgloss.Style
	failedStyle   lipgloss.Style
}

// NewTasksPanel creates a new TasksPanel instance.
func NewTasksPanel() *TasksPanel {
	return &TasksPanel{
		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Padding(0, 1),

		borderStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")),

		selectedStyle: lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("15")).
			Bold(true),

		pendingStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")), // Gray

		runningStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")), // Green

		doneStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("28")), // Dark green

		failedStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")), // Red
	}
}

// SetTasks updates the displayed tasks and their tracked progress.
func (p *TasksPanel) SetTasks(tasks []*models.Task, progress map[string]float64) {
	p.tasks = tasks
	p.progress = progress
	if p.selected >= len(tasks) {
		p.selected = len(tasks) - 1
	}
	if p.selected < 0 {
		p.selected = 0
	}
}

// SetSize updates the panel dimensions.
func (p *TasksPanel) SetSize(width, height int) {
	p.width = width
	p.height = height
}

// SetFocused sets whether this panel has keyboard focus.
func (p *TasksPanel) SetFocused(focused bool) {
	p.focused = focused
}

// Update handles navigation keys.
func (p *TasksPanel) Update(msg tea.KeyMsg) {
	if !p.focused {
		return
	}
	switch msg.String() {
	case "up", "k":
		if p.selected > 0 {
			p.selected--
		}
	case "down", "j":
		if p.selected < len(p.tasks)-1 {
			p.selected++
		}
	}
	p.clampScroll()
}

func (p *TasksPanel) clampScroll() {
	visible := p.height - 3 // borders + title
	if visible < 1 {
		visible = 1
	}
	if p.selected < p.scrollOffset {
		p.scrollOffset = p.selected
	}
	if p.selected >= p.scrollOffset+visible {
		p.scrollOffset = p.selected - visible + 1
	}
}

// statusIcon returns the glyph and style for a task status.
func (p *TasksPanel) statusIcon(status models.TaskStatus) (string, lipgloss.Style) {
	switch status {
	case models.TaskStatusInProgress:
		return "▶", p.runningStyle
	case models.TaskStatusCompleted:
		return "✓", p.doneStyle
	case models.TaskStatusFailed:
		return "✗", p.failedStyle
	default:
		return "○", p.pendingStyle
	}
}

// View renders the panel.
func (p *TasksPanel) View() string {
	innerWidth := p.width - 2
	if innerWidth < 10 {
		innerWidth = 10
	}
	visible := p.height - 3
	if visible < 1 {
		visible = 1
	}

	var lines []string
	lines = append(lines, p.titleStyle.Render(fmt.Sprintf("Tasks (%d)", len(p.tasks))))

	end := p.scrollOffset + visible
	if end > len(p.tasks) {
		end = len(p.tasks)
	}
	for i := p.scrollOffset; i < end; i++ {
		t := p.tasks[i]
		icon, style := p.statusIcon(t.Status)

		label := t.Title
		if label == "" {
			label = t.ID
		}
		suffix := ""
		if t.Status == models.TaskStatusInProgress {
			suffix = fmt.Sprintf(" %3.0f%%", p.progress[t.ID]*100)
		}
		if t.AssignedTo != "" {
			suffix += " @" + t.AssignedTo
		}

		line := fmt.Sprintf(" %s %s%s", style.Render(icon), label, suffix)
		if len(line) > innerWidth {
			line = line[:innerWidth]
		}
		if i == p.selected && p.focused {
			line = p.selectedStyle.Render(line)
		}
		lines = append(lines, line)
	}
	if len(p.tasks) == 0 {
		lines = append(lines, p.pendingStyle.Render("  no tasks yet"))
	}

	content := strings.Join(lines, "\n")
	return p.borderStyle.Width(innerWidth).Height(p.height - 2).Render(content)
}

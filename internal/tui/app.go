// Package tui implements the live coordination dashboard shown by
// `concord watch`: aggregate progress, the task list, and the conflict
// and issue feed.
package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/concordlabs/concord/internal/monitor"
	"github.com/concordlabs/concord/pkg/models"
)

// Panel indices.
const (
	PanelTasks     = 0
	PanelConflicts = 1
)

// StateUpdateMsg carries a fresh ledger snapshot into the dashboard.
// The watch command sends one whenever the checkpoint file changes.
type StateUpdateMsg struct {
	Tasks           []*models.Task
	Conflicts       []*models.Conflict
	Issues          []monitor.Issue
	OverallProgress float64
	Progress        map[string]float64
	CheckpointedAt  time.Time
}

// WatchErrorMsg surfaces a checkpoint reload failure in the footer.
type WatchErrorMsg struct {
	Err error
}

// App is the main bubbletea model for the dashboard.
type App struct {
	header         *Header
	tasksPanel     *TasksPanel
	conflictsPanel *ConflictsPanel
	spinner        spinner.Model

	focusedPanel int
	width        int
	height       int
	quitting     bool
	loaded       bool
	lastErr      error
}

// NewApp creates a dashboard with no data yet; the first StateUpdateMsg
// populates it.
func NewApp(runName string) *App {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return &App{
		header:         NewHeader(runName),
		tasksPanel:     NewTasksPanel(),
		conflictsPanel: NewConflictsPanel(),
		spinner:        sp,
		focusedPanel:   PanelTasks,
	}
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return a.spinner.Tick
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			a.quitting = true
			return a, tea.Quit
		case "tab", "shift+tab":
			if a.focusedPanel == PanelTasks {
				a.focusedPanel = PanelConflicts
			} else {
				a.focusedPanel = PanelTasks
			}
			a.updatePanelFocus()
		}

		// Forward navigation keys to the focused panel.
		switch a.focusedPanel {
		case PanelTasks:
			a.tasksPanel.Update(msg)
		case PanelConflicts:
			cmds = append(cmds, a.conflictsPanel.Update(msg))
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.updatePanelSizes()

	case StateUpdateMsg:
		a.loaded = true
		a.lastErr = nil
		a.header.SetProgress(msg.OverallProgress, msg.CheckpointedAt)
		a.tasksPanel.SetTasks(msg.Tasks, msg.Progress)
		a.conflictsPanel.SetData(msg.Conflicts, msg.Issues)

	case WatchErrorMsg:
		a.lastErr = msg.Err

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	return a, tea.Batch(cmds...)
}

// View implements tea.Model.
func (a *App) View() string {
	if a.quitting {
		return ""
	}
	if !a.loaded {
		return "\n  " + a.spinner.View() + " waiting for first checkpoint...\n"
	}

	header := a.header.View()
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		a.tasksPanel.View(),
		a.conflictsPanel.View(),
	)
	footer := a.footerView()

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (a *App) footerView() string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Padding(0, 1)
	if a.lastErr != nil {
		errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Padding(0, 1)
		return errStyle.Render("reload failed: " + a.lastErr.Error())
	}
	return style.Render("tab: switch panel • q: quit")
}

func (a *App) updatePanelFocus() {
	a.tasksPanel.SetFocused(a.focusedPanel == PanelTasks)
	a.conflictsPanel.SetFocused(a.focusedPanel == PanelConflicts)
}

func (a *App) updatePanelSizes() {
	headerHeight := a.header.Height()
	footerHeight := 1
	bodyHeight := a.height - headerHeight - footerHeight
	if bodyHeight < 3 {
		bodyHeight = 3
	}

	// Tasks take the left 60%, conflicts the rest.
	taskWidth := a.width * 6 / 10
	a.header.SetWidth(a.width)
	a.tasksPanel.SetSize(taskWidth, bodyHeight)
	a.conflictsPanel.SetSize(a.width-taskWidth, bodyHeight)
}

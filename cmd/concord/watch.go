package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/concordlabs/concord/internal/config"
	"github.com/concordlabs/concord/internal/logging"
	"github.com/concordlabs/concord/internal/monitor"
	"github.com/concordlabs/concord/internal/state"
	"github.com/concordlabs/concord/internal/tui"
	"github.com/concordlabs/concord/pkg/models"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow a run live in a dashboard",
	Long: `Open the coordination dashboard. The dashboard reloads the
ledger whenever a concurrently running 'concord run' writes a new
checkpoint, so it can follow a run from a separate terminal.`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	dbPath := checkpointPath(cfg)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return fmt.Errorf("no checkpoint database at %s; start a run first", dbPath)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: SQLite writes land in the -wal sidecar, and
	// the main file may be replaced rather than modified in place.
	if err := watcher.Add(filepath.Dir(dbPath)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(dbPath), err)
	}

	cwd, _ := os.Getwd()
	app := tui.NewApp(filepath.Base(cwd))
	program := tea.NewProgram(app, tea.WithAltScreen())

	go watchCheckpoints(program, watcher, dbPath, cfg)

	_, err = program.Run()
	return err
}

// watchCheckpoints reloads the ledger on checkpoint writes and feeds
// snapshots to the dashboard. Events are debounced; SQLite touches the
// database several times per commit.
func watchCheckpoints(program *tea.Program, watcher *fsnotify.Watcher, dbPath string, cfg *config.Config) {
	sendSnapshot(program, dbPath, cfg)

	var pending <-chan time.Time
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !strings.HasPrefix(filepath.Base(event.Name), filepath.Base(dbPath)) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			pending = time.After(200 * time.Millisecond)

		case <-pending:
			pending = nil
			sendSnapshot(program, dbPath, cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			program.Send(tui.WatchErrorMsg{Err: err})
		}
	}
}

// sendSnapshot loads the latest checkpoint and pushes it into the
// dashboard.
func sendSnapshot(program *tea.Program, dbPath string, cfg *config.Config) {
	store, err := state.OpenStore(dbPath)
	if err != nil {
		program.Send(tui.WatchErrorMsg{Err: err})
		return
	}
	defer store.Close()

	st, err := store.LoadLatest()
	if err != nil {
		program.Send(tui.WatchErrorMsg{Err: err})
		return
	}
	if st == nil {
		return
	}

	checkpointedAt := time.Time{}
	if infos, err := store.ListCheckpoints(1); err == nil && len(infos) > 0 {
		checkpointedAt = infos[0].CreatedAt
	}

	thresholds := monitor.Thresholds{
		Stagnation:      cfg.Monitor.Stagnation,
		ProgressCeiling: cfg.Monitor.ProgressCeiling,
		FallbackFloor:   cfg.Monitor.FallbackFloor,
		MaxFailureRate:  cfg.Monitor.MaxFailureRate,
	}
	mon := monitor.New(st, nil, logging.Nop(), thresholds)

	tasks := st.AllTasks()
	progress := make(map[string]float64, len(tasks))
	for _, t := range tasks {
		if p, ok := st.Progress(t.ID); ok {
			progress[t.ID] = p
		} else if t.Status == models.TaskStatusCompleted {
			progress[t.ID] = 1.0
		}
	}

	report := mon.GenerateProgressReport()
	program.Send(tui.StateUpdateMsg{
		Tasks:           tasks,
		Conflicts:       st.Conflicts(),
		Issues:          mon.DetectCriticalIssues(),
		OverallProgress: report.OverallProgress,
		Progress:        progress,
		CheckpointedAt:  checkpointedAt,
	})
}

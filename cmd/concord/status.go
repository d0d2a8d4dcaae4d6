package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/concordlabs/concord/internal/config"
	"github.com/concordlabs/concord/internal/state"
	"github.com/concordlabs/concord/pkg/models"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of the latest checkpointed run",
	Long: `Display the latest checkpoint of the coordination ledger.

Shows:
  - Task counts per status bucket and overall completion
  - Agent utilization
  - Open and resolved conflicts
  - Recent checkpoints`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	dbPath := checkpointPath(cfg)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("No checkpoints found. Run 'concord run <plan.yaml>' to start.")
		return nil
	}

	store, err := state.OpenStore(dbPath)
	if err != nil {
		return fmt.Errorf("open checkpoint store: %w", err)
	}
	defer store.Close()

	st, err := store.LoadLatest()
	if err != nil {
		return fmt.Errorf("load latest checkpoint: %w", err)
	}
	if st == nil {
		fmt.Println("No checkpoints found. Run 'concord run <plan.yaml>' to start.")
		return nil
	}

	displayLedger(st)

	keep := cfg.Checkpoints.Keep
	if keep <= 0 {
		keep = 5
	}
	checkpoints, err := store.ListCheckpoints(keep)
	if err != nil {
		return fmt.Errorf("list checkpoints: %w", err)
	}
	displayCheckpoints(checkpoints)
	return nil
}

// checkpointPath resolves the checkpoint database location: explicit
// config dir first, then the run-local default.
func checkpointPath(cfg *config.Config) string {
	if cfg.Checkpoints.Dir != "" {
		return state.StorePath(cfg.Checkpoints.Dir)
	}
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return state.StorePath(cwd)
}

func displayLedger(st *state.TacticalState) {
	snap := st.Snapshot()
	metrics := st.Metrics()

	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)
	gray := color.New(color.FgHiBlack)

	bold.Println("Ledger")
	fmt.Printf("  Objectives: %d\n", snap.Objectives)
	fmt.Printf("  Tasks: %s pending, %s in progress, %s completed, %s failed\n",
		gray.Sprintf("%d", snap.Pending),
		yellow.Sprintf("%d", snap.InProgress),
		green.Sprintf("%d", snap.Completed),
		red.Sprintf("%d", snap.Failed))
	fmt.Printf("  Completion: %.0f%%\n", snap.CompletionRate*100)

	if len(metrics.AgentUtilization) > 0 {
		fmt.Println("  Agents:")
		for agent, count := range metrics.AgentUtilization {
			fmt.Printf("    %s: %d active tasks\n", agent, count)
		}
	}

	fmt.Println()
	bold.Println("Conflicts")
	if snap.Conflicts == 0 {
		gray.Println("  none")
	} else {
		fmt.Printf("  %d total, %d open (resolution rate %.0f%%)\n",
			snap.Conflicts, snap.OpenConflicts, snap.ResolutionRate*100)
		for _, c := range st.Conflicts() {
			if c.Resolved {
				continue
			}
			severityColor(c.Severity).Printf("  [%s] ", c.Severity)
			fmt.Printf("%s: %s\n", c.Type, c.Description)
		}
	}
	fmt.Println()
}

// severityColor maps a severity to its display color.
func severityColor(s models.Severity) *color.Color {
	switch s {
	case models.SeverityCritical:
		return color.New(color.FgRed, color.Bold)
	case models.SeverityHigh:
		return color.New(color.FgRed)
	case models.SeverityMedium:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgHiBlack)
	}
}

func displayCheckpoints(checkpoints []state.CheckpointInfo) {
	if len(checkpoints) == 0 {
		return
	}
	color.New(color.Bold).Println("Recent Checkpoints")
	for _, cp := range checkpoints {
		fmt.Printf("  %s  run %s  (%s ago)\n", cp.ID, cp.RunID, formatDuration(time.Since(cp.CreatedAt)))
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m > 0 {
			return fmt.Sprintf("%dh%dm", h, m)
		}
		return fmt.Sprintf("%dh", h)
	}
	days := int(d.Hours()) / 24
	return fmt.Sprintf("%dd", days)
}

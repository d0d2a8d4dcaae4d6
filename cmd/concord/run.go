package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/concordlabs/concord/internal/comms"
	"github.com/concordlabs/concord/internal/config"
	"github.com/concordlabs/concord/internal/conflict"
	"github.com/concordlabs/concord/internal/graph"
	"github.com/concordlabs/concord/internal/logging"
	"github.com/concordlabs/concord/internal/monitor"
	"github.com/concordlabs/concord/internal/plan"
	"github.com/concordlabs/concord/internal/state"
)

var runSimulate bool

var runCmd = &cobra.Command{
	Use:   "run <plan.yaml>",
	Short: "Run the coordination loop for a plan",
	Long: `Load a plan, wire the message substrate, and supervise the run
until every task reaches a terminal status or the process is
interrupted.

Workers are external processes: they connect through the substrate's
channels and report progress, status changes, and analysis results as
information messages addressed to the coordinator. The supervision loop
checkpoints the ledger periodically and on exit.

With --simulate, a scripted set of in-process workers drives the loop
instead, for local inspection of reports and conflict handling.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runSimulate, "simulate", false, "Drive the loop with scripted in-process workers")
}

// coordinator wires the substrate, ledger, monitor, and resolver for
// one run.
type coordinator struct {
	cfg        *config.Config
	logger     *logging.Logger
	state      *state.TacticalState
	middleware *comms.Middleware
	monitor    *monitor.Monitor
	resolver   *conflict.Resolver
	store      *state.CheckpointStore
	// graph mirrors the plan's dependency structure. The coordinator
	// marks completions and failures on it as reports arrive; its
	// GetReady drives dispatch.
	graph *graph.DependencyGraph
	runID string
	// persistedActions is how many actions-log rows have already been
	// mirrored into the store; only newer entries are appended.
	persistedActions int
	// dispatched tracks task IDs whose assignment command has been sent.
	dispatched map[string]bool
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	p, err := plan.Load(args[0])
	if err != nil {
		return err
	}

	co, err := newCoordinator(cfg)
	if err != nil {
		return err
	}
	defer co.shutdown()

	if err := p.Apply(co.state); err != nil {
		return fmt.Errorf("apply plan: %w", err)
	}
	if co.graph, err = p.Graph(); err != nil {
		return fmt.Errorf("build dependency graph: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if runSimulate {
		go simulateWorkers(ctx, co)
	}

	fmt.Printf("running plan %q (%d tasks, run %s)\n", p.Name, co.state.TaskCount(), co.runID)
	return co.supervise(ctx)
}

func newCoordinator(cfg *config.Config) (*coordinator, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}

	logger := logging.Nop()
	if cfg.Logging.Enabled {
		dir := cfg.Logging.Dir
		if dir == "" {
			dir = cwd
		}
		logger = logging.NewForRun(dir)
	}

	mw := comms.NewMiddleware(logger)
	capacity := cfg.Comms.ChannelCapacity
	for _, ctype := range []comms.ChannelType{
		comms.ChannelHierarchical,
		comms.ChannelCollaboration,
		comms.ChannelNegotiation,
		comms.ChannelFeedback,
		comms.ChannelControl,
	} {
		mw.RegisterChannel(comms.NewChannel(string(ctype), ctype, capacity))
	}
	mw.RegisterChannel(comms.NewDataChannel(string(comms.ChannelData), capacity))

	st := state.New()
	thresholds := monitor.Thresholds{
		Stagnation:      cfg.Monitor.Stagnation,
		ProgressCeiling: cfg.Monitor.ProgressCeiling,
		FallbackFloor:   cfg.Monitor.FallbackFloor,
		MaxFailureRate:  cfg.Monitor.MaxFailureRate,
	}

	co := &coordinator{
		cfg:        cfg,
		logger:     logger,
		state:      st,
		middleware: mw,
		monitor:    monitor.New(st, mw, logger, thresholds),
		resolver:   conflict.New(st, mw, logger),
		runID:      uuid.NewString(),
		dispatched: make(map[string]bool),
	}

	if cfg.Checkpoints.Enabled {
		store, err := state.OpenStore(checkpointPath(cfg))
		if err != nil {
			logger.Close()
			return nil, fmt.Errorf("open checkpoint store: %w", err)
		}
		co.store = store
	}
	return co, nil
}

// supervise drains worker messages and runs the periodic report,
// resolution, and checkpoint cycle until the run finishes.
func (co *coordinator) supervise(ctx context.Context) error {
	msgs := make(chan workerMessage, 64)
	go co.receiveWorkerMessages(ctx, msgs)

	co.dispatchAssignments()

	interval := co.cfg.Monitor.ReportInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			fmt.Println("interrupted, checkpointing")
			co.checkpoint()
			return nil

		case wm := <-msgs:
			co.handleWorkerMessage(wm)
			if co.runComplete() {
				co.finish()
				return nil
			}

		case <-ticker.C:
			co.cycle()
			if co.runComplete() {
				co.finish()
				return nil
			}
		}
	}
}

// cycle is one periodic supervision pass: dispatch, report, detect,
// resolve, escalate, checkpoint.
func (co *coordinator) cycle() {
	co.dispatchAssignments()

	report := co.monitor.GenerateProgressReport()
	if err := co.monitor.PublishReport("strategic-coordinator", report); err != nil {
		co.logger.Log("RUN", "publish report: %v", err)
	}

	issues := co.monitor.DetectCriticalIssues()
	if err := co.monitor.PublishCriticalIssues("strategic-coordinator", issues); err != nil {
		co.logger.Log("RUN", "publish critical issues: %v", err)
	}

	co.resolver.ResolveAll()
	if n, err := co.resolver.PublishEscalations("strategic-coordinator"); err != nil {
		co.logger.Log("RUN", "publish escalations: %v", err)
	} else if n > 0 {
		fmt.Printf("escalated %d conflicts\n", n)
	}

	co.checkpoint()

	snap := co.state.Snapshot()
	fmt.Printf("progress %.0f%%  (%d/%d done, %d failed, %d open conflicts)\n",
		report.OverallProgress*100,
		snap.Completed, snap.Completed+snap.Pending+snap.InProgress+snap.Failed,
		snap.Failed, snap.OpenConflicts)
}

// runComplete reports whether every task reached a terminal bucket.
func (co *coordinator) runComplete() bool {
	snap := co.state.Snapshot()
	return snap.Pending == 0 && snap.InProgress == 0 && snap.Completed+snap.Failed > 0
}

// finish runs a final cycle and prints the outcome.
func (co *coordinator) finish() {
	co.cycle()
	snap := co.state.Snapshot()
	fmt.Printf("run complete: %d completed, %d failed\n", snap.Completed, snap.Failed)
}

func (co *coordinator) checkpoint() {
	if co.store == nil {
		return
	}
	if _, err := co.store.SaveCheckpoint(co.runID, co.state); err != nil {
		co.logger.Log("RUN", "checkpoint failed: %v", err)
		return
	}
	actions := co.state.Actions()
	if len(actions) > co.persistedActions {
		if err := co.store.AppendActions(actions[co.persistedActions:]); err != nil {
			co.logger.Log("RUN", "append actions failed: %v", err)
		} else {
			co.persistedActions = len(actions)
		}
	}
}

func (co *coordinator) shutdown() {
	co.middleware.Close()
	if co.store != nil {
		co.store.Close()
	}
	co.logger.Close()
}

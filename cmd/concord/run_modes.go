package main

import (
	"context"
	"fmt"
	"time"

	"github.com/concordlabs/concord/pkg/models"
)

// simulateWorkers drives the supervision loop with scripted in-process
// workers: each pending task is picked up in dependency order, reports
// progress in steps, submits a canned result, and completes. One task
// per run is failed to exercise the blocked-task and escalation paths.
func simulateWorkers(ctx context.Context, co *coordinator) {
	failedOne := false

	for ctx.Err() == nil {
		task := co.nextReadyTask()
		if task == nil {
			if co.runComplete() {
				return
			}
			select {
			case <-time.After(100 * time.Millisecond):
			case <-ctx.Done():
				return
			}
			continue
		}

		worker := task.AssignedTo
		if worker == "" {
			worker = "sim-worker"
			co.state.AssignTask(task.ID, worker)
		}
		co.sendWorkerReport(worker, "status", map[string]any{
			"task_id": task.ID,
			"status":  string(models.TaskStatusInProgress),
		})

		for _, progress := range []float64{0.25, 0.5, 0.75} {
			select {
			case <-time.After(50 * time.Millisecond):
			case <-ctx.Done():
				return
			}
			co.sendWorkerReport(worker, "progress", map[string]any{
				"task_id":  task.ID,
				"progress": progress,
			})
		}

		if !failedOne {
			failedOne = true
			co.sendWorkerReport(worker, "status", map[string]any{
				"task_id": task.ID,
				"status":  string(models.TaskStatusFailed),
				"error":   "simulated failure",
			})
			continue
		}

		co.sendWorkerReport(worker, "result", map[string]any{
			"task_id": task.ID,
			"result": models.AnalysisResult{
				TaskID:   task.ID,
				Category: models.CategoryArgumentStructures,
				Argument: &models.ArgumentStructure{
					ID:         "arg-" + task.ID,
					Premises:   []string{"premise from " + task.ID},
					Conclusion: "the sample text is persuasive",
					Subject:    "sample text",
					Confidence: 0.7,
					ProducedAt: time.Now().UTC(),
				},
			},
		})
		co.sendWorkerReport(worker, "progress", map[string]any{
			"task_id":  task.ID,
			"progress": 1.0,
		})
	}
}

// nextReadyTask picks a pending task the dependency graph reports as
// ready. Tasks blocked by failed dependencies never become ready; the
// monitor flags them.
func (co *coordinator) nextReadyTask() *models.Task {
	for _, id := range co.graph.GetReady() {
		if t := co.state.Task(id); t != nil && t.Status == models.TaskStatusPending {
			return t
		}
	}
	return nil
}

// sendWorkerReport routes one scripted report through the substrate,
// exactly as an external worker would.
func (co *coordinator) sendWorkerReport(worker, kind string, content map[string]any) {
	content["kind"] = kind
	msg := models.NewMessage(models.MessageInformation, worker, models.LevelOperational, coordinatorID, content)
	if err := co.middleware.Route(msg); err != nil {
		fmt.Printf("simulate: route %s report: %v\n", kind, err)
	}
}

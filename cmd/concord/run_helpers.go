package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/concordlabs/concord/internal/comms"
	"github.com/concordlabs/concord/pkg/models"
)

// coordinatorID is the recipient workers address their reports to.
const coordinatorID = "coordinator"

// workerMessage pairs a received message with its decoded report kind.
type workerMessage struct {
	msg  *models.Message
	kind string
}

// receiveWorkerMessages drains the hierarchical channel addressed to
// the coordinator and forwards decodable reports to the supervision
// loop. Exits when the context is cancelled.
func (co *coordinator) receiveWorkerMessages(ctx context.Context, out chan<- workerMessage) {
	for {
		msg, err := co.middleware.Receive(ctx, comms.ChannelHierarchical, coordinatorID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			co.logger.Log("RUN", "receive: %v", err)
			return
		}
		if msg == nil {
			continue
		}

		kind, _ := msg.Content["kind"].(string)
		select {
		case out <- workerMessage{msg: msg, kind: kind}:
		case <-ctx.Done():
			return
		}
	}
}

// handleWorkerMessage applies one worker report to the ledger.
// Malformed reports are logged and skipped; a single bad worker must
// not stall the run.
func (co *coordinator) handleWorkerMessage(wm workerMessage) {
	content := wm.msg.Content
	taskID, _ := content["task_id"].(string)

	switch wm.kind {
	case "progress":
		progress, ok := toFloat(content["progress"])
		if !ok {
			co.logger.Log("RUN", "progress report from %s without numeric progress", wm.msg.Sender)
			return
		}
		update := co.monitor.UpdateTaskProgress(taskID, progress)
		for _, a := range update.Anomalies {
			fmt.Printf("anomaly [%s] task %s: %s\n", a.Severity, taskID, a.Description)
		}
		// Full progress completes an assigned task in the ledger; the
		// graph has to learn about it so dependents become ready.
		if t := co.state.Task(taskID); t != nil && t.Status == models.TaskStatusCompleted {
			co.graph.MarkComplete(taskID)
		}

	case "status":
		status, _ := content["status"].(string)
		if models.TaskStatus(status) == models.TaskStatusFailed {
			reason, _ := content["error"].(string)
			if !co.state.FailTask(taskID, reason) {
				co.logger.Log("RUN", "status report for unknown task %s", taskID)
				return
			}
			co.graph.MarkFailed(taskID)
			if blocked := co.graph.GetDependents(taskID); len(blocked) > 0 {
				fmt.Printf("task %s failed, blocking %d dependent task(s): %v\n", taskID, len(blocked), blocked)
			}
			return
		}
		if !co.state.UpdateTaskStatus(taskID, models.TaskStatus(status)) {
			co.logger.Log("RUN", "invalid status %q for task %s from %s", status, taskID, wm.msg.Sender)
			return
		}
		if models.TaskStatus(status) == models.TaskStatusCompleted {
			co.graph.MarkComplete(taskID)
		}
		co.state.LogAction("status_update",
			fmt.Sprintf("task %s -> %s (reported by %s)", taskID, status, wm.msg.Sender),
			wm.msg.Sender)

	case "result":
		result, ok := coerceResult(content["result"])
		if !ok {
			co.logger.Log("RUN", "undecodable result from %s for task %s", wm.msg.Sender, taskID)
			return
		}
		if !co.state.AddRhetoricalAnalysisResult(taskID, result) {
			co.logger.Log("RUN", "result for unknown task %s rejected", taskID)
			return
		}
		co.state.LogAction("result_submitted",
			fmt.Sprintf("task %s submitted %s result", taskID, result.Category),
			wm.msg.Sender)
		if conflicts := co.resolver.ScanTask(taskID); len(conflicts) > 0 {
			fmt.Printf("detected %d conflicts from task %s\n", len(conflicts), taskID)
		}

	default:
		co.logger.Log("RUN", "ignoring message kind %q from %s", wm.kind, wm.msg.Sender)
	}
}

// dispatchAssignments sends a command message to the assignee of every
// ready task that has not been dispatched yet. Readiness comes from the
// dependency graph: all prerequisites completed.
func (co *coordinator) dispatchAssignments() {
	for _, id := range co.graph.GetReady() {
		if co.dispatched[id] {
			continue
		}
		t := co.state.Task(id)
		if t == nil || t.Status != models.TaskStatusPending {
			continue
		}
		assignee, ok := co.state.Assignee(id)
		if !ok {
			continue
		}

		msg := models.NewMessage(models.MessageCommand, coordinatorID, models.LevelTactical, assignee, map[string]any{
			"command_type": "execute_task",
			"parameters": map[string]any{
				"task_id":     t.ID,
				"objective":   t.ObjectiveID,
				"title":       t.Title,
				"description": t.Description,
			},
		}).WithPriority(t.Priority)
		if err := co.middleware.Route(msg); err != nil {
			co.logger.Log("RUN", "dispatch task %s to %s: %v", t.ID, assignee, err)
			continue
		}
		co.dispatched[t.ID] = true
		co.state.LogAction("task_dispatched",
			fmt.Sprintf("task %s dispatched to %s", t.ID, assignee),
			coordinatorID)
	}
}

// toFloat accepts the numeric types a content map can carry.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// coerceResult accepts an in-process result value or the generic map a
// JSON-decoded message carries.
func coerceResult(v any) (models.AnalysisResult, bool) {
	switch r := v.(type) {
	case models.AnalysisResult:
		return r, true
	case *models.AnalysisResult:
		if r != nil {
			return *r, true
		}
	case map[string]any:
		data, err := json.Marshal(r)
		if err != nil {
			return models.AnalysisResult{}, false
		}
		var result models.AnalysisResult
		if err := json.Unmarshal(data, &result); err != nil {
			return models.AnalysisResult{}, false
		}
		return result, true
	}
	return models.AnalysisResult{}, false
}

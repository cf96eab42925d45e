package workforce

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/taskweave/taskweave/internal/channel"
	"github.com/taskweave/taskweave/internal/oracle"
	"github.com/taskweave/taskweave/pkg/models"
)

// SingleAgentWorker is a leaf node: it pulls one assigned task at a time
// off the channel, invokes the reasoning oracle once, and reports done or
// failed. It performs no retries itself; recovery is the supervisor's
// responsibility via re-decomposition.
type SingleAgentWorker struct {
	id          string
	description string
	channel     *channel.TaskChannel
	oracle      oracle.Oracle
	// taskTimeout bounds a single oracle call. Zero means no bound.
	taskTimeout time.Duration
	running     atomic.Bool
}

// NewSingleAgentWorker creates a leaf worker addressed by id.
func NewSingleAgentWorker(id, description string, ch *channel.TaskChannel, o oracle.Oracle, taskTimeout time.Duration) *SingleAgentWorker {
	return &SingleAgentWorker{
		id:          id,
		description: description,
		channel:     ch,
		oracle:      o,
		taskTimeout: taskTimeout,
	}
}

// ID returns the worker's channel address.
func (w *SingleAgentWorker) ID() string { return w.id }

// Description returns the worker's description.
func (w *SingleAgentWorker) Description() string { return w.description }

// Stop requests a cooperative stop before the next work item.
func (w *SingleAgentWorker) Stop() {
	w.running.Store(false)
}

// Start runs the worker loop: wait for an assigned packet, process it,
// return the terminal status. The loop exits when Stop is called or ctx is
// done; ctx cancellation is what unblocks a pending channel wait.
func (w *SingleAgentWorker) Start(ctx context.Context) error {
	w.running.Store(true)

	for w.running.Load() {
		packet, err := w.channel.AssignedTo(ctx, w.id)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("worker %s: %w", w.id, err)
		}

		task := packet.Task
		task.SetState(models.TaskStateRunning)

		deps := w.channel.TasksByID(packet.Dependencies)
		state := w.Process(ctx, task, deps)

		status := models.PacketStatusFailed
		if state == models.TaskStateDone {
			status = models.PacketStatusCompleted
			task.SetState(models.TaskStateDone)
		}

		if err := w.channel.Return(task.ID, status); err != nil {
			// The publisher may have abandoned the packet while we worked.
			log.Printf("[worker %s] return task %s: %v", w.id, task.ID, err)
		}
	}
	return nil
}

// Process executes a single task against the oracle. The prompt embeds the
// task content, the results of its dependency tasks, and any additional
// info. Oracle errors, malformed structured output, and an explicit
// failed:true all map to a failed state; nothing is raised to the caller.
func (w *SingleAgentWorker) Process(ctx context.Context, task *models.Task, deps []*models.Task) models.TaskState {
	prompt := fmt.Sprintf(processTaskPrompt, task.Content, renderDependencies(deps), task.AdditionalInfo)

	stepCtx := ctx
	if w.taskTimeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, w.taskTimeout)
		defer cancel()
	}

	resp, err := w.oracle.Step(stepCtx, prompt, oracle.TaskResultSchema())
	if err != nil {
		debugLog("[worker %s] oracle step for task %s failed: %v", w.id, task.ID, err)
		return models.TaskStateFailed
	}

	var result oracle.TaskResult
	if err := json.Unmarshal(resp.Parsed, &result); err != nil {
		debugLog("[worker %s] malformed task result for %s: %v", w.id, task.ID, err)
		return models.TaskStateFailed
	}

	if result.Failed {
		debugLog("[worker %s] reported failure for task %s", w.id, task.ID)
		return models.TaskStateFailed
	}

	task.UpdateResult(result.Content)
	return models.TaskStateDone
}

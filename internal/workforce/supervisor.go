package workforce

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/taskweave/taskweave/internal/channel"
	"github.com/taskweave/taskweave/internal/decompose"
	"github.com/taskweave/taskweave/internal/oracle"
	"github.com/taskweave/taskweave/pkg/models"
)

// DefaultMaxRecoveryAttempts bounds how many recovery generations a single
// task lineage may spawn before it is escalated as a permanent failure.
const DefaultMaxRecoveryAttempts = 3

// PermanentFailureError reports a task lineage that could not be resolved
// within the recovery budget.
type PermanentFailureError struct {
	// TaskID is the task whose lineage was exhausted.
	TaskID string
	// Attempts is the number of recovery generations spent.
	Attempts int
	// Cause is the underlying failure, if any.
	Cause error
}

func (e *PermanentFailureError) Error() string {
	return fmt.Sprintf("task %s: permanent failure after %d recovery attempts", e.TaskID, e.Attempts)
}

func (e *PermanentFailureError) Unwrap() error { return e.Cause }

// InternalWorkforce is a supervisor node: it decomposes its assigned task
// into subtasks, dispatches each to a child worker through the channel,
// advances a FIFO queue as results come back, and on a child's failure
// re-decomposes the failed subtask and staffs the replacements with freshly
// created workers.
type InternalWorkforce struct {
	id          string
	description string
	channel     *channel.TaskChannel
	factory     oracle.SessionFactory
	taskOracle  oracle.Oracle
	policy      AssignmentPolicy
	initialTask *models.Task

	maxRecoveryAttempts int
	taskTimeout         time.Duration
	events              *emitter

	mu       sync.Mutex
	children []Node
	roster   []string
	// pending is the packet deque: index 0 is the head. FIFO under normal
	// operation; recovery packets are prepended.
	pending []*models.Packet
	// archive holds packets retired from the channel when their parent is
	// composed, so the returned trace stays a complete map of everything
	// processed.
	archive map[string]*models.Packet

	running  atomic.Bool
	childCtx context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// Option customizes an InternalWorkforce.
type Option func(*InternalWorkforce)

// WithInitialTask gives the supervisor a root task to decompose when it
// starts listening.
func WithInitialTask(t *models.Task) Option {
	return func(w *InternalWorkforce) { w.initialTask = t }
}

// WithPolicy sets the assignment policy for non-recovery dispatch.
func WithPolicy(p AssignmentPolicy) Option {
	return func(w *InternalWorkforce) { w.policy = p }
}

// WithChildren seeds the supervisor with pre-built child nodes.
func WithChildren(children ...Node) Option {
	return func(w *InternalWorkforce) {
		for _, c := range children {
			w.children = append(w.children, c)
			w.roster = append(w.roster, c.ID())
		}
	}
}

// WithMaxRecoveryAttempts overrides the recovery budget per task lineage.
func WithMaxRecoveryAttempts(n int) Option {
	return func(w *InternalWorkforce) { w.maxRecoveryAttempts = n }
}

// WithTaskTimeout bounds each spawned worker's oracle call.
func WithTaskTimeout(d time.Duration) Option {
	return func(w *InternalWorkforce) { w.taskTimeout = d }
}

// WithEventBuffer sizes the event channel.
func WithEventBuffer(n int) Option {
	return func(w *InternalWorkforce) { w.events = newEmitter(n) }
}

// New creates a supervisor. The factory mints oracle sessions: one for the
// supervisor's own decomposition steps and one per worker it spawns.
func New(id, description string, ch *channel.TaskChannel, factory oracle.SessionFactory, opts ...Option) *InternalWorkforce {
	w := &InternalWorkforce{
		id:                  id,
		description:         description,
		channel:             ch,
		factory:             factory,
		taskOracle:          factory.NewSession("You are a task planner. You decompose tasks into subtasks."),
		policy:              NewRoundRobinPolicy(),
		maxRecoveryAttempts: DefaultMaxRecoveryAttempts,
		events:              newEmitter(0),
		archive:             make(map[string]*models.Packet),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// ID returns the supervisor's channel address.
func (w *InternalWorkforce) ID() string { return w.id }

// Description returns the supervisor's description.
func (w *InternalWorkforce) Description() string { return w.description }

// Events returns the supervisor's event stream. Events are dropped if the
// buffer is full, so consumption is optional.
func (w *InternalWorkforce) Events() <-chan Event { return w.events.ch }

// Roster returns a copy of the current child id roster.
func (w *InternalWorkforce) Roster() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, len(w.roster))
	copy(out, w.roster)
	return out
}

// Stop requests a cooperative stop. The dispatch loop exits once its
// current channel wait resolves; children are stopped when the loop
// returns.
func (w *InternalWorkforce) Stop() {
	w.running.Store(false)
}

// Start runs the supervisor and all of its children until the queue drains
// or ctx is done. It returns the complete task-id to packet map (live
// channel entries plus packets retired during composition) as a trace of
// everything processed. A non-nil error alongside the trace reports a
// permanent failure or a cancelled run.
func (w *InternalWorkforce) Start(ctx context.Context) (map[string]*models.Packet, error) {
	w.childCtx, w.cancel = context.WithCancel(ctx)
	defer w.cancel()

	w.mu.Lock()
	children := make([]Node, len(w.children))
	copy(children, w.children)
	w.mu.Unlock()

	for _, child := range children {
		w.startChild(child)
	}

	trace, err := w.listen(ctx)

	w.stopChildren()
	w.cancel()
	w.wg.Wait()

	return trace, err
}

// startChild runs a child node on the supervisor's child context.
func (w *InternalWorkforce) startChild(child Node) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := child.Start(w.childCtx); err != nil {
			log.Printf("[workforce %s] child %s stopped with error: %v", w.id, child.ID(), err)
		}
	}()
}

func (w *InternalWorkforce) stopChildren() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, child := range w.children {
		child.Stop()
	}
}

// createWorkerForTask instantiates a new leaf worker with a fresh oracle
// session, registers it as a child, and starts its run loop concurrently.
// Recovered work is never assigned to a worker that already failed it; this
// is how the tree grows in response to failure instead of retrying in place.
func (w *InternalWorkforce) createWorkerForTask(task *models.Task) Node {
	id := uuid.New().String()[:8]
	worker := NewSingleAgentWorker(
		id,
		fmt.Sprintf("worker for task %s", task.ID),
		w.channel,
		w.factory.NewSession(workerRole),
		w.taskTimeout,
	)

	w.mu.Lock()
	w.children = append(w.children, worker)
	w.roster = append(w.roster, id)
	w.mu.Unlock()

	w.startChild(worker)

	debugLog("[workforce %s] spawned worker %s for task %s", w.id, id, task.ID)
	w.events.emit(Event{Type: EventWorkerSpawned, WorkforceID: w.id, TaskID: task.ID, AssigneeID: id})
	return worker
}

// decomposeToPackets splits the task into subtasks and wraps each in a
// packet. Dependencies chain strictly: subtask k depends on subtasks 0..k-1
// of the same parent, in emission order. When failed is true this is a
// recovery decomposition: every subtask gets a brand-new worker instead of
// an assignment from the existing roster, and any subtasks from the
// superseded decomposition are marked deleted.
func (w *InternalWorkforce) decomposeToPackets(ctx context.Context, task *models.Task, failed bool, attempt int) ([]*models.Packet, error) {
	subtasks, err := decompose.Decompose(ctx, w.taskOracle, task)
	if err != nil {
		return nil, err
	}

	for _, old := range task.Subtasks {
		old.SetState(models.TaskStateDeleted)
	}
	task.Subtasks = nil
	for _, sub := range subtasks {
		task.AddSubtask(sub)
	}

	packets := make([]*models.Packet, 0, len(subtasks))
	var dependencies []string
	for _, sub := range subtasks {
		var assigneeID string
		if failed {
			assigneeID = w.createWorkerForTask(sub).ID()
		} else {
			assigneeID, err = w.policy.Assign(sub, w.Roster(), "")
			if err != nil {
				return nil, fmt.Errorf("assign task %s: %w", sub.ID, err)
			}
		}

		packet := models.NewPacket(sub, w.id, assigneeID, append([]string(nil), dependencies...))
		packet.Attempt = attempt
		packets = append(packets, packet)
		dependencies = append(dependencies, sub.ID)

		debugLog("[workforce %s] packet %s -> %s deps=%v attempt=%d", w.id, sub.ID, assigneeID, packet.Dependencies, attempt)
	}

	return packets, nil
}

// sendHead sends the head-of-queue packet to the channel. A head packet in
// failed status is a compose marker (the synthetic root packet, or a parent
// whose recovery lineage has drained): its result is composed from its
// subtask results, the composed subtask entries are retired from the
// channel into the archive, and the packet is re-sent as completed so the
// normal advance logic closes it.
func (w *InternalWorkforce) sendHead(head *models.Packet) error {
	if head.Status == models.PacketStatusFailed {
		result := decompose.Compose(head.Task)
		head.Task.SetState(models.TaskStateDone)
		head.Status = models.PacketStatusCompleted

		snapshot := w.channel.Snapshot()
		for _, sub := range head.Task.Subtasks {
			if packet, ok := snapshot[sub.ID]; ok {
				w.archive[sub.ID] = packet
			}
			if err := w.channel.Remove(sub.ID); err != nil && !errors.Is(err, channel.ErrUnknownID) {
				return err
			}
		}

		debugLog("[workforce %s] composed task %s (%d bytes)", w.id, head.Task.ID, len(result))
		w.events.emit(Event{Type: EventComposed, WorkforceID: w.id, TaskID: head.Task.ID})
	}

	w.events.emit(Event{Type: EventTaskDispatched, WorkforceID: w.id, TaskID: head.Task.ID, AssigneeID: head.AssigneeID})
	return w.channel.Send(head)
}

// trace merges the live channel map with retired packets into the complete
// task-id to terminal-packet map handed back by Start. Live entries win,
// although an id never appears in both: a packet is archived only when it
// leaves the channel.
func (w *InternalWorkforce) trace() map[string]*models.Packet {
	merged := w.channel.Snapshot()
	for id, packet := range w.archive {
		if _, ok := merged[id]; !ok {
			merged[id] = packet
		}
	}
	return merged
}

// listen is the supervisor's dispatch loop.
//
// The loop dispatches the queue head, blocks for a returned packet, and
// advances: completed packets are closed and dequeued; failed packets are
// removed from the channel, re-decomposed with fresh workers, and their
// replacement packets are prepended so recovered work runs next. The failed
// packet itself stays queued behind its replacements as a compose marker.
// The same mechanism completes the root: a synthetic packet pre-marked
// failed is queued after the root's subtasks, so once they drain, sendHead
// composes the root result.
func (w *InternalWorkforce) listen(ctx context.Context) (map[string]*models.Packet, error) {
	w.running.Store(true)
	debugLog("[workforce %s] listening", w.id)

	if w.initialTask != nil {
		packets, err := w.decomposeToPackets(ctx, w.initialTask, false, 0)
		if err != nil {
			return w.trace(), fmt.Errorf("decompose initial task: %w", err)
		}
		w.pending = append(w.pending, packets...)

		if err := w.sendHead(w.pending[0]); err != nil {
			return w.trace(), err
		}

		// Synthetic self packet, pre-marked failed so the compose step in
		// sendHead fires for the root once all subtasks finish.
		w.pending = append(w.pending, &models.Packet{
			Task:        w.initialTask,
			PublisherID: w.id,
			AssigneeID:  w.id,
			Status:      models.PacketStatusFailed,
		})
	}

	for w.running.Load() && len(w.pending) > 0 {
		returned, err := w.channel.ReturnedByPublisher(ctx, w.id)
		if err != nil {
			return w.trace(), fmt.Errorf("workforce %s: %w", w.id, err)
		}

		switch returned.Status {
		case models.PacketStatusCompleted:
			w.pending = w.pending[1:]
			if err := w.channel.Return(returned.Task.ID, models.PacketStatusClosed); err != nil {
				return w.trace(), err
			}
			w.events.emit(Event{Type: EventTaskCompleted, WorkforceID: w.id, TaskID: returned.Task.ID})

			if len(w.pending) == 0 {
				break
			}
			if err := w.sendHead(w.pending[0]); err != nil {
				return w.trace(), err
			}

		case models.PacketStatusFailed:
			w.events.emit(Event{Type: EventTaskFailed, WorkforceID: w.id, TaskID: returned.Task.ID, Attempt: returned.Attempt})

			// Keep the failed packet in the trace while it is out of the
			// channel awaiting its compose re-send.
			w.archive[returned.Task.ID] = returned
			if err := w.channel.Remove(returned.Task.ID); err != nil {
				return w.trace(), err
			}

			attempt := returned.Attempt + 1
			if attempt > w.maxRecoveryAttempts {
				return w.trace(), &PermanentFailureError{TaskID: returned.Task.ID, Attempts: returned.Attempt}
			}

			w.events.emit(Event{Type: EventRecoveryStarted, WorkforceID: w.id, TaskID: returned.Task.ID, Attempt: attempt})
			packets, err := w.decomposeToPackets(ctx, returned.Task, true, attempt)
			if err != nil {
				// A recovery decomposition that yields nothing ends the
				// lineage: escalate instead of stalling the queue.
				if errors.Is(err, decompose.ErrEmptyDecomposition) {
					return w.trace(), &PermanentFailureError{TaskID: returned.Task.ID, Attempts: attempt, Cause: err}
				}
				return w.trace(), err
			}

			// Priority insertion: recovered work jumps ahead of whatever
			// was already queued.
			w.pending = append(packets, w.pending...)

			if err := w.sendHead(w.pending[0]); err != nil {
				return w.trace(), err
			}
		}
	}

	debugLog("[workforce %s] queue drained", w.id)
	w.events.emit(Event{Type: EventDrained, WorkforceID: w.id})
	return w.trace(), nil
}

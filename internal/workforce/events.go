package workforce

import "time"

// EventType represents the type of workforce event.
type EventType string

const (
	// EventTaskDispatched indicates a packet was sent to the channel.
	EventTaskDispatched EventType = "task_dispatched"
	// EventTaskCompleted indicates a packet came back completed and was closed.
	EventTaskCompleted EventType = "task_completed"
	// EventTaskFailed indicates a packet came back failed.
	EventTaskFailed EventType = "task_failed"
	// EventWorkerSpawned indicates a fresh worker was created for recovered work.
	EventWorkerSpawned EventType = "worker_spawned"
	// EventRecoveryStarted indicates a failed task is being re-decomposed.
	EventRecoveryStarted EventType = "recovery_started"
	// EventComposed indicates a parent result was composed from subtask results.
	EventComposed EventType = "composed"
	// EventDrained indicates the supervisor's queue is empty and it is stopping.
	EventDrained EventType = "drained"
)

// Event is emitted by a supervisor as work moves through its queue.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// TaskID is the id of the related task, if applicable.
	TaskID string
	// WorkforceID is the id of the emitting supervisor.
	WorkforceID string
	// AssigneeID is the id of the related worker, if applicable.
	AssigneeID string
	// Attempt is the recovery generation, for recovery events.
	Attempt int
	// Message provides additional context.
	Message string
	// Timestamp is when the event occurred.
	Timestamp time.Time
}

// emitter delivers events to a buffered channel, dropping on overflow so a
// slow or absent consumer never blocks the dispatch loop.
type emitter struct {
	ch chan Event
}

func newEmitter(buffer int) *emitter {
	if buffer <= 0 {
		buffer = 64
	}
	return &emitter{ch: make(chan Event, buffer)}
}

func (e *emitter) emit(ev Event) {
	ev.Timestamp = time.Now()
	select {
	case e.ch <- ev:
	default:
		// Channel full, drop event to avoid blocking.
	}
}

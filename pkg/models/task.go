package models

import (
	"fmt"
	"strings"
)

// TaskState represents the lifecycle state of a task.
type TaskState string

const (
	// TaskStateOpen indicates the task has been created but not assigned.
	TaskStateOpen TaskState = "open"
	// TaskStateRunning indicates the task is currently being worked on.
	TaskStateRunning TaskState = "running"
	// TaskStateDone indicates the task produced an accepted result.
	TaskStateDone TaskState = "done"
	// TaskStateDeleted indicates the task is excluded from further consideration.
	TaskStateDeleted TaskState = "deleted"
	// TaskStateFailed indicates processing of the task failed. This is a
	// worker-reported outcome, not a resting state: a task whose processing
	// failed is re-decomposed rather than parked as failed.
	TaskStateFailed TaskState = "failed"
)

// Valid returns true if the state is a known value.
func (s TaskState) Valid() bool {
	switch s {
	case TaskStateOpen, TaskStateRunning, TaskStateDone, TaskStateDeleted, TaskStateFailed:
		return true
	default:
		return false
	}
}

// Task is a node in a hierarchical unit-of-work tree.
//
// Task IDs are hierarchical strings: the children of task "0" are "0.0",
// "0.1", and so on, in the order they were produced by decomposition. The ID
// prefix therefore defines tree membership without explicit traversal, and
// the subtask order is also the natural dependency order.
type Task struct {
	// Content is the instruction text for this task.
	Content string `json:"content"`
	// ID is the hierarchical identifier, e.g. "0.2" for the third subtask
	// of task "0". Unique within a single Manager.
	ID string `json:"id"`
	// State is the current lifecycle state.
	State TaskState `json:"state"`
	// Parent is a back-reference to the parent task, nil for the root.
	// The parent link is never owning.
	Parent *Task `json:"-"`
	// Subtasks holds the child tasks in decomposition order.
	Subtasks []*Task `json:"subtasks,omitempty"`
	// Result is the produced answer, empty until completion.
	Result string `json:"result,omitempty"`
	// AdditionalInfo is opaque side-channel context handed to the
	// reasoning oracle alongside the task content.
	AdditionalInfo string `json:"additional_info,omitempty"`
}

// NewTask creates an open task with the given content and id.
func NewTask(content, id string) *Task {
	return &Task{
		Content: content,
		ID:      id,
		State:   TaskStateOpen,
	}
}

// SubtaskID returns the id a child of this task gets at the given index.
func (t *Task) SubtaskID(index int) string {
	return fmt.Sprintf("%s.%d", t.ID, index)
}

// Reset returns the task to its initial state and clears its result.
func (t *Task) Reset() {
	t.State = TaskStateOpen
	t.Result = ""
}

// UpdateResult records a produced result on the task.
func (t *Task) UpdateResult(result string) {
	t.Result = result
}

// SetState transitions the task and propagates the transition through the
// tree: done propagates down to every non-deleted descendant, running
// propagates up to every ancestor (a running leaf means its whole ancestor
// chain is in progress).
func (t *Task) SetState(state TaskState) {
	t.State = state
	switch state {
	case TaskStateDone:
		for _, sub := range t.Subtasks {
			if sub.State != TaskStateDeleted {
				sub.SetState(state)
			}
		}
	case TaskStateRunning:
		if t.Parent != nil {
			t.Parent.SetState(state)
		}
	}
}

// AddSubtask appends a child task and sets its parent link.
func (t *Task) AddSubtask(sub *Task) {
	sub.Parent = t
	t.Subtasks = append(t.Subtasks, sub)
}

// RunningLeaf returns the deepest running task in this subtree, or nil if
// no task in the subtree is running.
func (t *Task) RunningLeaf() *Task {
	for _, sub := range t.Subtasks {
		if sub.State == TaskStateRunning {
			return sub.RunningLeaf()
		}
	}
	if t.State == TaskStateRunning {
		return t
	}
	return nil
}

// String renders the task subtree as an indented outline.
func (t *Task) String() string {
	var sb strings.Builder
	t.render(&sb, "")
	return sb.String()
}

func (t *Task) render(sb *strings.Builder, indent string) {
	fmt.Fprintf(sb, "%sTask %s: %s\n", indent, t.ID, t.Content)
	for _, sub := range t.Subtasks {
		sub.render(sb, indent+"  ")
	}
}

// Package task provides the Manager: the registry and dependency-ordering
// authority over a task tree.
package task

import (
	"context"
	"errors"
	"fmt"

	"github.com/taskweave/taskweave/internal/decompose"
	"github.com/taskweave/taskweave/internal/oracle"
	"github.com/taskweave/taskweave/pkg/models"
)

// ErrDuplicateTask indicates an incoming task id already exists in the manager.
var ErrDuplicateTask = errors.New("task id already exists")

// ErrCycleDetected indicates a circular subtask edge was found. Subtask
// edges are tree edges by construction, so a cycle is a programming error;
// the sort refuses to loop on it.
var ErrCycleDetected = errors.New("circular subtask reference detected")

// Manager owns a registry of tasks and maintains them in a
// dependency-respecting linear order: every task appears after all of its
// subtasks.
type Manager struct {
	// rootTask is the tree root.
	rootTask *models.Task
	// tasks is the topologically ordered task list.
	tasks []*models.Task
	// taskMap is the authoritative id lookup, kept in sync with tasks.
	taskMap map[string]*models.Task
	// currentTaskID tracks the task presently in focus.
	currentTaskID string
}

// NewManager creates a manager rooted at the given task.
func NewManager(root *models.Task) *Manager {
	return &Manager{
		rootTask:      root,
		tasks:         []*models.Task{root},
		taskMap:       map[string]*models.Task{root.ID: root},
		currentTaskID: root.ID,
	}
}

// Root returns the root task.
func (m *Manager) Root() *models.Task {
	return m.rootTask
}

// Exist returns true if a task with the given id is registered.
func (m *Manager) Exist(id string) bool {
	_, ok := m.taskMap[id]
	return ok
}

// Get returns the task with the given id, or nil if not registered.
func (m *Manager) Get(id string) *models.Task {
	return m.taskMap[id]
}

// Tasks returns the tasks in topological order. The returned slice must not
// be mutated.
func (m *Manager) Tasks() []*models.Task {
	return m.tasks
}

// CurrentTask returns the task in focus, or nil if it is unknown.
func (m *Manager) CurrentTask() *models.Task {
	return m.taskMap[m.currentTaskID]
}

// SetCurrent moves focus to the given task id.
func (m *Manager) SetCurrent(id string) error {
	if !m.Exist(id) {
		return fmt.Errorf("set current task: unknown id %q", id)
	}
	m.currentTaskID = id
	return nil
}

// TopologicalSort orders tasks so that every task appears after all of its
// subtasks, via post-order depth-first traversal of the subtask edges. An
// in-progress set guards the visitor: a revisit means a cycle, which is
// reported instead of looping forever.
func TopologicalSort(tasks []*models.Task) ([]*models.Task, error) {
	visited := make(map[string]bool)
	inProgress := make(map[string]bool)
	var stack []*models.Task

	var visit func(t *models.Task) error
	visit = func(t *models.Task) error {
		if visited[t.ID] {
			return nil
		}
		if inProgress[t.ID] {
			return fmt.Errorf("task %s: %w", t.ID, ErrCycleDetected)
		}
		inProgress[t.ID] = true

		for _, sub := range t.Subtasks {
			if err := visit(sub); err != nil {
				return err
			}
		}

		delete(inProgress, t.ID)
		visited[t.ID] = true
		stack = append(stack, t)
		return nil
	}

	for _, t := range tasks {
		if err := visit(t); err != nil {
			return nil, err
		}
	}
	return stack, nil
}

// AddTasks registers the given tasks and re-linearizes the combined list.
// Any incoming id that already exists is rejected with ErrDuplicateTask
// before anything is added. Re-sorting the whole tree on each batch is fine
// at the scale the manager is designed for.
func (m *Manager) AddTasks(tasks ...*models.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		if m.Exist(t.ID) || seen[t.ID] {
			return fmt.Errorf("add task %q: %w", t.ID, ErrDuplicateTask)
		}
		seen[t.ID] = true
	}

	sorted, err := TopologicalSort(append(append([]*models.Task{}, m.tasks...), tasks...))
	if err != nil {
		return err
	}

	m.tasks = sorted
	m.taskMap = make(map[string]*models.Task, len(sorted))
	for _, t := range sorted {
		m.taskMap[t.ID] = t
	}
	return nil
}

// Decompose splits the task into subtasks via the oracle and registers them.
// The subtasks are attached to the task and added to the manager's order.
func (m *Manager) Decompose(ctx context.Context, o oracle.Oracle, t *models.Task, opts ...decompose.Option) ([]*models.Task, error) {
	subs, err := decompose.Decompose(ctx, o, t, opts...)
	if err != nil {
		return nil, err
	}
	for _, sub := range subs {
		t.AddSubtask(sub)
	}
	if err := m.AddTasks(subs...); err != nil {
		return nil, err
	}
	return subs, nil
}

// Evolve refines the task into a replacement via the oracle and registers
// the replacement.
func (m *Manager) Evolve(ctx context.Context, o oracle.Oracle, t *models.Task, opts ...decompose.Option) (*models.Task, error) {
	evolved, err := decompose.Evolve(ctx, o, t, opts...)
	if err != nil {
		return nil, err
	}
	if err := m.AddTasks(evolved); err != nil {
		return nil, err
	}
	return evolved, nil
}

package models

import (
	"strings"
	"testing"
)

func TestTaskStateValid(t *testing.T) {
	valid := []TaskState{TaskStateOpen, TaskStateRunning, TaskStateDone, TaskStateDeleted, TaskStateFailed}
	for _, s := range valid {
		if !s.Valid() {
			t.Errorf("expected %q to be valid", s)
		}
	}

	if TaskState("bogus").Valid() {
		t.Error("expected unknown state to be invalid")
	}
}

func TestNewTask(t *testing.T) {
	task := NewTask("write the report", "0")

	if task.Content != "write the report" {
		t.Errorf("expected content %q, got %q", "write the report", task.Content)
	}
	if task.ID != "0" {
		t.Errorf("expected id %q, got %q", "0", task.ID)
	}
	if task.State != TaskStateOpen {
		t.Errorf("expected state open, got %q", task.State)
	}
}

func TestSubtaskID(t *testing.T) {
	task := NewTask("parent", "0.2")
	if got := task.SubtaskID(3); got != "0.2.3" {
		t.Errorf("expected subtask id 0.2.3, got %q", got)
	}
}

func TestAddSubtaskSetsParent(t *testing.T) {
	parent := NewTask("parent", "0")
	child := NewTask("child", "0.0")

	parent.AddSubtask(child)

	if child.Parent != parent {
		t.Error("expected child parent link to be set")
	}
	if len(parent.Subtasks) != 1 || parent.Subtasks[0] != child {
		t.Error("expected child to be appended to parent subtasks")
	}
}

func TestSetStateDonePropagatesDown(t *testing.T) {
	root := NewTask("root", "0")
	a := NewTask("a", "0.0")
	b := NewTask("b", "0.1")
	deleted := NewTask("gone", "0.2")
	grandchild := NewTask("aa", "0.0.0")

	root.AddSubtask(a)
	root.AddSubtask(b)
	root.AddSubtask(deleted)
	a.AddSubtask(grandchild)
	deleted.State = TaskStateDeleted

	root.SetState(TaskStateDone)

	for _, task := range []*Task{root, a, b, grandchild} {
		if task.State != TaskStateDone {
			t.Errorf("expected task %s to be done, got %q", task.ID, task.State)
		}
	}
	if deleted.State != TaskStateDeleted {
		t.Errorf("expected deleted subtask to stay deleted, got %q", deleted.State)
	}
}

func TestSetStateRunningPropagatesUp(t *testing.T) {
	root := NewTask("root", "0")
	mid := NewTask("mid", "0.0")
	leaf := NewTask("leaf", "0.0.0")
	sibling := NewTask("sibling", "0.1")

	root.AddSubtask(mid)
	root.AddSubtask(sibling)
	mid.AddSubtask(leaf)

	leaf.SetState(TaskStateRunning)

	if mid.State != TaskStateRunning {
		t.Errorf("expected parent running, got %q", mid.State)
	}
	if root.State != TaskStateRunning {
		t.Errorf("expected root running, got %q", root.State)
	}
	if sibling.State != TaskStateOpen {
		t.Errorf("expected sibling untouched, got %q", sibling.State)
	}
}

func TestRunningLeaf(t *testing.T) {
	root := NewTask("root", "0")
	mid := NewTask("mid", "0.0")
	leaf := NewTask("leaf", "0.0.0")
	root.AddSubtask(mid)
	mid.AddSubtask(leaf)

	if got := root.RunningLeaf(); got != nil {
		t.Errorf("expected no running task, got %s", got.ID)
	}

	leaf.SetState(TaskStateRunning)

	if got := root.RunningLeaf(); got != leaf {
		t.Errorf("expected running leaf %s, got %v", leaf.ID, got)
	}
}

func TestReset(t *testing.T) {
	task := NewTask("work", "0")
	task.State = TaskStateDone
	task.Result = "answer"

	task.Reset()

	if task.State != TaskStateOpen {
		t.Errorf("expected state open after reset, got %q", task.State)
	}
	if task.Result != "" {
		t.Errorf("expected empty result after reset, got %q", task.Result)
	}
}

func TestStringRendersTree(t *testing.T) {
	root := NewTask("root work", "0")
	child := NewTask("child work", "0.0")
	root.AddSubtask(child)

	out := root.String()

	if !strings.Contains(out, "Task 0: root work") {
		t.Errorf("expected root line in output, got %q", out)
	}
	if !strings.Contains(out, "  Task 0.0: child work") {
		t.Errorf("expected indented child line in output, got %q", out)
	}
}

package decompose

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/taskweave/taskweave/internal/oracle"
	"github.com/taskweave/taskweave/pkg/models"
)

func TestParseTasks(t *testing.T) {
	response := `Here is the plan:
<task>research the topic</task>
some commentary
<task>
write the summary
</task>`

	tasks := ParseTasks(response, "0")

	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	if tasks[0].Content != "research the topic" {
		t.Errorf("unexpected first content: %q", tasks[0].Content)
	}
	if tasks[1].Content != "write the summary" {
		t.Errorf("expected trimmed second content, got %q", tasks[1].Content)
	}
	if tasks[0].ID != "0.0" || tasks[1].ID != "0.1" {
		t.Errorf("expected ids 0.0 and 0.1, got %q and %q", tasks[0].ID, tasks[1].ID)
	}
}

func TestParseTasksNoSpans(t *testing.T) {
	if tasks := ParseTasks("no tags here", "0"); len(tasks) != 0 {
		t.Errorf("expected no tasks, got %d", len(tasks))
	}
}

func TestParseTasksSkipsEmptySpans(t *testing.T) {
	tasks := ParseTasks("<task>  </task><task>real work</task>", "0")
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(tasks))
	}
	if tasks[0].Content != "real work" {
		t.Errorf("unexpected content: %q", tasks[0].Content)
	}
}

func TestDecompose(t *testing.T) {
	o := oracle.NewScripted(oracle.StepResult{
		Content: "<task>step one</task><task>step two</task>",
	})
	task := models.NewTask("do the thing", "0")
	task.AdditionalInfo = "context blob"

	subs, err := Decompose(context.Background(), o, task)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(subs) != 2 {
		t.Fatalf("expected 2 subtasks, got %d", len(subs))
	}
	if subs[0].ID != "0.0" || subs[1].ID != "0.1" {
		t.Errorf("unexpected subtask ids: %q, %q", subs[0].ID, subs[1].ID)
	}
	for _, sub := range subs {
		if sub.AdditionalInfo != "context blob" {
			t.Errorf("expected additional info carried to subtask %s", sub.ID)
		}
	}
	if len(task.Subtasks) != 0 {
		t.Error("expected Decompose not to attach subtasks to the input task")
	}

	prompts := o.Prompts()
	if len(prompts) != 1 || !strings.Contains(prompts[0], "do the thing") {
		t.Errorf("expected task content in prompt, got %v", prompts)
	}
}

func TestDecomposeEmptyResponse(t *testing.T) {
	o := oracle.NewScripted(oracle.StepResult{Content: "I cannot split this."})
	task := models.NewTask("work", "0")

	_, err := Decompose(context.Background(), o, task)
	if !errors.Is(err, ErrEmptyDecomposition) {
		t.Errorf("expected ErrEmptyDecomposition, got %v", err)
	}
}

func TestDecomposeOracleError(t *testing.T) {
	wantErr := errors.New("backend down")
	o := oracle.NewScripted(oracle.StepResult{}).FailAt(0, wantErr)
	task := models.NewTask("work", "0")

	_, err := Decompose(context.Background(), o, task)
	if !errors.Is(err, wantErr) {
		t.Errorf("expected wrapped oracle error, got %v", err)
	}
}

func TestDecomposeCustomParserAndTemplate(t *testing.T) {
	o := oracle.NewScripted(oracle.StepResult{Content: "alpha;beta"})
	task := models.NewTask("work", "7")

	parser := func(response, parentID string) []*models.Task {
		var tasks []*models.Task
		for i, part := range strings.Split(response, ";") {
			tasks = append(tasks, models.NewTask(part, fmt.Sprintf("%s.%d", parentID, i)))
		}
		return tasks
	}

	subs, err := Decompose(context.Background(), o, task,
		WithTemplate("split: %s"), WithParser(parser))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(subs) != 2 || subs[0].Content != "alpha" || subs[1].Content != "beta" {
		t.Errorf("unexpected parse result: %v", subs)
	}
	if got := o.Prompts()[0]; got != "split: work" {
		t.Errorf("expected custom template to be used, got %q", got)
	}
}

func TestEvolve(t *testing.T) {
	o := oracle.NewScripted(oracle.StepResult{
		Content: "<task>refined version of the work</task>",
	})
	task := models.NewTask("vague work", "0")

	evolved, err := Evolve(context.Background(), o, task)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if evolved.Content != "refined version of the work" {
		t.Errorf("unexpected content: %q", evolved.Content)
	}
	if evolved.ID != "0.0" {
		t.Errorf("unexpected id: %q", evolved.ID)
	}
}

func TestEvolveNoTask(t *testing.T) {
	o := oracle.NewScripted(oracle.StepResult{Content: "nothing usable"})
	task := models.NewTask("work", "0")

	_, err := Evolve(context.Background(), o, task)
	if !errors.Is(err, ErrEmptyDecomposition) {
		t.Errorf("expected ErrEmptyDecomposition, got %v", err)
	}
}

func TestCompose(t *testing.T) {
	parent := models.NewTask("parent", "0")
	a := models.NewTask("a", "0.0")
	a.Result = "result a"
	b := models.NewTask("b", "0.1")
	b.Result = "result b"
	deleted := models.NewTask("gone", "0.2")
	deleted.Result = "stale"
	deleted.State = models.TaskStateDeleted
	parent.AddSubtask(a)
	parent.AddSubtask(b)
	parent.AddSubtask(deleted)

	result := Compose(parent)

	if !strings.Contains(result, "[0.0] result a") || !strings.Contains(result, "[0.1] result b") {
		t.Errorf("expected both subtask results, got %q", result)
	}
	if strings.Contains(result, "stale") {
		t.Errorf("expected deleted subtask excluded, got %q", result)
	}
	if parent.Result != result {
		t.Error("expected composed result recorded on the parent task")
	}
}

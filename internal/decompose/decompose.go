// Package decompose provides oracle-backed task transformation: splitting a
// task into subtasks, evolving it into a refined task, and composing a
// parent result from completed subtasks.
//
// This is the single implementation behind both the task manager's
// convenience methods and the supervisor's dispatch loop, so the two call
// sites cannot drift.
package decompose

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/taskweave/taskweave/internal/oracle"
	"github.com/taskweave/taskweave/pkg/models"
)

// ErrEmptyDecomposition indicates the oracle response yielded no parseable
// tasks. Callers must treat this as a terminal failure of the input task;
// an empty subtask list silently enqueued would stall the dispatch queue.
var ErrEmptyDecomposition = errors.New("decomposition produced no tasks")

// Parser extracts child tasks from an oracle response. The parentID is used
// to assign hierarchical ids to the extracted tasks.
type Parser func(response, parentID string) []*models.Task

// Options configures a decomposition or evolution call.
type Options struct {
	template string
	parser   Parser
}

// Option customizes Decompose or Evolve.
type Option func(*Options)

// WithTemplate overrides the prompt template. The template is formatted with
// the task content via fmt.Sprintf and must contain exactly one %s verb.
func WithTemplate(template string) Option {
	return func(o *Options) { o.template = template }
}

// WithParser overrides the response parser.
func WithParser(p Parser) Option {
	return func(o *Options) { o.parser = p }
}

var taskSpanRe = regexp.MustCompile(`(?s)<task>(.*?)</task>`)

// ParseTasks is the default parser: it scans the response for
// <task>...</task> spans and turns each trimmed span into a child task with
// id "{parentID}.{index}" in scan order.
func ParseTasks(response, parentID string) []*models.Task {
	matches := taskSpanRe.FindAllStringSubmatch(response, -1)

	var tasks []*models.Task
	for i, m := range matches {
		content := strings.TrimSpace(m[1])
		if content == "" {
			continue
		}
		tasks = append(tasks, models.NewTask(content, fmt.Sprintf("%s.%d", parentID, i)))
	}
	return tasks
}

// Decompose asks the oracle to split a task into an ordered list of
// subtasks. The returned tasks are not attached to the input task or to any
// manager; callers decide whether to adopt them. Returns
// ErrEmptyDecomposition if the response yields no tasks.
func Decompose(ctx context.Context, o oracle.Oracle, task *models.Task, opts ...Option) ([]*models.Task, error) {
	options := Options{template: DecomposePrompt, parser: ParseTasks}
	for _, opt := range opts {
		opt(&options)
	}

	prompt := fmt.Sprintf(options.template, task.Content)
	resp, err := o.Step(ctx, prompt, nil)
	if err != nil {
		return nil, fmt.Errorf("decompose task %s: %w", task.ID, err)
	}

	tasks := options.parser(resp.Content, task.ID)
	if len(tasks) == 0 {
		return nil, fmt.Errorf("decompose task %s: %w", task.ID, ErrEmptyDecomposition)
	}

	if v := Validate(task, tasks); !v.Valid {
		return nil, fmt.Errorf("decompose task %s: %s", task.ID, strings.Join(v.Errors, "; "))
	}

	for _, sub := range tasks {
		sub.AdditionalInfo = task.AdditionalInfo
	}
	return tasks, nil
}

// Evolve asks the oracle to refine a task into a single replacement task.
// Returns ErrEmptyDecomposition if the response yields no parseable task.
func Evolve(ctx context.Context, o oracle.Oracle, task *models.Task, opts ...Option) (*models.Task, error) {
	options := Options{template: EvolvePrompt, parser: ParseTasks}
	for _, opt := range opts {
		opt(&options)
	}

	prompt := fmt.Sprintf(options.template, task.Content)
	resp, err := o.Step(ctx, prompt, nil)
	if err != nil {
		return nil, fmt.Errorf("evolve task %s: %w", task.ID, err)
	}

	tasks := options.parser(resp.Content, task.ID)
	if len(tasks) == 0 {
		return nil, fmt.Errorf("evolve task %s: %w", task.ID, ErrEmptyDecomposition)
	}
	return tasks[0], nil
}

// Compose aggregates the results of a task's non-deleted subtasks into a
// result for the task itself and returns it. The rendering is deterministic:
// subtask results in decomposition order, each labeled with its id.
func Compose(task *models.Task) string {
	var sb strings.Builder
	for _, sub := range task.Subtasks {
		if sub.State == models.TaskStateDeleted {
			continue
		}
		fmt.Fprintf(&sb, "[%s] %s\n", sub.ID, sub.Result)
	}
	result := strings.TrimRight(sb.String(), "\n")
	task.UpdateResult(result)
	return result
}

// Package oracle provides the reasoning oracle abstraction: the external
// collaborator that turns a prompt into free text or a structured result.
package oracle

import (
	"context"
	"encoding/json"
)

// StepResult is the outcome of a single oracle invocation.
type StepResult struct {
	// Content is the free-text response.
	Content string
	// Parsed holds the structured value when a schema was supplied,
	// nil otherwise.
	Parsed json.RawMessage
}

// Schema describes a structured-output contract for a Step call.
type Schema struct {
	// Name identifies the output shape (used as the tool name on the wire).
	Name string
	// Description tells the model what the shape is for.
	Description string
	// Properties is a JSON-schema properties map.
	Properties map[string]interface{}
	// Required lists the property names that must be present.
	Required []string
}

// Oracle is a single reasoning step: prompt in, text or structured value out.
// Implementations must honor ctx cancellation; callers are expected to treat
// any returned error as a processing failure rather than propagate it.
type Oracle interface {
	Step(ctx context.Context, prompt string, schema *Schema) (StepResult, error)
}

// SessionFactory mints fresh oracle sessions. Supervisors use it to give a
// newly spawned worker an oracle with no memory of prior failed attempts.
type SessionFactory interface {
	NewSession(role string) Oracle
}

// TaskResult is the structured shape a leaf worker requires from the oracle
// when processing a task.
type TaskResult struct {
	// Content is the produced result text.
	Content string `json:"content"`
	// Failed reports that the worker could not complete the task.
	Failed bool `json:"failed"`
}

// TaskResultSchema returns the wire schema for TaskResult.
func TaskResultSchema() *Schema {
	return &Schema{
		Name:        "task_result",
		Description: "Report the outcome of processing a task.",
		Properties: map[string]interface{}{
			"content": map[string]interface{}{
				"type":        "string",
				"description": "The result of the task, or an explanation of why it could not be done",
			},
			"failed": map[string]interface{}{
				"type":        "boolean",
				"description": "True if the task could not be completed",
			},
		},
		Required: []string{"content", "failed"},
	}
}

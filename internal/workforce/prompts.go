package workforce

import (
	"fmt"
	"strings"

	"github.com/taskweave/taskweave/pkg/models"
)

// workerRole is the system prompt for freshly minted leaf workers.
const workerRole = `You are a worker in a task-processing team. You complete
the single task you are given, using the results of its prerequisite tasks
where provided. Report honestly when a task cannot be completed.`

// processTaskPrompt is the template a leaf worker fills in before invoking
// the oracle. Verbs: task content, rendered dependency results, additional
// info.
const processTaskPrompt = `Complete the following task.

Task:
%s

Results of prerequisite tasks:
%s

Additional context:
%s

Report the outcome with the task_result tool: set content to the result
text, and failed to true only if the task cannot be completed.`

// renderDependencies renders completed dependency tasks for inclusion in a
// worker prompt.
func renderDependencies(deps []*models.Task) string {
	if len(deps) == 0 {
		return "(none)"
	}
	var sb strings.Builder
	for _, dep := range deps {
		fmt.Fprintf(&sb, "- task %s: %s\n  result: %s\n", dep.ID, dep.Content, dep.Result)
	}
	return strings.TrimRight(sb.String(), "\n")
}

package decompose

import (
	"fmt"
	"strings"

	"github.com/taskweave/taskweave/pkg/models"
)

// ValidationResult contains the results of validating a decomposition.
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// fanOutWarnThreshold is the subtask count above which a decomposition is
// flagged as likely too fine-grained.
const fanOutWarnThreshold = 12

// Validate checks a parsed decomposition against its parent task before the
// subtasks are adopted. The default parser always produces well-formed
// output; this guards custom parsers and keeps malformed ids out of the
// manager and the channel. Errors make the decomposition unusable, warnings
// do not.
func Validate(parent *models.Task, subtasks []*models.Task) ValidationResult {
	result := ValidationResult{Valid: true}

	seen := make(map[string]bool, len(subtasks))
	prefix := parent.ID + "."
	for _, sub := range subtasks {
		if strings.TrimSpace(sub.Content) == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("subtask %s has empty content", sub.ID))
		}
		if !strings.HasPrefix(sub.ID, prefix) {
			result.Errors = append(result.Errors, fmt.Sprintf("subtask id %s is not under parent %s", sub.ID, parent.ID))
		}
		if seen[sub.ID] {
			result.Errors = append(result.Errors, fmt.Sprintf("duplicate subtask id %s", sub.ID))
		}
		seen[sub.ID] = true
	}

	if len(subtasks) > fanOutWarnThreshold {
		result.Warnings = append(result.Warnings, fmt.Sprintf("decomposition of %s produced %d subtasks", parent.ID, len(subtasks)))
	}

	result.Valid = len(result.Errors) == 0
	return result
}

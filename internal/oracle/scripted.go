package oracle

import (
	"context"
	"fmt"
	"sync"
)

// Scripted is a deterministic Oracle for tests: it replays a fixed sequence
// of responses and records every prompt it receives.
type Scripted struct {
	mu        sync.Mutex
	responses []StepResult
	errs      []error
	next      int
	prompts   []string
}

// NewScripted creates a scripted oracle that replays the given responses in
// order. A nil entry in errs (or a shorter errs slice) means the matching
// step succeeds.
func NewScripted(responses ...StepResult) *Scripted {
	return &Scripted{responses: responses}
}

// FailAt makes the i-th step (0-indexed) return the given error instead of
// its scripted response.
func (s *Scripted) FailAt(i int, err error) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.errs) <= i {
		s.errs = append(s.errs, nil)
	}
	s.errs[i] = err
	return s
}

// Step returns the next scripted response, or an error once the script is
// exhausted.
func (s *Scripted) Step(ctx context.Context, prompt string, schema *Schema) (StepResult, error) {
	if err := ctx.Err(); err != nil {
		return StepResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.prompts = append(s.prompts, prompt)
	i := s.next
	s.next++

	if i < len(s.errs) && s.errs[i] != nil {
		return StepResult{}, s.errs[i]
	}
	if i >= len(s.responses) {
		return StepResult{}, fmt.Errorf("scripted oracle exhausted after %d steps", len(s.responses))
	}
	return s.responses[i], nil
}

// Prompts returns a copy of the prompts received so far.
func (s *Scripted) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.prompts))
	copy(out, s.prompts)
	return out
}

// Steps returns the number of Step calls made.
func (s *Scripted) Steps() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

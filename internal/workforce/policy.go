package workforce

import (
	"errors"
	"math/rand"
	"sync"

	"github.com/taskweave/taskweave/pkg/models"
)

// ErrEmptyRoster indicates an assignment was requested with no children to
// assign to.
var ErrEmptyRoster = errors.New("no workers available for assignment")

// AssignmentPolicy decides which existing child takes a subtask. Given a
// subtask and the current roster of child ids it returns exactly one
// assignee id. Implementations must be injectable so tests can substitute a
// deterministic policy.
type AssignmentPolicy interface {
	Assign(task *models.Task, roster []string, failedLog string) (string, error)
}

// RandomPolicy picks a uniformly random child. This is a placeholder
// policy, not a scheduler: it ignores capability and load. The seed is
// injectable so runs can be reproduced.
type RandomPolicy struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomPolicy creates a random policy from the given seed.
func NewRandomPolicy(seed int64) *RandomPolicy {
	return &RandomPolicy{rng: rand.New(rand.NewSource(seed))}
}

// Assign returns a random roster entry.
func (p *RandomPolicy) Assign(task *models.Task, roster []string, failedLog string) (string, error) {
	if len(roster) == 0 {
		return "", ErrEmptyRoster
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return roster[p.rng.Intn(len(roster))], nil
}

// RoundRobinPolicy cycles through the roster in order. Deterministic, used
// in tests and as a sane default when nothing smarter is configured.
type RoundRobinPolicy struct {
	mu   sync.Mutex
	next int
}

// NewRoundRobinPolicy creates a round-robin policy starting at the first
// roster entry.
func NewRoundRobinPolicy() *RoundRobinPolicy {
	return &RoundRobinPolicy{}
}

// Assign returns the next roster entry in rotation.
func (p *RoundRobinPolicy) Assign(task *models.Task, roster []string, failedLog string) (string, error) {
	if len(roster) == 0 {
		return "", ErrEmptyRoster
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	id := roster[p.next%len(roster)]
	p.next++
	return id, nil
}

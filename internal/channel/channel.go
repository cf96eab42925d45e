// Package channel implements the task channel: the shared, addressable
// mailbox connecting supervisors and workers. It is the only mutable state
// shared across concurrent units in the system, so every access is
// serialized behind one mutex.
package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/taskweave/taskweave/pkg/models"
)

// ErrDuplicateID indicates a packet was sent for a task id already in
// flight. This is a programming error, not an operational condition.
var ErrDuplicateID = errors.New("packet already in channel")

// ErrUnknownID indicates an operation referenced a task id with no channel
// entry.
var ErrUnknownID = errors.New("no packet for task id")

// TaskChannel is an asynchronous mailbox of in-flight packets keyed by task
// id. Publishers push packets toward named assignees; assignees return
// terminal packets toward their publisher; publishers may remove or
// acknowledge entries.
type TaskChannel struct {
	mu      sync.Mutex
	cond    *sync.Cond
	packets map[string]*models.Packet
}

// New creates an empty task channel.
func New() *TaskChannel {
	c := &TaskChannel{
		packets: make(map[string]*models.Packet),
	}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Send registers the packet under its task id, making it visible to the
// assignee. Sending a task id that is already in flight is an error.
func (c *TaskChannel) Send(p *models.Packet) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := p.Task.ID
	if _, exists := c.packets[id]; exists {
		return fmt.Errorf("send task %q: %w", id, ErrDuplicateID)
	}
	c.packets[id] = p
	c.cond.Broadcast()
	return nil
}

// Return transitions the packet for the given task id to the given status
// and wakes any waiting publisher or assignee.
func (c *TaskChannel) Return(taskID string, status models.PacketStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.packets[taskID]
	if !ok {
		return fmt.Errorf("return task %q: %w", taskID, ErrUnknownID)
	}
	p.Status = status
	c.cond.Broadcast()
	return nil
}

// Remove deletes the channel entry for the given task id. Used when a
// failed subtask tree is abandoned before re-decomposition.
func (c *TaskChannel) Remove(taskID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.packets[taskID]; !ok {
		return fmt.Errorf("remove task %q: %w", taskID, ErrUnknownID)
	}
	delete(c.packets, taskID)
	c.cond.Broadcast()
	return nil
}

// ReturnedByPublisher blocks until a packet published by publisherID
// reaches a terminal status (completed or failed), then returns it. This is
// the sole suspension point for a supervisor. Context cancellation unblocks
// the wait.
func (c *TaskChannel) ReturnedByPublisher(ctx context.Context, publisherID string) (*models.Packet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for {
		for _, p := range c.packets {
			if p.PublisherID == publisherID && p.Status.Terminal() {
				return p, nil
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c.wait(ctx)
	}
}

// AssignedTo blocks until a packet assigned to assigneeID is dispatchable:
// status assigned, and every listed dependency resolved. Context
// cancellation unblocks the wait.
func (c *TaskChannel) AssignedTo(ctx context.Context, assigneeID string) (*models.Packet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for {
		for _, p := range c.packets {
			if p.AssigneeID == assigneeID && p.Status == models.PacketStatusAssigned && c.depsResolvedLocked(p) {
				return p, nil
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c.wait(ctx)
	}
}

// depsResolvedLocked reports whether every dependency of p has completed.
// A dependency with no channel entry counts as resolved: its packet was
// either acknowledged and composed away, or replaced by a recovery lineage
// the publisher has already seen through. Caller must hold c.mu.
func (c *TaskChannel) depsResolvedLocked(p *models.Packet) bool {
	for _, depID := range p.Dependencies {
		dep, ok := c.packets[depID]
		if !ok {
			continue
		}
		if dep.Status != models.PacketStatusCompleted && dep.Status != models.PacketStatusClosed {
			return false
		}
	}
	return true
}

// TasksByID returns the tasks for the given ids, in the given order,
// skipping ids with no channel entry.
func (c *TaskChannel) TasksByID(ids []string) []*models.Task {
	c.mu.Lock()
	defer c.mu.Unlock()

	var tasks []*models.Task
	for _, id := range ids {
		if p, ok := c.packets[id]; ok {
			tasks = append(tasks, p.Task)
		}
	}
	return tasks
}

// Snapshot returns a copy of the in-flight packet map, usable as a trace of
// everything the channel currently holds.
func (c *TaskChannel) Snapshot() map[string]*models.Packet {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]*models.Packet, len(c.packets))
	for id, p := range c.packets {
		out[id] = p
	}
	return out
}

// Len returns the number of in-flight packets.
func (c *TaskChannel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.packets)
}

// wait blocks on the condition variable until the channel changes or ctx is
// done. Caller must hold c.mu; the lock is held again on return. The
// watcher takes the lock before broadcasting so a cancellation arriving
// between the caller's ctx check and the Wait cannot be lost.
func (c *TaskChannel) wait(ctx context.Context) {
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			c.mu.Lock()
			c.cond.Broadcast()
			c.mu.Unlock()
		case <-stop:
		}
	}()
	c.cond.Wait()
	close(stop)
}

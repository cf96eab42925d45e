package models

// PacketStatus represents the delivery status of an in-flight packet.
type PacketStatus string

const (
	// PacketStatusAssigned indicates the packet was sent to its assignee
	// and a result is awaited. This is the default status on send.
	PacketStatusAssigned PacketStatus = "assigned"
	// PacketStatusCompleted indicates the assignee finished successfully.
	PacketStatusCompleted PacketStatus = "completed"
	// PacketStatusFailed indicates the assignee could not complete the task.
	PacketStatusFailed PacketStatus = "failed"
	// PacketStatusClosed indicates the publisher acknowledged completion
	// and dequeued the packet.
	PacketStatusClosed PacketStatus = "closed"
)

// Valid returns true if the status is a known value.
func (s PacketStatus) Valid() bool {
	switch s {
	case PacketStatusAssigned, PacketStatusCompleted, PacketStatusFailed, PacketStatusClosed:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status is one a publisher waits for.
func (s PacketStatus) Terminal() bool {
	return s == PacketStatusCompleted || s == PacketStatusFailed
}

// Packet is the routing envelope that binds a task to publisher, assignee,
// dependency and status metadata while it moves through the channel.
type Packet struct {
	// Task is the task being routed. The packet owns this reference.
	Task *Task `json:"task"`
	// PublisherID identifies the supervisor that emitted the packet.
	PublisherID string `json:"publisher_id"`
	// AssigneeID identifies the worker expected to process the packet.
	AssigneeID string `json:"assignee_id"`
	// Dependencies lists sibling task ids that must complete before this
	// packet may be dispatched, in emission order.
	Dependencies []string `json:"dependencies,omitempty"`
	// Status is the current delivery status.
	Status PacketStatus `json:"status"`
	// Attempt is the recovery generation for this task's lineage. Zero for
	// first dispatch; each failure-recovery decomposition of an ancestor
	// increments it. Bounds unbounded re-decomposition.
	Attempt int `json:"attempt,omitempty"`
}

// NewPacket creates an assigned packet for a task.
func NewPacket(task *Task, publisherID, assigneeID string, dependencies []string) *Packet {
	return &Packet{
		Task:         task,
		PublisherID:  publisherID,
		AssigneeID:   assigneeID,
		Dependencies: dependencies,
		Status:       PacketStatusAssigned,
	}
}

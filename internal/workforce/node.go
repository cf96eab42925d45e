// Package workforce implements the worker hierarchy: leaf workers that
// process one task at a time against the reasoning oracle, and supervisors
// that decompose tasks, dispatch packets to children, and recover from
// child failure by re-decomposing and staffing fresh workers.
package workforce

import "context"

// Node is a member of the worker hierarchy. Both leaf workers and
// supervisors implement it: a uniform lifecycle of start, stop, and
// processing units of work pulled from the shared channel.
type Node interface {
	// ID returns the node's channel address.
	ID() string
	// Description returns a human-readable description of the node.
	Description() string
	// Start runs the node's work loop until it is stopped or ctx is done.
	Start(ctx context.Context) error
	// Stop requests a cooperative stop. It does not interrupt an in-flight
	// oracle call or channel wait; the loop exits once the current blocking
	// call resolves.
	Stop()
}

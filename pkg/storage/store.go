package storage

import (
	"errors"

	"github.com/cuemby/keyforge/pkg/types"
)

// ErrEmpty is returned by Peek and Pop on an empty queue
var ErrEmpty = errors.New("storage: pending result queue is empty")

// ResultQueue holds results that were computed but not yet acknowledged by
// the server, oldest first. Items leave the queue only through Pop, which the
// worker calls after the server acknowledged the head item
type ResultQueue interface {
	// Push appends a result at the tail
	Push(res *types.JobResult) error

	// Peek returns the head without removing it
	Peek() (*types.JobResult, error)

	// Pop removes the head
	Pop() error

	// Len returns the number of queued results
	Len() int

	// Close releases the backing store
	Close() error
}

// MemoryQueue is a process-lifetime ResultQueue. Its contents are lost on exit.
// Not safe for concurrent use; the worker control loop is its only user
type MemoryQueue struct {
	items []*types.JobResult
}

// NewMemoryQueue creates an empty in-memory queue
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

func (q *MemoryQueue) Push(res *types.JobResult) error {
	q.items = append(q.items, res)
	return nil
}

func (q *MemoryQueue) Peek() (*types.JobResult, error) {
	if len(q.items) == 0 {
		return nil, ErrEmpty
	}
	return q.items[0], nil
}

func (q *MemoryQueue) Pop() error {
	if len(q.items) == 0 {
		return ErrEmpty
	}
	q.items[0] = nil
	q.items = q.items[1:]
	return nil
}

func (q *MemoryQueue) Len() int {
	return len(q.items)
}

func (q *MemoryQueue) Close() error {
	q.items = nil
	return nil
}

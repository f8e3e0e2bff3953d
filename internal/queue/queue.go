// Package queue implements the bounded priority queue described in §4.3:
// strictly-descending-priority ordering with FIFO tie-break by insertion
// order, backed by container/heap.
//
// The Open Question in §9 ("the outer lock taken around the queue during
// the admission check is shared while the push later takes exclusive...
// implementers should close the race by performing the bounds check and
// push under a single exclusive acquisition") is resolved here: TryPush
// performs the capacity check and the push atomically under one Lock.
package queue

import (
	"container/heap"
	"sync"

	"glowhost/internal/hosterr"
	"glowhost/pkg/types"
)

// item wraps one InferRequest with the heap's bookkeeping; seq is a
// monotonic insertion counter that breaks priority ties FIFO, independent
// of whatever the caller set for RequestID.
type item struct {
	req *types.InferRequest
	seq uint64
}

type priorityHeap []*item

func (h priorityHeap) Len() int { return len(h) }

func (h priorityHeap) Less(i, j int) bool {
	if h[i].req.Priority != h[j].req.Priority {
		return h[i].req.Priority > h[j].req.Priority
	}
	return h[i].seq < h[j].seq
}

func (h priorityHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *priorityHeap) Push(x any) { *h = append(*h, x.(*item)) }

func (h *priorityHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// Queue is the bounded priority queue of pending InferRequests.
type Queue struct {
	mu      sync.Mutex
	items   priorityHeap
	nextSeq uint64
	maxSize int
}

// New returns a Queue bounded at maxSize entries.
func New(maxSize int) *Queue {
	q := &Queue{maxSize: maxSize}
	heap.Init(&q.items)
	return q
}

// TryPush pushes req if there is room, returning RUNTIME_REQUEST_REFUSED
// under a single exclusive critical section if the queue is already at
// maxSize. The caller is responsible for releasing any refcount it took
// before calling TryPush if this returns an error.
func (q *Queue) TryPush(req *types.InferRequest) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= q.maxSize {
		return hosterr.RequestRefused(req.NetworkName)
	}
	heap.Push(&q.items, &item{req: req, seq: q.nextSeq})
	q.nextSeq++
	return nil
}

// Pop removes and returns the highest-priority, earliest-submitted
// request. ok is false if the queue is empty.
func (q *Queue) Pop() (req *types.InferRequest, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	it := heap.Pop(&q.items).(*item)
	return it.req, true
}

// Len reports the current number of queued requests.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// MaxSize returns the configured capacity.
func (q *Queue) MaxSize() int { return q.maxSize }

// Package queue implements the prioritized task queue that coordinates the
// reduction workers. Tasks targeting heavier subtrees are popped first.
package queue

import (
	"container/heap"
	"sync"

	"github.com/Sumatoshi-tech/prunefang/internal/syntree"
)

// Kind discriminates the reduction strategies a task can carry.
type Kind uint8

// Task kinds.
const (
	// KindExplore considers a subtree for any applicable strategy.
	KindExplore Kind = iota
	// KindDelete attempts to remove an optional node.
	KindDelete
	// KindDelta attempts to shrink a node's child list.
	KindDelta
	// KindHoist attempts to replace a node by one of its descendants.
	KindHoist
)

// String returns the task kind name for logs and metrics labels.
func (k Kind) String() string {
	switch k {
	case KindExplore:
		return "explore"
	case KindDelete:
		return "delete"
	case KindDelta:
		return "delta"
	case KindHoist:
		return "hoist"
	default:
		return "unknown"
	}
}

// Task is a unit of reduction work. Node is the target; Repl is only set
// for hoist tasks and names the descendant to hoist into the target's slot.
type Task struct {
	Kind Kind
	Node syntree.NodeID
	Repl syntree.NodeID
}

// Prioritized pairs a task with its scheduling priority: the byte weight of
// the target subtree at task-creation time. The weight is snapshot-relative
// and may be stale by the time the task runs; that only affects scheduling
// quality, never correctness.
type Prioritized struct {
	Task     Task
	Priority int
	seq      uint64
}

// Queue is a thread-safe max-priority heap of tasks. An empty pop means
// "nothing right now", not "finished": tasks in flight on other workers may
// still push derived work.
type Queue struct {
	mu    sync.Mutex
	items taskHeap
	seq   uint64
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{}
}

// Push enqueues a task at the given priority.
func (q *Queue) Push(task Task, priority int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.seq++
	heap.Push(&q.items, Prioritized{Task: task, Priority: priority, seq: q.seq})
}

// PopMax removes and returns the highest-priority task. Ties are broken by
// insertion order so runs are reproducible for a fixed schedule. The second
// result is false when the queue is empty right now.
func (q *Queue) PopMax() (Prioritized, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return Prioritized{}, false
	}

	item, ok := heap.Pop(&q.items).(Prioritized)
	if !ok {
		return Prioritized{}, false
	}

	return item, true
}

// Len returns the number of queued tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}

// taskHeap implements heap.Interface as a max-heap on (Priority, -seq).
type taskHeap []Prioritized

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}

	return h[i].seq < h[j].seq
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) {
	item, ok := x.(Prioritized)
	if !ok {
		return
	}

	*h = append(*h, item)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]

	return item
}

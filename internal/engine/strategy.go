package engine

import (
	"context"
	"fmt"

	"github.com/Sumatoshi-tech/prunefang/internal/queue"
	"github.com/Sumatoshi-tech/prunefang/internal/syntree"
)

// minListLen is the smallest child count worth delta debugging.
const minListLen = 2

// dispatch routes a task to its strategy. All strategies share one
// protocol: resolve the target against a snapshot (treating "not found" as
// a silent no-op), synthesize candidates, consult the oracle outside any
// lock, optimistically swap on success, and requeue a revalidated task
// after a lost race. Adding a strategy means adding a Kind and a case here.
func (e *Engine) dispatch(ctx context.Context, task queue.Task) error {
	e.metrics.RecordTask(ctx, task.Kind.String())

	switch task.Kind {
	case queue.KindExplore:
		e.explore(ctx, task)

		return nil
	case queue.KindDelete:
		return e.deleteNode(ctx, task)
	case queue.KindDelta:
		return e.deltaShrink(ctx, task)
	case queue.KindHoist:
		return e.hoist(ctx, task)
	default:
		return fmt.Errorf("%w: %d", ErrUnknownTask, task.Kind)
	}
}

// explore inspects a subtree and enqueues every strategy it licenses:
// deletion for optional nodes, delta debugging for list nodes, hoisting
// for recursively structured nodes, and a further Explore per child so the
// traversal reaches every descendant regardless of which strategy fires
// here. Strategies at different depths are independent and may all apply.
func (e *Engine) explore(ctx context.Context, task queue.Task) {
	snap := e.target.Snapshot()

	n := snap.Find(task.Node)
	if n == nil {
		e.recordStaleDrop(ctx)

		return
	}

	if n.Optional() {
		e.enqueue(queue.Task{Kind: queue.KindDelete, Node: n.ID()}, n.Weight())
	} else if n.List() && len(n.Children()) >= minListLen {
		e.enqueue(queue.Task{Kind: queue.KindDelta, Node: n.ID()}, n.Weight())
	}

	e.enqueueHoists(n)

	for _, child := range n.Children() {
		e.enqueue(queue.Task{Kind: queue.KindExplore, Node: child.ID()}, child.Weight())
	}
}

// enqueueHoists queues one Hoist per descendant of the same syntactic kind.
// Same-kind descendants are the grammar-agnostic reading of "a node that
// may be replaced by a node of its own category".
func (e *Engine) enqueueHoists(n *syntree.Node) {
	if n.IsLeaf() {
		return
	}

	n.Descendants(func(d *syntree.Node) bool {
		if d.Kind() == n.Kind() && d.Weight() < n.Weight() {
			e.enqueue(queue.Task{Kind: queue.KindHoist, Node: n.ID(), Repl: d.ID()}, n.Weight())
		}

		return true
	})
}

// deleteNode attempts to remove an optional node. A negative verdict drops
// the task for good; deletion is not retried for the node. A lost swap race
// requeues a revalidated task so other workers can interleave.
func (e *Engine) deleteNode(ctx context.Context, task queue.Task) error {
	snap := e.target.Snapshot()

	n := snap.Find(task.Node)
	if n == nil || !n.Optional() {
		e.recordStaleDrop(ctx)

		return nil
	}

	cand, ok := snap.Remove(task.Node)
	if !ok || cand.Weight() >= snap.Weight() {
		return nil
	}

	interesting, err := e.testCandidate(ctx, cand)
	if err != nil {
		return err
	}

	if !interesting {
		return nil
	}

	if e.target.TryReplace(snap, cand) {
		e.recordCommit(ctx, cand)

		return nil
	}

	e.recordConflict(ctx)
	e.requeueIf(task, func(m *syntree.Node) bool { return m.Optional() })

	return nil
}

// deltaShrink applies delta debugging to a list node's children: partition
// the current list into gran chunks, trial-remove each chunk, keep the
// smallest list the oracle still accepts, and refine granularity until
// single-element removal fails everywhere.
func (e *Engine) deltaShrink(ctx context.Context, task queue.Task) error {
	snap := e.target.Snapshot()

	n := snap.Find(task.Node)
	if n == nil || !n.List() {
		e.recordStaleDrop(ctx)

		return nil
	}

	cur := n.Children()
	gran := 2

	for len(cur) >= minListLen {
		shrunk, fatal, err := e.deltaPass(ctx, task, &snap, &cur, gran)
		if err != nil {
			return err
		}

		if fatal {
			// Lost a race or went stale mid-pass; a fresh task was
			// requeued if still applicable.
			return nil
		}

		if shrunk {
			gran = max(gran-1, 2)

			continue
		}

		if gran >= len(cur) {
			break
		}

		gran = min(gran*2, len(cur))
	}

	return nil
}

// deltaPass tries removing each of gran chunks from the list once. On a
// successful commit it narrows cur and snap in place and reports shrunk.
// The stop result aborts the whole task (stale target or lost race).
func (e *Engine) deltaPass(
	ctx context.Context,
	task queue.Task,
	snap **syntree.Tree,
	cur *[]*syntree.Node,
	gran int,
) (shrunk, stop bool, err error) {
	list := *cur
	chunk := (len(list) + gran - 1) / gran

	for start := 0; start < len(list); start += chunk {
		end := min(start+chunk, len(list))

		trial := make([]*syntree.Node, 0, len(list)-(end-start))
		trial = append(trial, list[:start]...)
		trial = append(trial, list[end:]...)

		if len(trial) == 0 {
			continue
		}

		node := (*snap).Find(task.Node)
		if node == nil || !node.List() {
			e.recordStaleDrop(ctx)

			return false, true, nil
		}

		cand, ok := (*snap).Replace(task.Node, node.WithChildren(trial))
		if !ok || cand.Weight() >= (*snap).Weight() {
			continue
		}

		interesting, testErr := e.testCandidate(ctx, cand)
		if testErr != nil {
			return false, false, testErr
		}

		if !interesting {
			continue
		}

		if e.target.TryReplace(*snap, cand) {
			e.recordCommit(ctx, cand)

			*snap = cand
			*cur = trial

			return true, false, nil
		}

		e.recordConflict(ctx)
		e.requeueIf(task, func(m *syntree.Node) bool { return m.List() })

		return false, true, nil
	}

	return false, false, nil
}

// hoist attempts to replace a node wholesale by one of its own proper
// descendants of the same syntactic category.
func (e *Engine) hoist(ctx context.Context, task queue.Task) error {
	snap := e.target.Snapshot()

	n := snap.Find(task.Node)
	if n == nil {
		e.recordStaleDrop(ctx)

		return nil
	}

	repl := findDescendant(n, task.Repl)
	if repl == nil {
		e.recordStaleDrop(ctx)

		return nil
	}

	if repl.Weight() >= n.Weight() {
		return nil
	}

	cand, ok := snap.Replace(task.Node, repl)
	if !ok {
		return nil
	}

	interesting, err := e.testCandidate(ctx, cand)
	if err != nil {
		return err
	}

	if !interesting {
		return nil
	}

	if e.target.TryReplace(snap, cand) {
		e.recordCommit(ctx, cand)

		// The hoisted subtree sits in a new position; re-explore it so
		// further hoists from its own descendants are considered.
		e.enqueue(queue.Task{Kind: queue.KindExplore, Node: repl.ID()}, repl.Weight())

		return nil
	}

	e.recordConflict(ctx)
	e.requeueIf(task, func(m *syntree.Node) bool { return findDescendant(m, task.Repl) != nil })

	return nil
}

// requeueIf re-validates a task against the now-current snapshot after a
// lost race and requeues it at recomputed priority when the target is still
// present and still qualifies. A vanished target makes the task moot.
func (e *Engine) requeueIf(task queue.Task, qualifies func(*syntree.Node) bool) {
	cur := e.target.Snapshot()

	n := cur.Find(task.Node)
	if n == nil || !qualifies(n) {
		return
	}

	e.enqueue(task, n.Weight())
}

// findDescendant locates a proper descendant of n by id.
func findDescendant(n *syntree.Node, id syntree.NodeID) *syntree.Node {
	var found *syntree.Node

	n.Descendants(func(d *syntree.Node) bool {
		if d.ID() == id {
			found = d

			return false
		}

		return true
	})

	return found
}

// Package engine implements the concurrent reduction engine: a shared
// compare-and-swap tree cell, a pool of workers draining a prioritized task
// queue, and the deletion, list-shrinking, and hoisting strategies.
package engine

import (
	"sync/atomic"

	"github.com/Sumatoshi-tech/prunefang/internal/syntree"
)

// Target is the process-wide cell holding the current best-known-interesting
// tree. Replacement is single-writer-wins: a candidate is installed only if
// the snapshot it was derived from is still the installed one. Workers run
// the slow interestingness check before attempting the swap, so the cell is
// never held across an oracle invocation.
type Target struct {
	cur atomic.Pointer[syntree.Tree]
}

// NewTarget creates a target holding the initial tree.
func NewTarget(tree *syntree.Tree) *Target {
	t := &Target{}
	t.cur.Store(tree)

	return t
}

// Snapshot returns the currently installed tree. Never blocks on writers.
func (t *Target) Snapshot() *syntree.Tree {
	return t.cur.Load()
}

// TryReplace installs candidate iff the installed tree is identity-equal to
// expected. On failure the installed tree is left untouched and the caller
// must re-validate against the winning snapshot.
func (t *Target) TryReplace(expected, candidate *syntree.Tree) bool {
	return t.cur.CompareAndSwap(expected, candidate)
}

package syntree

// Tree is an immutable snapshot of a whole syntax tree. The initial parse
// creates version 0; every successful Replace or Remove produces a new
// snapshot with the version incremented, sharing all unaffected subtrees
// with its predecessor by reference.
type Tree struct {
	root    *Node
	version uint64
}

// New wraps a root node as the initial (version 0) snapshot.
func New(root *Node) *Tree {
	return &Tree{root: root}
}

// Root returns the root node of the snapshot.
func (t *Tree) Root() *Node { return t.root }

// Version returns the snapshot's position in the replacement chain.
func (t *Tree) Version() uint64 { return t.version }

// Weight returns the byte size of the snapshot's rendered source.
func (t *Tree) Weight() int { return t.root.weight }

// Find resolves a NodeID in this snapshot. A nil result is routine, not
// exceptional: tasks are created against snapshots that may since have
// been superseded, and their targets may no longer exist here.
func (t *Tree) Find(id NodeID) *Node {
	stack := []*Node{t.root}

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if n.id == id {
			return n
		}

		for i := len(n.children) - 1; i >= 0; i-- {
			stack = append(stack, n.children[i])
		}
	}

	return nil
}

// Replace produces a new snapshot with the subtree at id replaced by repl.
// Only the ancestors of id are rebuilt (path copying); every other subtree
// is shared with the receiver. Returns false when id does not exist in this
// snapshot, or when repl is nil and id is the root.
func (t *Tree) Replace(id NodeID, repl *Node) (*Tree, bool) {
	if t.root.id == id {
		if repl == nil {
			return nil, false
		}

		return &Tree{root: repl, version: t.version + 1}, true
	}

	newRoot, ok := replaceIn(t.root, id, repl)
	if !ok {
		return nil, false
	}

	return &Tree{root: newRoot, version: t.version + 1}, true
}

// Remove produces a new snapshot with the node at id deleted from its
// parent's child sequence. The root cannot be removed.
func (t *Tree) Remove(id NodeID) (*Tree, bool) {
	return t.Replace(id, nil)
}

// replaceIn rebuilds the spine from n down to id, substituting repl for the
// target (or dropping it when repl is nil). Returns false when id is not in
// this subtree, in which case n is untouched and nothing was allocated.
func replaceIn(n *Node, id NodeID, repl *Node) (*Node, bool) {
	for i, c := range n.children {
		if c.id == id {
			return n.WithChildren(spliceChild(n.children, i, repl)), true
		}

		if newC, ok := replaceIn(c, id, repl); ok {
			return n.WithChildren(spliceChild(n.children, i, newC)), true
		}
	}

	return nil, false
}

// spliceChild copies children with the i-th entry replaced, or removed when
// repl is nil. The input slice is never mutated.
func spliceChild(children []*Node, i int, repl *Node) []*Node {
	out := make([]*Node, 0, len(children))
	out = append(out, children[:i]...)

	if repl != nil {
		out = append(out, repl)
	}

	return append(out, children[i+1:]...)
}

// Render serializes the snapshot to source text. Rendering is a pure
// function of tree structure: leaf token bytes followed by their trailing
// trivia, in document order.
func (t *Tree) Render() []byte {
	out := make([]byte, 0, t.root.weight)

	return renderNode(t.root, out)
}

func renderNode(n *Node, out []byte) []byte {
	if n.IsLeaf() {
		out = append(out, n.text...)

		return append(out, n.trivia...)
	}

	for _, c := range n.children {
		out = renderNode(c, out)
	}

	return out
}

// Package syntree provides the immutable, structurally shared syntax tree
// snapshots that the reduction engine mutates by replacement.
package syntree

// NodeID names a logical node position, stable across tree snapshots that
// share the subtree it denotes. Two NodeIDs are equal iff they denote the
// same logical node, even after unrelated parts of the tree were replaced.
type NodeID uint32

// InvalidID is never assigned to a real node. IDs are allocated from 1.
const InvalidID NodeID = 0

// Node is a read-only structural unit of a syntax tree. Nodes are immutable
// once constructed; every mutation produces a new Node (and a new Tree),
// never an in-place edit.
type Node struct {
	id        NodeID
	kind      string
	text      []byte // leaf token bytes; nil for interior nodes
	trivia    []byte // whitespace following the token in the source
	children  []*Node
	startByte uint32
	endByte   uint32
	weight    int
	optional  bool
	list      bool
}

// NewLeaf constructs a leaf node carrying the exact token bytes plus the
// trailing trivia (inter-token whitespace) needed to reproduce the source.
func NewLeaf(id NodeID, kind string, text, trivia []byte, startByte, endByte uint32, optional bool) *Node {
	return &Node{
		id:        id,
		kind:      kind,
		text:      text,
		trivia:    trivia,
		startByte: startByte,
		endByte:   endByte,
		weight:    len(text) + len(trivia),
		optional:  optional,
	}
}

// NewInterior constructs an interior node over the given children.
// The subtree weight is computed once here and cached.
func NewInterior(id NodeID, kind string, children []*Node, startByte, endByte uint32, optional, list bool) *Node {
	w := 0
	for _, c := range children {
		w += c.weight
	}

	return &Node{
		id:        id,
		kind:      kind,
		children:  children,
		startByte: startByte,
		endByte:   endByte,
		weight:    w,
		optional:  optional,
		list:      list,
	}
}

// WithChildren returns a copy of the node holding a different child sequence.
// The identity (NodeID), kind, and capability flags are preserved; the weight
// is recomputed. Used by list shrinking to build candidate variants.
func (n *Node) WithChildren(children []*Node) *Node {
	w := 0
	for _, c := range children {
		w += c.weight
	}

	return &Node{
		id:        n.id,
		kind:      n.kind,
		children:  children,
		startByte: n.startByte,
		endByte:   n.endByte,
		weight:    w,
		optional:  n.optional,
		list:      n.list,
	}
}

// ID returns the stable logical identifier of the node.
func (n *Node) ID() NodeID { return n.id }

// Kind returns the grammar node type.
func (n *Node) Kind() string { return n.kind }

// Children returns the ordered child nodes. The returned slice must not be
// mutated.
func (n *Node) Children() []*Node { return n.children }

// Text returns the token bytes of a leaf node, nil for interior nodes.
func (n *Node) Text() []byte { return n.text }

// Optional reports whether the node may be deleted with the parent
// remaining grammatically valid.
func (n *Node) Optional() bool { return n.optional }

// List reports whether the node's children form a shrinkable sequence
// eligible for delta debugging.
func (n *Node) List() bool { return n.list }

// Weight is the byte size of the subtree's rendered source, used as the
// scheduling priority of tasks targeting this node.
func (n *Node) Weight() int { return n.weight }

// StartByte returns the start of the node's span in the original source.
func (n *Node) StartByte() uint32 { return n.startByte }

// EndByte returns the end of the node's span in the original source.
func (n *Node) EndByte() uint32 { return n.endByte }

// IsLeaf reports whether the node carries token text and no children.
func (n *Node) IsLeaf() bool { return len(n.children) == 0 }

// Descendants calls fn for every proper descendant of the node in document
// order. Traversal stops early when fn returns false.
func (n *Node) Descendants(fn func(*Node) bool) {
	for _, c := range n.children {
		if !fn(c) {
			return
		}

		c.Descendants(fn)
	}
}

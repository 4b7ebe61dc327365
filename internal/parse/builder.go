package parse

import (
	"context"
	"errors"
	"fmt"
	"sync"

	sitter "github.com/alexaandru/go-tree-sitter-bare"

	"github.com/Sumatoshi-tech/prunefang/internal/syntree"
	"github.com/Sumatoshi-tech/prunefang/pkg/safeconv"
)

// Sentinel errors for parsing.
var (
	errNoRootNode = errors.New("parse: no root node")
	errPoolType   = errors.New("parse: pool returned unexpected type")
)

// Parser builds syntree snapshots for one language. tree-sitter parser
// instances are pooled; they are cheap to reuse but not safe for
// concurrent use.
type Parser struct {
	language *sitter.Language
	profile  *Profile
	pool     sync.Pool
}

// NewParser creates a parser for the named grammar, using its bundled
// reduction profile unless an override is supplied.
func NewParser(language string, profile *Profile) (*Parser, error) {
	lang := GetLanguage(language)
	if lang == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLanguage, language)
	}

	if profile == nil {
		loaded, err := LoadProfile(language)
		if err != nil {
			return nil, err
		}

		profile = loaded
	}

	p := &Parser{
		language: lang,
		profile:  profile,
	}

	p.pool = sync.Pool{
		New: func() any {
			tsParser := sitter.NewParser()
			tsParser.SetLanguage(lang)

			return tsParser
		},
	}

	return p, nil
}

// Profile returns the reduction profile in effect.
func (p *Parser) Profile() *Profile { return p.profile }

// Parse builds the initial snapshot from source text. Leaves carry the
// exact token bytes plus the trailing inter-token trivia, so rendering the
// fresh snapshot reproduces the input byte-for-byte.
func (p *Parser) Parse(ctx context.Context, source []byte) (*syntree.Tree, error) {
	tsParser, ok := p.pool.Get().(*sitter.Parser)
	if !ok {
		return nil, errPoolType
	}

	defer p.pool.Put(tsParser)

	tsTree, err := tsParser.ParseString(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	defer tsTree.Close()

	root := tsTree.RootNode()
	if root.IsNull() {
		return nil, errNoRootNode
	}

	b := &builder{
		source:  source,
		profile: p.profile,
		trivia:  leafTrivia(root, source),
	}

	return syntree.New(b.build(root, true)), nil
}

// builder tracks id allocation and the leaf cursor during conversion.
type builder struct {
	source  []byte
	profile *Profile
	trivia  [][]byte
	cursor  int
	nextID  syntree.NodeID
}

func (b *builder) allocID() syntree.NodeID {
	b.nextID++

	return b.nextID
}

// build converts a tree-sitter node recursively, pre-order id assignment.
// The root is never optional regardless of profile, so the engine cannot
// delete the whole tree.
func (b *builder) build(tsNode sitter.Node, isRoot bool) *syntree.Node {
	id := b.allocID()
	kind := tsNode.Type()
	start := safeconv.MustUintToUint32(uint(tsNode.StartByte()))
	end := safeconv.MustUintToUint32(uint(tsNode.EndByte()))
	optional := !isRoot && b.profile.IsOptional(kind)

	if tsNode.ChildCount() == 0 {
		text := b.source[tsNode.StartByte():tsNode.EndByte()]

		// Leading file trivia attaches to the first token.
		if b.cursor == 0 && tsNode.StartByte() > 0 {
			text = b.source[:tsNode.EndByte()]
		}

		trivia := b.trivia[b.cursor]
		b.cursor++

		return syntree.NewLeaf(id, kind, text, trivia, start, end, optional)
	}

	children := make([]*syntree.Node, 0, tsNode.ChildCount())

	for i := range tsNode.ChildCount() {
		children = append(children, b.build(tsNode.Child(i), false))
	}

	return syntree.NewInterior(id, kind, children, start, end, optional, b.profile.IsList(kind))
}

// leafTrivia computes, for every leaf in document order, the source bytes
// between the end of its token and the start of the next (the final leaf
// takes the remainder of the file).
func leafTrivia(root sitter.Node, source []byte) [][]byte {
	var spans [][2]uint32

	collectLeafSpans(root, &spans)

	trivia := make([][]byte, len(spans))

	for i, span := range spans {
		nextStart := uint32(len(source))
		if i+1 < len(spans) {
			nextStart = spans[i+1][0]
		}

		if span[1] < nextStart {
			trivia[i] = source[span[1]:nextStart]
		}
	}

	return trivia
}

func collectLeafSpans(tsNode sitter.Node, spans *[][2]uint32) {
	if tsNode.ChildCount() == 0 {
		*spans = append(*spans, [2]uint32{
			safeconv.MustUintToUint32(uint(tsNode.StartByte())),
			safeconv.MustUintToUint32(uint(tsNode.EndByte())),
		})

		return
	}

	for i := range tsNode.ChildCount() {
		collectLeafSpans(tsNode.Child(i), spans)
	}
}

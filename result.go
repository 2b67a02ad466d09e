package peg

import "fmt"

// Outcome is the tri-state result every expression evaluation produces,
// replacing the teacher's boolean returnValues.ok (context.go) with the
// explicit Full/Partial/Failed split spec.md §3 requires so a streaming
// caller can tell "matched", "matched so far, more input might extend this"
// and "does not match" apart.
type Outcome int

const (
	// Failed means the expression does not match the input at all; any
	// position/AST changes it made are rewound by the caller.
	Failed Outcome = iota
	// Partial means the expression matched a prefix of what it needs and
	// ran out of input before it could decide Full vs Failed.
	Partial
	// Full means the expression matched completely.
	Full
)

func (o Outcome) String() string {
	switch o {
	case Failed:
		return "Failed"
	case Partial:
		return "Partial"
	case Full:
		return "Full"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Result is what Match/Parse return for the whole grammar, and what every
// internal eval step threads between combinators.
type Result struct {
	Outcome  Outcome
	Consumed int      // byte offset of the last fully-matched boundary
	At       int      // byte offset where Failed/Partial was decided
	Expected []string // human-readable description of what would have matched, for Failed
}

// Tag identifies an AST node's semantic role. The peg package only defines
// the type; chatast supplies the actual constants (see DESIGN.md: this
// avoids a cyclic import between the generic evaluator and the chat-specific
// tag set, mirroring how hucsmn-peg's capturing.go lets callers supply their
// own NonTerminalConstructor rather than baking node kinds into the core).
type Tag int

// Node is one captured AST node: a byte span optionally tagged with a
// semantic Tag, and any child nodes captured while evaluating its sub.
// Untagged structural matches are never turned into Nodes — only
// expressions wrapped in Arena.Tag produce one. Grounded on
// hucsmn-peg/capturing.go's CC/CT constructors, closed over a fixed Tag
// enumeration instead of arbitrary constructor functions.
type Node struct {
	Tag      Tag
	Start    int
	End      int
	Children []*Node
}

// Text returns the node's matched span of src.
func (n *Node) Text(src string) string {
	return src[n.Start:n.End]
}

// astBuilder accumulates Nodes during evaluation and supports the rewind
// hucsmn-peg/capturing.go's begin/end perform on a failed or aborted Atomic
// group: every node appended after a given mark can be discarded in O(1)
// by truncating the slice back to that mark.
type astBuilder struct {
	stack []*Node // one entry per currently-open Tag/root scope
}

func newASTBuilder() *astBuilder {
	return &astBuilder{stack: []*Node{{}}} // stack[0] is the synthetic root
}

func (b *astBuilder) mark() int {
	return len(b.top().Children)
}

func (b *astBuilder) rewind(mark int) {
	top := b.top()
	top.Children = top.Children[:mark]
}

func (b *astBuilder) top() *Node {
	return b.stack[len(b.stack)-1]
}

func (b *astBuilder) push(n *Node) {
	b.stack = append(b.stack, n)
}

func (b *astBuilder) pop() *Node {
	n := b.top()
	b.stack = b.stack[:len(b.stack)-1]
	b.top().Children = append(b.top().Children, n)
	return n
}

func (b *astBuilder) roots() []*Node {
	return b.stack[0].Children
}

// discard pops the current frame without attaching it (or its children) to
// the parent — used when a Tag or Rule scope turns out Failed or errors.
func (b *astBuilder) discard() {
	b.stack = b.stack[:len(b.stack)-1]
}

// popRaw pops the current frame and returns its accumulated children
// without wrapping them in a Node of their own — used by Rule scopes, which
// group captures for memoization purposes but aren't themselves tagged.
func (b *astBuilder) popRaw() []*Node {
	children := b.top().Children
	b.stack = b.stack[:len(b.stack)-1]
	return children
}

// attach appends nodes directly into the current top frame's children,
// either re-flattening a popped Rule scope or replaying a memoized capture.
func (b *astBuilder) attach(nodes []*Node) {
	top := b.top()
	top.Children = append(top.Children, nodes...)
}

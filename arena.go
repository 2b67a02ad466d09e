package peg

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// Kind enumerates every expression form the evaluator understands. This is
// the closed sum type that replaces hucsmn-peg's open-ended Pattern
// interface (see peg.go's `type Pattern interface { match(*context) error }`
// plus its ~20 concrete implementations) — the grammar is fixed at compile
// time, so handles into one arena can stand in for interface values,
// letting rule bodies reference each other cyclically without indirection
// through Go's interface machinery.
type Kind int

const (
	KLiteral Kind = iota
	KCharClass
	KUntil
	KUntilOneOf
	KEnd
	KEps
	KSpace
	KRest
	KPeek
	KSeq
	KChoice
	KRepeat
	KAtomic
	KTag
	KRule
	KRuleRef
	KJSON
)

func (k Kind) String() string {
	switch k {
	case KLiteral:
		return "Literal"
	case KCharClass:
		return "CharClass"
	case KUntil:
		return "Until"
	case KUntilOneOf:
		return "UntilOneOf"
	case KEnd:
		return "End"
	case KEps:
		return "Eps"
	case KSpace:
		return "Space"
	case KRest:
		return "Rest"
	case KPeek:
		return "Peek"
	case KSeq:
		return "Seq"
	case KChoice:
		return "Choice"
	case KRepeat:
		return "Repeat"
	case KAtomic:
		return "Atomic"
	case KTag:
		return "Tag"
	case KRule:
		return "Rule"
	case KRuleRef:
		return "RuleRef"
	case KJSON:
		return "JSON"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ExprHandle addresses a node inside an Arena. The zero value never denotes
// a valid node (arenas reserve index 0 as a sentinel), matching the teacher's
// convention of never letting a nil Pattern be composed silently.
type ExprHandle int

const invalidHandle ExprHandle = 0

// expr is one arena node. Only the fields relevant to Kind are populated;
// this mirrors a tagged union, the data-oriented counterpart to the
// teacher's one-struct-per-Pattern-implementation layout in combining.go/
// grouping.go/predicating.go/rune.go/text.go.
type expr struct {
	kind Kind

	// KLiteral
	literal     string
	insensitive bool

	// KCharClass
	class *charClass

	// KUntil / KUntilOneOf
	delims []string

	// KPeek
	negate bool

	// KSeq / KChoice
	subs []ExprHandle

	// KRepeat
	min, max int // max < 0 means unbounded

	// KAtomic / KTag / KRule single-child forms
	sub ExprHandle

	// KTag
	tag Tag

	// KRule / KRuleRef
	name string

	// KJSON
	maxDepth int

	schema *gojsonschema.Schema // non-nil only for KJSON nodes built via Arena.JSON with a schema
}

// Arena owns every expr node for one grammar. It is append-only until Build
// freezes it; after Build, handles are stable and safe to share across
// goroutines for read-only evaluation (see spec.md §5).
type Arena struct {
	nodes  []expr
	rules  map[string]ExprHandle
	root   ExprHandle
	frozen bool
}

// NewArena returns an empty, mutable Arena. Index 0 is reserved so the zero
// ExprHandle can never alias a real node.
func NewArena() *Arena {
	a := &Arena{nodes: make([]expr, 1), rules: make(map[string]ExprHandle)}
	return a
}

func (a *Arena) add(e expr) ExprHandle {
	if a.frozen {
		panic(errFrozenArena)
	}
	a.nodes = append(a.nodes, e)
	return ExprHandle(len(a.nodes) - 1)
}

func (a *Arena) at(h ExprHandle) *expr {
	return &a.nodes[h]
}

// --- leaf constructors ---

// Literal matches s exactly (byte-for-byte; use LiteralFold for
// case-insensitive matching). Grounded on hucsmn-peg/text.go's T/TI.
func (a *Arena) Literal(s string) ExprHandle {
	return a.add(expr{kind: KLiteral, literal: s})
}

// LiteralFold matches s case-insensitively, using the same safe-fold table
// foldcase.go ports from the teacher.
func (a *Arena) LiteralFold(s string) ExprHandle {
	return a.add(expr{kind: KLiteral, literal: s, insensitive: true})
}

// CharSet matches any single rune in set. Grounded on rune.go's S.
func (a *Arena) CharSet(set string) ExprHandle {
	return a.add(expr{kind: KCharClass, class: charSet(set)})
}

// NotCharSet matches any single rune not in exclude. Grounded on rune.go's NS.
func (a *Arena) NotCharSet(exclude string) ExprHandle {
	return a.add(expr{kind: KCharClass, class: negatedCharSet(exclude)})
}

// CharRange matches any rune in the given [low, high] pairs. Grounded on
// rune.go's R.
func (a *Arena) CharRange(low, high rune, rest ...rune) ExprHandle {
	return a.add(expr{kind: KCharClass, class: charRange(low, high, rest...)})
}

// UnicodeClass matches runes in the named unicode ranges. Grounded on
// rune.go's U.
func (a *Arena) UnicodeClass(names ...string) ExprHandle {
	return a.add(expr{kind: KCharClass, class: unicodeClass(names...)})
}

// NotCharRange matches any rune outside the given [low, high] pairs.
// Grounded on rune.go's R, negated the way NotCharSet negates S.
func (a *Arena) NotCharRange(low, high rune, rest ...rune) ExprHandle {
	return a.add(expr{kind: KCharClass, class: negatedCharRange(low, high, rest...)})
}

// Until scans forward for the next occurrence of delim, consuming everything
// before it but not delim itself. Never Partial or Failed: at EOF without
// finding delim it consumes to the end of input as spec.md §4.C specifies.
func (a *Arena) Until(delim string) ExprHandle {
	return a.add(expr{kind: KUntil, delims: []string{delim}})
}

// UntilOneOf is Until generalized to the first of several delimiters: it
// scans for whichever one occurs earliest.
func (a *Arena) UntilOneOf(delims ...string) ExprHandle {
	return a.add(expr{kind: KUntilOneOf, delims: delims})
}

// End matches only at end of input, consuming nothing.
func (a *Arena) End() ExprHandle { return a.add(expr{kind: KEnd}) }

// Eps always matches, consuming nothing.
func (a *Arena) Eps() ExprHandle { return a.add(expr{kind: KEps}) }

// Space matches zero or more ASCII/Unicode whitespace runes, consuming
// nothing on failure (it cannot fail).
func (a *Arena) Space() ExprHandle { return a.add(expr{kind: KSpace}) }

// Rest consumes every remaining byte of input unconditionally.
func (a *Arena) Rest() ExprHandle { return a.add(expr{kind: KRest}) }

// --- combinators ---

// Seq matches every sub in order, threading position and captured AST
// nodes between them. Grounded on combining.go's Seq.
func (a *Arena) Seq(subs ...ExprHandle) ExprHandle {
	return a.add(expr{kind: KSeq, subs: subs})
}

// Choice tries each sub in order and commits to the first one that returns
// Full or Partial; only a hard Failed moves on to the next alternative.
// Grounded on combining.go's Alt.
func (a *Arena) Choice(subs ...ExprHandle) ExprHandle {
	return a.add(expr{kind: KChoice, subs: subs})
}

// Optional is sub, or Eps when sub fails. Sugar over Choice(sub, Eps()).
func (a *Arena) Optional(sub ExprHandle) ExprHandle {
	return a.Choice(sub, a.Eps())
}

// Repeat matches sub greedily between min and max times (max < 0 for
// unbounded). Grounded on combining.go's Qmn family (Q0, Q1, Qn, Q01, Q0n,
// Qnn, Qmn).
func (a *Arena) Repeat(sub ExprHandle, min, max int) ExprHandle {
	if min < 0 || (max >= 0 && max < min) {
		panic(errInvalidRepeatBounds(min, max))
	}
	return a.add(expr{kind: KRepeat, sub: sub, min: min, max: max})
}

// Peek matches sub without consuming input or keeping its captured nodes;
// negate inverts the test (succeeds only when sub fails). Grounded on
// predicating.go's Test/Not.
func (a *Arena) Peek(sub ExprHandle, negate bool) ExprHandle {
	return a.add(expr{kind: KPeek, sub: sub, negate: negate})
}

// Atomic commits sub as a unit: an inner Partial is treated as a hard
// Failed and every position/AST change sub made is rewound. Grounded on
// capturing.go's begin/end rewind pattern, generalized to partial outcomes
// per spec.md §4.C (see DESIGN.md's "Atomic group rewind" entry).
func (a *Arena) Atomic(sub ExprHandle) ExprHandle {
	return a.add(expr{kind: KAtomic, sub: sub})
}

// Tag wraps sub so a successful (Full or Partial) match records an AST node
// of kind tag spanning the bytes sub consumed. Grounded on grouping.go's NG/
// capturing.go's CC, generalized from the teacher's user-supplied
// NonTerminalConstructor to a fixed Tag enumeration (spec.md's AST is
// closed, not open-ended).
func (a *Arena) Tag(tag Tag, sub ExprHandle) ExprHandle {
	return a.add(expr{kind: KTag, tag: tag, sub: sub})
}

// JSON matches one embedded JSON value via the component D lexer/healer,
// optionally validating it against a JSON Schema (component E) when schema
// is non-nil. Build schema once via CompileSchema, not per call.
func (a *Arena) JSON(maxDepth int, schema *gojsonschema.Schema) ExprHandle {
	return a.add(expr{kind: KJSON, maxDepth: maxDepth, schema: schema})
}

// --- named rules (recursion) ---

// Rule defines a named recursive rule. body may reference name (or any
// other rule) via RuleRef before that rule is itself defined — Build
// resolves every RuleRef and rejects left recursion. Grounded on
// capturing.go's Let.
func (a *Arena) Rule(name string, body ExprHandle) ExprHandle {
	if _, exists := a.rules[name]; exists {
		panic(errDuplicateRule(name))
	}
	h := a.add(expr{kind: KRule, name: name, sub: body})
	a.rules[name] = h
	return h
}

// RuleRef refers to a rule defined (now or later) via Rule. Grounded on
// capturing.go's V/CV.
func (a *Arena) RuleRef(name string) ExprHandle {
	return a.add(expr{kind: KRuleRef, name: name})
}

// SetRoot designates the arena's entry rule for Match/Parse.
func (a *Arena) SetRoot(root ExprHandle) {
	if a.frozen {
		panic(errFrozenArena)
	}
	a.root = root
}

// Build validates every RuleRef resolves, rejects left-recursive cycles not
// broken by a consuming Choice branch, and freezes the arena against further
// mutation. It must be called once, after every Rule/constructor call and
// before Match/Parse/Grammar.
func (a *Arena) Build() error {
	if a.frozen {
		return errFrozenArena
	}
	if a.root == invalidHandle {
		return errEmptyMainPattern
	}
	if err := a.resolveRuleRefs(); err != nil {
		return err
	}
	if err := a.checkLeftRecursion(); err != nil {
		return err
	}
	a.frozen = true
	return nil
}

func (a *Arena) resolveRuleRefs() error {
	for i := 1; i < len(a.nodes); i++ {
		e := &a.nodes[i]
		if e.kind != KRuleRef {
			continue
		}
		target, ok := a.rules[e.name]
		if !ok {
			return errUnresolvedRule(e.name)
		}
		_ = target // resolution is by name lookup at eval time too; existence check suffices here
	}
	return nil
}

// checkLeftRecursion computes, for every expression, whether it can match
// having consumed zero bytes ("nullable") and which rules it can call
// without first consuming a byte. A rule is left-recursive if it can reach
// itself through a chain of nullable calls — the same notion spec.md §4.B
// names as the one case Build must reject, while still permitting a cycle
// broken by a Choice branch that always consumes at least one byte first.
func (a *Arena) checkLeftRecursion() error {
	nullable := make(map[ExprHandle]bool)
	callsNoConsume := make(map[ExprHandle]map[string]bool)

	changed := true
	for changed {
		changed = false
		for h := 1; h < len(a.nodes); h++ {
			handle := ExprHandle(h)
			n, calls := a.computeNullable(handle, nullable)
			if n && !nullable[handle] {
				nullable[handle] = true
				changed = true
			}
			prev := callsNoConsume[handle]
			if prev == nil {
				prev = make(map[string]bool)
			}
			for name := range calls {
				if !prev[name] {
					prev[name] = true
					changed = true
				}
			}
			callsNoConsume[handle] = prev
		}
	}

	// Build the zero-consumption call graph among named rules and look for
	// cycles via DFS.
	graph := make(map[string]map[string]bool)
	for name, h := range a.rules {
		graph[name] = callsNoConsume[h]
	}

	visiting := make(map[string]bool)
	visited := make(map[string]bool)
	var path []string
	var dfs func(name string) error
	dfs = func(name string) error {
		if visiting[name] {
			cycle := append(append([]string{}, path...), name)
			return errLeftRecursion(cycle)
		}
		if visited[name] {
			return nil
		}
		visiting[name] = true
		path = append(path, name)
		for next := range graph[name] {
			if err := dfs(next); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		visiting[name] = false
		visited[name] = true
		return nil
	}
	for name := range graph {
		if err := dfs(name); err != nil {
			return err
		}
	}
	return nil
}

// computeNullable returns whether handle can match zero-width, and the set
// of rule names it can reach without consuming a byte first (used to build
// the left-recursion graph).
func (a *Arena) computeNullable(handle ExprHandle, nullable map[ExprHandle]bool) (bool, map[string]bool) {
	e := a.at(handle)
	calls := make(map[string]bool)
	switch e.kind {
	case KLiteral:
		return e.literal == "", calls
	case KCharClass:
		return false, calls
	case KUntil, KUntilOneOf:
		return true, calls // may match zero bytes if the delimiter is at position 0
	case KEnd, KEps, KSpace:
		return true, calls
	case KRest:
		return true, calls // matches zero bytes at EOF
	case KPeek:
		return true, calls // consumes nothing regardless of sub's outcome
	case KSeq:
		allNullable := true
		for _, s := range e.subs {
			if nullable[s] {
				calls = unionNames(calls, reachNoConsume(a, s, nullable))
			} else {
				calls = unionNames(calls, reachNoConsume(a, s, nullable))
				allNullable = false
				break
			}
		}
		return allNullable, calls
	case KChoice:
		any := false
		for _, s := range e.subs {
			calls = unionNames(calls, reachNoConsume(a, s, nullable))
			if nullable[s] {
				any = true
			}
		}
		return any, calls
	case KRepeat:
		calls = reachNoConsume(a, e.sub, nullable)
		return e.min == 0 || nullable[e.sub], calls
	case KAtomic, KTag:
		calls = reachNoConsume(a, e.sub, nullable)
		return nullable[e.sub], calls
	case KRule:
		calls = reachNoConsume(a, e.sub, nullable)
		return nullable[e.sub], calls
	case KRuleRef:
		calls[e.name] = true
		return nullable[a.rules[e.name]], calls
	case KJSON:
		return false, calls
	default:
		return false, calls
	}
}

// reachNoConsume returns the rule names handle can call before consuming a
// byte; for a handle that is itself nullable this includes names reachable
// through it entirely, since evaluation may pass through without consuming.
func reachNoConsume(a *Arena, handle ExprHandle, nullable map[ExprHandle]bool) map[string]bool {
	e := a.at(handle)
	switch e.kind {
	case KRuleRef:
		return map[string]bool{e.name: true}
	case KSeq:
		out := make(map[string]bool)
		for _, s := range e.subs {
			out = unionNames(out, reachNoConsume(a, s, nullable))
			if !nullable[s] {
				break
			}
		}
		return out
	case KChoice:
		out := make(map[string]bool)
		for _, s := range e.subs {
			out = unionNames(out, reachNoConsume(a, s, nullable))
		}
		return out
	case KRepeat, KAtomic, KTag, KRule, KPeek:
		return reachNoConsume(a, e.sub, nullable)
	default:
		return nil
	}
}

func unionNames(a, b map[string]bool) map[string]bool {
	if a == nil {
		a = make(map[string]bool)
	}
	for k := range b {
		a[k] = true
	}
	return a
}

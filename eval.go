package peg

import (
	"unicode"
	"unicode/utf8"
)

// evalContext holds everything one Match call threads through the
// recursive evaluator: the source text, resource limits, the AST builder
// and the packrat memo table. This replaces hucsmn-peg/context.go's
// explicit call-stack state machine (context.call/execute/returns/
// justReturned, operating over a []stackFrame) with plain recursive Go
// calls over the closed Expr sum type — see DESIGN.md's "Evaluator" entry
// for why: the teacher's trampoline exists to let an open-ended Pattern
// interface avoid deep Go call stacks across arbitrarily composed user
// types, but our grammar is a closed, arena-addressed enum, so ordinary
// recursion is both simpler and (via CallstackLimit) still depth-bounded.
type evalContext struct {
	arena *Arena
	src   string
	cfg   Config
	ast   *astBuilder
	memo  map[memoKey]memoEntry
	depth int
}

type memoKey struct {
	handle ExprHandle
	pos    int
}

type memoEntry struct {
	result Result
	nodes  []*Node
}

// Match evaluates the arena's root rule against src and returns the overall
// Result plus every top-level captured Node. cfg's zero value is replaced
// by DefaultConfig(). The arena must have been frozen by a prior Build call.
func (a *Arena) Match(src string, cfg Config) (Result, []*Node, error) {
	if !a.frozen {
		return Result{}, nil, errFrozenArena
	}
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	c := &evalContext{
		arena: a,
		src:   src,
		cfg:   cfg,
		ast:   newASTBuilder(),
		memo:  make(map[memoKey]memoEntry),
	}
	r, err := c.eval(a.root, 0)
	if err != nil {
		return Result{}, nil, err
	}
	return r, c.ast.roots(), nil
}

func (c *evalContext) eval(h ExprHandle, pos int) (Result, error) {
	e := c.arena.at(h)
	switch e.kind {
	case KLiteral:
		return c.evalLiteral(e, pos), nil
	case KCharClass:
		return c.evalCharClass(e, pos), nil
	case KUntil:
		return c.evalUntil(pos, e.delims[0]), nil
	case KUntilOneOf:
		return c.evalUntilOneOf(pos, e.delims), nil
	case KEnd:
		if pos >= len(c.src) {
			return Result{Outcome: Full, Consumed: pos}, nil
		}
		return Result{Outcome: Failed, At: pos, Expected: []string{"end of input"}}, nil
	case KEps:
		return Result{Outcome: Full, Consumed: pos}, nil
	case KSpace:
		return c.evalSpace(pos), nil
	case KRest:
		return Result{Outcome: Full, Consumed: len(c.src)}, nil
	case KPeek:
		return c.evalPeek(e, pos)
	case KSeq:
		return c.evalSeq(e, pos)
	case KChoice:
		return c.evalChoice(e, pos)
	case KRepeat:
		return c.evalRepeat(e, pos)
	case KAtomic:
		return c.evalAtomic(e, pos)
	case KTag:
		return c.evalTag(e, pos)
	case KRule:
		return c.evalRule(h, e, pos)
	case KRuleRef:
		target := c.arena.rules[e.name]
		return c.evalRule(target, c.arena.at(target), pos)
	case KJSON:
		return c.evalJSON(e, pos)
	default:
		return Result{Outcome: Failed, At: pos}, nil
	}
}

func (c *evalContext) evalLiteral(e *expr, pos int) Result {
	lit := []rune(e.literal)
	p := pos
	for i, want := range lit {
		if p >= len(c.src) {
			return Result{Outcome: Partial, Consumed: p, At: p, Expected: []string{e.literal}}
		}
		got, n := utf8.DecodeRuneInString(c.src[p:])
		match := got == want
		if !match && e.insensitive {
			match = foldEquals(got, want)
		}
		if !match {
			return Result{Outcome: Failed, At: p, Expected: []string{e.literal}}
		}
		p += n
		_ = i
	}
	return Result{Outcome: Full, Consumed: p}
}

func (c *evalContext) evalCharClass(e *expr, pos int) Result {
	if pos >= len(c.src) {
		return Result{Outcome: Partial, Consumed: pos, At: pos}
	}
	r, n := utf8.DecodeRuneInString(c.src[pos:])
	if e.class.contains(r) {
		return Result{Outcome: Full, Consumed: pos + n}
	}
	return Result{Outcome: Failed, At: pos, Expected: []string{e.class.String()}}
}

func (c *evalContext) evalUntil(pos int, delim string) Result {
	idx := indexFrom(c.src, pos, delim)
	if idx < 0 {
		return Result{Outcome: Full, Consumed: len(c.src)}
	}
	return Result{Outcome: Full, Consumed: idx}
}

func (c *evalContext) evalUntilOneOf(pos int, delims []string) Result {
	best := -1
	for _, d := range delims {
		idx := indexFrom(c.src, pos, d)
		if idx >= 0 && (best < 0 || idx < best) {
			best = idx
		}
	}
	if best < 0 {
		return Result{Outcome: Full, Consumed: len(c.src)}
	}
	return Result{Outcome: Full, Consumed: best}
}

func indexFrom(s string, pos int, sub string) int {
	if sub == "" || pos > len(s) {
		return -1
	}
	rel := indexString(s[pos:], sub)
	if rel < 0 {
		return -1
	}
	return pos + rel
}

// indexString is strings.Index inlined to keep this file's stdlib surface
// explicit; component A's reversed-partial-regex file covers the one place
// this module needs real regex matching.
func indexString(s, sub string) int {
	n, m := len(s), len(sub)
	if m == 0 {
		return 0
	}
	for i := 0; i+m <= n; i++ {
		if s[i:i+m] == sub {
			return i
		}
	}
	return -1
}

func (c *evalContext) evalSpace(pos int) Result {
	p := pos
	for p < len(c.src) {
		r, n := utf8.DecodeRuneInString(c.src[p:])
		if !unicode.IsSpace(r) {
			break
		}
		p += n
	}
	return Result{Outcome: Full, Consumed: p}
}

func (c *evalContext) evalPeek(e *expr, pos int) (Result, error) {
	mark := c.ast.mark()
	r, err := c.eval(e.sub, pos)
	c.ast.rewind(mark)
	if err != nil {
		return Result{}, err
	}
	if !e.negate {
		switch r.Outcome {
		case Full:
			return Result{Outcome: Full, Consumed: pos}, nil
		case Partial:
			return Result{Outcome: Partial, Consumed: pos, At: r.At}, nil
		default:
			return Result{Outcome: Failed, At: r.At, Expected: r.Expected}, nil
		}
	}
	switch r.Outcome {
	case Full:
		return Result{Outcome: Failed, At: pos}, nil
	case Partial:
		return Result{Outcome: Partial, Consumed: pos, At: r.At}, nil
	default:
		return Result{Outcome: Full, Consumed: pos}, nil
	}
}

func (c *evalContext) evalSeq(e *expr, pos int) (Result, error) {
	mark := c.ast.mark()
	p := pos
	for _, sub := range e.subs {
		r, err := c.eval(sub, p)
		if err != nil {
			return Result{}, err
		}
		switch r.Outcome {
		case Full:
			p = r.Consumed
		case Partial:
			return Result{Outcome: Partial, Consumed: p, At: r.At, Expected: r.Expected}, nil
		default:
			c.ast.rewind(mark)
			return Result{Outcome: Failed, At: r.At, Expected: r.Expected}, nil
		}
	}
	return Result{Outcome: Full, Consumed: p}, nil
}

func (c *evalContext) evalChoice(e *expr, pos int) (Result, error) {
	var expected []string
	maxAt := pos
	for _, sub := range e.subs {
		mark := c.ast.mark()
		r, err := c.eval(sub, pos)
		if err != nil {
			return Result{}, err
		}
		if r.Outcome != Failed {
			return r, nil
		}
		c.ast.rewind(mark)
		expected = append(expected, r.Expected...)
		if r.At > maxAt {
			maxAt = r.At
		}
	}
	return Result{Outcome: Failed, At: maxAt, Expected: expected}, nil
}

func (c *evalContext) evalRepeat(e *expr, pos int) (Result, error) {
	startMark := c.ast.mark()
	p := pos
	count := 0
	for {
		if e.max >= 0 && count >= e.max {
			return Result{Outcome: Full, Consumed: p}, nil
		}
		if c.cfg.LoopLimit > 0 && count >= c.cfg.LoopLimit {
			return Result{}, errLoopLimitReached
		}
		iterMark := c.ast.mark()
		r, err := c.eval(e.sub, p)
		if err != nil {
			return Result{}, err
		}
		switch r.Outcome {
		case Full:
			if r.Consumed == p && e.max < 0 {
				// zero-width iteration of an unbounded repeat: stop instead
				// of looping forever, matching hucsmn-peg's Q0n guard.
				return Result{Outcome: Full, Consumed: p}, nil
			}
			p = r.Consumed
			count++
		case Partial:
			return Result{Outcome: Partial, Consumed: p, At: r.At, Expected: r.Expected}, nil
		default:
			c.ast.rewind(iterMark)
			if count >= e.min {
				return Result{Outcome: Full, Consumed: p}, nil
			}
			c.ast.rewind(startMark)
			return Result{Outcome: Failed, At: r.At, Expected: r.Expected}, nil
		}
	}
}

func (c *evalContext) evalAtomic(e *expr, pos int) (Result, error) {
	mark := c.ast.mark()
	r, err := c.eval(e.sub, pos)
	if err != nil {
		return Result{}, err
	}
	if r.Outcome == Full {
		return r, nil
	}
	c.ast.rewind(mark)
	return Result{Outcome: Failed, At: r.At, Expected: r.Expected}, nil
}

func (c *evalContext) evalTag(e *expr, pos int) (Result, error) {
	node := &Node{}
	c.ast.push(node)
	r, err := c.eval(e.sub, pos)
	if err != nil {
		c.ast.discard()
		return Result{}, err
	}
	if r.Outcome == Failed {
		c.ast.discard()
		return r, nil
	}
	node.Tag = e.tag
	node.Start = pos
	node.End = r.Consumed
	c.ast.pop()
	return r, nil
}

func (c *evalContext) evalRule(handle ExprHandle, e *expr, pos int) (Result, error) {
	key := memoKey{handle, pos}
	if cached, ok := c.memo[key]; ok {
		c.ast.attach(cached.nodes)
		return cached.result, nil
	}

	c.depth++
	if c.cfg.CallstackLimit > 0 && c.depth > c.cfg.CallstackLimit {
		c.depth--
		return Result{}, errCallstackOverflow
	}

	node := &Node{}
	c.ast.push(node)
	r, err := c.eval(e.sub, pos)
	c.depth--
	if err != nil {
		c.ast.discard()
		return Result{}, err
	}
	if r.Outcome == Failed {
		c.ast.discard()
		return r, nil
	}

	children := c.ast.popRaw()
	c.ast.attach(children)
	c.memo[key] = memoEntry{result: r, nodes: children}
	return r, nil
}

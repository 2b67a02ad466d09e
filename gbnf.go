package peg

import (
	"fmt"
	"strings"
)

// TriggerKind mirrors the three trigger styles
// original_source/common/chat-parsers-internal.h's format scripts register
// on common_chat_params.grammar_triggers: a bare word the sampler can watch
// for verbatim, a regex fragment, or a regex that must match the whole
// generated text so far.
type TriggerKind int

const (
	TriggerWord TriggerKind = iota
	TriggerPattern
	TriggerPatternFull
)

// GrammarTrigger is one entry of a format's grammar_triggers list.
type GrammarTrigger struct {
	Kind  TriggerKind
	Value string
}

// Grammar is the GBNF text plus the lazy/trigger metadata a sampler needs,
// mirroring common_chat_params's grammar/grammar_lazy/grammar_triggers
// trio.
type Grammar struct {
	Text     string
	Lazy     bool
	Triggers []GrammarTrigger
}

// Grammar emits a GBNF grammar for the rules reachable from the arena's
// root, following the per-expression-form translation spec.md §4.F
// specifies. toolChoiceAuto mirrors inputs.tool_choice ==
// COMMON_CHAT_TOOL_CHOICE_AUTO in common_chat_build_peg_grammar: Lazy is
// only set when there are triggers AND tool choice is auto, exactly as
// there.
func (a *Arena) Grammar(triggers []GrammarTrigger, toolChoiceAuto bool) (Grammar, error) {
	if !a.frozen {
		return Grammar{}, errFrozenArena
	}

	g := &gbnfGen{arena: a, emitted: map[string]bool{}}
	g.visitForRules(a.root)

	var b strings.Builder
	for _, name := range g.order {
		h := a.rules[name]
		b.WriteString(gbnfRuleName(name))
		b.WriteString(" ::= ")
		b.WriteString(g.expr(a.at(h).sub))
		b.WriteString("\n")
	}
	if g.needsJSONValue {
		b.WriteString(jsonValueGBNFRule)
	}

	return Grammar{
		Text:     b.String(),
		Lazy:     len(triggers) > 0 && toolChoiceAuto,
		Triggers: triggers,
	}, nil
}

type gbnfGen struct {
	arena          *Arena
	emitted        map[string]bool
	order          []string
	needsJSONValue bool
}

// visitForRules walks an expression tree collecting every named rule it
// reaches, in first-reference order, so Grammar emits rule definitions
// before something would otherwise look them up undefined.
func (g *gbnfGen) visitForRules(h ExprHandle) {
	e := g.arena.at(h)
	switch e.kind {
	case KRule:
		if g.emitted[e.name] {
			return
		}
		g.emitted[e.name] = true
		g.order = append(g.order, e.name)
		g.visitForRules(e.sub)
	case KRuleRef:
		g.visitForRules(g.arena.rules[e.name])
	case KSeq, KChoice:
		for _, s := range e.subs {
			g.visitForRules(s)
		}
	case KAtomic, KTag, KPeek, KRepeat:
		g.visitForRules(e.sub)
	}
}

// expr renders one expression as a GBNF fragment. Until/UntilOneOf and
// Peek have no faithful GBNF equivalent (GBNF has no "scan for a
// substring" or lookahead primitive) and KJSON-with-schema only constrains
// "is a JSON value", not the schema itself — see DESIGN.md's "GBNF
// generator" entry for why these are accepted, documented simplifications
// rather than a full json-schema-to-grammar port.
func (g *gbnfGen) expr(h ExprHandle) string {
	e := g.arena.at(h)
	switch e.kind {
	case KLiteral:
		return gbnfQuote(e.literal)
	case KCharClass:
		return g.charClassGBNF(e.class)
	case KUntil, KUntilOneOf:
		return "(.)*"
	case KEnd:
		return "\"\""
	case KEps:
		return "\"\""
	case KSpace:
		return "[ \\t\\n\\r]*"
	case KRest:
		return "(.)*"
	case KPeek:
		return "\"\""
	case KSeq:
		parts := make([]string, len(e.subs))
		for i, s := range e.subs {
			parts[i] = g.parenIfNeeded(s)
		}
		return strings.Join(parts, " ")
	case KChoice:
		parts := make([]string, len(e.subs))
		for i, s := range e.subs {
			parts[i] = g.expr(s)
		}
		return "(" + strings.Join(parts, " | ") + ")"
	case KRepeat:
		return g.repeatGBNF(e)
	case KAtomic, KTag:
		return g.expr(e.sub)
	case KRuleRef:
		g.visitForRules(g.arena.rules[e.name])
		return gbnfRuleName(e.name)
	case KRule:
		g.visitForRules(h)
		return gbnfRuleName(e.name)
	case KJSON:
		g.needsJSONValue = true
		return "json-value"
	default:
		return "\"\""
	}
}

func (g *gbnfGen) parenIfNeeded(h ExprHandle) string {
	e := g.arena.at(h)
	if e.kind == KChoice {
		return g.expr(h)
	}
	return g.expr(h)
}

func (g *gbnfGen) repeatGBNF(e *expr) string {
	inner := g.expr(e.sub)
	wrapped := "(" + inner + ")"
	switch {
	case e.min == 0 && e.max < 0:
		return wrapped + "*"
	case e.min == 1 && e.max < 0:
		return wrapped + "+"
	case e.min == 0 && e.max == 1:
		return wrapped + "?"
	case e.max < 0:
		return fmt.Sprintf("%s{%d,}", wrapped, e.min)
	default:
		return fmt.Sprintf("%s{%d,%d}", wrapped, e.min, e.max)
	}
}

func (g *gbnfGen) charClassGBNF(cc *charClass) string {
	var b strings.Builder
	b.WriteByte('[')
	if cc.not {
		b.WriteByte('^')
	}
	for _, r := range cc.set {
		b.WriteString(gbnfEscapeRune(r))
	}
	for _, rg := range cc.ranges {
		b.WriteString(gbnfEscapeRune(rg.low))
		b.WriteByte('-')
		b.WriteString(gbnfEscapeRune(rg.high))
	}
	if len(cc.tables) > 0 || cc.combine != nil {
		// Unicode property classes have no compact GBNF character-class
		// form; approximate with "any character" rather than enumerating
		// the (potentially huge) range table into a literal set.
		b.WriteString("\\x00-\\x{10FFFF}")
	}
	b.WriteByte(']')
	return b.String()
}

func gbnfRuleName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}

func gbnfQuote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '\n':
			b.WriteString("\\n")
		case '\t':
			b.WriteString("\\t")
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func gbnfEscapeRune(r rune) string {
	switch r {
	case ']', '\\', '^', '-':
		return "\\" + string(r)
	default:
		return string(r)
	}
}

// jsonValueGBNFRule is a hand-written, schema-agnostic JSON-value grammar
// appended once when any KJSON expression is reachable; it constrains
// "well-formed JSON" only, per the expr() doc comment above.
const jsonValueGBNFRule = `json-value ::= json-object | json-array | json-string | json-number | "true" | "false" | "null"
json-object ::= "{" ws (json-string ws ":" ws json-value ("," ws json-string ws ":" ws json-value)*)? ws "}"
json-array ::= "[" ws (json-value ("," ws json-value)*)? ws "]"
json-string ::= "\"" ([^"\\] | "\\" .)* "\""
json-number ::= "-"? [0-9]+ ("." [0-9]+)? ([eE] [-+]? [0-9]+)?
ws ::= [ \t\n\r]*
`

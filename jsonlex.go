package peg

// JSONOutcome mirrors Outcome but is kept distinct from the grammar-level
// type since component D is usable standalone (e.g. by mappers decoding a
// captured JSON Node's text) without going through the evaluator.
type JSONOutcome int

const (
	JSONFailed JSONOutcome = iota
	JSONPartial
	JSONFull
)

// HealState names where inside a JSON value parsing stopped, mirroring the
// twelve-value common_json_flags bitmask in
// original_source/common/json-partial.h — reified here as an enum rather
// than a bitmask since each stopping point is mutually exclusive in a
// recursive-descent scanner (the C++ original ORs flags together only
// because it tracks the innermost container's state separately from the
// value state; our scanner interleaves both into one enum because closure
// synthesis needs exactly one case to decide what string to append).
type HealState int

const (
	HealValueInsideIdent HealState = iota
	HealValueInsideString
	HealValueInsideStringEscape
	HealDictBeforeKey
	HealDictInsideKey
	HealDictAfterKey
	HealDictBeforeValue
	HealDictInsideValue
	HealDictAfterValue
	HealArrayBeforeValue
	HealArrayInsideValue
	HealArrayAfterValue
)

// JSONResult is what scanJSONValue reports for one top-level value.
type JSONResult struct {
	Outcome  JSONOutcome
	Consumed int
	State    HealState
	// Closure is the text to append to src[:Consumed] to produce a
	// syntactically valid (if semantically padded with null/empty values)
	// JSON document — only meaningful when Outcome is JSONPartial. This
	// plays the role of original_source's heal(magic), simplified: the
	// upstream version returns a magic placeholder string so a caller can
	// find-and-replace synthesized values after healing; this port only
	// needs to let the embedded sub-parser keep matching, not to support
	// post-hoc value substitution, so Closure is plain closing syntax.
	Closure string
}

// scanJSONValue recursive-descends over one JSON value starting at pos,
// stopping either at the value's natural end (JSONFull), at end of input
// mid-value (JSONPartial, with Closure set to heal it), or at the first
// byte that cannot begin/continue a valid JSON token (JSONFailed).
func scanJSONValue(src string, pos, depth, maxDepth int) JSONResult {
	pos = skipJSONSpace(src, pos)
	if pos >= len(src) {
		return JSONResult{Outcome: JSONPartial, Consumed: pos, State: HealValueInsideIdent, Closure: "null"}
	}
	if maxDepth > 0 && depth > maxDepth {
		return JSONResult{Outcome: JSONFailed, Consumed: pos}
	}

	switch c := src[pos]; {
	case c == '{':
		return scanJSONObject(src, pos, depth, maxDepth)
	case c == '[':
		return scanJSONArray(src, pos, depth, maxDepth)
	case c == '"':
		return scanJSONString(src, pos)
	case c == '-' || (c >= '0' && c <= '9'):
		return scanJSONNumber(src, pos)
	case c == 't':
		return scanJSONLiteral(src, pos, "true")
	case c == 'f':
		return scanJSONLiteral(src, pos, "false")
	case c == 'n':
		return scanJSONLiteral(src, pos, "null")
	default:
		return JSONResult{Outcome: JSONFailed, Consumed: pos}
	}
}

func scanJSONLiteral(src string, pos int, word string) JSONResult {
	p := pos
	for i := 0; i < len(word); i++ {
		if p >= len(src) {
			return JSONResult{
				Outcome: JSONPartial, Consumed: p,
				State: HealValueInsideIdent, Closure: word[p-pos:],
			}
		}
		if src[p] != word[i] {
			return JSONResult{Outcome: JSONFailed, Consumed: p}
		}
		p++
	}
	return JSONResult{Outcome: JSONFull, Consumed: p}
}

func scanJSONNumber(src string, pos int) JSONResult {
	p := pos
	if p < len(src) && src[p] == '-' {
		p++
	}
	start := p
	for p < len(src) && src[p] >= '0' && src[p] <= '9' {
		p++
	}
	if p == start {
		if p >= len(src) {
			return JSONResult{Outcome: JSONPartial, Consumed: p, State: HealValueInsideIdent, Closure: "0"}
		}
		return JSONResult{Outcome: JSONFailed, Consumed: p}
	}
	if p < len(src) && src[p] == '.' {
		p++
		fracStart := p
		for p < len(src) && src[p] >= '0' && src[p] <= '9' {
			p++
		}
		if p == fracStart {
			if p >= len(src) {
				return JSONResult{Outcome: JSONPartial, Consumed: p, State: HealValueInsideIdent, Closure: "0"}
			}
			return JSONResult{Outcome: JSONFailed, Consumed: p}
		}
	}
	if p < len(src) && (src[p] == 'e' || src[p] == 'E') {
		ep := p + 1
		if ep < len(src) && (src[ep] == '+' || src[ep] == '-') {
			ep++
		}
		expStart := ep
		for ep < len(src) && src[ep] >= '0' && src[ep] <= '9' {
			ep++
		}
		if ep > expStart {
			p = ep
		} else if ep >= len(src) {
			// a dangling 'e'/'e+' with nothing after it yet is still a valid
			// in-progress number; Consumed stops before it so the healed
			// prefix is the digits already scanned.
			return JSONResult{Outcome: JSONPartial, Consumed: p, State: HealValueInsideIdent, Closure: ""}
		}
	}
	// a number that runs to end of input is accepted as complete.
	return JSONResult{Outcome: JSONFull, Consumed: p}
}

func scanJSONString(src string, pos int) JSONResult {
	p := pos + 1 // skip opening quote
	for {
		if p >= len(src) {
			return JSONResult{Outcome: JSONPartial, Consumed: p, State: HealValueInsideString, Closure: "\""}
		}
		switch src[p] {
		case '"':
			return JSONResult{Outcome: JSONFull, Consumed: p + 1}
		case '\\':
			if p+1 >= len(src) {
				// drop the dangling backslash from the healed prefix — closing
				// right after it would make the closure quote read as an
				// escaped character instead of the string terminator.
				return JSONResult{Outcome: JSONPartial, Consumed: p, State: HealValueInsideStringEscape, Closure: "\""}
			}
			if src[p+1] == 'u' {
				// \uXXXX — if truncated mid-escape, drop the incomplete
				// escape from the healed prefix, as for a dangling
				// backslash, and close the string before it.
				end := p + 2
				for end < p+6 && end < len(src) && isHexDigit(src[end]) {
					end++
				}
				if end < p+6 {
					return JSONResult{Outcome: JSONPartial, Consumed: p, State: HealValueInsideString, Closure: "\""}
				}
				p = end
			} else {
				p += 2
			}
		default:
			p++
		}
	}
}

func isHexDigit(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

func scanJSONArray(src string, pos, depth, maxDepth int) JSONResult {
	p := pos + 1 // skip '['
	p = skipJSONSpace(src, p)
	if p < len(src) && src[p] == ']' {
		return JSONResult{Outcome: JSONFull, Consumed: p + 1}
	}
	if p >= len(src) {
		return JSONResult{Outcome: JSONPartial, Consumed: p, State: HealArrayBeforeValue, Closure: "]"}
	}

	for {
		v := scanJSONValue(src, p, depth+1, maxDepth)
		switch v.Outcome {
		case JSONFailed:
			return JSONResult{Outcome: JSONFailed, Consumed: v.Consumed}
		case JSONPartial:
			return JSONResult{Outcome: JSONPartial, Consumed: v.Consumed, State: HealArrayInsideValue, Closure: v.Closure + "]"}
		}
		p = skipJSONSpace(src, v.Consumed)
		if p >= len(src) {
			return JSONResult{Outcome: JSONPartial, Consumed: p, State: HealArrayAfterValue, Closure: "]"}
		}
		switch src[p] {
		case ']':
			return JSONResult{Outcome: JSONFull, Consumed: p + 1}
		case ',':
			p = skipJSONSpace(src, p+1)
			if p >= len(src) {
				return JSONResult{Outcome: JSONPartial, Consumed: p, State: HealArrayBeforeValue, Closure: "null]"}
			}
		default:
			return JSONResult{Outcome: JSONFailed, Consumed: p}
		}
	}
}

func scanJSONObject(src string, pos, depth, maxDepth int) JSONResult {
	p := pos + 1 // skip '{'
	p = skipJSONSpace(src, p)
	if p < len(src) && src[p] == '}' {
		return JSONResult{Outcome: JSONFull, Consumed: p + 1}
	}
	if p >= len(src) {
		return JSONResult{Outcome: JSONPartial, Consumed: p, State: HealDictBeforeKey, Closure: "}"}
	}

	for {
		if p >= len(src) || src[p] != '"' {
			return JSONResult{Outcome: JSONFailed, Consumed: p}
		}
		key := scanJSONString(src, p)
		switch key.Outcome {
		case JSONFailed:
			return JSONResult{Outcome: JSONFailed, Consumed: key.Consumed}
		case JSONPartial:
			return JSONResult{Outcome: JSONPartial, Consumed: key.Consumed, State: HealDictInsideKey, Closure: key.Closure + ":null}"}
		}
		p = skipJSONSpace(src, key.Consumed)
		if p >= len(src) {
			return JSONResult{Outcome: JSONPartial, Consumed: p, State: HealDictAfterKey, Closure: ":null}"}
		}
		if src[p] != ':' {
			return JSONResult{Outcome: JSONFailed, Consumed: p}
		}
		p = skipJSONSpace(src, p+1)
		if p >= len(src) {
			return JSONResult{Outcome: JSONPartial, Consumed: p, State: HealDictBeforeValue, Closure: "null}"}
		}

		val := scanJSONValue(src, p, depth+1, maxDepth)
		switch val.Outcome {
		case JSONFailed:
			return JSONResult{Outcome: JSONFailed, Consumed: val.Consumed}
		case JSONPartial:
			return JSONResult{Outcome: JSONPartial, Consumed: val.Consumed, State: HealDictInsideValue, Closure: val.Closure + "}"}
		}
		p = skipJSONSpace(src, val.Consumed)
		if p >= len(src) {
			return JSONResult{Outcome: JSONPartial, Consumed: p, State: HealDictAfterValue, Closure: "}"}
		}
		switch src[p] {
		case '}':
			return JSONResult{Outcome: JSONFull, Consumed: p + 1}
		case ',':
			p = skipJSONSpace(src, p+1)
			if p >= len(src) {
				return JSONResult{Outcome: JSONPartial, Consumed: p, State: HealDictBeforeKey, Closure: "\"\":null}"}
			}
		default:
			return JSONResult{Outcome: JSONFailed, Consumed: p}
		}
	}
}

func skipJSONSpace(src string, pos int) int {
	for pos < len(src) {
		switch src[pos] {
		case ' ', '\t', '\n', '\r':
			pos++
		default:
			return pos
		}
	}
	return pos
}

// Heal returns src[:r.Consumed] with r.Closure appended, producing a
// document json.Unmarshal (or gojsonschema) can parse even though the
// original input was truncated mid-value. Only meaningful when r.Outcome
// is JSONPartial.
func (r JSONResult) Heal(src string) string {
	return src[:r.Consumed] + r.Closure
}

// evalJSON implements the KJSON expression form: scan one JSON value at
// pos, then (Full only) validate it against e.schema if non-nil via
// component E's jsonschema.go. A JSON value is not itself a Tag/Node; the
// caller wraps Arena.JSON(...) in Arena.Tag(...) to capture its span.
func (c *evalContext) evalJSON(e *expr, pos int) (Result, error) {
	v := scanJSONValue(c.src, pos, 0, e.maxDepth)
	switch v.Outcome {
	case JSONFailed:
		return Result{Outcome: Failed, At: v.Consumed, Expected: []string{"json value"}}, nil
	case JSONPartial:
		return Result{Outcome: Partial, Consumed: v.Consumed, At: v.Consumed}, nil
	}

	if e.schema != nil {
		raw := c.src[pos:v.Consumed]
		if err := validateJSONSchema(raw, e.schema); err != nil {
			return Result{Outcome: Failed, At: v.Consumed, Expected: []string{"json value matching schema"}}, nil
		}
	}
	return Result{Outcome: Full, Consumed: v.Consumed}, nil
}

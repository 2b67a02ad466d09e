package peg

// Config carries the evaluator's resource limits, kept forward from
// hucsmn-peg's peg.go Config (CallstackLimit/LoopLimit guard against
// pathological grammars recursing or repeating without bound) and extended
// with MaxJSONDepth for the embedded JSON lexer's own nesting guard
// (spec.md §4.D).
type Config struct {
	// CallstackLimit bounds named-rule recursion depth. Zero means
	// unbounded (not recommended for untrusted grammars).
	CallstackLimit int
	// LoopLimit bounds a single unbounded Repeat's iteration count. Zero
	// means unbounded.
	LoopLimit int
	// MaxJSONDepth bounds nested object/array depth the JSON lexer (and
	// the JSON-Schema sub-expression built on top of it) will descend
	// into; a value nested deeper makes the JSON expression Failed.
	MaxJSONDepth int
}

// DefaultConfig returns the limits used when no Config is supplied: a
// generous but finite callstack/loop bound, matching the teacher's own
// defaults in its table-driven tests.
func DefaultConfig() Config {
	return Config{
		CallstackLimit: 4096,
		LoopLimit:      1 << 20,
		MaxJSONDepth:   64,
	}
}

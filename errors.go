package peg

import "fmt"

// Build-time errors, fatal to Arena.Build(). Grounded on hucsmn-peg's
// errors.go sentinel-table style, extended with the three build-time
// failure kinds spec.md §4.B requires plus the schema/json errors §4.D/§4.E
// name.
var (
	errCallstackOverflow = errorf("callstack overflow")
	errLoopLimitReached  = errorf("loop limit reached")
	errEmptyMainPattern  = errorf("arena has no root rule set; call SetRoot before Build")
	errFrozenArena       = errorf("arena is frozen: Build already called")
	// errNilSchema guards CompileSchema specifically (jsonschema.go):
	// compiling a nil schema document is always a caller mistake — the
	// "no schema constraint" case is Arena.JSON(depth, nil), which never
	// goes through CompileSchema at all.
	errNilSchema = errorf("schema sub-expression requires a non-nil schema map")

	errUnresolvedRule = func(name string) error {
		return errorf("reference to undefined rule %q", name)
	}
	errDuplicateRule = func(name string) error {
		return errorf("rule %q already defined", name)
	}
	errLeftRecursion = func(cycle []string) error {
		return errorf("left-recursive rule cycle: %v", cycle)
	}
	errPatternSyntax = func(format string, args ...any) error {
		return errorf("pattern syntax: "+format, args...)
	}
	errInvalidRepeatBounds = func(min, max int) error {
		return errorf("invalid repetition bounds min=%d max=%d", min, max)
	}
)

// Parse-time (non-fatal) error kinds, surfaced through Result rather than
// returned directly — see §7 of spec.md. validateJSONSchema (jsonschema.go)
// builds its error text from these two; evalJSON turns any such error into
// a Failed result with an Expected entry and does not return the error.
var (
	ErrSchemaViolation = errorf("json value does not satisfy schema")
	ErrJSONMalformed   = errorf("malformed json")
)

type pegError struct {
	value string
}

func errorf(format string, v ...any) error {
	return &pegError{fmt.Sprintf(format, v...)}
}

func (err *pegError) Error() string {
	return "peg: " + err.value
}

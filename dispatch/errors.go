package dispatch

import "errors"

// Error kinds grounded on spec.md §7's error-handling table, wrapped with
// %w per Go convention rather than the teacher's plain sentinel-value
// style — SPEC_FULL.md's ambient stack calls this out explicitly since
// this package composes multiple fallible stages and callers need
// errors.Is/errors.As.
var (
	ErrParseFailed    = errors.New("dispatch: parse failed")
	ErrUnknownMapper  = errors.New("dispatch: unknown mapper kind")
	ErrUnknownFormat  = errors.New("dispatch: no format marker matched")
	ErrSchemaCompile  = errors.New("dispatch: tool parameter schema failed to compile")
)

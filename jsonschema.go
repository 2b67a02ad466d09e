package peg

import "github.com/xeipuuv/gojsonschema"

// CompileSchema compiles a JSON-Schema document (typically a
// map[string]any literal describing a tool's argument shape) once, ahead
// of parsing, the way a format script builds its grammar once and reuses
// it across every streamed response. Grounded on
// asynkron-GoAgent/internal/core/runtime/validation.go's sync.Once-guarded
// schema loader — this module makes the "compile once" discipline the
// caller's responsibility instead of hiding a cache behind a map key, since
// an arbitrary schema value (typically a map) isn't a valid Go map key.
func CompileSchema(schema any) (*gojsonschema.Schema, error) {
	if schema == nil {
		return nil, errNilSchema
	}
	return gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
}

// validateJSONSchema runs raw (a complete, already-healed-if-needed JSON
// document) against a pre-compiled schema and, on failure, returns a new
// error whose text is ErrSchemaViolation's followed by the validator's own
// messages (ErrJSONMalformed's when the validator cannot load raw). The
// sentinels are not wrapped, so errors.Is does not match them.
func validateJSONSchema(raw string, schema *gojsonschema.Schema) error {
	result, err := schema.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return errorf("%s: %v", ErrJSONMalformed.Error(), err)
	}
	if !result.Valid() {
		msg := ErrSchemaViolation.Error()
		for _, re := range result.Errors() {
			msg += "; " + re.String()
		}
		return errorf("%s", msg)
	}
	return nil
}

package peg

import (
	"encoding/json"
	"testing"
)

func TestScanJSONValueFull(t *testing.T) {
	for _, tc := range []struct {
		name string
		src  string
	}{
		{"object", `{"a":1,"b":[2,3]}`},
		{"array", `[1,2,3]`},
		{"string", `"hello"`},
		{"number-int", `42`},
		{"number-neg", `-17`},
		{"number-frac", `3.14`},
		{"number-exp", `1e10`},
		{"true", `true`},
		{"false", `false`},
		{"null", `null`},
		{"empty-object", `{}`},
		{"empty-array", `[]`},
		{"nested", `{"a":{"b":{"c":[1,2,{"d":"e"}]}}}`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := scanJSONValue(tc.src, 0, 0, 64)
			if r.Outcome != JSONFull {
				t.Fatalf("scanJSONValue(%q) outcome = %v, want JSONFull", tc.src, r.Outcome)
			}
			if r.Consumed != len(tc.src) {
				t.Errorf("scanJSONValue(%q) consumed = %d, want %d", tc.src, r.Consumed, len(tc.src))
			}
		})
	}
}

func TestScanJSONValueFailed(t *testing.T) {
	for _, tc := range []string{
		`{"a":}`,
		`[1,]`,
		`{"a" 1}`,
		`tru`,
		`nul`,
		`xyz`,
	} {
		r := scanJSONValue(tc, 0, 0, 64)
		// dangling-literal prefixes (tru/nul) run off the end of input and
		// are Partial, not Failed, since streaming output may still grow;
		// everything else here has a definite syntax error before EOF.
		if tc == "tru" || tc == "nul" {
			if r.Outcome != JSONPartial {
				t.Errorf("scanJSONValue(%q) outcome = %v, want JSONPartial", tc, r.Outcome)
			}
			continue
		}
		if r.Outcome != JSONFailed {
			t.Errorf("scanJSONValue(%q) outcome = %v, want JSONFailed", tc, r.Outcome)
		}
	}
}

// TestScanJSONValuePartialHeals exercises every HealState by truncating a
// complete JSON document at a point that stops mid-construct, then verifies
// Heal produces text encoding/json can parse.
func TestScanJSONValuePartialHeals(t *testing.T) {
	for _, tc := range []struct {
		name  string
		src   string
		state HealState
	}{
		{"inside-ident-literal", `tru`, HealValueInsideIdent},
		{"inside-ident-number", `-`, HealValueInsideIdent},
		{"inside-string", `"abc`, HealValueInsideString},
		{"inside-string-escape", `"abc\`, HealValueInsideStringEscape},
		{"dict-before-key", `{`, HealDictBeforeKey},
		{"dict-inside-key", `{"ab`, HealDictInsideKey},
		{"dict-after-key", `{"a"`, HealDictAfterKey},
		{"dict-before-value", `{"a":`, HealDictBeforeValue},
		{"dict-inside-value", `{"a":"x`, HealDictInsideValue},
		{"dict-after-value", `{"a":1 `, HealDictAfterValue},
		{"array-before-value", `[`, HealArrayBeforeValue},
		{"array-inside-value", `["x`, HealArrayInsideValue},
		{"array-after-value", `[1 `, HealArrayAfterValue},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := scanJSONValue(tc.src, 0, 0, 64)
			if r.Outcome != JSONPartial {
				t.Fatalf("scanJSONValue(%q) outcome = %v, want JSONPartial", tc.src, r.Outcome)
			}
			healed := r.Heal(tc.src)
			var v any
			if err := json.Unmarshal([]byte(healed), &v); err != nil {
				t.Errorf("scanJSONValue(%q).Heal() = %q, not valid JSON: %v", tc.src, healed, err)
			}
		})
	}
}

// TestScanJSONValueGrowsToFull simulates streaming: healing at every prefix
// length of a complete document either yields a state that still heals to
// valid JSON, or (at the exact full length) an exact JSONFull match.
func TestScanJSONValueGrowsToFull(t *testing.T) {
	full := `{"name":"get_weather","arguments":{"city":"Paris","days":[1,2,3]}}`
	for n := 1; n < len(full); n++ {
		prefix := full[:n]
		r := scanJSONValue(prefix, 0, 0, 64)
		if r.Outcome == JSONFailed {
			continue // a prefix can legitimately land mid-token in a way that's ambiguous without more bytes
		}
		if r.Outcome == JSONPartial {
			healed := r.Heal(prefix)
			var v any
			if err := json.Unmarshal([]byte(healed), &v); err != nil {
				t.Errorf("prefix %d (%q) healed to invalid JSON %q: %v", n, prefix, healed, err)
			}
		}
	}
	r := scanJSONValue(full, 0, 0, 64)
	if r.Outcome != JSONFull || r.Consumed != len(full) {
		t.Errorf("full document did not report JSONFull: %+v", r)
	}
}

func TestScanJSONValueMaxDepth(t *testing.T) {
	deep := `[[[[[1]]]]]`
	if r := scanJSONValue(deep, 0, 0, 3); r.Outcome != JSONFailed {
		t.Errorf("nesting beyond maxDepth should fail, got %v", r.Outcome)
	}
	if r := scanJSONValue(deep, 0, 0, 10); r.Outcome != JSONFull {
		t.Errorf("nesting within maxDepth should succeed, got %v", r.Outcome)
	}
}

func TestCompileSchemaRejectsNil(t *testing.T) {
	if _, err := CompileSchema(nil); err != errNilSchema {
		t.Errorf("CompileSchema(nil) error = %v, want errNilSchema", err)
	}
}

func TestEvalJSONWithSchema(t *testing.T) {
	schema, err := CompileSchema(map[string]any{
		"type":                 "object",
		"required":             []string{"name"},
		"additionalProperties": false,
		"properties": map[string]any{
			"name": map[string]any{"type": "string"},
		},
	})
	if err != nil {
		t.Fatalf("CompileSchema: %v", err)
	}

	a := NewArena()
	a.SetRoot(a.Rule("root", a.JSON(64, schema)))
	if err := a.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}

	r, _, err := a.Match(`{"name":"ok"}`, DefaultConfig())
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if r.Outcome != Full {
		t.Errorf("schema-conformant JSON should match Full, got %v", r.Outcome)
	}

	r2, _, err := a.Match(`{"name":"ok","extra":1}`, DefaultConfig())
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if r2.Outcome != Failed {
		t.Errorf("schema-violating JSON should report Failed, got %v", r2.Outcome)
	}
}

package peg

import "testing"

func TestCompileRegexFullMatch(t *testing.T) {
	cr, err := CompileRegex(`ab+c`)
	if err != nil {
		t.Fatalf("CompileRegex: %v", err)
	}
	m, err := cr.Search("xxabbbcxx", 0, false)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if m.Type != RegexFullMatch {
		t.Fatalf("Type = %v, want RegexFullMatch", m.Type)
	}
	if got, want := "xxabbbcxx"[m.Groups[0][0]:m.Groups[0][1]], "abbbc"; got != want {
		t.Errorf("matched span = %q, want %q", got, want)
	}
}

func TestCompileRegexPartialMatchAtEnd(t *testing.T) {
	cr, err := CompileRegex(`<tool_call>`)
	if err != nil {
		t.Fatalf("CompileRegex: %v", err)
	}
	m, err := cr.Search("some text <tool_ca", 0, false)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if m.Type != RegexPartialMatch {
		t.Fatalf("Type = %v, want RegexPartialMatch for a truncated trailing match", m.Type)
	}
	begin := m.Groups[0][0]
	if got := "some text <tool_ca"[begin:]; got != "<tool_ca" {
		t.Errorf("partial span = %q, want %q", got, "<tool_ca")
	}
}

func TestCompileRegexNoMatch(t *testing.T) {
	cr, err := CompileRegex(`zzz`)
	if err != nil {
		t.Fatalf("CompileRegex: %v", err)
	}
	m, err := cr.Search("nothing here", 0, false)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if m.Type != RegexNoMatch {
		t.Errorf("Type = %v, want RegexNoMatch", m.Type)
	}
}

func TestCompileRegexAsMatchRequiresWholeInput(t *testing.T) {
	cr, err := CompileRegex(`abc`)
	if err != nil {
		t.Fatalf("CompileRegex: %v", err)
	}
	if m, err := cr.Search("abcd", 0, true); err != nil {
		t.Fatalf("Search: %v", err)
	} else if m.Type != RegexNoMatch {
		t.Errorf("asMatch=true should reject trailing extra text, got %v", m.Type)
	}
	if m, err := cr.Search("abc", 0, true); err != nil {
		t.Fatalf("Search: %v", err)
	} else if m.Type != RegexFullMatch {
		t.Errorf("asMatch=true should accept an exact whole-string match, got %v", m.Type)
	}
}

func TestCompileRegexAlternationPartialMatch(t *testing.T) {
	// barbaz is truncated to "barb" at the end of input; one of the
	// per-alternative reversed-partial regexes compiled for a top-level
	// "|" should still recognize it rather than reporting no match at all.
	cr, err := CompileRegex(`foo|barbaz`)
	if err != nil {
		t.Fatalf("CompileRegex: %v", err)
	}
	m, err := cr.Search("xx barb", 0, false)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if m.Type == RegexNoMatch {
		t.Errorf("a truncated alternative should be detected as at least a partial match, got RegexNoMatch")
	}
}

func TestToReversedPartialRejectsMalformedPattern(t *testing.T) {
	for _, pattern := range []string{"[abc", "(abc", "a{"} {
		if _, err := ToReversedPartial(pattern); err == nil {
			t.Errorf("ToReversedPartial(%q) should have failed on malformed input", pattern)
		}
	}
}

func TestSplitTopLevelAlternations(t *testing.T) {
	for _, tc := range []struct {
		pattern string
		want    []string
	}{
		{"a|b|c", []string{"a", "b", "c"}},
		{"(a|b)|c", []string{"(a|b)", "c"}},
		{"[a|b]|c", []string{"[a|b]", "c"}},
		{"abc", []string{"abc"}},
	} {
		got := splitTopLevelAlternations(tc.pattern)
		if len(got) != len(tc.want) {
			t.Errorf("splitTopLevelAlternations(%q) = %v, want %v", tc.pattern, got, tc.want)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("splitTopLevelAlternations(%q)[%d] = %q, want %q", tc.pattern, i, got[i], tc.want[i])
			}
		}
	}
}

func TestReverseRunes(t *testing.T) {
	for _, tc := range []struct{ in, want string }{
		{"abc", "cba"},
		{"", ""},
		{"a", "a"},
		{"héllo", "olléh"},
	} {
		if got := reverseRunes(tc.in); got != tc.want {
			t.Errorf("reverseRunes(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

package peg

import (
	"regexp"
	"strconv"
	"strings"
)

// RegexMatchType mirrors original_source/common/regex-partial.h's
// common_regex_match_type.
type RegexMatchType int

const (
	RegexNoMatch RegexMatchType = iota
	RegexPartialMatch
	RegexFullMatch
)

// RegexMatch is the Go counterpart of common_regex_match: a match type plus
// the byte-offset spans of every participating group (Groups[0] is the
// whole match).
type RegexMatch struct {
	Type   RegexMatchType
	Groups [][2]int
}

// CompiledRegex wraps a regular forward regex together with the reversed
// "partial match" regex(es) derived from it, so Search can detect both a
// full match and a match truncated mid-pattern by a streaming prefix.
// Grounded directly on original_source/common/regex-partial.cpp's
// common_regex type.
type CompiledRegex struct {
	pattern                string
	re                      *regexp.Regexp
	reReversedPartial       *regexp.Regexp
	reReversedPartialAlts   []*regexp.Regexp
}

// CompileRegex compiles pattern plus its reversed-partial form(s). Grounded
// on common_regex's constructor, which additionally compiles one reversed
// partial regex per top-level alternative so that an alternative matching
// the empty string can't "steal" a partial match from a sibling that would
// otherwise match non-empty (see regex-partial.cpp's search(), second half).
func CompileRegex(pattern string) (*CompiledRegex, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	reversedSrc, err := ToReversedPartial(pattern)
	if err != nil {
		return nil, err
	}
	reversedRe, err := regexp.Compile(reversedSrc)
	if err != nil {
		return nil, err
	}

	cr := &CompiledRegex{pattern: pattern, re: re, reReversedPartial: reversedRe}

	alts := splitTopLevelAlternations(pattern)
	if len(alts) > 1 {
		for _, alt := range alts {
			altSrc, err := ToReversedPartial(alt)
			if err != nil {
				return nil, err
			}
			altRe, err := regexp.Compile(altSrc)
			if err != nil {
				return nil, err
			}
			cr.reReversedPartialAlts = append(cr.reReversedPartialAlts, altRe)
		}
	}
	return cr, nil
}

// Search looks for cr's pattern in input starting at byte offset pos. When
// asMatch is true the match must span the entire remainder of input (like
// std::regex_match); otherwise any occurrence counts (like
// std::regex_search). Grounded on common_regex::search.
func (cr *CompiledRegex) Search(input string, pos int, asMatch bool) (RegexMatch, error) {
	if pos > len(input) {
		return RegexMatch{}, errorf("position %d out of bounds for input of length %d", pos, len(input))
	}
	sub := input[pos:]

	if loc := findForwardMatch(cr.re, sub, asMatch); loc != nil {
		return fullMatchResult(loc, pos), nil
	}

	if res, ok := tryPartialMatch(cr.reReversedPartial, input, pos, asMatch); ok {
		return res, nil
	}
	for _, alt := range cr.reReversedPartialAlts {
		if res, ok := tryPartialMatch(alt, input, pos, asMatch); ok {
			return res, nil
		}
	}
	return RegexMatch{Type: RegexNoMatch}, nil
}

func findForwardMatch(re *regexp.Regexp, sub string, asMatch bool) []int {
	loc := re.FindStringSubmatchIndex(sub)
	if loc == nil {
		return nil
	}
	if asMatch && (loc[0] != 0 || loc[1] != len(sub)) {
		return nil
	}
	return loc
}

func fullMatchResult(loc []int, pos int) RegexMatch {
	groups := make([][2]int, 0, len(loc)/2)
	for i := 0; i+1 < len(loc); i += 2 {
		if loc[i] < 0 {
			groups = append(groups, [2]int{-1, -1})
			continue
		}
		groups = append(groups, [2]int{pos + loc[i], pos + loc[i+1]})
	}
	return RegexMatch{Type: RegexFullMatch, Groups: groups}
}

// tryPartialMatch mirrors regex-partial.cpp's try_partial_match lambda: it
// matches re against the reverse of input[pos:], and if the (always
// index-0-anchored) first capture group spans a non-empty prefix of the
// reversed string, maps that back to an absolute [begin, len(input)) span
// in the original, forward string.
func tryPartialMatch(re *regexp.Regexp, input string, pos int, asMatch bool) (RegexMatch, bool) {
	sub := input[pos:]
	reversed := reverseRunes(sub)
	loc := re.FindStringSubmatchIndex(reversed)
	if loc == nil || len(loc) < 4 || loc[2] != 0 {
		return RegexMatch{}, false
	}
	groupLen := loc[3] - loc[2]
	if groupLen == 0 {
		return RegexMatch{}, false
	}
	begin := len(input) - groupLen
	end := len(input)
	if asMatch && begin != pos {
		return RegexMatch{}, false
	}
	return RegexMatch{Type: RegexPartialMatch, Groups: [][2]int{{begin, end}}}, true
}

func reverseRunes(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

// splitTopLevelAlternations splits pattern on '|' that appears outside any
// group or character class. Grounded on regex-partial.cpp's
// split_top_level_alternations.
func splitTopLevelAlternations(pattern string) []string {
	runes := []rune(pattern)
	var alternatives []string
	var current []rune
	depth := 0

	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case c == '\\' && i+1 < len(runes):
			current = append(current, c, runes[i+1])
			i++
		case c == '[':
			current = append(current, c)
			i++
			for i < len(runes) && runes[i] != ']' {
				if runes[i] == '\\' && i+1 < len(runes) {
					current = append(current, runes[i])
					i++
				}
				current = append(current, runes[i])
				i++
			}
			if i < len(runes) {
				current = append(current, runes[i])
			}
		case c == '(':
			depth++
			current = append(current, c)
		case c == ')':
			depth--
			current = append(current, c)
		case c == '|' && depth == 0:
			alternatives = append(alternatives, string(current))
			current = nil
		default:
			current = append(current, c)
		}
	}
	if len(current) > 0 {
		alternatives = append(alternatives, string(current))
	}
	return alternatives
}

// ToReversedPartial transforms pattern into a regex that, matched in full
// against the reverse of a string, reports (via its sole capturing group)
// the longest suffix of that string which is a prefix of some match of
// pattern — i.e. detects "the input ends in the middle of matching
// pattern". Ported near-verbatim from regex_to_reversed_partial_regex in
// original_source/common/regex-partial.cpp, re-expressed with []rune
// scanning instead of byte iterators (safe for the multi-byte Unicode
// sentinels several chat formats use) and explicit error returns instead
// of std::runtime_error.
func ToReversedPartial(pattern string) (string, error) {
	runes := []rune(pattern)
	pos := 0

	var process func() (string, error)
	process = func() (string, error) {
		alternatives := [][]string{{}}
		seqIdx := 0

		for pos < len(runes) {
			c := runes[pos]
			switch {
			case c == '[':
				start := pos
				pos++
				for pos < len(runes) {
					if runes[pos] == '\\' && pos+1 < len(runes) {
						pos += 2
						continue
					}
					if runes[pos] == ']' {
						break
					}
					pos++
				}
				if pos >= len(runes) {
					return "", errPatternSyntax("unmatched '[' in pattern")
				}
				pos++
				alternatives[seqIdx] = append(alternatives[seqIdx], string(runes[start:pos]))

			case c == '*' || c == '?' || c == '+':
				seq := alternatives[seqIdx]
				if len(seq) == 0 {
					return "", errPatternSyntax("quantifier without preceding element")
				}
				seq[len(seq)-1] += string(c)
				isStar := c == '*'
				pos++
				if isStar && pos < len(runes) && runes[pos] == '?' {
					pos++
				}
				alternatives[seqIdx] = seq

			case c == '{':
				seq := alternatives[seqIdx]
				if len(seq) == 0 {
					return "", errPatternSyntax("repetition without preceding element")
				}
				pos++
				start := pos
				for pos < len(runes) && runes[pos] != '}' {
					pos++
				}
				if pos >= len(runes) {
					return "", errPatternSyntax("unmatched '{' in pattern")
				}
				parts := strings.Split(string(runes[start:pos]), ",")
				pos++
				if len(parts) > 2 {
					return "", errPatternSyntax("invalid repetition range in pattern")
				}
				min, max, hasMax, err := parseRepeatBounds(parts)
				if err != nil {
					return "", err
				}
				if hasMax && max < min {
					return "", errPatternSyntax("invalid repetition range in pattern")
				}

				part := seq[len(seq)-1]
				seq = seq[:len(seq)-1]
				for i := 0; i < min; i++ {
					seq = append(seq, part)
				}
				if hasMax {
					for i := min; i < max; i++ {
						seq = append(seq, part+"?")
					}
				} else {
					seq = append(seq, part+"*")
				}
				alternatives[seqIdx] = seq

			case c == '(':
				pos++
				if pos < len(runes) && runes[pos] == '?' && pos+1 < len(runes) && runes[pos+1] == ':' {
					pos += 2
				}
				sub, err := process()
				if err != nil {
					return "", err
				}
				if pos >= len(runes) || runes[pos] != ')' {
					return "", errPatternSyntax("unmatched '(' in pattern")
				}
				pos++
				alternatives[seqIdx] = append(alternatives[seqIdx], "(?:"+sub+")")

			case c == ')':
				goto done

			case c == '|':
				pos++
				alternatives = append(alternatives, []string{})
				seqIdx = len(alternatives) - 1

			case c == '\\' && pos+1 < len(runes):
				alternatives[seqIdx] = append(alternatives[seqIdx], "\\"+string(runes[pos+1]))
				pos += 2

			default:
				alternatives[seqIdx] = append(alternatives[seqIdx], string(c))
				pos++
			}
		}
	done:

		resAlts := make([]string, 0, len(alternatives))
		for _, parts := range alternatives {
			var b strings.Builder
			for i := 0; i < len(parts)-1; i++ {
				b.WriteString("(?:")
			}
			for i := len(parts) - 1; i >= 0; i-- {
				b.WriteString(parts[i])
				if i != 0 {
					b.WriteString(")?")
				}
			}
			resAlts = append(resAlts, b.String())
		}
		return strings.Join(resAlts, "|"), nil
	}

	res, err := process()
	if err != nil {
		return "", err
	}
	if pos != len(runes) {
		return "", errPatternSyntax("unmatched '(' in pattern")
	}
	return "(" + res + ")[\\s\\S]*", nil
}

func parseRepeatBounds(parts []string) (min, max int, hasMax bool, err error) {
	parseOpt := func(s string, def int) (int, error) {
		if s == "" {
			return def, nil
		}
		return strconv.Atoi(s)
	}
	min, err = parseOpt(parts[0], 0)
	if err != nil {
		return 0, 0, false, errPatternSyntax("invalid repetition bound: %v", err)
	}
	if len(parts) == 1 {
		return min, min, true, nil
	}
	if parts[1] == "" {
		return min, 0, false, nil
	}
	max, err = parseOpt(parts[1], 0)
	if err != nil {
		return 0, 0, false, errPatternSyntax("invalid repetition bound: %v", err)
	}
	return min, max, true, nil
}

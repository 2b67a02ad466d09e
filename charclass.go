package peg

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// runeSetSizeThreshold mirrors hucsmn-peg/rune.go: above this many members a
// charClass sorts its set and binary-searches it instead of scanning linearly.
const runeSetSizeThreshold = 16

// charClass is the arena's single rune-matching descriptor, replacing the
// teacher's three separate Pattern implementations (patternRuneSet,
// patternRuneRange, patternUnicodeRanges) with one struct any KCharClass
// node points to. A class matches if the rune is in *any* of set/ranges/
// tables, then flips the answer if not is set — this lets a single
// constructor build what used to require choosing among S/R/U.
type charClass struct {
	not     bool
	set     []rune
	ranges  []runeRange
	tables  []*unicode.RangeTable
	names   []string         // for String(); empty unless built via unicodeClass
	combine *charClassCombo  // set only for unicodeClass forms with a "-name" exclusion
}

type runeRange struct {
	low, high rune
}

// charSet builds a charClass matching any rune in set.
func charSet(set string) *charClass {
	cc := &charClass{set: []rune(set)}
	cc.normalize()
	return cc
}

// negatedCharSet builds a charClass matching any rune not in exclude.
func negatedCharSet(exclude string) *charClass {
	cc := &charClass{not: true, set: []rune(exclude)}
	cc.normalize()
	return cc
}

// charRange builds a charClass matching any rune within the given
// [low, high] pairs.
func charRange(low, high rune, rest ...rune) *charClass {
	cc := &charClass{ranges: pairsToRanges(low, high, rest...)}
	return cc
}

func negatedCharRange(low, high rune, rest ...rune) *charClass {
	cc := &charClass{not: true, ranges: pairsToRanges(low, high, rest...)}
	return cc
}

func pairsToRanges(low, high rune, rest ...rune) []runeRange {
	ranges := make([]runeRange, 1+len(rest)/2)
	ranges[0] = runeRange{low, high}
	for i := 1; i < len(ranges); i++ {
		ranges[i] = runeRange{rest[(i-1)*2], rest[(i-1)*2+1]}
	}
	return ranges
}

// unicodeClass builds a charClass from named unicode ranges (see
// IsUnicodeRangeName). A name prefixed with "-" excludes that range instead
// of including it. Panics on an undefined name, matching the teacher's U().
func unicodeClass(names ...string) *charClass {
	var inc, exc []string
	for _, name := range names {
		if strings.HasPrefix(name, "-") {
			exc = append(exc, name[1:])
		} else {
			inc = append(inc, name)
		}
	}
	if len(inc) == 0 && len(exc) == 0 {
		return &charClass{} // matches nothing
	}

	cc := &charClass{names: names}
	for _, name := range inc {
		tbl, ok := lookupUnicodeRange(name)
		if !ok {
			panic(errorUndefinedUnicodeRanges(name))
		}
		cc.tables = append(cc.tables, tbl...)
	}
	if len(exc) == 0 {
		return cc
	}
	excCC := &charClass{}
	for _, name := range exc {
		tbl, ok := lookupUnicodeRange(name)
		if !ok {
			panic(errorUndefinedUnicodeRanges(name))
		}
		excCC.tables = append(excCC.tables, tbl...)
	}
	return &charClass{combine: &charClassCombo{include: cc, exclude: excCC}}
}

// charClassCombo layers an exclusion set on top of an inclusion set, used
// only by unicodeClass when at least one "-name" exclusion appears.
type charClassCombo struct {
	include, exclude *charClass
}

func (cc *charClass) normalize() {
	if len(cc.set) > runeSetSizeThreshold {
		sort.Slice(cc.set, func(i, j int) bool { return cc.set[i] < cc.set[j] })
		deduped := cc.set[:0]
		var last rune
		for i, r := range cc.set {
			if i == 0 || r != last {
				deduped = append(deduped, r)
				last = r
			}
		}
		cc.set = deduped
	}
}

// contains reports whether r belongs to the class, honoring not and any
// combo layering.
func (cc *charClass) contains(r rune) bool {
	if cc.combine != nil {
		return cc.combine.include.contains(r) && !cc.combine.exclude.contains(r)
	}

	ok := cc.inSet(r) || cc.inRanges(r) || cc.inTables(r)
	if cc.not {
		ok = !ok
	}
	return ok
}

func (cc *charClass) inSet(r rune) bool {
	if len(cc.set) > runeSetSizeThreshold {
		i, j := 0, len(cc.set)
		for i < j {
			m := i + (j-i)/2
			switch {
			case r == cc.set[m]:
				return true
			case r > cc.set[m]:
				i = m + 1
			default:
				j = m
			}
		}
		return false
	}
	for _, s := range cc.set {
		if r == s {
			return true
		}
	}
	return false
}

func (cc *charClass) inRanges(r rune) bool {
	for _, rg := range cc.ranges {
		if r >= rg.low && r <= rg.high {
			return true
		}
	}
	return false
}

func (cc *charClass) inTables(r rune) bool {
	return len(cc.tables) > 0 && unicode.In(r, cc.tables...)
}

func (cc *charClass) String() string {
	switch {
	case cc.combine != nil:
		return fmt.Sprintf("#[%s-%s]",
			strings.Join(cc.combine.include.names, "+"),
			strings.Join(cc.combine.exclude.names, "-"))
	case len(cc.names) > 0:
		if cc.not {
			return fmt.Sprintf("#[-%s]", strings.Join(cc.names, "-"))
		}
		return fmt.Sprintf("#[%s]", strings.Join(cc.names, "+"))
	case len(cc.ranges) > 0:
		strs := make([]string, len(cc.ranges))
		for i, rg := range cc.ranges {
			strs[i] = fmt.Sprintf("%q..%q", rg.low, rg.high)
		}
		if cc.not {
			return fmt.Sprintf("#<-%s>", strings.Join(strs, "-"))
		}
		return fmt.Sprintf("#<%s>", strings.Join(strs, "+"))
	default:
		if cc.not {
			return fmt.Sprintf("#-%q", string(cc.set))
		}
		return fmt.Sprintf("#%q", string(cc.set))
	}
}

var (
	unicodeRangeAliases = map[string]*unicode.RangeTable{
		"Upper": unicode.Lu, "Lower": unicode.Ll, "Title": unicode.Lt,
		"Letter": unicode.L, "Mark": unicode.M, "Number": unicode.N,
		"Digit": unicode.Nd, "Punct": unicode.P, "Symbol": unicode.S,
		"Separator": unicode.Z, "Other": unicode.C, "Control": unicode.Cc,
	}
	unicodeRangeSliceAliases = map[string][]*unicode.RangeTable{
		"Graphic": unicode.GraphicRanges,
		"Print":   unicode.GraphicRanges,
	}
)

// IsUnicodeRangeName reports whether name is a valid unicodeClass argument
// (ignoring a leading "-"). See hucsmn-peg/rune.go's IsUnicodeRangeName.
func IsUnicodeRangeName(name string) bool {
	name = strings.TrimPrefix(name, "-")
	_, ok := lookupUnicodeRange(name)
	return ok
}

func lookupUnicodeRange(name string) ([]*unicode.RangeTable, bool) {
	if r, ok := unicodeRangeAliases[name]; ok {
		return []*unicode.RangeTable{r}, true
	}
	if rs, ok := unicodeRangeSliceAliases[name]; ok {
		return rs, true
	}
	if r, ok := unicode.Properties[name]; ok {
		return []*unicode.RangeTable{r}, true
	}
	if r, ok := unicode.Scripts[name]; ok {
		return []*unicode.RangeTable{r}, true
	}
	if r, ok := unicode.Categories[name]; ok {
		return []*unicode.RangeTable{r}, true
	}
	return nil, false
}

func errorUndefinedUnicodeRanges(name string) error {
	return errorf("undefined unicode range name %q", name)
}

package dispatch

import (
	"fmt"
	"strings"

	peg "github.com/parsewire/chatpeg"
	"github.com/parsewire/chatpeg/chatast"
	"github.com/parsewire/chatpeg/mappers"
)

// LogFunc observes format selection without pulling a logging framework
// into the library — grounded on asynkron-GoAgent's
// internal/core/runtime "emit"-shaped callback (see SPEC_FULL.md's
// ambient-stack "Logging" section).
type LogFunc func(format string, args ...any)

// Select walks table in order and returns the first rule whose Marker
// appears in templateSource, mirroring spec.md §4.I's "small ordered
// list of known markers". Ordering in table is significant — see
// formats.Table's comments for the Qwen3-Coder-vs-Hermes and
// Apriel-1.5-vs-Hermes precedence notes spec.md §9 calls out. fallback's
// Build function is used when nothing matches (content-only
// format, spec.md §4.I and §7's UnknownFormat, which is explicitly "not
// an error").
func Select(table []Rule, templateSource string, opts BuildOptions, fallback Rule, log LogFunc) (*FormatDescriptor, error) {
	for _, rule := range table {
		if strings.Contains(templateSource, rule.Marker) {
			if log != nil {
				log("dispatch: matched %q", rule.Marker)
			}
			return rule.Build(opts)
		}
	}
	if log != nil {
		log("dispatch: no marker matched, using fallback")
	}
	return fallback.Build(opts)
}

// Run executes the non-streaming parse-and-map pipeline: parse output
// against descriptor's arena, then run the descriptor's mapper over the
// resulting AST. Mirrors spec.md §4.I's second half ("invokes the PEG
// parser on model output, runs the matching mapper").
func Run(desc *FormatDescriptor, output string, cfg peg.Config) (*chatast.Message, peg.Outcome, error) {
	result, nodes, err := desc.Arena.Match(output, cfg)
	if err != nil {
		return nil, peg.Failed, err
	}
	msg := chatast.NewMessage()
	if result.Outcome == peg.Failed {
		pos := peg.PositionOf(output, result.At)
		return msg, result.Outcome, fmt.Errorf("%w: parse failed at %s", ErrParseFailed, pos)
	}

	mapFn, ok := mappers.Table[desc.Mapper]
	if !ok {
		return nil, result.Outcome, fmt.Errorf("%w: mapper kind %d", ErrUnknownMapper, desc.Mapper)
	}
	// Arena.Match returns every top-level tagged node as a flat sibling
	// list (astBuilder.roots()), but every mapper walks root.Children
	// expecting one container — so wrap the siblings in a synthetic root
	// rather than asking each mapper to handle a bare slice.
	root := &peg.Node{Children: nodes}
	if err := mapFn(msg, root, output); err != nil {
		if result.Outcome == peg.Partial {
			msg.InProgress = true
			return msg, result.Outcome, nil
		}
		return nil, result.Outcome, err
	}
	msg.InProgress = result.Outcome == peg.Partial
	return msg, result.Outcome, nil
}

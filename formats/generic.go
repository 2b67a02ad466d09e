package formats

import (
	peg "github.com/parsewire/chatpeg"
	"github.com/parsewire/chatpeg/chatast"
	"github.com/parsewire/chatpeg/dispatch"
	"github.com/parsewire/chatpeg/mappers"
)

// Generic builds the fallback, sentinel-free format descriptor:
// `{"tool_calls": [...]}` or `{"response": "..."}`, or (with no tools
// declared) plain text, grounded on
// original_source/common/chat-parsers/generic.cpp. Simplified relative
// to the original: rather than threading a per-tool JSON-Schema through
// named fields for "name"/"arguments"/"id", the whole top-level JSON
// value is captured once as TOOL_ARGS and handed to the generic mapper,
// which already knows how to inspect tool_calls/tool_call/response,
// without re-deriving generic.cpp's hand-assembled per-field grammar.
// The captured value is any well-formed JSON: no tool's Parameters
// schema is applied to it, and tool names are not checked against
// opts.Tools.
func Generic(opts dispatch.BuildOptions, cfg peg.Config) (*dispatch.FormatDescriptor, error) {
	a := peg.NewArena()

	hasTools := len(opts.Tools) > 0 && opts.ToolChoice != dispatch.ToolChoiceNone
	var root peg.ExprHandle
	if hasTools {
		compiled, err := schemaJSON(a, cfg, nil)
		if err != nil {
			return nil, err
		}
		root = a.Seq(a.Space(), a.Tag(chatast.ToolArgs, compiled))
	} else {
		root = a.Tag(chatast.Content, a.Rest())
	}

	a.SetRoot(a.Rule("generic-root", root))
	if err := a.Build(); err != nil {
		return nil, err
	}
	grammar, err := a.Grammar(nil, false)
	if err != nil {
		return nil, err
	}

	return &dispatch.FormatDescriptor{
		FormatTag:       "generic",
		Arena:           a,
		Grammar:         grammar,
		AdditionalStops: []string{"<|im_end|>"},
		Mapper:          mappers.Generic,
	}, nil
}

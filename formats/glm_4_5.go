package formats

import (
	peg "github.com/parsewire/chatpeg"
	"github.com/parsewire/chatpeg/chatast"
	"github.com/parsewire/chatpeg/dispatch"
	"github.com/parsewire/chatpeg/mappers"
)

const glm45ThinkOpen = "<think>"

// GLM45 builds the
// `<tool_call>function_name\n<arg_key>key</arg_key><arg_value>value</arg_value>...</tool_call>`
// format descriptor, grounded on
// original_source/common/chat-parsers/glm-4-5.cpp. Unlike
// DeepSeek-R1/Hermes, arguments arrive as a flat run of key/value pairs
// rather than one JSON blob, so this format uses the constructed mapper;
// `<arg_value>` content is always tagged TOOL_ARG_STRING_VALUE, so the
// constructed mapper keeps it as a JSON string even when it looks like a
// number or other JSON literal.
func GLM45(opts dispatch.BuildOptions, cfg peg.Config) (*dispatch.FormatDescriptor, error) {
	a := peg.NewArena()

	var reasoning peg.ExprHandle
	switch {
	case !opts.ExtractReasoning:
		reasoning = a.Eps()
	case opts.ThinkingForcedOpen:
		reasoning = a.Seq(
			a.Optional(a.Literal("\n")),
			a.Tag(chatast.Reasoning, a.Until("</think>")),
			a.Choice(a.Literal("</think>"), a.End()),
		)
	default:
		reasoning = a.Seq(
			a.Optional(a.Literal("\n")), a.Literal("<think>"),
			a.Tag(chatast.Reasoning, a.Until("</think>")), a.Literal("</think>"),
		)
	}

	hasTools := len(opts.Tools) > 0 && opts.ToolChoice != dispatch.ToolChoiceNone
	var root peg.ExprHandle
	if hasTools {
		choices := make([]peg.ExprHandle, 0, len(opts.Tools))
		for _, tool := range opts.Tools {
			choices = append(choices, a.Rule("glm45-tool-"+tool.Name, a.Tag(chatast.Tool, a.Seq(
				a.Space(),
				atomicTag(a, chatast.ToolOpen, a.Literal("<tool_call>")),
				literalTag(a, chatast.ToolName, tool.Name),
				a.Literal("\n"),
				a.Repeat(glm45ArgPair(a), 0, -1),
				atomicTag(a, chatast.ToolClose, a.Literal("</tool_call>")),
			))))
		}
		min, max := toolChoiceRepeatBounds(opts)
		toolCalls := a.Repeat(a.Choice(choices...), min, max)
		if opts.ToolChoice == dispatch.ToolChoiceRequired {
			root = a.Seq(reasoning, toolCalls)
		} else {
			content := a.Optional(a.Tag(chatast.Content, a.UntilOneOf("<tool_call>")))
			root = a.Seq(reasoning, content, toolCalls)
		}
	} else {
		root = a.Seq(reasoning, a.Tag(chatast.Content, a.Rest()))
	}

	a.SetRoot(a.Rule("glm-4-5-root", root))
	if err := a.Build(); err != nil {
		return nil, err
	}
	grammar, err := a.Grammar(nil, false)
	if err != nil {
		return nil, err
	}

	return &dispatch.FormatDescriptor{
		FormatTag: "glm-4-5",
		Arena:     a,
		Grammar:   grammar,
		PreservedTokens: []string{
			glm45ThinkOpen, "</think>", "<tool_call>", "</tool_call>",
			"<arg_key>", "</arg_key>", "<arg_value>", "</arg_value>",
		},
		AdditionalStops:    []string{"<|user|>", "<|observation|>"},
		ThinkingForcedOpen: opts.ThinkingForcedOpen,
		Mapper:             mappers.Constructed,
	}, nil
}

// glm45ArgPair matches one <arg_key>k</arg_key><arg_value>v</arg_value>
// pair, producing a single TOOL_ARG node the constructed mapper expects.
func glm45ArgPair(a *peg.Arena) peg.ExprHandle {
	return a.Tag(chatast.ToolArg, a.Seq(
		a.Literal("<arg_key>"),
		a.Tag(chatast.ToolArgName, a.Until("</arg_key>")),
		a.Literal("</arg_key>"),
		a.Literal("<arg_value>"),
		a.Tag(chatast.ToolArgStringValue, a.Until("</arg_value>")),
		a.Literal("</arg_value>"),
	))
}

package formats

import (
	peg "github.com/parsewire/chatpeg"
	"github.com/parsewire/chatpeg/chatast"
	"github.com/parsewire/chatpeg/dispatch"
	"github.com/parsewire/chatpeg/mappers"
)

const (
	hermesThinkOpen  = "<think>\n"
	hermesThinkClose = "</think>"
)

// Hermes2Pro builds the format descriptor accepting any of the three
// surface syntaxes original_source/common/chat-parsers/hermes-2-pro.cpp
// feeds into one Choice of named Rules:
// `<tool_call>{"name":...,"arguments":...}</tool_call>`,
// `<function=name>{...}</function>`, `<function name="name">{...}</function>`.
func Hermes2Pro(opts dispatch.BuildOptions, cfg peg.Config) (*dispatch.FormatDescriptor, error) {
	a := peg.NewArena()
	reasoning := reasoningBlock(a, opts, hermesThinkOpen, hermesThinkClose)

	hasTools := len(opts.Tools) > 0 && opts.ToolChoice != dispatch.ToolChoiceNone
	var root peg.ExprHandle
	var triggers []peg.GrammarTrigger

	if hasTools {
		choices := make([]peg.ExprHandle, 0, len(opts.Tools)*3)
		for _, tool := range opts.Tools {
			rules, err := hermesToolSyntaxes(a, cfg, tool)
			if err != nil {
				return nil, err
			}
			choices = append(choices, rules...)
			if opts.ToolChoice != dispatch.ToolChoiceRequired {
				triggers = append(triggers,
					peg.GrammarTrigger{Kind: peg.TriggerWord, Value: "<function=" + tool.Name + ">"},
					peg.GrammarTrigger{Kind: peg.TriggerPattern, Value: `<function\s+name\s*=\s*"` + tool.Name + `"`},
				)
			}
		}
		if opts.ToolChoice != dispatch.ToolChoiceRequired {
			triggers = append(triggers, peg.GrammarTrigger{
				Kind:  peg.TriggerPatternFull,
				Value: `[\s\S]*?(?:<tool_call>|<function)[\s\S]*`,
			})
		}

		min, max := toolChoiceRepeatBounds(opts)
		toolCalls := a.Repeat(a.Choice(choices...), min, max)

		if opts.ToolChoice == dispatch.ToolChoiceRequired {
			root = a.Seq(reasoning, toolCalls)
		} else {
			content := a.Optional(a.Tag(chatast.Content, a.UntilOneOf("<tool_call>", "<function")))
			root = a.Seq(reasoning, content, toolCalls)
		}
	} else {
		root = a.Seq(reasoning, a.Tag(chatast.Content, a.Rest()))
	}

	a.SetRoot(a.Rule("hermes-2-pro-root", root))
	if err := a.Build(); err != nil {
		return nil, err
	}
	grammar, err := a.Grammar(triggers, opts.ToolChoice == dispatch.ToolChoiceAuto)
	if err != nil {
		return nil, err
	}

	return &dispatch.FormatDescriptor{
		FormatTag: "hermes-2-pro",
		Arena:     a,
		Grammar:   grammar,
		PreservedTokens: []string{
			hermesThinkOpen, hermesThinkClose, "<tool_call>", "</tool_call>",
			"<function", "```", "```json",
		},
		ThinkingForcedOpen: opts.ThinkingForcedOpen,
		Mapper:             mappers.Native,
	}, nil
}

func hermesToolSyntaxes(a *peg.Arena, cfg peg.Config, tool dispatch.Tool) ([]peg.ExprHandle, error) {
	argsA, err := schemaJSON(a, cfg, tool.Parameters)
	if err != nil {
		return nil, err
	}
	toolCallForm := a.Rule("hermes-tool-call-"+tool.Name, a.Tag(chatast.Tool, a.Seq(
		atomicTag(a, chatast.ToolOpen, a.Literal("<tool_call>")),
		optSpace(a), a.Literal(`{`), optSpace(a),
		a.Literal(`"name"`), optSpace(a), a.Literal(":"), optSpace(a),
		a.Literal(`"`), literalTag(a, chatast.ToolName, tool.Name), a.Literal(`"`),
		optSpace(a), a.Literal(","), optSpace(a),
		a.Literal(`"arguments"`), optSpace(a), a.Literal(":"), optSpace(a),
		a.Tag(chatast.ToolArgs, argsA),
		optSpace(a), a.Literal("}"), optSpace(a),
		atomicTag(a, chatast.ToolClose, a.Literal("</tool_call>")),
	)))

	argsB, err := schemaJSON(a, cfg, tool.Parameters)
	if err != nil {
		return nil, err
	}
	funcEqForm := a.Rule("hermes-func-eq-"+tool.Name, a.Tag(chatast.Tool, a.Seq(
		atomicTag(a, chatast.ToolOpen, a.Literal("<function=")),
		literalTag(a, chatast.ToolName, tool.Name), a.Literal(">"),
		optSpace(a),
		a.Tag(chatast.ToolArgs, argsB),
		optSpace(a),
		atomicTag(a, chatast.ToolClose, a.Literal("</function>")),
	)))

	argsC, err := schemaJSON(a, cfg, tool.Parameters)
	if err != nil {
		return nil, err
	}
	funcNameForm := a.Rule("hermes-func-name-"+tool.Name, a.Tag(chatast.Tool, a.Seq(
		atomicTag(a, chatast.ToolOpen, a.Literal(`<function name="`)),
		literalTag(a, chatast.ToolName, tool.Name), a.Literal(`">`),
		optSpace(a),
		a.Tag(chatast.ToolArgs, argsC),
		optSpace(a),
		atomicTag(a, chatast.ToolClose, a.Literal("</function>")),
	)))

	return []peg.ExprHandle{toolCallForm, funcEqForm, funcNameForm}, nil
}

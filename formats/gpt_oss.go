package formats

import (
	peg "github.com/parsewire/chatpeg"
	"github.com/parsewire/chatpeg/chatast"
	"github.com/parsewire/chatpeg/dispatch"
	"github.com/parsewire/chatpeg/mappers"
)

// GPTOSS builds the channel-based format descriptor: `<|channel|>analysis`
// / `commentary` / `final`, each terminated by `<|message|>...<|end|>`,
// grounded on original_source/common/chat-parsers/gpt-oss.cpp. Tool
// calls in the commentary channel carry `to=functions.<name>` ahead of
// their `<|message|>` JSON body; the "tool call in role" alternative
// (`<|start|>assistant to=functions.<name>...`) is a simplification
// dropped here since it's a second surface syntax for the identical
// TOOL/TOOL_ARGS shape the commentary-channel rule already captures.
func GPTOSS(opts dispatch.BuildOptions, cfg peg.Config) (*dispatch.FormatDescriptor, error) {
	a := peg.NewArena()
	assistantPrefix := a.Optional(a.Seq(a.Literal("<|start|>"), a.Literal("assistant")))

	var reasoningBlockExpr peg.ExprHandle
	if opts.ExtractReasoning {
		reasoningBlockExpr = a.Optional(a.Seq(
			a.Literal("<|channel|>"), a.Literal("analysis"), a.Literal("<|message|>"),
			a.Tag(chatast.Reasoning, a.Until("<|end|>")), a.Literal("<|end|>"),
			assistantPrefix,
		))
	} else {
		reasoningBlockExpr = a.Eps()
	}

	hasTools := len(opts.Tools) > 0 && opts.ToolChoice != dispatch.ToolChoiceNone
	var root peg.ExprHandle
	var triggers []peg.GrammarTrigger

	if hasTools {
		choices := make([]peg.ExprHandle, 0, len(opts.Tools))
		for _, tool := range opts.Tools {
			args, err := schemaJSON(a, cfg, tool.Parameters)
			if err != nil {
				return nil, err
			}
			body := a.Seq(
				a.Literal("<|channel|>"),
				a.Choice(a.Literal("analysis"), a.Literal("commentary")),
				atomicTag(a, chatast.ToolOpen, a.Literal(" to=functions.")),
				literalTag(a, chatast.ToolName, tool.Name),
				a.Optional(a.Seq(a.Literal(" "), a.Literal("<|constrain|>"), a.Literal("json"))),
				a.Literal("<|message|>"),
				a.Tag(chatast.ToolArgs, args),
				atomicTag(a, chatast.ToolClose, a.Literal("<|end|>")),
			)
			choices = append(choices, a.Rule("gpt-oss-tool-"+tool.Name, a.Tag(chatast.Tool, body)))
		}
		if opts.ToolChoice != dispatch.ToolChoiceRequired {
			triggers = append(triggers,
				peg.GrammarTrigger{Kind: peg.TriggerPattern, Value: `<\|channel\|>(commentary|analysis) to`},
				peg.GrammarTrigger{Kind: peg.TriggerPattern, Value: `<\|start\|>assistant to`},
			)
		}
		min, max := toolChoiceRepeatBounds(opts)
		toolCalls := a.Repeat(a.Choice(choices...), min, max)

		finalContent := a.Rule("gpt-oss-final", a.Seq(
			assistantPrefix, a.Literal("<|channel|>"), a.Literal("final"),
			a.Optional(a.Seq(a.Literal(" "), a.Literal("<|constrain|>"), a.Until("<|message|>"))),
			a.Literal("<|message|>"),
			a.Tag(chatast.Content, a.Until("<|end|>")),
			a.Literal("<|end|>"),
		))

		if opts.ToolChoice == dispatch.ToolChoiceRequired {
			root = a.Seq(reasoningBlockExpr, toolCalls)
		} else {
			root = a.Seq(reasoningBlockExpr, a.Choice(finalContent, toolCalls))
		}
	} else {
		finalContent := a.Seq(
			assistantPrefix, a.Literal("<|channel|>"), a.Literal("final"), a.Literal("<|message|>"),
			a.Tag(chatast.Content, a.Until("<|end|>")), a.Literal("<|end|>"),
		)
		root = a.Seq(reasoningBlockExpr, a.Choice(finalContent, a.Tag(chatast.Content, a.Rest())))
	}

	a.SetRoot(a.Rule("gpt-oss-root", root))
	if err := a.Build(); err != nil {
		return nil, err
	}
	grammar, err := a.Grammar(triggers, opts.ToolChoice == dispatch.ToolChoiceAuto)
	if err != nil {
		return nil, err
	}

	return &dispatch.FormatDescriptor{
		FormatTag:          "gpt-oss",
		Arena:              a,
		Grammar:            grammar,
		PreservedTokens:    []string{"<|channel|>", "<|constrain|>", "<|message|>", "<|start|>", "<|end|>"},
		AdditionalStops:    []string{"<|call|>"},
		ThinkingForcedOpen: opts.ThinkingForcedOpen,
		Mapper:             mappers.Native,
	}, nil
}

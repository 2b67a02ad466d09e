package formats

import (
	peg "github.com/parsewire/chatpeg"
	"github.com/parsewire/chatpeg/chatast"
	"github.com/parsewire/chatpeg/dispatch"
	"github.com/parsewire/chatpeg/mappers"
)

const (
	dsr1ToolCallsBegin = "<｜tool▁calls▁begin｜>"
	dsr1ToolCallsEnd   = "<｜tool▁calls▁end｜>"
	dsr1ToolCallBegin  = "<｜tool▁call▁begin｜>function<｜tool▁sep｜>"
	dsr1ToolCallEnd    = "\n```<｜tool▁call▁end｜>"
	dsr1ThinkOpen      = "<think>\n"
	dsr1ThinkClose     = "</think>"
)

// DeepSeekR1 builds the format descriptor for
// `<｜tool▁calls▁begin｜><｜tool▁call▁begin｜>function<｜tool▁sep｜>name\n`\`\`\`json\n{...}\n\`\`\`<｜tool▁call▁end｜><｜tool▁calls▁end｜>`,
// grounded on original_source/common/chat-parsers/deepseek-r1.cpp.
func DeepSeekR1(opts dispatch.BuildOptions, cfg peg.Config) (*dispatch.FormatDescriptor, error) {
	a := peg.NewArena()
	reasoning := reasoningBlock(a, opts, dsr1ThinkOpen, dsr1ThinkClose)

	hasTools := len(opts.Tools) > 0 && opts.ToolChoice != dispatch.ToolChoiceNone
	var root peg.ExprHandle
	var triggers []peg.GrammarTrigger

	if hasTools {
		toolRule, err := dsr1ToolCallRule(a, cfg, opts)
		if err != nil {
			return nil, err
		}
		min, max := toolChoiceRepeatBounds(opts)
		toolCalls := a.Seq(
			a.Literal(dsr1ToolCallsBegin),
			a.Repeat(toolRule, min, max),
			a.Literal(dsr1ToolCallsEnd),
		)
		if opts.ToolChoice != dispatch.ToolChoiceRequired {
			triggers = append(triggers, peg.GrammarTrigger{
				Kind:  peg.TriggerPatternFull,
				Value: `[\s\S]*?(<｜tool▁calls▁begin｜>)[\s\S]*`,
			})
		}
		content := a.Tag(chatast.Content, a.UntilOneOf(dsr1ToolCallsBegin))
		if opts.ToolChoice == dispatch.ToolChoiceRequired {
			root = a.Seq(reasoning, toolCalls)
		} else {
			root = a.Seq(reasoning, content, toolCalls)
		}
	} else {
		contentOnly := a.Tag(chatast.Content, a.Rest())
		root = a.Seq(reasoning, contentOnly)
	}

	a.SetRoot(a.Rule("deepseek-r1-root", root))
	if err := a.Build(); err != nil {
		return nil, err
	}
	grammar, err := a.Grammar(triggers, opts.ToolChoice == dispatch.ToolChoiceAuto)
	if err != nil {
		return nil, err
	}

	return &dispatch.FormatDescriptor{
		FormatTag: "deepseek-r1",
		Arena:     a,
		Grammar:   grammar,
		PreservedTokens: []string{
			dsr1ThinkOpen, dsr1ThinkClose, dsr1ToolCallsBegin,
			"<｜tool▁call▁begin｜>", "<｜tool▁sep｜>", "<｜tool▁call▁end｜>", dsr1ToolCallsEnd,
		},
		ThinkingForcedOpen: opts.ThinkingForcedOpen,
		Mapper:             mappers.Native,
	}, nil
}

func dsr1ToolCallRule(a *peg.Arena, cfg peg.Config, opts dispatch.BuildOptions) (peg.ExprHandle, error) {
	choices := make([]peg.ExprHandle, 0, len(opts.Tools))
	for _, tool := range opts.Tools {
		args, err := schemaJSON(a, cfg, tool.Parameters)
		if err != nil {
			return 0, err
		}
		body := a.Seq(
			a.Literal(dsr1ToolCallBegin),
			literalTag(a, chatast.ToolName, tool.Name),
			a.Literal("\n```json\n"),
			a.Tag(chatast.ToolArgs, args),
			a.Optional(a.Literal(dsr1ToolCallEnd)),
		)
		choices = append(choices, a.Rule("deepseek-r1-tool-"+tool.Name, a.Tag(chatast.Tool, body)))
	}
	return a.Choice(choices...), nil
}

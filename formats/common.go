// Package formats implements a representative subset of the 25+
// per-format declarative scripts spec.md places out of scope in detail
// but expects to exist as thin glue over the core: DeepSeek-R1, Hermes 2
// Pro, GPT-OSS, GLM-4.5 and the generic JSON fallback, covering spec.md
// §8's concrete round-trip scenarios. Each builder mirrors the shape of
// its original_source/common/chat-parsers/*.cpp counterpart: an
// optional reasoning block, a tool-call grammar built per declared Tool,
// and a content-only fallback — built against peg.Arena instead of the
// C++ parser-builder DSL.
package formats

import (
	"fmt"

	peg "github.com/parsewire/chatpeg"
	"github.com/parsewire/chatpeg/chatast"
	"github.com/parsewire/chatpeg/dispatch"
)

func optSpace(a *peg.Arena) peg.ExprHandle {
	return a.Optional(a.Space())
}

func literalTag(a *peg.Arena, tag chatast.Tag, s string) peg.ExprHandle {
	return a.Tag(tag, a.Literal(s))
}

func atomicTag(a *peg.Arena, tag chatast.Tag, sub peg.ExprHandle) peg.ExprHandle {
	return a.Atomic(a.Tag(tag, sub))
}

// schemaJSON compiles a tool's JSON-Schema parameters once (the "compile
// once" discipline jsonschema.go documents) and returns a KJSON
// expression constrained by it.
func schemaJSON(a *peg.Arena, cfg peg.Config, schema any) (peg.ExprHandle, error) {
	if schema == nil {
		return a.JSON(cfg.MaxJSONDepth, nil), nil
	}
	compiled, err := peg.CompileSchema(schema)
	if err != nil {
		return peg.ExprHandle(0), fmt.Errorf("%w: %v", dispatch.ErrSchemaCompile, err)
	}
	return a.JSON(cfg.MaxJSONDepth, compiled), nil
}

// reasoningBlock builds the "optional/forced-open <think>...</think>"
// shape every one of these formats shares, grounded on each *.cpp's
// near-identical `reasoning`/`thinking_block` local.
func reasoningBlock(a *peg.Arena, opts dispatch.BuildOptions, openTag, closeTag string) peg.ExprHandle {
	if !opts.ExtractReasoning {
		return a.Eps()
	}
	body := a.Tag(chatast.Reasoning, a.Until(closeTag))
	if opts.ThinkingForcedOpen {
		return a.Seq(body, a.Literal(closeTag))
	}
	return a.Optional(a.Seq(a.Literal(openTag), body, a.Literal(closeTag)))
}

func toolChoiceRepeatBounds(opts dispatch.BuildOptions) (min, max int) {
	min = 0
	if opts.ToolChoice == dispatch.ToolChoiceRequired {
		min = 1
	}
	max = 1
	if opts.ParallelToolCalls {
		max = -1
	}
	return min, max
}

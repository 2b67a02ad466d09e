// Package dispatch selects a chat-output format from a template source
// string, builds that format's PEG parser/grammar once, and — once model
// output is available — runs the parser and the matching mapper to
// produce a chatast.Message. Grounded on spec.md §4.I and, for the
// ordered-marker redesign, §9's "global template-source matching" flag.
package dispatch

import (
	peg "github.com/parsewire/chatpeg"
	"github.com/parsewire/chatpeg/mappers"
)

// ToolChoice mirrors common_chat_tool_choice.
type ToolChoice int

const (
	ToolChoiceAuto ToolChoice = iota
	ToolChoiceNone
	ToolChoiceRequired
)

// Tool is one callable function a format's grammar should accept, named
// after common_chat_tool's {name, parameters} pair (foreach_function in
// chat-parsers-internal.h).
type Tool struct {
	Name       string
	Parameters any // JSON-Schema document, passed to peg.CompileSchema
}

// BuildOptions mirrors the handful of templates_params fields every
// format script in original_source/common/chat-parsers actually reads:
// the rest (messages, extra_context, Jinja application) belongs to the
// template engine spec.md §1 places out of scope.
type BuildOptions struct {
	Tools              []Tool
	ToolChoice         ToolChoice
	ParallelToolCalls  bool
	ExtractReasoning   bool
	ThinkingForcedOpen bool
}

// FormatDescriptor is the Go counterpart of spec.md §3's "Format
// descriptor": everything the dispatcher and sampler need once a format
// has been selected and built.
type FormatDescriptor struct {
	FormatTag          string
	Arena              *peg.Arena
	Grammar            peg.Grammar
	PreservedTokens    []string
	AdditionalStops    []string
	ThinkingForcedOpen bool
	Mapper             mappers.Kind
}

// Rule is one entry of the ordered marker table Select walks.
type Rule struct {
	Marker string
	Build  func(BuildOptions) (*FormatDescriptor, error)
}

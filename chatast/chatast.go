// Package chatast defines the closed set of semantic tags a chat-format
// parser annotates its AST with, and the canonical chat message/tool-call
// shapes mappers (package mappers) project that AST into.
package chatast

import "github.com/parsewire/chatpeg"

// Tag is the chat-domain instantiation of peg.Tag: the stable enumeration
// every format script's grammar and every mapper agree on. Adding a tag
// means updating String() below and every mapper in package mappers —
// spec.md §6 calls this out explicitly as the parser/mapper contract.
type Tag = peg.Tag

const (
	None Tag = iota
	Reasoning
	Content
	Tool
	ToolOpen
	ToolClose
	ToolName
	ToolID
	ToolArgs
	ToolArg
	ToolArgName
	ToolArgStringValue
	ToolArgJSONValue
)

func (t Tag) String() string {
	switch t {
	case None:
		return "NONE"
	case Reasoning:
		return "REASONING"
	case Content:
		return "CONTENT"
	case Tool:
		return "TOOL"
	case ToolOpen:
		return "TOOL_OPEN"
	case ToolClose:
		return "TOOL_CLOSE"
	case ToolName:
		return "TOOL_NAME"
	case ToolID:
		return "TOOL_ID"
	case ToolArgs:
		return "TOOL_ARGS"
	case ToolArg:
		return "TOOL_ARG"
	case ToolArgName:
		return "TOOL_ARG_NAME"
	case ToolArgStringValue:
		return "TOOL_ARG_STRING_VALUE"
	case ToolArgJSONValue:
		return "TOOL_ARG_JSON_VALUE"
	default:
		return "UNKNOWN_TAG"
	}
}

// ToolCall is a single structured function invocation.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // raw JSON text
}

// Message is the mapper output: the three orthogonal channels spec.md §3
// names, assembled by a mapper walking a format's parsed AST.
type Message struct {
	Role             string
	ReasoningContent string
	Content          string
	ToolCalls        []ToolCall

	// InProgress is set by a caller (not a mapper) when the parse this
	// message came from returned peg.Partial rather than peg.Full — see
	// spec.md §4.H's "Failure semantics" paragraph.
	InProgress bool
}

// NewMessage returns an empty assistant message ready for a mapper to
// populate.
func NewMessage() *Message {
	return &Message{Role: "assistant"}
}

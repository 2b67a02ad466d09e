// Package mappers implements the tag-driven visitors that walk a parsed
// chat-format AST (package peg's Node tree, tagged with package chatast's
// Tag enumeration) and populate a chatast.Message. Each mapper is a
// stateless function over (*chatast.Message, *peg.Node, string) rather
// than an interface implementation — spec.md §9 flags "dynamic dispatch
// of mappers" as a redesign target, resolved here with a closed Kind enum
// plus a lookup table instead of inheritance.
package mappers

import (
	"encoding/json"
	"fmt"

	peg "github.com/parsewire/chatpeg"
	"github.com/parsewire/chatpeg/chatast"

	"github.com/google/uuid"
)

// Kind is the closed enumeration of mapper strategies spec.md §4.H names.
type Kind int

const (
	Native Kind = iota
	Constructed
	ShortForm
	Generic
	OAIArray
	CommandR7B
	FunctionGemma
)

// Func is the shape every mapper has: walk root (a parse's AST root node)
// against src (the original input the AST's spans index into) and mutate
// msg in place. Malformed JSON inside a TOOL_ARGS span is returned as an
// error per spec.md §4.H's failure semantics; callers in a streaming
// context should downgrade that error to "in progress" when the parse
// that produced root was itself Partial.
type Func func(msg *chatast.Message, root *peg.Node, src string) error

// Table maps each Kind to its Func, the dispatcher's only coupling point
// to mapper selection.
var Table = map[Kind]Func{
	Native:        MapNative,
	Constructed:   MapConstructed,
	ShortForm:     MapShortForm,
	Generic:       MapGeneric,
	OAIArray:      MapOAIArray,
	CommandR7B:    MapCommandR7B,
	FunctionGemma: MapFunctionGemma,
}

// newToolCallID synthesizes a tool-call ID for formats whose grammar
// never supplies one, grounded on epheien-llm-api-relay's
// toolcallfix/transform.go: fmt.Sprintf("chatcmpl-tool-%s",
// uuid.New().String()[:12]).
func newToolCallID() string {
	return fmt.Sprintf("chatcmpl-tool-%s", uuid.New().String()[:12])
}

func text(n *peg.Node, src string) string {
	if n == nil {
		return ""
	}
	return n.Text(src)
}

func firstChild(n *peg.Node, tag chatast.Tag) *peg.Node {
	for _, c := range n.Children {
		if c.Tag == tag {
			return c
		}
	}
	return nil
}

// fallbackContent appends root's CONTENT child, if any, to msg — used by
// the envelope mappers (short-form, generic, oai-array, command-r7b) when
// no TOOL_ARGS child is present, since root is always the synthetic
// container dispatch.Run wraps a parse's top-level nodes in, never a bare
// CONTENT node itself.
func fallbackContent(msg *chatast.Message, root *peg.Node, src string) {
	if c := firstChild(root, chatast.Content); c != nil {
		msg.Content += text(c, src)
	}
}

func allChildren(n *peg.Node, tag chatast.Tag) []*peg.Node {
	var out []*peg.Node
	for _, c := range n.Children {
		if c.Tag == tag {
			out = append(out, c)
		}
	}
	return out
}

// MapNative implements spec.md §4.H's native mapper: TOOL children carry
// already-JSON TOOL_ARGS verbatim, TOOL_NAME/TOOL_ID are copied as-is, and
// REASONING/CONTENT children append to the message's matching field.
func MapNative(msg *chatast.Message, root *peg.Node, src string) error {
	for _, child := range root.Children {
		switch child.Tag {
		case chatast.Reasoning:
			msg.ReasoningContent += text(child, src)
		case chatast.Content:
			msg.Content += text(child, src)
		case chatast.Tool:
			call := chatast.ToolCall{
				Name:      text(firstChild(child, chatast.ToolName), src),
				Arguments: text(firstChild(child, chatast.ToolArgs), src),
			}
			if idNode := firstChild(child, chatast.ToolID); idNode != nil {
				call.ID = text(idNode, src)
			}
			msg.ToolCalls = append(msg.ToolCalls, call)
		}
	}
	return nil
}

// MapConstructed implements the constructed mapper: a TOOL's TOOL_ARG
// children are (TOOL_ARG_NAME, TOOL_ARG_STRING_VALUE|TOOL_ARG_JSON_VALUE)
// pairs that get assembled into a JSON object and serialized as the tool
// call's arguments.
func MapConstructed(msg *chatast.Message, root *peg.Node, src string) error {
	for _, child := range root.Children {
		switch child.Tag {
		case chatast.Reasoning:
			msg.ReasoningContent += text(child, src)
		case chatast.Content:
			msg.Content += text(child, src)
		case chatast.Tool:
			call, err := buildConstructedCall(child, src)
			if err != nil {
				return err
			}
			msg.ToolCalls = append(msg.ToolCalls, call)
		}
	}
	return nil
}

func buildConstructedCall(tool *peg.Node, src string) (chatast.ToolCall, error) {
	call := chatast.ToolCall{
		Name: text(firstChild(tool, chatast.ToolName), src),
		ID:   newToolCallID(),
	}
	if idNode := firstChild(tool, chatast.ToolID); idNode != nil {
		call.ID = text(idNode, src)
	}
	args := make(map[string]any)
	for _, arg := range allChildren(tool, chatast.ToolArg) {
		key := text(firstChild(arg, chatast.ToolArgName), src)
		if key == "" {
			continue
		}
		if sv := firstChild(arg, chatast.ToolArgStringValue); sv != nil {
			args[key] = text(sv, src)
			continue
		}
		if jv := firstChild(arg, chatast.ToolArgJSONValue); jv != nil {
			var v any
			if err := json.Unmarshal([]byte(text(jv, src)), &v); err != nil {
				return chatast.ToolCall{}, errorf("tool arg %q: %w", key, err)
			}
			args[key] = v
		}
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return chatast.ToolCall{}, err
	}
	call.Arguments = string(raw)
	return call, nil
}

// MapShortForm handles `[{"func_name": {"arg1": value1}}]`: each element
// of the outer array has exactly one key, the tool name, whose value is
// the arguments object.
func MapShortForm(msg *chatast.Message, root *peg.Node, src string) error {
	argsNode := firstChild(root, chatast.ToolArgs)
	if argsNode == nil {
		fallbackContent(msg, root, src)
		return nil
	}
	var entries []map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text(argsNode, src)), &entries); err != nil {
		return errorf("short-form tool list: %w", err)
	}
	for _, entry := range entries {
		for name, args := range entry {
			msg.ToolCalls = append(msg.ToolCalls, chatast.ToolCall{
				ID:        newToolCallID(),
				Name:      name,
				Arguments: string(args),
			})
		}
	}
	return nil
}

type genericEnvelope struct {
	ToolCalls []genericCall `json:"tool_calls"`
	ToolCall  *genericCall  `json:"tool_call"`
	Response  *string       `json:"response"`
	Content   *string       `json:"content"`
}

type genericCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// MapGeneric inspects a parsed top-level JSON value and dispatches on
// tool_calls (list), tool_call (single), or response (string → content).
func MapGeneric(msg *chatast.Message, root *peg.Node, src string) error {
	argsNode := firstChild(root, chatast.ToolArgs)
	if argsNode == nil {
		fallbackContent(msg, root, src)
		return nil
	}
	var env genericEnvelope
	if err := json.Unmarshal([]byte(text(argsNode, src)), &env); err != nil {
		return errorf("generic envelope: %w", err)
	}
	for _, call := range env.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, toolCallFromGeneric(call))
	}
	if env.ToolCall != nil {
		msg.ToolCalls = append(msg.ToolCalls, toolCallFromGeneric(*env.ToolCall))
	}
	if env.Response != nil {
		msg.Content += *env.Response
	}
	if env.Content != nil {
		msg.Content += *env.Content
	}
	return nil
}

func toolCallFromGeneric(c genericCall) chatast.ToolCall {
	id := c.ID
	if id == "" {
		id = newToolCallID()
	}
	return chatast.ToolCall{ID: id, Name: c.Name, Arguments: string(c.Arguments)}
}

type oaiArrayCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// MapOAIArray handles `[{"name":...,"arguments":...,"id":...}, ...]`
// appearing inside a single TOOL_ARGS slot.
func MapOAIArray(msg *chatast.Message, root *peg.Node, src string) error {
	argsNode := firstChild(root, chatast.ToolArgs)
	if argsNode == nil {
		fallbackContent(msg, root, src)
		return nil
	}
	var calls []oaiArrayCall
	if err := json.Unmarshal([]byte(text(argsNode, src)), &calls); err != nil {
		return errorf("oai-array tool list: %w", err)
	}
	for _, c := range calls {
		id := c.ID
		if id == "" {
			id = newToolCallID()
		}
		msg.ToolCalls = append(msg.ToolCalls, chatast.ToolCall{ID: id, Name: c.Name, Arguments: string(c.Arguments)})
	}
	return nil
}

type commandR7BCall struct {
	ToolCallID string          `json:"tool_call_id"`
	ToolName   string          `json:"tool_name"`
	Parameters json.RawMessage `json:"parameters"`
}

// MapCommandR7B is MapOAIArray with Command-R7B's field names
// (tool_call_id / tool_name / parameters) instead of OpenAI's.
func MapCommandR7B(msg *chatast.Message, root *peg.Node, src string) error {
	argsNode := firstChild(root, chatast.ToolArgs)
	if argsNode == nil {
		fallbackContent(msg, root, src)
		return nil
	}
	var calls []commandR7BCall
	if err := json.Unmarshal([]byte(text(argsNode, src)), &calls); err != nil {
		return errorf("command-r7b tool list: %w", err)
	}
	for _, c := range calls {
		id := c.ToolCallID
		if id == "" {
			id = newToolCallID()
		}
		msg.ToolCalls = append(msg.ToolCalls, chatast.ToolCall{ID: id, Name: c.ToolName, Arguments: string(c.Parameters)})
	}
	return nil
}

// MapFunctionGemma parses name{key:<escape>value<escape>,other:123}:
// string values are delimited by a format-chosen escape token
// (TOOL_ARG_STRING_VALUE), raw values (numbers, booleans, JSON literals)
// are TOOL_ARG_JSON_VALUE, mirroring the constructed mapper's argument
// assembly but reading straight off a TOOL node rather than TOOL_ARGS.
func MapFunctionGemma(msg *chatast.Message, root *peg.Node, src string) error {
	for _, child := range root.Children {
		switch child.Tag {
		case chatast.Reasoning:
			msg.ReasoningContent += text(child, src)
		case chatast.Content:
			msg.Content += text(child, src)
		case chatast.Tool:
			call, err := buildConstructedCall(child, src)
			if err != nil {
				return err
			}
			msg.ToolCalls = append(msg.ToolCalls, call)
		}
	}
	return nil
}

func errorf(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}

package mappers_test

import (
	"testing"

	peg "github.com/parsewire/chatpeg"
	"github.com/parsewire/chatpeg/chatast"
	"github.com/parsewire/chatpeg/mappers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func node(tag chatast.Tag, start, end int, children ...*peg.Node) *peg.Node {
	return &peg.Node{Tag: tag, Start: start, End: end, Children: children}
}

func TestMapNativeAssemblesToolCallAndChannels(t *testing.T) {
	src := `reasoning text content text get_weatherabc-123{"city":"nyc"}`
	root := node(chatast.None, 0, len(src),
		node(chatast.Reasoning, 0, 14),
		node(chatast.Content, 15, 27),
		node(chatast.Tool, 28, len(src),
			node(chatast.ToolName, 28, 39),
			node(chatast.ToolID, 39, 46),
			node(chatast.ToolArgs, 46, len(src)),
		),
	)

	msg := chatast.NewMessage()
	require.NoError(t, mappers.MapNative(msg, root, src))

	assert.Equal(t, "reasoning text", msg.ReasoningContent)
	assert.Equal(t, "content text", msg.Content)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "get_weather", msg.ToolCalls[0].Name)
	assert.Equal(t, "abc-123", msg.ToolCalls[0].ID)
	assert.Equal(t, `{"city":"nyc"}`, msg.ToolCalls[0].Arguments)
}

func TestMapConstructedBuildsArgumentObject(t *testing.T) {
	name, key1, val1, key2, val2 := "get_weather", "city", "nyc", "unit", "42"
	src := name + key1 + val1 + key2 + val2

	pos := 0
	span := func(s string) (int, int) { start := pos; pos += len(s); return start, pos }

	nameStart, nameEnd := span(name)
	key1Start, key1End := span(key1)
	val1Start, val1End := span(val1)
	key2Start, key2End := span(key2)
	val2Start, val2End := span(val2)

	root := node(chatast.None, 0, len(src),
		node(chatast.Tool, 0, len(src),
			node(chatast.ToolName, nameStart, nameEnd),
			node(chatast.ToolArg, key1Start, val1End,
				node(chatast.ToolArgName, key1Start, key1End),
				node(chatast.ToolArgStringValue, val1Start, val1End),
			),
			node(chatast.ToolArg, key2Start, val2End,
				node(chatast.ToolArgName, key2Start, key2End),
				node(chatast.ToolArgJSONValue, val2Start, val2End),
			),
		),
	)

	msg := chatast.NewMessage()
	require.NoError(t, mappers.MapConstructed(msg, root, src))
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "get_weather", msg.ToolCalls[0].Name)
	assert.JSONEq(t, `{"city":"nyc","unit":42}`, msg.ToolCalls[0].Arguments)
	assert.NotEmpty(t, msg.ToolCalls[0].ID)
}

func TestMapShortFormSplitsOuterArray(t *testing.T) {
	src := `[{"get_weather": {"city": "nyc"}}]`
	root := node(chatast.None, 0, len(src), node(chatast.ToolArgs, 0, len(src)))

	msg := chatast.NewMessage()
	require.NoError(t, mappers.MapShortForm(msg, root, src))
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "get_weather", msg.ToolCalls[0].Name)
	assert.JSONEq(t, `{"city":"nyc"}`, msg.ToolCalls[0].Arguments)
}

func TestMapGenericDispatchesOnResponseString(t *testing.T) {
	src := `{"response": "hello there"}`
	root := node(chatast.None, 0, len(src), node(chatast.ToolArgs, 0, len(src)))

	msg := chatast.NewMessage()
	require.NoError(t, mappers.MapGeneric(msg, root, src))
	assert.Equal(t, "hello there", msg.Content)
	assert.Empty(t, msg.ToolCalls)
}

func TestMapGenericFallsBackToContentChild(t *testing.T) {
	src := "plain text, no tool call here"
	root := node(chatast.None, 0, len(src), node(chatast.Content, 0, len(src)))

	msg := chatast.NewMessage()
	require.NoError(t, mappers.MapGeneric(msg, root, src))
	assert.Equal(t, src, msg.Content)
	assert.Empty(t, msg.ToolCalls)
}

func TestMapGenericDispatchesOnToolCallsList(t *testing.T) {
	src := `{"tool_calls": [{"id": "t1", "name": "search", "arguments": {"q": "go"}}]}`
	root := node(chatast.None, 0, len(src), node(chatast.ToolArgs, 0, len(src)))

	msg := chatast.NewMessage()
	require.NoError(t, mappers.MapGeneric(msg, root, src))
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "t1", msg.ToolCalls[0].ID)
	assert.Equal(t, "search", msg.ToolCalls[0].Name)
}

func TestMapOAIArraySynthesizesMissingID(t *testing.T) {
	src := `[{"name": "search", "arguments": {"q": "go"}}]`
	root := node(chatast.None, 0, len(src), node(chatast.ToolArgs, 0, len(src)))

	msg := chatast.NewMessage()
	require.NoError(t, mappers.MapOAIArray(msg, root, src))
	require.Len(t, msg.ToolCalls, 1)
	assert.NotEmpty(t, msg.ToolCalls[0].ID)
}

func TestMapCommandR7BUsesToolSpecificFieldNames(t *testing.T) {
	src := `[{"tool_call_id": "c1", "tool_name": "search", "parameters": {"q": "go"}}]`
	root := node(chatast.None, 0, len(src), node(chatast.ToolArgs, 0, len(src)))

	msg := chatast.NewMessage()
	require.NoError(t, mappers.MapCommandR7B(msg, root, src))
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "c1", msg.ToolCalls[0].ID)
	assert.Equal(t, "search", msg.ToolCalls[0].Name)
}

func TestMapConstructedSurfacesMalformedJSON(t *testing.T) {
	src := `get_weathercitynot-json`
	root := node(chatast.None, 0, len(src),
		node(chatast.Tool, 0, len(src),
			node(chatast.ToolName, 0, 11),
			node(chatast.ToolArg, 11, len(src),
				node(chatast.ToolArgName, 11, 15),
				node(chatast.ToolArgJSONValue, 15, len(src)),
			),
		),
	)

	msg := chatast.NewMessage()
	err := mappers.MapConstructed(msg, root, src)
	assert.Error(t, err)
}

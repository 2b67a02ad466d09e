package dispatch_test

import (
	"testing"

	peg "github.com/parsewire/chatpeg"
	"github.com/parsewire/chatpeg/chatast"
	"github.com/parsewire/chatpeg/dispatch"
	"github.com/parsewire/chatpeg/mappers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func markerRule(marker string) dispatch.Rule {
	return dispatch.Rule{
		Marker: marker,
		Build: func(dispatch.BuildOptions) (*dispatch.FormatDescriptor, error) {
			return &dispatch.FormatDescriptor{FormatTag: marker}, nil
		},
	}
}

func TestSelectMatchesFirstMarkerInOrder(t *testing.T) {
	table := []dispatch.Rule{markerRule("<tool_call>"), markerRule("<|channel|>")}
	fallback := markerRule("fallback")

	desc, err := dispatch.Select(table, "prefix <|channel|>analysis<|message|>", dispatch.BuildOptions{}, fallback, nil)
	require.NoError(t, err)
	assert.Equal(t, "<|channel|>", desc.FormatTag)
}

func TestSelectPrefersEarlierTableEntryOnOverlap(t *testing.T) {
	table := []dispatch.Rule{markerRule("<tool_call>"), markerRule("<function")}
	fallback := markerRule("fallback")

	desc, err := dispatch.Select(table, "mixed template has both <tool_call> and <function markers", dispatch.BuildOptions{}, fallback, nil)
	require.NoError(t, err)
	assert.Equal(t, "<tool_call>", desc.FormatTag, "earlier table entries must win regardless of which marker appears first in the source text")
}

func TestSelectFallsBackWhenNoMarkerMatches(t *testing.T) {
	table := []dispatch.Rule{markerRule("<tool_call>")}
	fallback := markerRule("fallback")

	var logged []string
	desc, err := dispatch.Select(table, "a template with no known markers", dispatch.BuildOptions{}, fallback,
		func(format string, args ...any) { logged = append(logged, format) })
	require.NoError(t, err)
	assert.Equal(t, "fallback", desc.FormatTag)
	assert.NotEmpty(t, logged)
}

func buildContentOnlyArena(t *testing.T) *peg.Arena {
	t.Helper()
	a := peg.NewArena()
	a.SetRoot(a.Rule("root", a.Tag(chatast.Content, a.Rest())))
	require.NoError(t, a.Build())
	return a
}

func TestRunMapsFullParseToMessage(t *testing.T) {
	a := buildContentOnlyArena(t)
	desc := &dispatch.FormatDescriptor{Arena: a, Mapper: mappers.Native}

	msg, outcome, err := dispatch.Run(desc, "hello world", peg.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, peg.Full, outcome)
	assert.Equal(t, "hello world", msg.Content)
	assert.False(t, msg.InProgress)
}

func TestRunReturnsErrorOnFailedParse(t *testing.T) {
	a := peg.NewArena()
	a.SetRoot(a.Rule("root", a.Literal("expected-prefix")))
	require.NoError(t, a.Build())
	desc := &dispatch.FormatDescriptor{Arena: a, Mapper: mappers.Native}

	_, outcome, err := dispatch.Run(desc, "totally different input", peg.DefaultConfig())
	assert.Error(t, err)
	assert.Equal(t, peg.Failed, outcome)
	assert.ErrorIs(t, err, dispatch.ErrParseFailed)
}

// buildPartialToolArena matches a TOOL node whose argument value is
// captured verbatim (no JSON well-formedness check at the grammar level —
// that's MapConstructed's job) followed by a literal the input is missing,
// so the overall parse is Partial while the TOOL node it already captured
// survives (Seq only rewinds on Failed, not Partial, see eval.go's evalSeq).
func buildPartialToolArena(t *testing.T) *peg.Arena {
	t.Helper()
	a := peg.NewArena()
	tool := a.Tag(chatast.Tool, a.Seq(
		a.Tag(chatast.ToolName, a.Literal("t")),
		a.Tag(chatast.ToolArg, a.Seq(
			a.Tag(chatast.ToolArgName, a.Literal("k")),
			a.Tag(chatast.ToolArgJSONValue, a.Literal("bad")),
		)),
	))
	a.SetRoot(a.Rule("root", a.Seq(tool, a.Literal("END"))))
	require.NoError(t, a.Build())
	return a
}

func TestRunDowngradesPartialMapperErrorToInProgress(t *testing.T) {
	a := buildPartialToolArena(t)
	desc := &dispatch.FormatDescriptor{Arena: a, Mapper: mappers.Constructed}

	msg, outcome, err := dispatch.Run(desc, "tkbad", peg.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, peg.Partial, outcome)
	assert.True(t, msg.InProgress)
}

func TestRunReturnsErrorOnUnknownMapperKind(t *testing.T) {
	a := buildContentOnlyArena(t)
	desc := &dispatch.FormatDescriptor{Arena: a, Mapper: mappers.Kind(999)}

	_, _, err := dispatch.Run(desc, "hello", peg.DefaultConfig())
	assert.ErrorIs(t, err, dispatch.ErrUnknownMapper)
}

package stream_test

import (
	"strings"
	"testing"

	peg "github.com/parsewire/chatpeg"
	"github.com/parsewire/chatpeg/dispatch"
	"github.com/parsewire/chatpeg/formats"
	"github.com/parsewire/chatpeg/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deepSeekContentOnly(t *testing.T) *dispatch.FormatDescriptor {
	t.Helper()
	desc, err := formats.DeepSeekR1(dispatch.BuildOptions{}, peg.DefaultConfig())
	require.NoError(t, err)
	return desc
}

func TestPushEmitsIncrementalContentDeltas(t *testing.T) {
	fe := stream.NewFrontend(deepSeekContentOnly(t), peg.DefaultConfig())

	d1, err := fe.Push([]byte("Hello, "))
	require.NoError(t, err)
	require.Len(t, d1, 1)
	assert.Equal(t, stream.DeltaContent, d1[0].Kind)
	assert.Equal(t, "Hello, ", d1[0].Text)

	d2, err := fe.Push([]byte("world!"))
	require.NoError(t, err)
	require.Len(t, d2, 1)
	assert.Equal(t, stream.DeltaContent, d2[0].Kind)
	assert.Equal(t, "world!", d2[0].Text, "only the new suffix since the last snapshot should be emitted")
}

// TestPushHandlesMidReasoningTruncation replicates the truncated-mid-
// reasoning streaming scenario: a buffer cut off inside an unterminated
// <think> block snapshots as reasoning-only, with no content and no tool
// calls, since the outer sequence never reaches past the still-open
// reasoning block.
func TestPushHandlesMidReasoningTruncation(t *testing.T) {
	opts := dispatch.BuildOptions{ExtractReasoning: true}
	desc, err := formats.DeepSeekR1(opts, peg.DefaultConfig())
	require.NoError(t, err)

	fe := stream.NewFrontend(desc, peg.DefaultConfig())

	deltas, err := fe.Push([]byte("<think>\nlet me th"))
	require.NoError(t, err)
	require.Len(t, deltas, 1)
	assert.Equal(t, stream.DeltaReasoning, deltas[0].Kind)
	assert.Equal(t, "let me th", deltas[0].Text)
}

func TestCloseEmitsFinalNonPartialCloseDelta(t *testing.T) {
	fe := stream.NewFrontend(deepSeekContentOnly(t), peg.DefaultConfig())

	_, err := fe.Push([]byte("all done"))
	require.NoError(t, err)

	deltas, err := fe.Close()
	require.NoError(t, err)
	require.NotEmpty(t, deltas)

	last := deltas[len(deltas)-1]
	assert.Equal(t, stream.DeltaClose, last.Kind)
	assert.False(t, last.Partial)

	for _, d := range deltas[:len(deltas)-1] {
		assert.NotEqual(t, stream.DeltaContent, d.Kind, "content already flushed by Push must not be re-emitted by Close")
	}
}

func TestAbortDrainsRemainingTextAndMarksPartialClose(t *testing.T) {
	fe := stream.NewFrontend(deepSeekContentOnly(t), peg.DefaultConfig())

	deltas := fe.Abort()
	require.NotEmpty(t, deltas)
	last := deltas[len(deltas)-1]
	assert.Equal(t, stream.DeltaClose, last.Kind)
	assert.True(t, last.Partial)

	_, err := fe.Push([]byte("more"))
	assert.ErrorIs(t, err, stream.ErrAborted)
}

// TestToolCallArgsDeltasReconstructFinalArguments streams a Hermes 2 Pro
// tool call split mid-argument-value and checks that concatenating every
// DeltaToolArgs chunk across Push and Close reproduces exactly the
// arguments text a one-shot parse of the complete buffer would produce —
// the monotonicity invariant (previously emitted text is never retracted)
// applied to a single tool call's running argument string.
func TestToolCallArgsDeltasReconstructFinalArguments(t *testing.T) {
	opts := dispatch.BuildOptions{Tools: []dispatch.Tool{{Name: "search"}}}
	desc, err := formats.Hermes2Pro(opts, peg.DefaultConfig())
	require.NoError(t, err)

	full := "<tool_call>" + `{"name":"search","arguments":{"q":"go"}}` + "</tool_call>"
	splitAt := len(`<tool_call>{"name":"search","arguments":{"q":`)
	chunk1, chunk2 := full[:splitAt], full[splitAt:]

	fe := stream.NewFrontend(desc, peg.DefaultConfig())

	var args strings.Builder
	var sawOpen bool

	deltas1, err := fe.Push([]byte(chunk1))
	require.NoError(t, err)
	for _, d := range deltas1 {
		switch d.Kind {
		case stream.DeltaToolOpen:
			sawOpen = true
			assert.Equal(t, "search", d.Name)
			assert.Equal(t, 0, d.Index)
		case stream.DeltaToolArgs:
			assert.Equal(t, 0, d.Index)
			args.WriteString(d.Text)
		}
	}
	assert.True(t, sawOpen, "the tool call's opening marker is fully present in chunk1 and must surface immediately")

	deltas2, err := fe.Push([]byte(chunk2))
	require.NoError(t, err)
	var sawClose bool
	for _, d := range deltas2 {
		switch d.Kind {
		case stream.DeltaToolArgs:
			assert.Equal(t, 0, d.Index)
			args.WriteString(d.Text)
		case stream.DeltaToolOpen:
			t.Fatalf("tool call already opened on chunk1, must not reopen")
		}
	}

	closeDeltas, err := fe.Close()
	require.NoError(t, err)
	for _, d := range closeDeltas {
		if d.Kind == stream.DeltaToolArgs {
			args.WriteString(d.Text)
		}
		if d.Kind == stream.DeltaClose {
			sawClose = true
		}
	}
	assert.True(t, sawClose)

	finalMsg, outcome, err := dispatch.Run(desc, full, peg.DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, peg.Full, outcome)
	require.Len(t, finalMsg.ToolCalls, 1)
	assert.Equal(t, finalMsg.ToolCalls[0].Arguments, args.String())
}

func TestUTF8SafeTruncationWithholdsIncompleteTail(t *testing.T) {
	full := "café" // 'é' is the two-byte sequence 0xC3 0xA9
	fe := stream.NewFrontend(deepSeekContentOnly(t), peg.DefaultConfig())

	lead := full[:len(full)-1] // ends right after the 0xC3 lead byte
	deltas, err := fe.Push([]byte(lead))
	require.NoError(t, err)
	require.Len(t, deltas, 1)
	assert.Equal(t, "caf", deltas[0].Text, "the dangling lead byte must be withheld until its continuation byte arrives")

	deltas, err = fe.Push([]byte(full[len(lead):]))
	require.NoError(t, err)
	require.Len(t, deltas, 1)
	assert.Equal(t, "é", deltas[0].Text, "only the rune completed by the new byte should be emitted, not the whole word again")
}

func TestClosingTwiceIsANoop(t *testing.T) {
	fe := stream.NewFrontend(deepSeekContentOnly(t), peg.DefaultConfig())
	_, err := fe.Push([]byte("hi"))
	require.NoError(t, err)

	_, err = fe.Close()
	require.NoError(t, err)

	deltas, err := fe.Close()
	require.NoError(t, err)
	assert.Empty(t, deltas)
}

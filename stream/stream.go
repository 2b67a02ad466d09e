// Package stream implements the streaming frontend (spec.md §4.J):
// accumulate chunks, safely truncate an incomplete UTF-8 tail, re-parse the
// buffer with the dispatcher's PEG grammar, and diff the resulting snapshot
// against the previous one to emit monotonic deltas. Grounded in its
// state-tracking shape on asynkron-GoAgent's internal/core/runtime
// openai_stream_parser.go: a struct carrying the last-emitted
// content/tool-call state (toolID/toolName/toolArgs/lastEmittedMessage
// there), diffing each new snapshot against it via strings.HasPrefix and
// emitting only the new suffix — adapted here to diff a PEG-parsed
// chatast.Message snapshot instead of ad hoc partial-JSON field extraction.
package stream

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	peg "github.com/parsewire/chatpeg"
	"github.com/parsewire/chatpeg/chatast"
	"github.com/parsewire/chatpeg/dispatch"
)

// DeltaKind is the closed enumeration of events Push/Close/Abort emit,
// mirroring the mappers/dispatch packages' Kind-enum-over-interface choice
// (spec.md §9's dynamic-dispatch redesign flag).
type DeltaKind int

const (
	DeltaContent DeltaKind = iota
	DeltaReasoning
	DeltaToolOpen
	DeltaToolArgs
	DeltaClose
)

func (k DeltaKind) String() string {
	switch k {
	case DeltaContent:
		return "CONTENT"
	case DeltaReasoning:
		return "REASONING"
	case DeltaToolOpen:
		return "TOOL_OPEN"
	case DeltaToolArgs:
		return "TOOL_ARGS"
	case DeltaClose:
		return "CLOSE"
	default:
		return fmt.Sprintf("DeltaKind(%d)", int(k))
	}
}

// Delta is one emitted event. Index/Name/ID are only meaningful for
// DeltaToolOpen/DeltaToolArgs; Partial is only meaningful for DeltaClose.
type Delta struct {
	Kind    DeltaKind
	Text    string
	Index   int
	Name    string
	ID      string
	Partial bool
}

// ErrAborted is returned by Push/Close once Abort has been called.
var ErrAborted = errors.New("stream: frontend aborted")

// ErrParseFailedFinal mirrors spec.md §7's ParseFailed-elevated-on-close
// rule: a Failed outcome is swallowed during streaming (buffer may still
// extend into something valid) but surfaced once is_partial=false.
var ErrParseFailedFinal = errors.New("stream: parse failed at final close")

type toolCallState struct {
	opened bool
	args   string
}

// Frontend holds the accumulating buffer and last-emitted snapshot state
// for one streamed response. Not safe for concurrent use — spec.md §5
// places streaming coordination entirely on the caller.
type Frontend struct {
	desc      *dispatch.FormatDescriptor
	cfg       peg.Config
	buf       []byte
	content   string
	reasoning string
	tools     []toolCallState
	aborted   bool
	closed    bool
}

// NewFrontend wraps a built FormatDescriptor (from dispatch.Select) in a
// streaming frontend. cfg's zero value is replaced by peg.DefaultConfig()
// the same way Arena.Match already does.
func NewFrontend(desc *dispatch.FormatDescriptor, cfg peg.Config) *Frontend {
	return &Frontend{desc: desc, cfg: cfg}
}

// Push appends chunk to the accumulating buffer and returns the deltas the
// resulting partial snapshot adds over the previous one, per spec.md
// §4.J's five-step per-chunk algorithm. A Failed parse mid-stream (the
// buffer doesn't yet resemble this format, or not enough of it has
// arrived) yields no deltas and no error — see spec.md §7's "ParseFailed
// ... elevated to ParseFailedFinal only if is_partial=false".
func (f *Frontend) Push(chunk []byte) ([]Delta, error) {
	if f.aborted || f.closed {
		return nil, ErrAborted
	}
	f.buf = append(f.buf, chunk...)
	safe := truncateUTF8(f.buf)

	msg, outcome, err := dispatch.Run(f.desc, string(safe), f.cfg)
	if err != nil {
		if outcome == peg.Failed {
			return nil, nil
		}
		return nil, err
	}
	return f.diff(msg), nil
}

// Close re-parses the full accumulated buffer with is_partial=false
// (spec.md §4.J step 6) and appends a final, non-partial DeltaClose.
func (f *Frontend) Close() ([]Delta, error) {
	if f.aborted {
		return nil, ErrAborted
	}
	if f.closed {
		return nil, nil
	}
	f.closed = true

	safe := truncateUTF8(f.buf)
	msg, outcome, err := dispatch.Run(f.desc, string(safe), f.cfg)
	if err != nil || outcome == peg.Failed {
		return nil, fmt.Errorf("%w: %v", ErrParseFailedFinal, err)
	}
	deltas := f.diff(msg)
	deltas = append(deltas, Delta{Kind: DeltaClose, Partial: false})
	return deltas, nil
}

// Abort drains whatever has been buffered so far and yields a terminal,
// is_partial=true close event without requiring the buffer to represent a
// complete parse — spec.md §5's "abort signal that drains the buffer and
// yields a terminal close event".
func (f *Frontend) Abort() []Delta {
	if f.aborted || f.closed {
		return nil
	}
	f.aborted = true

	safe := truncateUTF8(f.buf)
	var deltas []Delta
	if msg, _, err := dispatch.Run(f.desc, string(safe), f.cfg); err == nil {
		deltas = f.diff(msg)
	}
	deltas = append(deltas, Delta{Kind: DeltaClose, Partial: true})
	return deltas
}

// diff compares msg (a freshly parsed snapshot of the whole buffer so far)
// against the frontend's last-emitted state and returns only the new
// material, per spec.md §4.J step 5: content/reasoning are diffed as a
// longest-common-prefix extension, tool calls are matched by their
// ordinal position in msg.ToolCalls (an "open" delta fires the first time
// an index is seen, carrying name/id; each subsequent sighting of that
// index emits only the new suffix of its arguments). Mirrors
// asynkron-GoAgent's openai_stream_parser.go emitMessageDelta/resetCall
// pair, adapted to diff a parsed snapshot instead of raw partial JSON
// fields.
func (f *Frontend) diff(msg *chatast.Message) []Delta {
	var deltas []Delta

	if add, ok := prefixDelta(f.reasoning, msg.ReasoningContent); ok && add != "" {
		deltas = append(deltas, Delta{Kind: DeltaReasoning, Text: add})
		f.reasoning = msg.ReasoningContent
	}
	if add, ok := prefixDelta(f.content, msg.Content); ok && add != "" {
		deltas = append(deltas, Delta{Kind: DeltaContent, Text: add})
		f.content = msg.Content
	}

	for i, call := range msg.ToolCalls {
		if i >= len(f.tools) {
			f.tools = append(f.tools, toolCallState{})
		}
		state := &f.tools[i]
		if !state.opened {
			state.opened = true
			deltas = append(deltas, Delta{Kind: DeltaToolOpen, Index: i, Name: call.Name, ID: call.ID})
		}
		if add, ok := prefixDelta(state.args, call.Arguments); ok && add != "" {
			deltas = append(deltas, Delta{Kind: DeltaToolArgs, Index: i, Text: add})
			state.args = call.Arguments
		}
	}

	return deltas
}

// prefixDelta returns the suffix next adds over prev, enforcing spec.md
// §8's monotonicity invariant: previously emitted text is never retracted.
// If next doesn't extend prev (a grammar ambiguity briefly produced a
// shorter or divergent snapshot), ok is false and the caller must not
// advance its stored state, so a later snapshot that does extend prev is
// still recognized as new.
func prefixDelta(prev, next string) (string, bool) {
	if !strings.HasPrefix(next, prev) {
		return "", false
	}
	return next[len(prev):], true
}

// leadByteSize returns how many bytes the UTF-8 sequence starting with b
// is supposed to occupy. Continuation and invalid lead bytes report 1,
// which is harmless here: truncateUTF8 only calls this on a byte it has
// already confirmed isn't a continuation byte.
func leadByteSize(b byte) int {
	switch {
	case b&0x80 == 0x00:
		return 1
	case b&0xE0 == 0xC0:
		return 2
	case b&0xF0 == 0xE0:
		return 3
	case b&0xF8 == 0xF0:
		return 4
	default:
		return 1
	}
}

// truncateUTF8 trims up to three trailing bytes so buf never ends mid
// code-point, per spec.md §5's UTF-8 safety rule: walk back over trailing
// continuation bytes to find the sequence's lead byte, then check whether
// the lead byte's declared length fits in what's left of buf.
func truncateUTF8(buf []byte) []byte {
	n := len(buf)
	limit := utf8.UTFMax
	if n < limit {
		limit = n
	}
	for back := 1; back <= limit; back++ {
		b := buf[n-back]
		if b&0xC0 == 0x80 {
			continue
		}
		if leadByteSize(b) > back {
			return buf[:n-back]
		}
		return buf
	}
	return buf
}

package formats

import (
	peg "github.com/parsewire/chatpeg"
	"github.com/parsewire/chatpeg/dispatch"
)

// Table returns the ordered marker table dispatch.Select walks, closed
// over cfg (each builder needs cfg.MaxJSONDepth to compile tool-argument
// schemas). Order matters: Select returns the first marker found in the
// template source, so formats whose markers are substrings or near-
// neighbors of another format's must be ordered deliberately.
//
// spec.md §9 flags two precedence cases this representative subset
// doesn't itself need to resolve (Qwen3-Coder and Apriel-1.5 are out of
// SPEC_FULL.md's worked-format scope) but whose reasoning still applies
// to where DeepSeek-R1/Hermes/GPT-OSS/GLM-4.5 sit relative to each
// other: Qwen3-Coder's "<tool_call>" marker is identical to Hermes 2
// Pro's, so a hypothetical Qwen3-Coder entry would need to precede
// Hermes in this table (more specific template fingerprint first) or
// use a longer, more specific marker; Apriel-1.5 similarly overlaps
// Hermes's "<tool_call>" marker and would need the same treatment.
//
// Of the five formats actually built here, GLM-4.5's templates contain
// *both* "<tool_call>" and "<arg_key>" — the same collision class as
// Qwen3-Coder/Apriel-1.5 above, just within this worked subset instead
// of a hypothetical addition — so GLM-4.5 is listed before Hermes 2 Pro
// here; placing it after would make every GLM-4.5 template match
// Hermes's "<tool_call>" marker first and be misdispatched. DeepSeek-R1's
// marker is a unique prefix unrelated to any other entry. Hermes 2
// Pro's and GPT-OSS's markers ("<tool_call>"/"<function", "<|channel|>")
// don't collide with each other, so their relative order doesn't
// currently matter — but Hermes is placed ahead of GPT-OSS on the
// general principle that a future addition sharing Hermes's marker
// (like Qwen3-Coder or Apriel-1.5 above) must be inserted before it, not
// after.
func Table(cfg peg.Config) []dispatch.Rule {
	return []dispatch.Rule{
		{
			Marker: "<｜tool▁calls▁begin｜>",
			Build:  func(opts dispatch.BuildOptions) (*dispatch.FormatDescriptor, error) { return DeepSeekR1(opts, cfg) },
		},
		{
			Marker: "<arg_key>",
			Build:  func(opts dispatch.BuildOptions) (*dispatch.FormatDescriptor, error) { return GLM45(opts, cfg) },
		},
		{
			Marker: "<tool_call>",
			Build:  func(opts dispatch.BuildOptions) (*dispatch.FormatDescriptor, error) { return Hermes2Pro(opts, cfg) },
		},
		{
			Marker: "<|channel|>",
			Build:  func(opts dispatch.BuildOptions) (*dispatch.FormatDescriptor, error) { return GPTOSS(opts, cfg) },
		},
	}
}

// Fallback is the content-only/JSON-envelope format used when no marker
// in Table matches the template source — spec.md §4.I's UnknownFormat
// case, explicitly not an error.
func Fallback(cfg peg.Config) dispatch.Rule {
	return dispatch.Rule{
		Marker: "",
		Build:  func(opts dispatch.BuildOptions) (*dispatch.FormatDescriptor, error) { return Generic(opts, cfg) },
	}
}

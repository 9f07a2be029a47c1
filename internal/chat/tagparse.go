package chat

import "strings"

// Reasoning-capable models interleave their chain of thought with the
// answer using <think>...</think> markers. splitReasoning separates the
// two streams so callers never have to see the markers.

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// splitReasoning scans s with a two-state machine (outside a think
// block, inside one) and returns the accumulated reasoning and answer
// text, both whitespace-trimmed. An opening tag without a matching
// close means the model is still reasoning: everything after the open
// tag counts as reasoning. Text with no tags at all is answer text.
func splitReasoning(s string) (reasoning, answer string) {
	var think, out strings.Builder
	inside := false

	for len(s) > 0 {
		if inside {
			end := strings.Index(s, thinkClose)
			if end < 0 {
				think.WriteString(s)
				break
			}
			think.WriteString(s[:end])
			s = s[end+len(thinkClose):]
			inside = false
			continue
		}
		start := strings.Index(s, thinkOpen)
		if start < 0 {
			out.WriteString(s)
			break
		}
		out.WriteString(s[:start])
		s = s[start+len(thinkOpen):]
		inside = true
	}

	return strings.TrimSpace(think.String()), strings.TrimSpace(out.String())
}

// StripThinkTags returns s with every think block removed, trimmed.
// Used before feeding model output anywhere reasoning must not leak,
// such as search queries built from conversation history.
func StripThinkTags(s string) string {
	_, answer := splitReasoning(s)
	return answer
}

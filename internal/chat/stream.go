package chat

import "strings"

// streamEmitter accumulates streamed deltas and pushes normalized
// cumulative snapshots through the request callbacks. Because tags can
// be split across arbitrarily small deltas, it re-splits the full
// buffer after every append rather than trying to parse fragments.
type streamEmitter struct {
	req  Request
	full strings.Builder

	// extra holds reasoning delivered out of band (the dedicated
	// reasoning field some APIs stream) rather than via inline tags.
	extra strings.Builder

	lastAnswer    string
	lastReasoning string
}

func newStreamEmitter(req Request) *streamEmitter {
	return &streamEmitter{req: req}
}

// appendContent adds an answer-stream delta and notifies callbacks if
// the normalized view changed.
func (e *streamEmitter) appendContent(delta string) {
	if delta == "" {
		return
	}
	e.full.WriteString(delta)
	e.emit(trimPartialTag(e.full.String()))
}

// appendReasoning adds an out-of-band reasoning delta.
func (e *streamEmitter) appendReasoning(delta string) {
	if delta == "" {
		return
	}
	e.extra.WriteString(delta)
	e.emit(trimPartialTag(e.full.String()))
}

// flush emits the final view. Call once the stream has ended: any
// trailing text withheld as a possible tag fragment is a literal "<"
// run after all, and must reach the callbacks.
func (e *streamEmitter) flush() {
	e.emit(e.full.String())
}

// emit notifies the callbacks when the views derived from content
// changed. Callbacks always receive cumulative snapshots that are
// prefixes of later snapshots, never text that gets retracted.
func (e *streamEmitter) emit(content string) {
	reasoning, answer := e.view(content)
	if answer != e.lastAnswer {
		e.lastAnswer = answer
		if e.req.OnToken != nil {
			e.req.OnToken(answer)
		}
	}
	if reasoning != e.lastReasoning {
		e.lastReasoning = reasoning
		if e.req.OnReasoning != nil {
			e.req.OnReasoning(reasoning)
		}
	}
}

// snapshot returns the current reasoning and answer views of the
// accumulated stream.
func (e *streamEmitter) snapshot() (reasoning, answer string) {
	return e.view(e.full.String())
}

func (e *streamEmitter) view(content string) (reasoning, answer string) {
	reasoning, answer = splitReasoning(content)
	if extra := strings.TrimSpace(e.extra.String()); extra != "" {
		if reasoning == "" {
			reasoning = extra
		} else {
			reasoning = extra + "\n" + reasoning
		}
	}
	return reasoning, answer
}

// trimPartialTag drops a trailing fragment that could still grow into a
// think tag once more deltas arrive. Without this, a tag split across
// chunk boundaries would be surfaced as answer text and then retracted,
// which display layers that only append cannot undo.
func trimPartialTag(s string) string {
	longest := len(thinkClose) - 1
	if longest > len(s) {
		longest = len(s)
	}
	for n := longest; n > 0; n-- {
		suffix := s[len(s)-n:]
		if strings.HasPrefix(thinkOpen, suffix) || strings.HasPrefix(thinkClose, suffix) {
			return s[:len(s)-n]
		}
	}
	return s
}

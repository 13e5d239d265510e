package llmservice

import "strings"

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// thinkFilter removes reasoning blocks from a streamed answer. Tags may be
// split across fragments, so a possible partial tag is held back until the
// next fragment decides it.
type thinkFilter struct {
	inThink bool
	started bool
	pending string
}

// Write returns the visible part of chunk, possibly empty.
func (f *thinkFilter) Write(chunk string) string {
	s := f.pending + chunk
	f.pending = ""

	var out strings.Builder
	for s != "" {
		if f.inThink {
			i := strings.Index(s, thinkClose)
			if i < 0 {
				f.pending = s[len(s)-partialTag(s, thinkClose):]
				break
			}
			s = s[i+len(thinkClose):]
			f.inThink = false
			continue
		}
		i := strings.Index(s, thinkOpen)
		if i < 0 {
			keep := partialTag(s, thinkOpen)
			out.WriteString(s[:len(s)-keep])
			f.pending = s[len(s)-keep:]
			break
		}
		out.WriteString(s[:i])
		s = s[i+len(thinkOpen):]
		f.inThink = true
	}
	return f.visible(out.String())
}

// Flush returns text held back at the end of the stream. An unterminated
// reasoning block is dropped.
func (f *thinkFilter) Flush() string {
	p := f.pending
	f.pending = ""
	if f.inThink {
		return ""
	}
	return f.visible(p)
}

// leading whitespace is dropped until the answer starts
func (f *thinkFilter) visible(s string) string {
	if !f.started {
		s = strings.TrimLeft(s, " \t\r\n")
		f.started = s != ""
	}
	return s
}

// partialTag is the length of the longest suffix of s that is a proper
// prefix of tag.
func partialTag(s, tag string) int {
	n := len(tag) - 1
	if n > len(s) {
		n = len(s)
	}
	for ; n > 0; n-- {
		if strings.HasSuffix(s, tag[:n]) {
			return n
		}
	}
	return 0
}

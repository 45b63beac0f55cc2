package model

import "strings"

// stopMatcher watches streamed text for stop sequences. Text that might be the
// beginning of a stop sequence is held back until it is disambiguated, so a
// stop sequence never leaks into the output, even when split across tokens.
type stopMatcher struct {
	stops   []string
	pending string
	done    bool
}

func newStopMatcher(stops []string) *stopMatcher {
	m := &stopMatcher{}
	for _, s := range stops {
		if s != "" {
			m.stops = append(m.stops, s)
		}
	}
	return m
}

// Write consumes s and returns the text that is safe to emit. hit is true once
// a stop sequence has matched; everything from the match on is discarded.
func (m *stopMatcher) Write(s string) (out string, hit bool) {
	if m.done {
		return "", true
	}
	text := m.pending + s
	cut := -1
	for _, st := range m.stops {
		if i := strings.Index(text, st); i >= 0 && (cut < 0 || i < cut) {
			cut = i
		}
	}
	if cut >= 0 {
		m.done = true
		m.pending = ""
		return text[:cut], true
	}
	keep := m.holdback(text)
	m.pending = text[len(text)-keep:]
	return text[:len(text)-keep], false
}

// holdback returns the length of the longest suffix of s that is a proper
// prefix of some stop sequence.
func (m *stopMatcher) holdback(s string) int {
	best := 0
	for _, st := range m.stops {
		for n := min(len(st)-1, len(s)); n > best; n-- {
			if strings.HasSuffix(s, st[:n]) {
				best = n
				break
			}
		}
	}
	return best
}

// Flush returns held-back text once the stream has ended without a match.
func (m *stopMatcher) Flush() string {
	if m.done {
		return ""
	}
	p := m.pending
	m.pending = ""
	return p
}

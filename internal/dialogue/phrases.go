package dialogue

import "strings"

// PhraseMatcher decides whether an utterance expresses a given intent,
// such as wanting to end the call or flagging an emergency.
type PhraseMatcher interface {
	Matches(utterance string) bool
}

// SubstringMatcher matches when any configured phrase appears anywhere
// in the utterance, case-insensitively.
type SubstringMatcher struct {
	phrases []string
}

var _ PhraseMatcher = (*SubstringMatcher)(nil)

// NewSubstringMatcher builds a matcher over the given phrases. Blank
// phrases are dropped so they can never match everything.
func NewSubstringMatcher(phrases []string) *SubstringMatcher {
	m := &SubstringMatcher{}
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			m.phrases = append(m.phrases, p)
		}
	}
	return m
}

func (m *SubstringMatcher) Matches(utterance string) bool {
	utterance = strings.ToLower(utterance)
	for _, p := range m.phrases {
		if strings.Contains(utterance, p) {
			return true
		}
	}
	return false
}

package dialogue

import (
	"time"

	"github.com/voicegate/voicegate/internal/llm"
)

// History bounds: once the exchange list reaches maxHistory it is
// trimmed to the most recent keepHistory entries.
const (
	maxHistory  = 10
	keepHistory = 8
)

// State tracks one call's conversation: the turn counter, the failure
// counters behind the exit policy, and the exchange history fed to the
// response generator.
type State struct {
	Turn               int
	FailedInteractions int
	NoResponseCount    int
	Interrupts         int
	StartTime          time.Time
	History            []llm.Exchange
}

// NewState starts a conversation clock at now.
func NewState(now time.Time) *State {
	return &State{StartTime: now}
}

// Observe updates the failure counters for one collected transcript.
// A usable transcript resets both counters; an empty one advances both.
func (s *State) Observe(transcript string) {
	if transcript != "" {
		s.FailedInteractions = 0
		s.NoResponseCount = 0
		return
	}
	s.FailedInteractions++
	s.NoResponseCount++
}

// Append records a completed exchange, trimming the history once it
// grows past the cap.
func (s *State) Append(user, assistant string) {
	s.History = append(s.History, llm.Exchange{User: user, Assistant: assistant})
	if len(s.History) >= maxHistory {
		s.History = s.History[len(s.History)-keepHistory:]
	}
}

// Elapsed is the call duration as of now.
func (s *State) Elapsed(now time.Time) time.Duration {
	return now.Sub(s.StartTime)
}

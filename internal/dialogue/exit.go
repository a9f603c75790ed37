package dialogue

import (
	"strings"
	"time"
)

// ExitReason classifies why a call ended. Exactly one reason accompanies
// every natural termination.
type ExitReason string

const (
	ReasonNone               ExitReason = ""
	ReasonUserExit           ExitReason = "user_exit"
	ReasonAIExit             ExitReason = "ai_exit"
	ReasonNoResponse         ExitReason = "no_response"
	ReasonFailedInteractions ExitReason = "failed_interactions"
	ReasonTimeout            ExitReason = "timeout"
	ReasonDisconnected       ExitReason = "disconnected"
	ReasonMaxTurns           ExitReason = "max_turns_reached"
)

// closingPhrases mark an assistant reply as a farewell or a handoff.
var closingPhrases = []string{
	"thank you for calling",
	"transfer you",
	"goodbye",
}

// ExitPolicy evaluates the termination conditions after each turn.
type ExitPolicy struct {
	Exit                  PhraseMatcher
	MaxNoResponse         int
	MaxFailedInteractions int
	MaxCallDuration       time.Duration
	MaxTurns              int
}

// NewExitPolicy builds the policy from engine settings.
func NewExitPolicy(s Settings) *ExitPolicy {
	return &ExitPolicy{
		Exit:                  NewSubstringMatcher(s.ExitPhrases),
		MaxNoResponse:         s.MaxNoResponse,
		MaxFailedInteractions: s.MaxFailedInteractions,
		MaxCallDuration:       s.MaxCallDuration,
		MaxTurns:              s.MaxTurns,
	}
}

// Check is the snapshot of one completed turn.
type Check struct {
	Connected          bool
	Transcript         string
	Reply              string
	NoResponseCount    int
	FailedInteractions int
	TurnsCompleted     int
	Elapsed            time.Duration
}

// Evaluate returns the exit reason for the turn, or ReasonNone when the
// conversation continues. Disconnection always wins. On a silent turn
// only the failure counters apply; on a spoken turn only the phrase
// checks apply, caller intent before assistant farewell. Duration is
// checked before the turn cap, so a call that exceeds both limits on
// the same turn reports timeout.
func (p *ExitPolicy) Evaluate(c Check) ExitReason {
	if !c.Connected {
		return ReasonDisconnected
	}

	if c.Transcript == "" {
		if c.NoResponseCount >= p.MaxNoResponse {
			return ReasonNoResponse
		}
		if c.FailedInteractions >= p.MaxFailedInteractions {
			return ReasonFailedInteractions
		}
	} else {
		if p.Exit.Matches(c.Transcript) {
			return ReasonUserExit
		}
		if replyCloses(c.Reply) {
			return ReasonAIExit
		}
	}

	if c.Elapsed > p.MaxCallDuration {
		return ReasonTimeout
	}
	if c.TurnsCompleted >= p.MaxTurns {
		return ReasonMaxTurns
	}
	return ReasonNone
}

func replyCloses(reply string) bool {
	reply = strings.ToLower(reply)
	for _, p := range closingPhrases {
		if strings.Contains(reply, p) {
			return true
		}
	}
	return false
}

package dialogue

import "time"

// Settings carries every tunable of the conversation engine. Values are
// wired from the daemon configuration at startup; DefaultSettings holds
// the shipped defaults and is what the tests build on.
type Settings struct {
	MaxTurns              int
	MaxCallDuration       time.Duration
	InputTimeout          time.Duration
	RetryTimeout          time.Duration
	BargeWindow           time.Duration
	MaxFailedInteractions int
	MaxNoResponse         int

	// Size gates separating genuine speech from silence padding.
	BargeMinBytes int64
	TurnMinBytes  int64

	// SpoolDir holds transient recording files. FallbackPrompt is a
	// pre-recorded prompt name played when synthesis is unavailable.
	SpoolDir       string
	FallbackPrompt string

	ExitPhrases   []string
	UrgentPhrases []string

	// Canned reply texts. All are spoken through the normal synthesis
	// path so they carry voice profiles like generated replies.
	Greeting        string
	Farewell        string
	Escalation      string
	NoResponseReply string
	TroubleReply    string
	RepeatPrompt    string

	// TurnPause separates turns; HangupPause lets the final prompt
	// drain before the channel is torn down. Tests zero them.
	TurnPause   time.Duration
	HangupPause time.Duration
}

// DefaultSettings returns the engine defaults.
func DefaultSettings() Settings {
	return Settings{
		MaxTurns:              50,
		MaxCallDuration:       900 * time.Second,
		InputTimeout:          12 * time.Second,
		RetryTimeout:          8 * time.Second,
		BargeWindow:           3 * time.Second,
		MaxFailedInteractions: 3,
		MaxNoResponse:         2,
		BargeMinBytes:         400,
		TurnMinBytes:          800,
		SpoolDir:              "/var/spool/asterisk/monitor",
		FallbackPrompt:        "demo-thanks",
		ExitPhrases: []string{
			"goodbye", "good bye", "bye", "bye bye",
			"that's all", "that is all", "nothing else",
			"you've helped me", "problem solved", "all set",
			"transfer me", "human agent", "speak to someone",
			"i'm done", "we're done", "finished",
		},
		UrgentPhrases: []string{"emergency", "urgent", "critical"},
		Greeting:        "Hello, thank you for calling support. I'm Alexis. How can I help you today?",
		Farewell:        "Thank you for calling. Have a great day!",
		Escalation:      "I understand this is urgent. Let me transfer you to our emergency line right away.",
		NoResponseReply: "I haven't heard from you, so I'll end the call. Thank you for calling, goodbye!",
		TroubleReply:    "I'm having trouble hearing you. Please call back when you have a better connection. Goodbye!",
		RepeatPrompt:    "I didn't catch that. Could you please repeat?",
		TurnPause:       time.Second,
		HangupPause:     time.Second,
	}
}

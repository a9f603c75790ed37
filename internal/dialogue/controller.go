package dialogue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/voicegate/voicegate/internal/media"
	"github.com/voicegate/voicegate/internal/speech"
)

// Controller drives one call from answer to hangup: greeting, the
// turn loop, and exit evaluation. One controller exists per call and
// is discarded when the call ends.
type Controller struct {
	session   CallSession
	tts       Synthesizer
	conv      Converter
	gen       Responder
	speaker   *Speaker
	collector *Collector
	voices    *VoiceSelector
	policy    *ExitPolicy
	urgent    PhraseMatcher
	exit      PhraseMatcher
	settings  Settings
	logger    *slog.Logger
}

// NewController wires a controller for one call. All collaborators are
// injected; the speaker, collector, and exit policy are derived from
// the same settings so their thresholds agree.
func NewController(session CallSession, asr Transcriber, tts Synthesizer, conv Converter, gen Responder, s Settings, logger *slog.Logger) *Controller {
	return &Controller{
		session:   session,
		tts:       tts,
		conv:      conv,
		gen:       gen,
		speaker:   NewSpeaker(session, asr, s, logger),
		collector: NewCollector(session, asr, s, logger),
		voices:    NewVoiceSelector(DefaultVoiceRules()),
		policy:    NewExitPolicy(s),
		urgent:    NewSubstringMatcher(s.UrgentPhrases),
		exit:      NewSubstringMatcher(s.ExitPhrases),
		settings:  s,
		logger:    logger.With("component", "controller"),
	}
}

// Summary is the record of a finished call, consumed by the call log
// and metrics.
type Summary struct {
	CallerID   string
	Channel    string
	UniqueID   string
	StartedAt  time.Time
	EndedAt    time.Time
	Turns      int
	Interrupts int
	ExitReason ExitReason
	Error      string
}

// Run conducts the whole call and returns its summary. A panic in any
// collaborator is contained to this call: the channel is answered if
// needed, an apology prompt is played, and the call is hung up.
func (c *Controller) Run(ctx context.Context) (summary Summary) {
	state := NewState(time.Now())
	env := c.session.Env()
	summary = Summary{
		CallerID:  env.Get("agi_callerid", "unknown"),
		Channel:   env.Get("agi_channel", ""),
		UniqueID:  env.Get("agi_uniqueid", ""),
		StartedAt: state.StartTime,
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("call handler panicked", "panic", r)
			summary.Error = fmt.Sprintf("%v", r)
			c.abort()
		}
		summary.EndedAt = time.Now()
		summary.Turns = state.Turn
		summary.Interrupts = state.Interrupts
	}()

	c.logger.Info("call started", "caller", summary.CallerID, "channel", summary.Channel)

	if !c.session.Answer() {
		summary.ExitReason = ReasonDisconnected
		return summary
	}
	c.session.Verbose("voicegate: call answered")

	// Speech over the greeting is answered in the log only; the first
	// turn still listens fresh.
	if interrupt := c.deliver(ctx, c.settings.Greeting, speech.ProfileGreeting, state); interrupt != "" && interrupt != VoiceDetected {
		reply := c.gen.Generate(ctx, interrupt, state.History)
		state.Append(interrupt, reply)
		c.logger.Info("greeting interrupted", "transcript", interrupt, "reply", reply)
	}

	summary.ExitReason = c.loop(ctx, state)

	c.logger.Info("call ended",
		"reason", string(summary.ExitReason),
		"turns", state.Turn,
		"interrupts", state.Interrupts)

	if c.session.Connected() {
		// Let the final prompt drain before tearing the channel down.
		time.Sleep(c.settings.HangupPause)
	}
	c.session.Hangup()
	return summary
}

// loop runs the conversation turns. pending carries speech captured
// while the previous reply was playing, which becomes the next turn's
// input without waiting for the caller again.
func (c *Controller) loop(ctx context.Context, state *State) ExitReason {
	pending := ""
	for state.Turn < c.settings.MaxTurns {
		transcript := pending
		pending = ""
		if transcript == "" {
			transcript = c.collector.Collect(ctx, c.settings.InputTimeout)
		}
		if !c.session.Connected() {
			return ReasonDisconnected
		}

		state.Observe(transcript)
		state.Turn++

		reply := c.replyFor(ctx, transcript, state)
		if transcript != "" {
			state.Append(transcript, reply)
		}

		reason := c.policy.Evaluate(Check{
			Connected:          true,
			Transcript:         transcript,
			Reply:              reply,
			NoResponseCount:    state.NoResponseCount,
			FailedInteractions: state.FailedInteractions,
			TurnsCompleted:     state.Turn,
			Elapsed:            state.Elapsed(time.Now()),
		})

		pending = c.deliver(ctx, reply, c.voices.Select(reply), state)
		if pending == VoiceDetected {
			// Heard the caller but could not make out words: give them
			// a short window to restate before moving on.
			pending = c.collector.Collect(ctx, c.settings.RetryTimeout)
		}
		if !c.session.Connected() {
			return ReasonDisconnected
		}
		if reason != ReasonNone {
			return reason
		}
		if pending == "" {
			time.Sleep(c.settings.TurnPause)
		}
	}
	return ReasonMaxTurns
}

// replyFor chooses the reply text for one collected transcript. Silent
// turns get canned prompts keyed off the failure counters; exit and
// urgent phrases short-circuit generation, with a caller asking to end
// outranking an urgency keyword in the same utterance.
func (c *Controller) replyFor(ctx context.Context, transcript string, state *State) string {
	if transcript == "" {
		switch {
		case state.NoResponseCount >= c.settings.MaxNoResponse:
			return c.settings.NoResponseReply
		case state.FailedInteractions >= c.settings.MaxFailedInteractions:
			return c.settings.TroubleReply
		default:
			return c.settings.RepeatPrompt
		}
	}
	if c.exit.Matches(transcript) {
		return c.settings.Farewell
	}
	if c.urgent.Matches(transcript) {
		return c.settings.Escalation
	}
	return c.gen.Generate(ctx, transcript, state.History)
}

// deliver speaks text with the given voice, watching for barge-in. It
// returns the transcript of any interrupting speech, VoiceDetected when
// the caller spoke but no words could be made out, or "" when the
// prompt played to completion.
func (c *Controller) deliver(ctx context.Context, text string, profile speech.VoiceProfile, state *State) string {
	ttsPath, err := c.tts.Synthesize(ctx, text, profile)
	if err != nil {
		c.logger.Warn("synthesis failed, playing fallback prompt", "error", err)
		c.session.StreamFile(c.settings.FallbackPrompt)
		return ""
	}

	promptName, err := c.conv.ConvertForPlayback(ctx, ttsPath)
	media.RemoveQuiet(ttsPath, c.logger)
	if err != nil {
		c.logger.Warn("conversion failed, playing fallback prompt", "error", err)
		c.session.StreamFile(c.settings.FallbackPrompt)
		return ""
	}

	completed, interrupt := c.speaker.PlayWithInterrupt(ctx, promptName)
	if completed {
		return ""
	}
	state.Interrupts++
	return interrupt
}

// abort is the panic path: make sure the caller is not left on a dead
// channel without any closure.
func (c *Controller) abort() {
	if !c.session.Connected() {
		return
	}
	if !c.session.Answered() {
		c.session.Answer()
	}
	c.session.Verbose("voicegate: internal error, ending call")
	c.session.StreamFile(c.settings.FallbackPrompt)
	c.session.Hangup()
}

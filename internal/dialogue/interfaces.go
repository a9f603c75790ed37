// Package dialogue implements the per-call conversation engine: the
// turn loop, barge-in delivery, input collection, and exit policy.
package dialogue

import (
	"context"
	"time"

	"github.com/voicegate/voicegate/internal/agi"
	"github.com/voicegate/voicegate/internal/llm"
	"github.com/voicegate/voicegate/internal/speech"
)

// CallSession is the slice of the AGI session the dialogue engine needs.
// One implementation exists per call; it is never shared.
type CallSession interface {
	Env() agi.Environment
	Connected() bool
	Answered() bool
	Answer() bool
	Hangup()
	Verbose(msg string) string
	StreamFile(name string) bool
	PlayBackground(name string) string
	StopPlayback() string
	RecordFile(path string, maxDur time.Duration, silenceSecs int) bool
}

// Transcriber converts a captured audio clip into text. An empty result
// means no usable speech; transcription never fails loudly.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) string
}

// Synthesizer renders reply text into an audio file with the given
// voice profile.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, profile speech.VoiceProfile) (string, error)
}

// Converter transforms synthesizer output into a playable prompt name.
type Converter interface {
	ConvertForPlayback(ctx context.Context, inputPath string) (string, error)
}

// Responder generates the next conversational reply. It always returns
// non-empty speakable text.
type Responder interface {
	Generate(ctx context.Context, prompt string, history []llm.Exchange) string
}

package dialogue

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/voicegate/voicegate/internal/media"
)

// VoiceDetected is returned by PlayWithInterrupt when the caller spoke
// over the prompt but the captured audio did not decode to usable text.
// The caller of the speaker should re-listen instead of guessing.
const VoiceDetected = "VOICE_DETECTED"

// Speaker plays prompts while watching for the caller to talk over
// them. Playback runs in the channel background and is raced against a
// short recording window; captured audio above the size gate means the
// caller spoke.
type Speaker struct {
	session  CallSession
	asr      Transcriber
	spoolDir string
	window   time.Duration
	minBytes int64
	logger   *slog.Logger
}

// NewSpeaker builds a speaker over the given session and transcriber.
func NewSpeaker(session CallSession, asr Transcriber, s Settings, logger *slog.Logger) *Speaker {
	return &Speaker{
		session:  session,
		asr:      asr,
		spoolDir: s.SpoolDir,
		window:   s.BargeWindow,
		minBytes: s.BargeMinBytes,
		logger:   logger.With("component", "speaker"),
	}
}

// PlayWithInterrupt plays the named prompt and listens for caller
// speech at the same time. It returns (true, "") when playback finished
// uninterrupted, (false, transcript) when the caller said something
// decodable, and (false, VoiceDetected) when speech was heard but not
// understood. The capture file never survives the call, whichever path
// is taken.
func (sp *Speaker) PlayWithInterrupt(ctx context.Context, promptName string) (bool, string) {
	sp.session.PlayBackground(promptName)

	scratch := media.ScratchName(sp.spoolDir, "voice")
	wav := scratch + ".wav"
	defer media.RemoveQuiet(wav, sp.logger)

	sp.session.RecordFile(scratch, sp.window, 1)

	info, err := os.Stat(wav)
	if err != nil || info.Size() < sp.minBytes {
		// Silence for the whole window: playback ran to completion.
		return true, ""
	}

	sp.session.StopPlayback()
	sp.logger.Info("caller interrupted playback", "bytes", info.Size())

	transcript := strings.TrimSpace(sp.asr.Transcribe(ctx, wav))
	if len(transcript) > 1 {
		return false, transcript
	}
	return false, VoiceDetected
}

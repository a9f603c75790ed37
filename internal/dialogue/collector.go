package dialogue

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/voicegate/voicegate/internal/media"
)

// Collector records one bounded utterance from the caller and turns it
// into text. Recordings below the size gate are treated as silence and
// never reach the transcriber.
type Collector struct {
	session  CallSession
	asr      Transcriber
	spoolDir string
	minBytes int64
	logger   *slog.Logger
}

// NewCollector builds a collector over the given session and transcriber.
func NewCollector(session CallSession, asr Transcriber, s Settings, logger *slog.Logger) *Collector {
	return &Collector{
		session:  session,
		asr:      asr,
		spoolDir: s.SpoolDir,
		minBytes: s.TurnMinBytes,
		logger:   logger.With("component", "collector"),
	}
}

// Collect waits up to timeout for the caller to speak and returns the
// trimmed transcript, or "" for silence, sub-gate audio, transcription
// failure, or disconnection. The scratch recording is removed on every
// path before Collect returns.
func (c *Collector) Collect(ctx context.Context, timeout time.Duration) string {
	scratch := media.ScratchName(c.spoolDir, "user")
	wav := scratch + ".wav"
	defer media.RemoveQuiet(wav, c.logger)

	c.session.RecordFile(scratch, timeout, 2)
	if !c.session.Connected() {
		return ""
	}

	info, err := os.Stat(wav)
	if err != nil || info.Size() < c.minBytes {
		return ""
	}

	transcript := strings.TrimSpace(c.asr.Transcribe(ctx, wav))
	if transcript != "" {
		c.logger.Info("caller said", "transcript", transcript)
	}
	return transcript
}

package dialogue

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/voicegate/voicegate/internal/agi"
	"github.com/voicegate/voicegate/internal/llm"
	"github.com/voicegate/voicegate/internal/speech"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// recordStep scripts one RECORD FILE exchange: how many bytes of audio
// land on disk, and whether the caller hangs up mid-recording.
type recordStep struct {
	bytes  int
	hangup bool
}

// mockSession scripts the channel side of a call. Barge-in windows
// (silence=1) and turn collection (silence=2) consume separate scripts
// so tests can interleave them independently. An exhausted script
// plays as silence.
type mockSession struct {
	t   *testing.T
	env agi.Environment

	connected bool
	answered  bool
	answerOK  bool

	barge       []recordStep
	collect     []recordStep
	bargeIdx    int
	collectIdx  int
	collectDurs []time.Duration

	played     []string
	streamed   []string
	verbose    []string
	stopCount  int
	hangupSent int
}

func newMockSession(t *testing.T) *mockSession {
	return &mockSession{
		t: t,
		env: agi.Environment{
			"agi_callerid": "15550100",
			"agi_channel":  "PJSIP/15550100-00000001",
			"agi_uniqueid": "1724500000.17",
		},
		connected: true,
		answerOK:  true,
	}
}

func (m *mockSession) Env() agi.Environment { return m.env }
func (m *mockSession) Connected() bool      { return m.connected }
func (m *mockSession) Answered() bool       { return m.answered }

func (m *mockSession) Answer() bool {
	if m.answerOK {
		m.answered = true
	}
	return m.answerOK
}

func (m *mockSession) Hangup() {
	if m.connected {
		m.hangupSent++
		m.connected = false
	}
}

func (m *mockSession) Verbose(msg string) string {
	m.verbose = append(m.verbose, msg)
	return "200 result=1"
}

func (m *mockSession) StreamFile(name string) bool {
	m.streamed = append(m.streamed, name)
	return m.connected
}

func (m *mockSession) PlayBackground(name string) string {
	m.played = append(m.played, name)
	return "200 result=0"
}

func (m *mockSession) StopPlayback() string {
	m.stopCount++
	return "200 result=0"
}

func (m *mockSession) RecordFile(path string, maxDur time.Duration, silenceSecs int) bool {
	var step recordStep
	if silenceSecs == 1 {
		if m.bargeIdx < len(m.barge) {
			step = m.barge[m.bargeIdx]
		}
		m.bargeIdx++
	} else {
		if m.collectIdx < len(m.collect) {
			step = m.collect[m.collectIdx]
		}
		m.collectIdx++
		m.collectDurs = append(m.collectDurs, maxDur)
	}

	if step.hangup {
		m.connected = false
		return false
	}
	if step.bytes > 0 {
		if err := os.WriteFile(path+".wav", bytes.Repeat([]byte("a"), step.bytes), 0o644); err != nil {
			m.t.Fatalf("writing scripted recording: %v", err)
		}
	}
	return true
}

// mockASR hands out scripted transcripts in order and remembers which
// files it was asked to decode.
type mockASR struct {
	replies []string
	idx     int
	paths   []string
}

func (a *mockASR) Transcribe(_ context.Context, audioPath string) string {
	a.paths = append(a.paths, audioPath)
	if a.idx >= len(a.replies) {
		return ""
	}
	r := a.replies[a.idx]
	a.idx++
	return r
}

// mockTTS writes a real file per request so cleanup paths execute.
type mockTTS struct {
	t        *testing.T
	dir      string
	err      error
	texts    []string
	profiles []speech.VoiceProfile
}

func (s *mockTTS) Synthesize(_ context.Context, text string, profile speech.VoiceProfile) (string, error) {
	s.texts = append(s.texts, text)
	s.profiles = append(s.profiles, profile)
	if s.err != nil {
		return "", s.err
	}
	f, err := os.CreateTemp(s.dir, "tts_*.wav")
	if err != nil {
		s.t.Fatalf("creating synthesis output: %v", err)
	}
	f.WriteString("RIFFaudio")
	f.Close()
	return f.Name(), nil
}

type mockConverter struct {
	err   error
	calls int
}

func (c *mockConverter) ConvertForPlayback(_ context.Context, inputPath string) (string, error) {
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	return "tts_prompt", nil
}

// mockGen returns scripted replies, or panics when told to.
type mockGen struct {
	replies   []string
	idx       int
	prompts   []string
	histories [][]llm.Exchange
	panicWith any
}

func (g *mockGen) Generate(_ context.Context, prompt string, history []llm.Exchange) string {
	if g.panicWith != nil {
		panic(g.panicWith)
	}
	g.prompts = append(g.prompts, prompt)
	g.histories = append(g.histories, append([]llm.Exchange(nil), history...))
	if g.idx >= len(g.replies) {
		return "Understood. Anything else I can help with?"
	}
	r := g.replies[g.idx]
	g.idx++
	return r
}

// testSettings returns defaults adjusted for fast, filesystem-local tests.
func testSettings(t *testing.T) Settings {
	s := DefaultSettings()
	s.SpoolDir = t.TempDir()
	s.TurnPause = 0
	s.HangupPause = 0
	return s
}

// spoolEntries lists what is left in the spool directory.
func spoolEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading spool dir: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

package agi

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestSession builds a Session whose reads come from input and whose
// writes are captured in the returned buffer.
func newTestSession(input string) (*Session, *bytes.Buffer) {
	out := &bytes.Buffer{}
	rw := struct {
		io.Reader
		io.Writer
	}{strings.NewReader(input), out}
	return NewSession(rw, testLogger()), out
}

func TestInitializeParsesEnvironment(t *testing.T) {
	input := "agi_callerid:15551234567\n" +
		"agi_channel: SIP/100-00000001 \n" +
		"malformed line without separator\n" +
		"agi_uniqueid:1724500000.42\n" +
		"\n" +
		"200 result=0\n"

	s, _ := newTestSession(input)
	if err := s.Initialize(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := s.Env().Get("agi_callerid", ""); got != "15551234567" {
		t.Errorf("agi_callerid = %q, want 15551234567", got)
	}
	if got := s.Env().Get("agi_channel", ""); got != "SIP/100-00000001" {
		t.Errorf("agi_channel = %q, want trimmed channel", got)
	}
	if got := s.Env().Get("agi_missing", "fallback"); got != "fallback" {
		t.Errorf("default fallback = %q, want fallback", got)
	}
	if !s.Connected() {
		t.Error("session should be connected after initialize")
	}
}

func TestInitializeEmptyInput(t *testing.T) {
	s, _ := newTestSession("")
	if err := s.Initialize(); err == nil {
		t.Fatal("expected error for empty environment input")
	}
	if s.Connected() {
		t.Error("session should be disconnected after failed initialize")
	}
}

func TestCommandWritesLineAndReadsResponse(t *testing.T) {
	s, out := newTestSession("200 result=0\n")

	result := s.Command("ANSWER")
	if result != "200 result=0" {
		t.Errorf("result = %q, want 200 result=0", result)
	}
	if got := out.String(); got != "ANSWER\n" {
		t.Errorf("wrote %q, want ANSWER\\n", got)
	}
	if !s.Connected() {
		t.Error("session should stay connected on success response")
	}
}

func TestCommandDetectsHangupResult(t *testing.T) {
	s, _ := newTestSession("200 result=-1\n")

	s.Command("STREAM FILE prompt \"\"")
	if s.Connected() {
		t.Error("result=-1 should disconnect the session")
	}
}

func TestCommandDetectsHangupMarker(t *testing.T) {
	s, _ := newTestSession("HANGUP\n")

	s.Command("ANSWER")
	if s.Connected() {
		t.Error("hangup marker should disconnect the session")
	}
}

func TestCommandIOFailureReturnsSentinel(t *testing.T) {
	// No response available: read hits EOF immediately.
	s, _ := newTestSession("")

	result := s.Command("ANSWER")
	if result != errResponse {
		t.Errorf("result = %q, want %q", result, errResponse)
	}
	if s.Connected() {
		t.Error("I/O failure should disconnect the session")
	}

	// Subsequent commands keep returning the sentinel without panicking.
	if got := s.Command("HANGUP"); got != errResponse {
		t.Errorf("second result = %q, want %q", got, errResponse)
	}
}

func TestAnswer(t *testing.T) {
	s, _ := newTestSession("200 result=0\n")

	if !s.Answer() {
		t.Fatal("answer should succeed on 200 response")
	}
	if !s.Answered() {
		t.Error("answered flag should be set after successful answer")
	}
}

func TestAnswerFailure(t *testing.T) {
	s, _ := newTestSession("510 Invalid or unknown command\n")

	if s.Answer() {
		t.Fatal("answer should fail on non-200 response")
	}
	if s.Answered() {
		t.Error("answered flag should not be set after failed answer")
	}
}

func TestHangupIsIdempotent(t *testing.T) {
	s, _ := newTestSession("200 result=1\n")

	s.Hangup()
	if s.Connected() {
		t.Error("hangup should disconnect the session")
	}
	// Second hangup hits EOF on the transport but must not panic.
	s.Hangup()
	if s.Connected() {
		t.Error("session must stay disconnected")
	}
}

func TestStreamFileStripsExtension(t *testing.T) {
	s, out := newTestSession("200 result=0\n")

	if !s.StreamFile("tts_1724500000_abcd.wav") {
		t.Fatal("stream file should succeed")
	}
	want := "STREAM FILE tts_1724500000_abcd \"\"\n"
	if got := out.String(); got != want {
		t.Errorf("wrote %q, want %q", got, want)
	}
}

func TestPlayBackgroundStripsExtension(t *testing.T) {
	s, out := newTestSession("200 result=0\n")

	s.PlayBackground("greeting.sln16")
	if got := out.String(); got != "EXEC Background greeting\n" {
		t.Errorf("wrote %q, want EXEC Background greeting\\n", got)
	}
}

func TestRecordFileCommandFormat(t *testing.T) {
	s, out := newTestSession("200 result=0\n")

	ok := s.RecordFile("/var/spool/asterisk/monitor/voice_1_ab", 3*time.Second, 1)
	if !ok {
		t.Fatal("record should succeed on 200 response")
	}
	want := `RECORD FILE /var/spool/asterisk/monitor/voice_1_ab wav "#" 3000 0 s=1` + "\n"
	if got := out.String(); got != want {
		t.Errorf("wrote %q, want %q", got, want)
	}
}

func TestRecordFileHangupDuringRecording(t *testing.T) {
	s, _ := newTestSession("200 result=-1 (hangup) endpos=8000\n")

	ok := s.RecordFile("/tmp/rec", 15*time.Second, 3)
	if ok {
		t.Error("recording interrupted by hangup should report failure")
	}
	if s.Connected() {
		t.Error("hangup during recording should disconnect the session")
	}
}

func TestVerboseQuotesMessage(t *testing.T) {
	s, out := newTestSession("200 result=1\n")

	s.Verbose("VoiceBot Active - Ready")
	if got := out.String(); got != "VERBOSE \"VoiceBot Active - Ready\"\n" {
		t.Errorf("wrote %q", got)
	}
}

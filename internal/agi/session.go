// Package agi implements the line-oriented AGI command protocol spoken
// between the daemon and the call-control system, one session per call.
package agi

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// errResponse is the sentinel returned by Command when the underlying
// transport fails. It never matches a success status prefix.
const errResponse = "ERROR"

// Environment holds the key/value variables supplied by the call-control
// system at session start. Immutable once parsed.
type Environment map[string]string

// Get returns the value for key, or def if the key is absent.
func (e Environment) Get(key, def string) string {
	if v, ok := e[key]; ok {
		return v
	}
	return def
}

// Session wraps one call's AGI conversation. It is owned by a single
// goroutine for the lifetime of the call; methods must not be called
// concurrently.
//
// The connection state machine is one-way: once a hangup is detected or
// any I/O fails, Connected reports false forever.
type Session struct {
	r      *bufio.Reader
	w      *bufio.Writer
	logger *slog.Logger

	env       Environment
	connected bool
	answered  bool
}

// NewSession creates a Session over the given transport. Call Initialize
// before issuing commands.
func NewSession(rw io.ReadWriter, logger *slog.Logger) *Session {
	return &Session{
		r:         bufio.NewReader(rw),
		w:         bufio.NewWriter(rw),
		logger:    logger.With("component", "agi"),
		env:       make(Environment),
		connected: true,
	}
}

// Initialize reads the environment block: one key:value pair per line,
// terminated by a blank line or end of input. Lines without a separator
// are skipped. It does not fail on malformed input.
func (s *Session) Initialize() error {
	count := 0
	for {
		line, err := s.r.ReadString('\n')
		if strings.TrimSpace(line) == "" {
			if err != nil && count == 0 {
				s.connected = false
				return fmt.Errorf("reading agi environment: %w", err)
			}
			break
		}
		if key, value, ok := strings.Cut(line, ":"); ok {
			s.env[strings.TrimSpace(key)] = strings.TrimSpace(value)
			count++
		}
		if err != nil {
			break
		}
	}
	s.logger.Debug("agi environment parsed", "vars", count)
	return nil
}

// Env returns the parsed call environment.
func (s *Session) Env() Environment { return s.env }

// Connected reports whether the remote party is still on the line.
func (s *Session) Connected() bool { return s.connected }

// Answered reports whether the call has been answered.
func (s *Session) Answered() bool { return s.answered }

// Command writes one command line, flushes, and reads exactly one
// response line. A response starting with "200 result=-1" or containing a
// hangup marker flips the session to disconnected. Any I/O failure is
// treated identically to a hangup: the session disconnects and the
// sentinel error response is returned instead of an error.
func (s *Session) Command(cmd string) string {
	if _, err := s.w.WriteString(cmd + "\n"); err != nil {
		return s.fail(err)
	}
	if err := s.w.Flush(); err != nil {
		return s.fail(err)
	}

	line, err := s.r.ReadString('\n')
	result := strings.TrimSpace(line)
	if result == "" && err != nil {
		return s.fail(err)
	}
	s.logger.Debug("agi exchange", "cmd", cmd, "response", result)

	if strings.HasPrefix(result, "200 result=-1") || strings.Contains(strings.ToLower(result), "hangup") {
		s.logger.Info("hangup detected via agi response")
		s.connected = false
	}
	return result
}

func (s *Session) fail(err error) string {
	s.logger.Error("agi command failed", "error", err)
	s.connected = false
	return errResponse
}

// Answer answers the call. Success is a positive-status response.
func (s *Session) Answer() bool {
	result := s.Command("ANSWER")
	ok := strings.HasPrefix(result, "200")
	if ok {
		s.answered = true
		s.logger.Info("call answered")
	}
	return ok
}

// Hangup ends the call. Idempotent; the session is disconnected
// unconditionally.
func (s *Session) Hangup() {
	s.Command("HANGUP")
	s.connected = false
}

// Verbose emits a status message on the call-control system's console.
func (s *Session) Verbose(msg string) string {
	return s.Command(fmt.Sprintf("VERBOSE %q", msg))
}

// StreamFile plays an audio prompt to completion. The extension is
// stripped because the play primitive resolves the format by probing,
// not by being told a suffix.
func (s *Session) StreamFile(name string) bool {
	result := s.Command(fmt.Sprintf(`STREAM FILE %s ""`, stripExtension(name)))
	return strings.HasPrefix(result, "200")
}

// PlayBackground starts playback without blocking the command channel,
// so a recording command can run while audio is still playing.
func (s *Session) PlayBackground(name string) string {
	return s.Command("EXEC Background " + stripExtension(name))
}

// StopPlayback cancels any background playback in progress.
func (s *Session) StopPlayback() string {
	return s.Command("EXEC StopPlayback")
}

// RecordFile records caller audio to path (WAV, caller can terminate with
// '#') for at most maxDur, stopping after silenceSecs of silence. A
// failure result while recording means the caller hung up mid-recording:
// the session disconnects and false is returned.
func (s *Session) RecordFile(path string, maxDur time.Duration, silenceSecs int) bool {
	cmd := fmt.Sprintf(`RECORD FILE %s wav "#" %d 0 s=%d`, path, maxDur.Milliseconds(), silenceSecs)
	result := s.Command(cmd)
	if strings.Contains(result, "result=-1") {
		s.logger.Info("hangup detected during recording")
		s.connected = false
		return false
	}
	return strings.HasPrefix(result, "200")
}

// stripExtension removes a trailing file extension, if any.
func stripExtension(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[:i]
	}
	return name
}

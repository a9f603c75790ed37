package fastagi

import (
	"bufio"
	"context"
	"log/slog"
	"net"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/voicegate/voicegate/internal/agi"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestServerHandlesConnection(t *testing.T) {
	var gotCaller atomic.Value
	handled := make(chan struct{})

	handler := func(ctx context.Context, session *agi.Session) {
		gotCaller.Store(session.Env().Get("agi_callerid", ""))
		session.Hangup()
		close(handled)
	}

	srv := NewServer("127.0.0.1:0", handler, testLogger())
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer srv.Stop(context.Background())

	conn, err := net.Dial("tcp", srv.Addr())
	if err != nil {
		t.Fatalf("dialing server: %v", err)
	}
	defer conn.Close()

	// Asterisk side: send the environment block, then answer commands.
	conn.Write([]byte("agi_request: agi://127.0.0.1\nagi_callerid: 15550100\nagi_uniqueid: 1724500000.17\n\n"))

	r := bufio.NewReader(conn)
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("reading command: %v", err)
	}
	if line != "HANGUP\n" {
		t.Errorf("command = %q, want HANGUP", line)
	}
	conn.Write([]byte("200 result=1\n"))

	select {
	case <-handled:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not run")
	}

	if got := gotCaller.Load(); got != "15550100" {
		t.Errorf("caller id = %v, want 15550100", got)
	}
}

func TestServerStopWaitsForCalls(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})

	handler := func(ctx context.Context, session *agi.Session) {
		close(started)
		<-release
	}

	srv := NewServer("127.0.0.1:0", handler, testLogger())
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	conn, err := net.Dial("tcp", srv.Addr())
	if err != nil {
		t.Fatalf("dialing server: %v", err)
	}
	defer conn.Close()
	conn.Write([]byte("agi_request: agi://127.0.0.1\n\n"))

	<-started
	if got := srv.ActiveCallCount(); got != 1 {
		t.Errorf("ActiveCallCount() = %d, want 1", got)
	}

	// Stop must time out while the call is still in flight.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := srv.Stop(ctx); err == nil {
		t.Error("Stop() should fail while a call is active")
	}

	close(release)
	if err := srv.Stop(context.Background()); err != nil {
		t.Errorf("Stop() after drain error: %v", err)
	}
	if got := srv.ActiveCallCount(); got != 0 {
		t.Errorf("ActiveCallCount() = %d, want 0 after drain", got)
	}
}

func TestServerStopClosesListener(t *testing.T) {
	srv := NewServer("127.0.0.1:0", func(ctx context.Context, s *agi.Session) {}, testLogger())
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	addr := srv.Addr()

	if err := srv.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}

	if _, err := net.DialTimeout("tcp", addr, 100*time.Millisecond); err == nil {
		t.Error("listener should be closed after Stop")
	}
}

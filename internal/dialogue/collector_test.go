package dialogue

import (
	"context"
	"testing"
)

func TestCollectReturnsTrimmedTranscript(t *testing.T) {
	s := testSettings(t)
	sess := newMockSession(t)
	sess.collect = []recordStep{{bytes: 2000}}
	asr := &mockASR{replies: []string{"  my printer is offline  "}}

	c := NewCollector(sess, asr, s, testLogger())
	if got := c.Collect(context.Background(), s.InputTimeout); got != "my printer is offline" {
		t.Errorf("transcript = %q", got)
	}
	if left := spoolEntries(t, s.SpoolDir); len(left) != 0 {
		t.Errorf("scratch files left behind: %v", left)
	}
}

func TestCollectSubGateAudioIsSilence(t *testing.T) {
	s := testSettings(t)
	sess := newMockSession(t)
	sess.collect = []recordStep{{bytes: 500}} // below the 800 byte gate
	asr := &mockASR{replies: []string{"should never be used"}}

	c := NewCollector(sess, asr, s, testLogger())
	if got := c.Collect(context.Background(), s.InputTimeout); got != "" {
		t.Errorf("transcript = %q, want empty for sub-gate audio", got)
	}
	if len(asr.paths) != 0 {
		t.Error("sub-gate audio must never reach transcription")
	}
	if left := spoolEntries(t, s.SpoolDir); len(left) != 0 {
		t.Errorf("scratch files left behind: %v", left)
	}
}

func TestCollectNoAudioIsSilence(t *testing.T) {
	s := testSettings(t)
	sess := newMockSession(t)
	asr := &mockASR{}

	c := NewCollector(sess, asr, s, testLogger())
	if got := c.Collect(context.Background(), s.InputTimeout); got != "" {
		t.Errorf("transcript = %q, want empty when nothing was captured", got)
	}
}

func TestCollectDisconnectReturnsEmpty(t *testing.T) {
	s := testSettings(t)
	sess := newMockSession(t)
	sess.collect = []recordStep{{hangup: true}}
	asr := &mockASR{replies: []string{"should never be used"}}

	c := NewCollector(sess, asr, s, testLogger())
	if got := c.Collect(context.Background(), s.InputTimeout); got != "" {
		t.Errorf("transcript = %q, want empty after disconnect", got)
	}
	if len(asr.paths) != 0 {
		t.Error("transcriber called after disconnect")
	}
	if left := spoolEntries(t, s.SpoolDir); len(left) != 0 {
		t.Errorf("scratch files left behind: %v", left)
	}
}

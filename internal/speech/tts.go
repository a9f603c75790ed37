package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/voicegate/voicegate/internal/media"
)

// VoiceProfile names a set of delivery parameters (rate, pitch) chosen by
// reply content to vary the delivered tone.
type VoiceProfile string

const (
	ProfileDefault    VoiceProfile = "default"
	ProfileEmpathetic VoiceProfile = "empathetic"
	ProfileHelping    VoiceProfile = "helping"
	ProfileTechnical  VoiceProfile = "technical"
	ProfileGreeting   VoiceProfile = "greeting"
)

// prosody holds the SSML delivery parameters for one profile.
type prosody struct {
	rate  string
	pitch string
}

// profileProsody maps each profile to its delivery parameters. Anything
// unknown falls back to the default profile's values.
var profileProsody = map[VoiceProfile]prosody{
	ProfileDefault:    {rate: "92%", pitch: "+0.08"},
	ProfileEmpathetic: {rate: "88%", pitch: "+0.06"},
	ProfileHelping:    {rate: "92%", pitch: "+0.08"},
	ProfileTechnical:  {rate: "94%", pitch: "+0.02"},
	ProfileGreeting:   {rate: "90%", pitch: "+0.12"},
}

// Synthesizer turns response text into a WAV file via the synthesis
// service. The returned file lives in the OS temp directory and belongs
// to the caller, who must remove it after conversion.
type Synthesizer struct {
	httpClient *http.Client
	baseURL    string
	voice      string
	sampleRate int
	logger     *slog.Logger
}

// NewSynthesizer creates a Synthesizer against the given service base URL.
func NewSynthesizer(baseURL string, logger *slog.Logger) *Synthesizer {
	return &Synthesizer{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		voice:      "en-US-female-1",
		sampleRate: 22050,
		logger:     logger.With("component", "tts"),
	}
}

type synthesizeRequest struct {
	Text       string `json:"text"`
	Voice      string `json:"voice"`
	SampleRate int    `json:"sample_rate"`
	SSML       bool   `json:"ssml"`
}

// Synthesize renders text with the given profile's prosody and returns
// the path of the synthesized WAV file.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, profile VoiceProfile) (string, error) {
	payload, err := json.Marshal(synthesizeRequest{
		Text:       ssmlFor(text, profile),
		Voice:      s.voice,
		SampleRate: s.sampleRate,
		SSML:       true,
	})
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/synthesize", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling synthesis service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("synthesis service status %d: %s", resp.StatusCode, string(b))
	}

	outPath := filepath.Join(os.TempDir(), fmt.Sprintf("tts_agi_%s.wav", media.UniqueID()))
	out, err := os.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("creating output file: %w", err)
	}
	n, err := io.Copy(out, resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		media.RemoveQuiet(outPath, s.logger)
		return "", fmt.Errorf("writing synthesized audio: %w", err)
	}
	if n == 0 {
		media.RemoveQuiet(outPath, s.logger)
		return "", fmt.Errorf("synthesis service returned empty audio")
	}

	s.logger.Info("synthesis complete", "profile", string(profile), "bytes", n)
	return outPath, nil
}

// ssmlFor wraps text in a prosody element for the given profile.
// XML special characters are escaped to keep caller-derived text from
// breaking the document.
func ssmlFor(text string, profile VoiceProfile) string {
	p, ok := profileProsody[profile]
	if !ok {
		p = profileProsody[ProfileDefault]
	}
	return fmt.Sprintf(
		`<speak><prosody rate="%s" pitch="%s" volume="medium">%s</prosody></speak>`,
		p.rate, p.pitch, html.EscapeString(text),
	)
}

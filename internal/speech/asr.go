// Package speech holds the HTTP clients for the transcription and
// synthesis collaborator services.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Transcriber converts a recorded audio clip into text by uploading it to
// the transcription service. An empty result means no usable speech; the
// caller never sees an error (spoken input that cannot be decoded is
// handled as silence, not as a fault).
type Transcriber struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewTranscriber creates a Transcriber against the given service base URL.
func NewTranscriber(baseURL string, logger *slog.Logger) *Transcriber {
	return &Transcriber{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger.With("component", "asr"),
	}
}

type transcribeResponse struct {
	Transcript string `json:"transcript"`
}

// Transcribe uploads the audio file and returns the trimmed transcript,
// or "" when the service fails or hears nothing.
func (t *Transcriber) Transcribe(ctx context.Context, audioPath string) string {
	transcript, err := t.transcribe(ctx, audioPath)
	if err != nil {
		t.logger.Error("transcription failed", "path", audioPath, "error", err)
		return ""
	}
	return strings.TrimSpace(transcript)
}

func (t *Transcriber) transcribe(ctx context.Context, audioPath string) (string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("opening audio: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("audio", filepath.Base(audioPath))
	if err != nil {
		return "", fmt.Errorf("building multipart form: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("copying audio into form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("closing multipart form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/v1/transcribe", &body)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling transcription service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("transcription service status %d: %s", resp.StatusCode, string(b))
	}

	var tr transcribeResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	return tr.Transcript, nil
}

// Package llm implements the response generator client against an
// Ollama-compatible completion endpoint.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// apologyReply is returned whenever the generator itself fails, so the
// caller always receives non-empty speakable text.
const apologyReply = "I'm having technical difficulties. How else can I help?"

// repeatReply is returned when the model produces nothing usable.
const repeatReply = "I'm sorry, could you please repeat that?"

const persona = `You are Alexis, a helpful customer support assistant.

You are helping a customer with their technical question. Listen to what they say and help them solve their specific problem. Keep responses short and conversational.

You already introduced yourself.
`

// historyWindow is how many recent exchanges are included in the prompt.
const historyWindow = 3

// Exchange is one completed (caller, assistant) turn.
type Exchange struct {
	User      string
	Assistant string
}

// Client generates conversational replies. It is stateless: conversation
// history belongs to the call and is passed in per request, so one client
// instance can serve every concurrent call.
type Client struct {
	httpClient *http.Client
	baseURL    string
	model      string
	logger     *slog.Logger
}

// NewClient creates a generator client for the given base URL and model.
func NewClient(baseURL, model string, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		logger:     logger.With("component", "llm"),
	}
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	NumPredict    int      `json:"num_predict"`
	Temperature   float64  `json:"temperature"`
	TopP          float64  `json:"top_p"`
	RepeatPenalty float64  `json:"repeat_penalty"`
	Stop          []string `json:"stop"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Generate produces a reply to prompt given the call's recent history.
// It always returns non-empty text: generator failures surface as a
// spoken apology, never as an error.
func (c *Client) Generate(ctx context.Context, prompt string, history []Exchange) string {
	reply, err := c.generate(ctx, prompt, history)
	if err != nil {
		c.logger.Error("generation failed", "error", err)
		return apologyReply
	}
	c.logger.Info("reply generated", "reply", truncate(reply, 50))
	return reply
}

func (c *Client) generate(ctx context.Context, prompt string, history []Exchange) (string, error) {
	payload, err := json.Marshal(generateRequest{
		Model:  c.model,
		Prompt: buildPrompt(prompt, history),
		Stream: false,
		Options: generateOptions{
			NumPredict:    50,
			Temperature:   0.4,
			TopP:          0.9,
			RepeatPenalty: 1.1,
			Stop:          []string{"\nHuman:", "\nUser:", "Human:", "User:"},
		},
	})
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling generator: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("generator status %d: %s", resp.StatusCode, string(b))
	}

	var gr generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	return cleanReply(gr.Response), nil
}

// buildPrompt assembles the persona preamble, the recent conversation
// window, and the latest caller utterance.
func buildPrompt(prompt string, history []Exchange) string {
	var b strings.Builder
	b.WriteString(persona)

	if len(history) > 0 {
		b.WriteString("\nRecent conversation:\n")
		start := len(history) - historyWindow
		if start < 0 {
			start = 0
		}
		for _, e := range history[start:] {
			fmt.Fprintf(&b, "Human: %s\nAssistant: %s\n", e.User, e.Assistant)
		}
	}

	fmt.Fprintf(&b, "\nHuman: %s\nAssistant:", prompt)
	return b.String()
}

// cleanReply strips role-label artifacts the model sometimes emits and
// keeps the first substantive line. Empty results become a request to
// repeat, so the reply is always speakable.
func cleanReply(text string) string {
	for _, artifact := range []string{
		"Some possible responses are:",
		"Assistant:", "Human:", "You:", "Customer:",
	} {
		text = strings.ReplaceAll(text, artifact, "")
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return repeatReply
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) > 10 && !strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "*") {
			return line
		}
	}
	return text
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

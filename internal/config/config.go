package config

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the VoiceGate daemon.
// Precedence: CLI flags > env vars > defaults.
type Config struct {
	AGIPort   int    // TCP port for FastAGI connections from the call-control system
	HTTPPort  int    // operations API / metrics port
	DataDir   string // call log database directory
	SoundsDir string // directory the call-control system resolves playback names against
	SpoolDir  string // directory for short-lived recording scratch files
	LogLevel  string
	LogFormat string // "text" or "json"

	// Collaborator service endpoints.
	ASRURL   string // transcription service base URL
	TTSURL   string // synthesis service base URL
	LLMURL   string // response generator base URL (Ollama-compatible)
	LLMModel string

	// Conversation bounds and thresholds.
	MaxTurns              int
	MaxCallSeconds        int
	InputTimeoutSeconds   int // normal listening window per turn
	RetryTimeoutSeconds   int // shorter follow-up listen after an undecodable interrupt
	MaxFailedInteractions int
	MaxNoResponse         int
	BargeWindowMillis     int // recording window raced against background playback
	BargeMinBytes         int // minimum capture size to count as speech during playback
	TurnMinBytes          int // minimum capture size to count as speech in a normal turn
	FallbackPrompt        string

	// Comma-separated phrase lists for intent classification.
	ExitPhrases   string
	UrgentPhrases string
}

// defaults
const (
	defaultAGIPort        = 4573
	defaultHTTPPort       = 8081
	defaultDataDir        = "./data"
	defaultSoundsDir      = "/usr/share/asterisk/sounds"
	defaultSpoolDir       = "/var/spool/asterisk/monitor"
	defaultLogLevel       = "info"
	defaultLogFormat      = "text"
	defaultASRURL         = "http://localhost:9000"
	defaultTTSURL         = "http://localhost:9010"
	defaultLLMURL         = "http://localhost:11434"
	defaultLLMModel       = "orca2:7b"
	defaultMaxTurns       = 50
	defaultMaxCallSeconds = 900
	defaultInputTimeout   = 12
	defaultRetryTimeout   = 8
	defaultMaxFailed      = 3
	defaultMaxNoResponse  = 2
	defaultBargeWindow    = 3000
	defaultBargeMinBytes  = 400
	defaultTurnMinBytes   = 800
	defaultFallbackPrompt = "demo-thanks"
)

const defaultExitPhrases = "goodbye,good bye,bye,bye bye,that's all,that is all,nothing else," +
	"you've helped me,problem solved,all set,transfer me,human agent,speak to someone," +
	"i'm done,we're done,finished"

const defaultUrgentPhrases = "emergency,urgent,critical"

// envPrefix is the prefix for all VoiceGate environment variables.
const envPrefix = "VOICEGATE_"

// Load parses configuration from CLI flags and environment variables.
// A .env file in the working directory is read first so collaborator URLs
// can be kept out of service unit files; a missing .env is not an error.
// Precedence: CLI flags > env vars > defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	fs := flag.NewFlagSet("voicegate", flag.ContinueOnError)

	fs.IntVar(&cfg.AGIPort, "agi-port", defaultAGIPort, "FastAGI TCP listen port")
	fs.IntVar(&cfg.HTTPPort, "http-port", defaultHTTPPort, "operations API listen port")
	fs.StringVar(&cfg.DataDir, "data-dir", defaultDataDir, "directory for the call log database")
	fs.StringVar(&cfg.SoundsDir, "sounds-dir", defaultSoundsDir, "directory for playable audio files")
	fs.StringVar(&cfg.SpoolDir, "spool-dir", defaultSpoolDir, "directory for recording scratch files")
	fs.StringVar(&cfg.LogLevel, "log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "log-format", defaultLogFormat, "log output format (text, json)")
	fs.StringVar(&cfg.ASRURL, "asr-url", defaultASRURL, "transcription service base URL")
	fs.StringVar(&cfg.TTSURL, "tts-url", defaultTTSURL, "synthesis service base URL")
	fs.StringVar(&cfg.LLMURL, "llm-url", defaultLLMURL, "response generator base URL")
	fs.StringVar(&cfg.LLMModel, "llm-model", defaultLLMModel, "response generator model name")
	fs.IntVar(&cfg.MaxTurns, "max-turns", defaultMaxTurns, "maximum conversation turns per call")
	fs.IntVar(&cfg.MaxCallSeconds, "max-call-seconds", defaultMaxCallSeconds, "maximum call duration in seconds")
	fs.IntVar(&cfg.InputTimeoutSeconds, "input-timeout", defaultInputTimeout, "per-turn listening window in seconds")
	fs.IntVar(&cfg.RetryTimeoutSeconds, "retry-timeout", defaultRetryTimeout, "follow-up listening window in seconds after an undecodable interrupt")
	fs.IntVar(&cfg.MaxFailedInteractions, "max-failed-interactions", defaultMaxFailed, "consecutive failed turns before escalating to a human")
	fs.IntVar(&cfg.MaxNoResponse, "max-no-response", defaultMaxNoResponse, "consecutive silent turns before ending the call")
	fs.IntVar(&cfg.BargeWindowMillis, "barge-window-ms", defaultBargeWindow, "interrupt detection window during playback in milliseconds")
	fs.IntVar(&cfg.BargeMinBytes, "barge-min-bytes", defaultBargeMinBytes, "minimum capture size to count as speech during playback")
	fs.IntVar(&cfg.TurnMinBytes, "turn-min-bytes", defaultTurnMinBytes, "minimum capture size to count as speech in a normal turn")
	fs.StringVar(&cfg.FallbackPrompt, "fallback-prompt", defaultFallbackPrompt, "pre-recorded prompt name played when synthesis fails")
	fs.StringVar(&cfg.ExitPhrases, "exit-phrases", defaultExitPhrases, "comma-separated caller phrases that end the call")
	fs.StringVar(&cfg.UrgentPhrases, "urgent-phrases", defaultUrgentPhrases, "comma-separated caller phrases that trigger escalation")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	// Apply env var overrides for any flags not explicitly set on the
	// command line. CLI flags take precedence over env vars.
	applyEnvOverrides(fs, cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides checks environment variables for any flag that was not
// explicitly provided on the command line. This preserves the precedence:
// CLI flags > env vars > defaults.
func applyEnvOverrides(fs *flag.FlagSet, cfg *Config) {
	// Track which flags were explicitly set via CLI.
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})

	intFields := map[string]*int{
		"agi-port":                &cfg.AGIPort,
		"http-port":               &cfg.HTTPPort,
		"max-turns":               &cfg.MaxTurns,
		"max-call-seconds":        &cfg.MaxCallSeconds,
		"input-timeout":           &cfg.InputTimeoutSeconds,
		"retry-timeout":           &cfg.RetryTimeoutSeconds,
		"max-failed-interactions": &cfg.MaxFailedInteractions,
		"max-no-response":         &cfg.MaxNoResponse,
		"barge-window-ms":         &cfg.BargeWindowMillis,
		"barge-min-bytes":         &cfg.BargeMinBytes,
		"turn-min-bytes":          &cfg.TurnMinBytes,
	}
	stringFields := map[string]*string{
		"data-dir":        &cfg.DataDir,
		"sounds-dir":      &cfg.SoundsDir,
		"spool-dir":       &cfg.SpoolDir,
		"log-level":       &cfg.LogLevel,
		"log-format":      &cfg.LogFormat,
		"asr-url":         &cfg.ASRURL,
		"tts-url":         &cfg.TTSURL,
		"llm-url":         &cfg.LLMURL,
		"llm-model":       &cfg.LLMModel,
		"fallback-prompt": &cfg.FallbackPrompt,
		"exit-phrases":    &cfg.ExitPhrases,
		"urgent-phrases":  &cfg.UrgentPhrases,
	}

	for flagName, dst := range intFields {
		if set[flagName] {
			continue
		}
		val, ok := os.LookupEnv(envVarName(flagName))
		if !ok || val == "" {
			continue
		}
		if v, err := strconv.Atoi(val); err == nil {
			*dst = v
		}
	}
	for flagName, dst := range stringFields {
		if set[flagName] {
			continue
		}
		val, ok := os.LookupEnv(envVarName(flagName))
		if !ok || val == "" {
			continue
		}
		*dst = val
	}
}

// envVarName maps a flag name to its environment variable name,
// e.g. "agi-port" -> "VOICEGATE_AGI_PORT".
func envVarName(flagName string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}

// validate checks that the config values are sane.
func (c *Config) validate() error {
	if c.AGIPort < 1 || c.AGIPort > 65535 {
		return fmt.Errorf("agi-port must be between 1 and 65535, got %d", c.AGIPort)
	}
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("http-port must be between 1 and 65535, got %d", c.HTTPPort)
	}
	if c.MaxTurns < 1 {
		return fmt.Errorf("max-turns must be at least 1, got %d", c.MaxTurns)
	}
	if c.MaxCallSeconds < 1 {
		return fmt.Errorf("max-call-seconds must be at least 1, got %d", c.MaxCallSeconds)
	}
	if c.InputTimeoutSeconds < 1 || c.RetryTimeoutSeconds < 1 {
		return fmt.Errorf("input-timeout and retry-timeout must be at least 1 second")
	}
	if c.MaxFailedInteractions < 1 || c.MaxNoResponse < 1 {
		return fmt.Errorf("max-failed-interactions and max-no-response must be at least 1")
	}
	if c.BargeWindowMillis < 100 {
		return fmt.Errorf("barge-window-ms must be at least 100, got %d", c.BargeWindowMillis)
	}
	if c.BargeMinBytes < 0 || c.TurnMinBytes < 0 {
		return fmt.Errorf("capture size gates must not be negative")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("log-level must be one of debug, info, warn, error; got %q", c.LogLevel)
	}
	c.LogLevel = strings.ToLower(c.LogLevel)

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.LogFormat)] {
		return fmt.Errorf("log-format must be one of text, json; got %q", c.LogFormat)
	}
	c.LogFormat = strings.ToLower(c.LogFormat)

	return nil
}

// MaxCallDuration returns the maximum call duration as a time.Duration.
func (c *Config) MaxCallDuration() time.Duration {
	return time.Duration(c.MaxCallSeconds) * time.Second
}

// InputTimeout returns the per-turn listening window.
func (c *Config) InputTimeout() time.Duration {
	return time.Duration(c.InputTimeoutSeconds) * time.Second
}

// RetryTimeout returns the shorter follow-up listening window.
func (c *Config) RetryTimeout() time.Duration {
	return time.Duration(c.RetryTimeoutSeconds) * time.Second
}

// BargeWindow returns the interrupt detection window.
func (c *Config) BargeWindow() time.Duration {
	return time.Duration(c.BargeWindowMillis) * time.Millisecond
}

// ExitPhraseList returns the exit phrases as a lowercased slice.
func (c *Config) ExitPhraseList() []string {
	return splitPhrases(c.ExitPhrases)
}

// UrgentPhraseList returns the urgency phrases as a lowercased slice.
func (c *Config) UrgentPhraseList() []string {
	return splitPhrases(c.UrgentPhrases)
}

func splitPhrases(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SlogHandler returns a slog.Handler configured with the appropriate format
// (text or json) and log level.
func (c *Config) SlogHandler(w *os.File) slog.Handler {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.LogFormat == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// SlogLevel returns the slog.Level corresponding to the configured log level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

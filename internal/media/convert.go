// Package media handles scratch audio file naming and conversion of
// synthesizer output into the playback format the call-control system
// expects.
package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// minPlayableBytes is the smallest output we accept as a valid
// conversion result.
const minPlayableBytes = 100

// convertTimeout bounds each sox invocation.
const convertTimeout = 10 * time.Second

// UniqueID returns a collision-safe identifier for scratch files:
// unix timestamp plus a short random suffix, so concurrent calls on the
// same host never collide.
func UniqueID() string {
	return fmt.Sprintf("%d_%s", time.Now().Unix(), uuid.NewString()[:8])
}

// ScratchName builds a scratch file path under dir, without extension
// since the recording primitive appends one.
func ScratchName(dir, prefix string) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s", prefix, UniqueID()))
}

// RemoveQuiet deletes a scratch file best-effort. Failure is logged at
// debug level and otherwise ignored; cleanup is never fatal.
func RemoveQuiet(path string, logger *slog.Logger) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Debug("scratch cleanup failed", "path", path, "error", err)
	}
}

// outputFormat describes one conversion target attempted in order.
type outputFormat struct {
	ext  string
	args []string // sox arguments between input and output path
}

// formats are tried in order of preference. 8 kHz mono signed 16-bit is
// what the call-control system plays natively; GSM is the most
// compatible fallback.
var formats = []outputFormat{
	{ext: "wav", args: []string{"-r", "8000", "-c", "1", "-b", "16", "-e", "signed-integer", "-t", "wav"}},
	{ext: "sln16", args: []string{"-r", "8000", "-c", "1", "-b", "16", "-e", "signed-integer", "-t", "raw"}},
	{ext: "gsm", args: []string{"-r", "8000", "-c", "1", "-t", "gsm"}},
}

// Converter transcodes synthesizer output into the sounds directory.
type Converter struct {
	soundsDir string
	logger    *slog.Logger
}

// NewConverter creates a Converter writing into soundsDir.
func NewConverter(soundsDir string, logger *slog.Logger) *Converter {
	return &Converter{
		soundsDir: soundsDir,
		logger:    logger.With("component", "media"),
	}
}

// ConvertForPlayback converts inputPath into a playable file in the
// sounds directory and returns the playback name (base name without
// extension, which is how the play primitive wants it). Formats are
// attempted in order; the first one producing a plausible file wins.
func (c *Converter) ConvertForPlayback(ctx context.Context, inputPath string) (string, error) {
	id := UniqueID()
	name := "tts_" + id

	for _, f := range formats {
		outPath := filepath.Join(c.soundsDir, name+"."+f.ext)
		if err := c.runSox(ctx, inputPath, f.args, outPath); err != nil {
			c.logger.Warn("conversion attempt failed", "format", f.ext, "error", err)
			continue
		}

		info, err := os.Stat(outPath)
		if err != nil || info.Size() < minPlayableBytes {
			c.logger.Warn("conversion produced unusable file", "format", f.ext, "path", outPath)
			RemoveQuiet(outPath, c.logger)
			continue
		}

		// Playback runs as a different user than the converter.
		if err := os.Chmod(outPath, 0o644); err != nil {
			c.logger.Debug("chmod failed", "path", outPath, "error", err)
		}
		c.logger.Info("audio converted", "format", f.ext, "name", name, "bytes", info.Size())
		return name, nil
	}

	return "", fmt.Errorf("converting %s: all output formats failed", inputPath)
}

// runSox invokes sox with a bounded timeout.
func (c *Converter) runSox(ctx context.Context, inputPath string, args []string, outPath string) error {
	ctx, cancel := context.WithTimeout(ctx, convertTimeout)
	defer cancel()

	argv := append([]string{inputPath}, args...)
	argv = append(argv, outPath)

	cmd := exec.CommandContext(ctx, "sox", argv...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("sox: %w (%s)", err, string(out))
	}
	return nil
}

package media

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// scratchPrefixes are the generated-file name prefixes the sweeper
// owns: converted playback prompts and recording captures. Anything
// else in the swept directories is left alone.
var scratchPrefixes = []string{"tts_", "voice_", "user_"}

// StartCleanupTicker runs a background goroutine that periodically
// removes generated audio files older than maxAge from the given
// directories. Conversion output stays on disk through playback and is
// only ever reclaimed here; capture files are normally deleted by their
// creators, so the sweeper just catches leftovers from crashed calls.
// The goroutine stops when the provided context is cancelled.
func StartCleanupTicker(ctx context.Context, dirs []string, maxAge, interval time.Duration, logger *slog.Logger) {
	logger = logger.With("component", "media")

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := sweep(dirs, maxAge, logger); removed > 0 {
					logger.Info("scratch audio cleanup", "removed", removed)
				}
			}
		}
	}()
}

// sweep removes aged generated files and returns how many it deleted.
func sweep(dirs []string, maxAge time.Duration, logger *slog.Logger) int {
	cutoff := time.Now().Add(-maxAge)
	removed := 0

	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			logger.Warn("scratch sweep: reading directory failed", "dir", dir, "error", err)
			continue
		}

		for _, e := range entries {
			if e.IsDir() || !hasScratchPrefix(e.Name()) {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			if info.ModTime().Before(cutoff) {
				RemoveQuiet(filepath.Join(dir, e.Name()), logger)
				removed++
			}
		}
	}

	return removed
}

func hasScratchPrefix(name string) bool {
	for _, p := range scratchPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

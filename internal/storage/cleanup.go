package storage

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// PruneStaged removes staged uploads older than maxAge. They are left
// behind only when the process dies mid-upload.
func (s *Store) PruneStaged(maxAge time.Duration) (int, error) {
	dir := filepath.Join(s.root, partialDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, classify(err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		info, err := e.Info()
		if err != nil || !info.Mode().IsRegular() || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, classify(err)
		}
		removed++
	}
	return removed, nil
}

// RunCleanup prunes stale staged uploads once immediately and then every
// interval until ctx is done.
func (s *Store) RunCleanup(ctx context.Context, interval, maxAge time.Duration, logger *slog.Logger) {
	run := func() {
		start := time.Now()
		n, err := s.PruneStaged(maxAge)
		if err != nil {
			logger.Warn("staged upload cleanup failed", "error", err)
			return
		}
		if n > 0 {
			logger.Info("staged uploads removed", "count", n, "ms", time.Since(start).Milliseconds())
		}
	}

	run()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}

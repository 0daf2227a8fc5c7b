package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Togather-Foundation/rsvp/internal/assets"
)

// DefaultOrphanGracePeriod protects files whose event insert is still in
// flight.
const DefaultOrphanGracePeriod = 24 * time.Hour

type AssetLister interface {
	List(ctx context.Context) ([]assets.StoredFile, error)
	Release(ctx context.Context, ref string) error
}

type ImageReferenceChecker interface {
	IsImageReferenced(ctx context.Context, ref string) (bool, error)
}

// Sweeper removes stored images that no event references and that are older
// than the grace period.
type Sweeper struct {
	Store       AssetLister
	Events      ImageReferenceChecker
	GracePeriod time.Duration
	Logger      *slog.Logger
	Now         func() time.Time
}

// Sweep returns the number of files removed. A file that fails to release is
// logged and left for the next run.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	if s.Store == nil || s.Events == nil {
		return 0, fmt.Errorf("sweeper not configured")
	}
	logger := loggerOrDefault(s.Logger)
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	grace := s.GracePeriod
	if grace <= 0 {
		grace = DefaultOrphanGracePeriod
	}

	files, err := s.Store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list assets: %w", err)
	}

	cutoff := now().Add(-grace)
	removed := 0
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if file.ModTime.After(cutoff) {
			continue
		}
		referenced, err := s.Events.IsImageReferenced(ctx, file.Ref)
		if err != nil {
			return removed, fmt.Errorf("check %s: %w", file.Ref, err)
		}
		if referenced {
			continue
		}
		if err := s.Store.Release(ctx, file.Ref); err != nil {
			logger.Warn("orphan release failed", "ref", file.Ref, "error", err)
			continue
		}
		removed++
	}

	logger.Info("orphan asset sweep completed", "scanned", len(files), "removed", removed)
	return removed, nil
}

// Run sweeps every interval until ctx is done. It stands in for the periodic
// River job when the backend has no queue.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
				loggerOrDefault(s.Logger).Error("orphan asset sweep failed", "error", err)
			}
		}
	}
}

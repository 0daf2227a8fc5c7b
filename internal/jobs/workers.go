package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Togather-Foundation/rsvp/internal/assets"
	"github.com/riverqueue/river"
)

// ReleaseAssetArgs retries the removal of an image that could not be
// released inline.
type ReleaseAssetArgs struct {
	Ref string `json:"ref"`
}

func (ReleaseAssetArgs) Kind() string { return JobKindReleaseAsset }

func (ReleaseAssetArgs) InsertOpts() river.InsertOpts {
	return InsertOptsForKind(JobKindReleaseAsset)
}

// OrphanAssetSweepArgs triggers a scan for images no event references.
type OrphanAssetSweepArgs struct{}

func (OrphanAssetSweepArgs) Kind() string { return JobKindOrphanAssetSweep }

func (OrphanAssetSweepArgs) InsertOpts() river.InsertOpts {
	return InsertOptsForKind(JobKindOrphanAssetSweep)
}

type AssetReleaser interface {
	Release(ctx context.Context, ref string) error
}

type ReleaseAssetWorker struct {
	river.WorkerDefaults[ReleaseAssetArgs]
	Store  AssetReleaser
	Logger *slog.Logger
}

func (ReleaseAssetWorker) Kind() string { return JobKindReleaseAsset }

func (w ReleaseAssetWorker) Work(ctx context.Context, job *river.Job[ReleaseAssetArgs]) error {
	if job == nil {
		return fmt.Errorf("release asset job missing")
	}
	if w.Store == nil {
		return fmt.Errorf("asset store not configured")
	}
	err := w.Store.Release(ctx, job.Args.Ref)
	if errors.Is(err, assets.ErrInvalidRef) {
		// Retrying cannot make a foreign ref valid.
		return river.JobCancel(err)
	}
	if err != nil {
		return fmt.Errorf("release %s: %w", job.Args.Ref, err)
	}
	loggerOrDefault(w.Logger).Info("released asset", "ref", job.Args.Ref, "attempt", job.Attempt)
	return nil
}

type OrphanAssetSweepWorker struct {
	river.WorkerDefaults[OrphanAssetSweepArgs]
	Sweeper *Sweeper
}

func (OrphanAssetSweepWorker) Kind() string { return JobKindOrphanAssetSweep }

func (w OrphanAssetSweepWorker) Work(ctx context.Context, job *river.Job[OrphanAssetSweepArgs]) error {
	if w.Sweeper == nil {
		return fmt.Errorf("orphan sweeper not configured")
	}
	_, err := w.Sweeper.Sweep(ctx)
	return err
}

// NewWorkers registers every worker this service runs.
func NewWorkers(store AssetReleaser, sweeper *Sweeper, logger *slog.Logger) *river.Workers {
	workers := river.NewWorkers()
	river.AddWorker[ReleaseAssetArgs](workers, ReleaseAssetWorker{Store: store, Logger: logger})
	river.AddWorker[OrphanAssetSweepArgs](workers, OrphanAssetSweepWorker{Sweeper: sweeper})
	return workers
}

func loggerOrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

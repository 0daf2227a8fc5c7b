package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/riverqueue/river/rivertype"
)

const (
	JobKindReleaseAsset     = "release_asset"
	JobKindOrphanAssetSweep = "orphan_asset_sweep"
)

const (
	ReleaseAssetMaxAttempts     = 8
	OrphanAssetSweepMaxAttempts = 1

	defaultMaxAttempts = 5
	assetQueueWorkers  = 2
)

// backoff is the retry schedule for one job kind. A zero base retries
// immediately.
type backoff struct {
	maxAttempts int
	base        time.Duration
	ceiling     time.Duration
}

func (b backoff) delay(attempt int) time.Duration {
	if b.base <= 0 {
		return 0
	}
	d := b.base
	for i := 1; i < attempt; i++ {
		d *= 2
		if b.ceiling > 0 && d >= b.ceiling {
			return b.ceiling
		}
	}
	return d
}

var defaultBackoff = backoff{maxAttempts: defaultMaxAttempts, base: 30 * time.Second, ceiling: 30 * time.Minute}

var kindBackoff = map[string]backoff{
	// Deleting an image file is cheap and idempotent; keep trying for a while.
	JobKindReleaseAsset: {maxAttempts: ReleaseAssetMaxAttempts, base: 15 * time.Second, ceiling: time.Hour},
	// The next scheduled sweep is the retry.
	JobKindOrphanAssetSweep: {maxAttempts: OrphanAssetSweepMaxAttempts},
}

func backoffFor(kind string) backoff {
	if b, ok := kindBackoff[kind]; ok {
		return b
	}
	return defaultBackoff
}

// RetryPolicy is River's ClientRetryPolicy with per-kind exponential backoff.
type RetryPolicy struct{}

func (RetryPolicy) NextRetry(job *rivertype.JobRow) time.Time {
	from := time.Now()
	if job.AttemptedAt != nil {
		from = *job.AttemptedAt
	}
	return from.Add(backoffFor(job.Kind).delay(max(job.Attempt, 1)))
}

// InsertOptsForKind returns the insert options every enqueue of kind uses.
func InsertOptsForKind(kind string) river.InsertOpts {
	return river.InsertOpts{MaxAttempts: backoffFor(kind).maxAttempts}
}

// ClientOptions collects what the River client is built from.
type ClientOptions struct {
	Workers       *river.Workers
	Logger        *slog.Logger
	Hooks         []rivertype.Hook
	SweepInterval time.Duration
}

// NewClientConfig builds the River configuration. The orphan sweep is only
// scheduled for a positive SweepInterval.
func NewClientConfig(opts ClientOptions) *river.Config {
	config := &river.Config{
		Workers:      opts.Workers,
		RetryPolicy:  RetryPolicy{},
		MaxAttempts:  defaultMaxAttempts,
		PeriodicJobs: periodicJobs(opts.SweepInterval),
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: assetQueueWorkers},
		},
		Hooks: opts.Hooks,
	}
	if opts.Logger != nil {
		config.Logger = opts.Logger
		config.ErrorHandler = NewAlertingErrorHandler(opts.Logger, nil)
	}
	return config
}

// NewClient creates a River client on the pgx pool.
func NewClient(pool *pgxpool.Pool, opts ClientOptions) (*river.Client[pgx.Tx], error) {
	return river.NewClient(riverpgxv5.New(pool), NewClientConfig(opts))
}

func periodicJobs(sweepInterval time.Duration) []*river.PeriodicJob {
	if sweepInterval <= 0 {
		return nil
	}
	sweep := river.NewPeriodicJob(
		river.PeriodicInterval(sweepInterval),
		func() (river.JobArgs, *river.InsertOpts) { return OrphanAssetSweepArgs{}, nil },
		&river.PeriodicJobOpts{},
	)
	return []*river.PeriodicJob{sweep}
}

// Migrate creates or upgrades River's own tables.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return fmt.Errorf("init river migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, &rivermigrate.MigrateOpts{}); err != nil {
		return fmt.Errorf("migrate river: %w", err)
	}
	return nil
}

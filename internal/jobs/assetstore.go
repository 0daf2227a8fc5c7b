package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Togather-Foundation/rsvp/internal/assets"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

// Inserter is the part of *river.Client used to enqueue jobs.
type Inserter interface {
	Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

type assetBackend interface {
	Save(ctx context.Context, upload *assets.Upload) (string, error)
	Release(ctx context.Context, ref string) error
}

// QueuedAssetStore releases images inline and falls back to a River job when
// the inline removal fails.
type QueuedAssetStore struct {
	store    assetBackend
	inserter Inserter
	logger   *slog.Logger
}

func NewQueuedAssetStore(store assetBackend, inserter Inserter, logger *slog.Logger) *QueuedAssetStore {
	return &QueuedAssetStore{store: store, inserter: inserter, logger: loggerOrDefault(logger)}
}

func (s *QueuedAssetStore) Save(ctx context.Context, upload *assets.Upload) (string, error) {
	return s.store.Save(ctx, upload)
}

func (s *QueuedAssetStore) Release(ctx context.Context, ref string) error {
	err := s.store.Release(ctx, ref)
	if err == nil || errors.Is(err, assets.ErrInvalidRef) || s.inserter == nil {
		return err
	}
	if _, insertErr := s.inserter.Insert(ctx, ReleaseAssetArgs{Ref: ref}, nil); insertErr != nil {
		return errors.Join(err, fmt.Errorf("enqueue release: %w", insertErr))
	}
	s.logger.Warn("asset release deferred to job", "ref", ref, "error", err)
	return nil
}

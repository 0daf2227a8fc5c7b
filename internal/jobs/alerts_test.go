package jobs

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/assert"
)

func TestAlertingErrorHandler(t *testing.T) {
	var buf bytes.Buffer
	var notified []string
	handler := NewAlertingErrorHandler(
		slog.New(slog.NewTextHandler(&buf, nil)),
		func(_ context.Context, job *rivertype.JobRow, _ error) { notified = append(notified, job.Kind) },
	)

	retrying := &rivertype.JobRow{ID: 1, Kind: JobKindReleaseAsset, Attempt: 1, MaxAttempts: ReleaseAssetMaxAttempts}
	assert.Nil(t, handler.HandleError(context.Background(), retrying, errors.New("busy")))
	assert.Empty(t, notified)
	assert.Contains(t, buf.String(), "job attempt failed")

	exhausted := &rivertype.JobRow{ID: 2, Kind: JobKindReleaseAsset, Attempt: ReleaseAssetMaxAttempts, MaxAttempts: ReleaseAssetMaxAttempts}
	handler.HandleError(context.Background(), exhausted, errors.New("busy"))
	assert.Equal(t, []string{JobKindReleaseAsset}, notified)
	assert.Contains(t, buf.String(), "left for orphan sweep")

	handler.HandlePanic(context.Background(), &rivertype.JobRow{ID: 3, Kind: JobKindOrphanAssetSweep}, "boom", "stack")
	assert.Equal(t, []string{JobKindReleaseAsset, JobKindOrphanAssetSweep}, notified)
	assert.Contains(t, buf.String(), "job panicked")
}

package metrics

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func TestInit(t *testing.T) {
	Init("v1.0.0", "abc123", "2026-01-30", "sqlite")
	Init("v1.0.1", "abc124", "2026-01-31", "sqlite")

	require.Equal(t, 1, testutil.CollectAndCount(AppInfo))
	require.Equal(t, float64(1), testutil.ToFloat64(AppInfo.WithLabelValues("v1.0.1", "abc124", "2026-01-31", "sqlite")))
}

func TestRecordReservation(t *testing.T) {
	before := testutil.ToFloat64(RSVPReservationsTotal.WithLabelValues(OutcomeCapacityExceeded))
	RecordReservation(OutcomeCapacityExceeded)
	require.Equal(t, before+1, testutil.ToFloat64(RSVPReservationsTotal.WithLabelValues(OutcomeCapacityExceeded)))
}

func TestRecordAssetRelease(t *testing.T) {
	before := testutil.ToFloat64(AssetsReleasedTotal.WithLabelValues("released"))
	RecordAssetRelease("released")
	require.Equal(t, before+1, testutil.ToFloat64(AssetsReleasedTotal.WithLabelValues("released")))
}

func TestHTTPMiddleware(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	wrapped := HTTPMiddleware(handler)

	req := httptest.NewRequest("GET", "/api/v1/events/01HYX3KQW7ERTV9XNBM2P8QJZF", nil)
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, float64(1), testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/events/{id}", "200")))
}

func TestHTTPMiddlewareStatusCodes(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
	}{
		{"OK", http.StatusOK},
		{"Not Found", http.StatusNotFound},
		{"Conflict", http.StatusConflict},
		{"Service Unavailable", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
			})

			wrapped := HTTPMiddleware(handler)
			req := httptest.NewRequest("GET", "/status-test", nil)
			rec := httptest.NewRecorder()
			wrapped.ServeHTTP(rec, req)

			require.Equal(t, tt.statusCode, rec.Code)
		})
	}
}

func TestHTTPMiddlewareImplicitOK(t *testing.T) {
	wrapped := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	req := httptest.NewRequest("GET", "/implicit-ok", nil)
	wrapped.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, float64(1), testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/implicit-ok", "200")))
}

func TestDBCollector_NilSources(t *testing.T) {
	NewDBCollector(nil).collect()
	NewSQLDBCollector(nil).collect()
}

func TestSQLDBCollector(t *testing.T) {
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "stats.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	db.SetMaxOpenConns(3)
	require.NoError(t, db.Ping())

	collector := NewSQLDBCollector(db)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		collector.Start(ctx, time.Hour)
		close(done)
	}()
	cancel()
	<-done

	require.Equal(t, float64(3), testutil.ToFloat64(DBConnections.WithLabelValues(PoolMaxOpen)))
	require.Equal(t, float64(0), testutil.ToFloat64(DBConnections.WithLabelValues(PoolInUse)))
}

func TestRecordQuery(t *testing.T) {
	RecordQuery("test_select", time.Now(), nil)
	require.NotZero(t, testutil.CollectAndCount(DBQueryDuration))

	RecordQuery("test_timeout", time.Now(), errors.Join(errors.New("wrapped"), context.DeadlineExceeded))
	require.Equal(t, float64(1), testutil.ToFloat64(DBErrors.WithLabelValues("test_timeout", "timeout")))

	RecordQuery("test_broken", time.Now(), errors.New("disk I/O error"))
	require.Equal(t, float64(1), testutil.ToFloat64(DBErrors.WithLabelValues("test_broken", "query_error")))
}

func TestResponseWriterStatusCode(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec}

	_, _ = rw.Write([]byte("test"))

	require.Equal(t, http.StatusOK, rw.statusCode)
	require.Equal(t, 4, rw.bytesWritten)
}

func TestRiverMetricsHook(t *testing.T) {
	hook := NewRiverMetricsHook()
	ctx := context.Background()
	started := time.Now().Add(-time.Second)
	job := &rivertype.JobRow{ID: 1, Kind: "hook_test", AttemptedAt: &started}

	require.NoError(t, hook.InsertBegin(ctx, &rivertype.JobInsertParams{Kind: "hook_test"}))
	require.NoError(t, hook.WorkBegin(ctx, job))
	require.NoError(t, hook.WorkEnd(ctx, job, errors.New("boom")))

	require.Equal(t, float64(1), testutil.ToFloat64(RiverJobsQueued.WithLabelValues("hook_test")))
	require.Equal(t, float64(0), testutil.ToFloat64(RiverJobsInFlight.WithLabelValues("hook_test")))
	require.Equal(t, float64(1), testutil.ToFloat64(RiverJobsCompleted.WithLabelValues("hook_test", "error")))
}

package metrics

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Connection pool states reported under db_connections.
const (
	PoolOpen    = "open"
	PoolInUse   = "in_use"
	PoolIdle    = "idle"
	PoolMaxOpen = "max_open"
)

var (
	// DBConnections reports the storage pool, one series per state.
	DBConnections = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections",
			Help:      "Database connections by pool state",
		},
		[]string{"state"},
	)

	// DBQueryDuration is labelled "<driver>.<operation>", e.g. "sqlite.reserve".
	DBQueryDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"operation"},
	)

	DBErrors = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "db_errors_total",
			Help:      "Database failures that were not domain outcomes",
		},
		[]string{"operation", "error_type"},
	)
)

type poolSnapshot struct {
	open, inUse, idle, maxOpen int
}

// DBCollector samples a connection pool into DBConnections.
type DBCollector struct {
	sample func() poolSnapshot
}

func NewDBCollector(pool *pgxpool.Pool) *DBCollector {
	if pool == nil {
		return &DBCollector{}
	}
	return &DBCollector{sample: func() poolSnapshot {
		s := pool.Stat()
		return poolSnapshot{
			open:    int(s.TotalConns()),
			inUse:   int(s.AcquiredConns()),
			idle:    int(s.IdleConns()),
			maxOpen: int(s.MaxConns()),
		}
	}}
}

// NewSQLDBCollector samples a database/sql handle, used for SQLite.
func NewSQLDBCollector(db *sql.DB) *DBCollector {
	if db == nil {
		return &DBCollector{}
	}
	return &DBCollector{sample: func() poolSnapshot {
		s := db.Stats()
		return poolSnapshot{
			open:    s.OpenConnections,
			inUse:   s.InUse,
			idle:    s.Idle,
			maxOpen: s.MaxOpenConnections,
		}
	}}
}

// Start samples immediately and then every interval until ctx is done.
func (c *DBCollector) Start(ctx context.Context, interval time.Duration) {
	c.collect()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.collect()
		}
	}
}

func (c *DBCollector) collect() {
	if c.sample == nil {
		return
	}
	s := c.sample()
	DBConnections.WithLabelValues(PoolOpen).Set(float64(s.open))
	DBConnections.WithLabelValues(PoolInUse).Set(float64(s.inUse))
	DBConnections.WithLabelValues(PoolIdle).Set(float64(s.idle))
	DBConnections.WithLabelValues(PoolMaxOpen).Set(float64(s.maxOpen))
}

// RecordQuery observes one query. Callers filter out domain outcomes such as
// a full event before passing err.
func RecordQuery(operation string, start time.Time, err error) {
	DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err == nil {
		return
	}
	DBErrors.WithLabelValues(operation, queryErrorType(err)).Inc()
}

func queryErrorType(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "query_error"
	}
}

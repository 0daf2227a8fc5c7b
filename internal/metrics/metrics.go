package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace for all metrics exported by the RSVP server
const namespace = "togather"

// Registry is the global Prometheus registry for all metrics
var Registry = prometheus.NewRegistry()

// AppInfo is a gauge that exposes application version information as labels
var AppInfo = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "app_info",
		Help:      "Application version information (always set to 1, version info in labels)",
	},
	[]string{"version", "commit", "build_date", "db_driver"},
)

// Reservation outcomes used as the outcome label.
const (
	OutcomeReserved         = "reserved"
	OutcomeAlreadyReserved  = "already_reserved"
	OutcomeCapacityExceeded = "capacity_exceeded"
	OutcomeNotFound         = "not_found"
	OutcomeError            = "error"
)

// RSVPReservationsTotal counts reservation attempts by outcome
var RSVPReservationsTotal = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rsvp_reservations_total",
		Help:      "Total number of RSVP reservation attempts by outcome",
	},
	[]string{"outcome"},
)

// AssetsReleasedTotal counts image asset releases.
// result: released, missing, failed, queued
var AssetsReleasedTotal = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "assets_released_total",
		Help:      "Total number of stored image assets released",
	},
	[]string{"result"},
)

// EventMutationsTotal counts successful event writes by operation (create, update, delete)
var EventMutationsTotal = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "event_mutations_total",
		Help:      "Total number of successful event create/update/delete operations",
	},
	[]string{"operation"},
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Init sets the app_info gauge. Call once at startup.
func Init(version, commit, buildDate, driver string) {
	AppInfo.Reset()
	AppInfo.WithLabelValues(version, commit, buildDate, driver).Set(1)
}

// RecordReservation increments the reservation counter for outcome.
func RecordReservation(outcome string) {
	RSVPReservationsTotal.WithLabelValues(outcome).Inc()
}

// RecordAssetRelease increments the asset release counter for result.
func RecordAssetRelease(result string) {
	AssetsReleasedTotal.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

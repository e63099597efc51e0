package metrics

import (
	"context"
	"regexp"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Registry holds every collector of a run. It is pushed, not scraped.
var Registry = prometheus.NewRegistry()

var (
	// RequestDuration tracks Probely API call duration in seconds by method, path, status.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "probely_api_request_duration_seconds",
			Help:    "Probely API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// RequestTotal counts Probely API calls by method, path, status. Status "0" means no response.
	RequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "probely_api_requests_total",
			Help: "Total number of Probely API requests",
		},
		[]string{"method", "path", "status"},
	)

	// ScheduleOutcomes counts per-target results by action (create, update, skip) and result.
	ScheduleOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "probely_schedule_outcomes_total",
			Help: "Per-target schedule outcomes by action and result",
		},
		[]string{"action", "result"},
	)

	// LastRunTargets is the number of targets seen by the last run.
	LastRunTargets = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "probely_last_run_targets",
			Help: "Number of targets in the last run's inventory",
		},
	)
)

var idPathSegment = regexp.MustCompile(`/(targets|scheduledscans)/[^/]+`)

func init() {
	Registry.MustRegister(RequestDuration, RequestTotal, ScheduleOutcomes, LastRunTargets)
}

// NormalizePath replaces resource ids with {id} to keep label cardinality low.
// E.g. /targets/3jDG/scheduledscans/9x/ -> /targets/{id}/scheduledscans/{id}/.
func NormalizePath(path string) string {
	return idPathSegment.ReplaceAllString(path, "/$1/{id}")
}

// RecordRequest matches probely.Observer and is passed to the client.
func RecordRequest(method, path string, statusCode int, elapsed time.Duration) {
	path = NormalizePath(path)
	status := strconv.Itoa(statusCode)
	RequestDuration.WithLabelValues(method, path, status).Observe(elapsed.Seconds())
	RequestTotal.WithLabelValues(method, path, status).Inc()
}

// RecordOutcome counts one per-target result.
func RecordOutcome(action, result string) {
	ScheduleOutcomes.WithLabelValues(action, result).Inc()
}

// SetTargets records the inventory size.
func SetTargets(n int) {
	LastRunTargets.Set(float64(n))
}

// Push sends the registry to a Prometheus Pushgateway under the given job name.
func Push(ctx context.Context, gatewayURL, job string) error {
	return push.New(gatewayURL, job).Gatherer(Registry).PushContext(ctx)
}

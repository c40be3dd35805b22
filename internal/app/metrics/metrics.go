package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ledger_layer",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ledger_layer",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ledger_layer",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	reconcilerPasses = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ledger_layer",
			Subsystem: "reconciler",
			Name:      "pass_duration_seconds",
			Help:      "Duration of deposit reconciliation passes.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		},
	)

	reconcilerOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ledger_layer",
			Subsystem: "reconciler",
			Name:      "claim_outcomes_total",
			Help:      "Deposit claim outcomes per reconciliation decision.",
		},
		[]string{"outcome"},
	)

	depositsCredited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ledger_layer",
			Subsystem: "ledger",
			Name:      "deposit_tokens_credited_total",
			Help:      "Total tokens minted into circulation by credited deposits, fee included.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		reconcilerPasses,
		reconcilerOutcomes,
		depositsCredited,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordReconcilerPass records the duration of one reconciliation pass.
func RecordReconcilerPass(duration time.Duration) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	reconcilerPasses.Observe(duration.Seconds())
}

// RecordClaimOutcome counts one per-claim reconciliation decision. Outcome is
// one of credited, rejected, pending or transient.
func RecordClaimOutcome(outcome string) {
	reconcilerOutcomes.WithLabelValues(outcome).Inc()
}

// RecordDepositCredited adds the tokens minted by one credited deposit.
func RecordDepositCredited(net, fee int64) {
	depositsCredited.Add(float64(net + fee))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func canonicalPath(raw string) string {
	if raw == "" || raw == "/" {
		return "/"
	}
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 {
		return "/"
	}
	switch parts[0] {
	case "users":
		if len(parts) == 1 {
			return "/users"
		}
		if len(parts) == 2 {
			return "/users/:id"
		}
		return "/users/:id/" + parts[2]
	case "admin":
		if len(parts) == 1 {
			return "/admin"
		}
		return "/admin/" + parts[1]
	default:
		return "/" + parts[0]
	}
}

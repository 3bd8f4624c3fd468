package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/julianstephens/habitd/internal/constants"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: constants.AppName,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: constants.AppName,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: constants.AppName,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)

	checkIns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: constants.AppName,
			Subsystem: "habits",
			Name:      "checkins_total",
			Help:      "Check-ins by result (created, duplicate).",
		},
		[]string{"result"},
	)

	repairs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: constants.AppName,
			Subsystem: "habits",
			Name:      "repairs_total",
			Help:      "Streak repairs by result.",
		},
		[]string{"result"},
	)

	habitsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: constants.AppName,
			Subsystem: "habits",
			Name:      "created_total",
			Help:      "Habits created.",
		},
	)

	freezesEarned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: constants.AppName,
			Subsystem: "freezes",
			Name:      "earned_total",
			Help:      "Streak freezes granted by ad watches.",
		},
	)
)

// Repair results.
const (
	RepairSuccess       = "success"
	RepairInsufficient  = "insufficient_balance"
	RepairAlreadyLogged = "already_logged"
	RepairNotAuthorized = "not_authorized"
	RepairError         = "error"
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		checkIns,
		repairs,
		habitsCreated,
		freezesEarned,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps next with HTTP metrics. Used as router
// middleware so the matched route template is available for labels.
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

		route := routeTemplate(r)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, route, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	})
}

// RecordCheckIn counts a check-in. duplicate is true when the day was
// already logged.
func RecordCheckIn(duplicate bool) {
	result := "created"
	if duplicate {
		result = "duplicate"
	}
	checkIns.WithLabelValues(result).Inc()
}

func RecordRepair(result string) {
	if result == "" {
		result = RepairError
	}
	repairs.WithLabelValues(result).Inc()
}

func RecordHabitCreated() {
	habitsCreated.Inc()
}

func RecordFreezeEarned() {
	freezesEarned.Inc()
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

// routeTemplate keeps label cardinality bounded: habit ids never appear.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// Package metrics provides Prometheus metrics for the backend API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts total HTTP requests by method, path, and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kinmel",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, path, and status code",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration measures HTTP request duration in seconds
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kinmel",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	// HTTPRequestsInFlight tracks current in-flight requests
	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "kinmel",
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Current number of HTTP requests being processed",
		},
	)
)

var (
	// LoginAttemptsTotal counts credential checks by outcome
	// (granted, invalid, locked, not_found, error)
	LoginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kinmel",
			Subsystem: "auth",
			Name:      "login_attempts_total",
			Help:      "Total credential checks by outcome",
		},
		[]string{"outcome"},
	)

	// LockoutsTotal counts accounts entering the lockout cooldown
	LockoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "kinmel",
			Subsystem: "auth",
			Name:      "lockouts_total",
			Help:      "Total number of accounts locked after repeated failures",
		},
	)

	// OTPIssuedTotal counts issued one-time codes by purpose (login, reset)
	OTPIssuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kinmel",
			Subsystem: "auth",
			Name:      "otp_issued_total",
			Help:      "Total one-time codes issued by purpose",
		},
		[]string{"purpose"},
	)

	// OTPConsumedTotal counts OTP verification attempts by purpose and outcome
	// (granted, mismatch, expired, none_pending, error)
	OTPConsumedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kinmel",
			Subsystem: "auth",
			Name:      "otp_consumed_total",
			Help:      "Total OTP verification attempts by purpose and outcome",
		},
		[]string{"purpose", "outcome"},
	)

	// OTPDeliveryFailuresTotal counts notifier delivery failures by channel
	OTPDeliveryFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kinmel",
			Subsystem: "auth",
			Name:      "otp_delivery_failures_total",
			Help:      "Total OTP delivery failures by channel",
		},
		[]string{"channel"},
	)

	// PasswordChangesTotal counts password changes by outcome
	// (granted, policy, reused, expired, error)
	PasswordChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kinmel",
			Subsystem: "auth",
			Name:      "password_changes_total",
			Help:      "Total password change attempts by outcome",
		},
		[]string{"outcome"},
	)

	// OrdersPlacedTotal counts successfully placed orders
	OrdersPlacedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "kinmel",
			Subsystem: "orders",
			Name:      "placed_total",
			Help:      "Total number of orders placed",
		},
	)
)

// Middleware instruments HTTP handlers with request metrics.
// The chi route pattern is used as the path label to bound cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()

		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := chi.RouteContext(r.Context()).RoutePattern()
		if path == "" {
			path = "unmatched"
		}

		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(ww.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// Handler returns the Prometheus metrics endpoint handler
func Handler() http.Handler {
	return promhttp.Handler()
}

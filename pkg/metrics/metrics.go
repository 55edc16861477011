package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Tick results
const (
	TickResultOK      = "ok"
	TickResultUnknown = "unknown_user"
	TickResultError   = "error"
)

var (
	// Scheduler metrics
	TicksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "watermaestro_ticks_total",
		Help: "Total number of per-user window advances",
	}, []string{"result"})
	TickDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "watermaestro_tick_duration_seconds",
		Help:    "Duration of a load-advance-persist tick in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// Registry metrics
	SnapshotRecoveriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "watermaestro_snapshot_recoveries_total",
		Help: "Number of times a missing or corrupt snapshot was replaced by defaults",
	}, []string{"reason"})
	PersistErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "watermaestro_persist_errors_total",
		Help: "Number of failed snapshot writes",
	})
	Users = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "watermaestro_users",
		Help: "Number of users in the last persisted snapshot",
	})

	// HTTP metrics
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "watermaestro_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "code"})
	HTTPRequestDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "watermaestro_http_request_duration_seconds",
		Help:    "Duration of HTTP request processing in seconds",
		Buckets: prometheus.DefBuckets,
	})

	registerOnce sync.Once
)

func init() {
	InitMetrics()
}

// InitMetrics registers all collectors with the default registry
func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			TicksTotal,
			TickDurationSeconds,
			SnapshotRecoveriesTotal,
			PersistErrorsTotal,
			Users,
			HTTPRequestsTotal,
			HTTPRequestDurationSeconds,
		)
	})
}

// Handler exposes the registered metrics
func Handler() http.Handler {
	InitMetrics()
	return promhttp.Handler()
}

// RecordTick tracks one completed tick
func RecordTick(result string, duration time.Duration) {
	if duration < 0 {
		duration = 0
	}
	TicksTotal.WithLabelValues(result).Inc()
	TickDurationSeconds.Observe(duration.Seconds())
}

// RecordRecovery tracks a snapshot reset
func RecordRecovery(reason string) {
	SnapshotRecoveriesTotal.WithLabelValues(reason).Inc()
}

// RecordPersistError tracks a failed snapshot write
func RecordPersistError() {
	PersistErrorsTotal.Inc()
}

// SetUsers records the current user count
func SetUsers(n int) {
	Users.Set(float64(n))
}

// HTTPMiddleware instruments handlers with request and latency metrics
func HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		defer func() {
			HTTPRequestDurationSeconds.Observe(time.Since(start).Seconds())
			HTTPRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(recorder.status)).Inc()
		}()

		next.ServeHTTP(recorder, r)
	})
}

// statusRecorder captures the response status code for instrumentation
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack is required for websocket upgrades behind the middleware
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests"},
		[]string{"route", "method", "status"},
	)
	ReqDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request duration seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	PastesCreated = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "pastes_created_total", Help: "Pastes created"},
	)
	PasteViews = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "paste_views_total", Help: "View attempts by result"},
		[]string{"result"},
	)
	LazyDeletions = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "paste_lazy_deletions_total", Help: "Expired pastes deleted on read"},
	)
	StoreErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "paste_store_errors_total", Help: "Paste store failures by operation"},
		[]string{"op"},
	)
	ViewEventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "view_events_dropped_total", Help: "Audit events dropped on a full buffer"},
	)
)

func MustRegister() {
	prometheus.MustRegister(
		RequestsTotal,
		ReqDuration,
		PastesCreated,
		PasteViews,
		LazyDeletions,
		StoreErrors,
		ViewEventsDropped,
	)
}

// Middleware собирает счётчики и длительность запросов по шаблону маршрута
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method

		RequestsTotal.WithLabelValues(route, method, strconv.Itoa(c.Writer.Status())).Inc()
		ReqDuration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
	}
}

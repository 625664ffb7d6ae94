package handler

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

// MetricsHandler serves the Prometheus metrics endpoint.
type MetricsHandler struct {
	gatherer prometheus.Gatherer
}

var (
	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "odmhub_http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	totalRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "odmhub_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	pageRenderDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "odmhub_page_render_duration_seconds",
		Help:    "Time spent executing page templates",
		Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
	}, []string{"page"})

	settingsImageUploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "odmhub_settings_image_uploads_total",
		Help: "Settings image uploads by outcome",
	}, []string{"field", "outcome"})

	rateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "odmhub_rate_limited_total",
		Help: "Requests rejected by a rate limiter",
	}, []string{"scope"})

	authFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "odmhub_auth_failures_total",
		Help: "Total number of failed authentication attempts",
	}, []string{"reason"})

	usersOverQuota = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "odmhub_users_over_quota",
		Help: "Users currently over their storage quota",
	})
)

// NewMetricsHandler creates a metrics handler over the default registry.
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{gatherer: prometheus.DefaultGatherer}
}

// Handler returns the Prometheus metrics handler for Fiber
func (h *MetricsHandler) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		mfs, err := h.gatherer.Gather()
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).SendString("Failed to gather metrics")
		}

		var sb strings.Builder
		for _, mf := range mfs {
			if _, err := expfmt.MetricFamilyToText(&sb, mf); err != nil {
				return c.Status(fiber.StatusInternalServerError).SendString("Failed to format metrics")
			}
		}

		c.Set(fiber.HeaderContentType, "text/plain; version=0.0.4; charset=utf-8")
		return c.SendString(sb.String())
	}
}

// MetricsMiddleware records HTTP metrics for each request
func MetricsMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		path := c.Route().Path
		if path == "" {
			path = "__unmatched__"
		}
		status := statusClass(c.Response().StatusCode())

		totalRequests.WithLabelValues(c.Method(), path, status).Inc()
		httpDuration.WithLabelValues(c.Method(), path, status).Observe(time.Since(start).Seconds())

		return err
	}
}

func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}

// RecordPageRender records how long a page template took to execute.
func RecordPageRender(page string, d time.Duration) {
	pageRenderDuration.WithLabelValues(page).Observe(d.Seconds())
}

// RecordImageUpload counts a settings image upload.
func RecordImageUpload(field, outcome string) {
	settingsImageUploads.WithLabelValues(field, outcome).Inc()
}

// RecordRateLimited counts a request rejected by a limiter.
func RecordRateLimited(scope string) {
	rateLimited.WithLabelValues(scope).Inc()
}

// RecordAuthFailure increments the failed auth counter with a reason label.
func RecordAuthFailure(reason string) {
	authFailures.WithLabelValues(reason).Inc()
}

// SetUsersOverQuota updates the over-quota gauge.
func SetUsersOverQuota(n int) {
	usersOverQuota.Set(float64(n))
}

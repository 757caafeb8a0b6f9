// metrics.go — Prometheus HTTP метрики админ-API.
// Нормализация путей ограничивает кардинальность лейблов.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ld_http_requests_total",
			Help: "Общее количество HTTP-запросов к LegalDesk",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ld_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к LegalDesk в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware собирает количество и длительность запросов по endpoint.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			path := normalizePath(r.URL.Path)

			wrapped := newResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			status := strconv.Itoa(wrapped.statusCode)
			httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// normalizePath заменяет идентификаторы в пути на шаблоны:
// /admin/api/requests/17 → /admin/api/requests/{id},
// /admin/download/BQACAgIAAxkB... → /admin/download/{file_ref}.
// Неизвестные пути сводятся к "other".
func normalizePath(path string) string {
	switch path {
	case "/health/live", "/health/ready", "/metrics",
		"/admin", "/admin/api/login", "/admin/api/logout",
		"/admin/api/requests", "/admin/api/status", "/admin/api/reply":
		return path
	}

	const (
		requestsPrefix = "/admin/api/requests/"
		downloadPrefix = "/admin/download/"
	)
	switch {
	case strings.HasPrefix(path, requestsPrefix) && len(path) > len(requestsPrefix):
		return requestsPrefix + "{id}"
	case strings.HasPrefix(path, downloadPrefix) && len(path) > len(downloadPrefix):
		return downloadPrefix + "{file_ref}"
	}
	return "other"
}

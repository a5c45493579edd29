package http

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if err := s.api.Ping(ctx); err != nil {
		s.logger.WarnContext(ctx, "Readiness check failed", "check", "storage", "error", err)
		checks["storage"] = "failed"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["storage"] = "ok"
	}

	checks["dashboard"] = map[string]any{
		"version": s.dashboard.Version(),
		"status":  "ok",
	}
	checks["events"] = map[string]any{
		"subscribers": s.bus.Subscribers(),
		"status":      "ok",
	}

	NewResponse().Status(httpStatus).JSON(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	traceMetrics := s.traceMiddleware.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	securityMetrics := s.securityDetector.GetMetrics()

	w.WriteHeader(http.StatusOK)

	writeMetric(w, "http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	writeMetric(w, "http_server_errors_total", "counter", "Responses with a 5xx status", traceMetrics.ServerErrors)
	writeMetric(w, "http_request_duration_avg_seconds", "gauge", "Mean request latency", traceMetrics.AverageResponseTime().Seconds())

	fmt.Fprintf(w, "# HELP transactions_mutations_total Successful transaction mutations\n")
	fmt.Fprintf(w, "# TYPE transactions_mutations_total counter\n")
	fmt.Fprintf(w, "transactions_mutations_total{op=\"create\"} %d\n", atomic.LoadInt64(&s.appMetrics.created))
	fmt.Fprintf(w, "transactions_mutations_total{op=\"update\"} %d\n", atomic.LoadInt64(&s.appMetrics.updated))
	fmt.Fprintf(w, "transactions_mutations_total{op=\"delete\"} %d\n\n", atomic.LoadInt64(&s.appMetrics.deleted))

	writeMetric(w, "dashboard_invalidations_total", "counter", "Invalidations applied to the dashboard", s.dashboard.Version())
	writeMetric(w, "event_subscribers", "gauge", "Open invalidation subscriptions", s.bus.Subscribers())
	writeMetric(w, "rate_limit_hits_total", "counter", "Total rate limit hits", rateLimitMetrics.TotalHits)
	writeMetric(w, "active_rate_limit_clients", "gauge", "Currently tracked rate limit clients", rateLimitMetrics.ClientCount)
	writeMetric(w, "suspicious_requests_total", "counter", "Total suspicious requests detected", securityMetrics.SuspiciousRequests)
	writeMetric(w, "uptime_seconds", "gauge", "Application uptime in seconds", int64(time.Since(s.appMetrics.started).Seconds()))
}

func writeMetric(w http.ResponseWriter, name, kind, help string, value any) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s %s\n", name, kind)
	fmt.Fprintf(w, "%s %v\n\n", name, value)
}

package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"kwitansi/internal/backend"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	health := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(health)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]interface{})
	fail := func(name string, detail string) {
		checks[name] = detail
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	if s.templates == nil {
		fail("templates", "failed: templates not loaded")
	} else {
		checks["templates"] = "ok"
	}

	switch {
	case s.backend == nil:
		fail("backend", "not_configured")
	default:
		if p, ok := s.backend.(backend.Pinger); ok {
			if err := p.Ping(ctx); err != nil {
				fail("backend", fmt.Sprintf("failed: %v", err))
			} else {
				checks["backend"] = "ok"
			}
		} else {
			checks["backend"] = "ok"
		}
	}

	if p, ok := s.sessions.(backend.Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			fail("sessions", fmt.Sprintf("failed: %v", err))
		} else {
			checks["sessions"] = "ok"
		}
	}

	checks["cache"] = map[string]interface{}{
		"daily_entries":    s.dailyCache.Size(),
		"monthly_entries":  s.monthlyCache.Size(),
		"customer_entries": s.customerCache.Size(),
		"status":           "ok",
	}

	checks["rate_limiter"] = map[string]interface{}{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	response := map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}

	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(response)
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.securityDetector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.traceMiddleware.GetMetrics()
	uptime := time.Since(s.appMetrics.uptime)

	daily := s.dailyCache.Stats()
	monthly := s.monthlyCache.Stats()
	customers := s.customerCache.Stats()

	w.WriteHeader(http.StatusOK)

	// Write metrics in Prometheus-like format
	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", traceMetrics.TotalRequests)

	fmt.Fprintf(w, "# HELP http_server_errors_total Responses with a 5xx status\n")
	fmt.Fprintf(w, "# TYPE http_server_errors_total counter\n")
	fmt.Fprintf(w, "http_server_errors_total %d\n\n", traceMetrics.ServerErrors)

	fmt.Fprintf(w, "# HELP http_response_time_avg_microseconds Mean response time\n")
	fmt.Fprintf(w, "# TYPE http_response_time_avg_microseconds gauge\n")
	fmt.Fprintf(w, "http_response_time_avg_microseconds %d\n\n", traceMetrics.AverageResponseTime)

	fmt.Fprintf(w, "# HELP receipts_saved_total Receipts written through the console\n")
	fmt.Fprintf(w, "# TYPE receipts_saved_total counter\n")
	fmt.Fprintf(w, "receipts_saved_total{operation=\"create\"} %d\n", s.appMetrics.receiptsCreated.Load())
	fmt.Fprintf(w, "receipts_saved_total{operation=\"update\"} %d\n", s.appMetrics.receiptsUpdated.Load())
	fmt.Fprintf(w, "receipts_saved_total{operation=\"mark_paid\"} %d\n\n", s.appMetrics.receiptsPaid.Load())

	fmt.Fprintf(w, "# HELP customers_created_total Customers created through the console\n")
	fmt.Fprintf(w, "# TYPE customers_created_total counter\n")
	fmt.Fprintf(w, "customers_created_total %d\n\n", s.appMetrics.customersCreated.Load())

	fmt.Fprintf(w, "# HELP logins_total Login attempts by result\n")
	fmt.Fprintf(w, "# TYPE logins_total counter\n")
	fmt.Fprintf(w, "logins_total{result=\"success\"} %d\n", s.appMetrics.logins.Load())
	fmt.Fprintf(w, "logins_total{result=\"failure\"} %d\n\n", s.appMetrics.failedLogins.Load())

	fmt.Fprintf(w, "# HELP cache_hits_total Total cache hits\n")
	fmt.Fprintf(w, "# TYPE cache_hits_total counter\n")
	fmt.Fprintf(w, "cache_hits_total{type=\"daily\"} %d\n", daily.Hits)
	fmt.Fprintf(w, "cache_hits_total{type=\"monthly\"} %d\n", monthly.Hits)
	fmt.Fprintf(w, "cache_hits_total{type=\"customer\"} %d\n\n", customers.Hits)

	fmt.Fprintf(w, "# HELP cache_misses_total Total cache misses\n")
	fmt.Fprintf(w, "# TYPE cache_misses_total counter\n")
	fmt.Fprintf(w, "cache_misses_total{type=\"daily\"} %d\n", daily.Misses)
	fmt.Fprintf(w, "cache_misses_total{type=\"monthly\"} %d\n", monthly.Misses)
	fmt.Fprintf(w, "cache_misses_total{type=\"customer\"} %d\n\n", customers.Misses)

	fmt.Fprintf(w, "# HELP cache_entries Current cache entries\n")
	fmt.Fprintf(w, "# TYPE cache_entries gauge\n")
	fmt.Fprintf(w, "cache_entries{type=\"daily\"} %d\n", daily.Entries)
	fmt.Fprintf(w, "cache_entries{type=\"monthly\"} %d\n", monthly.Entries)
	fmt.Fprintf(w, "cache_entries{type=\"customer\"} %d\n\n", customers.Entries)

	fmt.Fprintf(w, "# HELP rate_limit_hits_total Total rate limit hits\n")
	fmt.Fprintf(w, "# TYPE rate_limit_hits_total counter\n")
	fmt.Fprintf(w, "rate_limit_hits_total %d\n\n", rateLimitMetrics.TotalHits)

	fmt.Fprintf(w, "# HELP suspicious_requests_total Total suspicious requests detected\n")
	fmt.Fprintf(w, "# TYPE suspicious_requests_total counter\n")
	fmt.Fprintf(w, "suspicious_requests_total %d\n\n", securityMetrics.SuspiciousRequests)

	fmt.Fprintf(w, "# HELP invalid_client_ip_total Requests whose client address could not be parsed\n")
	fmt.Fprintf(w, "# TYPE invalid_client_ip_total counter\n")
	fmt.Fprintf(w, "invalid_client_ip_total %d\n\n", securityMetrics.InvalidIPAttempts)

	fmt.Fprintf(w, "# HELP active_rate_limit_clients Currently tracked rate limit clients\n")
	fmt.Fprintf(w, "# TYPE active_rate_limit_clients gauge\n")
	fmt.Fprintf(w, "active_rate_limit_clients %d\n\n", rateLimitMetrics.ClientCount)

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n\n", uptime.Seconds())
}

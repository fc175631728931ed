package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"tkpay/internal/log"
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
	_ = json.NewEncoder(w).Encode(health)
}

// handleReady reports whether the server can render pages. An unreachable
// remote store degrades the service but does not make it unready: the local
// backup keeps the app usable.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]interface{})

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if s.state == nil {
		checks["state"] = "not_configured"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["state"] = "ok"
		if s.state.RemoteAvailable() {
			checks["remote_store"] = "ok"
		} else {
			checks["remote_store"] = "unavailable: using local backup"
			if status == "ready" {
				status = "degraded"
			}
		}
	}

	checks["invoice_cache"] = map[string]interface{}{
		"entries": s.invoiceCache.Size(),
		"status":  "ok",
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
	_ = json.NewEncoder(w).Encode(response)
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.securityDetector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.traceMiddleware.GetMetrics()
	cacheStats := s.invoiceCache.Stats()
	uptime := time.Since(s.appMetrics.uptime)

	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", traceMetrics.TotalRequests)

	fmt.Fprintf(w, "# HELP http_errors_total HTTP responses with an error status\n")
	fmt.Fprintf(w, "# TYPE http_errors_total counter\n")
	fmt.Fprintf(w, "http_errors_total{class=\"4xx\"} %d\n", traceMetrics.ClientErrors)
	fmt.Fprintf(w, "http_errors_total{class=\"5xx\"} %d\n\n", traceMetrics.ServerErrors)

	fmt.Fprintf(w, "# HELP http_response_time_microseconds Average response time\n")
	fmt.Fprintf(w, "# TYPE http_response_time_microseconds gauge\n")
	fmt.Fprintf(w, "http_response_time_microseconds %d\n\n", traceMetrics.AverageResponseTime)

	fmt.Fprintf(w, "# HELP transactions_added_total Transactions recorded\n")
	fmt.Fprintf(w, "# TYPE transactions_added_total counter\n")
	fmt.Fprintf(w, "transactions_added_total %d\n\n", s.appMetrics.transactionsAdded.Load())

	fmt.Fprintf(w, "# HELP snapshots_saved_total History snapshots saved\n")
	fmt.Fprintf(w, "# TYPE snapshots_saved_total counter\n")
	fmt.Fprintf(w, "snapshots_saved_total %d\n\n", s.appMetrics.snapshotsSaved.Load())

	fmt.Fprintf(w, "# HELP remote_failures_total Remote history store failures seen by handlers\n")
	fmt.Fprintf(w, "# TYPE remote_failures_total counter\n")
	fmt.Fprintf(w, "remote_failures_total %d\n\n", s.appMetrics.remoteFailures.Load())

	fmt.Fprintf(w, "# HELP invoices_rendered_total Invoice downloads served\n")
	fmt.Fprintf(w, "# TYPE invoices_rendered_total counter\n")
	fmt.Fprintf(w, "invoices_rendered_total %d\n\n", s.appMetrics.invoicesRendered.Load())

	fmt.Fprintf(w, "# HELP cache_hits_total Total invoice cache hits\n")
	fmt.Fprintf(w, "# TYPE cache_hits_total counter\n")
	fmt.Fprintf(w, "cache_hits_total %d\n\n", cacheStats.Hits)

	fmt.Fprintf(w, "# HELP cache_misses_total Total invoice cache misses\n")
	fmt.Fprintf(w, "# TYPE cache_misses_total counter\n")
	fmt.Fprintf(w, "cache_misses_total %d\n\n", cacheStats.Misses)

	fmt.Fprintf(w, "# HELP cache_entries Current invoice cache entries\n")
	fmt.Fprintf(w, "# TYPE cache_entries gauge\n")
	fmt.Fprintf(w, "cache_entries %d\n\n", cacheStats.Size)

	fmt.Fprintf(w, "# HELP rate_limit_hits_total Total rate limit hits\n")
	fmt.Fprintf(w, "# TYPE rate_limit_hits_total counter\n")
	fmt.Fprintf(w, "rate_limit_hits_total %d\n\n", rateLimitMetrics.TotalHits)

	fmt.Fprintf(w, "# HELP suspicious_requests_total Total suspicious requests detected\n")
	fmt.Fprintf(w, "# TYPE suspicious_requests_total counter\n")
	fmt.Fprintf(w, "suspicious_requests_total %d\n\n", securityMetrics.SuspiciousRequests)

	fmt.Fprintf(w, "# HELP active_rate_limit_clients Currently tracked rate limit clients\n")
	fmt.Fprintf(w, "# TYPE active_rate_limit_clients gauge\n")
	fmt.Fprintf(w, "active_rate_limit_clients %d\n\n", s.rateLimiter.ActiveClients())

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n\n", uptime.Seconds())
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if s.templates == nil {
		s.logger.ErrorContext(r.Context(), "Templates not loaded",
			log.FieldPath, r.URL.Path,
			"error_type", log.ErrorTypeConfiguration)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	data := newPageData(s.state.Snapshot(), s.loc)
	// The banner is a one-time startup warning, not a status indicator.
	if data.RemoteWarning && !s.remoteWarned.CompareAndSwap(false, true) {
		data.RemoteWarning = false
	}
	if data.RemoteWarning {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Serving page without remote history store")
	}
	s.render(w, r, "index.html", data)
}

func (s *Server) handleTransactionsPartial(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "transactions", newTransactionsView(s.state.Snapshot(), s.loc))
}

func (s *Server) handleHistoryPartial(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "history", newHistoryView(s.state.Snapshot(), s.loc))
}

func (s *Server) handleRecipientsPartial(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "recipient-options", s.state.Snapshot().Recipients)
}

// render executes a named template. Partials are never cached by the browser
// or the service worker since they reflect live state.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	if s.templates == nil {
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.ErrorContext(r.Context(), "Template execution failed",
			log.FieldError, err,
			"template", name)
		http.Error(w, "render failed", http.StatusInternalServerError)
	}
}

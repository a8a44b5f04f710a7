package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"atscore/internal/errors"
	"atscore/internal/store"
)

const defaultHealthCheckTimeout = 5 * time.Second

// getHealthCheckTimeout returns the configured health check timeout
func (s *Server) getHealthCheckTimeout() time.Duration {
	if timeout := s.AppConfig.Observability.HealthCheck.Timeout; timeout > 0 {
		return timeout
	}
	return defaultHealthCheckTimeout
}

// healthHandler answers 503 only for an unreachable store or an expiring
// certificate. AI availability is reported but never degrades the status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.getHealthCheckTimeout())
	defer cancel()

	response := map[string]any{
		"status":  "healthy",
		"service": "atscore",
		"version": s.Version,
	}
	healthy := true

	storeStatus := map[string]any{"reachable": true}
	if err := s.services.Store.Ping(ctx); err != nil {
		storeStatus["reachable"] = false
		storeStatus["error"] = err.Error()
		healthy = false
	}
	response["store"] = storeStatus

	response["ai_enabled"] = s.services.Orchestrator.AIEnabled()
	if s.services.AI != nil {
		response["ai_models"] = s.services.AI.Health(ctx)
	}

	if certStatus := s.checkCertificateHealth(); certStatus != nil {
		response["certificates"] = certStatus
		if ok, _ := certStatus["healthy"].(bool); !ok {
			healthy = false
		}
	}

	status := http.StatusOK
	if !healthy {
		response["status"] = "degraded"
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, response)
}

// checkCertificateHealth checks the health of TLS certificates
func (s *Server) checkCertificateHealth() map[string]any {
	if s.CertReloader == nil {
		return nil
	}

	certStatus := make(map[string]any)
	timeToExpiry := time.Until(s.CertReloader.NotAfter())

	// Consider certificates unhealthy if they expire within 24 hours
	criticalThreshold := 24 * time.Hour
	warningThreshold := 7 * 24 * time.Hour

	certStatus["time_to_expiry_hours"] = int(timeToExpiry.Hours())
	certStatus["time_to_expiry"] = timeToExpiry.String()

	switch {
	case timeToExpiry <= 0:
		certStatus["healthy"] = false
		certStatus["status"] = "expired"
		certStatus["message"] = "Certificate has expired"
	case timeToExpiry <= criticalThreshold:
		certStatus["healthy"] = false
		certStatus["status"] = "critical"
		certStatus["message"] = "Certificate expires within 24 hours"
	case timeToExpiry <= warningThreshold:
		certStatus["healthy"] = true
		certStatus["status"] = "warning"
		certStatus["message"] = "Certificate expires within 7 days"
	default:
		certStatus["healthy"] = true
		certStatus["status"] = "ok"
		certStatus["message"] = "Certificate is valid"
	}

	stats := s.CertReloader.Stats()
	certStatus["reload"] = map[string]any{
		"watching":         stats.Watching,
		"reload_count":     stats.ReloadCount,
		"failure_count":    stats.FailureCount,
		"last_reload_time": stats.LastReloadTime,
		"last_error":       stats.LastError,
	}

	return certStatus
}

// statsHandler provides server statistics including rate limiting info
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"service":        "atscore",
		"version":        s.Version,
		"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
		"server": map[string]any{
			"max_request_size_bytes": s.MaxRequestSize,
			"api_keys_configured":    len(s.APIKeys),
			"tls_mode":               s.TLSConfig.Mode,
		},
		"ai_enabled": s.services.Orchestrator.AIEnabled(),
	}

	// Add rate limiting stats if enabled
	if s.RateLimiter != nil {
		response["rate_limiting"] = s.RateLimiter.GetStats()
	} else {
		response["rate_limiting"] = map[string]any{
			"enabled": false,
		}
	}

	// Add configuration info
	if s.RateLimit != nil {
		response["rate_limit_config"] = map[string]any{
			"enabled":          s.RateLimit.Enabled,
			"requests_per_min": s.RateLimit.RequestsPerMin,
			"burst_capacity":   s.RateLimit.BurstCapacity,
			"by_ip":            s.RateLimit.ByIP,
			"by_api_key":       s.RateLimit.ByAPIKey,
		}
	}

	s.writeJSON(w, http.StatusOK, response)
}

// writeJSON writes v as the JSON response body
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.LogError(err, "Failed to encode response")
	}
}

// writeError maps err onto an HTTP status. Validation failures are 4xx;
// everything else is logged and reported without internals.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var maxBytesErr *http.MaxBytesError
	switch {
	case stderrors.As(err, &maxBytesErr):
		writeErrorResponse(w, "Request too large", errors.ErrCodeInvalidRequest,
			fmt.Sprintf("request body exceeds %d bytes", maxBytesErr.Limit), http.StatusRequestEntityTooLarge)
	case stderrors.Is(err, store.ErrNotFound):
		writeErrorResponse(w, "Not found", errors.ErrCodeUserNotFound, "user not found", http.StatusNotFound)
	case errors.HasCode(err, errors.ErrCodeUserNotFound):
		writeErrorResponse(w, "Not found", errors.ErrCodeUserNotFound, appMessage(err), http.StatusNotFound)
	case errors.HasCode(err, errors.ErrCodeInvalidRequest), errors.HasCode(err, errors.ErrCodeIncompleteInputData):
		writeErrorResponse(w, "Invalid request", errors.CodeOf(err), appMessage(err), http.StatusBadRequest)
	default:
		s.Logger.LogError(err, "Request failed")
		writeErrorResponse(w, "Internal error", errors.CodeOf(err), "the request could not be completed", http.StatusInternalServerError)
	}
}

// appMessage returns the message of the outermost AppError in err
func appMessage(err error) string {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

// writeErrorResponse writes a standardized error response
func writeErrorResponse(w http.ResponseWriter, error, code, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error:   error,
		Code:    code,
		Message: message,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode error response", http.StatusInternalServerError)
	}
}

package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes and middleware
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Rate limit, then authenticate, then bound the body
	protect := func(h http.HandlerFunc) http.HandlerFunc {
		return s.rateLimitMiddleware()(s.authMiddleware(s.requestSizeLimitMiddleware()(h)))
	}

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /stats", s.statsHandler)

	mux.HandleFunc("POST /v1/score", protect(s.scoreHandler))
	mux.HandleFunc("POST /v1/analyze/generated", protect(s.analyzeGeneratedHandler))
	mux.HandleFunc("POST /v1/analyze/job", protect(s.analyzeJobHandler))
	mux.HandleFunc("POST /v1/match", protect(s.matchHandler))

	mux.HandleFunc("POST /v1/users", protect(s.createUserHandler))
	mux.HandleFunc("GET /v1/users/{id}", protect(s.getUserHandler))
	mux.HandleFunc("POST /v1/users/{id}/resume-versions", protect(s.resumeVersionHandler))
	mux.HandleFunc("POST /v1/users/{id}/submissions", protect(s.submissionHandler))
	mux.HandleFunc("POST /v1/users/{id}/recompute", protect(s.recomputeHandler))
	mux.HandleFunc("GET /v1/users/{id}/summary", protect(s.summaryHandler))
	mux.HandleFunc("GET /v1/users/{id}/events", protect(s.eventsHandler))

	if handler := s.observability.PrometheusHandler(); handler != nil {
		endpoint := s.AppConfig.Observability.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		mux.Handle("GET "+endpoint, handler)
	}

	return mux
}

// Handler returns the fully wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	return s.observability.HTTPMiddleware()(s.setupRoutes())
}

// authMiddleware provides API key authentication
func (s *Server) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Skip authentication if no API keys are configured
		if len(s.APIKeys) == 0 {
			next(w, r)
			return
		}

		apiKey := requestAPIKey(r)
		if apiKey == "" {
			s.Logger.Info("Authentication failed: missing API key",
				"endpoint", r.URL.Path,
				"client_ip", r.RemoteAddr)
			writeErrorResponse(w, "Missing API key", "UNAUTHORIZED",
				"X-API-Key header or Authorization Bearer token required", http.StatusUnauthorized)
			return
		}

		if !s.APIKeys[apiKey] {
			s.Logger.Info("Authentication failed: invalid API key",
				"endpoint", r.URL.Path,
				"client_ip", r.RemoteAddr,
				"api_key_prefix", maskAPIKey(apiKey))
			writeErrorResponse(w, "Invalid API key", "UNAUTHORIZED", "Unauthorized access", http.StatusUnauthorized)
			return
		}

		s.Logger.Debug("API authentication successful",
			"endpoint", r.URL.Path,
			"api_key_prefix", maskAPIKey(apiKey))

		next(w, r)
	}
}

// requestAPIKey reads X-API-Key, falling back to a Bearer token
func requestAPIKey(r *http.Request) string {
	if apiKey := r.Header.Get("X-API-Key"); apiKey != "" {
		return apiKey
	}
	if after, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return after
	}
	return ""
}

// requestSizeLimitMiddleware limits the size of incoming requests
func (s *Server) requestSizeLimitMiddleware() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if s.MaxRequestSize > 0 {
				r.Body = http.MaxBytesReader(w, r.Body, s.MaxRequestSize)
			}
			next(w, r)
		}
	}
}

// maskAPIKey masks an API key for logging (shows only first 8 characters)
func maskAPIKey(apiKey string) string {
	if len(apiKey) <= 8 {
		return "****"
	}
	return apiKey[:8] + "****"
}

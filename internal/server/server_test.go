package server

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"atscore/internal/aggregate"
	"atscore/internal/ai"
	"atscore/internal/analysis"
	"atscore/internal/config"
	"atscore/internal/errors"
	"atscore/internal/store"
	"atscore/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDraft = `{"targetRole":"Backend Engineer","experience":"Senior",
	"skills":[{"name":"Go","validated":true},{"name":"SQL"}]}`

const sampleJobMatch = `{"resumeText":"Go developer with 6 years of experience building PostgreSQL services",
	"job":{"title":"Backend Engineer","skills":["Go","PostgreSQL","Kubernetes"],"experienceLevel":"senior"}}`

var failingCompleter = ai.CompleterFunc(func(context.Context, ai.CompletionRequest) (*ai.Completion, error) {
	return nil, stderrors.New("upstream unavailable")
})

type testServer struct {
	*Server
	handler http.Handler
	store   store.Store
}

func newTestServer(t *testing.T, completer ai.Completer, mutate func(*ServerConfig)) *testServer {
	t.Helper()
	st, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "atscore.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	orchestrator := analysis.NewOrchestrator(completer)
	aggregator := aggregate.NewAggregator(st)
	services := Services{
		Orchestrator: orchestrator,
		Matcher:      analysis.NewJobMatchScorer(orchestrator),
		Store:        st,
		Aggregator:   aggregator,
		Recorder:     aggregate.NewRecorder(st, aggregator, nil),
	}

	cfg := ServerConfig{Host: "127.0.0.1", Port: "0", Version: "test", MaxRequestSize: 1 << 20}
	if mutate != nil {
		mutate(&cfg)
	}
	s := NewServer(&config.Config{}, cfg, services, nil, errors.Discard())
	t.Cleanup(s.cleanup)

	return &testServer{Server: s, handler: s.Handler(), store: st}
}

func (ts *testServer) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(&v), rec.Body.String())
	return v
}

func TestScoreEndpoint(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	rec := ts.do(t, http.MethodPost, "/v1/score", sampleDraft)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 40, decode[types.ScoreReport](t, rec).Score)
}

func TestScoreEndpointRejectsBadInput(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	tests := []struct {
		name        string
		body        string
		contentType string
		wantCode    string
	}{
		{"empty draft", `{}`, "application/json", errors.ErrCodeIncompleteInputData},
		{"malformed json", `{"targetRole":`, "application/json", errors.ErrCodeInvalidRequest},
		{"wrong content type", sampleDraft, "text/plain", errors.ErrCodeInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/v1/score", tt.body, "Content-Type", tt.contentType)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.wantCode, decode[ErrorResponse](t, rec).Code)
		})
	}
}

func TestAnalyzeEndpointsFallBackWhenAIFails(t *testing.T) {
	ts := newTestServer(t, failingCompleter, nil)

	t.Run("generated", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/v1/analyze/generated", sampleDraft)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		result := decode[types.AnalysisResult](t, rec)
		assert.Equal(t, types.SourceFallback, result.Source)
		assert.NotNil(t, result.SkillsMatched)
		assert.NotNil(t, result.ImprovementSuggestions)
	})

	t.Run("job", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/v1/analyze/job", sampleJobMatch)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		result := decode[types.AnalysisResult](t, rec)
		assert.Equal(t, types.SourceFallback, result.Source)
		assert.Contains(t, result.SkillsMatched, "Go")
		assert.Contains(t, result.SkillsMissing, "Kubernetes")
		assert.GreaterOrEqual(t, result.ATSScore, 0)
		assert.LessOrEqual(t, result.ATSScore, 100)
	})

	t.Run("match", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/v1/match", sampleJobMatch)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		result := decode[types.MatchResult](t, rec)
		assert.True(t, result.ParseFailed)
		assert.Equal(t, types.SourceFallback, result.Source)
		assert.NotNil(t, result.ParsedResume.Skills)
	})
}

func TestAnalyzeJobUsesAIReply(t *testing.T) {
	completer := ai.CompleterFunc(func(context.Context, ai.CompletionRequest) (*ai.Completion, error) {
		return &ai.Completion{Text: "Here you go:\n```json\n" +
			`{"atsScore": 140, "skillsMatched": ["Go"], "skillsMissing": ["Kubernetes"],` +
			`"experienceMatch": "strong", "improvementSuggestions": ["Add metrics"], "strengthsIdentified": ["Go"]}` +
			"\n```"}, nil
	})
	ts := newTestServer(t, completer, nil)

	rec := ts.do(t, http.MethodPost, "/v1/analyze/job", sampleJobMatch)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[types.AnalysisResult](t, rec)
	assert.Equal(t, types.SourceAI, result.Source)
	assert.Equal(t, 100, result.ATSScore)
	assert.Equal(t, []string{"Kubernetes"}, result.SkillsMissing)
}

func TestJobMatchValidation(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	tests := []struct {
		name string
		body string
	}{
		{"missing resume text", `{"job":{"title":"Engineer"}}`},
		{"blank resume text", `{"resumeText":"   ","job":{"title":"Engineer"}}`},
		{"empty job", `{"resumeText":"Go developer","job":{}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/v1/match", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, errors.ErrCodeInvalidRequest, decode[ErrorResponse](t, rec).Code)
		})
	}

	rec := ts.do(t, http.MethodPost, "/v1/match", `{"job":{"title":"Engineer"}}`)
	assert.Contains(t, decode[ErrorResponse](t, rec).Message, "resumeText")
}

func TestUserScoreFlow(t *testing.T) {
	ts := newTestServer(t, failingCompleter, nil)

	rec := ts.do(t, http.MethodPost, "/v1/users", `{"email":"ada@example.com","name":"Ada"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	user := decode[types.User](t, rec)
	require.NotEmpty(t, user.ID)
	base := "/v1/users/" + user.ID

	rec = ts.do(t, http.MethodPost, base+"/resume-versions", `{"draft":`+sampleDraft+`,"analyze":true}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	version := decode[ResumeVersionResponse](t, rec)
	assert.Equal(t, 40, version.Score)
	require.NotNil(t, version.Analysis)
	assert.Equal(t, types.SourceFallback, version.Analysis.Source)
	require.NotNil(t, version.Summary)
	assert.Equal(t, 40, version.Summary.LatestScore)
	assert.Equal(t, 40, version.Summary.AverageScore)
	assert.Equal(t, 1, version.Summary.EventCount)

	body := strings.Replace(sampleJobMatch, `{"resumeText"`, `{"jobId":"job-1","resumeText"`, 1)
	rec = ts.do(t, http.MethodPost, base+"/submissions", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	submission := decode[SubmissionResponse](t, rec)
	assert.Equal(t, "job-1", submission.Event.JobID)
	assert.Equal(t, submission.Match.ATSScore, submission.Event.Score)
	require.NotNil(t, submission.Summary)
	assert.Equal(t, 2, submission.Summary.EventCount)
	wantAverage := int(math.Round(float64(40+submission.Match.ATSScore) / 2))
	assert.Equal(t, wantAverage, submission.Summary.AverageScore)
	assert.GreaterOrEqual(t, submission.Summary.Improvement, aggregate.MinImprovement)
	assert.LessOrEqual(t, submission.Summary.Improvement, aggregate.MaxImprovement)

	rec = ts.do(t, http.MethodGet, base+"/summary", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 2, decode[types.UserScoreSummary](t, rec).EventCount)

	rec = ts.do(t, http.MethodGet, base+"/events", "")
	require.Equal(t, http.StatusOK, rec.Code)
	events := decode[map[string][]types.ScoredEvent](t, rec)["events"]
	assert.Len(t, events, 2)

	rec = ts.do(t, http.MethodGet, base+"/events?source="+types.EventSourceSubmission, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[map[string][]types.ScoredEvent](t, rec)["events"], 1)

	rec = ts.do(t, http.MethodPost, base+"/recompute", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	recompute := decode[RecomputeResponse](t, rec)
	assert.True(t, recompute.Updated)
	assert.Equal(t, wantAverage, recompute.Summary.AverageScore)
}

func TestUnknownUserIsNotFound(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	for _, path := range []string{"/v1/users/missing/summary", "/v1/users/missing/events", "/v1/users/missing"} {
		rec := ts.do(t, http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}

	rec := ts.do(t, http.MethodPost, "/v1/users/missing/recompute", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPost, "/v1/users/missing/resume-versions", `{"draft":`+sampleDraft+`}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSummaryMissingBeforeFirstEvent(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	rec := ts.do(t, http.MethodPost, "/v1/users", `{"email":"grace@example.com"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	user := decode[types.User](t, rec)

	rec = ts.do(t, http.MethodGet, "/v1/users/"+user.ID+"/summary", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateUserValidation(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	rec := ts.do(t, http.MethodPost, "/v1/users", `{"email":"not-an-email"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Message, "email")

	rec = ts.do(t, http.MethodPost, "/v1/users", `{"email":"dup@example.com"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = ts.do(t, http.MethodPost, "/v1/users", `{"email":"dup@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthMiddleware(t *testing.T) {
	ts := newTestServer(t, nil, func(cfg *ServerConfig) {
		cfg.APIKeys = []string{"secret-key-123456"}
	})

	tests := []struct {
		name     string
		headers  []string
		wantCode int
	}{
		{"missing key", nil, http.StatusUnauthorized},
		{"wrong key", []string{"X-API-Key", "nope"}, http.StatusUnauthorized},
		{"header key", []string{"X-API-Key", "secret-key-123456"}, http.StatusOK},
		{"bearer token", []string{"Authorization", "Bearer secret-key-123456"}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/v1/score", sampleDraft, tt.headers...)
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}

	// Health stays public
	rec := ts.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	ts := newTestServer(t, nil, func(cfg *ServerConfig) {
		cfg.RateLimit = &config.RateLimitConfig{Enabled: true, RequestsPerMin: 1, BurstCapacity: 1, ByIP: true}
	})

	rec := ts.do(t, http.MethodPost, "/v1/score", sampleDraft)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPost, "/v1/score", sampleDraft)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	// A different client has its own budget
	rec = ts.do(t, http.MethodPost, "/v1/score", sampleDraft, "X-Forwarded-For", "203.0.113.9")
	assert.Equal(t, http.StatusOK, rec.Code)

	stats := ts.RateLimiter.GetStats()
	assert.Equal(t, int64(1), stats["rejected_requests"])
}

func TestLimiterEvictsIdleClients(t *testing.T) {
	m := NewRateLimiter(60, 2, nil)
	defer m.Close()

	allowed, _ := m.Allow("ip:192.0.2.1")
	require.True(t, allowed)
	allowed, _ = m.Allow("ip:192.0.2.2")
	require.True(t, allowed)

	assert.Equal(t, 0, m.evictIdle(time.Now(), time.Minute))
	assert.Equal(t, 2, m.evictIdle(time.Now().Add(2*time.Minute), time.Minute))
	assert.Equal(t, 0, m.GetStats()["active_limiters"])
}

func TestRequestSizeLimit(t *testing.T) {
	ts := newTestServer(t, nil, func(cfg *ServerConfig) { cfg.MaxRequestSize = 16 })

	rec := ts.do(t, http.MethodPost, "/v1/score", sampleDraft)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestHealthAndStats(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	rec := ts.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	health := decode[map[string]any](t, rec)
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, false, health["ai_enabled"])
	assert.Equal(t, true, health["store"].(map[string]any)["reachable"])

	rec = ts.do(t, http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[map[string]any](t, rec)
	assert.Equal(t, "atscore", stats["service"])
	assert.Equal(t, false, stats["rate_limiting"].(map[string]any)["enabled"])
}

func TestHealthDegradedWhenStoreDown(t *testing.T) {
	ts := newTestServer(t, nil, nil)
	require.NoError(t, ts.store.Close())

	rec := ts.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", decode[map[string]any](t, rec)["status"])
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	rec := ts.do(t, http.MethodGet, "/v1/score", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded for", map[string]string{"X-Forwarded-For": "garbage, 198.51.100.7, 10.0.0.1"}, "10.0.0.2:1234", "198.51.100.7"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.8"}, "10.0.0.2:1234", "198.51.100.8"},
		{"remote addr", nil, "192.0.2.1:5555", "192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(req))
		})
	}
}

func TestMaskAPIKey(t *testing.T) {
	assert.Equal(t, "****", maskAPIKey("short"))
	assert.Equal(t, "abcdefgh****", maskAPIKey("abcdefghijkl"))
}

package server

import (
	"context"
	"net/http"

	"atscore/internal/aggregate"
	"atscore/internal/errors"
	"atscore/internal/scoring"
	"atscore/internal/types"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// startSpan opens a span on the server tracer
func (s *Server) startSpan(r *http.Request, name string) (context.Context, oteltrace.Span) {
	return s.observability.Tracer("atscore.api").Start(r.Context(), name)
}

// failRequest records err on the span and writes it to the client
func (s *Server) failRequest(w http.ResponseWriter, span oteltrace.Span, err error) {
	span.RecordError(err)
	span.SetAttributes(attribute.String("error.code", errors.CodeOf(err)))
	s.writeError(w, err)
}

// scoreHandler scores a draft with the deterministic calculator only
func (s *Server) scoreHandler(w http.ResponseWriter, r *http.Request) {
	_, span := s.startSpan(r, "api.score")
	defer span.End()

	var draft types.ResumeDraft
	if err := parseJSONRequest(r, &draft); err != nil {
		s.failRequest(w, span, err)
		return
	}
	draft.Normalize()
	if err := validateDraft(draft); err != nil {
		s.failRequest(w, span, err)
		return
	}

	report := types.ScoreReport{Score: scoring.ComputeScore(draft)}
	span.SetAttributes(attribute.Int("ats.score", report.Score))
	s.writeJSON(w, http.StatusOK, report)
}

// analyzeGeneratedHandler reviews a draft built through the intake flow
func (s *Server) analyzeGeneratedHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.startSpan(r, "api.analyze_generated")
	defer span.End()

	var draft types.ResumeDraft
	if err := parseJSONRequest(r, &draft); err != nil {
		s.failRequest(w, span, err)
		return
	}
	draft.Normalize()
	if err := validateDraft(draft); err != nil {
		s.failRequest(w, span, err)
		return
	}

	result := s.services.Orchestrator.AnalyzeGenerated(ctx, draft)
	span.SetAttributes(
		attribute.Int("ats.score", result.ATSScore),
		attribute.String("analysis.source", result.Source),
	)
	s.writeJSON(w, http.StatusOK, result)
}

// decodeJobMatch parses and validates a resume text plus job body
func (s *Server) decodeJobMatch(r *http.Request) (JobMatchRequest, error) {
	var req JobMatchRequest
	if err := parseJSONRequest(r, &req); err != nil {
		return req, err
	}
	if err := s.validateRequest(req); err != nil {
		return req, err
	}
	return req, validateJob(req.Job)
}

// analyzeJobHandler scores raw resume text against a job without parsing it
func (s *Server) analyzeJobHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.startSpan(r, "api.analyze_job")
	defer span.End()

	req, err := s.decodeJobMatch(r)
	if err != nil {
		s.failRequest(w, span, err)
		return
	}
	span.SetAttributes(
		attribute.Int("request.resume_length", len(req.ResumeText)),
		attribute.Int("request.job_skills", len(req.Job.Skills)),
	)

	result := s.services.Orchestrator.AnalyzeForJob(ctx, req.ResumeText, req.Job)
	span.SetAttributes(
		attribute.Int("ats.score", result.ATSScore),
		attribute.String("analysis.source", result.Source),
	)
	s.writeJSON(w, http.StatusOK, result)
}

// matchHandler parses the resume first, then scores it against the job
func (s *Server) matchHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.startSpan(r, "api.match")
	defer span.End()

	req, err := s.decodeJobMatch(r)
	if err != nil {
		s.failRequest(w, span, err)
		return
	}

	result := s.services.Matcher.MatchResumeToJob(ctx, req.ResumeText, req.Job)
	span.SetAttributes(
		attribute.Int("ats.score", result.ATSScore),
		attribute.String("analysis.source", result.Source),
		attribute.Bool("resume.parse_failed", result.ParseFailed),
	)
	s.writeJSON(w, http.StatusOK, result)
}

// createUserHandler registers a user that events can be recorded against
func (s *Server) createUserHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.startSpan(r, "api.create_user")
	defer span.End()

	var req CreateUserRequest
	if err := parseJSONRequest(r, &req); err != nil {
		s.failRequest(w, span, err)
		return
	}
	if err := s.validateRequest(req); err != nil {
		s.failRequest(w, span, err)
		return
	}

	user := &types.User{Email: req.Email, Name: req.Name}
	if err := s.services.Store.CreateUser(ctx, user); err != nil {
		s.failRequest(w, span, err)
		return
	}
	s.Logger.Info("User created", "user_id", user.ID)
	s.writeJSON(w, http.StatusCreated, user)
}

// lookupUser resolves the {id} path value, writing 404 when it is unknown
func (s *Server) lookupUser(ctx context.Context, w http.ResponseWriter, r *http.Request, span oteltrace.Span) (*types.User, bool) {
	userID := r.PathValue("id")
	span.SetAttributes(attribute.String("user.id", userID))

	user, err := s.services.Store.GetUser(ctx, userID)
	if err != nil {
		s.failRequest(w, span, err)
		return nil, false
	}
	return user, true
}

// getUserHandler returns the user record with its stored summary
func (s *Server) getUserHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.startSpan(r, "api.get_user")
	defer span.End()

	user, ok := s.lookupUser(ctx, w, r, span)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, user)
}

// resumeVersionHandler scores a saved draft and records it for the user
func (s *Server) resumeVersionHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.startSpan(r, "api.record_resume_version")
	defer span.End()

	user, ok := s.lookupUser(ctx, w, r, span)
	if !ok {
		return
	}

	var req ResumeVersionRequest
	if err := parseJSONRequest(r, &req); err != nil {
		s.failRequest(w, span, err)
		return
	}
	req.Draft.Normalize()
	if err := validateDraft(req.Draft); err != nil {
		s.failRequest(w, span, err)
		return
	}

	resp := ResumeVersionResponse{Score: scoring.ComputeScore(req.Draft)}
	if req.Analyze {
		analysis := s.services.Orchestrator.AnalyzeGenerated(ctx, req.Draft)
		resp.Analysis = &analysis
	}

	recording, err := s.services.Recorder.RecordResumeVersion(ctx, user.ID, resp.Score)
	if err != nil {
		s.failRequest(w, span, err)
		return
	}
	resp.Event = recording.Event
	resp.Summary = recording.Summary

	span.SetAttributes(attribute.Int("ats.score", resp.Score))
	s.writeJSON(w, http.StatusCreated, resp)
}

// submissionHandler matches a resume against a job and records the score
func (s *Server) submissionHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.startSpan(r, "api.record_submission")
	defer span.End()

	user, ok := s.lookupUser(ctx, w, r, span)
	if !ok {
		return
	}

	var req SubmissionRequest
	if err := parseJSONRequest(r, &req); err != nil {
		s.failRequest(w, span, err)
		return
	}
	if err := s.validateRequest(req); err != nil {
		s.failRequest(w, span, err)
		return
	}
	if err := validateJob(req.Job); err != nil {
		s.failRequest(w, span, err)
		return
	}

	match := s.services.Matcher.MatchResumeToJob(ctx, req.ResumeText, req.Job)
	recording, err := s.services.Recorder.RecordSubmission(ctx, user.ID, req.JobID, match.ATSScore)
	if err != nil {
		s.failRequest(w, span, err)
		return
	}

	span.SetAttributes(
		attribute.Int("ats.score", match.ATSScore),
		attribute.String("analysis.source", match.Source),
	)
	s.writeJSON(w, http.StatusCreated, SubmissionResponse{
		Match:   match,
		Event:   recording.Event,
		Summary: recording.Summary,
	})
}

// recomputeHandler rebuilds the user's summary from every recorded event.
// A recompute that could not complete keeps the previous summary.
func (s *Server) recomputeHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.startSpan(r, "api.recompute")
	defer span.End()

	user, ok := s.lookupUser(ctx, w, r, span)
	if !ok {
		return
	}

	if summary := s.services.Aggregator.Recompute(ctx, user.ID); summary != nil {
		s.writeJSON(w, http.StatusOK, RecomputeResponse{Updated: true, Summary: summary})
		return
	}
	span.SetAttributes(attribute.Bool("recompute.updated", false))
	s.writeJSON(w, http.StatusOK, RecomputeResponse{Updated: false, Summary: user.Summary})
}

// summaryHandler returns the stored summary, or 404 when none was computed yet
func (s *Server) summaryHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.startSpan(r, "api.summary")
	defer span.End()

	user, ok := s.lookupUser(ctx, w, r, span)
	if !ok {
		return
	}
	if user.Summary == nil {
		s.failRequest(w, span, errors.NewValidationError(errors.ErrCodeUserNotFound,
			"no score summary recorded for user", nil).WithContext("user_id", user.ID))
		return
	}
	s.writeJSON(w, http.StatusOK, user.Summary)
}

// eventsHandler lists the user's events, newest first. ?source= narrows
// the listing to one collection.
func (s *Server) eventsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.startSpan(r, "api.events")
	defer span.End()

	user, ok := s.lookupUser(ctx, w, r, span)
	if !ok {
		return
	}

	sources := []string{types.EventSourceResumeVersion, types.EventSourceSubmission}
	if source := r.URL.Query().Get("source"); source != "" {
		sources = []string{source}
	}

	lists := make([][]types.ScoredEvent, 0, len(sources))
	for _, source := range sources {
		events, err := s.services.Store.ListEvents(ctx, user.ID, source)
		if err != nil {
			s.failRequest(w, span, err)
			return
		}
		lists = append(lists, events)
	}

	events := aggregate.Merge(lists...)
	span.SetAttributes(attribute.Int("events.count", len(events)))
	s.writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

package server

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"atscore/internal/errors"
	"atscore/internal/types"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

// JobMatchRequest is the body of /v1/analyze/job and /v1/match
type JobMatchRequest struct {
	ResumeText string                  `json:"resumeText" validate:"notblank,max=100000"`
	Job        types.JobRequirementSet `json:"job"`
}

// CreateUserRequest is the body of POST /v1/users
type CreateUserRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
	Name  string `json:"name" validate:"max=200"`
}

// ResumeVersionRequest records a saved resume version. The draft is scored
// deterministically; Analyze additionally runs the AI review.
type ResumeVersionRequest struct {
	Draft   types.ResumeDraft `json:"draft"`
	Analyze bool              `json:"analyze"`
}

// SubmissionRequest records a job submission scored against the job
type SubmissionRequest struct {
	JobID      string                  `json:"jobId" validate:"notblank,max=200"`
	ResumeText string                  `json:"resumeText" validate:"notblank,max=100000"`
	Job        types.JobRequirementSet `json:"job"`
}

// ResumeVersionResponse is the body returned after recording a resume version.
// Summary is null when the recompute did not complete.
type ResumeVersionResponse struct {
	Score    int                     `json:"score"`
	Analysis *types.AnalysisResult   `json:"analysis,omitempty"`
	Event    types.ScoredEvent       `json:"event"`
	Summary  *types.UserScoreSummary `json:"summary"`
}

// SubmissionResponse is the body returned after recording a submission
type SubmissionResponse struct {
	Match   types.MatchResult       `json:"match"`
	Event   types.ScoredEvent       `json:"event"`
	Summary *types.UserScoreSummary `json:"summary"`
}

// RecomputeResponse reports whether the stored summary was rebuilt
type RecomputeResponse struct {
	Updated bool                    `json:"updated"`
	Summary *types.UserScoreSummary `json:"summary"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	// Report JSON field names rather than Go field names
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateRequest runs struct validation and converts the result to INVALID_REQUEST
func (s *Server) validateRequest(req any) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest, "invalid request", err)
	}

	fields := make([]string, 0, len(verrs))
	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
		messages = append(messages, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
	}
	return errors.NewValidationError(errors.ErrCodeInvalidRequest, strings.Join(messages, "; "), nil).
		WithContext("fields", fields)
}

// validateJob rejects a job that carries nothing to match against
func validateJob(job types.JobRequirementSet) error {
	if strings.TrimSpace(job.Title) == "" &&
		strings.TrimSpace(job.Description) == "" &&
		len(job.Skills) == 0 &&
		len(job.Requirements) == 0 {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"job must include a title, description, skills or requirements", nil)
	}
	return nil
}

// validateDraft rejects a draft with no content at all
func validateDraft(draft types.ResumeDraft) error {
	if draft.IsEmpty() {
		return errors.NewValidationError(errors.ErrCodeIncompleteInputData, "resume draft is empty", nil)
	}
	return nil
}

// parseJSONRequest parses JSON request body into the provided struct
func parseJSONRequest(r *http.Request, v any) error {
	mediaType, _, _ := strings.Cut(r.Header.Get("Content-Type"), ";")
	if strings.TrimSpace(mediaType) != "application/json" {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest, "content-type must be application/json", nil)
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if stderrors.As(err, &maxBytesErr) {
			return errors.NewValidationError(errors.ErrCodeInvalidRequest,
				fmt.Sprintf("request body too large (limit is %d bytes)", maxBytesErr.Limit), err)
		}
		return errors.NewIOError(errors.ErrCodeInvalidRequest, "failed to read request body", err)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest, "failed to parse JSON", err)
	}
	return nil
}

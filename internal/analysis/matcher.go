package analysis

import (
	"context"

	"atscore/internal/types"
)

// JobMatchScorer parses a resume and then scores it against a job
type JobMatchScorer struct {
	orchestrator *Orchestrator
}

// NewJobMatchScorer creates a scorer backed by o
func NewJobMatchScorer(o *Orchestrator) *JobMatchScorer {
	return &JobMatchScorer{orchestrator: o}
}

// MatchResumeToJob never fails. When parsing does not succeed the empty
// parsed shell is used and scoring proceeds on the raw text.
func (s *JobMatchScorer) MatchResumeToJob(ctx context.Context, resumeText string, job types.JobRequirementSet) types.MatchResult {
	parsed, err := s.orchestrator.ParseResume(ctx, resumeText)
	parseFailed := err != nil
	if parseFailed {
		s.orchestrator.logger.LogError(err, "Resume parsing failed, scoring with empty parsed data")
		parsed = types.EmptyParsedResume()
	}

	return types.MatchResult{
		AnalysisResult: s.orchestrator.AnalyzeParsedForJob(ctx, resumeText, parsed, job),
		ParsedResume:   parsed,
		ParseFailed:    parseFailed,
	}
}

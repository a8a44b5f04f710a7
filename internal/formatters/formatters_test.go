package formatters

import (
	"encoding/json"
	"testing"
	"time"

	"atscore/internal/aggregate"
	"atscore/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleAnalysis() types.AnalysisResult {
	result := types.NewAnalysisResult()
	result.ATSScore = 72
	result.SkillsMatched = []string{"Go", "SQL"}
	result.SkillsMissing = []string{"Kubernetes"}
	result.ExperienceMatch = "meets"
	result.ImprovementSuggestions = []string{"Add Kubernetes experience", "Quantify achievements"}
	result.StrengthsIdentified = []string{"Strong backend skills"}
	result.Source = types.SourceFallback
	return result
}

func TestFormatAnalysis(t *testing.T) {
	tests := []struct {
		format string
		want   []string
	}{
		{"text", []string{"=== ATS ANALYSIS ===", "ATS Score: 72/100", "--- Skills Missing ---", "- Kubernetes", "2. Quantify achievements", "Source: fallback"}},
		{"markdown", []string{"# ATS Analysis", "**ATS Score:** 72/100", "## Skills Matched", "- Go", "1. Add Kubernetes experience"}},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			out, err := GlobalRegistry.Format(sampleAnalysis(), tt.format)
			require.NoError(t, err)
			for _, want := range tt.want {
				assert.Contains(t, out, want)
			}
		})
	}
}

func TestFormatPointerUsesSameFormatter(t *testing.T) {
	result := sampleAnalysis()
	byValue, err := GlobalRegistry.Format(result, "text")
	require.NoError(t, err)
	byPointer, err := GlobalRegistry.Format(&result, "text")
	require.NoError(t, err)
	assert.Equal(t, byValue, byPointer)
}

func TestFormatJSONHandlesAnyType(t *testing.T) {
	out, err := GlobalRegistry.Format(map[string]int{"score": 40}, "json")
	require.NoError(t, err)

	var decoded map[string]int
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, 40, decoded["score"])

	out, err = GlobalRegistry.Format(types.ScoreReport{Score: 40}, "json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"score":40}`, out)
}

func TestFormatUnknownTypeOrFormat(t *testing.T) {
	_, err := GlobalRegistry.Format(struct{}{}, "text")
	assert.Error(t, err)

	_, err = GlobalRegistry.Format(types.ScoreReport{Score: 1}, "yaml")
	assert.Error(t, err)
}

func TestFormatMatch(t *testing.T) {
	match := types.MatchResult{
		AnalysisResult: sampleAnalysis(),
		ParsedResume: types.ParsedResume{
			Skills:          []string{"Go"},
			Experience:      []types.ParsedExperience{{Company: "Acme", Title: "Engineer", Duration: "3 years"}},
			Education:       []types.ParsedEducation{{School: "State University", Degree: "BSc"}},
			ExperienceYears: 3,
		},
		ParseFailed: true,
	}

	out, err := GlobalRegistry.Format(match, "text")
	require.NoError(t, err)
	assert.Contains(t, out, "=== JOB MATCH ===")
	assert.Contains(t, out, "Estimated Experience: 3.0 years")
	assert.Contains(t, out, "- Engineer at Acme (3 years)")
	assert.Contains(t, out, "- BSc, State University")
	assert.Contains(t, out, "could not be parsed")
}

func TestFormatScoreAndSummary(t *testing.T) {
	out, err := GlobalRegistry.Format(types.ScoreReport{Score: 40}, "text")
	require.NoError(t, err)
	assert.Contains(t, out, "Score: 40/100")

	summary := types.UserScoreSummary{
		UserID:       "u1",
		AverageScore: 70,
		LatestScore:  80,
		Improvement:  12,
		EventCount:   3,
		UpdatedAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	out, err = GlobalRegistry.Format(&summary, "markdown")
	require.NoError(t, err)
	assert.Contains(t, out, "# Score Summary for u1")
	assert.Contains(t, out, "**Improvement:** +12%")
	assert.Contains(t, out, "**Updated:** 2026-01-02T03:04:05Z")
}

func TestFormatRecordingAndEvents(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	event := types.ScoredEvent{ID: "e1", UserID: "u1", Score: 64, Source: types.EventSourceSubmission, CreatedAt: created, JobID: "job-9"}

	out, err := GlobalRegistry.Format(&aggregate.Recording{Event: event}, "text")
	require.NoError(t, err)
	assert.Contains(t, out, "job=job-9")
	assert.Contains(t, out, "run recompute")

	out, err = GlobalRegistry.Format([]types.ScoredEvent{event}, "markdown")
	require.NoError(t, err)
	assert.Contains(t, out, "| 2026-03-01T10:00:00Z | submission | 64 | job-9 |")

	out, err = GlobalRegistry.Format([]types.ScoredEvent{}, "text")
	require.NoError(t, err)
	assert.Contains(t, out, "No scored events.")
}

func TestGetSupportedFormats(t *testing.T) {
	assert.Equal(t, []string{"json", "markdown", "text"}, GlobalRegistry.GetSupportedFormats())
}

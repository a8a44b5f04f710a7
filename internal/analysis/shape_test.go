package analysis

import (
	"encoding/json"
	"testing"

	"atscore/internal/errors"
	"atscore/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerceAnalysisCompleteObject(t *testing.T) {
	raw := map[string]any{
		"atsScore":               json.Number("87.6"),
		"skillsMatched":          []any{"Go", " SQL "},
		"skillsMissing":          []any{"Kubernetes"},
		"experienceMatch":        "strong",
		"improvementSuggestions": []any{"Quantify impact"},
		"strengthsIdentified":    []any{"Clear structure"},
	}

	result, issues := CoerceAnalysis(raw)
	assert.True(t, issues.Empty(), "unexpected issues: %+v", issues)
	assert.Equal(t, 88, result.ATSScore)
	assert.Equal(t, []string{"Go", "SQL"}, result.SkillsMatched)
	assert.Equal(t, []string{"Kubernetes"}, result.SkillsMissing)
	assert.Equal(t, "strong", result.ExperienceMatch)
	assert.Equal(t, types.SourceAI, result.Source)
}

func TestCoerceAnalysisAliasKeys(t *testing.T) {
	raw := map[string]any{
		"score":          "85",
		"matched_skills": []any{"Go"},
		"Missing-Skills": []any{"Rust", json.Number("7")},
		"strengths":      "Fast learner",
		"suggestions":    []any{"Add metrics"},
	}

	result, issues := CoerceAnalysis(raw)
	assert.Equal(t, 85, result.ATSScore)
	assert.Equal(t, []string{"Go"}, result.SkillsMatched)
	assert.Equal(t, []string{"Rust", "7"}, result.SkillsMissing)
	assert.Equal(t, []string{"Fast learner"}, result.StrengthsIdentified)
	assert.Equal(t, []string{"Add metrics"}, result.ImprovementSuggestions)
	assert.Contains(t, issues.Missing, "experienceMatch")
}

func TestCoerceAnalysisSubstitutesDefaults(t *testing.T) {
	tests := []struct {
		name        string
		raw         map[string]any
		wantScore   int
		wantInvalid []string
		wantMissing []string
	}{
		{
			name:        "empty object",
			raw:         map[string]any{},
			wantMissing: []string{"atsScore", "skillsMatched", "skillsMissing", "experienceMatch", "improvementSuggestions", "strengthsIdentified"},
		},
		{
			name: "mistyped fields",
			raw: map[string]any{
				"atsScore":      "very good",
				"skillsMatched": json.Number("42"),
				"skillsMissing": []any{map[string]any{"level": 3}},
			},
			wantInvalid: []string{"atsScore", "skillsMatched", "skillsMissing"},
		},
		{
			name:      "score above range",
			raw:       map[string]any{"atsScore": json.Number("140")},
			wantScore: 100,
		},
		{
			name:      "negative score",
			raw:       map[string]any{"atsScore": -3.0},
			wantScore: 0,
		},
		{
			name:      "percent string",
			raw:       map[string]any{"atsScore": "72%"},
			wantScore: 72,
		},
		{
			name:        "null score",
			raw:         map[string]any{"atsScore": nil},
			wantInvalid: []string{"atsScore"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, issues := CoerceAnalysis(tt.raw)

			assert.Equal(t, tt.wantScore, result.ATSScore)
			assert.NotNil(t, result.SkillsMatched)
			assert.NotNil(t, result.SkillsMissing)
			assert.NotNil(t, result.ImprovementSuggestions)
			assert.NotNil(t, result.StrengthsIdentified)
			for _, field := range tt.wantInvalid {
				assert.Contains(t, issues.Invalid, field)
			}
			for _, field := range tt.wantMissing {
				assert.Contains(t, issues.Missing, field)
			}
		})
	}
}

func TestCoerceParsedResume(t *testing.T) {
	raw := map[string]any{
		"skills": []any{"Go", map[string]any{"name": "PostgreSQL"}, ""},
		"work_experience": []any{
			map[string]any{"company": "Acme", "title": "Engineer", "duration": "2019-2023"},
			map[string]any{"company": " ", "title": ""},
			"not an object",
		},
		"education":       []any{map[string]any{"school": "MIT", "degree": "BSc"}},
		"experienceYears": "7 years",
		"summary":         "  Backend engineer.  ",
	}

	parsed, issues := CoerceParsedResume(raw)
	assert.Equal(t, []string{"Go", "PostgreSQL"}, parsed.Skills)
	require.Len(t, parsed.Experience, 1)
	assert.Equal(t, types.ParsedExperience{Company: "Acme", Title: "Engineer", Duration: "2019-2023"}, parsed.Experience[0])
	assert.Equal(t, []types.ParsedEducation{{School: "MIT", Degree: "BSc"}}, parsed.Education)
	assert.Equal(t, 7.0, parsed.ExperienceYears)
	assert.Equal(t, "Backend engineer.", parsed.Summary)
	assert.Contains(t, issues.Invalid, "experience")
}

func TestCoerceParsedResumeClampsYears(t *testing.T) {
	parsed, _ := CoerceParsedResume(map[string]any{"experienceYears": json.Number("99")})
	assert.Equal(t, 60.0, parsed.ExperienceYears)

	parsed, _ = CoerceParsedResume(map[string]any{"years_of_experience": -4})
	assert.Equal(t, 0.0, parsed.ExperienceYears)

	parsed, issues := CoerceParsedResume(map[string]any{})
	assert.Equal(t, types.EmptyParsedResume(), parsed)
	assert.Len(t, issues.Missing, 5)
}

func TestCanonicalizePrefersExactKey(t *testing.T) {
	doc := canonicalize(map[string]any{"score": 10, "atsScore": 90}, analysisAliases)
	assert.Equal(t, 90, doc["atsScore"])

	doc = canonicalize(map[string]any{"ATS_SCORE": 40, "unrelated": true}, analysisAliases)
	assert.Equal(t, 40, doc["atsScore"])
	assert.NotContains(t, doc, "unrelated")
}

func TestFieldIssuesAsAppError(t *testing.T) {
	issues := FieldIssues{Missing: []string{"summary"}, Invalid: []string{"skills"}}
	err := issues.AsAppError("parse")

	assert.True(t, errors.HasCode(err, errors.ErrCodeIncompleteInputData))
	assert.Equal(t, []string{"summary"}, err.Context["missing_fields"])
	assert.Equal(t, []string{"skills"}, err.Context["invalid_fields"])
}

package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"atscore/internal/errors"
	"atscore/internal/scoring"
	"atscore/internal/types"

	"github.com/mitchellh/mapstructure"
	"github.com/xeipuuv/gojsonschema"
)

const maxParsedYears = 60

const analysisSchemaJSON = `{
  "type": "object",
  "properties": {
    "atsScore": {"type": "number"},
    "skillsMatched": {"type": "array", "items": {"type": "string"}},
    "skillsMissing": {"type": "array", "items": {"type": "string"}},
    "experienceMatch": {"type": "string"},
    "improvementSuggestions": {"type": "array", "items": {"type": "string"}},
    "strengthsIdentified": {"type": "array", "items": {"type": "string"}}
  },
  "required": ["atsScore", "skillsMatched", "skillsMissing", "experienceMatch", "improvementSuggestions", "strengthsIdentified"]
}`

const parsedResumeSchemaJSON = `{
  "type": "object",
  "properties": {
    "skills": {"type": "array", "items": {"type": "string"}},
    "experience": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "company": {"type": "string"},
          "title": {"type": "string"},
          "duration": {"type": "string"}
        }
      }
    },
    "education": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "school": {"type": "string"},
          "degree": {"type": "string"}
        }
      }
    },
    "experienceYears": {"type": "number"},
    "summary": {"type": "string"}
  },
  "required": ["skills", "experience", "education", "experienceYears", "summary"]
}`

var (
	analysisSchema     = mustSchema(analysisSchemaJSON)
	parsedResumeSchema = mustSchema(parsedResumeSchemaJSON)
)

// Alternative key spellings seen in model output, per canonical field.
// Case, underscores and hyphens are ignored when matching.
var analysisAliases = map[string][]string{
	"atsScore":               {"ats_score", "score", "ats", "overallScore"},
	"skillsMatched":          {"matchedSkills", "matched_skills", "skills_matched"},
	"skillsMissing":          {"missingSkills", "missing_skills", "skills_missing"},
	"experienceMatch":        {"experience_match", "experienceLevel", "experience"},
	"improvementSuggestions": {"suggestions", "improvements", "improvement_suggestions"},
	"strengthsIdentified":    {"strengths", "strengths_identified"},
}

var parsedResumeAliases = map[string][]string{
	"skills":          {"skillList", "skill_list"},
	"experience":      {"workExperience", "work_experience", "jobs"},
	"education":       {"educationHistory", "schools"},
	"experienceYears": {"experience_years", "yearsOfExperience", "years_of_experience", "totalYears"},
	"summary":         {"profile", "professionalSummary", "professional_summary"},
}

func mustSchema(source string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(source))
	if err != nil {
		panic(fmt.Sprintf("invalid built-in schema: %v", err))
	}
	return schema
}

// FieldIssues lists the fields that had to be defaulted during coercion
type FieldIssues struct {
	Missing []string
	Invalid []string
}

// Empty reports whether the object matched the expected shape
func (f FieldIssues) Empty() bool {
	return len(f.Missing) == 0 && len(f.Invalid) == 0
}

func (f *FieldIssues) missing(field string) {
	if !containsString(f.Missing, field) {
		f.Missing = append(f.Missing, field)
	}
}

func (f *FieldIssues) invalid(field string) {
	if !containsString(f.Invalid, field) && !containsString(f.Missing, field) {
		f.Invalid = append(f.Invalid, field)
	}
}

// AsAppError describes the defaulted fields as INCOMPLETE_INPUT_DATA
func (f FieldIssues) AsAppError(shape string) *errors.AppError {
	return errors.NewValidationError(errors.ErrCodeIncompleteInputData,
		fmt.Sprintf("AI %s response did not match the expected shape; defaults substituted", shape), nil).
		WithContext("missing_fields", f.Missing).
		WithContext("invalid_fields", f.Invalid)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// CoerceAnalysis turns an extracted JSON object into an AnalysisResult. Each
// field is decoded on its own so one bad field never discards the others.
func CoerceAnalysis(raw map[string]any) (types.AnalysisResult, FieldIssues) {
	doc := canonicalize(raw, analysisAliases)
	issues := validateShape(analysisSchema, doc)

	result := types.NewAnalysisResult()
	result.Source = types.SourceAI

	if v, ok := doc["atsScore"]; ok {
		if score, ok := decodeNumber(v); ok {
			result.ATSScore = scoring.ClampScore(score)
		} else {
			issues.invalid("atsScore")
		}
	}

	result.SkillsMatched = coerceStringList(doc, "skillsMatched", &issues)
	result.SkillsMissing = coerceStringList(doc, "skillsMissing", &issues)
	result.ExperienceMatch = coerceString(doc, "experienceMatch", &issues)
	result.ImprovementSuggestions = coerceStringList(doc, "improvementSuggestions", &issues)
	result.StrengthsIdentified = coerceStringList(doc, "strengthsIdentified", &issues)

	return result, issues
}

// CoerceParsedResume turns an extracted JSON object into a ParsedResume
func CoerceParsedResume(raw map[string]any) (types.ParsedResume, FieldIssues) {
	doc := canonicalize(raw, parsedResumeAliases)
	issues := validateShape(parsedResumeSchema, doc)

	parsed := types.EmptyParsedResume()
	parsed.Skills = coerceStringList(doc, "skills", &issues)

	if v, ok := doc["experience"]; ok {
		parsed.Experience = coerceObjectList(v, "experience", &issues, func(e types.ParsedExperience) bool {
			return strings.TrimSpace(e.Company) != "" || strings.TrimSpace(e.Title) != ""
		})
	}
	if v, ok := doc["education"]; ok {
		parsed.Education = coerceObjectList(v, "education", &issues, func(e types.ParsedEducation) bool {
			return strings.TrimSpace(e.School) != "" || strings.TrimSpace(e.Degree) != ""
		})
	}

	if v, ok := doc["experienceYears"]; ok {
		years, ok := decodeNumber(v)
		if !ok {
			// "7 years" and similar prose
			if s, isString := v.(string); isString {
				years, ok = scoring.EstimateYears(s), true
			}
		}
		if ok && !math.IsNaN(years) {
			parsed.ExperienceYears = math.Max(0, math.Min(years, maxParsedYears))
		} else {
			issues.invalid("experienceYears")
		}
	}

	parsed.Summary = coerceString(doc, "summary", &issues)

	return parsed, issues
}

// canonicalize maps alias keys onto canonical field names. Exact matches win
// over aliases; unknown keys are dropped.
func canonicalize(raw map[string]any, aliases map[string][]string) map[string]any {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	normalized := make(map[string]any, len(raw))
	for _, k := range keys {
		nk := normalizeKey(k)
		if _, exists := normalized[nk]; !exists {
			normalized[nk] = raw[k]
		}
	}

	out := make(map[string]any, len(aliases))
	for canonical, alts := range aliases {
		if v, ok := raw[canonical]; ok {
			out[canonical] = v
			continue
		}
		for _, candidate := range append([]string{canonical}, alts...) {
			if v, ok := normalized[normalizeKey(candidate)]; ok {
				out[canonical] = v
				break
			}
		}
	}
	return out
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.NewReplacer("_", "", "-", "", " ", "").Replace(key))
}

// validateShape runs the JSON schema and sorts its complaints into missing
// and invalid top-level fields
func validateShape(schema *gojsonschema.Schema, doc map[string]any) FieldIssues {
	var issues FieldIssues

	result, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		// The document could not be loaded at all; coercion decides per field
		return issues
	}

	for _, resultErr := range result.Errors() {
		if resultErr.Type() == "required" {
			if property, ok := resultErr.Details()["property"].(string); ok {
				issues.missing(property)
			}
			continue
		}
		field := resultErr.Field()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[:i]
		}
		if field != "" && field != "(root)" {
			issues.invalid(field)
		}
	}

	return issues
}

// weakDecode converts input to T with mapstructure's weak typing, so "85"
// becomes 85 and a lone string becomes a one element list
func weakDecode[T any](input any) (T, bool) {
	var out T
	if input == nil {
		return out, false
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &out,
	})
	if err != nil {
		return out, false
	}
	if err := decoder.Decode(input); err != nil {
		return out, false
	}
	return out, true
}

func decodeNumber(v any) (float64, bool) {
	if s, ok := v.(string); ok {
		v = strings.TrimSuffix(strings.TrimSpace(s), "%")
	}
	return weakDecode[float64](v)
}

func coerceString(doc map[string]any, field string, issues *FieldIssues) string {
	v, ok := doc[field]
	if !ok {
		return ""
	}
	s, ok := weakDecode[string](v)
	if !ok {
		issues.invalid(field)
		return ""
	}
	return strings.TrimSpace(s)
}

func coerceStringList(doc map[string]any, field string, issues *FieldIssues) []string {
	out := []string{}
	v, ok := doc[field]
	if !ok {
		return out
	}

	var items []any
	switch value := v.(type) {
	case []any:
		items = value
	case string:
		items = []any{value}
	default:
		issues.invalid(field)
		return out
	}

	for _, item := range items {
		// {"name": "Go"} is accepted where a plain string is expected
		if obj, isMap := item.(map[string]any); isMap {
			item = obj["name"]
		}
		s, ok := weakDecode[string](item)
		if !ok {
			issues.invalid(field)
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func coerceObjectList[T any](v any, field string, issues *FieldIssues, keep func(T) bool) []T {
	out := []T{}
	items, ok := v.([]any)
	if !ok {
		issues.invalid(field)
		return out
	}
	for _, item := range items {
		entry, ok := weakDecode[T](item)
		if !ok {
			issues.invalid(field)
			continue
		}
		if keep(entry) {
			out = append(out, entry)
		}
	}
	return out
}

package scoring

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"atscore/internal/types"
)

// Weights of the job-match fallback
const (
	skillMatchWeight      = 70.0
	neutralSkillComponent = 35.0
	pointsPerYear         = 3.0
	maxCountedYears       = 10.0
)

// Weights of the generated-draft fallback
const (
	sectionWeight     = 90.0
	skillBonusPerItem = 2
	maxSkillBonusItem = 5
)

// Experience match labels
const (
	ExperienceStrong   = "strong"
	ExperienceModerate = "moderate"
	ExperienceLimited  = "limited"
	ExperienceUnknown  = "unknown"

	ExperienceNotSpecified = "not specified"
)

const maxSuggestedSkills = 5

// Section is one presence-checked part of a resume draft
type Section struct {
	Name       string
	Complete   bool
	Strength   string
	Suggestion string
}

// Sections checks every draft section with the same predicates ComputeScore uses
func Sections(draft types.ResumeDraft) []Section {
	return []Section{
		{
			Name:       "personalInfo",
			Complete:   HasRequiredPersonalInfo(draft.PersonalInfo),
			Strength:   "Complete contact information",
			Suggestion: "Add your full name, email, phone and location",
		},
		{
			Name:       "targetRole",
			Complete:   present(draft.TargetRole),
			Strength:   "Clear target role",
			Suggestion: "State the role you are targeting",
		},
		{
			Name:       "experience",
			Complete:   present(draft.Experience),
			Strength:   "Experience level stated",
			Suggestion: "Describe your overall experience level",
		},
		{
			Name:       "skills",
			Complete:   len(draft.Skills) > 0,
			Strength:   "Skills section present",
			Suggestion: "List the skills relevant to your target role",
		},
		{
			Name:       "workExperience",
			Complete:   HasCompleteWork(draft.WorkExperience),
			Strength:   "Work history with company and title",
			Suggestion: "Add at least one position with company and title",
		},
		{
			Name:       "education",
			Complete:   HasCompleteEducation(draft.Education),
			Strength:   "Education with school and degree",
			Suggestion: "Add your education with school and degree",
		},
		{
			Name:       "projects",
			Complete:   HasCompleteProject(draft.Projects),
			Strength:   "Described projects",
			Suggestion: "Add a project with a name and a short description",
		},
		{
			Name:       "achievements",
			Complete:   HasCompleteAchievement(draft.Achievements),
			Strength:   "Documented achievements",
			Suggestion: "Add an achievement with a title and description",
		},
	}
}

// GeneratedFallback scores a structured draft from section completeness plus
// a small bonus for listed skills.
func GeneratedFallback(draft types.ResumeDraft) types.AnalysisResult {
	result := types.NewAnalysisResult()
	result.Source = types.SourceFallback

	sections := Sections(draft)
	complete := 0
	for _, s := range sections {
		if s.Complete {
			complete++
			result.StrengthsIdentified = append(result.StrengthsIdentified, s.Strength)
		} else {
			result.ImprovementSuggestions = append(result.ImprovementSuggestions, s.Suggestion)
		}
	}

	unvalidated := 0
	for _, s := range draft.Skills {
		if name := strings.TrimSpace(s.Name); name != "" {
			result.SkillsMatched = append(result.SkillsMatched, name)
		}
		if !s.Validated {
			unvalidated++
		}
	}
	if unvalidated > 0 {
		result.ImprovementSuggestions = append(result.ImprovementSuggestions,
			fmt.Sprintf("Add proof for %d unvalidated skill(s)", unvalidated))
	}

	bonus := min(len(draft.Skills), maxSkillBonusItem) * skillBonusPerItem
	result.ATSScore = ClampScore(math.Round(sectionWeight*float64(complete)/float64(len(sections))) + float64(bonus))

	if label := strings.TrimSpace(draft.Experience); label != "" {
		result.ExperienceMatch = label
	} else {
		result.ExperienceMatch = ExperienceNotSpecified
	}

	return result
}

// JobFallback scores a resume against a job from skill overlap and years of
// experience. parsed may be the empty shell; resumeText is used as a last
// source of skill mentions and years.
func JobFallback(job types.JobRequirementSet, parsed types.ParsedResume, resumeText string) types.AnalysisResult {
	result := types.NewAnalysisResult()
	result.Source = types.SourceFallback

	matched, missing := MatchSkills(job.Skills, parsed.Skills, resumeText)
	result.SkillsMatched = matched
	result.SkillsMissing = missing

	years := parsed.ExperienceYears
	if years <= 0 {
		years = EstimateYears(resumeText)
	}

	skillComponent := neutralSkillComponent
	if total := len(matched) + len(missing); total > 0 {
		skillComponent = skillMatchWeight * float64(len(matched)) / float64(total)
	}
	experienceComponent := pointsPerYear * math.Min(math.Max(years, 0), maxCountedYears)
	result.ATSScore = ClampScore(skillComponent + experienceComponent)

	required := RequiredYears(job.ExperienceLevel)
	result.ExperienceMatch = ExperienceLabel(years, required)

	for _, skill := range matched {
		result.StrengthsIdentified = append(result.StrengthsIdentified, "Demonstrates "+skill)
	}
	if required > 0 && years >= required {
		result.StrengthsIdentified = append(result.StrengthsIdentified,
			fmt.Sprintf("Experience meets the %s requirement", strings.TrimSpace(job.ExperienceLevel)))
	}

	for i, skill := range missing {
		if i == maxSuggestedSkills {
			break
		}
		result.ImprovementSuggestions = append(result.ImprovementSuggestions,
			fmt.Sprintf("Add evidence of %s experience", skill))
	}
	if required > 0 && years < required {
		result.ImprovementSuggestions = append(result.ImprovementSuggestions,
			fmt.Sprintf("Highlight at least %s years of relevant experience", strconv.FormatFloat(required, 'f', -1, 64)))
	}
	if len(result.ImprovementSuggestions) == 0 && strings.TrimSpace(job.Title) != "" {
		result.ImprovementSuggestions = append(result.ImprovementSuggestions,
			fmt.Sprintf("Tailor your summary to the %s role", strings.TrimSpace(job.Title)))
	}

	return result
}

// MatchSkills splits job skills into matched and missing. A job skill matches
// when, ignoring case, it contains or is contained in a resume skill, or when it
// appears as a whole term in resumeText. Job skill order is kept and
// duplicates are dropped.
func MatchSkills(jobSkills, resumeSkills []string, resumeText string) (matched, missing []string) {
	matched = []string{}
	missing = []string{}

	resumeLower := make([]string, 0, len(resumeSkills))
	for _, s := range resumeSkills {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			resumeLower = append(resumeLower, s)
		}
	}
	textLower := strings.ToLower(resumeText)

	seen := make(map[string]bool, len(jobSkills))
	for _, raw := range jobSkills {
		skill := strings.TrimSpace(raw)
		key := strings.ToLower(skill)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true

		if skillListed(key, resumeLower) || containsTerm(textLower, key) {
			matched = append(matched, skill)
		} else {
			missing = append(missing, skill)
		}
	}
	return matched, missing
}

func skillListed(skill string, resumeSkills []string) bool {
	for _, r := range resumeSkills {
		if strings.Contains(r, skill) || strings.Contains(skill, r) {
			return true
		}
	}
	return false
}

// containsTerm reports whether term occurs in text without being glued to
// surrounding letters or digits.
func containsTerm(text, term string) bool {
	if term == "" {
		return false
	}
	for offset := 0; offset < len(text); {
		i := strings.Index(text[offset:], term)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(term)
		if !isWordRune(lastRune(text[:start])) && !isWordRune(firstRune(text[end:])) {
			return true
		}
		offset = start + 1
	}
	return false
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return ' '
}

func lastRune(s string) rune {
	r := ' '
	for _, c := range s {
		r = c
	}
	return r
}

var (
	yearsPattern  = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*\+?\s*(?:years?|yrs?)`)
	numberPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

const maxPlausibleYears = 50

// EstimateYears returns the largest "N years" mention in text, or 0
func EstimateYears(text string) float64 {
	best := 0.0
	for _, m := range yearsPattern.FindAllStringSubmatch(text, -1) {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil || v > maxPlausibleYears {
			continue
		}
		best = math.Max(best, v)
	}
	return best
}

// RequiredYears reads the years a job's experience level asks for. An
// explicit number wins; otherwise seniority keywords are mapped.
func RequiredYears(level string) float64 {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "" {
		return 0
	}
	if m := numberPattern.FindString(level); m != "" {
		if v, err := strconv.ParseFloat(m, 64); err == nil {
			return v
		}
	}
	switch {
	case strings.Contains(level, "principal"), strings.Contains(level, "staff"), strings.Contains(level, "lead"):
		return 8
	case strings.Contains(level, "senior"):
		return 5
	case strings.Contains(level, "mid"):
		return 3
	case strings.Contains(level, "junior"):
		return 1
	default:
		return 0
	}
}

// ExperienceLabel grades years of experience against a requirement.
// With no requirement the grade uses fixed thresholds.
func ExperienceLabel(years, required float64) string {
	if years <= 0 {
		return ExperienceUnknown
	}
	if required <= 0 {
		switch {
		case years >= 5:
			return ExperienceStrong
		case years >= 2:
			return ExperienceModerate
		default:
			return ExperienceLimited
		}
	}
	switch {
	case years >= required:
		return ExperienceStrong
	case years >= required/2:
		return ExperienceModerate
	default:
		return ExperienceLimited
	}
}

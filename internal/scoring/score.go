// Package scoring holds the deterministic scoring rules shared by every code
// path that produces an ATS score without the AI provider.
package scoring

import (
	"math"
	"strings"

	"atscore/internal/types"
)

// Category weights for ComputeScore. Their sum exceeds 100 and the total is
// capped, so a fully populated draft always lands on exactly 100.
const (
	WeightRequiredPersonal = 20.0
	WeightOptionalPersonal = 5.0
	WeightTargetRole       = 15.0
	WeightExperienceLabel  = 10.0
	WeightSkillsPresent    = 10.0
	WeightSkillsValidated  = 10.0
	WeightWorkExperience   = 15.0
	WeightEducation        = 10.0
	WeightProjects         = 10.0
	WeightAchievements     = 5.0

	MaxScore = 100
)

// ComputeScore returns the completeness score of a structured draft in [0,100].
// Missing or empty substructures contribute nothing.
func ComputeScore(draft types.ResumeDraft) int {
	var total float64

	p := draft.PersonalInfo
	total += WeightRequiredPersonal * float64(countPresent(p.FullName, p.Email, p.Phone, p.Location)) / 4
	total += WeightOptionalPersonal * float64(countPresent(p.LinkedIn, p.Portfolio)) / 2

	if present(draft.TargetRole) {
		total += WeightTargetRole
	}
	if present(draft.Experience) {
		total += WeightExperienceLabel
	}

	if len(draft.Skills) > 0 {
		total += WeightSkillsPresent
		total += WeightSkillsValidated * float64(countValidated(draft.Skills)) / float64(len(draft.Skills))
	}

	if HasCompleteWork(draft.WorkExperience) {
		total += WeightWorkExperience
	}
	if HasCompleteEducation(draft.Education) {
		total += WeightEducation
	}
	if HasCompleteProject(draft.Projects) {
		total += WeightProjects
	}
	if HasCompleteAchievement(draft.Achievements) {
		total += WeightAchievements
	}

	return ClampScore(total)
}

// ClampScore rounds v to the nearest integer and clamps it into [0,100].
// NaN maps to 0.
func ClampScore(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	r := math.Round(v)
	if r < 0 {
		return 0
	}
	if r > MaxScore {
		return MaxScore
	}
	return int(r)
}

// HasRequiredPersonalInfo reports whether name, email, phone and location are all set
func HasRequiredPersonalInfo(p types.PersonalInfo) bool {
	return countPresent(p.FullName, p.Email, p.Phone, p.Location) == 4
}

// HasCompleteWork reports whether any entry has both company and title
func HasCompleteWork(entries []types.WorkExperience) bool {
	for _, w := range entries {
		if present(w.Company) && present(w.Title) {
			return true
		}
	}
	return false
}

// HasCompleteEducation reports whether any entry has both school and degree
func HasCompleteEducation(entries []types.Education) bool {
	for _, e := range entries {
		if present(e.School) && present(e.Degree) {
			return true
		}
	}
	return false
}

// HasCompleteProject reports whether any entry has both name and description
func HasCompleteProject(entries []types.Project) bool {
	for _, p := range entries {
		if present(p.Name) && present(p.Description) {
			return true
		}
	}
	return false
}

// HasCompleteAchievement reports whether any entry has both title and description
func HasCompleteAchievement(entries []types.Achievement) bool {
	for _, a := range entries {
		if present(a.Title) && present(a.Description) {
			return true
		}
	}
	return false
}

func present(s string) bool {
	return strings.TrimSpace(s) != ""
}

func countPresent(values ...string) int {
	n := 0
	for _, v := range values {
		if present(v) {
			n++
		}
	}
	return n
}

func countValidated(skills []types.Skill) int {
	n := 0
	for _, s := range skills {
		if s.Validated {
			n++
		}
	}
	return n
}

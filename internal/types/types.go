package types

import (
	"strings"
	"time"
)

// PersonalInfo holds the contact block of a resume draft
type PersonalInfo struct {
	FullName  string `json:"fullName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Location  string `json:"location"`
	LinkedIn  string `json:"linkedin"`
	Portfolio string `json:"portfolio"`
}

// Skill is a single skill claim, optionally backed by proof
type Skill struct {
	Name      string `json:"name"`
	Proof     string `json:"proof,omitempty"`
	Validated bool   `json:"validated"`
}

// WorkExperience is one employment entry
type WorkExperience struct {
	Company      string   `json:"company"`
	Title        string   `json:"title"`
	StartDate    string   `json:"startDate,omitempty"`
	EndDate      string   `json:"endDate,omitempty"`
	Description  string   `json:"description,omitempty"`
	Achievements []string `json:"achievements"`
}

// Education is one education entry
type Education struct {
	School         string `json:"school"`
	Degree         string `json:"degree"`
	Field          string `json:"field,omitempty"`
	GraduationYear string `json:"graduationYear,omitempty"`
}

// Project is one portfolio project
type Project struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Technologies []string `json:"technologies"`
	URL          string   `json:"url,omitempty"`
}

// Achievement is a standalone award or accomplishment
type Achievement struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Date        string `json:"date,omitempty"`
}

// ResumeDraft is the structured candidate profile collected by guided intake.
// List fields are never nil once Normalize has run.
type ResumeDraft struct {
	PersonalInfo   PersonalInfo     `json:"personalInfo"`
	TargetRole     string           `json:"targetRole"`
	Experience     string           `json:"experience"`
	Skills         []Skill          `json:"skills"`
	WorkExperience []WorkExperience `json:"workExperience"`
	Education      []Education      `json:"education"`
	Projects       []Project        `json:"projects"`
	Achievements   []Achievement    `json:"achievements"`
}

// Normalize replaces nil lists with empty ones
func (d *ResumeDraft) Normalize() {
	if d.Skills == nil {
		d.Skills = []Skill{}
	}
	if d.WorkExperience == nil {
		d.WorkExperience = []WorkExperience{}
	}
	for i := range d.WorkExperience {
		if d.WorkExperience[i].Achievements == nil {
			d.WorkExperience[i].Achievements = []string{}
		}
	}
	if d.Education == nil {
		d.Education = []Education{}
	}
	if d.Projects == nil {
		d.Projects = []Project{}
	}
	for i := range d.Projects {
		if d.Projects[i].Technologies == nil {
			d.Projects[i].Technologies = []string{}
		}
	}
	if d.Achievements == nil {
		d.Achievements = []Achievement{}
	}
}

// IsEmpty reports whether the draft carries no usable content at all
func (d ResumeDraft) IsEmpty() bool {
	p := d.PersonalInfo
	for _, s := range []string{p.FullName, p.Email, p.Phone, p.Location, p.LinkedIn, p.Portfolio, d.TargetRole, d.Experience} {
		if strings.TrimSpace(s) != "" {
			return false
		}
	}
	return len(d.Skills) == 0 && len(d.WorkExperience) == 0 && len(d.Education) == 0 &&
		len(d.Projects) == 0 && len(d.Achievements) == 0
}

// JobRequirementSet is the read-only view of a job posting used for matching
type JobRequirementSet struct {
	Title           string   `json:"title"`
	Skills          []string `json:"skills"`
	Requirements    []string `json:"requirements"`
	ExperienceLevel string   `json:"experienceLevel"`
	Description     string   `json:"description"`
}

// ParsedExperience is one employment entry extracted from free text
type ParsedExperience struct {
	Company  string `json:"company" mapstructure:"company"`
	Title    string `json:"title" mapstructure:"title"`
	Duration string `json:"duration" mapstructure:"duration"`
}

// ParsedEducation is one education entry extracted from free text
type ParsedEducation struct {
	School string `json:"school" mapstructure:"school"`
	Degree string `json:"degree" mapstructure:"degree"`
}

// ParsedResume holds the structured fields recovered from raw resume text
type ParsedResume struct {
	Skills          []string           `json:"skills"`
	Experience      []ParsedExperience `json:"experience"`
	Education       []ParsedEducation  `json:"education"`
	ExperienceYears float64            `json:"experienceYears"`
	Summary         string             `json:"summary"`
}

// EmptyParsedResume returns the minimal shell used when parsing fails
func EmptyParsedResume() ParsedResume {
	return ParsedResume{
		Skills:     []string{},
		Experience: []ParsedExperience{},
		Education:  []ParsedEducation{},
	}
}

// Analysis result sources
const (
	SourceAI       = "ai"
	SourceFallback = "fallback"
)

// AnalysisResult is the canonical output of every scoring operation.
// Every list is non-nil so callers never branch on which path produced it.
type AnalysisResult struct {
	ATSScore               int      `json:"atsScore"`
	SkillsMatched          []string `json:"skillsMatched"`
	SkillsMissing          []string `json:"skillsMissing"`
	ExperienceMatch        string   `json:"experienceMatch"`
	ImprovementSuggestions []string `json:"improvementSuggestions"`
	StrengthsIdentified    []string `json:"strengthsIdentified"`
	Source                 string   `json:"source"`
}

// NewAnalysisResult returns a result with every list initialised
func NewAnalysisResult() AnalysisResult {
	return AnalysisResult{
		SkillsMatched:          []string{},
		SkillsMissing:          []string{},
		ImprovementSuggestions: []string{},
		StrengthsIdentified:    []string{},
	}
}

// MatchResult is an analysis against a job together with the parsed resume it used
type MatchResult struct {
	AnalysisResult
	ParsedResume ParsedResume `json:"parsedResume"`
	ParseFailed  bool         `json:"parseFailed"`
}

// ScoredEvent sources
const (
	EventSourceResumeVersion = "resume-version"
	EventSourceSubmission    = "submission"
)

// ScoredEvent is an immutable timestamped score belonging to one user.
// CreatedAt is zero when the score record carries no timestamp of its own.
type ScoredEvent struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	Score           int       `json:"score"`
	Source          string    `json:"source"`
	CreatedAt       time.Time `json:"createdAt"`
	ParentCreatedAt time.Time `json:"parentCreatedAt"`
	JobID           string    `json:"jobId,omitempty"`
}

// EffectiveTime is the event timestamp, falling back to its parent's
func (e ScoredEvent) EffectiveTime() time.Time {
	if e.CreatedAt.IsZero() {
		return e.ParentCreatedAt
	}
	return e.CreatedAt
}

// UserScoreSummary is the rolling score aggregate stored on a user record
type UserScoreSummary struct {
	UserID       string    `json:"userId"`
	AverageScore int       `json:"averageScore"`
	LatestScore  int       `json:"latestScore"`
	Improvement  int       `json:"improvement"`
	EventCount   int       `json:"eventCount"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// User is the minimal user record the scoring core reads and writes
type User struct {
	ID        string            `json:"id"`
	Email     string            `json:"email"`
	Name      string            `json:"name"`
	CreatedAt time.Time         `json:"createdAt"`
	Summary   *UserScoreSummary `json:"summary,omitempty"`
}

// ScoreReport is the output of scoring a draft without AI
type ScoreReport struct {
	Score int `json:"score"`
}

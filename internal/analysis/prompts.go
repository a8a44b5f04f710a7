package analysis

import (
	"fmt"
	"strings"

	"atscore/internal/config"
)

// Prompt template placeholders are filled with fmt verbs in this order:
//
//	AnalyzeJob:       resume text, job block
//	AnalyzeGenerated: resume draft JSON
//	ParseResume:      resume text
type Prompts struct {
	AnalyzeJobSystem       string
	AnalyzeJobUser         string
	AnalyzeGeneratedSystem string
	AnalyzeGeneratedUser   string
	ParseResumeSystem      string
	ParseResumeUser        string
}

const defaultAnalyzeJobSystem = `You are an applicant tracking system (ATS) analyst. You compare a candidate's resume against a job posting and report how well the resume would pass automated screening.

Rules:
- Judge only what the resume actually states. Never assume skills or experience that are not written down.
- Treat a skill as matched when the resume names it or an obvious equivalent.
- Scores are integers from 0 to 100.
- Reply with a single JSON object and nothing else.`

const defaultAnalyzeJobUser = `Analyze the resume below against the job posting.

Return a JSON object with exactly these fields:
{
  "atsScore": <integer 0-100>,
  "skillsMatched": [<job skills the resume demonstrates>],
  "skillsMissing": [<job skills the resume does not demonstrate>],
  "experienceMatch": "<one of: strong, moderate, limited, unknown>",
  "improvementSuggestions": [<concrete edits that would raise the score>],
  "strengthsIdentified": [<what already works well for this job>]
}

RESUME:
%s

JOB POSTING:
%s`

const defaultAnalyzeGeneratedSystem = `You are a resume coach reviewing a resume assembled through a guided form. You score how complete and screening-ready it is for the candidate's target role.

Rules:
- Base every finding on the provided fields only.
- Scores are integers from 0 to 100.
- Reply with a single JSON object and nothing else.`

const defaultAnalyzeGeneratedUser = `Review this resume draft, given as JSON.

Return a JSON object with exactly these fields:
{
  "atsScore": <integer 0-100>,
  "skillsMatched": [<skills that fit the target role>],
  "skillsMissing": [<skills commonly expected for the target role that are absent>],
  "experienceMatch": "<short assessment of experience for the target role>",
  "improvementSuggestions": [<concrete edits that would raise the score>],
  "strengthsIdentified": [<sections or details that already work well>]
}

RESUME DRAFT:
%s`

const defaultParseResumeSystem = `You extract structured data from resume text. Copy facts exactly as written and never invent missing details. Reply with a single JSON object and nothing else.`

const defaultParseResumeUser = `Extract the following fields from the resume text.

Return a JSON object with exactly these fields:
{
  "skills": [<skill names>],
  "experience": [{"company": "<company>", "title": "<job title>", "duration": "<as written>"}],
  "education": [{"school": "<school>", "degree": "<degree>"}],
  "experienceYears": <total years of professional experience as a number, 0 if unknown>,
  "summary": "<two sentence professional summary>"
}

RESUME TEXT:
%s`

// DefaultPrompts returns the built-in prompt set
func DefaultPrompts() Prompts {
	return Prompts{
		AnalyzeJobSystem:       defaultAnalyzeJobSystem,
		AnalyzeJobUser:         defaultAnalyzeJobUser,
		AnalyzeGeneratedSystem: defaultAnalyzeGeneratedSystem,
		AnalyzeGeneratedUser:   defaultAnalyzeGeneratedUser,
		ParseResumeSystem:      defaultParseResumeSystem,
		ParseResumeUser:        defaultParseResumeUser,
	}
}

// PromptsFromConfig overlays configured custom prompts on the defaults
func PromptsFromConfig(cfg *config.Config) Prompts {
	prompts := DefaultPrompts()
	if cfg == nil {
		return prompts
	}

	overlay := func(operation, name string, system, user *string) {
		customSystem, customUser := cfg.ResolvePrompt(operation, name)
		if customSystem != "" {
			*system = customSystem
		}
		if customUser != "" {
			*user = customUser
		}
	}

	overlay(config.OperationAnalyze, config.PromptAnalyzeJob, &prompts.AnalyzeJobSystem, &prompts.AnalyzeJobUser)
	overlay(config.OperationAnalyze, config.PromptAnalyzeGenerated, &prompts.AnalyzeGeneratedSystem, &prompts.AnalyzeGeneratedUser)
	overlay(config.OperationParse, config.PromptParseResume, &prompts.ParseResumeSystem, &prompts.ParseResumeUser)

	return prompts
}

// renderPrompt fills a template's %s verbs. Custom templates without enough
// verbs get the remaining content appended instead of fmt's EXTRA noise.
func renderPrompt(template string, args ...string) string {
	verbs := strings.Count(template, "%s")
	if verbs >= len(args) {
		values := make([]any, len(args))
		for i, a := range args {
			values[i] = a
		}
		return fmt.Sprintf(template, values...)
	}

	var b strings.Builder
	values := make([]any, verbs)
	for i := 0; i < verbs; i++ {
		values[i] = args[i]
	}
	b.WriteString(fmt.Sprintf(template, values...))
	for _, a := range args[verbs:] {
		b.WriteString("\n\n")
		b.WriteString(a)
	}
	return b.String()
}

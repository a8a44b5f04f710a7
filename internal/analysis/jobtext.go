package analysis

import (
	"regexp"
	"strings"

	"atscore/internal/types"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

var (
	htmlTagPattern = regexp.MustCompile(`</?[a-zA-Z][a-zA-Z0-9]*(\s[^<>]*)?/?>`)
	blankRuns      = regexp.MustCompile(`\n{3,}`)
)

const maxJobDescriptionLength = 6000

// NormalizeJobDescription converts HTML job descriptions to markdown so the
// prompt carries structure without markup. Plain text is only trimmed.
func NormalizeJobDescription(description string) string {
	description = strings.TrimSpace(description)
	if description == "" || !htmlTagPattern.MatchString(description) {
		return description
	}

	md, err := htmltomarkdown.ConvertString(description)
	if err != nil || strings.TrimSpace(md) == "" {
		// Drop the tags rather than sending raw markup
		md = htmlTagPattern.ReplaceAllString(description, " ")
	}
	md = blankRuns.ReplaceAllString(strings.TrimSpace(md), "\n\n")

	if len(md) > maxJobDescriptionLength {
		md = md[:maxJobDescriptionLength] + "..."
	}
	return md
}

// formatJob renders a job requirement set as the prompt's job block
func formatJob(job types.JobRequirementSet) string {
	var b strings.Builder

	writeLine := func(label, value string) {
		if value = strings.TrimSpace(value); value != "" {
			b.WriteString(label)
			b.WriteString(": ")
			b.WriteString(value)
			b.WriteString("\n")
		}
	}
	writeList := func(label string, items []string) {
		var kept []string
		for _, item := range items {
			if item = strings.TrimSpace(item); item != "" {
				kept = append(kept, item)
			}
		}
		if len(kept) == 0 {
			return
		}
		b.WriteString(label)
		b.WriteString(":\n")
		for _, item := range kept {
			b.WriteString("- ")
			b.WriteString(item)
			b.WriteString("\n")
		}
	}

	writeLine("Title", job.Title)
	writeLine("Experience level", job.ExperienceLevel)
	writeList("Required skills", job.Skills)
	writeList("Requirements", job.Requirements)
	if description := NormalizeJobDescription(job.Description); description != "" {
		b.WriteString("Description:\n")
		b.WriteString(description)
		b.WriteString("\n")
	}

	return strings.TrimSpace(b.String())
}

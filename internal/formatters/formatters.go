package formatters

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"atscore/internal/aggregate"
	"atscore/internal/types"
)

// Formatter interface for different output formats
type Formatter interface {
	Format(data any) (string, error)
	SupportedType() string
}

// FormatterRegistry manages all available formatters
type FormatterRegistry struct {
	formatters map[string]map[string]Formatter // format -> type -> formatter
}

// Data type keys
const (
	TypeAnalysis  = "AnalysisResult"
	TypeMatch     = "MatchResult"
	TypeScore     = "ScoreReport"
	TypeSummary   = "UserScoreSummary"
	TypeUser      = "User"
	TypeRecording = "Recording"
	TypeEvents    = "ScoredEvents"
	typeAny       = "any"
)

// NewFormatterRegistry creates a new formatter registry with default formatters
func NewFormatterRegistry() *FormatterRegistry {
	registry := &FormatterRegistry{
		formatters: make(map[string]map[string]Formatter),
	}

	registry.RegisterFormatter("json", typeAny, &JSONFormatter{})
	for _, style := range []*style{textStyle, markdownStyle} {
		registry.RegisterFormatter(style.name, TypeAnalysis, &AnalysisFormatter{style: style})
		registry.RegisterFormatter(style.name, TypeMatch, &MatchFormatter{style: style})
		registry.RegisterFormatter(style.name, TypeScore, &ScoreFormatter{style: style})
		registry.RegisterFormatter(style.name, TypeSummary, &SummaryFormatter{style: style})
		registry.RegisterFormatter(style.name, TypeUser, &UserFormatter{style: style})
		registry.RegisterFormatter(style.name, TypeRecording, &RecordingFormatter{style: style})
		registry.RegisterFormatter(style.name, TypeEvents, &EventsFormatter{style: style})
	}

	return registry
}

// RegisterFormatter registers a new formatter for a specific format and data type
func (fr *FormatterRegistry) RegisterFormatter(format, dataType string, formatter Formatter) {
	if fr.formatters[format] == nil {
		fr.formatters[format] = make(map[string]Formatter)
	}
	fr.formatters[format][dataType] = formatter
}

// Format formats data using the appropriate formatter
func (fr *FormatterRegistry) Format(data any, format string) (string, error) {
	dataType := getDataType(data)

	if formatters, exists := fr.formatters[format]; exists {
		if formatter, exists := formatters[dataType]; exists {
			return formatter.Format(data)
		}
		if formatter, exists := formatters[typeAny]; exists {
			return formatter.Format(data)
		}
	}

	return "", fmt.Errorf("no formatter found for format '%s' and type '%s'", format, dataType)
}

// GetSupportedFormats returns all supported formats in stable order
func (fr *FormatterRegistry) GetSupportedFormats() []string {
	formats := make([]string, 0, len(fr.formatters))
	for format := range fr.formatters {
		formats = append(formats, format)
	}
	sort.Strings(formats)
	return formats
}

// getDataType dereferences pointers so *T and T share a formatter
func getDataType(data any) string {
	switch data.(type) {
	case types.AnalysisResult, *types.AnalysisResult:
		return TypeAnalysis
	case types.MatchResult, *types.MatchResult:
		return TypeMatch
	case types.ScoreReport, *types.ScoreReport:
		return TypeScore
	case types.UserScoreSummary, *types.UserScoreSummary:
		return TypeSummary
	case types.User, *types.User:
		return TypeUser
	case aggregate.Recording, *aggregate.Recording:
		return TypeRecording
	case []types.ScoredEvent:
		return TypeEvents
	default:
		return "unknown"
	}
}

// JSONFormatter handles JSON output for any data type
type JSONFormatter struct{}

func (jf *JSONFormatter) Format(data any) (string, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(jsonData), nil
}

func (jf *JSONFormatter) SupportedType() string {
	return typeAny
}

// style holds the few places text and markdown output differ
type style struct {
	name    string
	title   func(string) string
	heading func(string) string
	field   func(label, value string) string
}

var textStyle = &style{
	name:    "text",
	title:   func(s string) string { return fmt.Sprintf("=== %s ===\n\n", strings.ToUpper(s)) },
	heading: func(s string) string { return fmt.Sprintf("--- %s ---\n", s) },
	field:   func(label, value string) string { return fmt.Sprintf("%s: %s\n", label, value) },
}

var markdownStyle = &style{
	name:    "markdown",
	title:   func(s string) string { return fmt.Sprintf("# %s\n\n", s) },
	heading: func(s string) string { return fmt.Sprintf("## %s\n\n", s) },
	field:   func(label, value string) string { return fmt.Sprintf("**%s:** %s\n\n", label, value) },
}

func (s *style) list(b *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString(s.heading(heading))
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
	b.WriteString("\n")
}

func (s *style) numbered(b *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString(s.heading(heading))
	for i, item := range items {
		fmt.Fprintf(b, "%d. %s\n", i+1, item)
	}
	b.WriteString("\n")
}

func (s *style) analysisBody(b *strings.Builder, result types.AnalysisResult) {
	b.WriteString(s.field("ATS Score", fmt.Sprintf("%d/100", result.ATSScore)))
	b.WriteString(s.field("Experience Match", result.ExperienceMatch))
	b.WriteString(s.field("Source", result.Source))
	if s == textStyle {
		b.WriteString("\n")
	}
	s.list(b, "Skills Matched", result.SkillsMatched)
	s.list(b, "Skills Missing", result.SkillsMissing)
	s.list(b, "Strengths", result.StrengthsIdentified)
	s.numbered(b, "Improvement Suggestions", result.ImprovementSuggestions)
}

func (s *style) summaryBody(b *strings.Builder, summary types.UserScoreSummary) {
	b.WriteString(s.field("Average Score", fmt.Sprintf("%d/100", summary.AverageScore)))
	b.WriteString(s.field("Latest Score", fmt.Sprintf("%d/100", summary.LatestScore)))
	b.WriteString(s.field("Improvement", fmt.Sprintf("%+d%%", summary.Improvement)))
	b.WriteString(s.field("Scored Events", fmt.Sprintf("%d", summary.EventCount)))
	if !summary.UpdatedAt.IsZero() {
		b.WriteString(s.field("Updated", summary.UpdatedAt.Format(time.RFC3339)))
	}
}

func (s *style) eventLine(event types.ScoredEvent) string {
	when := "-"
	if t := event.EffectiveTime(); !t.IsZero() {
		when = t.Format(time.RFC3339)
	}
	line := fmt.Sprintf("%s  %-14s  %3d", when, event.Source, event.Score)
	if event.JobID != "" {
		line += "  job=" + event.JobID
	}
	if s == markdownStyle {
		return fmt.Sprintf("| %s | %s | %d | %s |\n", when, event.Source, event.Score, event.JobID)
	}
	return line + "\n"
}

func (s *style) events(b *strings.Builder, events []types.ScoredEvent) {
	if len(events) == 0 {
		b.WriteString("No scored events.\n")
		return
	}
	if s == markdownStyle {
		b.WriteString("| Time | Source | Score | Job |\n|---|---|---|---|\n")
	}
	for _, event := range events {
		b.WriteString(s.eventLine(event))
	}
}

func deref[T any](data any) (T, bool) {
	switch v := data.(type) {
	case T:
		return v, true
	case *T:
		if v != nil {
			return *v, true
		}
	}
	var zero T
	return zero, false
}

// AnalysisFormatter renders an analysis result
type AnalysisFormatter struct{ style *style }

func (f *AnalysisFormatter) Format(data any) (string, error) {
	result, ok := deref[types.AnalysisResult](data)
	if !ok {
		return "", fmt.Errorf("expected AnalysisResult, got %T", data)
	}
	var b strings.Builder
	b.WriteString(f.style.title("ATS Analysis"))
	f.style.analysisBody(&b, result)
	return b.String(), nil
}

func (f *AnalysisFormatter) SupportedType() string { return TypeAnalysis }

// MatchFormatter renders a job match with the parsed resume it used
type MatchFormatter struct{ style *style }

func (f *MatchFormatter) Format(data any) (string, error) {
	result, ok := deref[types.MatchResult](data)
	if !ok {
		return "", fmt.Errorf("expected MatchResult, got %T", data)
	}
	var b strings.Builder
	b.WriteString(f.style.title("Job Match"))
	f.style.analysisBody(&b, result.AnalysisResult)

	b.WriteString(f.style.heading("Parsed Resume"))
	if result.ParseFailed {
		b.WriteString("Resume could not be parsed; matching used the raw text.\n\n")
	}
	parsed := result.ParsedResume
	b.WriteString(f.style.field("Estimated Experience", fmt.Sprintf("%.1f years", parsed.ExperienceYears)))
	if parsed.Summary != "" {
		b.WriteString(f.style.field("Summary", parsed.Summary))
	}
	if f.style == textStyle {
		b.WriteString("\n")
	}
	f.style.list(&b, "Skills Found", parsed.Skills)

	roles := make([]string, 0, len(parsed.Experience))
	for _, exp := range parsed.Experience {
		role := strings.TrimSpace(exp.Title + " at " + exp.Company)
		if exp.Duration != "" {
			role += " (" + exp.Duration + ")"
		}
		roles = append(roles, role)
	}
	f.style.list(&b, "Experience", roles)

	schools := make([]string, 0, len(parsed.Education))
	for _, edu := range parsed.Education {
		schools = append(schools, strings.TrimSpace(edu.Degree+", "+edu.School))
	}
	f.style.list(&b, "Education", schools)

	return b.String(), nil
}

func (f *MatchFormatter) SupportedType() string { return TypeMatch }

type ScoreFormatter struct{ style *style }

func (f *ScoreFormatter) Format(data any) (string, error) {
	report, ok := deref[types.ScoreReport](data)
	if !ok {
		return "", fmt.Errorf("expected ScoreReport, got %T", data)
	}
	var b strings.Builder
	b.WriteString(f.style.title("Resume Completeness"))
	b.WriteString(f.style.field("Score", fmt.Sprintf("%d/100", report.Score)))
	return b.String(), nil
}

func (f *ScoreFormatter) SupportedType() string { return TypeScore }

type SummaryFormatter struct{ style *style }

func (f *SummaryFormatter) Format(data any) (string, error) {
	summary, ok := deref[types.UserScoreSummary](data)
	if !ok {
		return "", fmt.Errorf("expected UserScoreSummary, got %T", data)
	}
	var b strings.Builder
	b.WriteString(f.style.title("Score Summary for " + summary.UserID))
	f.style.summaryBody(&b, summary)
	return b.String(), nil
}

func (f *SummaryFormatter) SupportedType() string { return TypeSummary }

type UserFormatter struct{ style *style }

func (f *UserFormatter) Format(data any) (string, error) {
	user, ok := deref[types.User](data)
	if !ok {
		return "", fmt.Errorf("expected User, got %T", data)
	}
	var b strings.Builder
	b.WriteString(f.style.title("User"))
	b.WriteString(f.style.field("ID", user.ID))
	b.WriteString(f.style.field("Email", user.Email))
	if user.Name != "" {
		b.WriteString(f.style.field("Name", user.Name))
	}
	b.WriteString(f.style.field("Created", user.CreatedAt.Format(time.RFC3339)))
	if user.Summary != nil {
		b.WriteString("\n")
		b.WriteString(f.style.heading("Score Summary"))
		f.style.summaryBody(&b, *user.Summary)
	}
	return b.String(), nil
}

func (f *UserFormatter) SupportedType() string { return TypeUser }

// RecordingFormatter renders a recorded event and the summary it produced
type RecordingFormatter struct{ style *style }

func (f *RecordingFormatter) Format(data any) (string, error) {
	recording, ok := deref[aggregate.Recording](data)
	if !ok {
		return "", fmt.Errorf("expected Recording, got %T", data)
	}
	var b strings.Builder
	b.WriteString(f.style.title("Recorded Event"))
	f.style.events(&b, []types.ScoredEvent{recording.Event})
	b.WriteString("\n")
	if recording.Summary == nil {
		b.WriteString("Summary was not updated; run recompute to retry.\n")
		return b.String(), nil
	}
	b.WriteString(f.style.heading("Score Summary"))
	f.style.summaryBody(&b, *recording.Summary)
	return b.String(), nil
}

func (f *RecordingFormatter) SupportedType() string { return TypeRecording }

type EventsFormatter struct{ style *style }

func (f *EventsFormatter) Format(data any) (string, error) {
	events, ok := data.([]types.ScoredEvent)
	if !ok {
		return "", fmt.Errorf("expected []ScoredEvent, got %T", data)
	}
	var b strings.Builder
	b.WriteString(f.style.title("Score History"))
	f.style.events(&b, events)
	return b.String(), nil
}

func (f *EventsFormatter) SupportedType() string { return TypeEvents }

// Global formatter registry
var GlobalRegistry = NewFormatterRegistry()

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"atscore/internal/aggregate"
	"atscore/internal/scoring"
	"atscore/internal/types"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
)

// Answers to yes/no selections
const (
	answerYes = "Yes"
	answerNo  = "No"
)

var experienceLevels = []string{
	"Entry level (0-1 years)",
	"Junior (1-2 years)",
	"Mid-level (3-5 years)",
	"Senior (5+ years)",
	"Lead / Principal (8+ years)",
}

// asker collects one answer at a time from the user
type asker interface {
	Ask(label string, required bool) (string, error)
	Choose(label string, items []string) (string, error)
	Confirm(label string) (bool, error)
}

// promptAsker asks on the terminal through promptui
type promptAsker struct{}

func (promptAsker) Ask(label string, required bool) (string, error) {
	p := promptui.Prompt{Label: label}
	if required {
		p.Validate = func(s string) error {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("%s is required", label)
			}
			return nil
		}
	}
	answer, err := p.Run()
	return strings.TrimSpace(answer), err
}

func (promptAsker) Choose(label string, items []string) (string, error) {
	s := promptui.Select{Label: label, Items: items}
	_, choice, err := s.Run()
	return choice, err
}

func (promptAsker) Confirm(label string) (bool, error) {
	s := promptui.Select{Label: label, Items: []string{answerYes, answerNo}}
	_, choice, err := s.Run()
	return choice == answerYes, err
}

// draftResult is printed after an interactive intake
type draftResult struct {
	Score     int                  `json:"score"`
	Analysis  types.AnalysisResult `json:"analysis"`
	Recording *aggregate.Recording `json:"recording,omitempty"`
	Draft     types.ResumeDraft    `json:"draft"`
}

func newDraftCmd(root *rootOptions) *cobra.Command {
	var saveFile, userID string

	cmd := &cobra.Command{
		Use:   "draft",
		Short: "Build a resume draft interactively, then score and analyze it",
		Long: `Walk through a guided intake of personal details, target role, skills,
work experience, education, projects and achievements. The finished draft is
scored and analyzed. Use --save to keep the draft as JSON and --user to record
it as a new resume version for that user.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, appOptions{store: userID != ""}, func(ctx context.Context, a *app) error {
				return runDraft(ctx, cmd, a, root, promptAsker{}, saveFile, userID)
			})
		},
	}

	cmd.Flags().StringVar(&saveFile, "save", "", "Write the finished draft to this JSON file")
	cmd.Flags().StringVar(&userID, "user", "", "Record the draft as a resume version for this user")
	return cmd
}

func runDraft(ctx context.Context, cmd *cobra.Command, a *app, root *rootOptions, q asker, saveFile, userID string) error {
	if userID != "" {
		if _, err := lookupUser(ctx, a, userID); err != nil {
			return err
		}
	}

	draft, err := collectDraft(q)
	if err != nil {
		return fmt.Errorf("draft intake cancelled: %w", err)
	}

	result := draftResult{
		Score:    scoring.ComputeScore(draft),
		Analysis: a.orchestrator.AnalyzeGenerated(ctx, draft),
		Draft:    draft,
	}
	logAnalysis(a, "analyze_generated", result.Analysis)

	if saveFile != "" {
		data, err := json.MarshalIndent(draft, "", "  ")
		if err != nil {
			return err
		}
		if err := a.files.WriteFile(saveFile, data); err != nil {
			return err
		}
		a.logger.Info("Draft saved", "file", saveFile)
	}

	if userID != "" {
		result.Recording, err = a.recorder.RecordResumeVersion(ctx, userID, result.Score)
		if err != nil {
			return err
		}
	}

	out := outputHandler(cmd, a.logger)
	if root.output.OutputFormat == "json" {
		return out.HandleOutput(result, root.output)
	}
	sections := []any{types.ScoreReport{Score: result.Score}, result.Analysis}
	if result.Recording != nil {
		sections = append(sections, result.Recording)
	}
	return out.HandleSections(root.output, sections...)
}

// collectDraft runs the guided intake. Every list in the result is non-nil.
func collectDraft(q asker) (types.ResumeDraft, error) {
	var d types.ResumeDraft
	var err error

	p := &d.PersonalInfo
	fields := []struct {
		label    string
		required bool
		dst      *string
	}{
		{"Full name", true, &p.FullName},
		{"Email", true, &p.Email},
		{"Phone", false, &p.Phone},
		{"Location", false, &p.Location},
		{"LinkedIn URL", false, &p.LinkedIn},
		{"Portfolio URL", false, &p.Portfolio},
		{"Target role", true, &d.TargetRole},
	}
	for _, f := range fields {
		if *f.dst, err = q.Ask(f.label, f.required); err != nil {
			return d, err
		}
	}

	if d.Experience, err = q.Choose("Experience level", experienceLevels); err != nil {
		return d, err
	}

	if d.Skills, err = askSkills(q); err != nil {
		return d, err
	}
	if d.WorkExperience, err = repeat(q, "Add work experience?", askWork); err != nil {
		return d, err
	}
	if d.Education, err = repeat(q, "Add education?", askEducation); err != nil {
		return d, err
	}
	if d.Projects, err = repeat(q, "Add a project?", askProject); err != nil {
		return d, err
	}
	if d.Achievements, err = repeat(q, "Add an achievement?", askAchievement); err != nil {
		return d, err
	}

	d.Normalize()
	return d, nil
}

// repeat asks for entries until the user declines
func repeat[T any](q asker, label string, ask func(asker) (T, error)) ([]T, error) {
	entries := []T{}
	for {
		more, err := q.Confirm(label)
		if err != nil || !more {
			return entries, err
		}
		entry, err := ask(q)
		if err != nil {
			return entries, err
		}
		entries = append(entries, entry)
	}
}

func askSkills(q asker) ([]types.Skill, error) {
	line, err := q.Ask("Skills (comma separated)", false)
	if err != nil {
		return nil, err
	}
	skills := []types.Skill{}
	for _, name := range splitCSV(line) {
		proof, err := q.Ask(fmt.Sprintf("Proof for %s (link or example, empty to skip)", name), false)
		if err != nil {
			return nil, err
		}
		skills = append(skills, types.Skill{Name: name, Proof: proof, Validated: proof != ""})
	}
	return skills, nil
}

func askWork(q asker) (types.WorkExperience, error) {
	var w types.WorkExperience
	var err error
	for _, f := range []struct {
		label    string
		required bool
		dst      *string
	}{
		{"Company", true, &w.Company},
		{"Title", true, &w.Title},
		{"Start date", false, &w.StartDate},
		{"End date (empty if current)", false, &w.EndDate},
		{"Description", false, &w.Description},
	} {
		if *f.dst, err = q.Ask(f.label, f.required); err != nil {
			return w, err
		}
	}
	line, err := q.Ask("Achievements (semicolon separated)", false)
	if err != nil {
		return w, err
	}
	w.Achievements = splitList(line, ";")
	return w, nil
}

func askEducation(q asker) (types.Education, error) {
	var e types.Education
	var err error
	for _, f := range []struct {
		label    string
		required bool
		dst      *string
	}{
		{"School", true, &e.School},
		{"Degree", true, &e.Degree},
		{"Field of study", false, &e.Field},
		{"Graduation year", false, &e.GraduationYear},
	} {
		if *f.dst, err = q.Ask(f.label, f.required); err != nil {
			return e, err
		}
	}
	return e, nil
}

func askProject(q asker) (types.Project, error) {
	var p types.Project
	var err error
	if p.Name, err = q.Ask("Project name", true); err != nil {
		return p, err
	}
	if p.Description, err = q.Ask("Project description", true); err != nil {
		return p, err
	}
	line, err := q.Ask("Technologies (comma separated)", false)
	if err != nil {
		return p, err
	}
	p.Technologies = splitCSV(line)
	if p.URL, err = q.Ask("Project URL", false); err != nil {
		return p, err
	}
	return p, nil
}

func askAchievement(q asker) (types.Achievement, error) {
	var a types.Achievement
	var err error
	if a.Title, err = q.Ask("Achievement title", true); err != nil {
		return a, err
	}
	if a.Description, err = q.Ask("Achievement description", true); err != nil {
		return a, err
	}
	if a.Date, err = q.Ask("Date", false); err != nil {
		return a, err
	}
	return a, nil
}

func splitCSV(line string) []string {
	return splitList(line, ",")
}

func splitList(line, sep string) []string {
	items := []string{}
	for part := range strings.SplitSeq(line, sep) {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	return items
}

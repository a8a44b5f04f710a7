package cli

import (
	"fmt"
	"testing"

	"atscore/internal/scoring"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedAsker replays answers in order
type scriptedAsker struct {
	answers []string
	asked   []string
}

func (s *scriptedAsker) next(label string) (string, error) {
	s.asked = append(s.asked, label)
	if len(s.answers) == 0 {
		return "", fmt.Errorf("no answer scripted for %q", label)
	}
	answer := s.answers[0]
	s.answers = s.answers[1:]
	return answer, nil
}

func (s *scriptedAsker) Ask(label string, _ bool) (string, error) { return s.next(label) }

func (s *scriptedAsker) Choose(label string, _ []string) (string, error) { return s.next(label) }

func (s *scriptedAsker) Confirm(label string) (bool, error) {
	answer, err := s.next(label)
	return answer == answerYes, err
}

func TestCollectDraft(t *testing.T) {
	q := &scriptedAsker{answers: []string{
		// personal info and role
		"Ada Lovelace", "ada@example.com", "555-0100", "London", "", "https://ada.dev", "Backend Engineer",
		experienceLevels[3],
		// skills with proof for Go only
		"Go, SQL ,", "https://github.com/ada/go", "",
		// one work entry
		answerYes, "Analytical Engines", "Engineer", "2020", "", "Built things", "Shipped v1; Cut latency 30%",
		answerNo,
		// one education entry
		answerYes, "University of London", "BSc", "Mathematics", "2019",
		answerNo,
		// no projects, one achievement
		answerNo,
		answerYes, "First program", "Published the first algorithm", "1843",
		answerNo,
	}}

	draft, err := collectDraft(q)
	require.NoError(t, err)
	assert.Empty(t, q.answers)

	assert.Equal(t, "Ada Lovelace", draft.PersonalInfo.FullName)
	assert.Equal(t, "Backend Engineer", draft.TargetRole)
	assert.Equal(t, "Senior (5+ years)", draft.Experience)

	require.Len(t, draft.Skills, 2)
	assert.True(t, draft.Skills[0].Validated)
	assert.False(t, draft.Skills[1].Validated)
	assert.Equal(t, "SQL", draft.Skills[1].Name)

	require.Len(t, draft.WorkExperience, 1)
	assert.Equal(t, []string{"Shipped v1", "Cut latency 30%"}, draft.WorkExperience[0].Achievements)
	require.Len(t, draft.Education, 1)
	assert.NotNil(t, draft.Projects)
	assert.Empty(t, draft.Projects)
	require.Len(t, draft.Achievements, 1)

	// Everything but the projects section, one optional link and one unproven skill
	assert.Equal(t, 93, scoring.ComputeScore(draft))
}

func TestCollectDraftStopsOnError(t *testing.T) {
	q := &scriptedAsker{answers: []string{"Ada"}}
	_, err := collectDraft(q)
	assert.Error(t, err)
	assert.Equal(t, []string{"Full name", "Email"}, q.asked)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitCSV(" a, ,b ,"))
	assert.Equal(t, []string{}, splitList("", ";"))
}

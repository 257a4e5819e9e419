package triage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/inbox-triage/internal/ai"
	"github.com/nhle/inbox-triage/internal/logging"
	"github.com/nhle/inbox-triage/internal/model"
	"github.com/nhle/inbox-triage/internal/store"
	"github.com/nhle/inbox-triage/tests/testutil"
)

func TestPriorityFor(t *testing.T) {
	tests := []struct {
		category model.Category
		subject  string
		want     model.Priority
	}{
		{model.CategoryRequiredPersonalAction, "Quarterly Report", model.PriorityHigh},
		{model.CategoryOptionalAction, "URGENT: sign this", model.PriorityHigh},
		{model.CategoryOptionalAction, "FYI newsletter", model.PriorityMedium},
		{model.CategoryTeamAction, "Sprint planning (urgent)", model.PriorityHigh},
		{model.CategoryTeamAction, "Sprint planning", model.PriorityMedium},
		{model.CategoryJobListing, "Urgent hire: Go engineer", model.PriorityMedium},
		{model.CategoryOptionalEvent, "Meetup", model.PriorityLow},
		{model.CategoryFYI, "Status", model.PriorityLow},
		{model.CategoryNewsletter, "Weekly", model.PriorityLow},
	}

	for _, tt := range tests {
		t.Run(string(tt.category)+"/"+tt.subject, func(t *testing.T) {
			assert.Equal(t, tt.want, PriorityFor(tt.category, tt.subject))
		})
	}
}

func TestIsFallbackAction(t *testing.T) {
	for _, text := range []string{
		"",
		"   ",
		"Unable to extract action items",
		"Review email content manually",
		"unable to parse structured response",
		ai.Unavailable,
		"Content filter blocked this request",
	} {
		assert.True(t, IsFallbackAction(text), text)
	}
	assert.False(t, IsFallbackAction("Sign the NDA"))
}

func newExtractor(t *testing.T, inf Inference) (*Extractor, store.Store) {
	t.Helper()
	s := testutil.NewTestStore(t)
	return NewExtractor(inf, s, logging.Discard()), s
}

func onlyTask(t *testing.T, s store.Store) model.TaskDraft {
	t.Helper()
	tasks, err := s.GetTasks(context.Background(), store.TaskFilter{})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	return tasks[0]
}

var actionEmail = model.EmailRecord{
	ID:      "INBOX/7",
	Subject: "Quarterly Report",
	Sender:  "Boss <boss@example.com>",
}

func TestDispatchActionCreatesTask(t *testing.T) {
	inf := &fakeInference{extract: func(string) ai.Outcome[ai.ActionItems] {
		return ai.OK(ai.ActionItems{
			Items:          []string{"Send the quarterly report", "Attach the budget sheet"},
			ActionRequired: "Send the quarterly report",
			DueDate:        "Please respond by 2024-03-15",
			Explanation:    "The board meets next week.",
			Links:          []string{"https://drive.example.com/report"},
			Structured:     true,
		})
	}}
	x, s := newExtractor(t, inf)

	res := x.Dispatch(context.Background(), actionEmail, model.CategoryRequiredPersonalAction,
		"Template at https://wiki.example.com/template.")
	require.NoError(t, res.Err)
	assert.True(t, res.TaskCreated)
	assert.False(t, res.SummaryCreated)
	assert.Equal(t, model.TaskKindAction, res.Kind)

	task := onlyTask(t, s)
	assert.Equal(t, "Send the quarterly report", task.Title)
	assert.Equal(t, model.PriorityHigh, task.Priority)
	assert.Equal(t, model.StatusTodo, task.Status)
	assert.Equal(t, actionEmail.ID, task.LinkedEmailID)
	require.NotNil(t, task.DueDate)
	assert.Equal(t, "2024-03-15", task.DueDate.Format(time.DateOnly))
	assert.Contains(t, task.Description, "- Attach the budget sheet")
	assert.Contains(t, task.Description, "The board meets next week.")
	assert.Equal(t, []string{"required_personal_action", "action"}, task.Tags)
	assert.Equal(t, []string{
		"https://drive.example.com/report",
		"https://wiki.example.com/template",
	}, task.Metadata.Links)
	assert.Equal(t, actionEmail.Sender, task.Metadata.Sender)
}

func TestDispatchSkipsFallbackAnswer(t *testing.T) {
	inf := &fakeInference{extract: actionAnswer("Unable to extract action items", "")}
	x, s := newExtractor(t, inf)

	res := x.Dispatch(context.Background(), actionEmail, model.CategoryTeamAction, "")
	assert.NoError(t, res.Err)
	assert.False(t, res.TaskCreated)

	tasks, err := s.GetTasks(context.Background(), store.TaskFilter{})
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestDispatchDegradedExtractionIsRecorded(t *testing.T) {
	x, s := newExtractor(t, &fakeInference{})

	res := x.Dispatch(context.Background(), actionEmail, model.CategoryOptionalAction, "")
	assert.ErrorIs(t, res.Err, errBackend)
	assert.False(t, res.TaskCreated)

	tasks, err := s.GetTasks(context.Background(), store.TaskFilter{})
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestDispatchJobAndEvent(t *testing.T) {
	inf := &fakeInference{extract: actionAnswer("Apply before the role closes", "no deadline")}
	x, s := newExtractor(t, inf)
	ctx := context.Background()

	job := model.EmailRecord{ID: "j", Subject: "Senior Go Engineer at Acme"}
	res := x.Dispatch(ctx, job, model.CategoryJobListing, "")
	require.NoError(t, res.Err)
	assert.True(t, res.TaskCreated)
	assert.Equal(t, model.TaskKindJob, res.Kind)

	event := model.EmailRecord{ID: "e", Subject: "Go meetup on Thursday"}
	res = x.Dispatch(ctx, event, model.CategoryOptionalEvent, "")
	require.NoError(t, res.Err)
	assert.True(t, res.TaskCreated)

	jobTasks, err := s.GetTasks(ctx, store.TaskFilter{Category: testutil.CategoryPtr(model.CategoryJobListing)})
	require.NoError(t, err)
	require.Len(t, jobTasks, 1)
	assert.Equal(t, "Job: Senior Go Engineer at Acme", jobTasks[0].Title)
	assert.Equal(t, model.PriorityMedium, jobTasks[0].Priority)
	assert.Nil(t, jobTasks[0].DueDate)

	eventTasks, err := s.GetTasks(ctx, store.TaskFilter{Category: testutil.CategoryPtr(model.CategoryOptionalEvent)})
	require.NoError(t, err)
	require.Len(t, eventTasks, 1)
	assert.Equal(t, "Event: Go meetup on Thursday", eventTasks[0].Title)
	assert.Equal(t, model.PriorityLow, eventTasks[0].Priority)
	assert.Equal(t, model.TaskKindEvent, eventTasks[0].Metadata.Kind)
}

func TestDispatchSummaryKinds(t *testing.T) {
	var kinds []ai.SummaryKind
	inf := &fakeInference{summarize: func(_ string, kind ai.SummaryKind) ai.Outcome[ai.Summary] {
		kinds = append(kinds, kind)
		return ai.OK(ai.Summary{
			Summary:    "Release 2.0 shipped.",
			KeyPoints:  []string{"New API", "Faster builds"},
			Confidence: 0.8,
		})
	}}
	x, s := newExtractor(t, inf)
	ctx := context.Background()

	res := x.Dispatch(ctx, model.EmailRecord{ID: "f", Subject: "Release notes"}, model.CategoryFYI, "")
	require.NoError(t, res.Err)
	assert.True(t, res.SummaryCreated)
	assert.False(t, res.TaskCreated)

	res = x.Dispatch(ctx, model.EmailRecord{ID: "n", Subject: "Weekly digest"}, model.CategoryNewsletter, "")
	require.NoError(t, res.Err)
	assert.True(t, res.SummaryCreated)

	assert.Equal(t, []ai.SummaryKind{ai.SummaryFYI, ai.SummaryDetailed}, kinds)

	linked := "f"
	tasks, err := s.GetTasks(ctx, store.TaskFilter{LinkedEmailID: &linked})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.True(t, tasks[0].IsSummary())
	assert.Equal(t, "Summary: Release notes", tasks[0].Title)
	assert.Equal(t, model.PriorityLow, tasks[0].Priority)
	assert.Contains(t, tasks[0].Description, "- Faster builds")
}

func TestDispatchSummaryUnable(t *testing.T) {
	inf := &fakeInference{summarize: func(string, ai.SummaryKind) ai.Outcome[ai.Summary] {
		return ai.OK(ai.Summary{Summary: ai.UnableToSummarize, Confidence: 0.5})
	}}
	x, _ := newExtractor(t, inf)

	res := x.Dispatch(context.Background(), model.EmailRecord{ID: "f"}, model.CategoryFYI, "")
	assert.NoError(t, res.Err)
	assert.False(t, res.SummaryCreated)
}

func TestDispatchSummaryFailureIsRecorded(t *testing.T) {
	x, _ := newExtractor(t, &fakeInference{})

	res := x.Dispatch(context.Background(), model.EmailRecord{ID: "f"}, model.CategoryFYI, "")
	assert.True(t, errors.Is(res.Err, errBackend))
	assert.False(t, res.SummaryCreated)
}

func TestDispatchNoOpCategories(t *testing.T) {
	inf := &fakeInference{}
	x, _ := newExtractor(t, inf)

	for _, c := range []model.Category{model.CategorySpamToDelete, model.CategoryWorkRelevant, "unknown"} {
		res := x.Dispatch(context.Background(), actionEmail, c, "")
		assert.Equal(t, DispatchResult{}, res, string(c))
	}
	assert.Zero(t, inf.total())
}

func TestDispatchDuplicateIsNotAnError(t *testing.T) {
	inf := &fakeInference{extract: actionAnswer("Send the report", "")}
	x, s := newExtractor(t, inf)
	ctx := context.Background()

	first := x.Dispatch(ctx, actionEmail, model.CategoryRequiredPersonalAction, "")
	require.NoError(t, first.Err)
	assert.True(t, first.TaskCreated)

	second := x.Dispatch(ctx, actionEmail, model.CategoryRequiredPersonalAction, "")
	assert.NoError(t, second.Err)
	assert.False(t, second.TaskCreated)

	onlyTask(t, s)
}

func TestTruncateTitle(t *testing.T) {
	long := ""
	for range 200 {
		long += "é"
	}
	got := truncateTitle(long)
	assert.Len(t, []rune(got), maxTitleLen)
	assert.Equal(t, "...", got[len(got)-3:])
}

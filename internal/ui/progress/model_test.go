package progress

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/inbox-triage/internal/model"
	"github.com/nhle/inbox-triage/internal/triage"
)

func TestModelForwardsProgressAndResult(t *testing.T) {
	run := func(_ context.Context, progress triage.ProgressFunc) (triage.BatchResult, error) {
		progress(triage.Progress{
			Index: 1, Total: 1, EmailID: "a", Subject: "Sign the NDA",
			Category: model.CategoryRequiredPersonalAction,
			Result:   triage.DispatchResult{TaskCreated: true},
		})
		return triage.BatchResult{TasksCreated: 1, ProcessedCount: 1, TotalRequested: 1}, nil
	}
	m := New(context.Background(), run)

	go m.start()()

	msg := m.waitForEvent()()
	require.IsType(t, EmailDoneMsg{}, msg)
	next, cmd := m.Update(msg)
	require.NotNil(t, cmd)
	m = next.(Model)
	assert.Contains(t, m.View(), "Sign the NDA")
	assert.Contains(t, m.View(), "task created")
	assert.Contains(t, m.View(), "1/1 done")

	msg = m.waitForEvent()()
	require.IsType(t, BatchDoneMsg{}, msg)
	next, _ = m.Update(msg)
	m = next.(Model)

	require.NotNil(t, m.Result())
	assert.Equal(t, 1, m.Result().Result.TasksCreated)
	assert.Contains(t, m.View(), "1/1 processed, 1 tasks, 0 summaries, 0 errors")
}

func TestModelCancelWaitsForPartialResult(t *testing.T) {
	started := make(chan struct{})
	stopped := make(chan error, 1)
	run := func(ctx context.Context, progress triage.ProgressFunc) (triage.BatchResult, error) {
		progress(triage.Progress{Index: 1, Total: 3, EmailID: "a", Category: model.CategoryTeamAction,
			Result: triage.DispatchResult{TaskCreated: true}})
		close(started)
		<-ctx.Done()
		stopped <- ctx.Err()
		return triage.BatchResult{TasksCreated: 1, ProcessedCount: 1, TotalRequested: 3, Errors: []string{}}, ctx.Err()
	}
	m := New(context.Background(), run)
	go m.start()()

	next, _ := m.Update(m.waitForEvent()())
	m = next.(Model)
	<-started

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	m = next.(Model)
	assert.Nil(t, cmd, "the view stays until the batch returns")
	assert.ErrorIs(t, <-stopped, context.Canceled)
	assert.Contains(t, m.View(), "cancelling")

	msg := m.waitForEvent()()
	require.IsType(t, BatchDoneMsg{}, msg)
	next, cmd = m.Update(msg)
	m = next.(Model)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	require.NotNil(t, m.Result())
	assert.Equal(t, 1, m.Result().Result.TasksCreated)
	assert.ErrorIs(t, m.Result().Err, context.Canceled)
}

func TestModelSecondCancelQuitsAtOnce(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	run := func(context.Context, triage.ProgressFunc) (triage.BatchResult, error) {
		<-block
		return triage.BatchResult{}, nil
	}
	m := New(context.Background(), run)
	go m.start()()

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = next.(Model)
	assert.Nil(t, cmd)

	next, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = next.(Model)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Nil(t, m.Result())
	assert.Nil(t, m.waitForEvent()(), "forwarding stops once the view is gone")
}

func TestSummaryIncludesError(t *testing.T) {
	out := Summary(triage.BatchResult{Errors: []string{"x"}}, errors.New("store unreachable"))
	assert.Contains(t, out, "1 errors")
	assert.Contains(t, out, "store unreachable")
}

func TestModelErrorsToggleHidesSuccesses(t *testing.T) {
	m := New(context.Background(), nil)

	for _, p := range []triage.Progress{
		{Index: 1, Total: 2, EmailID: "a", Subject: "Fine email", Category: model.CategoryFYI},
		{Index: 2, Total: 2, EmailID: "b", Subject: "Broken email", Category: model.CategoryFYI,
			Result: triage.DispatchResult{Err: errors.New("model unavailable")}},
	} {
		next, _ := m.Update(EmailDoneMsg(p))
		m = next.(Model)
	}
	assert.Contains(t, m.View(), "Fine email")

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("e")})
	m = next.(Model)
	assert.NotContains(t, m.View(), "Fine email")
	assert.Contains(t, m.View(), "Broken email")
}

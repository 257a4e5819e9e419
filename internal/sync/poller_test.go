package sync

import (
	"context"
	"errors"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/inbox-triage/internal/logging"
	"github.com/nhle/inbox-triage/internal/mail"
	"github.com/nhle/inbox-triage/internal/model"
	"github.com/nhle/inbox-triage/internal/triage"
	"github.com/nhle/inbox-triage/tests/testutil"
)

type fakeLister struct {
	mu     gosync.Mutex
	emails []model.EmailRecord
	err    error
	calls  int
}

func (f *fakeLister) ListEmails(_ context.Context, _ string, count, _ int) ([]model.EmailRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if count < len(f.emails) {
		return f.emails[:count], nil
	}
	return f.emails, nil
}

type fakePipeline struct {
	mu      gosync.Mutex
	batches [][]string
	err     error
}

func (f *fakePipeline) ExtractTasks(_ context.Context, ids []string, progress triage.ProgressFunc) (triage.BatchResult, error) {
	f.mu.Lock()
	f.batches = append(f.batches, ids)
	f.mu.Unlock()
	for i, id := range ids {
		if progress != nil {
			progress(triage.Progress{Index: i + 1, Total: len(ids), EmailID: id})
		}
	}
	return triage.BatchResult{
		TasksCreated:   len(ids),
		ProcessedCount: len(ids),
		TotalRequested: len(ids),
		Errors:         []string{},
	}, f.err
}

var now = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func listed(ids ...string) []model.EmailRecord {
	out := make([]model.EmailRecord, len(ids))
	for i, id := range ids {
		out[i] = model.EmailRecord{ID: id, Subject: id, Folder: "INBOX", Date: now.Add(-time.Duration(i) * time.Hour)}
	}
	return out
}

func TestSyncOnce(t *testing.T) {
	s := testutil.NewTestStore(t)
	testutil.SeedEmails(t, s, listed("old")...)
	require.NoError(t, s.MarkProcessed(context.Background(), []string{"old"}, now))

	lister := &fakeLister{emails: listed("new1", "new2", "old")}
	pipeline := &fakePipeline{}
	p := New(s, lister, pipeline, Config{BatchSize: 10}, logging.Discard())

	var progressed []string
	p.OnProgress(func(pr triage.Progress) { progressed = append(progressed, pr.EmailID) })

	msg := p.SyncOnce(context.Background())
	require.NoError(t, msg.Error)
	assert.Equal(t, 3, msg.Fetched)
	assert.Equal(t, 2, msg.NewCount)
	assert.Equal(t, 2, msg.Batch.TasksCreated)

	require.Len(t, pipeline.batches, 1)
	assert.Equal(t, []string{"new1", "new2"}, pipeline.batches[0])
	assert.Equal(t, []string{"new1", "new2"}, progressed)

	st := p.Status()
	assert.Equal(t, SyncIdle, st.State)
	assert.False(t, st.LastSync.IsZero())
}

func TestSyncOnceMailUnavailable(t *testing.T) {
	s := testutil.NewTestStore(t)
	lister := &fakeLister{err: &mail.ConnectionError{Op: "list_emails", Err: mail.ErrConnectionLost}}
	pipeline := &fakePipeline{}
	p := New(s, lister, pipeline, Config{}, logging.Discard())

	msg := p.SyncOnce(context.Background())
	require.Error(t, msg.Error)
	assert.True(t, msg.AuthError)
	assert.Empty(t, pipeline.batches)

	st := p.Status()
	assert.Equal(t, SyncError, st.State)
	assert.Equal(t, "error", st.State.String())
}

func TestSyncOncePipelineError(t *testing.T) {
	s := testutil.NewTestStore(t)
	p := New(s, &fakeLister{emails: listed("a")}, &fakePipeline{err: errors.New("db gone")}, Config{}, logging.Discard())

	msg := p.SyncOnce(context.Background())
	assert.ErrorContains(t, msg.Error, "db gone")
	assert.False(t, msg.AuthError)
}

func TestRunStopsWithContext(t *testing.T) {
	s := testutil.NewTestStore(t)
	lister := &fakeLister{emails: listed("a")}
	p := New(s, lister, &fakePipeline{}, Config{Interval: time.Hour}, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool {
		return !p.Status().LastSync.IsZero()
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Empty(t, p.resultCh, "results are not queued without a subscriber")
}

func TestStartStopRestart(t *testing.T) {
	s := testutil.NewTestStore(t)
	p := New(s, &fakeLister{}, &fakePipeline{}, Config{Interval: time.Hour}, logging.Discard())
	ctx := context.Background()

	cmd := p.Start(ctx)
	require.NotNil(t, cmd)
	assert.Nil(t, p.Start(ctx), "second start is a no-op")

	_, ok := cmd().(SyncResultMsg)
	assert.True(t, ok)

	p.Stop()
	p.Stop()

	cmd = p.Start(ctx)
	require.NotNil(t, cmd, "start after stop runs again")
	_, ok = cmd().(SyncResultMsg)
	assert.True(t, ok)
	p.Stop()
}

func TestRefreshDeliversNextResult(t *testing.T) {
	s := testutil.NewTestStore(t)
	lister := &fakeLister{emails: listed("a")}
	p := New(s, lister, &fakePipeline{}, Config{Interval: time.Hour}, logging.Discard())
	defer p.Stop()

	first, ok := p.Start(context.Background())().(SyncResultMsg)
	require.True(t, ok)
	assert.Equal(t, 1, first.NewCount)

	p.Refresh()
	second, ok := p.WaitForNextResult()().(SyncResultMsg)
	require.True(t, ok)
	assert.Equal(t, 1, second.Fetched)
	assert.Zero(t, second.NewCount)
}

// Package sync pulls new mail into the store and runs the triage pipeline
// over it, once or on a schedule.
package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/nhle/inbox-triage/internal/mail"
	"github.com/nhle/inbox-triage/internal/model"
	"github.com/nhle/inbox-triage/internal/store"
	"github.com/nhle/inbox-triage/internal/triage"
)

// SyncState represents the current state of the poller.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

func (s SyncState) String() string {
	switch s {
	case SyncRunning:
		return "running"
	case SyncError:
		return "error"
	}
	return "idle"
}

// SyncStatus holds the state of the last sync.
type SyncStatus struct {
	State    SyncState
	LastSync time.Time
	Error    error
}

// SyncResultMsg is a tea.Msg sent when a sync operation completes.
type SyncResultMsg struct {
	Fetched  int
	NewCount int
	Batch    triage.BatchResult
	Error    error

	// AuthError is set when the mailbox could not be reached at all.
	AuthError bool
}

// Lister lists messages of a mailbox folder.
type Lister interface {
	ListEmails(ctx context.Context, folder string, count, offset int) ([]model.EmailRecord, error)
}

// Pipeline runs task extraction over stored emails.
type Pipeline interface {
	ExtractTasks(ctx context.Context, ids []string, progress triage.ProgressFunc) (triage.BatchResult, error)
}

// Config controls what a sync fetches and how often.
type Config struct {
	Folder    string
	BatchSize int
	Interval  time.Duration

	// Timeout bounds one sync, zero for none.
	Timeout time.Duration
}

const (
	defaultInterval  = 300 * time.Second
	defaultBatchSize = 25
)

// Poller orchestrates syncing the mailbox into the store.
type Poller struct {
	store    store.Store
	mail     Lister
	pipeline Pipeline
	cfg      Config
	logger   *log.Logger
	progress triage.ProgressFunc

	status    SyncStatus
	resultCh  chan SyncResultMsg
	triggerCh chan struct{}
	stopCh    chan struct{}
	mu        gosync.Mutex
	running   bool
}

// New creates a new Poller.
func New(
	s store.Store,
	mb Lister,
	pipeline Pipeline,
	cfg Config,
	logger *log.Logger,
) *Poller {
	if cfg.Folder == "" {
		cfg.Folder = "INBOX"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Poller{
		store:     s,
		mail:      mb,
		pipeline:  pipeline,
		cfg:       cfg,
		logger:    logger,
		resultCh:  make(chan SyncResultMsg, 16),
		triggerCh: make(chan struct{}, 1),
	}
}

// OnProgress registers fn to receive per-email progress of every sync.
func (p *Poller) OnProgress(fn triage.ProgressFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.progress = fn
}

// SyncOnce lists the newest emails of the folder, stores them, and runs
// the pipeline over every email not processed yet.
func (p *Poller) SyncOnce(ctx context.Context) SyncResultMsg {
	p.setStatus(SyncRunning, nil)

	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	msg := p.sync(ctx)
	if msg.Error != nil {
		p.setStatus(SyncError, msg.Error)
		p.logger.Error("sync failed", "err", msg.Error)
	} else {
		p.setStatus(SyncIdle, nil)
		p.logger.Info("sync done",
			"fetched", msg.Fetched,
			"new", msg.NewCount,
			"tasks", msg.Batch.TasksCreated,
			"summaries", msg.Batch.SummariesCreated,
		)
	}
	return msg
}

func (p *Poller) sync(ctx context.Context) SyncResultMsg {
	emails, err := p.mail.ListEmails(ctx, p.cfg.Folder, p.cfg.BatchSize, 0)
	if err != nil {
		return SyncResultMsg{
			Error:     fmt.Errorf("listing %s: %w", p.cfg.Folder, err),
			AuthError: isUnreachable(err),
		}
	}

	ids := make([]string, len(emails))
	for i, e := range emails {
		ids[i] = e.ID
	}
	known, err := p.store.GetEmailsByIDs(ctx, ids)
	if err != nil {
		return SyncResultMsg{Error: fmt.Errorf("checking known emails: %w", err)}
	}

	if err := p.store.UpsertEmails(ctx, emails); err != nil {
		return SyncResultMsg{Error: fmt.Errorf("storing emails: %w", err)}
	}

	pending, err := p.store.UnprocessedIDs(ctx, p.cfg.BatchSize)
	if err != nil {
		return SyncResultMsg{Error: fmt.Errorf("listing unprocessed emails: %w", err)}
	}

	p.mu.Lock()
	progress := p.progress
	p.mu.Unlock()

	batch, err := p.pipeline.ExtractTasks(ctx, pending, progress)
	msg := SyncResultMsg{
		Fetched:  len(emails),
		NewCount: len(emails) - len(known),
		Batch:    batch,
	}
	if err != nil {
		msg.Error = fmt.Errorf("extracting tasks: %w", err)
	}
	return msg
}

// Run syncs immediately, then every interval and on Refresh, until ctx
// ends. Results only reach WaitForNextResult while a view subscribed
// through Start.
func (p *Poller) Run(ctx context.Context) error {
	return p.loop(ctx, nil)
}

func (p *Poller) loop(ctx context.Context, stop <-chan struct{}) error {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.sendResult(p.SyncOnce(ctx))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		case <-ticker.C:
			p.sendResult(p.SyncOnce(ctx))
		case <-p.triggerCh:
			p.sendResult(p.SyncOnce(ctx))
		}
	}
}

// Start returns a tea.Cmd that starts the polling goroutine and
// subscribes to results. It returns nil while already running.
func (p *Poller) Start(ctx context.Context) tea.Cmd {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.stopCh = make(chan struct{})
	stop := p.stopCh
	p.mu.Unlock()

	go func() {
		_ = p.loop(ctx, stop)
	}()

	return p.waitForResult()
}

// Stop halts the polling goroutine started by Start. Start may be called
// again afterwards.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}

	close(p.stopCh)
	p.running = false
}

// Refresh triggers an immediate sync.
func (p *Poller) Refresh() {
	select {
	case p.triggerCh <- struct{}{}:
	default:
		// A sync is already pending.
	}
}

// Status returns the state of the last sync.
func (p *Poller) Status() SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// setStatus updates the sync status.
func (p *Poller) setStatus(state SyncState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status.State = state
	p.status.Error = err
	if state == SyncIdle && err == nil {
		p.status.LastSync = time.Now()
	}
}

// sendResult hands msg to a subscribed view without blocking.
func (p *Poller) sendResult(msg SyncResultMsg) {
	p.mu.Lock()
	subscribed := p.running
	p.mu.Unlock()
	if !subscribed {
		return
	}

	select {
	case p.resultCh <- msg:
	default:
		// Drop if channel is full to avoid blocking the poller
	}
}

// waitForResult returns a tea.Cmd that waits for the next result from
// the result channel.
func (p *Poller) waitForResult() tea.Cmd {
	return func() tea.Msg {
		result, ok := <-p.resultCh
		if !ok {
			return nil
		}
		return result
	}
}

// WaitForNextResult returns a tea.Cmd that waits for the next sync result.
// This should be called after processing a SyncResultMsg to continue
// listening for future results.
func (p *Poller) WaitForNextResult() tea.Cmd {
	return p.waitForResult()
}

func isUnreachable(err error) bool {
	var connErr *mail.ConnectionError
	return errors.As(err, &connErr) || errors.Is(err, mail.ErrUnavailable)
}

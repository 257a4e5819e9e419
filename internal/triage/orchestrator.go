package triage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"

	"github.com/nhle/inbox-triage/internal/ai"
	"github.com/nhle/inbox-triage/internal/model"
	"github.com/nhle/inbox-triage/internal/store"
)

// ErrNoStore is returned when an Orchestrator has no storage.
var ErrNoStore = errors.New("triage: no store configured")

// BatchResult aggregates one ExtractTasks run. Counts only cover the
// emails that went through without an error.
type BatchResult struct {
	TasksCreated     int      `json:"tasks_created"`
	SummariesCreated int      `json:"summaries_created"`
	Errors           []string `json:"errors"`
	ProcessedCount   int      `json:"processed_count"`
	TotalRequested   int      `json:"total_requested"`
}

// Progress describes one finished email of a batch.
type Progress struct {
	Index    int
	Total    int
	EmailID  string
	Subject  string
	Category model.Category
	Source   Source
	Result   DispatchResult
}

// ProgressFunc receives a Progress after every email.
type ProgressFunc func(Progress)

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Store  store.Store
	Mail   Mailbox
	AI     Inference
	Logger *log.Logger

	// FileFolders moves each email into its category folder after
	// dispatch.
	FileFolders bool

	// Now defaults to time.Now.
	Now func() time.Time
}

// Orchestrator drives the pipeline over a batch of email ids. It keeps no
// state between batches, so concurrent batches only share the mailbox.
type Orchestrator struct {
	store     store.Store
	mail      Mailbox
	logger    *log.Logger
	now       func() time.Time
	holistic  *HolisticAnalyzer
	classify  *Classifier
	extractor *Extractor
	organizer *Organizer
}

// NewOrchestrator wires the pipeline from deps.
func NewOrchestrator(deps Deps) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	o := &Orchestrator{
		store:     deps.Store,
		mail:      deps.Mail,
		logger:    logger,
		now:       now,
		holistic:  NewHolisticAnalyzer(deps.AI, logger.WithPrefix("holistic")),
		classify:  NewClassifier(deps.AI, deps.Store, logger.WithPrefix("classifier")),
		extractor: NewExtractor(deps.AI, deps.Store, logger.WithPrefix("extractor")),
	}
	if deps.FileFolders && deps.Mail != nil {
		o.organizer = NewOrganizer(deps.Mail, deps.Store, logger.WithPrefix("organizer"))
	}
	return o
}

// ExtractTasks runs the pipeline over ids in order. A failing email is
// recorded in Errors and the batch moves on. The error return is reserved
// for storage being unreachable and for cancellation, in which case the
// result holds what was done so far.
func (o *Orchestrator) ExtractTasks(
	ctx context.Context,
	ids []string,
	progress ProgressFunc,
) (BatchResult, error) {
	result := BatchResult{Errors: []string{}, TotalRequested: len(ids)}
	if len(ids) == 0 {
		return result, nil
	}
	if o.store == nil {
		return result, ErrNoStore
	}

	ids = lo.Uniq(ids)
	emails, err := o.store.GetEmailsByIDs(ctx, ids)
	if err != nil {
		return result, fmt.Errorf("loading emails: %w", err)
	}

	found := lo.SliceToMap(emails, func(e model.EmailRecord) (string, bool) {
		return e.ID, true
	})
	for _, id := range ids {
		if !found[id] {
			result.Errors = append(result.Errors, fmt.Sprintf("email %s: not found", id))
		}
	}
	if len(emails) == 0 {
		return result, nil
	}

	bodies := o.fetchBodies(ctx, emails, &result)

	withBodies := lo.Map(emails, func(e model.EmailRecord, _ int) model.EmailRecord {
		e.Body, _ = bodies.Body(e.ID)
		return e
	})
	reclass := o.holistic.Analyze(ctx, withBodies)

	var processed []string
	for i, email := range emails {
		if err := ctx.Err(); err != nil {
			o.markProcessed(ctx, processed, &result)
			return result, fmt.Errorf("batch interrupted after %d of %d emails: %w",
				i, len(emails), err)
		}

		p, storedID, ok := o.processOne(ctx, email, reclass, bodies, &result)
		if ok {
			processed = append(processed, storedID)
		}
		if progress != nil {
			p.Index = i + 1
			p.Total = len(emails)
			progress(p)
		}
	}

	o.markProcessed(ctx, processed, &result)

	o.logger.Info("batch done",
		"requested", result.TotalRequested,
		"processed", result.ProcessedCount,
		"tasks", result.TasksCreated,
		"summaries", result.SummariesCreated,
		"errors", len(result.Errors),
	)
	return result, nil
}

// fetchBodies loads every body in one mailbox call. On failure the batch
// continues with empty bodies.
func (o *Orchestrator) fetchBodies(
	ctx context.Context,
	emails []model.EmailRecord,
	result *BatchResult,
) BodyCache {
	if o.mail == nil {
		return NewBodyCache(nil)
	}

	ids := lo.Map(emails, func(e model.EmailRecord, _ int) string { return e.ID })
	bodies, err := o.mail.FetchBodiesBatch(ctx, ids)
	if err != nil {
		o.logger.Error("fetching bodies", "emails", len(ids), "err", err)
		result.Errors = append(result.Errors, fmt.Sprintf("fetching bodies: %v", err))
		return NewBodyCache(nil)
	}
	cache := NewBodyCache(bodies)
	if missing := len(ids) - cache.Len(); missing > 0 {
		o.logger.Warn("bodies missing", "emails", len(ids), "missing", missing)
	}
	return cache
}

// processOne resolves and dispatches one email. It returns the id the
// email is stored under once filed. ok is false when an error was
// recorded before dispatch finished.
func (o *Orchestrator) processOne(
	ctx context.Context,
	email model.EmailRecord,
	reclass map[string]model.Category,
	bodies BodyCache,
	result *BatchResult,
) (Progress, string, bool) {
	p := Progress{EmailID: email.ID, Subject: email.Subject}

	res, err := o.classify.ResolveCategory(ctx, email, reclass, bodies)
	if err != nil {
		o.recordError(result, email.ID, err)
		return p, email.ID, false
	}
	p.Category = res.Category
	p.Source = res.Source

	body, _ := bodies.Body(email.ID)
	dispatch := o.extractor.Dispatch(ctx, email, res.Category, body)
	p.Result = dispatch
	if dispatch.Err != nil {
		o.recordError(result, email.ID, dispatch.Err)
		return p, email.ID, false
	}

	if dispatch.TaskCreated {
		result.TasksCreated++
	}
	if dispatch.SummaryCreated {
		result.SummariesCreated++
	}
	result.ProcessedCount++

	storedID := email.ID
	if o.organizer != nil {
		storedID, err = o.organizer.File(ctx, email, res.Category)
		if err != nil {
			o.recordError(result, email.ID, err)
		}
	}
	return p, storedID, true
}

func (o *Orchestrator) recordError(result *BatchResult, id string, err error) {
	kind := ai.ClassifyError(err)
	o.logger.Log(kind.Level(), "email failed", "email", id, "kind", kind, "err", err)
	result.Errors = append(result.Errors, fmt.Sprintf("email %s: %v", id, err))
}

func (o *Orchestrator) markProcessed(ctx context.Context, ids []string, result *BatchResult) {
	if len(ids) == 0 {
		return
	}
	// Stamp even when the batch context ended so finished work is kept.
	if err := o.store.MarkProcessed(context.WithoutCancel(ctx), ids, o.now()); err != nil {
		o.logger.Error("marking processed", "emails", len(ids), "err", err)
		result.Errors = append(result.Errors, fmt.Sprintf("marking processed: %v", err))
	}
}

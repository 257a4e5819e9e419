// Package triage turns a batch of stored emails into tasks.
//
// The pipeline runs in a fixed order for every batch: bodies are fetched
// once, a holistic pass over the whole batch may reclassify emails, then
// each email is resolved to a category and dispatched to the extraction
// branch for that category. Emails are handled one at a time, in input
// order.
package triage

import (
	"context"

	"github.com/nhle/inbox-triage/internal/ai"
	"github.com/nhle/inbox-triage/internal/model"
)

// Inference is the subset of ai.Gateway used by the pipeline.
type Inference interface {
	Classify(ctx context.Context, text, extra string) ai.Outcome[ai.Classification]
	ExtractActionItems(ctx context.Context, text, extra string) ai.Outcome[ai.ActionItems]
	Summarize(ctx context.Context, text string, kind ai.SummaryKind) ai.Outcome[ai.Summary]
	AnalyzeHolistically(ctx context.Context, emails []model.EmailRecord) ai.Outcome[ai.HolisticFindings]
	DeduplicateContent(ctx context.Context, items []ai.ContentItem, kind string) ai.Outcome[ai.DedupResult]
}

// Mailbox is the subset of mail.Gateway used by the pipeline.
type Mailbox interface {
	FetchBodiesBatch(ctx context.Context, ids []string) (map[string]string, error)
	// MoveTo returns the id of the message after the move, or "" when
	// the mailbox cannot tell.
	MoveTo(ctx context.Context, id, folder string) (string, error)
}

var _ Inference = (*ai.Gateway)(nil)

// BodyCache holds the bodies fetched for one batch. It is filled once and
// read by every later step.
type BodyCache struct {
	bodies map[string]string
}

// NewBodyCache wraps bodies. A nil map is an empty cache.
func NewBodyCache(bodies map[string]string) BodyCache {
	return BodyCache{bodies: bodies}
}

// Body returns the cached body of id.
func (c BodyCache) Body(id string) (string, bool) {
	b, ok := c.bodies[id]
	return b, ok
}

// Len returns the number of cached bodies.
func (c BodyCache) Len() int {
	return len(c.bodies)
}

// emailText renders an email for a prompt.
func emailText(e model.EmailRecord, body string) string {
	text := "Subject: " + e.Subject + "\nFrom: " + e.Sender
	if !e.Date.IsZero() {
		text += "\nDate: " + e.Date.Format("2006-01-02 15:04")
	}
	return text + "\n\n" + body
}

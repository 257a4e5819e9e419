package triage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"

	"github.com/nhle/inbox-triage/internal/ai"
	"github.com/nhle/inbox-triage/internal/linkref"
	"github.com/nhle/inbox-triage/internal/model"
	"github.com/nhle/inbox-triage/internal/store"
)

const maxTitleLen = 120

// fallbackPhrases mark an extraction answer that carries no real action.
var fallbackPhrases = []string{
	"unable to extract action items",
	"review email content",
	"unable to parse structured response",
	"ai processing unavailable",
	"content filter blocked",
}

// IsFallbackAction reports whether an action description is empty or one
// of the known placeholder answers.
func IsFallbackAction(actionRequired string) bool {
	text := strings.ToLower(strings.TrimSpace(actionRequired))
	if text == "" {
		return true
	}
	for _, p := range fallbackPhrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

// PriorityFor assigns the priority of a task created for category.
func PriorityFor(c model.Category, subject string) model.Priority {
	switch c {
	case model.CategoryRequiredPersonalAction:
		return model.PriorityHigh
	case model.CategoryTeamAction, model.CategoryOptionalAction:
		if strings.Contains(strings.ToLower(subject), "urgent") {
			return model.PriorityHigh
		}
		return model.PriorityMedium
	case model.CategoryJobListing:
		return model.PriorityMedium
	case model.CategoryOptionalEvent, model.CategoryFYI, model.CategoryNewsletter:
		return model.PriorityLow
	}
	return model.PriorityMedium
}

// DispatchResult is the outcome of one email's extraction branch.
type DispatchResult struct {
	TaskCreated    bool
	SummaryCreated bool

	// Kind is the branch taken, empty for the no-op branch.
	Kind model.TaskKind

	// Err is set when the branch failed. It never aborts a batch.
	Err error
}

// Extractor turns a categorized email into at most one task.
type Extractor struct {
	ai     Inference
	store  store.Store
	logger *log.Logger
}

// NewExtractor creates an Extractor.
func NewExtractor(inf Inference, s store.Store, logger *log.Logger) *Extractor {
	if logger == nil {
		logger = log.Default()
	}
	return &Extractor{ai: inf, store: s, logger: logger}
}

// Dispatch runs the branch for category. Actionable categories, job
// listings and events go through action extraction. fyi and newsletter
// emails are summarized. Every other category is skipped.
func (x *Extractor) Dispatch(
	ctx context.Context,
	email model.EmailRecord,
	category model.Category,
	body string,
) DispatchResult {
	switch {
	case category.IsActionable():
		return x.extract(ctx, email, category, body, model.TaskKindAction)
	case category == model.CategoryJobListing:
		return x.extract(ctx, email, category, body, model.TaskKindJob)
	case category == model.CategoryOptionalEvent:
		return x.extract(ctx, email, category, body, model.TaskKindEvent)
	case category == model.CategoryFYI, category == model.CategoryNewsletter:
		return x.summarize(ctx, email, category, body)
	}

	x.logger.Debug("no task for category", "email", email.ID, "category", category)
	return DispatchResult{}
}

func (x *Extractor) extract(
	ctx context.Context,
	email model.EmailRecord,
	category model.Category,
	body string,
	kind model.TaskKind,
) DispatchResult {
	res := DispatchResult{Kind: kind}

	out := x.ai.ExtractActionItems(ctx, emailText(email, body), "")
	if out.Degraded {
		res.Err = fmt.Errorf("extracting action items: %w", out.Err)
		return res
	}
	items := out.Value
	if IsFallbackAction(items.ActionRequired) {
		x.logger.Debug("no real action in answer", "email", email.ID, "answer", items.ActionRequired)
		return res
	}

	task := model.TaskDraft{
		Title:         titleFor(kind, items.ActionRequired, email.Subject),
		Description:   actionDescription(email, items),
		Priority:      PriorityFor(category, email.Subject),
		Category:      category,
		LinkedEmailID: email.ID,
		DueDate:       ParseDueDate(items.DueDate),
		Tags:          []string{string(category), string(kind)},
		Metadata: model.TaskMetadata{
			Kind:       kind,
			Sender:     email.Sender,
			Subject:    email.Subject,
			Links:      linkref.Merge(items.Links, linkref.ExtractURLs(body)),
			KeyPoints:  items.Items,
			Relevance:  items.Relevance,
			Confidence: items.Confidence,
		},
	}

	res.TaskCreated, res.Err = x.create(ctx, task)
	return res
}

func (x *Extractor) summarize(
	ctx context.Context,
	email model.EmailRecord,
	category model.Category,
	body string,
) DispatchResult {
	res := DispatchResult{Kind: model.TaskKindSummary}

	kind := ai.SummaryFYI
	if category == model.CategoryNewsletter {
		kind = ai.SummaryDetailed
	}

	out := x.ai.Summarize(ctx, emailText(email, body), kind)
	if out.Degraded {
		res.Err = fmt.Errorf("summarizing: %w", out.Err)
		return res
	}
	sum := out.Value
	if strings.TrimSpace(sum.Summary) == "" || sum.Summary == ai.UnableToSummarize {
		x.logger.Debug("empty summary", "email", email.ID)
		return res
	}

	confidence := sum.Confidence
	task := model.TaskDraft{
		Title:         "Summary: " + truncateTitle(email.Subject),
		Description:   summaryDescription(sum),
		Priority:      PriorityFor(category, email.Subject),
		Category:      category,
		LinkedEmailID: email.ID,
		Tags:          []string{string(category), string(model.TaskKindSummary)},
		Metadata: model.TaskMetadata{
			Kind:       model.TaskKindSummary,
			Sender:     email.Sender,
			Subject:    email.Subject,
			Links:      linkref.ExtractURLs(body),
			KeyPoints:  sum.KeyPoints,
			Confidence: &confidence,
		},
	}

	res.SummaryCreated, res.Err = x.create(ctx, task)
	return res
}

// create stores task. A task that already exists for the email and
// category is not an error.
func (x *Extractor) create(ctx context.Context, task model.TaskDraft) (bool, error) {
	created, err := x.store.CreateTask(ctx, task)
	if errors.Is(err, store.ErrDuplicateTask) {
		x.logger.Debug("task exists", "email", task.LinkedEmailID, "category", task.Category)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("saving task: %w", err)
	}

	x.logger.Info("task created",
		"email", created.LinkedEmailID,
		"kind", created.Metadata.Kind,
		"priority", created.Priority,
	)
	return true, nil
}

func titleFor(kind model.TaskKind, action, subject string) string {
	switch kind {
	case model.TaskKindJob:
		return "Job: " + truncateTitle(subject)
	case model.TaskKindEvent:
		return "Event: " + truncateTitle(subject)
	}
	if line := firstLine(action); line != "" {
		return truncateTitle(line)
	}
	return truncateTitle(subject)
}

func actionDescription(email model.EmailRecord, items ai.ActionItems) string {
	var b strings.Builder
	b.WriteString(items.ActionRequired)
	if extra := lo.Without(items.Items, items.ActionRequired); len(extra) > 0 {
		b.WriteString("\n")
		for _, it := range extra {
			b.WriteString("\n- " + it)
		}
	}
	if items.Explanation != "" && items.Explanation != items.ActionRequired {
		b.WriteString("\n\n" + items.Explanation)
	}
	fmt.Fprintf(&b, "\n\nFrom: %s\nSubject: %s", email.Sender, email.Subject)
	return strings.TrimSpace(b.String())
}

func summaryDescription(sum ai.Summary) string {
	var b strings.Builder
	b.WriteString(sum.Summary)
	if len(sum.KeyPoints) > 0 {
		b.WriteString("\n")
		for _, p := range sum.KeyPoints {
			b.WriteString("\n- " + p)
		}
	}
	return b.String()
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func truncateTitle(s string) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= maxTitleLen {
		return string(r)
	}
	return strings.TrimSpace(string(r[:maxTitleLen-3])) + "..."
}

// Package ai wraps the inference backend behind fail-soft calls.
//
// Every Gateway method returns an Outcome holding a usable value. When the
// backend fails, the value is a conservative fallback and the Outcome is
// marked Degraded; the error kind only selects the log level.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"

	"github.com/nhle/inbox-triage/internal/model"
	"github.com/nhle/inbox-triage/internal/ratelimit"
)

const (
	// DefaultTimeout bounds a single inference call.
	DefaultTimeout = 30 * time.Second

	// maxInputChars caps the email text sent in one prompt.
	maxInputChars = 12000

	// holisticSnippetChars caps each body in the batch analysis prompt.
	holisticSnippetChars = 600

	// FallbackCategory is used when classification fails.
	FallbackCategory = model.CategoryDefault

	// Unavailable is the text placed in fallback results.
	Unavailable = "AI processing unavailable"
)

// ErrEmptyResponse is returned when the backend answers with no content.
var ErrEmptyResponse = errors.New("empty response from model")

// Completer runs one prompt against the inference backend.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Gateway is the single entry point for inference calls.
type Gateway struct {
	completer Completer
	gate      *ratelimit.Gate
	logger    *log.Logger
	timeout   time.Duration
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithTimeout sets the per-call deadline. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		g.timeout = d
	}
}

// NewGateway creates a Gateway. gate may be nil to skip spacing.
func NewGateway(
	c Completer,
	gate *ratelimit.Gate,
	logger *log.Logger,
	opts ...Option,
) *Gateway {
	if logger == nil {
		logger = log.Default()
	}
	g := &Gateway{
		completer: c,
		gate:      gate,
		logger:    logger,
		timeout:   DefaultTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// complete waits on the gate for class and issues one call. It never
// retries.
func (g *Gateway) complete(
	ctx context.Context,
	class ratelimit.OpClass,
	system, user string,
) (string, error) {
	g.gate.Wait(ctx, class)

	if err := ctx.Err(); err != nil {
		return "", err
	}

	callCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	out, err := g.completer.Complete(callCtx, system, user)
	if err != nil {
		return "", fmt.Errorf("%s call: %w", class, err)
	}
	return out, nil
}

func degrade[T any](g *Gateway, op string, fallback T, err error) Outcome[T] {
	out := Fallback(fallback, err)
	g.logger.Log(out.Kind.Level(), "inference failed, using fallback",
		"op", op,
		"kind", out.Kind,
		"err", err,
	)
	return out
}

// Classify asks the model for the category of an email. extra is optional
// context such as the sender's history.
func (g *Gateway) Classify(
	ctx context.Context,
	text, extra string,
) Outcome[Classification] {
	user := truncate(text, maxInputChars)
	if extra != "" {
		user = "Context: " + extra + "\n\n" + user
	}

	out, err := g.complete(ctx, ratelimit.OpClassification, classifySystemPrompt, user)
	if err == nil {
		var c Classification
		if c, err = parseClassification(out); err == nil {
			return OK(c)
		}
	}

	half := 0.5
	return degrade(g, "classify", Classification{
		Category:   FallbackCategory,
		Confidence: &half,
		Reasoning:  fmt.Sprintf("classification failed: %v", err),
	}, err)
}

// ExtractActionItems asks the model what the recipient must do.
func (g *Gateway) ExtractActionItems(
	ctx context.Context,
	text, extra string,
) Outcome[ActionItems] {
	user := truncate(text, maxInputChars)
	if extra != "" {
		user = "Context: " + extra + "\n\n" + user
	}

	out, err := g.complete(ctx, ratelimit.OpExtraction, extractSystemPrompt, user)
	if err == nil && strings.TrimSpace(out) == "" {
		err = ErrEmptyResponse
	}
	if err == nil {
		return OK(parseActionItems(out))
	}

	return degrade(g, "extract", ActionItems{
		ActionRequired: Unavailable,
		Explanation:    err.Error(),
	}, err)
}

// Summarize digests informational content. An empty answer is not an
// error and yields UnableToSummarize.
func (g *Gateway) Summarize(
	ctx context.Context,
	text string,
	kind SummaryKind,
) Outcome[Summary] {
	system := summarizeBriefPrompt
	if kind == SummaryDetailed {
		system = summarizeDetailedPrompt
	}

	out, err := g.complete(ctx, ratelimit.OpSummary, system, truncate(text, maxInputChars))
	if err != nil {
		return degrade(g, "summarize", Summary{Summary: Unavailable}, err)
	}
	return OK(parseSummary(out))
}

type holisticEmail struct {
	ID       string `json:"id"`
	Subject  string `json:"subject"`
	Sender   string `json:"sender"`
	Date     string `json:"date,omitempty"`
	Category string `json:"current_category,omitempty"`
	Snippet  string `json:"snippet"`
}

// AnalyzeHolistically examines a batch of emails in one call. Findings
// referring to ids outside the batch are dropped.
func (g *Gateway) AnalyzeHolistically(
	ctx context.Context,
	emails []model.EmailRecord,
) Outcome[HolisticFindings] {
	if len(emails) == 0 {
		return OK(HolisticFindings{})
	}

	payload := lo.Map(emails, func(e model.EmailRecord, _ int) holisticEmail {
		he := holisticEmail{
			ID:      e.ID,
			Subject: e.Subject,
			Sender:  e.Sender,
			Snippet: truncate(strings.TrimSpace(e.Body), holisticSnippetChars),
		}
		if !e.Date.IsZero() {
			he.Date = e.Date.Format(time.RFC3339)
		}
		if e.HasCategory() {
			he.Category = string(*e.AICategory)
		}
		return he
	})

	body, err := json.Marshal(payload)
	if err != nil {
		return degrade(g, "holistic", HolisticFindings{}, fmt.Errorf("encoding batch: %w", err))
	}

	user := fmt.Sprintf("Today is %s.\n\n%s", time.Now().Format("2006-01-02"), body)
	out, err := g.complete(ctx, ratelimit.OpHolistic, holisticSystemPrompt, user)
	if err == nil {
		var findings HolisticFindings
		if findings, err = parseHolistic(out); err == nil {
			return OK(restrictFindings(findings, emails))
		}
	}

	return degrade(g, "holistic", HolisticFindings{}, err)
}

func restrictFindings(f HolisticFindings, emails []model.EmailRecord) HolisticFindings {
	known := lo.SliceToMap(emails, func(e model.EmailRecord) (string, bool) {
		return e.ID, true
	})

	out := HolisticFindings{
		Expired: lo.Filter(f.Expired, func(it ExpiredItem, _ int) bool {
			return known[it.EmailID]
		}),
		Superseded: lo.Filter(f.Superseded, func(it SupersededAction, _ int) bool {
			return known[it.OriginalID]
		}),
	}
	for _, grp := range f.Duplicates {
		grp.ArchiveIDs = lo.Filter(grp.ArchiveIDs, func(id string, _ int) bool {
			return known[id] && id != grp.KeepID
		})
		if len(grp.ArchiveIDs) > 0 {
			out.Duplicates = append(out.Duplicates, grp)
		}
	}
	return out
}

// DeduplicateContent asks the model which items repeat each other. On
// failure every item is kept.
func (g *Gateway) DeduplicateContent(
	ctx context.Context,
	items []ContentItem,
	kind string,
) Outcome[DedupResult] {
	keepAll := DedupResult{
		KeptIDs: lo.Map(items, func(it ContentItem, _ int) string { return it.ID }),
		Stats:   DedupStatistics{Original: len(items), Kept: len(items)},
	}
	if len(items) < 2 {
		return OK(keepAll)
	}

	trimmed := lo.Map(items, func(it ContentItem, _ int) ContentItem {
		it.Text = truncate(it.Text, holisticSnippetChars*2)
		return it
	})
	body, err := json.Marshal(trimmed)
	if err != nil {
		return degrade(g, "dedup", keepAll, fmt.Errorf("encoding items: %w", err))
	}

	if kind == "" {
		kind = "content"
	}
	system := fmt.Sprintf(dedupSystemPrompt, kind)

	out, err := g.complete(ctx, ratelimit.OpDefault, system, string(body))
	if err == nil {
		var res DedupResult
		if res, err = parseDedup(out, items); err == nil {
			return OK(res)
		}
	}

	return degrade(g, "dedup", keepAll, err)
}

package triage

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/nhle/inbox-triage/internal/model"
	"github.com/nhle/inbox-triage/internal/store"
)

// Source tells where a resolved category came from.
type Source string

const (
	SourceHolistic Source = "holistic"
	SourceStored   Source = "stored"
	SourceAI       Source = "ai"

	// SourceFallback marks the default category used when classification
	// failed. It is not persisted, so a later batch classifies again.
	SourceFallback Source = "fallback"
)

// reviewThresholds is the minimum confidence at which a fresh AI verdict
// is trusted without human review.
var reviewThresholds = map[model.Category]float64{
	model.CategoryRequiredPersonalAction: 0.9,
	model.CategoryTeamAction:             0.85,
	model.CategoryOptionalEvent:          0.85,
	model.CategoryFYI:                    0.85,
	model.CategoryJobListing:             0.8,
	model.CategoryNewsletter:             0.8,
	model.CategorySpamToDelete:           0.95,
}

// defaultReviewThreshold means categories outside the table always get
// reviewed.
const defaultReviewThreshold = 1.0

// RequiresReview reports whether a verdict is below the trust threshold
// of its category. A missing confidence always requires review.
func RequiresReview(c model.Category, confidence *float64) bool {
	if confidence == nil {
		return true
	}
	threshold, ok := reviewThresholds[c]
	if !ok {
		threshold = defaultReviewThreshold
	}
	return *confidence < threshold
}

// Resolution is the category an email is dispatched on.
type Resolution struct {
	Category model.Category

	// Confidence is only set for fresh AI verdicts.
	Confidence *float64

	// RequiresReview is advisory and never blocks task creation.
	RequiresReview bool

	Source Source
}

// Classifier resolves the final category of an email.
type Classifier struct {
	ai     Inference
	store  store.Store
	logger *log.Logger
}

// NewClassifier creates a Classifier.
func NewClassifier(inf Inference, s store.Store, logger *log.Logger) *Classifier {
	if logger == nil {
		logger = log.Default()
	}
	return &Classifier{ai: inf, store: s, logger: logger}
}

// ResolveCategory picks the category of email. A holistic override wins
// and is persisted first. Otherwise a stored category is reused, and only
// an unclassified email is sent to the model. The returned error is
// always a storage failure.
func (c *Classifier) ResolveCategory(
	ctx context.Context,
	email model.EmailRecord,
	reclass map[string]model.Category,
	bodies BodyCache,
) (Resolution, error) {
	if cat, ok := reclass[email.ID]; ok {
		if err := c.store.UpdateAICategory(ctx, email.ID, cat); err != nil {
			return Resolution{}, fmt.Errorf("persisting holistic category: %w", err)
		}
		return Resolution{Category: cat, Source: SourceHolistic}, nil
	}

	if email.HasCategory() {
		return Resolution{Category: *email.AICategory, Source: SourceStored}, nil
	}

	body, _ := bodies.Body(email.ID)
	out := c.ai.Classify(ctx, emailText(email, body), "")
	verdict := out.Value

	res := Resolution{
		Category:       verdict.Category,
		Confidence:     verdict.Confidence,
		RequiresReview: RequiresReview(verdict.Category, verdict.Confidence),
		Source:         SourceAI,
	}
	if out.Degraded {
		res.Source = SourceFallback
		c.logger.Debug("using fallback category", "email", email.ID, "category", res.Category)
		return res, nil
	}

	if err := c.store.UpdateAICategory(ctx, email.ID, res.Category); err != nil {
		return Resolution{}, fmt.Errorf("persisting category: %w", err)
	}

	c.logger.Debug("classified",
		"email", email.ID,
		"category", res.Category,
		"review", res.RequiresReview,
	)
	return res, nil
}

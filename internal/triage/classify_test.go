package triage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/inbox-triage/internal/ai"
	"github.com/nhle/inbox-triage/internal/logging"
	"github.com/nhle/inbox-triage/internal/model"
	"github.com/nhle/inbox-triage/tests/testutil"
)

func TestRequiresReview(t *testing.T) {
	tests := []struct {
		name       string
		category   model.Category
		confidence *float64
		want       bool
	}{
		{"missing confidence", model.CategoryFYI, nil, true},
		{"below threshold", model.CategoryRequiredPersonalAction, ptr(0.85), true},
		{"at threshold", model.CategoryRequiredPersonalAction, ptr(0.9), false},
		{"fyi trusted", model.CategoryFYI, ptr(0.9), false},
		{"spam needs more", model.CategorySpamToDelete, ptr(0.9), true},
		{"untabled always reviewed", model.CategoryWorkRelevant, ptr(0.99), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RequiresReview(tt.category, tt.confidence))
		})
	}
}

func TestResolveCategoryUsesHolisticOverride(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	email := model.EmailRecord{ID: "a", AICategory: testutil.CategoryPtr(model.CategoryRequiredPersonalAction)}
	testutil.SeedEmails(t, s, email)
	require.NoError(t, s.UpdateAICategory(ctx, "a", model.CategoryRequiredPersonalAction))

	inf := &fakeInference{}
	c := NewClassifier(inf, s, logging.Discard())

	res, err := c.ResolveCategory(ctx, email,
		map[string]model.Category{"a": model.CategorySpamToDelete}, NewBodyCache(nil))
	require.NoError(t, err)
	assert.Equal(t, model.CategorySpamToDelete, res.Category)
	assert.Equal(t, SourceHolistic, res.Source)
	assert.Zero(t, inf.count("classify"))

	stored, err := s.GetEmail(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, stored.AICategory)
	assert.Equal(t, model.CategorySpamToDelete, *stored.AICategory)
}

func TestResolveCategoryStoredSkipsClassify(t *testing.T) {
	s := testutil.NewTestStore(t)
	inf := &fakeInference{}
	c := NewClassifier(inf, s, logging.Discard())

	email := model.EmailRecord{ID: "a", AICategory: testutil.CategoryPtr(model.CategoryNewsletter)}
	res, err := c.ResolveCategory(context.Background(), email, nil, NewBodyCache(nil))
	require.NoError(t, err)
	assert.Equal(t, model.CategoryNewsletter, res.Category)
	assert.Equal(t, SourceStored, res.Source)
	assert.Zero(t, inf.count("classify"))
}

func TestResolveCategoryClassifiesFromCachedBody(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	testutil.SeedEmails(t, s, model.EmailRecord{ID: "a", Subject: "Sign the form"})

	var prompt string
	inf := &fakeInference{classify: func(text string) ai.Outcome[ai.Classification] {
		prompt = text
		return classifyAs(model.CategoryRequiredPersonalAction, 0.95)(text)
	}}
	c := NewClassifier(inf, s, logging.Discard())

	email := model.EmailRecord{ID: "a", Subject: "Sign the form", Sender: "hr@example.com"}
	bodies := NewBodyCache(map[string]string{"a": "Please sign by Friday."})

	res, err := c.ResolveCategory(ctx, email, map[string]model.Category{}, bodies)
	require.NoError(t, err)
	assert.Equal(t, model.CategoryRequiredPersonalAction, res.Category)
	assert.Equal(t, SourceAI, res.Source)
	assert.False(t, res.RequiresReview)
	require.NotNil(t, res.Confidence)
	assert.InDelta(t, 0.95, *res.Confidence, 1e-9)

	assert.True(t, strings.HasPrefix(prompt, "Subject: Sign the form"))
	assert.Contains(t, prompt, "Please sign by Friday.")

	stored, err := s.GetEmail(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, stored.AICategory)
	assert.Equal(t, model.CategoryRequiredPersonalAction, *stored.AICategory)
}

func TestResolveCategoryFallbackIsNotPersisted(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	testutil.SeedEmails(t, s, model.EmailRecord{ID: "a"})

	c := NewClassifier(&fakeInference{}, s, logging.Discard())

	res, err := c.ResolveCategory(ctx, model.EmailRecord{ID: "a"}, nil, NewBodyCache(nil))
	require.NoError(t, err)
	assert.Equal(t, model.CategoryWorkRelevant, res.Category)
	assert.Equal(t, SourceFallback, res.Source)
	assert.True(t, res.RequiresReview)

	stored, err := s.GetEmail(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, stored.AICategory)
}

func TestResolveCategoryStorageFailure(t *testing.T) {
	s := testutil.NewTestStore(t)
	c := NewClassifier(&fakeInference{classify: classifyAs(model.CategoryFYI, 0.9)}, s, logging.Discard())

	// The email is not in the store, so persisting the verdict fails.
	_, err := c.ResolveCategory(context.Background(), model.EmailRecord{ID: "ghost"}, nil, NewBodyCache(nil))
	assert.Error(t, err)
}

package testutil

import (
	"context"
	"testing"

	"github.com/nhle/inbox-triage/internal/model"
	"github.com/nhle/inbox-triage/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// SeedEmails inserts emails into s, failing the test on error.
func SeedEmails(t *testing.T, s store.Store, emails ...model.EmailRecord) {
	t.Helper()

	if err := s.UpsertEmails(context.Background(), emails); err != nil {
		t.Fatalf("seeding emails: %v", err)
	}
}

// CategoryPtr returns a pointer to c.
func CategoryPtr(c model.Category) *model.Category {
	return &c
}

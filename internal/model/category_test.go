package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in   string
		want Category
		ok   bool
	}{
		{"fyi", CategoryFYI, true},
		{"  FYI ", CategoryFYI, true},
		{"team-action", CategoryTeamAction, true},
		{"Required Personal Action", CategoryRequiredPersonalAction, true},
		{"spam_to_delete", CategorySpamToDelete, true},
		{"urgent", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseCategory(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCategoryValid(t *testing.T) {
	for _, c := range AllCategories {
		assert.True(t, c.Valid(), c)
	}
	assert.False(t, Category("other").Valid())
	assert.True(t, CategoryDefault.Valid())
}

func TestIsActionable(t *testing.T) {
	actionable := map[Category]bool{
		CategoryRequiredPersonalAction: true,
		CategoryTeamAction:             true,
		CategoryOptionalAction:         true,
	}
	for _, c := range AllCategories {
		assert.Equal(t, actionable[c], c.IsActionable(), c)
	}
}

func TestFolder(t *testing.T) {
	seen := map[string]Category{}
	for _, c := range AllCategories {
		name, ok := c.Folder()
		if c == CategoryWorkRelevant {
			assert.False(t, ok)
			assert.Empty(t, name)
			continue
		}
		assert.True(t, ok, c)
		assert.NotEmpty(t, name, c)
		if prev, dup := seen[name]; dup {
			t.Errorf("%s and %s share folder %q", prev, c, name)
		}
		seen[name] = c
	}

	_, ok := Category("unknown").Folder()
	assert.False(t, ok)
}

func TestHasCategory(t *testing.T) {
	empty := Category("")
	fyi := CategoryFYI

	assert.False(t, EmailRecord{}.HasCategory())
	assert.False(t, EmailRecord{AICategory: &empty}.HasCategory())
	assert.True(t, EmailRecord{AICategory: &fyi}.HasCategory())
}

func TestIsSummary(t *testing.T) {
	assert.True(t, TaskDraft{Metadata: TaskMetadata{Kind: TaskKindSummary}}.IsSummary())
	assert.False(t, TaskDraft{Metadata: TaskMetadata{Kind: TaskKindJob}}.IsSummary())
}

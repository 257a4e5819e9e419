package model

import "strings"

// Category is the fixed vocabulary an email can be classified into.
type Category string

const (
	CategoryRequiredPersonalAction Category = "required_personal_action"
	CategoryTeamAction             Category = "team_action"
	CategoryOptionalAction         Category = "optional_action"
	CategoryJobListing             Category = "job_listing"
	CategoryOptionalEvent          Category = "optional_event"
	CategoryFYI                    Category = "fyi"
	CategoryNewsletter             Category = "newsletter"
	CategoryWorkRelevant           Category = "work_relevant"
	CategorySpamToDelete           Category = "spam_to_delete"
)

// CategoryDefault is used whenever a classification cannot be trusted.
const CategoryDefault = CategoryWorkRelevant

// AllCategories lists every category in display order.
var AllCategories = []Category{
	CategoryRequiredPersonalAction,
	CategoryTeamAction,
	CategoryOptionalAction,
	CategoryJobListing,
	CategoryOptionalEvent,
	CategoryFYI,
	CategoryNewsletter,
	CategoryWorkRelevant,
	CategorySpamToDelete,
}

// ParseCategory normalizes free text from a model or a user into a
// Category. It accepts hyphens, spaces and mixed case.
func ParseCategory(s string) (Category, bool) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	for _, c := range AllCategories {
		if string(c) == norm {
			return c, true
		}
	}
	return "", false
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range AllCategories {
		if c == known {
			return true
		}
	}
	return false
}

// IsActionable reports whether the category drives action-item tasks.
func (c Category) IsActionable() bool {
	switch c {
	case CategoryRequiredPersonalAction, CategoryTeamAction, CategoryOptionalAction:
		return true
	}
	return false
}

// Folder returns the mailbox folder emails of this category are filed
// into. ok is false for categories that stay where they are.
func (c Category) Folder() (name string, ok bool) {
	switch c {
	case CategoryRequiredPersonalAction:
		return "Triage/Action Required", true
	case CategoryTeamAction:
		return "Triage/Team", true
	case CategoryOptionalAction:
		return "Triage/Optional", true
	case CategoryJobListing:
		return "Triage/Jobs", true
	case CategoryOptionalEvent:
		return "Triage/Events", true
	case CategoryFYI:
		return "Triage/FYI", true
	case CategoryNewsletter:
		return "Triage/Newsletters", true
	case CategorySpamToDelete:
		return "Triage/Discard", true
	case CategoryWorkRelevant:
		return "", false
	}
	return "", false
}

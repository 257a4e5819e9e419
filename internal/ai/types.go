package ai

import "github.com/nhle/inbox-triage/internal/model"

// Classification is the model's verdict on a single email.
type Classification struct {
	Category model.Category

	// Confidence is nil when the model did not report one.
	Confidence *float64

	Reasoning    string
	Alternatives []model.Category
}

// ActionItems is the extraction result for an actionable email.
type ActionItems struct {
	Items []string

	// ActionRequired is the one-line description of what must be done.
	ActionRequired string

	// DueDate is free text as returned by the model, e.g. "by 2024-03-15".
	DueDate string

	Explanation string
	Relevance   string
	Links       []string
	Confidence  *float64

	// Structured is false when the model answer could not be parsed and
	// the raw text was used as the action description.
	Structured bool
}

// SummaryKind selects the summary prompt.
type SummaryKind string

const (
	SummaryBrief    SummaryKind = "brief"
	SummaryFYI      SummaryKind = "fyi"
	SummaryDetailed SummaryKind = "detailed"
)

// Summary is a digest of an informational email.
type Summary struct {
	Summary    string
	KeyPoints  []string
	Confidence float64
}

// ExpiredItem marks an email whose content is no longer relevant.
type ExpiredItem struct {
	EmailID string `json:"email_id"`
	Reason  string `json:"reason"`
}

// SupersededAction marks an email whose requested action was replaced or
// resolved by a later email.
type SupersededAction struct {
	OriginalID     string `json:"original_id"`
	SupersededByID string `json:"superseded_by_id,omitempty"`
	Reason         string `json:"reason"`
}

// DuplicateGroup names the email to keep among near-identical ones.
type DuplicateGroup struct {
	KeepID     string   `json:"keep_id"`
	ArchiveIDs []string `json:"archive_ids"`
	Topic      string   `json:"topic"`
}

// HolisticFindings is the result of analyzing a batch of emails jointly.
type HolisticFindings struct {
	Expired    []ExpiredItem      `json:"expired_items"`
	Superseded []SupersededAction `json:"superseded_actions"`
	Duplicates []DuplicateGroup   `json:"duplicate_groups"`
}

// Empty reports whether the analysis found nothing.
func (f HolisticFindings) Empty() bool {
	return len(f.Expired) == 0 && len(f.Superseded) == 0 && len(f.Duplicates) == 0
}

// ContentItem is one piece of content offered for deduplication.
type ContentItem struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// RemovedDuplicate describes an item dropped as a duplicate of another.
type RemovedDuplicate struct {
	ID          string `json:"id"`
	DuplicateOf string `json:"duplicate_of"`
	Reason      string `json:"reason"`
}

// DedupStatistics summarizes a deduplication pass.
type DedupStatistics struct {
	Original int `json:"original"`
	Kept     int `json:"kept"`
	Removed  int `json:"removed"`
}

// DedupResult lists the ids to keep and the ones removed as duplicates.
type DedupResult struct {
	KeptIDs []string
	Removed []RemovedDuplicate
	Stats   DedupStatistics
}

package model

import "time"

// EmailRecord is the stored view of one message in the mailbox.
type EmailRecord struct {
	// ID is the stable identifier assigned by the mail backend.
	ID string `json:"id" db:"id"`

	Subject string `json:"subject" db:"subject"`
	Sender  string `json:"sender" db:"sender"`

	// Body is populated lazily and may be empty until fetched.
	Body string `json:"body,omitempty" db:"body"`

	Date   time.Time `json:"date" db:"date"`
	Folder string    `json:"folder" db:"folder"`
	IsRead bool      `json:"is_read" db:"is_read"`

	// AICategory is the category assigned by classification, nil if the
	// email has never been classified.
	AICategory *Category `json:"ai_category,omitempty" db:"ai_category"`

	// UserCategory is a human correction used for accuracy tracking.
	UserCategory *Category `json:"user_category,omitempty" db:"user_category"`

	ConversationID string `json:"conversation_id" db:"conversation_id"`

	// ProcessedAt is set once task extraction has run for the email.
	ProcessedAt *time.Time `json:"processed_at,omitempty" db:"processed_at"`
}

// HasCategory reports whether the email already carries an AI category.
func (e EmailRecord) HasCategory() bool {
	return e.AICategory != nil && *e.AICategory != ""
}

// Folder is a mailbox folder as reported by the mail backend.
type Folder struct {
	Name       string `json:"name"`
	Delimiter  string `json:"delimiter,omitempty"`
	Selectable bool   `json:"selectable"`
}

package triage

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/nhle/inbox-triage/internal/model"
	"github.com/nhle/inbox-triage/internal/store"
)

// Organizer files emails into the folder of their category.
type Organizer struct {
	mail   Mailbox
	store  store.Store
	logger *log.Logger
}

// NewOrganizer creates an Organizer. The store, when set, is re-keyed
// after every move.
func NewOrganizer(mb Mailbox, s store.Store, logger *log.Logger) *Organizer {
	if logger == nil {
		logger = log.Default()
	}
	return &Organizer{mail: mb, store: s, logger: logger}
}

// File moves email into the folder of category and returns the id the
// email is stored under afterwards. Nothing moves when the category has
// no folder or the email is already there. On error the returned id is
// still the one the store knows.
func (o *Organizer) File(
	ctx context.Context,
	email model.EmailRecord,
	category model.Category,
) (string, error) {
	folder, ok := category.Folder()
	if !ok || folder == email.Folder {
		return email.ID, nil
	}

	newID, err := o.mail.MoveTo(ctx, email.ID, folder)
	if err != nil {
		return email.ID, fmt.Errorf("moving email %s to %s: %w", email.ID, folder, err)
	}
	if newID == "" {
		o.logger.Warn("mailbox did not report the moved id", "email", email.ID, "folder", folder)
		newID = email.ID
	}

	if o.store != nil {
		// The move already happened, so record it even if the batch ends.
		err := o.store.RelocateEmail(context.WithoutCancel(ctx), email.ID, newID, folder)
		if err != nil {
			return email.ID, fmt.Errorf("recording move of email %s: %w", email.ID, err)
		}
	}

	o.logger.Debug("filed", "email", email.ID, "as", newID, "folder", folder)
	return newID, nil
}

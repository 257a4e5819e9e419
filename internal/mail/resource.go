// Package mail gives the triage pipeline access to a mailbox.
//
// A Resource talks to one mail backend over a single connection and is
// not safe for concurrent use. Gateway owns a Resource and funnels every
// call through one worker goroutine.
package mail

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/inbox-triage/internal/model"
)

var (
	// ErrConnectionLost is wrapped by Resource implementations when the
	// underlying connection dropped. Gateway reconnects once on it.
	ErrConnectionLost = errors.New("mail connection lost")

	// ErrUnavailable is returned when no connection could be established.
	ErrUnavailable = errors.New("mail resource unavailable")

	// ErrClosed is returned for calls made after Gateway.Close.
	ErrClosed = errors.New("mail gateway closed")

	// ErrMessageNotFound is returned when an id does not name a message.
	ErrMessageNotFound = errors.New("message not found")
)

// ConnectionError is returned when an operation still fails after the
// gateway reconnected and retried it.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("mail %s: connection error: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Resource is a synchronous mail backend. Implementations keep one
// connection open between Connect and Close.
type Resource interface {
	Connect(ctx context.Context) error
	Close() error

	// ListEmails returns up to count messages from folder, newest first,
	// skipping the offset newest ones. Bodies are left empty.
	ListEmails(ctx context.Context, folder string, count, offset int) ([]model.EmailRecord, error)

	FetchBody(ctx context.Context, id string) (string, error)

	// FetchBodies returns the plain-text bodies of ids. Ids that could not
	// be found are absent from the map.
	FetchBodies(ctx context.Context, ids []string) (map[string]string, error)

	MarkRead(ctx context.Context, id string) error

	// MoveTo moves a message into folder, creating the folder if needed.
	// It returns the id the message has afterwards, which differs from id
	// on backends whose ids depend on the folder. An empty id means the
	// backend could not tell.
	MoveTo(ctx context.Context, id, folder string) (string, error)

	ListFolders(ctx context.Context) ([]model.Folder, error)
}

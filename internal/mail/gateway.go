package mail

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nhle/inbox-triage/internal/model"
)

const (
	defaultConnectAttempts = 3
	defaultConnectBackoff  = 300 * time.Millisecond
)

type job struct {
	ctx    context.Context
	op     string
	fn     func(ctx context.Context) error
	result chan error

	// raw jobs run without connection management.
	raw bool
}

// Gateway serializes access to a Resource. All calls, from any number of
// goroutines, run one at a time on a single worker.
type Gateway struct {
	res      Resource
	logger   *log.Logger
	attempts int
	backoff  time.Duration

	jobs      chan job
	quit      chan struct{}
	closeOnce sync.Once

	// connected is owned by the worker goroutine.
	connected bool
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithConnectAttempts sets how many times Connect is tried.
func WithConnectAttempts(n int) GatewayOption {
	return func(g *Gateway) {
		if n > 0 {
			g.attempts = n
		}
	}
}

// WithConnectBackoff sets the fixed delay between connect attempts.
func WithConnectBackoff(d time.Duration) GatewayOption {
	return func(g *Gateway) {
		if d >= 0 {
			g.backoff = d
		}
	}
}

// NewGateway starts the worker for res. Call Close to stop it.
func NewGateway(
	res Resource,
	logger *log.Logger,
	opts ...GatewayOption,
) *Gateway {
	if logger == nil {
		logger = log.Default()
	}
	g := &Gateway{
		res:      res,
		logger:   logger,
		attempts: defaultConnectAttempts,
		backoff:  defaultConnectBackoff,
		jobs:     make(chan job),
		quit:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}

	go g.loop()
	return g
}

func (g *Gateway) loop() {
	for {
		select {
		case j := <-g.jobs:
			j.result <- g.exec(j)
		case <-g.quit:
			return
		}
	}
}

// do runs fn on the worker and waits for it. If ctx ends first, do
// returns without waiting; fn still runs to completion on the worker.
func (g *Gateway) do(
	ctx context.Context,
	op string,
	fn func(ctx context.Context) error,
) error {
	j := job{ctx: ctx, op: op, fn: fn, result: make(chan error, 1)}

	select {
	case g.jobs <- j:
	case <-ctx.Done():
		return ctx.Err()
	case <-g.quit:
		return ErrClosed
	}

	select {
	case err := <-j.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Gateway) exec(j job) error {
	if err := j.ctx.Err(); err != nil {
		return err
	}
	if j.raw {
		return j.fn(j.ctx)
	}

	if !g.connected {
		if err := g.connect(j.ctx); err != nil {
			return err
		}
	}

	err := j.fn(j.ctx)
	if !errors.Is(err, ErrConnectionLost) {
		return err
	}

	g.connected = false
	g.logger.Warn("mail connection lost, reconnecting", "op", j.op, "err", err)

	if cerr := g.connect(j.ctx); cerr != nil {
		return &ConnectionError{Op: j.op, Err: cerr}
	}

	err = j.fn(j.ctx)
	if errors.Is(err, ErrConnectionLost) {
		g.connected = false
		return &ConnectionError{Op: j.op, Err: err}
	}
	return err
}

// connect tries the resource up to g.attempts times with a fixed backoff.
func (g *Gateway) connect(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= g.attempts; attempt++ {
		lastErr = g.res.Connect(ctx)
		if lastErr == nil {
			g.connected = true
			if attempt > 1 {
				g.logger.Info("mail connected", "attempt", attempt)
			}
			return nil
		}

		g.logger.Warn("mail connect failed",
			"attempt", attempt,
			"of", g.attempts,
			"err", lastErr,
		)

		if attempt == g.attempts {
			break
		}

		timer := time.NewTimer(g.backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %w", ErrUnavailable, ctx.Err())
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrUnavailable, g.attempts, lastErr)
}

// Connect opens the connection if it is not already open.
func (g *Gateway) Connect(ctx context.Context) error {
	return g.do(ctx, "connect", func(context.Context) error { return nil })
}

// Close disconnects and stops the worker. It is safe to call twice.
func (g *Gateway) Close() error {
	var err error
	g.closeOnce.Do(func() {
		j := job{
			ctx:    context.Background(),
			op:     "close",
			result: make(chan error, 1),
			raw:    true,
			fn: func(context.Context) error {
				if !g.connected {
					return nil
				}
				g.connected = false
				return g.res.Close()
			},
		}
		g.jobs <- j
		err = <-j.result
		close(g.quit)
	})
	return err
}

// ListEmails lists message metadata from folder, newest first.
func (g *Gateway) ListEmails(
	ctx context.Context,
	folder string,
	count, offset int,
) ([]model.EmailRecord, error) {
	var emails []model.EmailRecord
	err := g.do(ctx, "list_emails", func(ctx context.Context) error {
		var err error
		emails, err = g.res.ListEmails(ctx, folder, count, offset)
		return err
	})
	if err != nil {
		return nil, err
	}
	return emails, nil
}

// FetchBody returns the plain-text body of one message.
func (g *Gateway) FetchBody(ctx context.Context, id string) (string, error) {
	var body string
	err := g.do(ctx, "fetch_body", func(ctx context.Context) error {
		var err error
		body, err = g.res.FetchBody(ctx, id)
		return err
	})
	if err != nil {
		return "", err
	}
	return body, nil
}

// FetchBodiesBatch fetches every body in one serialized pass.
func (g *Gateway) FetchBodiesBatch(
	ctx context.Context,
	ids []string,
) (map[string]string, error) {
	if len(ids) == 0 {
		return map[string]string{}, nil
	}

	var bodies map[string]string
	err := g.do(ctx, "fetch_bodies", func(ctx context.Context) error {
		var err error
		bodies, err = g.res.FetchBodies(ctx, ids)
		return err
	})
	if err != nil {
		return nil, err
	}
	if bodies == nil {
		bodies = map[string]string{}
	}
	return bodies, nil
}

// MarkRead flags a message as seen.
func (g *Gateway) MarkRead(ctx context.Context, id string) error {
	return g.do(ctx, "mark_read", func(ctx context.Context) error {
		return g.res.MarkRead(ctx, id)
	})
}

// MoveTo files a message into folder and returns its new id.
func (g *Gateway) MoveTo(ctx context.Context, id, folder string) (string, error) {
	var moved string
	err := g.do(ctx, "move", func(ctx context.Context) error {
		var err error
		moved, err = g.res.MoveTo(ctx, id, folder)
		return err
	})
	return moved, err
}

// ListFolders lists the mailbox folders.
func (g *Gateway) ListFolders(ctx context.Context) ([]model.Folder, error) {
	var folders []model.Folder
	err := g.do(ctx, "list_folders", func(ctx context.Context) error {
		var err error
		folders, err = g.res.ListFolders(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return folders, nil
}

// Package imapbox implements mail.Resource over IMAP.
package imapbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"slices"
	"strconv"
	"strings"
	"syscall"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/nhle/inbox-triage/internal/mail"
	"github.com/nhle/inbox-triage/internal/model"
)

var _ mail.Resource = (*Client)(nil)

// Client holds one authenticated IMAP connection. It is not safe for
// concurrent use; wrap it in a mail.Gateway.
type Client struct {
	host     string
	port     string
	username string
	password string
	tls      bool

	conn *imapclient.Client
}

// NewClient creates an IMAP resource. No connection is made until
// Connect is called.
func NewClient(
	cfg model.IMAPConfig,
	password string,
) *Client {
	port := cfg.Port
	if port == "" {
		port = "993"
	}
	return &Client{
		host:     cfg.Host,
		port:     port,
		username: cfg.Username,
		password: password,
		tls:      cfg.TLS,
	}
}

// Connect dials the server and authenticates, replacing any existing
// connection.
func (c *Client) Connect(_ context.Context) error {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}

	addr := net.JoinHostPort(c.host, c.port)

	var client *imapclient.Client
	var err error

	if c.tls {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(c.username, c.password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return fmt.Errorf("authentication failed for %s: %w", c.username, err)
	}

	c.conn = client
	return nil
}

// Close logs out and drops the connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Logout().Wait()
	_ = c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) client() (*imapclient.Client, error) {
	if c.conn == nil {
		return nil, fmt.Errorf("not connected: %w", mail.ErrConnectionLost)
	}
	return c.conn, nil
}

// selectFolder makes folder the target of the following commands.
func (c *Client) selectFolder(folder string) (*imap.SelectData, error) {
	client, err := c.client()
	if err != nil {
		return nil, err
	}
	data, err := client.Select(folder, nil).Wait()
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("selecting %s", folder), err)
	}
	return data, nil
}

// ListEmails fetches envelopes for a window of the newest messages.
func (c *Client) ListEmails(
	_ context.Context,
	folder string,
	count, offset int,
) ([]model.EmailRecord, error) {
	if folder == "" {
		folder = "INBOX"
	}
	data, err := c.selectFolder(folder)
	if err != nil {
		return nil, err
	}

	total := int(data.NumMessages)
	end := total - max(offset, 0)
	if end < 1 || count <= 0 {
		return nil, nil
	}
	start := max(end-count+1, 1)

	var seqSet imap.SeqSet
	seqSet.AddRange(uint32(start), uint32(end))

	msgs, err := c.conn.Fetch(seqSet, &imap.FetchOptions{
		Envelope: true,
		Flags:    true,
		UID:      true,
	}).Collect()
	if err != nil {
		return nil, wrapErr("fetching envelopes", err)
	}

	emails := make([]model.EmailRecord, 0, len(msgs))
	for _, buf := range msgs {
		emails = append(emails, recordFromBuffer(folder, buf))
	}

	// Sequence order is oldest first.
	slices.Reverse(emails)
	return emails, nil
}

// FetchBody fetches and decodes the body of one message.
func (c *Client) FetchBody(ctx context.Context, id string) (string, error) {
	bodies, err := c.FetchBodies(ctx, []string{id})
	if err != nil {
		return "", err
	}
	body, ok := bodies[id]
	if !ok {
		return "", fmt.Errorf("%s: %w", id, mail.ErrMessageNotFound)
	}
	return body, nil
}

// FetchBodies issues one UID FETCH per folder touched by ids.
func (c *Client) FetchBodies(
	_ context.Context,
	ids []string,
) (map[string]string, error) {
	byFolder, order, err := groupByFolder(ids)
	if err != nil {
		return nil, err
	}

	bodies := make(map[string]string, len(ids))
	for _, folder := range order {
		if _, err := c.selectFolder(folder); err != nil {
			return nil, err
		}

		bodySection := &imap.FetchItemBodySection{Peek: true}
		msgs, err := c.conn.Fetch(imap.UIDSetNum(byFolder[folder]...), &imap.FetchOptions{
			UID:         true,
			BodySection: []*imap.FetchItemBodySection{bodySection},
		}).Collect()
		if err != nil {
			return nil, wrapErr(fmt.Sprintf("fetching bodies in %s", folder), err)
		}

		for _, buf := range msgs {
			raw := buf.FindBodySection(bodySection)
			if raw == nil {
				continue
			}
			bodies[FormatID(folder, buf.UID)] = plainBody(raw)
		}
	}

	return bodies, nil
}

// MarkRead adds the \Seen flag.
func (c *Client) MarkRead(_ context.Context, id string) error {
	folder, uid, err := ParseID(id)
	if err != nil {
		return err
	}
	if _, err := c.selectFolder(folder); err != nil {
		return err
	}

	storeCmd := c.conn.Store(imap.UIDSetNum(uid), &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	}, nil)
	if err := storeCmd.Close(); err != nil {
		return wrapErr("marking read", err)
	}
	return nil
}

// MoveTo moves a message, creating the destination if it is missing. The
// returned id names the message in its new folder: the UID comes from the
// COPYUID answer, or from the destination's UIDNEXT read before the move
// on servers without UIDPLUS.
func (c *Client) MoveTo(_ context.Context, id, folder string) (string, error) {
	src, uid, err := ParseID(id)
	if err != nil {
		return "", err
	}
	if src == folder {
		return id, nil
	}
	if _, err := c.client(); err != nil {
		return "", err
	}

	next, err := c.uidNext(folder)
	if err != nil {
		if isConnLost(err) {
			return "", wrapErr("moving message", err)
		}
		if err := c.conn.Create(folder, nil).Wait(); err != nil {
			return "", wrapErr(fmt.Sprintf("creating %s", folder), err)
		}
		if next, err = c.uidNext(folder); err != nil {
			return "", wrapErr(fmt.Sprintf("reading status of %s", folder), err)
		}
	}

	if _, err := c.selectFolder(src); err != nil {
		return "", err
	}
	data, err := c.conn.Move(imap.UIDSetNum(uid), folder).Wait()
	if err != nil {
		return "", wrapErr(fmt.Sprintf("moving to %s", folder), err)
	}

	if moved, ok := movedUID(data); ok {
		next = moved
	}
	if next == 0 {
		return "", nil
	}
	return FormatID(folder, next), nil
}

// uidNext reads the UID the next message delivered to folder will get.
func (c *Client) uidNext(folder string) (imap.UID, error) {
	data, err := c.conn.Status(folder, &imap.StatusOptions{UIDNext: true}).Wait()
	if err != nil {
		return 0, err
	}
	return data.UIDNext, nil
}

// movedUID extracts the destination UID of a single-message MOVE.
func movedUID(data *imapclient.MoveData) (imap.UID, bool) {
	if data == nil {
		return 0, false
	}
	set, ok := data.DestUIDs.(imap.UIDSet)
	if !ok {
		return 0, false
	}
	uids, ok := set.Nums()
	if !ok || len(uids) != 1 {
		return 0, false
	}
	return uids[0], true
}

// ListFolders lists every mailbox on the server.
func (c *Client) ListFolders(_ context.Context) ([]model.Folder, error) {
	client, err := c.client()
	if err != nil {
		return nil, err
	}

	boxes, err := client.List("", "*", nil).Collect()
	if err != nil {
		return nil, wrapErr("listing folders", err)
	}

	folders := make([]model.Folder, 0, len(boxes))
	for _, b := range boxes {
		f := model.Folder{
			Name:       b.Mailbox,
			Selectable: !slices.Contains(b.Attrs, imap.MailboxAttrNoSelect),
		}
		if b.Delim != 0 {
			f.Delimiter = string(b.Delim)
		}
		folders = append(folders, f)
	}
	return folders, nil
}

// FormatID builds the stable id of a message: its folder and UID.
func FormatID(folder string, uid imap.UID) string {
	return folder + "/" + strconv.FormatUint(uint64(uid), 10)
}

// ParseID splits an id built by FormatID. Folder names may contain "/".
func ParseID(id string) (string, imap.UID, error) {
	i := strings.LastIndex(id, "/")
	if i <= 0 || i == len(id)-1 {
		return "", 0, fmt.Errorf("invalid message id %q", id)
	}
	n, err := strconv.ParseUint(id[i+1:], 10, 32)
	if err != nil || n == 0 {
		return "", 0, fmt.Errorf("invalid message id %q", id)
	}
	return id[:i], imap.UID(n), nil
}

func groupByFolder(ids []string) (map[string][]imap.UID, []string, error) {
	byFolder := make(map[string][]imap.UID)
	var order []string
	for _, id := range ids {
		folder, uid, err := ParseID(id)
		if err != nil {
			return nil, nil, err
		}
		if _, ok := byFolder[folder]; !ok {
			order = append(order, folder)
		}
		byFolder[folder] = append(byFolder[folder], uid)
	}
	return byFolder, order, nil
}

// recordFromBuffer maps fetched envelope data onto an EmailRecord.
func recordFromBuffer(folder string, buf *imapclient.FetchMessageBuffer) model.EmailRecord {
	rec := model.EmailRecord{
		ID:     FormatID(folder, buf.UID),
		Folder: folder,
		IsRead: slices.Contains(buf.Flags, imap.FlagSeen),
	}

	if env := buf.Envelope; env != nil {
		rec.Subject = decodeHeader(env.Subject)
		rec.Date = env.Date
		rec.ConversationID = env.MessageID

		if len(env.From) > 0 {
			from := env.From[0]
			if from.Name != "" {
				rec.Sender = fmt.Sprintf("%s <%s>", decodeHeader(from.Name), from.Addr())
			} else {
				rec.Sender = from.Addr()
			}
		}
	}

	return rec
}

// isConnLost reports whether err means the connection is gone.
func isConnLost(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "use of closed network connection") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "broken pipe")
}

func wrapErr(op string, err error) error {
	if isConnLost(err) {
		return fmt.Errorf("%s: %w: %v", op, mail.ErrConnectionLost, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

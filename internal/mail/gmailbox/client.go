// Package gmailbox implements mail.Resource over the Gmail API. Labels
// stand in for folders.
package gmailbox

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"slices"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/nhle/inbox-triage/internal/mail"
	"github.com/nhle/inbox-triage/internal/model"
)

const (
	gmailUserID = "me"
	labelUnread = "UNREAD"
	labelInbox  = "INBOX"
	listPage    = 100
)

var _ mail.Resource = (*Client)(nil)

// Client is a Gmail-backed mail resource. It is not safe for concurrent
// use; wrap it in a mail.Gateway.
type Client struct {
	cfg       *oauth2.Config
	tokenFile string

	svc    *gmail.Service
	labels map[string]string
}

// NewClient reads the OAuth client secrets named in cfg.
func NewClient(cfg model.GmailConfig) (*Client, error) {
	b, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("reading gmail credentials %s: %w", cfg.CredentialsFile, err)
	}

	oauthCfg, err := google.ConfigFromJSON(b, gmail.GmailModifyScope)
	if err != nil {
		return nil, fmt.Errorf("parsing gmail credentials: %w", err)
	}

	return &Client{
		cfg:       oauthCfg,
		tokenFile: cfg.TokenFile,
	}, nil
}

// LoadToken reads a cached OAuth token from path.
func LoadToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening token %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("decoding token %s: %w", path, err)
	}
	return tok, nil
}

// Connect builds an authorized service and loads the label table.
func (c *Client) Connect(ctx context.Context) error {
	tok, err := LoadToken(c.tokenFile)
	if err != nil {
		return err
	}

	// The HTTP client outlives ctx; it must not be bound to one call.
	clt := c.cfg.Client(context.Background(), tok)

	svc, err := gmail.NewService(ctx, option.WithHTTPClient(clt))
	if err != nil {
		return fmt.Errorf("creating gmail service: %w", err)
	}
	c.svc = svc

	if err := c.refreshLabels(ctx); err != nil {
		c.svc = nil
		return err
	}
	return nil
}

// Close drops the service. The Gmail API holds no session to end.
func (c *Client) Close() error {
	c.svc = nil
	c.labels = nil
	return nil
}

func (c *Client) service() (*gmail.Service, error) {
	if c.svc == nil {
		return nil, fmt.Errorf("not connected: %w", mail.ErrConnectionLost)
	}
	return c.svc, nil
}

func (c *Client) refreshLabels(ctx context.Context) error {
	svc, err := c.service()
	if err != nil {
		return err
	}
	resp, err := svc.Users.Labels.List(gmailUserID).Context(ctx).Do()
	if err != nil {
		return wrapErr("listing labels", err)
	}
	c.labels = make(map[string]string, len(resp.Labels))
	for _, l := range resp.Labels {
		c.labels[l.Name] = l.Id
	}
	return nil
}

// labelID resolves a folder name to a label id, creating the label when
// create is set.
func (c *Client) labelID(ctx context.Context, name string, create bool) (string, error) {
	if id, ok := c.labels[name]; ok {
		return id, nil
	}
	if !create {
		return "", fmt.Errorf("label %q not found", name)
	}

	label, err := c.svc.Users.Labels.Create(gmailUserID, &gmail.Label{
		Name:                  name,
		LabelListVisibility:   "labelShow",
		MessageListVisibility: "show",
	}).Context(ctx).Do()
	if err != nil {
		return "", wrapErr(fmt.Sprintf("creating label %s", name), err)
	}
	c.labels[name] = label.Id
	return label.Id, nil
}

// ListEmails pages through the label until offset+count ids are known,
// then fetches metadata for the requested window.
func (c *Client) ListEmails(
	ctx context.Context,
	folder string,
	count, offset int,
) ([]model.EmailRecord, error) {
	svc, err := c.service()
	if err != nil {
		return nil, err
	}
	if folder == "" {
		folder = labelInbox
	}
	if count <= 0 {
		return nil, nil
	}
	labelID, err := c.labelID(ctx, folder, false)
	if err != nil {
		return nil, err
	}

	want := max(offset, 0) + count
	var ids []string
	pageToken := ""
	for len(ids) < want {
		resp, err := svc.Users.Messages.List(gmailUserID).
			LabelIds(labelID).
			MaxResults(int64(min(want-len(ids), listPage))).
			PageToken(pageToken).
			Context(ctx).
			Do()
		if err != nil {
			return nil, wrapErr("listing messages", err)
		}
		for _, m := range resp.Messages {
			ids = append(ids, m.Id)
		}
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	if offset >= len(ids) {
		return nil, nil
	}
	ids = ids[max(offset, 0):min(want, len(ids))]

	emails := make([]model.EmailRecord, 0, len(ids))
	for _, id := range ids {
		msg, err := svc.Users.Messages.Get(gmailUserID, id).
			Format("metadata").
			MetadataHeaders("From", "Subject", "Date").
			Context(ctx).
			Do()
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, wrapErr("getting message metadata", err)
		}
		emails = append(emails, recordFromMessage(folder, msg))
	}
	return emails, nil
}

// FetchBody fetches the full message and returns its readable text.
func (c *Client) FetchBody(ctx context.Context, id string) (string, error) {
	svc, err := c.service()
	if err != nil {
		return "", err
	}
	msg, err := svc.Users.Messages.Get(gmailUserID, id).Format("full").Context(ctx).Do()
	if err != nil {
		if isNotFound(err) {
			return "", fmt.Errorf("%s: %w", id, mail.ErrMessageNotFound)
		}
		return "", wrapErr("getting message", err)
	}
	return messageText(msg.Payload), nil
}

// FetchBodies fetches each message in turn. Missing ids are skipped.
func (c *Client) FetchBodies(ctx context.Context, ids []string) (map[string]string, error) {
	bodies := make(map[string]string, len(ids))
	for _, id := range ids {
		body, err := c.FetchBody(ctx, id)
		if errors.Is(err, mail.ErrMessageNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		bodies[id] = body
	}
	return bodies, nil
}

// MarkRead removes the UNREAD label.
func (c *Client) MarkRead(ctx context.Context, id string) error {
	svc, err := c.service()
	if err != nil {
		return err
	}
	_, err = svc.Users.Messages.Modify(gmailUserID, id, &gmail.ModifyMessageRequest{
		RemoveLabelIds: []string{labelUnread},
	}).Context(ctx).Do()
	if err != nil {
		return wrapErr("marking read", err)
	}
	return nil
}

// MoveTo labels the message with folder and takes it out of the inbox.
// Gmail ids do not change when labels do.
func (c *Client) MoveTo(ctx context.Context, id, folder string) (string, error) {
	svc, err := c.service()
	if err != nil {
		return "", err
	}
	labelID, err := c.labelID(ctx, folder, true)
	if err != nil {
		return "", err
	}

	req := &gmail.ModifyMessageRequest{AddLabelIds: []string{labelID}}
	if labelID != labelInbox {
		req.RemoveLabelIds = []string{labelInbox}
	}
	if _, err := svc.Users.Messages.Modify(gmailUserID, id, req).Context(ctx).Do(); err != nil {
		return "", wrapErr(fmt.Sprintf("moving to %s", folder), err)
	}
	return id, nil
}

// ListFolders lists labels as folders.
func (c *Client) ListFolders(ctx context.Context) ([]model.Folder, error) {
	if err := c.refreshLabels(ctx); err != nil {
		return nil, err
	}
	folders := make([]model.Folder, 0, len(c.labels))
	for name := range c.labels {
		folders = append(folders, model.Folder{Name: name, Delimiter: "/", Selectable: true})
	}
	slices.SortFunc(folders, func(a, b model.Folder) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return folders, nil
}

func recordFromMessage(folder string, msg *gmail.Message) model.EmailRecord {
	rec := model.EmailRecord{
		ID:             msg.Id,
		Folder:         folder,
		ConversationID: msg.ThreadId,
		IsRead:         !slices.Contains(msg.LabelIds, labelUnread),
	}
	if msg.InternalDate > 0 {
		rec.Date = time.UnixMilli(msg.InternalDate)
	}
	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			switch h.Name {
			case "From":
				rec.Sender = h.Value
			case "Subject":
				rec.Subject = h.Value
			}
		}
	}
	if rec.Subject == "" {
		rec.Subject = msg.Snippet
	}
	return rec
}

func isNotFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}

// wrapErr marks transport failures and expired credentials as a lost
// connection so the gateway reconnects.
func wrapErr(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if gerr.Code == http.StatusUnauthorized {
			return fmt.Errorf("%s: %w: %v", op, mail.ErrConnectionLost, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	var netErr net.Error
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &netErr) || errors.As(err, &retrieveErr) {
		return fmt.Errorf("%s: %w: %v", op, mail.ErrConnectionLost, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

package imapbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/inbox-triage/internal/mail"
)

func TestParseID(t *testing.T) {
	folder, uid, err := ParseID("INBOX/42")
	require.NoError(t, err)
	assert.Equal(t, "INBOX", folder)
	assert.Equal(t, imap.UID(42), uid)

	folder, uid, err = ParseID("Triage/Action Required/7")
	require.NoError(t, err)
	assert.Equal(t, "Triage/Action Required", folder)
	assert.Equal(t, imap.UID(7), uid)

	for _, bad := range []string{"", "INBOX", "INBOX/", "/5", "INBOX/x", "INBOX/0"} {
		_, _, err := ParseID(bad)
		assert.Error(t, err, bad)
	}
}

func TestFormatIDRoundTrip(t *testing.T) {
	id := FormatID("Work/Reports", 1234)
	assert.Equal(t, "Work/Reports/1234", id)

	folder, uid, err := ParseID(id)
	require.NoError(t, err)
	assert.Equal(t, "Work/Reports", folder)
	assert.Equal(t, imap.UID(1234), uid)
}

func TestMovedUID(t *testing.T) {
	uid, ok := movedUID(&imapclient.MoveData{DestUIDs: imap.UIDSetNum(88)})
	require.True(t, ok)
	assert.Equal(t, imap.UID(88), uid)

	_, ok = movedUID(nil)
	assert.False(t, ok)
	_, ok = movedUID(&imapclient.MoveData{})
	assert.False(t, ok)
	_, ok = movedUID(&imapclient.MoveData{DestUIDs: imap.UIDSetNum(3, 4)})
	assert.False(t, ok)
}

func TestMoveToSameFolderKeepsID(t *testing.T) {
	c := &Client{}
	id, err := c.MoveTo(context.Background(), "Triage/Discard/5", "Triage/Discard")
	require.NoError(t, err)
	assert.Equal(t, "Triage/Discard/5", id)
}

func TestMoveToNeedsConnection(t *testing.T) {
	c := &Client{}
	_, err := c.MoveTo(context.Background(), "INBOX/5", "Triage/Discard")
	assert.ErrorIs(t, err, mail.ErrConnectionLost)
}

func TestGroupByFolderKeepsOrder(t *testing.T) {
	byFolder, order, err := groupByFolder([]string{"INBOX/3", "Archive/1", "INBOX/9"})
	require.NoError(t, err)
	assert.Equal(t, []string{"INBOX", "Archive"}, order)
	assert.Equal(t, []imap.UID{3, 9}, byFolder["INBOX"])
	assert.Equal(t, []imap.UID{1}, byFolder["Archive"])
}

func TestWrapErrMarksConnectionLoss(t *testing.T) {
	err := wrapErr("fetching", fmt.Errorf("read: %w", io.EOF))
	assert.ErrorIs(t, err, mail.ErrConnectionLost)

	err = wrapErr("fetching", errors.New("use of closed network connection"))
	assert.ErrorIs(t, err, mail.ErrConnectionLost)

	err = wrapErr("selecting Foo", errors.New("NO [NONEXISTENT] Unknown Mailbox"))
	assert.NotErrorIs(t, err, mail.ErrConnectionLost)
}

const multipartMessage = "From: Alice <alice@example.com>\r\n" +
	"Subject: Hello\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/alternative; boundary=XYZ\r\n" +
	"\r\n" +
	"--XYZ\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Please sign the form by Friday.\r\n" +
	"--XYZ\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<p>Please <b>sign</b> the form by Friday.</p>\r\n" +
	"--XYZ--\r\n"

const htmlOnlyMessage = "From: News <news@example.com>\r\n" +
	"Subject: Digest\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<html><body><h1>Weekly digest</h1><p>Go 1.25 is out.</p></body></html>\r\n"

func TestPlainBodyPrefersText(t *testing.T) {
	assert.Equal(t, "Please sign the form by Friday.", plainBody([]byte(multipartMessage)))
}

func TestPlainBodyConvertsHTML(t *testing.T) {
	body := plainBody([]byte(htmlOnlyMessage))
	assert.Contains(t, body, "Weekly digest")
	assert.Contains(t, body, "Go 1.25 is out.")
	assert.NotContains(t, body, "<p>")
}

func TestDecodeHeader(t *testing.T) {
	assert.Equal(t, "Café meeting", decodeHeader("=?UTF-8?Q?Caf=C3=A9_meeting?="))
	assert.Equal(t, "plain", decodeHeader("plain"))
}

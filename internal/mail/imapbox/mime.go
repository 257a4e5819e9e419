package imapbox

import (
	"bytes"
	"io"
	"mime"
	"strings"

	"github.com/emersion/go-message/mail"
	"github.com/jaytaylor/html2text"

	// Registers decoders for non UTF-8 charsets.
	_ "github.com/emersion/go-message/charset"
)

var wordDecoder = &mime.WordDecoder{}

// decodeHeader decodes RFC 2047 encoded-words in a header value.
func decodeHeader(s string) string {
	decoded, err := wordDecoder.DecodeHeader(s)
	if err != nil {
		return s
	}
	return decoded
}

// plainBody returns the readable text of a raw RFC 5322 message. The
// text/plain part wins; HTML is converted when it is the only body.
func plainBody(raw []byte) string {
	textBody, htmlBody := parseMIMEBody(raw)
	if strings.TrimSpace(textBody) != "" {
		return strings.TrimSpace(textBody)
	}
	if htmlBody == "" {
		return ""
	}
	return htmlToText(htmlBody)
}

func htmlToText(html string) string {
	text, err := html2text.FromString(html, html2text.Options{})
	if err != nil {
		return strings.TrimSpace(html)
	}
	return strings.TrimSpace(text)
}

// parseMIMEBody walks the message parts and returns the first text/plain
// and text/html bodies. Attachments are skipped.
func parseMIMEBody(raw []byte) (textBody string, htmlBody string) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		// Not MIME; treat the whole thing as plain text.
		return string(raw), ""
	}
	defer mr.Close()

	for {
		part, err := mr.NextPart()
		if err != nil {
			break
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}

		contentType, _, _ := h.ContentType()
		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}

		switch {
		case strings.HasPrefix(contentType, "text/plain") && textBody == "":
			textBody = string(body)
		case strings.HasPrefix(contentType, "text/html") && htmlBody == "":
			htmlBody = string(body)
		}
	}

	return textBody, htmlBody
}

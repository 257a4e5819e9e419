package gmailbox

import (
	"encoding/base64"
	"strings"

	"github.com/jaytaylor/html2text"
	"google.golang.org/api/gmail/v1"
)

// messageText returns the text/plain body, or the converted HTML body
// when there is no plain part.
func messageText(payload *gmail.MessagePart) string {
	if payload == nil {
		return ""
	}
	textBody, htmlBody := extractBodies(payload)
	if strings.TrimSpace(textBody) != "" {
		return strings.TrimSpace(textBody)
	}
	if htmlBody == "" {
		return ""
	}
	text, err := html2text.FromString(htmlBody, html2text.Options{})
	if err != nil {
		return strings.TrimSpace(htmlBody)
	}
	return strings.TrimSpace(text)
}

// extractBodies walks the part tree depth-first, keeping the first plain
// and HTML bodies found.
func extractBodies(part *gmail.MessagePart) (textBody, htmlBody string) {
	textBody, htmlBody = bodyOf(part)

	for _, child := range part.Parts {
		childText, childHTML := extractBodies(child)
		if textBody == "" {
			textBody = childText
		}
		if htmlBody == "" {
			htmlBody = childHTML
		}
	}

	return textBody, htmlBody
}

func bodyOf(part *gmail.MessagePart) (textBody, htmlBody string) {
	if part.Body == nil || part.Body.Data == "" {
		return "", ""
	}

	switch part.MimeType {
	case "text/plain":
		return decodeBase64URL(part.Body.Data), ""
	case "text/html":
		return "", decodeBase64URL(part.Body.Data)
	default:
		return "", ""
	}
}

func decodeBase64URL(data string) string {
	decoded, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		decoded, err = base64.RawURLEncoding.DecodeString(data)
		if err != nil {
			return data
		}
	}
	return string(decoded)
}

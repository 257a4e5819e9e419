package triage

import (
	"regexp"
	"strings"
	"time"
)

var (
	// The day may run straight into a time, as in 2024-03-15T17:00.
	isoDatePattern = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})(?:T|\b)`)
	usDatePattern  = regexp.MustCompile(`\b(\d{1,2})([/-])(\d{1,2})([/-])(\d{4})\b`)
)

// noDeadline lists phrases meaning the model found no due date.
var noDeadline = []string{
	"no deadline",
	"no specific deadline",
	"no due date",
	"not specified",
}

// noDeadlineExact must match the whole text.
var noDeadlineExact = map[string]bool{
	"none": true,
	"n/a":  true,
	"null": true,
}

// ParseDueDate reads a date from free text. It understands YYYY-MM-DD,
// MM/DD/YYYY and MM-DD-YYYY. Text without one of those, or saying there
// is no deadline, yields nil.
func ParseDueDate(text string) *time.Time {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	lower := strings.ToLower(text)
	if noDeadlineExact[lower] {
		return nil
	}
	for _, s := range noDeadline {
		if strings.Contains(lower, s) {
			return nil
		}
	}

	if m := isoDatePattern.FindStringSubmatch(text); m != nil {
		if d, ok := makeDate(m[1], m[2], m[3]); ok {
			return &d
		}
	}
	for _, m := range usDatePattern.FindAllStringSubmatch(text, -1) {
		// Mixed separators such as 03/15-2024 are not a date.
		if m[2] != m[4] {
			continue
		}
		if d, ok := makeDate(m[5], m[1], m[3]); ok {
			return &d
		}
	}
	return nil
}

func makeDate(year, month, day string) (time.Time, bool) {
	d, err := time.Parse("2006-1-2", year+"-"+month+"-"+day)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

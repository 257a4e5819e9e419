// Package linkref pulls links out of email text.
package linkref

import (
	"regexp"
	"strings"

	"github.com/samber/lo"
)

// urlPattern matches http(s) URLs up to the first whitespace or bracket.
var urlPattern = regexp.MustCompile(`https?://[^\s<>"'()\[\]]+`)

// ExtractURLs extracts all http(s) URLs from text.
// Returns a deduplicated list preserving the order of first occurrence.
func ExtractURLs(text string) []string {
	matches := urlPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}

	return lo.Uniq(lo.Map(matches, func(m string, _ int) string {
		return strings.TrimRight(m, ".,;:!?")
	}))
}

// Merge combines link lists, keeping the first occurrence of each link.
// Entries that are not http(s) URLs are dropped.
func Merge(lists ...[]string) []string {
	var links []string
	for _, l := range lo.Flatten(lists) {
		if l = strings.TrimSpace(l); urlPattern.MatchString(l) {
			links = append(links, l)
		}
	}
	if len(links) == 0 {
		return nil
	}
	return lo.Uniq(links)
}

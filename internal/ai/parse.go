package ai

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"

	"github.com/nhle/inbox-triage/internal/model"
)

// extractJSONObject returns the outermost {...} span of a model answer,
// which tolerates code fences and chatter around the object.
func extractJSONObject(content string) (string, error) {
	start := strings.Index(content, "{")
	if start == -1 {
		return "", fmt.Errorf("no JSON object found in response")
	}

	end := strings.LastIndex(content, "}")
	if end == -1 || end <= start {
		return "", fmt.Errorf("malformed JSON object in response")
	}

	return strings.TrimSpace(content[start : end+1]), nil
}

func decodeObject(content string, dst any) error {
	raw, err := extractJSONObject(content)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("decoding model response: %w", err)
	}
	return nil
}

// normalizeConfidence clamps a reported confidence into [0,1]. Values in
// (1,100] are read as percentages.
func normalizeConfidence(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	if c > 1 && c <= 100 {
		c = c / 100
	}
	c = max(0, min(1, c))
	return &c
}

type classifyResponse struct {
	Category     string   `json:"category"`
	Confidence   *float64 `json:"confidence"`
	Reasoning    string   `json:"reasoning"`
	Alternatives []string `json:"alternatives"`
}

func parseClassification(content string) (Classification, error) {
	var resp classifyResponse
	if err := decodeObject(content, &resp); err != nil {
		// A bare category name is still a usable answer.
		if c, ok := findCategoryMention(content); ok {
			return Classification{
				Category:  c,
				Reasoning: strings.TrimSpace(content),
			}, nil
		}
		return Classification{}, err
	}

	category, ok := model.ParseCategory(resp.Category)
	if !ok {
		return Classification{}, fmt.Errorf("unknown category %q in model response", resp.Category)
	}

	alternatives := lo.FilterMap(resp.Alternatives, func(s string, _ int) (model.Category, bool) {
		c, ok := model.ParseCategory(s)
		return c, ok && c != category
	})

	return Classification{
		Category:     category,
		Confidence:   normalizeConfidence(resp.Confidence),
		Reasoning:    resp.Reasoning,
		Alternatives: lo.Uniq(alternatives),
	}, nil
}

// findCategoryMention returns the first category named in free text.
func findCategoryMention(content string) (model.Category, bool) {
	lower := strings.ToLower(content)
	best, bestIdx := model.Category(""), -1
	for _, c := range model.AllCategories {
		idx := strings.Index(lower, string(c))
		if idx >= 0 && (bestIdx == -1 || idx < bestIdx) {
			best, bestIdx = c, idx
		}
	}
	return best, bestIdx >= 0
}

type extractResponse struct {
	ActionRequired string   `json:"action_required"`
	ActionItems    []string `json:"action_items"`
	DueDate        string   `json:"due_date"`
	Explanation    string   `json:"explanation"`
	Relevance      string   `json:"relevance"`
	Links          []string `json:"links"`
	Confidence     *float64 `json:"confidence"`
}

// parseActionItems decodes an extraction answer. When the answer is not
// JSON, the raw text becomes the action description.
func parseActionItems(content string) ActionItems {
	var resp extractResponse
	if err := decodeObject(content, &resp); err != nil {
		text := strings.TrimSpace(content)
		if text == "" {
			return ActionItems{}
		}
		first := truncate(firstLine(text), 200)
		return ActionItems{
			Items:          []string{first},
			ActionRequired: first,
			Explanation:    text,
		}
	}

	items := lo.Filter(lo.Map(resp.ActionItems, func(s string, _ int) string {
		return strings.TrimSpace(s)
	}), func(s string, _ int) bool { return s != "" })

	return ActionItems{
		Items:          items,
		ActionRequired: strings.TrimSpace(resp.ActionRequired),
		DueDate:        strings.TrimSpace(resp.DueDate),
		Explanation:    strings.TrimSpace(resp.Explanation),
		Relevance:      strings.TrimSpace(resp.Relevance),
		Links:          lo.Uniq(lo.Compact(resp.Links)),
		Confidence:     normalizeConfidence(resp.Confidence),
		Structured:     true,
	}
}

// UnableToSummarize is the summary text used when the model returned
// nothing.
const UnableToSummarize = "Unable to generate summary"

type summaryResponse struct {
	Summary    string   `json:"summary"`
	KeyPoints  []string `json:"key_points"`
	Confidence *float64 `json:"confidence"`
}

func parseSummary(content string) Summary {
	text := strings.TrimSpace(content)
	if text == "" {
		return Summary{Summary: UnableToSummarize, Confidence: 0.5}
	}

	var resp summaryResponse
	if err := decodeObject(text, &resp); err != nil {
		return Summary{Summary: text, Confidence: 0.5}
	}

	summary := strings.TrimSpace(resp.Summary)
	if summary == "" {
		return Summary{Summary: UnableToSummarize, Confidence: 0.5}
	}

	confidence := 0.5
	if c := normalizeConfidence(resp.Confidence); c != nil {
		confidence = *c
	}

	return Summary{
		Summary:    summary,
		KeyPoints:  lo.Compact(resp.KeyPoints),
		Confidence: confidence,
	}
}

func parseHolistic(content string) (HolisticFindings, error) {
	var findings HolisticFindings
	if err := decodeObject(content, &findings); err != nil {
		return HolisticFindings{}, err
	}
	return findings, nil
}

type dedupResponse struct {
	KeptIDs []string           `json:"kept_ids"`
	Removed []RemovedDuplicate `json:"removed_duplicates"`
}

// parseDedup decodes a dedup answer, ignoring ids that were not offered
// and never removing every copy of a duplicate set.
func parseDedup(content string, items []ContentItem) (DedupResult, error) {
	var resp dedupResponse
	if err := decodeObject(content, &resp); err != nil {
		return DedupResult{}, err
	}

	offered := lo.SliceToMap(items, func(it ContentItem) (string, bool) {
		return it.ID, true
	})

	removed := make([]RemovedDuplicate, 0, len(resp.Removed))
	removedIDs := make(map[string]bool)
	for _, r := range resp.Removed {
		if !offered[r.ID] || removedIDs[r.ID] || r.ID == r.DuplicateOf {
			continue
		}
		if r.DuplicateOf != "" && (!offered[r.DuplicateOf] || removedIDs[r.DuplicateOf]) {
			continue
		}
		removed = append(removed, r)
		removedIDs[r.ID] = true
	}

	kept := lo.FilterMap(items, func(it ContentItem, _ int) (string, bool) {
		return it.ID, !removedIDs[it.ID]
	})

	return DedupResult{
		KeptIDs: kept,
		Removed: removed,
		Stats: DedupStatistics{
			Original: len(items),
			Kept:     len(kept),
			Removed:  len(removed),
		},
	}, nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

package triage

import (
	"context"
	"errors"
	"sync"

	"github.com/nhle/inbox-triage/internal/ai"
	"github.com/nhle/inbox-triage/internal/model"
)

// fakeInference is an Inference whose answers are set per test. Unset
// functions fail the way a broken backend would.
type fakeInference struct {
	mu    sync.Mutex
	calls map[string]int

	classify  func(text string) ai.Outcome[ai.Classification]
	extract   func(text string) ai.Outcome[ai.ActionItems]
	summarize func(text string, kind ai.SummaryKind) ai.Outcome[ai.Summary]
	holistic  func(emails []model.EmailRecord) ai.Outcome[ai.HolisticFindings]
	dedup     func(items []ai.ContentItem) ai.Outcome[ai.DedupResult]
}

var errBackend = errors.New("connection refused")

func (f *fakeInference) record(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[op]++
}

func (f *fakeInference) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeInference) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeInference) Classify(_ context.Context, text, _ string) ai.Outcome[ai.Classification] {
	f.record("classify")
	if f.classify != nil {
		return f.classify(text)
	}
	half := 0.5
	return ai.Fallback(ai.Classification{Category: ai.FallbackCategory, Confidence: &half}, errBackend)
}

func (f *fakeInference) ExtractActionItems(_ context.Context, text, _ string) ai.Outcome[ai.ActionItems] {
	f.record("extract")
	if f.extract != nil {
		return f.extract(text)
	}
	return ai.Fallback(ai.ActionItems{ActionRequired: ai.Unavailable}, errBackend)
}

func (f *fakeInference) Summarize(_ context.Context, text string, kind ai.SummaryKind) ai.Outcome[ai.Summary] {
	f.record("summarize")
	if f.summarize != nil {
		return f.summarize(text, kind)
	}
	return ai.Fallback(ai.Summary{Summary: ai.Unavailable}, errBackend)
}

func (f *fakeInference) AnalyzeHolistically(_ context.Context, emails []model.EmailRecord) ai.Outcome[ai.HolisticFindings] {
	f.record("holistic")
	if f.holistic != nil {
		return f.holistic(emails)
	}
	return ai.OK(ai.HolisticFindings{})
}

func (f *fakeInference) DeduplicateContent(_ context.Context, items []ai.ContentItem, _ string) ai.Outcome[ai.DedupResult] {
	f.record("dedup")
	if f.dedup != nil {
		return f.dedup(items)
	}
	return ai.Fallback(ai.DedupResult{}, errBackend)
}

// fakeMailbox records calls and serves bodies from a map.
type fakeMailbox struct {
	mu     sync.Mutex
	bodies map[string]string
	err    error
	moveFn func(id, folder string) error

	// renames gives the id a message gets in its new folder. Bodies
	// follow the message.
	renames map[string]string

	fetches int
	fetched []string
	moves   map[string]string
}

func (m *fakeMailbox) FetchBodiesBatch(_ context.Context, ids []string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches++
	m.fetched = append(m.fetched, ids...)
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string]string)
	for _, id := range ids {
		if b, ok := m.bodies[id]; ok {
			out[id] = b
		}
	}
	return out, nil
}

func (m *fakeMailbox) MoveTo(_ context.Context, id, folder string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.moveFn != nil {
		if err := m.moveFn(id, folder); err != nil {
			return "", err
		}
	}
	if m.moves == nil {
		m.moves = make(map[string]string)
	}
	m.moves[id] = folder

	newID, ok := m.renames[id]
	if !ok {
		return id, nil
	}
	if body, ok := m.bodies[id]; ok {
		delete(m.bodies, id)
		m.bodies[newID] = body
	}
	return newID, nil
}

func actionAnswer(action, due string) func(string) ai.Outcome[ai.ActionItems] {
	return func(string) ai.Outcome[ai.ActionItems] {
		return ai.OK(ai.ActionItems{
			Items:          []string{action},
			ActionRequired: action,
			DueDate:        due,
			Structured:     true,
		})
	}
}

func classifyAs(c model.Category, confidence float64) func(string) ai.Outcome[ai.Classification] {
	return func(string) ai.Outcome[ai.Classification] {
		return ai.OK(ai.Classification{Category: c, Confidence: &confidence})
	}
}

func ptr[T any](v T) *T {
	return &v
}

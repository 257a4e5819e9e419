package triage

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"

	"github.com/nhle/inbox-triage/internal/ai"
	"github.com/nhle/inbox-triage/internal/model"
	"github.com/nhle/inbox-triage/internal/store"
)

// summaryCategories are deduplicated separately from each other.
var summaryCategories = []model.Category{
	model.CategoryFYI,
	model.CategoryNewsletter,
}

// DedupReport counts what a deduplication pass did per category.
type DedupReport struct {
	Examined map[model.Category]int
	Removed  []ai.RemovedDuplicate
	Skipped  []model.Category
}

// Deduper removes summary tasks that repeat each other.
type Deduper struct {
	ai     Inference
	store  store.Store
	logger *log.Logger
}

// NewDeduper creates a Deduper.
func NewDeduper(inf Inference, s store.Store, logger *log.Logger) *Deduper {
	if logger == nil {
		logger = log.Default()
	}
	return &Deduper{ai: inf, store: s, logger: logger}
}

// DeduplicateSummaries asks the model which open fyi and newsletter
// summaries cover the same content and deletes the repeats. A category
// whose analysis failed is left untouched and listed in Skipped.
func (d *Deduper) DeduplicateSummaries(ctx context.Context) (DedupReport, error) {
	report := DedupReport{Examined: make(map[model.Category]int)}

	kind := model.TaskKindSummary
	status := model.StatusTodo

	for _, cat := range summaryCategories {
		tasks, err := d.store.GetTasks(ctx, store.TaskFilter{
			Category: &cat,
			Kind:     &kind,
			Status:   &status,
		})
		if err != nil {
			return report, fmt.Errorf("loading %s summaries: %w", cat, err)
		}
		report.Examined[cat] = len(tasks)
		if len(tasks) < 2 {
			continue
		}

		items := lo.Map(tasks, func(t model.TaskDraft, _ int) ai.ContentItem {
			return ai.ContentItem{ID: t.ID, Title: t.Title, Text: t.Description}
		})
		out := d.ai.DeduplicateContent(ctx, items, string(cat)+" summaries")
		if out.Degraded {
			d.logger.Warn("dedup skipped", "category", cat, "err", out.Err)
			report.Skipped = append(report.Skipped, cat)
			continue
		}
		if len(out.Value.Removed) == 0 {
			continue
		}

		ids := lo.Map(out.Value.Removed, func(r ai.RemovedDuplicate, _ int) string { return r.ID })
		n, err := d.store.DeleteTasks(ctx, ids)
		if err != nil {
			return report, fmt.Errorf("deleting %s duplicates: %w", cat, err)
		}
		report.Removed = append(report.Removed, out.Value.Removed...)

		d.logger.Info("duplicates removed", "category", cat, "removed", n, "kept", out.Value.Stats.Kept)
	}

	return report, nil
}

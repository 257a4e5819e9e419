package triage

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/nhle/inbox-triage/internal/model"
)

// HolisticAnalyzer runs the cross-email pass over a batch and turns its
// findings into category overrides.
type HolisticAnalyzer struct {
	ai     Inference
	logger *log.Logger
}

// NewHolisticAnalyzer creates a HolisticAnalyzer.
func NewHolisticAnalyzer(inf Inference, logger *log.Logger) *HolisticAnalyzer {
	if logger == nil {
		logger = log.Default()
	}
	return &HolisticAnalyzer{ai: inf, logger: logger}
}

// Analyze returns the new category of every email the batch analysis
// reclassified. Expired emails become spam_to_delete, superseded ones
// work_relevant, and duplicates other than the kept one spam_to_delete.
// Findings are folded in that order and a later finding for the same id
// replaces an earlier one. A failed analysis yields an empty map.
func (h *HolisticAnalyzer) Analyze(
	ctx context.Context,
	emails []model.EmailRecord,
) map[string]model.Category {
	reclass := make(map[string]model.Category)
	if len(emails) == 0 {
		return reclass
	}

	out := h.ai.AnalyzeHolistically(ctx, emails)
	if out.Degraded {
		h.logger.Warn("holistic pass skipped", "emails", len(emails), "err", out.Err)
		return reclass
	}
	findings := out.Value

	for _, it := range findings.Expired {
		h.logger.Info("expired", "email", it.EmailID, "reason", it.Reason)
		reclass[it.EmailID] = model.CategorySpamToDelete
	}

	for _, it := range findings.Superseded {
		h.logger.Info("superseded",
			"email", it.OriginalID,
			"by", it.SupersededByID,
			"reason", it.Reason,
		)
		reclass[it.OriginalID] = model.CategoryWorkRelevant
	}

	for _, grp := range findings.Duplicates {
		for _, id := range grp.ArchiveIDs {
			if id == grp.KeepID {
				continue
			}
			h.logger.Info("duplicate", "email", id, "keep", grp.KeepID, "topic", grp.Topic)
			reclass[id] = model.CategorySpamToDelete
		}
	}

	h.logger.Debug("holistic pass done",
		"emails", len(emails),
		"reclassified", len(reclass),
	)
	return reclass
}

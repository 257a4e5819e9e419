package theme

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/inbox-triage/internal/model"
)

func TestCategoryStyleDistinguishesUrgency(t *testing.T) {
	assert.Equal(t, ColorRed, CategoryStyle(model.CategoryRequiredPersonalAction).GetForeground())
	assert.Equal(t, ColorBlue, CategoryStyle(model.CategoryNewsletter).GetForeground())
	assert.Equal(t, ColorGray, CategoryStyle(model.CategorySpamToDelete).GetForeground())
}

func TestPriorityStyle(t *testing.T) {
	assert.Equal(t, ColorRed, PriorityStyle(model.PriorityHigh).GetForeground())
	assert.Equal(t, ColorGray, PriorityStyle(model.Priority("")).GetForeground())
}

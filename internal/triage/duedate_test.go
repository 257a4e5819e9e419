package triage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDueDate(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "iso in sentence", text: "Please respond by 2024-03-15", want: "2024-03-15"},
		{name: "us slashes", text: "due 03/15/2024", want: "2024-03-15"},
		{name: "us dashes", text: "before 3-5-2024 EOD", want: "2024-03-05"},
		{name: "iso single digits", text: "2024-3-5", want: "2024-03-05"},
		{name: "iso timestamp", text: "2024-03-15T17:00:00Z", want: "2024-03-15"},
		{name: "iso timestamp in sentence", text: "Due by 2024-03-15T17:00", want: "2024-03-15"},
		{name: "iso day followed by digit", text: "ref 2024-03-155"},
		{name: "no specific deadline", text: "No specific deadline"},
		{name: "no deadline mentioned", text: "There is no deadline, 2024-03-15 was the kickoff"},
		{name: "asap", text: "ASAP"},
		{name: "none", text: "None"},
		{name: "empty", text: "  "},
		{name: "invalid day", text: "by 2024-02-30"},
		{name: "invalid month", text: "13/01/2024"},
		{name: "mixed separators", text: "03/15-2024"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseDueDate(tt.text)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Format(time.DateOnly))
		})
	}
}

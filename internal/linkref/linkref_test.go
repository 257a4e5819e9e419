package linkref

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractURLs(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "none",
			text: "no links here",
			want: nil,
		},
		{
			name: "dedup keeps first order",
			text: "see https://b.example.com/x and http://a.example.com, then https://b.example.com/x again",
			want: []string{"https://b.example.com/x", "http://a.example.com"},
		},
		{
			name: "trailing punctuation",
			text: "Apply at https://jobs.example.com/123. Thanks!",
			want: []string{"https://jobs.example.com/123"},
		},
		{
			name: "angle brackets",
			text: "<https://example.com/form?id=1&x=2>",
			want: []string{"https://example.com/form?id=1&x=2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractURLs(tt.text))
		})
	}
}

func TestMerge(t *testing.T) {
	got := Merge(
		[]string{"https://a.example.com", "not a link"},
		[]string{" https://b.example.com ", "https://a.example.com"},
	)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, got)
	assert.Nil(t, Merge())
}

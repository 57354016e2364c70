package traders

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"signal-trader/internal/domain"
	"signal-trader/internal/fuzzy"
)

func TestHandleVariants(t *testing.T) {
	tests := []struct {
		name      string
		target    string
		author    string
		wantMatch bool
	}{
		{name: "dash after at", target: "@Bryce", author: "@-Bryce", wantMatch: true},
		{name: "case difference", target: "@Trader123", author: "@trader123", wantMatch: true},
		{name: "different name", target: "@Bryce", author: "@Bryan", wantMatch: false},
		{name: "target without at", target: "Bryce", author: "@Bryce", wantMatch: true},
		{name: "author without at", target: "@Bryce", author: "Bryce", wantMatch: true},
		{name: "discriminator suffix", target: "@yramki", author: "yramki#0042", wantMatch: true},
		{name: "one char ocr slip", target: "@Tareeq", author: "@Tareeg", wantMatch: true},
		{name: "empty author", target: "@Bryce", author: "", wantMatch: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := fuzzy.Similarity(tt.target, tt.author)
			assert.Equal(t, tt.wantMatch, score >= DefaultThreshold, "score=%.3f", score)
		})
	}
}

func TestSimilarity_Symmetric(t *testing.T) {
	assert.Equal(t, fuzzy.Similarity("@Bryce", "@Bryan"), fuzzy.Similarity("@Bryan", "@Bryce"))
	assert.Equal(t, 1.0, fuzzy.Similarity("@-Bryce", "bryce"))
}

func TestMatch(t *testing.T) {
	list := domain.TraderAllowList{
		Traders: []domain.Trader{
			{Handle: "@yramki", Enabled: true},
			{Handle: "@Tareeq", Enabled: true},
			{Handle: "@Bryce", Enabled: false},
		},
		Enforce:   true,
		Threshold: 0.8,
	}

	trader, score, ok := Match(list, "@-yramki")
	assert.True(t, ok)
	assert.Equal(t, "@yramki", trader.Handle)
	assert.Equal(t, 1.0, score)

	_, _, ok = Match(list, "@Bryce")
	assert.False(t, ok, "disabled trader must not match")

	_, _, ok = Match(list, "@randomuser")
	assert.False(t, ok)

	list.Enforce = false
	_, _, ok = Match(list, "@randomuser")
	assert.True(t, ok, "unenforced list admits every author")
}

func TestParseHandles(t *testing.T) {
	got := ParseHandles("@yramki, @Tareeq,, ")
	assert.Equal(t, []domain.Trader{
		{Handle: "@yramki", Enabled: true},
		{Handle: "@Tareeq", Enabled: true},
	}, got)
}

package fuzzy

import (
	"math"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "@-Bryce", want: "bryce"},
		{in: "Trader123", want: "trader123"},
		{in: "yramki#0042", want: "yramki"},
		{in: "Unlock Content", want: "unlockcontent"},
		{in: "#general", want: "general"},
		{in: "", want: ""},
	}

	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{a: "@Bryce", b: "@-Bryce", want: 1},
		{a: "@Bryce", b: "@Bryan", want: 0.6},
		{a: "abc", b: "", want: 0},
	}

	for _, tt := range tests {
		if got := Similarity(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Similarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestMatches(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{name: "exact", text: "Unlock Content", want: true},
		{name: "icon noise", text: "© Unlock Content »", want: true},
		{name: "ocr slip", text: "Unlock Contert", want: true},
		{name: "other button", text: "Join Voice", want: false},
		{name: "empty", text: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Matches(tt.text, "Unlock Content", 0.8); got != tt.want {
				t.Errorf("Matches(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

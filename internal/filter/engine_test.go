package filter

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		name  string
		item  Item
		terms []string
		scope Scope
		want  bool
	}{
		{
			name:  "no terms never matches",
			item:  Item{Title: "anything", Content: "whatever"},
			terms: nil,
			want:  false,
		},
		{
			name:  "blank terms are ignored",
			item:  Item{Title: "anything"},
			terms: []string{"", "  "},
			want:  false,
		},
		{
			name:  "title substring",
			item:  Item{Title: "Apple news today"},
			terms: []string{"apple"},
			want:  true,
		},
		{
			name:  "case insensitive both ways",
			item:  Item{Title: "new IPHONE released"},
			terms: []string{"iPhone"},
			want:  true,
		},
		{
			name:  "any term is enough",
			item:  Item{Title: "Google earnings"},
			terms: []string{"apple", "google"},
			want:  true,
		},
		{
			name:  "substring inside a word",
			item:  Item{Title: "Pineapple prices"},
			terms: []string{"apple"},
			want:  true,
		},
		{
			name:  "content matches with scope all",
			item:  Item{Title: "Markets", Content: "Shares of Apple rose"},
			terms: []string{"apple"},
			scope: ScopeAll,
			want:  true,
		},
		{
			name:  "content ignored with scope title",
			item:  Item{Title: "Markets", Content: "Shares of Apple rose"},
			terms: []string{"apple"},
			scope: ScopeTitle,
			want:  false,
		},
		{
			name:  "no match anywhere",
			item:  Item{Title: "Weather", Content: "Sunny"},
			terms: []string{"apple"},
			scope: ScopeAll,
			want:  false,
		},
		{
			name:  "padded term",
			item:  Item{Title: "Apple"},
			terms: []string{"  apple "},
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Match(tt.item, tt.terms, tt.scope)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Match mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestScopeFor(t *testing.T) {
	if got := ScopeFor(true); got != ScopeAll {
		t.Errorf("ScopeFor(true) = %v, want ScopeAll", got)
	}
	if got := ScopeFor(false); got != ScopeTitle {
		t.Errorf("ScopeFor(false) = %v, want ScopeTitle", got)
	}
}

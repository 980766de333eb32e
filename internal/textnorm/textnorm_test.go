package textnorm

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestKey(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases and strips punctuation", "Is it an Animal?", "is it an animal"},
		{"trims and collapses space", "  is   it   big ?! ", "is it big"},
		{"strips diacritics", "Is it a Crème Brûlée?", "is it a creme brulee"},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Key(tt.in); got != tt.want {
				t.Errorf("Key(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNameKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"The Dogs", "dog"},
		{"a koala", "koala"},
		{"Berries", "berry"},
		{"boxes", "box"},
		{"glass", "glass"},
		{"bus", "bus"},
		{"Eiffel Tower", "eiffel tower"},
		{"a", "a"},
	}
	for _, tt := range tests {
		if got := NameKey(tt.in); got != tt.want {
			t.Errorf("NameKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestContainsTokens(t *testing.T) {
	if !ContainsTokens([]string{"domestic", "dog"}, []string{"dog"}) {
		t.Error("expected domestic dog to contain dog")
	}
	if !ContainsTokens([]string{"big", "polar", "bears"}, []string{"polar", "bear"}) {
		t.Error("expected plural-insensitive containment")
	}
	if ContainsTokens([]string{"dog"}, []string{"domestic", "dog"}) {
		t.Error("needle longer than haystack must not match")
	}
	if ContainsTokens([]string{"cat"}, nil) {
		t.Error("empty needle must not match")
	}
}

func TestHasSuffixTokens(t *testing.T) {
	if !HasSuffixTokens(Tokens("small dogs"), []string{"dog"}) {
		t.Error("expected small dogs to end with dog")
	}
	if HasSuffixTokens(Tokens("dog food"), []string{"dog"}) {
		t.Error("dog food must not end with dog")
	}
}

func TestTokens(t *testing.T) {
	got := Tokens("Is it a T-Rex, or not?")
	want := []string{"is", "it", "a", "t", "rex", "or", "not"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Tokens mismatch (-want +got):\n%s", diff)
	}
}

func TestWordCount(t *testing.T) {
	if n := WordCount(" polar   bear "); n != 2 {
		t.Errorf("WordCount = %d, want 2", n)
	}
}

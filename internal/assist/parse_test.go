package assist

import (
	"reflect"
	"testing"
)

func TestParseRepliesJSONArray(t *testing.T) {
	raw := `["Congrats on shipping!", "This looks great.", "How long did it take?"]`

	got := parseReplies(raw, 5)
	want := []string{"Congrats on shipping!", "This looks great.", "How long did it take?"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestParseRepliesRespectsMax(t *testing.T) {
	raw := `["one", "two", "three", "four"]`

	got := parseReplies(raw, 2)
	if len(got) != 2 {
		t.Errorf("got %d replies, want 2", len(got))
	}
}

func TestParseRepliesCodeFence(t *testing.T) {
	raw := "```json\n[\"fenced reply\"]\n```"

	got := parseReplies(raw, 3)
	if len(got) != 1 || got[0] != "fenced reply" {
		t.Errorf("got %v", got)
	}
}

func TestParseRepliesProseWrappedArray(t *testing.T) {
	raw := `Here are some suggestions: ["a solid take", "well said"] Hope these help!`

	got := parseReplies(raw, 5)
	want := []string{"a solid take", "well said"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestParseRepliesBulletFallback(t *testing.T) {
	raw := "- First suggestion\n* Second suggestion\n\n• Third suggestion"

	got := parseReplies(raw, 5)
	want := []string{"First suggestion", "Second suggestion", "Third suggestion"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestParseRepliesNumberedFallback(t *testing.T) {
	raw := "1. Love this update\n2) Keep them coming\n10. Double digit marker"

	got := parseReplies(raw, 5)
	want := []string{"Love this update", "Keep them coming", "Double digit marker"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestParseRepliesSkipsEmptyItems(t *testing.T) {
	raw := `["useful", "", "   ", "also useful"]`

	got := parseReplies(raw, 5)
	want := []string{"useful", "also useful"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestParseRepliesEmptyInput(t *testing.T) {
	if got := parseReplies("", 3); got != nil {
		t.Errorf("got %v, want nil", got)
	}
	if got := parseReplies("   \n  ", 3); got != nil {
		t.Errorf("got %v, want nil for whitespace", got)
	}
}

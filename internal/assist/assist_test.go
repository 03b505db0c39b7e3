package assist

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/thevalentinedev/altreach/internal/config"
	"github.com/thevalentinedev/altreach/internal/types"
)

func TestNewFromConfigDisabledWithoutKey(t *testing.T) {
	advisor := NewFromConfig(&config.Config{})
	if advisor.Enabled() {
		t.Fatal("advisor should be disabled without an API key")
	}

	_, err := advisor.Suggest(context.Background(), SuggestRequest{PostText: "hello"})
	if !errors.Is(err, types.ErrAssistDisabled) {
		t.Errorf("got %v, want ErrAssistDisabled", err)
	}
}

func TestNewFromConfigEnabledWithKey(t *testing.T) {
	advisor := NewFromConfig(&config.Config{
		OpenAIAPIKey: "sk-test-key-0123456789",
		OpenAIModel:  "gpt-4o-mini",
	})
	if !advisor.Enabled() {
		t.Fatal("advisor should be enabled with an API key")
	}
}

func TestSuggestRejectsEmptyPost(t *testing.T) {
	advisor := &openAIAdvisor{model: "gpt-4o-mini"}

	_, err := advisor.Suggest(context.Background(), SuggestRequest{PostText: "   "})
	if !errors.Is(err, types.ErrInvalidRequest) {
		t.Errorf("got %v, want ErrInvalidRequest", err)
	}
}

func TestNormalizeTone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "friendly"},
		{"  ", "friendly"},
		{"Witty", "witty"},
		{" PROFESSIONAL ", "professional"},
	}
	for _, tt := range tests {
		if got := normalizeTone(tt.in); got != tt.want {
			t.Errorf("normalizeTone(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestClampReplyCount(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{0, defaultMaxReplies},
		{-2, defaultMaxReplies},
		{1, 1},
		{5, 5},
		{types.MaxReplySuggestions + 50, types.MaxReplySuggestions},
	}
	for _, tt := range tests {
		if got := clampReplyCount(tt.in); got != tt.want {
			t.Errorf("clampReplyCount(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestSystemPromptMentionsToneAndCount(t *testing.T) {
	prompt := systemPrompt("witty", 4)
	if !strings.Contains(prompt, "witty") {
		t.Error("prompt should carry the requested tone")
	}
	if !strings.Contains(prompt, "4 distinct reply suggestions") {
		t.Error("prompt should carry the requested count")
	}
	if !strings.Contains(prompt, "JSON array") {
		t.Error("prompt should request a JSON array")
	}
}

// Package assist generates reply suggestions for an extracted post
// through an OpenAI-compatible chat completion API.
package assist

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog/log"

	"github.com/thevalentinedev/altreach/internal/config"
	"github.com/thevalentinedev/altreach/internal/types"
)

const (
	defaultTone       = "friendly"
	defaultMaxReplies = 3
	requestTimeout    = 30 * time.Second
)

// SuggestRequest describes one suggestion run.
type SuggestRequest struct {
	PostText   string
	Tone       string
	MaxReplies int
}

// Advisor produces reply suggestions for a post.
type Advisor interface {
	Suggest(ctx context.Context, req SuggestRequest) (*types.AssistResult, error)
	Enabled() bool
}

// NewFromConfig returns an OpenAI-backed advisor, or a disabled one
// when no API key is configured.
func NewFromConfig(cfg *config.Config) Advisor {
	if !cfg.HasAssist() {
		log.Info().Msg("Assist disabled, no OpenAI API key configured")
		return disabledAdvisor{}
	}
	client := openai.NewClient(option.WithAPIKey(cfg.OpenAIAPIKey))
	log.Info().Str("model", cfg.OpenAIModel).Msg("Assist enabled")
	return &openAIAdvisor{
		client: client,
		model:  cfg.OpenAIModel,
	}
}

type disabledAdvisor struct{}

func (disabledAdvisor) Enabled() bool { return false }

func (disabledAdvisor) Suggest(ctx context.Context, req SuggestRequest) (*types.AssistResult, error) {
	return nil, types.ErrAssistDisabled
}

type openAIAdvisor struct {
	client openai.Client
	model  string
}

func (a *openAIAdvisor) Enabled() bool { return true }

// Suggest asks the model for reply suggestions and parses them out of
// the completion. The model is asked for a JSON array but the parser
// tolerates prose-wrapped and bulleted answers too.
func (a *openAIAdvisor) Suggest(ctx context.Context, req SuggestRequest) (*types.AssistResult, error) {
	text := strings.TrimSpace(req.PostText)
	if text == "" {
		return nil, fmt.Errorf("%w: post text is empty", types.ErrInvalidRequest)
	}

	tone := normalizeTone(req.Tone)
	count := clampReplyCount(req.MaxReplies)

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	start := time.Now()
	completion, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(a.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt(tone, count)),
			openai.UserMessage(userPrompt(text)),
		},
		Temperature: openai.Float(0.8),
		MaxTokens:   openai.Int(600),
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	replies := parseReplies(completion.Choices[0].Message.Content, count)
	if len(replies) == 0 {
		return nil, fmt.Errorf("could not parse any suggestions from model output")
	}

	log.Debug().
		Str("model", a.model).
		Str("tone", tone).
		Int("replies", len(replies)).
		Dur("elapsed", time.Since(start)).
		Msg("Generated reply suggestions")

	return &types.AssistResult{
		Tone:    tone,
		Model:   a.model,
		Replies: replies,
	}, nil
}

func normalizeTone(tone string) string {
	tone = strings.ToLower(strings.TrimSpace(tone))
	if tone == "" {
		return defaultTone
	}
	return tone
}

func clampReplyCount(n int) int {
	if n <= 0 {
		return defaultMaxReplies
	}
	if n > types.MaxReplySuggestions {
		return types.MaxReplySuggestions
	}
	return n
}

func systemPrompt(tone string, count int) string {
	return fmt.Sprintf(`You help people engage on social media. Given a post, write %d distinct reply suggestions in a %s tone.

Rules:
- Each reply must stand on its own and fit in 280 characters.
- No hashtags unless the post uses them, no emoji spam, no quotation marks around the reply.
- Respond with a JSON array of strings and nothing else.`, count, tone)
}

func userPrompt(postText string) string {
	return "Post:\n" + postText
}

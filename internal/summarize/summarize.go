// Package summarize produces short article summaries through the Anthropic
// API. It runs its own small retry loop, separate from the platform client:
// a summary is a nicety, so the policy here is simpler and the account
// machinery is not involved.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sethvargo/go-retry"

	"wxsync/internal/render"
	"wxsync/internal/wxsync"
)

const systemPrompt = `You summarize articles from followed WeChat official accounts.
Reply with a summary of at most three sentences, in the article's own language.
Reply with the summary only.`

// Keep the request bounded even for very long articles.
const maxInputRunes = 12000

// messagesAPI is the slice of the SDK client used here, split out so tests
// can script responses.
type messagesAPI interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

type Summarizer struct {
	messages  messagesAPI
	maxTries  uint64
	baseDelay time.Duration
}

func New(client *anthropic.Client) *Summarizer {
	return &Summarizer{
		messages:  &client.Messages,
		maxTries:  3,
		baseDelay: time.Second,
	}
}

// Summarize renders the article to text and asks the model for a summary.
//
// Rate limits and server errors are retried with a fibonacci backoff up to
// the attempt budget; anything else fails immediately.
func (s *Summarizer) Summarize(ctx context.Context, article wxsync.Article) (string, error) {
	text := render.Text(article.RawContent, article.SourceURL)
	if runes := []rune(text); len(runes) > maxInputRunes {
		text = string(runes[:maxInputRunes])
	}
	input := fmt.Sprintf("Title: %s\n\n%s", article.Title, text)

	var summary string
	b := retry.WithMaxRetries(s.maxTries-1, retry.NewFibonacci(s.baseDelay))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		resp, err := s.messages.New(ctx, anthropic.MessageNewParams{
			Model:     anthropic.ModelClaudeHaiku4_5,
			MaxTokens: 512,
			System: []anthropic.TextBlockParam{{
				Text: systemPrompt,
			}},
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(input)),
			},
		})

		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) &&
			(apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500) {
			return retry.RetryableError(err)
		}
		if err != nil {
			return err
		}

		var out strings.Builder
		for _, content := range resp.Content {
			out.WriteString(content.Text)
		}
		summary = strings.TrimSpace(out.String())

		return nil
	})
	if err != nil {
		return "", fmt.Errorf("error summarizing article: %w", err)
	}

	return summary, nil
}

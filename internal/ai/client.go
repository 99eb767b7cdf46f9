// Package ai talks to hosted completion APIs and turns their answers into
// item verdicts.
package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bornholm/genai/llm"
	"github.com/bornholm/genai/llm/provider"
	"github.com/bornholm/genai/llm/provider/openai"
	"golang.org/x/time/rate"
)

// Both providers are reached through their OpenAI compatible endpoints.
const (
	claudeBaseURL = "https://api.anthropic.com/v1/"
	openaiBaseURL = "https://api.openai.com/v1/"
)

// Response is a completion plus the number of tokens it consumed.
type Response struct {
	Text   string
	Tokens int
}

// Completer answers a single prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (Response, error)
}

// ChatClient is the part of llm.Client a Completer needs.
type ChatClient interface {
	ChatCompletion(ctx context.Context, funcs ...llm.ChatCompletionOptionFunc) (llm.ChatCompletionResponse, error)
}

// Options configures New.
type Options struct {
	Provider    string
	BaseURL     string
	APIKey      string
	Model       string
	MinInterval time.Duration
}

// New creates a rate limited Completer for the configured provider.
func New(ctx context.Context, opts Options) (Completer, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("ai not configured: missing api key")
	}

	baseURL, model := opts.BaseURL, opts.Model
	switch opts.Provider {
	case "claude", "":
		if baseURL == "" {
			baseURL = claudeBaseURL
		}
		if model == "" {
			model = "claude-haiku-4-5-20251001"
		}
	case "openai":
		if baseURL == "" {
			baseURL = openaiBaseURL
		}
		if model == "" {
			model = "gpt-4o-mini"
		}
	default:
		return nil, fmt.Errorf("unknown ai provider: %q (valid: claude, openai)", opts.Provider)
	}

	client, err := provider.Create(ctx, provider.WithChatCompletion(openai.Name, openai.Options{
		CommonOptions: provider.CommonOptions{
			BaseURL: baseURL,
			APIKey:  opts.APIKey,
			Model:   model,
		},
	}))
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", opts.Provider, err)
	}

	c := NewCompleter(client)
	if opts.MinInterval <= 0 {
		return c, nil
	}
	return &limited{
		next:    c,
		limiter: rate.NewLimiter(rate.Every(opts.MinInterval), 1),
	}, nil
}

// NewCompleter adapts a chat client to a single prompt Completer.
func NewCompleter(client ChatClient) Completer {
	return &chatCompleter{client: client}
}

type chatCompleter struct {
	client ChatClient
}

func (c *chatCompleter) Complete(ctx context.Context, prompt string) (Response, error) {
	res, err := c.client.ChatCompletion(ctx,
		llm.WithMessages(llm.NewMessage(llm.RoleUser, prompt)),
	)
	if err != nil {
		return Response{}, fmt.Errorf("chat completion: %w", err)
	}

	msg := res.Message()
	if msg == nil || strings.TrimSpace(msg.Content()) == "" {
		return Response{}, fmt.Errorf("chat completion: empty response")
	}

	out := Response{Text: msg.Content()}
	if usage := res.Usage(); usage != nil {
		out.Tokens = int(usage.TotalTokens())
	}
	return out, nil
}

// limited spaces calls to the wrapped Completer.
type limited struct {
	next    Completer
	limiter *rate.Limiter
}

func (l *limited) Complete(ctx context.Context, prompt string) (Response, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return Response{}, fmt.Errorf("wait for rate limit: %w", err)
	}
	return l.next.Complete(ctx, prompt)
}

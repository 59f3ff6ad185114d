// Package suggest turns free-form AI-generated text into a bounded,
// de-duplicated list of quick-reply suggestions, with timeout, one
// retry on an alternate prompt, and canned fallbacks so the compose
// surface is never left empty.
package suggest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/helpchat/internal/logger"
	"github.com/helpchat/internal/model"
)

const (
	defaultTimeout = 15 * time.Second
	defaultBackoff = 1500 * time.Millisecond
)

// TextGenerator is the external text-generation collaborator.
type TextGenerator interface {
	Generate(ctx context.Context, prompt, language string) (string, error)
}

type Engine struct {
	gen TextGenerator

	// Timeout bounds a single generation attempt; Backoff is the
	// pause before the retry. Overridable for tests.
	Timeout time.Duration
	Backoff time.Duration
}

func NewEngine(gen TextGenerator) *Engine {
	return &Engine{gen: gen, Timeout: defaultTimeout, Backoff: defaultBackoff}
}

// Generate produces at most MaxSuggestions quick replies for the
// given conversation context. A failed first attempt (timeout,
// transport or parse failure) is retried once with an alternate
// prompt; a failed retry falls back to a canned set. The returned
// error is non-nil only when the caller's context is done.
func (e *Engine) Generate(ctx context.Context, conversationContext, language string) ([]model.Suggestion, error) {
	texts, err := e.attempt(ctx, buildPrompt(conversationContext, language, false), language)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Errorf("suggest: first attempt: %v", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(e.Backoff):
		}
		texts, err = e.attempt(ctx, buildPrompt(conversationContext, language, true), language)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Errorf("suggest: retry failed, falling back to canned set: %v", err)
		texts = cannedSet()
	}
	return toSuggestions(texts), nil
}

func (e *Engine) attempt(ctx context.Context, prompt, language string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()
	raw, err := e.gen.Generate(ctx, prompt, language)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	return Parse(raw)
}

func buildPrompt(conversationContext, language string, alternate bool) string {
	if alternate {
		return fmt.Sprintf(
			"List up to %d short reply suggestions for the support agent, one per line, "+
				"no numbering and no commentary. Answer in %s.\n\nConversation:\n%s",
			MaxSuggestions, language, conversationContext)
	}
	return fmt.Sprintf(
		"You are a helpdesk support agent. Based on the conversation below, suggest up to %d "+
			"short quick replies as a numbered list. Each reply must fit one line. Answer in %s.\n\n"+
			"Conversation:\n%s",
		MaxSuggestions, language, conversationContext)
}

func toSuggestions(texts []string) []model.Suggestion {
	if len(texts) > MaxSuggestions {
		texts = texts[:MaxSuggestions]
	}
	out := make([]model.Suggestion, 0, len(texts))
	for _, t := range texts {
		out = append(out, model.Suggestion{ID: uuid.New().String(), Text: Truncate(t)})
	}
	return out
}

// Package structuring turns menu text into menu items with an LLM.
package structuring

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"

	"menu-scan/pkg/logging"
	"menu-scan/pkg/models"
	"menu-scan/pkg/services/retry"
)

var log = logging.For("structuring")

const (
	DefaultTemperature = 0.3
	DefaultMaxTokens   = 2000
)

// Structurer turns one chunk of menu text into items.
type Structurer interface {
	Structure(ctx context.Context, text string) ([]models.MenuItem, error)
}

// LLM structures menu text with a chat model.
type LLM struct {
	llm         llms.Model
	provider    string
	model       string
	temperature float64
	maxTokens   int
	policy      retry.Policy
}

var _ Structurer = (*LLM)(nil)

// Option configures an LLM structurer.
type Option func(*LLM)

// WithRetryPolicy sets the retry policy for model calls.
func WithRetryPolicy(p retry.Policy) Option {
	return func(l *LLM) { l.policy = p }
}

// WithTemperature overrides the sampling temperature.
func WithTemperature(t float64) Option {
	return func(l *LLM) {
		if t >= 0 {
			l.temperature = t
		}
	}
}

// WithMaxTokens overrides the completion token limit.
func WithMaxTokens(n int) Option {
	return func(l *LLM) {
		if n > 0 {
			l.maxTokens = n
		}
	}
}

// NewLLM wraps a langchaingo model. provider and model are only used for logging.
func NewLLM(m llms.Model, provider, model string, opts ...Option) *LLM {
	l := &LLM{
		llm:         m,
		provider:    provider,
		model:       model,
		temperature: DefaultTemperature,
		maxTokens:   DefaultMaxTokens,
		policy:      retry.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Structure asks the model for items and parses its answer strictly. Blank
// text yields no items without a model call. Transient call failures are
// retried; an unparseable answer is not.
func (l *LLM) Structure(ctx context.Context, text string) ([]models.MenuItem, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	logger := logging.Ctx(ctx, log).WithFields(logrus.Fields{
		"provider": l.provider,
		"model":    l.model,
		"chars":    len([]rune(text)),
	})

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt(text)),
	}

	choice, err := retry.Do(ctx, l.policy, "structure", func(ctx context.Context) (*llms.ContentChoice, error) {
		resp, err := l.llm.GenerateContent(ctx, messages,
			llms.WithTemperature(l.temperature),
			llms.WithMaxTokens(l.maxTokens),
		)
		if err != nil {
			return nil, fmt.Errorf("error getting response from LLM: %w", err)
		}
		if resp == nil || len(resp.Choices) == 0 {
			return nil, fmt.Errorf("LLM returned no choices")
		}
		return resp.Choices[0], nil
	})
	if err != nil {
		logger.WithError(err).Error("Structuring call failed")
		return nil, err
	}

	switch strings.ToLower(choice.StopReason) {
	case "length", "max_tokens":
		logger.Warn("Structuring response hit the token limit and may be truncated")
	}

	items, err := ParseItems(choice.Content)
	if err != nil {
		logger.WithError(err).Warn("Structuring response could not be parsed")
		return nil, err
	}

	logger.WithField("items", len(items)).Debug("Structured chunk")
	return items, nil
}

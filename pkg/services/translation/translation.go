// Package translation translates menu text and item names.
package translation

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	scanerrors "menu-scan/pkg/errors"
	"menu-scan/pkg/logging"
	"menu-scan/pkg/models"
	"menu-scan/pkg/services/retry"
)

var log = logging.For("translation")

// Delimiter separates batch entries inside one translation request.
const Delimiter = "|||"

// DefaultTarget is used when no target language is given.
const DefaultTarget = "en"

// Backend translates a single string.
type Backend interface {
	Translate(ctx context.Context, text, target string) (string, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, text, target string) (string, error)

func (f BackendFunc) Translate(ctx context.Context, text, target string) (string, error) {
	return f(ctx, text, target)
}

// Translator offers single-string and batch translation over a Backend.
type Translator struct {
	backend Backend
	policy  retry.Policy
}

// New creates a Translator.
func New(backend Backend, policy retry.Policy) *Translator {
	return &Translator{backend: backend, policy: policy}
}

// TranslateText translates one string.
func (t *Translator) TranslateText(ctx context.Context, text, target string) (string, error) {
	if target == "" {
		target = DefaultTarget
	}
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	return retry.Do(ctx, t.policy, "translate", func(ctx context.Context) (string, error) {
		return t.backend.Translate(ctx, text, target)
	})
}

// TranslateBatch translates many strings in one request by joining them with
// Delimiter. The result has the same order and count as texts, or the call
// fails with ErrCountMismatch.
func (t *Translator) TranslateBatch(ctx context.Context, texts []string, target string) ([]string, error) {
	if len(texts) == 0 {
		return []string{}, nil
	}
	for i, s := range texts {
		if strings.Contains(s, Delimiter) {
			return nil, fmt.Errorf("text %d contains the batch delimiter %q", i, Delimiter)
		}
	}

	joined, err := t.TranslateText(ctx, strings.Join(texts, Delimiter), target)
	if err != nil {
		return nil, err
	}

	parts := strings.Split(joined, Delimiter)
	if len(parts) != len(texts) {
		logging.Ctx(ctx, log).WithFields(logrus.Fields{
			"sent":     len(texts),
			"received": len(parts),
		}).Warn("Batch translation count mismatch")
		return nil, fmt.Errorf("sent %d texts, got %d translations: %w", len(texts), len(parts), scanerrors.ErrCountMismatch)
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts, nil
}

// TranslateItems translates item names and pairs them with the originals.
func (t *Translator) TranslateItems(ctx context.Context, items []models.MenuItem, target string) ([]models.TranslatedItem, error) {
	names := make([]string, len(items))
	for i, it := range items {
		names[i] = it.Name
	}

	translated, err := t.TranslateBatch(ctx, names, target)
	if err != nil {
		return nil, err
	}

	out := make([]models.TranslatedItem, len(items))
	for i, it := range items {
		out[i] = models.TranslatedItem{
			Name:         translated[i],
			OriginalName: it.Name,
			Price:        it.Price,
		}
	}
	return out, nil
}

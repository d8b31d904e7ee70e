package translation

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	translate "google.golang.org/api/translate/v2"

	scanerrors "menu-scan/pkg/errors"
)

// Google translates with the Cloud Translation v2 API.
type Google struct {
	svc *translate.Service
}

// NewGoogle creates a Cloud Translation backend authenticated by API key.
func NewGoogle(ctx context.Context, apiKey string, opts ...option.ClientOption) (*Google, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("google translate api key is required: %w", scanerrors.ErrProviderUnavailable)
	}
	svc, err := translate.NewService(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create translate service: %w", err)
	}
	return &Google{svc: svc}, nil
}

// Translate translates one plain-text string.
func (g *Google) Translate(ctx context.Context, text, target string) (string, error) {
	resp, err := g.svc.Translations.List([]string{text}, target).Format("text").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("translate request failed: %w", err)
	}
	if len(resp.Translations) == 0 {
		return "", fmt.Errorf("translate returned no translations")
	}
	return resp.Translations[0].TranslatedText, nil
}

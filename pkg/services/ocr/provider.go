// Package ocr defines the OCR provider contract and the cloud adapters.
package ocr

import (
	"context"

	"menu-scan/pkg/logging"
	"menu-scan/pkg/models"
)

var log = logging.For("ocr")

// Result is what a provider detected in one image.
type Result struct {
	Tokens   []models.Token `json:"tokens"`
	FullText string         `json:"fullText"`
	Provider string         `json:"provider"`
}

// Provider recognizes text in an image. Languages are provider hints such as
// "th" or "en". A provider either returns a complete result or an error, never
// a partial token list.
type Provider interface {
	Name() string
	Recognize(ctx context.Context, image []byte, languages []string) (*Result, error)
}

// Package tesseract recognizes text locally with Tesseract through gosseract.
package tesseract

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"github.com/sirupsen/logrus"

	"menu-scan/pkg/logging"
	"menu-scan/pkg/models"
	"menu-scan/pkg/services/ocr"
)

var log = logging.For("tesseract")

// languageCodes maps ISO 639-1 hints to Tesseract traineddata names.
var languageCodes = map[string]string{
	"th": "tha",
	"en": "eng",
	"zh": "chi_sim",
	"ja": "jpn",
	"ko": "kor",
	"vi": "vie",
	"lo": "lao",
	"my": "mya",
	"km": "khm",
}

// Engine is a local OCR provider.
type Engine struct {
	clientFactory func() *gosseract.Client
}

var _ ocr.Provider = (*Engine)(nil)

// New creates a Tesseract engine.
func New() *Engine {
	return &Engine{clientFactory: gosseract.NewClient}
}

func (e *Engine) Name() string { return "tesseract" }

// Recognize runs word-level recognition on the image.
func (e *Engine) Recognize(ctx context.Context, image []byte, languages []string) (*ocr.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client := e.clientFactory()
	defer client.Close()

	if err := client.SetImageFromBytes(image); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	if langs := Languages(languages); len(langs) > 0 {
		if err := client.SetLanguage(langs...); err != nil {
			return nil, fmt.Errorf("set languages: %w", err)
		}
	}

	text, err := client.Text()
	if err != nil {
		return nil, fmt.Errorf("recognize text: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("word boxes: %w", err)
	}

	tokens := tokensFromBoxes(boxes)
	logging.Ctx(ctx, log).WithFields(logrus.Fields{
		"tokens":    len(tokens),
		"languages": languages,
	}).Debug("Tesseract OCR finished")

	return &ocr.Result{
		Tokens:   tokens,
		FullText: strings.TrimSpace(text),
		Provider: e.Name(),
	}, nil
}

// Languages converts hints to Tesseract language names, passing unknown
// values through and dropping duplicates.
func Languages(hints []string) []string {
	seen := make(map[string]bool, len(hints))
	out := make([]string, 0, len(hints))
	for _, h := range hints {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" {
			continue
		}
		if code, ok := languageCodes[h]; ok {
			h = code
		}
		if !seen[h] {
			seen[h] = true
			out = append(out, h)
		}
	}
	return out
}

func tokensFromBoxes(boxes []gosseract.BoundingBox) []models.Token {
	tokens := make([]models.Token, 0, len(boxes))
	for _, b := range boxes {
		word := strings.TrimSpace(b.Word)
		if word == "" {
			continue
		}
		tokens = append(tokens, models.NewToken(word, models.BBox{
			XMin: float64(b.Box.Min.X),
			XMax: float64(b.Box.Max.X),
			YMin: float64(b.Box.Min.Y),
			YMax: float64(b.Box.Max.Y),
		}))
	}
	return tokens
}

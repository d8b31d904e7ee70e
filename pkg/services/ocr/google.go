package ocr

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
	vision "google.golang.org/api/vision/v1"

	scanerrors "menu-scan/pkg/errors"
	"menu-scan/pkg/logging"
	"menu-scan/pkg/models"
	"menu-scan/pkg/services/retry"
)

// GoogleVision runs DOCUMENT_TEXT_DETECTION through the Cloud Vision API.
type GoogleVision struct {
	svc *vision.Service
}

// NewGoogleVision creates a Cloud Vision provider authenticated by API key.
// Extra client options are appended, e.g. a custom endpoint.
func NewGoogleVision(ctx context.Context, apiKey string, opts ...option.ClientOption) (*GoogleVision, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("google vision api key is required: %w", scanerrors.ErrProviderUnavailable)
	}

	svc, err := vision.NewService(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision service: %w", err)
	}
	return &GoogleVision{svc: svc}, nil
}

func (g *GoogleVision) Name() string { return "google" }

// Recognize sends the image with language hints and converts the word
// annotations into tokens.
func (g *GoogleVision) Recognize(ctx context.Context, image []byte, languages []string) (*Result, error) {
	req := &vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{
			{
				Image:        &vision.Image{Content: base64.StdEncoding.EncodeToString(image)},
				Features:     []*vision.Feature{{Type: "DOCUMENT_TEXT_DETECTION"}},
				ImageContext: &vision.ImageContext{LanguageHints: languages},
			},
		},
	}

	resp, err := g.svc.Images.Annotate(req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("vision annotate request failed: %w", err)
	}
	if len(resp.Responses) == 0 {
		return &Result{Provider: g.Name()}, nil
	}

	first := resp.Responses[0]
	if first.Error != nil && first.Error.Message != "" {
		err := fmt.Errorf("vision annotate error %d: %s", first.Error.Code, first.Error.Message)
		if permanentStatus(first.Error.Code) {
			return nil, retry.Permanent(err)
		}
		return nil, err
	}

	tokens, fullText := tokensFromAnnotations(first.TextAnnotations)
	logging.Ctx(ctx, log).WithFields(logrus.Fields{
		"provider":  g.Name(),
		"tokens":    len(tokens),
		"languages": languages,
	}).Debug("Vision OCR finished")

	return &Result{Tokens: tokens, FullText: fullText, Provider: g.Name()}, nil
}

// tokensFromAnnotations treats the first annotation as the full text and the
// rest as individual words. Words without a polygon are dropped.
func tokensFromAnnotations(annotations []*vision.EntityAnnotation) ([]models.Token, string) {
	if len(annotations) == 0 {
		return nil, ""
	}

	fullText := annotations[0].Description
	tokens := make([]models.Token, 0, len(annotations)-1)
	for _, a := range annotations[1:] {
		if a == nil || a.BoundingPoly == nil {
			continue
		}
		points := make([]models.Point, 0, len(a.BoundingPoly.Vertices))
		for _, v := range a.BoundingPoly.Vertices {
			if v == nil {
				continue
			}
			points = append(points, models.Point{X: float64(v.X), Y: float64(v.Y)})
		}
		if tok, ok := models.TokenFromPolygon(a.Description, points); ok {
			tokens = append(tokens, tok)
		}
	}
	return tokens, fullText
}

// permanentStatus reports per-image status codes that fail the same way on
// every attempt: INVALID_ARGUMENT, NOT_FOUND, PERMISSION_DENIED,
// FAILED_PRECONDITION and UNAUTHENTICATED.
func permanentStatus(code int64) bool {
	switch code {
	case 3, 5, 7, 9, 16:
		return true
	}
	return false
}

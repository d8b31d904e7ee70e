package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	scanerrors "menu-scan/pkg/errors"
)

// Enhance prepares a photo for OCR and returns it as PNG. Everything stays in
// memory so concurrent requests never share files.
func Enhance(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", scanerrors.ErrInvalidImage, err)
	}

	// Grayscale, then stronger contrast and a sharpen pass so thin strokes survive.
	img := imaging.Grayscale(src)
	img = imaging.AdjustContrast(img, 30)
	img = imaging.Sharpen(img, 1.5)
	img = imaging.AdjustBrightness(img, 10)
	img = imaging.AdjustGamma(img, 1.2)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode enhanced image: %w", err)
	}
	return buf.Bytes(), nil
}

// Preview renders a display copy of the image no larger than maxSide pixels,
// lightly sharpened. Zero keeps the original size.
func Preview(data []byte, maxSide int) (image.Image, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", scanerrors.ErrInvalidImage, err)
	}

	img := imaging.AdjustContrast(src, 20)
	img = imaging.Sharpen(img, 1.0)
	img = imaging.AdjustBrightness(img, 5)

	b := img.Bounds()
	if maxSide > 0 && (b.Dx() > maxSide || b.Dy() > maxSide) {
		img = imaging.Fit(img, maxSide, maxSide, imaging.Lanczos)
	}
	return img, nil
}

// Enhanced wraps a provider so every image is enhanced before recognition.
type Enhanced struct {
	Provider
}

// WithEnhancement returns p wrapped in the enhancement step.
func WithEnhancement(p Provider) *Enhanced {
	return &Enhanced{Provider: p}
}

// Recognize enhances the image, then delegates.
func (e *Enhanced) Recognize(ctx context.Context, img []byte, languages []string) (*Result, error) {
	enhanced, err := Enhance(img)
	if err != nil {
		return nil, err
	}
	return e.Provider.Recognize(ctx, enhanced, languages)
}

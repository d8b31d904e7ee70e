package ocr

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Azure/azure-sdk-for-go/services/cognitiveservices/v3.0/computervision"
	"github.com/Azure/go-autorest/autorest"
	"github.com/sirupsen/logrus"

	scanerrors "menu-scan/pkg/errors"
	"menu-scan/pkg/logging"
	"menu-scan/pkg/models"
)

// Azure recognizes printed text with Azure Computer Vision.
type Azure struct {
	client   *computervision.BaseClient
	endpoint string
}

// NewAzure creates an Azure Computer Vision provider.
func NewAzure(endpoint, apiKey string) (*Azure, error) {
	if endpoint == "" || apiKey == "" {
		return nil, fmt.Errorf("azure vision endpoint and key are required: %w", scanerrors.ErrProviderUnavailable)
	}

	client := computervision.New(endpoint)
	client.Authorizer = autorest.NewCognitiveServicesAuthorizer(apiKey)

	return &Azure{
		client:   &client,
		endpoint: endpoint,
	}, nil
}

func (a *Azure) Name() string { return "azure" }

// Recognize runs printed-text OCR on the image.
func (a *Azure) Recognize(ctx context.Context, image []byte, languages []string) (*Result, error) {
	reader := io.NopCloser(bytes.NewReader(image))

	result, err := a.client.RecognizePrintedTextInStream(ctx, true, reader, azureLanguage(languages))
	if err != nil {
		return nil, fmt.Errorf("failed to extract text: %w", err)
	}

	tokens, fullText := tokensFromOCRResult(result)
	logging.Ctx(ctx, log).WithFields(logrus.Fields{
		"provider": a.Name(),
		"tokens":   len(tokens),
	}).Debug("Azure OCR finished")

	return &Result{Tokens: tokens, FullText: fullText, Provider: a.Name()}, nil
}

// azureLanguage picks the OCR language. Printed-text OCR takes a single
// language and has no Thai model, so anything but one supported hint falls
// back to auto-detection.
func azureLanguage(languages []string) computervision.OcrLanguages {
	if len(languages) != 1 {
		return computervision.OcrLanguagesUnk
	}
	want := computervision.OcrLanguages(languages[0])
	for _, l := range computervision.PossibleOcrLanguagesValues() {
		if l == want {
			return l
		}
	}
	return computervision.OcrLanguagesUnk
}

// tokensFromOCRResult turns every recognized word into a token. The full
// text is rebuilt line by line with words separated by spaces.
func tokensFromOCRResult(result computervision.OcrResult) ([]models.Token, string) {
	var tokens []models.Token
	var full strings.Builder

	if result.Regions == nil {
		return nil, ""
	}
	for _, region := range *result.Regions {
		if region.Lines == nil {
			continue
		}
		for _, line := range *region.Lines {
			if line.Words == nil {
				continue
			}
			var lineText []string
			for _, word := range *line.Words {
				if word.Text == nil {
					continue
				}
				lineText = append(lineText, *word.Text)
				box, ok := parseBoundingBox(word.BoundingBox)
				if !ok {
					continue
				}
				tokens = append(tokens, models.NewToken(*word.Text, box))
			}
			if len(lineText) > 0 {
				if full.Len() > 0 {
					full.WriteString("\n")
				}
				full.WriteString(strings.Join(lineText, " "))
			}
		}
	}
	return tokens, full.String()
}

// parseBoundingBox reads Azure's "x,y,width,height" box string.
func parseBoundingBox(raw *string) (models.BBox, bool) {
	if raw == nil {
		return models.BBox{}, false
	}
	parts := strings.Split(*raw, ",")
	if len(parts) < 4 {
		return models.BBox{}, false
	}
	var vals [4]float64
	for i := 0; i < 4; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil {
			return models.BBox{}, false
		}
		vals[i] = v
	}
	return models.BBox{
		XMin: vals[0],
		XMax: vals[0] + vals[2],
		YMin: vals[1],
		YMax: vals[1] + vals[3],
	}, true
}

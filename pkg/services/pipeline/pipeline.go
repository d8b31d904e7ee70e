// Package pipeline runs a menu photo through deskew, OCR, line reconstruction,
// chunked structuring and the optional translation, enrichment and storage
// steps.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"menu-scan/pkg/cache"
	"menu-scan/pkg/diagnostics"
	scanerrors "menu-scan/pkg/errors"
	"menu-scan/pkg/logging"
	"menu-scan/pkg/models"
	"menu-scan/pkg/services/chunker"
	"menu-scan/pkg/services/enrich"
	"menu-scan/pkg/services/layout"
	"menu-scan/pkg/services/ocr"
	"menu-scan/pkg/services/retry"
	"menu-scan/pkg/services/translation"
)

var log = logging.For("pipeline")

// previewSize bounds the longest side of the diagnostics preview.
const previewSize = 1024

// Deskewer corrects image rotation.
type Deskewer interface {
	Deskew(ctx context.Context, data []byte) (models.DeskewResult, error)
}

// Store persists scan results.
type Store interface {
	SaveScan(ctx context.Context, rec *models.ScanRecord) error
}

// Options select the steps of one request.
type Options struct {
	Deskew         bool
	UseBoundingBox bool
	Translate      bool
	TargetLang     string
}

// DefaultOptions deskews and reconstructs lines from token boxes.
func DefaultOptions() Options {
	return Options{Deskew: true, UseBoundingBox: true, TargetLang: translation.DefaultTarget}
}

// DetectResult is the outcome of deskew, OCR and line reconstruction.
type DetectResult struct {
	RequestID     string         `json:"requestId"`
	DeskewAngle   float64        `json:"deskewAngle"`
	DeskewApplied bool           `json:"deskewApplied"`
	Provider      string         `json:"provider"`
	Cached        bool           `json:"cached"`
	Text          string         `json:"text"`
	FullText      string         `json:"fullText"`
	Lines         []string       `json:"lines"`
	Tokens        []models.Token `json:"tokens"`
	NoContent     bool           `json:"noContent"`
}

// StructureResult is the merged outcome of structuring one text chunk by
// chunk. Failed chunks are listed, never escalated.
type StructureResult struct {
	Items        []models.MenuItem `json:"items"`
	ChunkCount   int               `json:"chunkCount"`
	FailedChunks []int             `json:"failedChunks"`
	Warnings     []string          `json:"warnings,omitempty"`
}

// ScanResult is the outcome of the whole pipeline.
type ScanResult struct {
	DetectResult
	StructureResult
	Translated []models.TranslatedItem `json:"translated,omitempty"`
	Enriched   []models.EnrichedItem   `json:"enriched,omitempty"`
}

// Service wires the processing steps together.
type Service struct {
	deskewer   Deskewer
	provider   ocr.Provider
	structurer chunker.Structurer

	cache      cache.TokenCache
	layout     *layout.Reconstructor
	planner    *chunker.Planner
	merger     *chunker.Merger
	translator *translation.Translator
	matcher    *enrich.Matcher
	store      Store

	languages       []string
	ocrPolicy       retry.Policy
	requestTimeout  time.Duration
	providerTimeout time.Duration
	diagRoot       string
	diagKeep       bool
}

// Option configures a Service.
type Option func(*Service)

// WithCache sets the OCR token cache.
func WithCache(c cache.TokenCache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithLayout sets the line reconstructor.
func WithLayout(r *layout.Reconstructor) Option {
	return func(s *Service) {
		if r != nil {
			s.layout = r
		}
	}
}

// WithChunking sets the chunk planner and merger.
func WithChunking(p *chunker.Planner, m *chunker.Merger) Option {
	return func(s *Service) {
		if p != nil {
			s.planner = p
		}
		if m != nil {
			s.merger = m
		}
	}
}

// WithTranslator enables translation of item names.
func WithTranslator(t *translation.Translator) Option {
	return func(s *Service) { s.translator = t }
}

// WithMatcher enables dish catalog enrichment.
func WithMatcher(m *enrich.Matcher) Option {
	return func(s *Service) { s.matcher = m }
}

// WithStore enables persistence of scan results.
func WithStore(st Store) Option {
	return func(s *Service) { s.store = st }
}

// WithLanguages sets the OCR language hints.
func WithLanguages(langs []string) Option {
	return func(s *Service) {
		if len(langs) > 0 {
			s.languages = langs
		}
	}
}

// WithOCRRetry sets the retry policy for OCR calls.
func WithOCRRetry(p retry.Policy) Option {
	return func(s *Service) { s.ocrPolicy = p }
}

// WithRequestTimeout bounds a whole request. Zero disables the bound.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.requestTimeout = d
		}
	}
}

// WithProviderTimeout bounds each OCR attempt and each translation call.
// Zero leaves only the request deadline.
func WithProviderTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.providerTimeout = d
		}
	}
}

// WithDiagnostics stores per-request artifacts under root.
func WithDiagnostics(root string, keep bool) Option {
	return func(s *Service) {
		s.diagRoot = root
		s.diagKeep = keep
	}
}

// New creates a Service. The deskewer, OCR provider and structurer are required.
func New(d Deskewer, p ocr.Provider, st chunker.Structurer, opts ...Option) *Service {
	s := &Service{
		deskewer:   d,
		provider:   p,
		structurer: st,
		cache:      cache.Noop{},
		layout:     layout.New(),
		planner:    chunker.NewPlanner(),
		merger:     chunker.NewMerger(),
		languages:  []string{"th", "en"},
		ocrPolicy:  retry.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Detect deskews the image, runs OCR and rebuilds the text lines.
func (s *Service) Detect(ctx context.Context, img []byte, opts Options) (*DetectResult, error) {
	ctx, requestID, cancel := s.begin(ctx)
	defer cancel()

	ws := s.openWorkspace(ctx, requestID)
	defer closeWorkspace(ctx, ws)

	return s.detect(ctx, requestID, img, opts, ws)
}

// Process runs the whole pipeline on one image.
func (s *Service) Process(ctx context.Context, img []byte, opts Options) (*ScanResult, error) {
	ctx, requestID, cancel := s.begin(ctx)
	defer cancel()

	ws := s.openWorkspace(ctx, requestID)
	defer closeWorkspace(ctx, ws)

	logger := logging.Ctx(ctx, log)
	start := time.Now()

	detected, err := s.detect(ctx, requestID, img, opts, ws)
	if err != nil {
		return nil, err
	}

	structured, err := s.structure(ctx, requestID, detected.Text)
	if err != nil {
		return nil, err
	}
	result := &ScanResult{DetectResult: *detected, StructureResult: *structured}

	var english []string
	if opts.Translate && s.translator != nil && len(result.Items) > 0 {
		tctx, tcancel := s.providerContext(ctx)
		translated, err := s.translator.TranslateItems(tctx, result.Items, opts.TargetLang)
		tcancel()
		if err != nil {
			terr := scanerrors.NewTranslationError(requestID, err)
			logger.WithError(terr).Warn("Continuing without translation")
			result.Warnings = append(result.Warnings, terr.Error())
		} else {
			result.Translated = translated
			english = make([]string, len(translated))
			for i, t := range translated {
				english[i] = t.Name
			}
		}
	}

	if s.matcher != nil && len(result.Items) > 0 {
		result.Enriched = s.matcher.Enrich(result.Items, english)
	}

	if s.store != nil {
		if err := s.persist(ctx, result); err != nil {
			serr := scanerrors.NewStorageFailedError(requestID, err)
			logger.WithError(serr).Warn("Scan result not stored")
			result.Warnings = append(result.Warnings, serr.Error())
		}
	}

	if b, err := json.MarshalIndent(result.Items, "", "  "); err == nil {
		if err := ws.SaveBytes("items.json", b); err != nil {
			logger.WithError(err).Warn("Failed to save items")
		}
	}

	logger.WithFields(logrus.Fields{
		"chunks":   result.ChunkCount,
		"failed":   len(result.FailedChunks),
		"items":    len(result.Items),
		"duration": time.Since(start).String(),
	}).Info("Scan processed")

	return result, nil
}

// Structure plans text into chunks, structures each one and merges the
// items in chunk order. Chunks that fail are skipped and reported.
func (s *Service) Structure(ctx context.Context, text string) (*StructureResult, error) {
	ctx, requestID, cancel := s.begin(ctx)
	defer cancel()
	return s.structure(ctx, requestID, text)
}

func (s *Service) structure(ctx context.Context, requestID, text string) (*StructureResult, error) {
	chunks := s.planner.Plan(text)
	merged, err := s.merger.Merge(ctx, chunks, s.structurer)
	if err != nil {
		return nil, s.contextError(ctx, requestID, err)
	}

	result := &StructureResult{
		Items:        merged.Items,
		ChunkCount:   merged.ChunkCount,
		FailedChunks: merged.FailedIndexes(),
	}
	if result.Items == nil {
		result.Items = []models.MenuItem{}
	}
	for _, f := range merged.Failed {
		result.Warnings = append(result.Warnings, scanerrors.NewStructuringError(requestID, f.Index, f.Err).Error())
	}
	return result, nil
}

func (s *Service) providerContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.providerTimeout > 0 {
		return context.WithTimeout(ctx, s.providerTimeout)
	}
	return ctx, func() {}
}

func (s *Service) begin(ctx context.Context) (context.Context, string, context.CancelFunc) {
	requestID := logging.RequestID(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
		ctx = logging.WithRequestID(ctx, requestID)
	}
	if s.requestTimeout > 0 {
		ctx, cancel := context.WithTimeout(ctx, s.requestTimeout)
		return ctx, requestID, cancel
	}
	return ctx, requestID, func() {}
}

func (s *Service) openWorkspace(ctx context.Context, requestID string) *diagnostics.Workspace {
	ws, err := diagnostics.Open(s.diagRoot, requestID, s.diagKeep)
	if err != nil {
		logging.Ctx(ctx, log).WithError(err).Warn("Diagnostics disabled for this request")
		return nil
	}
	return ws
}

func closeWorkspace(ctx context.Context, ws *diagnostics.Workspace) {
	if err := ws.Close(); err != nil {
		logging.Ctx(ctx, log).WithError(err).Warn("Failed to clean up diagnostics")
	}
}

func (s *Service) detect(ctx context.Context, requestID string, img []byte, opts Options, ws *diagnostics.Workspace) (*DetectResult, error) {
	logger := logging.Ctx(ctx, log)

	_, format, err := image.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		return nil, scanerrors.NewDecodeError(requestID, errors.Join(scanerrors.ErrInvalidImage, err))
	}
	if err := ws.SaveBytes("original."+format, img); err != nil {
		logger.WithError(err).Warn("Failed to save original image")
	}

	result := &DetectResult{RequestID: requestID}
	corrected := img

	if opts.Deskew {
		ds, err := s.deskewer.Deskew(ctx, img)
		if err != nil {
			if ctx.Err() != nil {
				return nil, s.contextError(ctx, requestID, err)
			}
			return nil, scanerrors.NewDecodeError(requestID, err)
		}
		corrected = ds.CorrectedImage
		result.DeskewAngle = ds.AngleDegrees
		result.DeskewApplied = ds.Applied
		if ds.Applied {
			if err := ws.SaveBytes("deskewed."+format, ds.CorrectedImage); err != nil {
				logger.WithError(err).Warn("Failed to save deskewed image")
			}
		}
	}

	ocrResult, cached, err := s.recognize(ctx, corrected)
	if err != nil {
		if ctx.Err() != nil {
			return nil, s.contextError(ctx, requestID, err)
		}
		return nil, scanerrors.NewOCRFailedError(requestID, s.provider.Name(), err)
	}
	result.Provider = ocrResult.Provider
	result.Cached = cached
	result.FullText = ocrResult.FullText
	result.Tokens = ocrResult.Tokens
	if result.Tokens == nil {
		result.Tokens = []models.Token{}
	}

	doc := s.layout.Reconstruct(ocrResult.Tokens)
	result.Lines = doc.Texts()
	if doc.IsEmpty() {
		result.NoContent = true
		logger.WithError(scanerrors.ErrNoContent).Info("No tokens to reconstruct")
	}
	if opts.UseBoundingBox {
		result.Text = doc.Render()
	} else {
		result.Text = ocrResult.FullText
	}

	if err := ws.SaveOverlay("overlay.png", corrected, doc); err != nil {
		logger.WithError(err).Warn("Failed to save overlay")
	}
	if ws.Enabled() {
		if preview, err := ocr.Preview(corrected, previewSize); err != nil {
			logger.WithError(err).Warn("Failed to render preview")
		} else if err := ws.SaveImage("preview.jpg", preview); err != nil {
			logger.WithError(err).Warn("Failed to save preview")
		}
	}
	if err := ws.SaveText("text.txt", result.Text); err != nil {
		logger.WithError(err).Warn("Failed to save text")
	}

	logger.WithFields(logrus.Fields{
		"provider":       result.Provider,
		"cached":         cached,
		"tokens":         len(result.Tokens),
		"lines":          len(result.Lines),
		"deskew_angle":   result.DeskewAngle,
		"deskew_applied": result.DeskewApplied,
	}).Info("Text detected")

	return result, nil
}

func (s *Service) recognize(ctx context.Context, img []byte) (*ocr.Result, bool, error) {
	key := cache.Key(img, s.provider.Name(), s.languages)
	if res, ok := s.cache.Get(ctx, key); ok {
		return res, true, nil
	}

	res, err := retry.Do(ctx, s.ocrPolicy, "ocr", func(ctx context.Context) (*ocr.Result, error) {
		callCtx, cancel := s.providerContext(ctx)
		defer cancel()
		return s.provider.Recognize(callCtx, img, s.languages)
	})
	if err != nil {
		return nil, false, err
	}
	if res.Provider == "" {
		res.Provider = s.provider.Name()
	}
	s.cache.Set(ctx, key, res)
	return res, false, nil
}

func (s *Service) persist(ctx context.Context, result *ScanResult) error {
	items, err := json.Marshal(result.Items)
	if err != nil {
		return err
	}
	return s.store.SaveScan(ctx, &models.ScanRecord{
		RequestID:     result.RequestID,
		DeskewAngle:   result.DeskewAngle,
		DeskewApplied: result.DeskewApplied,
		OCRProvider:   result.Provider,
		Text:          result.Text,
		ItemsJSON:     string(items),
		ChunkCount:    result.ChunkCount,
		FailedChunks:  len(result.FailedChunks),
	})
}

func (s *Service) contextError(ctx context.Context, requestID string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return scanerrors.NewProcessingTimeoutError(requestID, s.requestTimeout, err)
	}
	return err
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	scanerrors "menu-scan/pkg/errors"
	"menu-scan/pkg/logging"
	"menu-scan/pkg/models"
	"menu-scan/pkg/services/pipeline"
	"menu-scan/pkg/services/translation"
)

// DefaultMaxUpload bounds the image upload size.
const DefaultMaxUpload = 20 << 20

// Scanner runs the image pipeline.
type Scanner interface {
	Detect(ctx context.Context, image []byte, opts pipeline.Options) (*pipeline.DetectResult, error)
	Process(ctx context.Context, image []byte, opts pipeline.Options) (*pipeline.ScanResult, error)
}

// Structurer turns free text into menu items chunk by chunk.
type Structurer interface {
	Structure(ctx context.Context, text string) (*pipeline.StructureResult, error)
}

// ScanReader reads persisted scans.
type ScanReader interface {
	GetScan(ctx context.Context, requestID string) (*models.ScanRecord, error)
	ListScans(ctx context.Context, limit, offset int) ([]models.ScanRecord, error)
}

// Handler serves the HTTP routes. Any collaborator may be nil, in which case
// its routes answer 503.
type Handler struct {
	scanner    Scanner
	structurer Structurer
	translator *translation.Translator
	scans      ScanReader
	timeout    time.Duration
	maxUpload  int64
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithStructurer enables /api/parse.
func WithStructurer(s Structurer) HandlerOption {
	return func(h *Handler) { h.structurer = s }
}

// WithTranslator enables the translation routes.
func WithTranslator(t *translation.Translator) HandlerOption {
	return func(h *Handler) { h.translator = t }
}

// WithScanReader enables listing and fetching stored scans.
func WithScanReader(r ScanReader) HandlerOption {
	return func(h *Handler) { h.scans = r }
}

// WithTimeout bounds the parse and translate routes. Zero disables the bound.
func WithTimeout(d time.Duration) HandlerOption {
	return func(h *Handler) { h.timeout = d }
}

// WithMaxUpload sets the largest accepted image in bytes.
func WithMaxUpload(n int64) HandlerOption {
	return func(h *Handler) {
		if n > 0 {
			h.maxUpload = n
		}
	}
}

// NewHandler creates a Handler around the scan pipeline.
func NewHandler(scanner Scanner, opts ...HandlerOption) *Handler {
	h := &Handler{scanner: scanner, maxUpload: DefaultMaxUpload}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "Menu scan API is running"})
}

func (h *Handler) detect(c *gin.Context) {
	if h.scanner == nil {
		respondError(c, scanerrors.ErrProviderUnavailable)
		return
	}
	img, ok := h.readImage(c)
	if !ok {
		return
	}

	res, err := h.scanner.Detect(c.Request.Context(), img, scanOptions(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) createScan(c *gin.Context) {
	if h.scanner == nil {
		respondError(c, scanerrors.ErrProviderUnavailable)
		return
	}
	img, ok := h.readImage(c)
	if !ok {
		return
	}

	res, err := h.scanner.Process(c.Request.Context(), img, scanOptions(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type parseRequest struct {
	Text *string `json:"text"`
}

func (h *Handler) parse(c *gin.Context) {
	if h.structurer == nil {
		respondError(c, scanerrors.ErrProviderUnavailable)
		return
	}
	var req parseRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Text == nil {
		badRequest(c, "No text provided")
		return
	}

	ctx, cancel := h.withTimeout(c.Request.Context())
	defer cancel()

	res, err := h.structurer.Structure(ctx, *req.Text)
	if err != nil {
		if _, coded := scanerrors.CodeOf(err); !coded && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = scanerrors.NewProcessingTimeoutError(logging.RequestID(ctx), h.timeout, err)
		}
		respondError(c, err)
		return
	}
	body := gin.H{
		"result":       res.Items,
		"chunkCount":   res.ChunkCount,
		"failedChunks": res.FailedChunks,
	}
	if len(res.Warnings) > 0 {
		body["warnings"] = res.Warnings
	}
	c.JSON(http.StatusOK, body)
}

type translateRequest struct {
	Text       *string `json:"text"`
	TargetLang string  `json:"target_lang"`
}

func (h *Handler) translate(c *gin.Context) {
	if h.translator == nil {
		respondError(c, scanerrors.ErrProviderUnavailable)
		return
	}
	var req translateRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Text == nil {
		badRequest(c, "No text provided")
		return
	}

	ctx, cancel := h.withTimeout(c.Request.Context())
	defer cancel()

	out, err := h.translator.TranslateText(ctx, *req.Text, req.TargetLang)
	if err != nil {
		respondError(c, scanerrors.NewTranslationError(logging.RequestID(ctx), err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"translated_text": out})
}

type translateItemsRequest struct {
	Items      []models.MenuItem `json:"items"`
	TargetLang string            `json:"target_lang"`
}

func (h *Handler) translateItems(c *gin.Context) {
	if h.translator == nil {
		respondError(c, scanerrors.ErrProviderUnavailable)
		return
	}
	var req translateItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Items == nil {
		badRequest(c, "No items provided")
		return
	}

	ctx, cancel := h.withTimeout(c.Request.Context())
	defer cancel()

	out, err := h.translator.TranslateItems(ctx, req.Items, req.TargetLang)
	if err != nil {
		respondError(c, scanerrors.NewTranslationError(logging.RequestID(ctx), err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": out})
}

type scanView struct {
	ID            uint            `json:"id"`
	RequestID     string          `json:"requestId"`
	CreatedAt     time.Time       `json:"createdAt"`
	DeskewAngle   float64         `json:"deskewAngle"`
	DeskewApplied bool            `json:"deskewApplied"`
	Provider      string          `json:"provider"`
	Text          string          `json:"text"`
	Items         json.RawMessage `json:"items"`
	ChunkCount    int             `json:"chunkCount"`
	FailedChunks  int             `json:"failedChunks"`
}

func newScanView(rec models.ScanRecord) scanView {
	items := json.RawMessage(rec.ItemsJSON)
	if !json.Valid(items) {
		items = json.RawMessage("[]")
	}
	return scanView{
		ID:            rec.ID,
		RequestID:     rec.RequestID,
		CreatedAt:     rec.CreatedAt,
		DeskewAngle:   rec.DeskewAngle,
		DeskewApplied: rec.DeskewApplied,
		Provider:      rec.OCRProvider,
		Text:          rec.Text,
		Items:         items,
		ChunkCount:    rec.ChunkCount,
		FailedChunks:  rec.FailedChunks,
	}
}

func (h *Handler) listScans(c *gin.Context) {
	if h.scans == nil {
		respondError(c, fmt.Errorf("scan storage: %w", scanerrors.ErrProviderUnavailable))
		return
	}
	limit := queryInt(c, "limit", 20)
	offset := queryInt(c, "offset", 0)

	recs, err := h.scans.ListScans(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	views := make([]scanView, len(recs))
	for i, r := range recs {
		views[i] = newScanView(r)
	}
	c.JSON(http.StatusOK, gin.H{"scans": views})
}

func (h *Handler) getScan(c *gin.Context) {
	if h.scans == nil {
		respondError(c, fmt.Errorf("scan storage: %w", scanerrors.ErrProviderUnavailable))
		return
	}
	rec, err := h.scans.GetScan(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newScanView(*rec))
}

// readImage reads the multipart "image" field. It writes the error response
// itself and reports false when there is no usable upload.
func (h *Handler) readImage(c *gin.Context) ([]byte, bool) {
	fh, err := c.FormFile("image")
	if err != nil {
		badRequest(c, "No image provided")
		return nil, false
	}
	if fh.Filename == "" || fh.Size == 0 {
		badRequest(c, "No image selected")
		return nil, false
	}
	if fh.Size > h.maxUpload {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Image too large"})
		return nil, false
	}

	f, err := fh.Open()
	if err != nil {
		respondError(c, fmt.Errorf("failed to open upload: %w", err))
		return nil, false
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxUpload))
	if err != nil {
		respondError(c, fmt.Errorf("failed to read upload: %w", err))
		return nil, false
	}
	return data, true
}

func scanOptions(c *gin.Context) pipeline.Options {
	opts := pipeline.DefaultOptions()
	opts.UseBoundingBox = formBool(c, "use_bounding_box", opts.UseBoundingBox)
	opts.Deskew = formBool(c, "deskew", opts.Deskew)
	opts.Translate = formBool(c, "translate", opts.Translate)
	if lang := strings.TrimSpace(c.PostForm("target_lang")); lang != "" {
		opts.TargetLang = lang
	}
	return opts
}

func formBool(c *gin.Context, key string, def bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(c.PostForm(key)))
	if err != nil {
		return def
	}
	return v
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}

func (h *Handler) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.timeout > 0 {
		return context.WithTimeout(ctx, h.timeout)
	}
	return context.WithCancel(ctx)
}

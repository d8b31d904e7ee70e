package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"menu-scan/pkg/api"
	"menu-scan/pkg/cache"
	"menu-scan/pkg/config"
	"menu-scan/pkg/services/chunker"
	"menu-scan/pkg/services/deskew"
	"menu-scan/pkg/services/enrich"
	"menu-scan/pkg/services/layout"
	"menu-scan/pkg/services/ocr"
	"menu-scan/pkg/services/ocr/tesseract"
	"menu-scan/pkg/services/pipeline"
	"menu-scan/pkg/services/retry"
	"menu-scan/pkg/services/structuring"
	"menu-scan/pkg/services/translation"
	"menu-scan/pkg/storage"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.close()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(app.handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

type app struct {
	handler *api.Handler
	closers []func() error
}

func (a *app) close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			log.WithError(err).Warn("Failed to release resource")
		}
	}
}

// buildApp wires every collaborator from configuration. Redis and Postgres
// are optional; translation is enabled when its key is set.
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}
	policy := retry.DefaultPolicy().WithMaxRetries(cfg.ProviderMaxRetries)

	provider, err := newOCRProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}

	model, err := structuring.NewModel(structuring.ModelConfig{
		Provider:        cfg.LLMProvider,
		Model:           cfg.LLMModel,
		OpenAIAPIKey:    cfg.OpenAIAPIKey,
		OpenAIBaseURL:   cfg.OpenAIBaseURL,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
		MistralAPIKey:   cfg.MistralAPIKey,
		OllamaHost:      cfg.OllamaHost,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	structurer := structuring.NewLLM(model, cfg.LLMProvider, cfg.LLMModel, structuring.WithRetryPolicy(policy))

	opts := []pipeline.Option{
		pipeline.WithLanguages(cfg.OCRLanguages),
		pipeline.WithOCRRetry(policy),
		pipeline.WithRequestTimeout(cfg.RequestTimeout),
		pipeline.WithProviderTimeout(cfg.ProviderTimeout),
		pipeline.WithDiagnostics(cfg.DiagnosticsDir, cfg.DiagnosticsKeep),
		pipeline.WithLayout(layout.New(
			layout.WithTolerance(cfg.LineTolerance),
			layout.WithClustering(layout.Clustering(cfg.LineClustering)),
		)),
		pipeline.WithChunking(
			chunker.NewPlanner(chunker.WithMaxLength(cfg.ChunkMaxLength)),
			chunker.NewMerger(
				chunker.WithConcurrency(cfg.ChunkConcurrency),
				chunker.WithCallTimeout(cfg.ProviderTimeout),
			),
		),
	}
	handlerOpts := []api.HandlerOption{
		api.WithTimeout(cfg.RequestTimeout),
	}

	if cfg.GoogleTranslateAPIKey != "" {
		backend, err := translation.NewGoogle(ctx, cfg.GoogleTranslateAPIKey)
		if err != nil {
			return nil, err
		}
		translator := translation.New(backend, policy)
		opts = append(opts, pipeline.WithTranslator(translator))
		handlerOpts = append(handlerOpts, api.WithTranslator(translator))
	} else {
		log.Info("GOOGLE_TRANSLATE_API_KEY not set, translation disabled")
	}

	if cfg.RedisURL != "" {
		rc, err := cache.NewRedis(ctx, cfg.RedisURL, cache.DefaultTTL)
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, OCR cache disabled")
		} else {
			opts = append(opts, pipeline.WithCache(rc))
			a.closers = append(a.closers, rc.Close)
		}
	}

	if cfg.DatabaseURL != "" {
		repo, err := storage.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, repo.Close)
		if err := repo.Migrate(); err != nil {
			a.close()
			return nil, err
		}
		dishes, err := repo.ListDishes(ctx)
		if err != nil {
			a.close()
			return nil, err
		}
		opts = append(opts, pipeline.WithStore(repo), pipeline.WithMatcher(enrich.NewMatcher(dishes)))
		handlerOpts = append(handlerOpts, api.WithScanReader(repo))
		log.WithField("dishes", len(dishes)).Info("Database connected")
	}

	engine := deskew.New(
		deskew.WithMinGain(cfg.DeskewMinGain),
		deskew.WithAngleRange(cfg.DeskewMaxAngle, cfg.DeskewStep),
	)
	svc := pipeline.New(engine, provider, structurer, opts...)
	a.handler = api.NewHandler(svc, append(handlerOpts, api.WithStructurer(svc))...)

	log.WithFields(logrus.Fields{
		"ocr_provider": provider.Name(),
		"llm_provider": cfg.LLMProvider,
		"llm_model":    cfg.LLMModel,
	}).Info("Services initialized")

	return a, nil
}

func newOCRProvider(ctx context.Context, cfg *config.Config) (ocr.Provider, error) {
	var (
		p   ocr.Provider
		err error
	)
	switch cfg.OCRProvider {
	case "google":
		p, err = ocr.NewGoogleVision(ctx, cfg.GoogleVisionAPIKey)
	case "azure":
		p, err = ocr.NewAzure(cfg.AzureEndpoint, cfg.AzureKey)
	case "tesseract":
		p = tesseract.New()
	default:
		err = fmt.Errorf("unsupported OCR provider %q", cfg.OCRProvider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create OCR provider: %w", err)
	}
	if cfg.OCREnhance {
		p = ocr.WithEnhancement(p)
	}
	return p, nil
}

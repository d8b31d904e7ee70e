package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds service configuration loaded from the environment.
type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	// OCR
	OCRProvider        string
	OCRLanguages       []string
	OCREnhance         bool
	GoogleVisionAPIKey string
	AzureEndpoint      string
	AzureKey           string

	// Structuring LLM
	LLMProvider     string
	LLMModel        string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	AnthropicAPIKey string
	MistralAPIKey   string
	OllamaHost      string

	// Translation
	GoogleTranslateAPIKey string

	// Optional backing services
	DatabaseURL string
	RedisURL    string

	// Deskew
	DeskewMinGain  float64
	DeskewMaxAngle float64
	DeskewStep     float64

	// Line reconstruction
	LineTolerance  float64
	LineClustering string

	// Chunking
	ChunkMaxLength   int
	ChunkConcurrency int

	// Timeouts and retries
	RequestTimeout     time.Duration
	ProviderTimeout    time.Duration
	ProviderMaxRetries int

	// Diagnostics
	DiagnosticsDir  string
	DiagnosticsKeep bool
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:                  getEnvOrDefault("PORT", "8080"),
		LogLevel:              getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:             getEnvOrDefault("LOG_FORMAT", "text"),
		OCRProvider:           strings.ToLower(getEnvOrDefault("OCR_PROVIDER", "google")),
		OCRLanguages:          getEnvAsListOrDefault("OCR_LANGUAGES", []string{"th", "en"}),
		OCREnhance:            getEnvAsBoolOrDefault("OCR_ENHANCE", false),
		GoogleVisionAPIKey:    os.Getenv("GOOGLE_VISION_API_KEY"),
		AzureEndpoint:         os.Getenv("AZURE_VISION_ENDPOINT"),
		AzureKey:              os.Getenv("AZURE_VISION_KEY"),
		LLMProvider:           strings.ToLower(getEnvOrDefault("LLM_PROVIDER", "openai")),
		LLMModel:              getEnvOrDefault("LLM_MODEL", "gpt-4o-mini"),
		OpenAIAPIKey:          os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:         os.Getenv("OPENAI_BASE_URL"),
		AnthropicAPIKey:       os.Getenv("ANTHROPIC_API_KEY"),
		MistralAPIKey:         os.Getenv("MISTRAL_API_KEY"),
		OllamaHost:            getEnvOrDefault("OLLAMA_HOST", "http://127.0.0.1:11434"),
		GoogleTranslateAPIKey: os.Getenv("GOOGLE_TRANSLATE_API_KEY"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		RedisURL:              os.Getenv("REDIS_URL"),
		DeskewMinGain:         getEnvAsFloatOrDefault("DESKEW_MIN_GAIN", 1.03),
		DeskewMaxAngle:        getEnvAsFloatOrDefault("DESKEW_MAX_ANGLE", 10),
		DeskewStep:            getEnvAsFloatOrDefault("DESKEW_STEP", 0.5),
		LineTolerance:         getEnvAsFloatOrDefault("LINE_TOLERANCE", 8),
		LineClustering:        strings.ToLower(getEnvOrDefault("LINE_CLUSTERING", "first")),
		ChunkMaxLength:        getEnvAsIntOrDefault("CHUNK_MAX_LENGTH", 1500),
		ChunkConcurrency:      getEnvAsIntOrDefault("CHUNK_CONCURRENCY", 1),
		RequestTimeout:        getEnvAsDurationOrDefault("REQUEST_TIMEOUT", 120*time.Second),
		ProviderTimeout:       getEnvAsDurationOrDefault("PROVIDER_TIMEOUT", 60*time.Second),
		ProviderMaxRetries:    getEnvAsIntOrDefault("PROVIDER_MAX_RETRIES", 2),
		DiagnosticsDir:        os.Getenv("DIAGNOSTICS_DIR"),
		DiagnosticsKeep:       getEnvAsBoolOrDefault("DIAGNOSTICS_KEEP", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks value ranges and provider names.
func (c *Config) Validate() error {
	switch c.OCRProvider {
	case "google", "azure", "tesseract":
	default:
		return fmt.Errorf("OCR_PROVIDER must be one of google, azure, tesseract, got %q", c.OCRProvider)
	}

	switch c.LLMProvider {
	case "openai", "anthropic", "ollama", "mistral":
	default:
		return fmt.Errorf("LLM_PROVIDER must be one of openai, anthropic, ollama, mistral, got %q", c.LLMProvider)
	}

	switch c.LineClustering {
	case "first", "centroid":
	default:
		return fmt.Errorf("LINE_CLUSTERING must be first or centroid, got %q", c.LineClustering)
	}

	if c.DeskewMinGain < 1 {
		return fmt.Errorf("DESKEW_MIN_GAIN must be >= 1, got %v", c.DeskewMinGain)
	}

	if c.DeskewMaxAngle <= 0 || c.DeskewMaxAngle > 45 {
		return fmt.Errorf("DESKEW_MAX_ANGLE must be in (0, 45], got %v", c.DeskewMaxAngle)
	}

	if c.DeskewStep <= 0 || c.DeskewStep > c.DeskewMaxAngle {
		return fmt.Errorf("DESKEW_STEP must be in (0, DESKEW_MAX_ANGLE], got %v", c.DeskewStep)
	}

	if c.LineTolerance <= 0 {
		return fmt.Errorf("LINE_TOLERANCE must be positive, got %v", c.LineTolerance)
	}

	if c.ChunkMaxLength < 1 {
		return fmt.Errorf("CHUNK_MAX_LENGTH must be positive, got %d", c.ChunkMaxLength)
	}

	if c.ChunkConcurrency < 1 || c.ChunkConcurrency > 32 {
		return fmt.Errorf("CHUNK_CONCURRENCY must be between 1 and 32, got %d", c.ChunkConcurrency)
	}

	if c.ProviderMaxRetries < 0 || c.ProviderMaxRetries > 10 {
		return fmt.Errorf("PROVIDER_MAX_RETRIES must be between 0 and 10, got %d", c.ProviderMaxRetries)
	}

	if c.RequestTimeout <= 0 || c.ProviderTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT and PROVIDER_TIMEOUT must be positive")
	}

	return nil
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsDurationOrDefault accepts Go durations ("90s") or plain seconds ("90").
func getEnvAsDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}

	return defaultValue
}

func getEnvAsListOrDefault(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

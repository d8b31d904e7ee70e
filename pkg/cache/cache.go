// Package cache keeps OCR results for identical images.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"menu-scan/pkg/logging"
	"menu-scan/pkg/services/ocr"
)

var log = logging.For("cache")

// DefaultTTL is how long a cached OCR result lives.
const DefaultTTL = 24 * time.Hour

const keyPrefix = "menu-scan:ocr:"

// TokenCache stores OCR results. Failures are logged and reported as misses.
type TokenCache interface {
	Get(ctx context.Context, key string) (*ocr.Result, bool)
	Set(ctx context.Context, key string, result *ocr.Result)
}

// Key identifies an OCR result by image content, provider and language hints.
func Key(image []byte, provider string, languages []string) string {
	h := sha256.New()
	h.Write(image)
	h.Write([]byte{0})
	h.Write([]byte(provider))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(languages, ",")))
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}

// Noop never stores anything.
type Noop struct{}

func (Noop) Get(context.Context, string) (*ocr.Result, bool) { return nil, false }
func (Noop) Set(context.Context, string, *ocr.Result)        {}

// Redis is a TokenCache backed by Redis.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects to the Redis URL and verifies the connection.
func NewRedis(ctx context.Context, url string, ttl time.Duration) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisFromClient(client, ttl), nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, ttl: ttl}
}

// Get returns the cached result for key.
func (r *Redis) Get(ctx context.Context, key string) (*ocr.Result, bool) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logging.Ctx(ctx, log).WithError(err).Warn("OCR cache read failed")
		}
		return nil, false
	}

	var result ocr.Result
	if err := json.Unmarshal(data, &result); err != nil {
		logging.Ctx(ctx, log).WithError(err).Warn("Discarding corrupt OCR cache entry")
		return nil, false
	}
	return &result, true
}

// Set stores result under key with the configured TTL.
func (r *Redis) Set(ctx context.Context, key string, result *ocr.Result) {
	if result == nil {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		logging.Ctx(ctx, log).WithError(err).Warn("OCR cache encode failed")
		return
	}
	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		logging.Ctx(ctx, log).WithFields(logrus.Fields{"error": err, "key": key}).Warn("OCR cache write failed")
	}
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

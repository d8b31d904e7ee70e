package logging

import (
	"context"

	"github.com/sirupsen/logrus"
)

type requestIDKey struct{}

var ctxRequestIDKey = &requestIDKey{}

// WithRequestID stores the request ID on ctx. An empty id leaves ctx unchanged.
func WithRequestID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxRequestIDKey, id)
}

// RequestID returns the request ID carried by ctx, if any.
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxRequestIDKey).(string)
	return id
}

// Ctx adds the request_id field from ctx to entry when present.
func Ctx(ctx context.Context, entry *logrus.Entry) *logrus.Entry {
	if id := RequestID(ctx); id != "" {
		return entry.WithField("request_id", id)
	}
	return entry
}

package logger

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ContextKey string

const RequestIDKey ContextKey = "request_id"

// New builds the application logger. "development" selects a human readable
// console encoder; anything else gets the JSON production config.
func New(env string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if env == "development" {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	return config.Build()
}

// ContextWithRequestID stores the request id so downstream loggers can pick it up.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// RequestIDFromContext returns the request id stored by ContextWithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// WithContext adds context fields (request_id) to the logger
func WithContext(ctx context.Context, log *zap.Logger) *zap.Logger {
	if reqID := RequestIDFromContext(ctx); reqID != "" {
		return log.With(zap.String("request_id", reqID))
	}
	return log
}

// Package logger wraps zap with the application's defaults.
package logger

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ContextKey represents keys used in context for logging
type ContextKey string

// RequestIDKey is the key for the request id in context
const RequestIDKey ContextKey = "request_id"

// Config represents logger configuration
type Config struct {
	Level       string
	Environment string
}

var (
	mu     sync.RWMutex
	global *zap.Logger
)

// Initialize sets up the global logger
func Initialize(cfg Config) error {
	var zapConfig zap.Config
	if cfg.Environment == "production" {
		zapConfig = zap.NewProductionConfig()
		zapConfig.DisableStacktrace = true
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}
		zapConfig.Level = level
	}

	zapConfig.InitialFields = map[string]interface{}{
		"service": "moki-tracker",
	}

	zapLogger, err := zapConfig.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	mu.Lock()
	global = zapLogger
	mu.Unlock()
	zap.ReplaceGlobals(zapLogger)
	return nil
}

// Base returns the structured logger, falling back to a development logger
// when Initialize was never called (tests, CLI).
func Base() *zap.Logger {
	mu.RLock()
	l := global
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if global == nil {
		dev, err := zap.NewDevelopment()
		if err != nil {
			dev = zap.NewNop()
		}
		global = dev
	}
	return global
}

// L returns the sugared logger used for printf-style messages
func L() *zap.SugaredLogger {
	return Base().Sugar()
}

// FromContext returns a logger carrying the request id, if any
func FromContext(ctx context.Context) *zap.SugaredLogger {
	if ctx == nil {
		return L()
	}
	if id, ok := ctx.Value(RequestIDKey).(string); ok && id != "" {
		return Base().With(zap.String("request_id", id)).Sugar()
	}
	return L()
}

// ContextWithRequestID adds a request id to context
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// Sync flushes any buffered log entries
func Sync() {
	_ = Base().Sync()
}

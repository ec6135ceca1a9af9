// Package logger is the process-wide structured logger: JSON on stdout by
// default, or exported over OTLP when OpenTelemetry is enabled. Warnings and
// errors can be sampled; their counters are always incremented.
package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/liamcoop/marches/internal/metrics"
)

type Level = slog.Level

const (
	LevelTrace   = slog.Level(-8)
	LevelDebug   = slog.LevelDebug
	LevelInfo    = slog.LevelInfo
	LevelWarning = slog.LevelWarn
	LevelError   = slog.LevelError
	LevelFatal   = slog.Level(12)
)

// SlowRequestThreshold is the duration above which a request is logged as slow
const SlowRequestThreshold = 2 * time.Second

var (
	Logger *slog.Logger

	programLevel = new(slog.LevelVar)
	sampler      = &everyNth{}
	shutdownFunc func(context.Context) error // set while the OTLP exporter runs
)

func init() {
	level, err := ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		level = LevelInfo
	}
	programLevel.Set(level)

	// ERROR_SAMPLE_RATE=N keeps one warning or error out of N
	if rate, err := strconv.Atoi(os.Getenv("ERROR_SAMPLE_RATE")); err == nil {
		sampler.setRate(rate)
	}

	use(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: programLevel}))
}

// Options configures the process logger
type Options struct {
	Level       string
	OTELEnabled bool
	ServiceName string
	// ErrorSampleRate keeps one warning or error out of N; 0 leaves the
	// current rate unchanged
	ErrorSampleRate int
}

// Configure applies opts to the process logger. If the OTLP exporter cannot
// be created, logging stays on JSON and the error is returned.
func Configure(ctx context.Context, opts Options) error {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return err
	}
	programLevel.Set(level)

	if opts.ErrorSampleRate > 0 {
		sampler.setRate(opts.ErrorSampleRate)
	}

	if !opts.OTELEnabled {
		return nil
	}

	serviceName := opts.ServiceName
	if serviceName == "" {
		serviceName = "marches"
	}

	handler, shutdown, err := newOTELHandler(ctx, serviceName)
	if err != nil {
		return fmt.Errorf("OTEL logging unavailable, keeping JSON: %w", err)
	}
	shutdownFunc = shutdown
	use(handler)
	return nil
}

func use(h slog.Handler) {
	Logger = slog.New(h)
	slog.SetDefault(Logger)
}

// newOTELHandler bridges slog to an OTLP/gRPC log exporter. The endpoint
// comes from the standard OTEL_EXPORTER_OTLP_* variables.
func newOTELHandler(ctx context.Context, serviceName string) (slog.Handler, func(context.Context) error, error) {
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := otlploggrpc.New(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	provider := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	)

	bridge := otelslog.NewHandler(serviceName, otelslog.WithLoggerProvider(provider))
	return minLevel{Handler: bridge, level: programLevel}, provider.Shutdown, nil
}

// minLevel drops records below level before they reach the wrapped handler
type minLevel struct {
	slog.Handler
	level slog.Leveler
}

func (h minLevel) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

func (h minLevel) WithAttrs(attrs []slog.Attr) slog.Handler {
	return minLevel{Handler: h.Handler.WithAttrs(attrs), level: h.level}
}

func (h minLevel) WithGroup(name string) slog.Handler {
	return minLevel{Handler: h.Handler.WithGroup(name), level: h.level}
}

// Shutdown flushes the OTLP exporter, if any
func Shutdown(ctx context.Context) error {
	if shutdownFunc == nil {
		return nil
	}
	return shutdownFunc(ctx)
}

// SetLevel sets the minimum log level
func SetLevel(level slog.Level) {
	programLevel.Set(level)
}

func GetLevel() slog.Level {
	return programLevel.Level()
}

// ParseLevel converts a level name to slog.Level; empty means INFO
func ParseLevel(levelStr string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "TRACE":
		return LevelTrace, nil
	case "DEBUG":
		return LevelDebug, nil
	case "", "INFO":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarning, nil
	case "ERROR":
		return LevelError, nil
	case "FATAL":
		return LevelFatal, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level: %s", levelStr)
	}
}

// everyNth keeps the first of every rate calls
type everyNth struct {
	rate  atomic.Int64
	count atomic.Uint64
}

func (s *everyNth) setRate(rate int) {
	if rate < 1 {
		rate = 1
	}
	s.rate.Store(int64(rate))
}

func (s *everyNth) keep() bool {
	rate := s.rate.Load()
	if rate <= 1 {
		return true
	}
	return (s.count.Add(1)-1)%uint64(rate) == 0
}

func Trace(msg string, args ...any) {
	Logger.Log(context.Background(), LevelTrace, msg, args...)
}

func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}

func Info(msg string, args ...any) {
	Logger.Info(msg, args...)
}

// Warn logs a sampled warning
func Warn(msg string, args ...any) {
	metrics.LogMessagesTotal.WithLabelValues("warn").Inc()
	if sampler.keep() {
		Logger.Warn(msg, args...)
	}
}

// Error logs a sampled error
func Error(msg string, args ...any) {
	metrics.LogMessagesTotal.WithLabelValues("error").Inc()
	if sampler.keep() {
		Logger.Error(msg, args...)
	}
}

// Fatal logs msg unsampled, flushes the exporter and exits
func Fatal(msg string, args ...any) {
	Logger.Log(context.Background(), LevelFatal, msg, args...)
	_ = Shutdown(context.Background())
	os.Exit(1)
}

// Request logs a served HTTP request: 5xx as errors, 4xx and slow requests
// as warnings, everything else at debug level.
func Request(method, path string, status int, duration time.Duration, requestID string) {
	args := []any{
		"method", method,
		"path", path,
		"status", status,
		"duration_ms", duration.Milliseconds(),
	}
	if requestID != "" {
		args = append(args, "request_id", requestID)
	}

	switch {
	case status >= 500:
		Error("request failed", args...)
	case status >= 400:
		Warn("request rejected", args...)
	case duration > SlowRequestThreshold:
		Warn("slow request", args...)
	default:
		Debug("request served", args...)
	}
}

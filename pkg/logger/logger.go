package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

// Logger stays silent until Init is called so packages can log from tests
var Logger zerolog.Logger = zerolog.Nop()

// Init writes JSON lines to stdout, or console output in development
func Init(serviceName string, isDevelopment bool) {
	InitWithWriter(serviceName, isDevelopment, os.Stdout)
}

// InitWithWriter is Init on top of an arbitrary writer
func InitWithWriter(serviceName string, isDevelopment bool, out io.Writer) {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if isDevelopment {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	Logger = zerolog.New(out).
		Level(zerolog.DebugLevel).
		Hook(traceHook{}).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger()

	log.Logger = Logger
}

// traceHook stamps events bound to a context with the active span ids
type traceHook struct{}

func (traceHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	ctx := e.GetCtx()
	if ctx == nil {
		return
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return
	}
	e.Str("trace_id", sc.TraceID().String()).Str("span_id", sc.SpanID().String())
}

// WithContext returns the global logger bound to ctx
func WithContext(ctx context.Context) *zerolog.Logger {
	l := Logger.With().Ctx(ctx).Logger()
	return &l
}

func Info(ctx context.Context) *zerolog.Event  { return Logger.Info().Ctx(ctx) }
func Error(ctx context.Context) *zerolog.Event { return Logger.Error().Ctx(ctx) }
func Debug(ctx context.Context) *zerolog.Event { return Logger.Debug().Ctx(ctx) }
func Warn(ctx context.Context) *zerolog.Event  { return Logger.Warn().Ctx(ctx) }

// SetLevel sets the global level, falling back to info for unknown names
func SetLevel(level string) {
	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
}

// MaskEmail keeps enough of an address to correlate incidents without logging it in full.
// "jane.doe@example.com" becomes "j***@example.com".
func MaskEmail(email string) string {
	at := strings.LastIndexByte(email, '@')
	if at <= 0 {
		if email == "" {
			return ""
		}
		return "***"
	}
	return email[:1] + "***" + email[at:]
}

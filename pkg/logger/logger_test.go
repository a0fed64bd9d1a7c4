package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func captureJSON(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	InitWithWriter("payment-service", false, &buf)
	t.Cleanup(func() { Logger = zerolog.Nop() })
	return &buf
}

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
	return entry
}

func TestInfo_StampsActiveSpan(t *testing.T) {
	buf := captureJSON(t)
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "reconcile")
	defer span.End()

	Info(ctx).Str("event_id", "evt_1").Msg("reconciled")

	entry := lastLine(t, buf)
	assert.Equal(t, "payment-service", entry["service"])
	assert.Equal(t, "evt_1", entry["event_id"])
	assert.Equal(t, span.SpanContext().TraceID().String(), entry["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), entry["span_id"])
}

func TestWithContext_NoSpanLeavesIdsOut(t *testing.T) {
	buf := captureJSON(t)

	WithContext(context.Background()).Warn().Msg("no span")

	entry := lastLine(t, buf)
	assert.NotContains(t, entry, "trace_id")
	assert.Equal(t, "warn", entry["level"])
}

func TestSetLevel(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })

	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for input, want := range tests {
		SetLevel(input)
		assert.Equal(t, want, zerolog.GlobalLevel(), "input %q", input)
	}
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "j***@example.com", MaskEmail("jane.doe@example.com"))
	assert.Equal(t, "***", MaskEmail("not-an-email"))
	assert.Equal(t, "***", MaskEmail("@example.com"))
	assert.Equal(t, "", MaskEmail(""))
}

package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

// TestPurpose: Validates JSON output carries trace identifiers from the context.
// Scope: Unit Test
// Security: Log correlation for incident response
// Expected: A record logged with a span context includes trace_id and span_id.
// Test Case ID: LOG-01
func TestNew_TraceContext(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "json", ServiceName: "test", Output: &buf})

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 2, 3},
		SpanID:     trace.SpanID{4, 5, 6},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	log.InfoContext(ctx, "instance_created", InstanceID("i-1"), ContainerName("c3-alice-abc"))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "instance_created", rec["msg"])
	assert.Equal(t, "i-1", rec["instance_id"])
	assert.Equal(t, "c3-alice-abc", rec["container_name"])
	assert.Equal(t, sc.TraceID().String(), rec["trace_id"])
	assert.Equal(t, sc.SpanID().String(), rec["span_id"])
}

// TestPurpose: Validates level parsing falls back to info on unknown input.
// Scope: Unit Test
// Security: N/A
// Expected: Debug records are dropped at the default level and kept at debug.
// Test Case ID: LOG-02
func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("WARN"))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))

	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "text", Output: &buf})
	log.Debug("hidden")
	assert.Empty(t, buf.String())
}

package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evarc/evarc/pkg/config"
)

func TestInitializeDisabled(t *testing.T) {
	err := Initialize(&config.TracingConfig{Enabled: false}, "test")
	require.NoError(t, err)

	// Spans still work against the no-op tracer.
	ctx, span := NewSpan(context.Background(), "noop")
	assert.NotNil(t, ctx)
	span.SetAttribute("k", "v")
	span.End()
}

func TestWriterTracerTraceEvent(t *testing.T) {
	wt := NewWriterTracer("writer")

	called := false
	err := wt.TraceEvent(context.Background(), 7, "process", func(ctx context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestTraceEventPropagatesError(t *testing.T) {
	wt := NewWriterTracer("writer")

	wantErr := assert.AnError
	err := wt.TraceEvent(context.Background(), 1, "process", func(ctx context.Context) error {
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)
}

func TestSpanAttributeTypes(t *testing.T) {
	_, span := NewSpan(context.Background(), "attrs")
	span.SetAttribute("string", "v")
	span.SetAttribute("int", 1)
	span.SetAttribute("int64", int64(2))
	span.SetAttribute("uint64", uint64(3))
	span.SetAttribute("float", 4.5)
	span.SetAttribute("bool", true)
	span.SetAttribute("other", struct{ X int }{1})
	span.End()
}

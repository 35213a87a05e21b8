package tracing

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"poclean/internal/config"
)

func TestSetup_Disabled(t *testing.T) {
	tr, shutdown, err := Setup(config.Tracing{})
	require.NoError(t, err)

	_, span := tr.Start(context.Background(), "read")
	assert.False(t, span.SpanContext().IsValid())
	span.End()
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetup_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.json")
	tr, shutdown, err := Setup(config.Tracing{Enabled: true, Output: path})
	require.NoError(t, err)

	_, span := tr.Start(context.Background(), "dedup")
	End(span, nil)
	require.NoError(t, shutdown(context.Background()))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"Name": "dedup"`)
}

func TestSetup_BadOutput(t *testing.T) {
	_, _, err := Setup(config.Tracing{Enabled: true, Output: filepath.Join(t.TempDir(), "no", "dir", "t.json")})
	assert.ErrorContains(t, err, "open trace output")
}

func TestEnd_RecordsError(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp := NewProvider(exp)
	tr := tp.Tracer("test")

	_, good := tr.Start(context.Background(), "normalize")
	End(good, nil)
	_, bad := tr.Start(context.Background(), "write")
	End(bad, errors.New("disk full"))
	require.NoError(t, tp.ForceFlush(context.Background()))

	spans := exp.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, codes.Unset, spans[0].Status.Code)
	assert.Equal(t, codes.Error, spans[1].Status.Code)
	assert.Equal(t, "disk full", spans[1].Status.Description)
	require.Len(t, spans[1].Events, 1)
	assert.Equal(t, "exception", spans[1].Events[0].Name)
}

package telemetry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpanScopeNormalExit(t *testing.T) {
	c := newTestClient(t)

	err := c.Span("x", nil).Do(func() error {
		return nil
	})
	require.NoError(t, err)

	spans := c.CompletedSpans("x")
	require.Len(t, spans, 1)
	assert.Equal(t, StatusOK, spans[0].Status)
	assert.Empty(t, spans[0].Error)
}

func TestSpanScopeErrorExit(t *testing.T) {
	c := newTestClient(t)

	boom := errors.New("boom")
	err := c.Span("x", nil).Do(func() error {
		return boom
	})
	// The original error escapes unchanged.
	require.Same(t, boom, err)

	spans := c.CompletedSpans("x")
	require.Len(t, spans, 1)
	assert.Equal(t, StatusError, spans[0].Status)
	assert.Equal(t, "boom", spans[0].Error)
}

// TestSpanScopePanicExit verifies the scope is invisible to control flow: a
// panic completes the span with status "error" and the original panic value
// still escapes unchanged.
func TestSpanScopePanicExit(t *testing.T) {
	c := newTestClient(t)

	defer func() {
		r := recover()
		require.Equal(t, "kaboom", r)

		spans := c.CompletedSpans("x")
		require.Len(t, spans, 1)
		assert.Equal(t, StatusError, spans[0].Status)
		assert.Equal(t, "kaboom", spans[0].Error)
	}()

	_ = c.Span("x", nil).Do(func() error {
		panic("kaboom")
	})
	t.Fatal("unreachable")
}

func TestSpanScopeExplicitStatus(t *testing.T) {
	c := newTestClient(t)

	scope := c.Span("x", map[string]string{"k": "v"})
	scope.AddTag("extra", 7)
	scope.SetStatus("degraded")
	rec, ok := scope.End()
	require.True(t, ok)

	assert.Equal(t, "degraded", rec.Status)
	assert.Equal(t, "v", rec.Tags["k"])
	assert.Equal(t, "7", rec.Tags["extra"])
}

func TestSpanScopeEndIdempotent(t *testing.T) {
	c := newTestClient(t)

	scope := c.Span("x", nil)
	_, ok := scope.End()
	require.True(t, ok)
	_, ok = scope.End()
	assert.False(t, ok)

	assert.Len(t, c.CompletedSpans("x"), 1)
}

func TestSpanScopeRecordError(t *testing.T) {
	c := newTestClient(t)

	scope := c.Span("x", nil)
	scope.RecordError(errors.New("partial failure"))
	rec, ok := scope.End()
	require.True(t, ok)

	assert.Equal(t, StatusError, rec.Status)
	assert.Equal(t, "partial failure", rec.Error)
}

func TestWithSpan(t *testing.T) {
	c := newTestClient(t)

	err := c.WithSpan("job", nil, func(scope *SpanScope) error {
		scope.AddTag("stage", "late")
		return nil
	})
	require.NoError(t, err)

	spans := c.CompletedSpans("job")
	require.Len(t, spans, 1)
	assert.Equal(t, StatusOK, spans[0].Status)
	assert.Equal(t, "late", spans[0].Tags["stage"])
}

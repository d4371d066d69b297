package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchparty/telemetrykit/telemetry"
)

func newTestCache(t *testing.T) (*Redis, *telemetry.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	obs := telemetry.New(telemetry.Config{ServiceName: "test"}, nil)

	c, err := New(Options{
		URL:       "redis://" + mr.Addr(),
		Namespace: "test",
		Telemetry: obs,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, obs
}

func TestSetGetRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "key", "value", time.Minute))

	val, err := c.Get(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, "value", val)
}

func TestGetMissingKey(t *testing.T) {
	c, _ := newTestCache(t)

	_, err := c.Get(context.Background(), "absent")
	require.ErrorIs(t, err, redis.Nil)
}

func TestExistsAndDelete(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "key", "value", 0))

	ok, err := c.Exists(ctx, "key")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.Delete(ctx, "key"))

	ok, err = c.Exists(ctx, "key")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNamespacing(t *testing.T) {
	mr := miniredis.RunT(t)

	c, err := New(Options{URL: "redis://" + mr.Addr(), Namespace: "ns"})
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Set(context.Background(), "key", "value", 0))

	// The raw key carries the namespace prefix.
	got, err := mr.Get("ns:key")
	require.NoError(t, err)
	assert.Equal(t, "value", got)
}

// TestOperationMetrics verifies each cache operation records a duration
// metric on the wired collector, and that a missing key still counts as ok.
func TestOperationMetrics(t *testing.T) {
	c, obs := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "key", "value", 0))
	_, err := c.Get(ctx, "key")
	require.NoError(t, err)
	_, _ = c.Get(ctx, "absent")

	metrics := obs.Metrics(OperationMetric)
	require.Len(t, metrics, 3)
	for _, m := range metrics {
		assert.Equal(t, "ok", m.Tags["status"])
	}
}

func TestNewValidation(t *testing.T) {
	_, err := New(Options{})
	require.ErrorIs(t, err, telemetry.ErrInvalidConfiguration)

	_, err = New(Options{URL: "::not-a-url::"})
	require.ErrorIs(t, err, telemetry.ErrInvalidConfiguration)

	// Nothing listening on this port.
	_, err = New(Options{URL: "redis://localhost:1"})
	require.ErrorIs(t, err, telemetry.ErrConnectionFailed)
}

func TestPing(t *testing.T) {
	c, _ := newTestCache(t)
	require.NoError(t, c.Ping(context.Background()))
}

// Package cache provides a namespaced Redis cache client.
//
// All keys are automatically prefixed with the configured namespace to
// prevent collisions between embedders sharing one Redis. When a telemetry
// collector is supplied, every operation records a duration metric
// ("cache.operation_ms", tagged with operation and status), giving the
// verification tooling and dashboards visibility into cache health.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/couchparty/telemetrykit/telemetry"
)

// OperationMetric is the duration metric recorded per cache operation.
const OperationMetric = "cache.operation_ms"

// Redis is a namespaced cache client backed by go-redis.
type Redis struct {
	client    *redis.Client
	namespace string
	logger    *telemetry.Logger
	obs       *telemetry.Client
}

// Options configures the cache client.
type Options struct {
	// URL is a redis:// connection URL. Required.
	URL string
	// DB selects the Redis database (0-15).
	DB int
	// Namespace prefixes every key. Optional.
	Namespace string
	// Logger is optional.
	Logger *telemetry.Logger
	// Telemetry, when set, records a duration metric per operation.
	Telemetry *telemetry.Client
}

// New creates a cache client and verifies connectivity with a ping.
func New(opts Options) (*Redis, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("redis URL is required: %w", telemetry.ErrInvalidConfiguration)
	}

	redisOpt, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", telemetry.ErrInvalidConfiguration)
	}
	if opts.DB >= 0 && opts.DB <= 15 {
		redisOpt.DB = opts.DB
	}

	client := redis.NewClient(redisOpt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis DB %d: %w", opts.DB, telemetry.ErrConnectionFailed)
	}

	r := &Redis{
		client:    client,
		namespace: opts.Namespace,
		logger:    opts.Logger,
		obs:       opts.Telemetry,
	}
	if r.logger != nil {
		r.logger.Info("Redis cache connected", map[string]interface{}{
			"db":        redisOpt.DB,
			"namespace": opts.Namespace,
		})
	}
	return r, nil
}

// Close closes the underlying connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Get retrieves a value. Returns redis.Nil when the key does not exist.
func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	start := time.Now()
	val, err := r.client.Get(ctx, r.formatKey(key)).Result()
	r.record("get", start, err)
	return val, err
}

// Set stores a value with an optional TTL (zero means no expiry).
func (r *Redis) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	start := time.Now()
	err := r.client.Set(ctx, r.formatKey(key), value, ttl).Err()
	r.record("set", start, err)
	return err
}

// Delete removes keys.
func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	formatted := make([]string, len(keys))
	for i, key := range keys {
		formatted[i] = r.formatKey(key)
	}
	start := time.Now()
	err := r.client.Del(ctx, formatted...).Err()
	r.record("delete", start, err)
	return err
}

// Exists reports whether a key is present.
func (r *Redis) Exists(ctx context.Context, key string) (bool, error) {
	start := time.Now()
	n, err := r.client.Exists(ctx, r.formatKey(key)).Result()
	r.record("exists", start, err)
	return n > 0, err
}

// Ping verifies connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	start := time.Now()
	err := r.client.Ping(ctx).Err()
	r.record("ping", start, err)
	return err
}

func (r *Redis) formatKey(key string) string {
	if r.namespace != "" {
		return fmt.Sprintf("%s:%s", r.namespace, key)
	}
	return key
}

// record emits the per-operation duration metric when a collector is wired.
// A missing key on Get counts as ok - only transport errors are failures.
func (r *Redis) record(op string, start time.Time, err error) {
	if r.obs == nil {
		return
	}
	status := "ok"
	if err != nil && err != redis.Nil {
		status = "error"
	}
	_, _ = r.obs.RecordMetric(OperationMetric,
		float64(time.Since(start))/float64(time.Millisecond),
		map[string]string{"operation": op, "status": status})
}

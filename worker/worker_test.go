package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchparty/telemetrykit/telemetry"
)

func newTestPool(t *testing.T) (*Pool, *telemetry.Client) {
	t.Helper()
	obs := telemetry.New(telemetry.Config{ServiceName: "test"}, nil)
	return NewPool(obs, nil, Config{Workers: 2, QueueSize: 8}), obs
}

func TestExecuteSuccess(t *testing.T) {
	pool, obs := newTestPool(t)

	require.NoError(t, pool.RegisterHandler("echo", func(ctx context.Context, task *Task) (interface{}, error) {
		return task.Input["message"], nil
	}))

	result, err := pool.Execute(context.Background(), NewTask("t1", "echo", map[string]interface{}{
		"message": "hello",
	}))
	require.NoError(t, err)
	assert.Equal(t, "hello", result)

	// The run left exactly one completed span, one runtime metric, and a
	// completed event - the task adapter's full success path.
	spans := obs.CompletedSpans(telemetry.TaskSpanName)
	require.Len(t, spans, 1)
	assert.Equal(t, "success", spans[0].Status)
	assert.Equal(t, "echo", spans[0].Tags["task_name"])
	assert.Equal(t, "hello", spans[0].Tags["result"])

	assert.Len(t, obs.Metrics(telemetry.TaskRuntimeMetric), 1)
	assert.Len(t, obs.Events(telemetry.EventTaskCompleted), 1)
}

func TestExecuteHandlerError(t *testing.T) {
	pool, obs := newTestPool(t)

	boom := errors.New("boom")
	require.NoError(t, pool.RegisterHandler("fail", func(ctx context.Context, task *Task) (interface{}, error) {
		return nil, boom
	}))

	_, err := pool.Execute(context.Background(), NewTask("t2", "fail", nil))
	require.Same(t, boom, err)

	spans := obs.CompletedSpans(telemetry.TaskSpanName)
	require.Len(t, spans, 1)
	assert.Equal(t, "failure", spans[0].Status)
	assert.Contains(t, spans[0].Error, "boom")
	assert.Len(t, obs.Events(telemetry.EventTaskFailed), 1)
}

// TestExecutePanicRecovered verifies a panicking handler is contained: the
// pool reports it as a failed task and returns an error instead of
// crashing the caller.
func TestExecutePanicRecovered(t *testing.T) {
	pool, obs := newTestPool(t)

	require.NoError(t, pool.RegisterHandler("explode", func(ctx context.Context, task *Task) (interface{}, error) {
		panic("handler exploded")
	}))

	var err error
	require.NotPanics(t, func() {
		_, err = pool.Execute(context.Background(), NewTask("t3", "explode", nil))
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handler exploded")

	spans := obs.CompletedSpans(telemetry.TaskSpanName)
	require.Len(t, spans, 1)
	assert.Equal(t, "failure", spans[0].Status)
}

func TestExecuteUnknownType(t *testing.T) {
	pool, obs := newTestPool(t)

	_, err := pool.Execute(context.Background(), NewTask("t4", "nothing", nil))
	require.ErrorIs(t, err, ErrUnknownTaskType)

	// No handler means no instrumentation at all.
	assert.Empty(t, obs.CompletedSpans(""))
	assert.Empty(t, obs.Events(""))
}

func TestRegisterHandlerDuplicate(t *testing.T) {
	pool, _ := newTestPool(t)

	h := func(ctx context.Context, task *Task) (interface{}, error) { return nil, nil }
	require.NoError(t, pool.RegisterHandler("dup", h))
	require.ErrorIs(t, pool.RegisterHandler("dup", h), ErrHandlerExists)
}

func TestBackgroundExecution(t *testing.T) {
	pool, obs := newTestPool(t)

	done := make(chan struct{}, 4)
	require.NoError(t, pool.RegisterHandler("bg", func(ctx context.Context, task *Task) (interface{}, error) {
		done <- struct{}{}
		return nil, nil
	}))

	ctx := context.Background()
	require.NoError(t, pool.Start(ctx))
	require.ErrorIs(t, pool.Start(ctx), ErrAlreadyStarted)
	defer pool.Stop()

	for i := 0; i < 4; i++ {
		require.NoError(t, pool.Submit(ctx, NewTask("", "bg", nil)))
	}

	for i := 0; i < 4; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("task did not run")
		}
	}

	// Spans may trail the handler signal slightly.
	require.Eventually(t, func() bool {
		return len(obs.CompletedSpans(telemetry.TaskSpanName)) == 4
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSubmitQueueFull(t *testing.T) {
	obs := telemetry.New(telemetry.Config{ServiceName: "test"}, nil)
	pool := NewPool(obs, nil, Config{Workers: 1, QueueSize: 1})

	require.NoError(t, pool.Submit(context.Background(), NewTask("", "x", nil)))
	require.ErrorIs(t, pool.Submit(context.Background(), NewTask("", "x", nil)), ErrQueueFull)
}

func TestNewTaskGeneratesID(t *testing.T) {
	task := NewTask("", "encode", nil)
	assert.NotEmpty(t, task.ID)

	task = NewTask("fixed", "encode", nil)
	assert.Equal(t, "fixed", task.ID)
}

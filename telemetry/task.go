package telemetry

// Task instrumentation maps an external task id to an internal span so job
// duration and outcome are captured without the job system understanding
// spans. The per-task state machine is:
//
//	NONE -> STARTED (BeginTask) -> COMPLETED or FAILED (CompleteTask/FailTask) -> removed
//
// Completing a task that was never begun is a pure no-op: no span, no
// metric, no event. Instrumentation attached after the fact degrades
// gracefully instead of erroring.

import (
	"github.com/google/uuid"
)

// Metric and event names emitted by the task adapter.
const (
	TaskSpanName       = "task.run"
	TaskRuntimeMetric  = "task.duration_ms"
	EventTaskStarted   = "task.started"
	EventTaskCompleted = "task.completed"
	EventTaskFailed    = "task.failed"
)

// BeginTask opens a span for an external task and records the task-to-span
// mapping. When taskID is empty a fresh id is generated; the id used is
// available from the span tags and must be passed to CompleteTask or
// FailTask later. Returns the span id.
func (c *Client) BeginTask(taskID, taskName, queue string) string {
	if taskID == "" {
		taskID = uuid.NewString()
	}

	tags := map[string]string{
		"task_id":   taskID,
		"task_name": taskName,
	}
	if queue != "" {
		tags["queue"] = queue
	}

	c.mu.Lock()
	spanID := c.startSpanLocked(TaskSpanName, tags)
	c.tasks[taskID] = spanID
	c.mu.Unlock()

	c.RecordEvent(EventTaskStarted, "task "+taskName+" started", SeverityInfo, tags)
	return spanID
}

// CompleteTask finishes an in-flight task: the mapped span is completed with
// the given status, a runtime metric tagged by task name and status is
// emitted, and a completion or failure event is recorded depending on
// whether errText was supplied. An unknown task id returns (zero, false)
// and emits nothing.
//
// status defaults to "success". A non-nil result is stringified onto the
// span as a "result" tag.
func (c *Client) CompleteTask(taskID, status string, result interface{}, errText string) (SpanRecord, bool) {
	if status == "" {
		status = "success"
	}

	c.mu.Lock()
	spanID, ok := c.tasks[taskID]
	if !ok {
		c.mu.Unlock()
		return SpanRecord{}, false
	}
	delete(c.tasks, taskID)

	if s, ok := c.active[spanID]; ok && result != nil {
		s.tags["result"] = stringify(result)
	}
	rec, completed := c.completeSpanLocked(spanID, status, errText)
	c.mu.Unlock()

	if !completed {
		return SpanRecord{}, false
	}
	c.notifySpan(rec)

	taskName := rec.Tags["task_name"]
	_, _ = c.RecordMetric(TaskRuntimeMetric, rec.DurationMillis, map[string]string{
		"task_name": taskName,
		"status":    status,
	})

	eventTags := map[string]string{
		"task_id":   taskID,
		"task_name": taskName,
		"status":    status,
	}
	if errText != "" {
		eventTags["error"] = errText
		c.RecordEvent(EventTaskFailed, "task "+taskName+" failed: "+errText, SeverityError, eventTags)
	} else {
		c.RecordEvent(EventTaskCompleted, "task "+taskName+" completed", SeverityInfo, eventTags)
	}
	return rec, true
}

// FailTask is sugar for CompleteTask with status "failure" and the error's
// string form.
func (c *Client) FailTask(taskID string, err error) (SpanRecord, bool) {
	errText := "unknown error"
	if err != nil {
		errText = err.Error()
	}
	return c.CompleteTask(taskID, "failure", nil, errText)
}

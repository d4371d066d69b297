package telemetry

import "fmt"

// SpanScope is a guaranteed-cleanup handle around one active span, obtained
// via Client.Span. It completes the underlying span exactly once regardless
// of how the enclosing scope is exited: End is idempotent by virtue of
// CompleteSpan's idempotency, and Do completes on normal return, returned
// error, and panic alike.
type SpanScope struct {
	client *Client
	spanID string
}

// Span opens a span and returns a scoped handle for it. Pair with a deferred
// End, or use Do for automatic error and panic handling:
//
//	scope := obs.Span("render", nil)
//	defer scope.End()
//
//	err := obs.Span("render", nil).Do(func() error { ... })
func (c *Client) Span(name string, tags map[string]string) *SpanScope {
	return &SpanScope{
		client: c,
		spanID: c.StartSpan(name, tags),
	}
}

// SpanID returns the id of the underlying span.
func (s *SpanScope) SpanID() string {
	return s.spanID
}

// AddTag attaches a tag to the span. No-op after completion.
func (s *SpanScope) AddTag(key string, value interface{}) {
	s.client.AddSpanTag(s.spanID, key, value)
}

// SetStatus overrides the status the span will complete with. No-op after
// completion.
func (s *SpanScope) SetStatus(status string) {
	s.client.SetSpanStatus(s.spanID, status)
}

// RecordError marks the span as failed and stores the error's string form.
// The span still needs End to complete.
func (s *SpanScope) RecordError(err error) {
	if err == nil {
		return
	}
	s.client.setSpanError(s.spanID, err.Error())
}

// End completes the span with whichever status was last set, defaulting to
// "ok". Calling End more than once is harmless; only the first call
// produces a record.
func (s *SpanScope) End() (SpanRecord, bool) {
	return s.client.CompleteSpan(s.spanID, "", "")
}

// Do runs fn inside the span's scope. On a returned error the span
// completes with status "error" and the error text, and the original error
// is returned unchanged. On a panic the span completes the same way and the
// original panic value is re-raised unchanged - the scope is invisible to
// control flow. Otherwise the span completes via End.
func (s *SpanScope) Do(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.client.CompleteSpan(s.spanID, StatusError, fmt.Sprintf("%v", r))
			panic(r)
		}
		if err != nil {
			s.client.CompleteSpan(s.spanID, StatusError, err.Error())
			return
		}
		s.End()
	}()
	return fn()
}

// WithSpan is a convenience for the common pattern of timing one function.
// The scope is handed to fn so it can add tags or override the status.
func (c *Client) WithSpan(name string, tags map[string]string, fn func(*SpanScope) error) error {
	scope := c.Span(name, tags)
	return scope.Do(func() error { return fn(scope) })
}

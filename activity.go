package enroll

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventLinkCreated       ActivityEventType = "link.created"
	ActivityEventLinkRedeemed      ActivityEventType = "link.redeemed"
	ActivityEventLinkRejected      ActivityEventType = "link.rejected"
	ActivityEventLinkRestored      ActivityEventType = "link.restored"
	ActivityEventLinkSwept         ActivityEventType = "link.swept"
	ActivityEventSessionIssued     ActivityEventType = "session.issued"
	ActivityEventEnrollmentSuccess ActivityEventType = "enrollment.success"
	ActivityEventEnrollmentFailure ActivityEventType = "enrollment.failure"
)

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Subject    string
	LinkID     string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
// Sinks run best-effort: a failing sink is logged and never blocks the
// operation that emitted the event.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

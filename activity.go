package auth

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventLoginSuccess           ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure           ActivityEventType = "auth.login.failure"
	ActivityEventRegistered             ActivityEventType = "auth.register"
	ActivityEventAccountBanned          ActivityEventType = "account.banned"
	ActivityEventAccountUnbanned        ActivityEventType = "account.unbanned"
	ActivityEventRoleChanged            ActivityEventType = "account.role.changed"
	ActivityEventAnnouncementCreated    ActivityEventType = "announcement.created"
	ActivityEventAnnouncementDeactivate ActivityEventType = "announcement.deactivated"
	ActivityEventAdminCommand           ActivityEventType = "admin.command"
)

// ActorRef identifies who/what triggered an action.
type ActorRef struct {
	ID   string
	Type string
}

const (
	ActorTypeAccount = "account"
	ActorTypeSystem  = "system"
)

// ActorFromAccount builds the actor reference for an account
func ActorFromAccount(account *Account) ActorRef {
	if account == nil {
		return ActorRef{Type: ActorTypeSystem}
	}
	return ActorRef{ID: account.IDString(), Type: ActorTypeAccount}
}

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	AccountID  int64
	From       string
	To         string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
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

// activityRecorder stamps and forwards events. Sink failures are logged,
// they never fail the operation that produced the event.
type activityRecorder struct {
	sink   ActivitySink
	logger Logger
	now    nowFunc
}

func newActivityRecorder(sink ActivitySink, logger Logger, now nowFunc) activityRecorder {
	if logger == nil {
		logger = defLogger{}
	}
	return activityRecorder{
		sink:   normalizeActivitySink(sink),
		logger: logger,
		now:    resolveNow(now),
	}
}

func (r activityRecorder) record(ctx context.Context, event ActivityEvent) {
	if event.Actor == (ActorRef{}) {
		event.Actor = ActorRef{Type: ActorTypeSystem}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = r.now()
	}

	if err := normalizeActivitySink(r.sink).Record(ctx, event); err != nil {
		r.logger.Warn("activity sink error", "event", event.EventType, "error", err)
	}
}

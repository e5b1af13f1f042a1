package activitymap

import (
	"context"

	auth "github.com/cinemalog/auth"
)

// LoggingSink writes every event as a normalized record to a logger.
type LoggingSink struct {
	logger auth.Logger
	opts   []Option
}

var _ auth.ActivitySink = (*LoggingSink)(nil)

func NewLoggingSink(logger auth.Logger, opts ...Option) *LoggingSink {
	_, logger = auth.ResolveLogger("auth.activity", nil, logger)
	return &LoggingSink{logger: logger, opts: opts}
}

func (s *LoggingSink) Record(_ context.Context, event auth.ActivityEvent) error {
	record := Normalize(event, s.opts...)
	s.logger.Info("activity",
		"verb", record.Verb,
		"actor_id", record.ActorID,
		"object_type", record.ObjectType,
		"object_id", record.ObjectID,
		"channel", record.Channel,
		"metadata", record.Metadata,
		"occurred_at", record.OccurredAt,
	)
	return nil
}

// Fanout forwards each event to every sink and returns the first error.
type Fanout []auth.ActivitySink

func (f Fanout) Record(ctx context.Context, event auth.ActivityEvent) error {
	var first error
	for _, sink := range f {
		if sink == nil {
			continue
		}
		if err := sink.Record(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

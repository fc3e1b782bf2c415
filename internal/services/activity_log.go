package services

import (
	"context"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/store"
)

// ActivityPublisher hands activities to an asynchronous consumer.
type ActivityPublisher interface {
	PublishActivity(ctx context.Context, msg *amqp.ActivityMessage) error
}

// activityLog writes activity entries through the publisher when one is set
// and directly to the recorder otherwise or when publishing fails.
type activityLog struct {
	publisher ActivityPublisher
	recorder  store.ActivityRecorder
	logger    *log.Logger
}

// record never fails the caller's operation; problems are logged.
func (l activityLog) record(ctx context.Context, a core.Activity) {
	if l.publisher != nil {
		err := l.publisher.PublishActivity(ctx, amqp.NewActivityMessage(a))
		if err == nil {
			return
		}
		l.logger.WarnContext(ctx, "Activity publish failed, recording directly",
			log.FieldActivity, a.Type, log.FieldError, err)
	}

	if l.recorder == nil {
		return
	}
	if err := l.recorder.RecordActivity(ctx, a); err != nil {
		l.logger.ErrorContext(ctx, "Failed to record activity",
			log.FieldActivity, a.Type, log.FieldUsername, a.Username, log.FieldError, err)
	}
}

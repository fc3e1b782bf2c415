// Package worker persists activity messages consumed from the broker.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"ledger/internal/amqp"
	"ledger/internal/log"
	"ledger/internal/store"
)

// ActivitySource delivers activity messages until ctx is done.
type ActivitySource interface {
	ConsumeActivities(ctx context.Context, handler func(context.Context, *amqp.ActivityMessage) error) error
	Close() error
}

// ActivityWorker writes consumed activities to the activity log.
type ActivityWorker struct {
	recorder  store.ActivityRecorder
	logger    *log.Logger
	processed atomic.Int64
}

func NewActivityWorker(recorder store.ActivityRecorder, logger *log.Logger) *ActivityWorker {
	if logger == nil {
		logger = log.FromContext(context.Background())
	}
	return &ActivityWorker{
		recorder: recorder,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// HandleActivity records one message. A returned error makes the broker
// redeliver it.
func (w *ActivityWorker) HandleActivity(ctx context.Context, msg *amqp.ActivityMessage) error {
	w.logger.DebugContext(ctx, "Processing activity message",
		log.FieldUsername, msg.Username, log.FieldActivity, msg.Type)

	if err := w.recorder.RecordActivity(ctx, msg.Activity()); err != nil {
		return fmt.Errorf("record activity: %w", err)
	}
	w.processed.Add(1)
	return nil
}

// Processed returns how many messages were recorded since start.
func (w *ActivityWorker) Processed() int64 {
	return w.processed.Load()
}

// Run consumes from src until ctx is cancelled or consumption fails for a
// reason other than cancellation. src is closed on the way out.
func (w *ActivityWorker) Run(ctx context.Context, src ActivitySource) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		w.logger.InfoContext(gctx, "Activity consumer started")
		return src.ConsumeActivities(gctx, w.HandleActivity)
	})

	g.Go(func() error {
		<-gctx.Done()
		if err := src.Close(); err != nil {
			w.logger.WarnContext(ctx, "Closing activity source failed", log.FieldError, err)
		}
		return nil
	})

	err := g.Wait()
	w.logger.Info("Activity consumer stopped", "processed", w.Processed())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

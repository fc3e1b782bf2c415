package services

import (
	"context"
	"fmt"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/store"
)

// ExpenseService records, changes and removes expenses on behalf of an
// actor and logs an activity for each change.
type ExpenseService struct {
	writer   store.ExpenseWriter
	activity activityLog
	logger   *log.Logger
}

// NewExpenseService builds the service. publisher may be nil, in which case
// activities go straight to the recorder.
func NewExpenseService(writer store.ExpenseWriter, activities store.ActivityRecorder, publisher ActivityPublisher, logger *log.Logger) *ExpenseService {
	if logger == nil {
		logger = log.FromContext(context.Background())
	}
	logger = logger.WithComponent(log.ComponentStorage)
	return &ExpenseService{
		writer:   writer,
		activity: activityLog{publisher: publisher, recorder: activities, logger: logger},
		logger:   logger,
	}
}

// CreateExpense saves e and returns its id. An empty owner defaults to the
// actor; only admins may record expenses for someone else.
func (s *ExpenseService) CreateExpense(ctx context.Context, actor core.Actor, e core.Expense) (int64, error) {
	if e.Owner == "" {
		e.Owner = actor.Username
	}
	if actor.Role != core.RoleAdmin && e.Owner != actor.Username {
		return 0, fmt.Errorf("%w: %s cannot record expenses for %s", ErrForbidden, actor.Username, e.Owner)
	}

	id, err := s.writer.AddExpense(ctx, e)
	if err != nil {
		return 0, fmt.Errorf("save expense: %w", err)
	}
	s.logger.InfoContext(ctx, "Expense recorded",
		log.FieldOperation, log.OpRecord, log.FieldUsername, actor.Username,
		"id", id, "owner", e.Owner, "amount", core.FormatAmount(e.Amount))

	// Saved locally; the activity entry is best effort.
	s.activity.record(ctx, core.Activity{
		Username: actor.Username,
		Type:     core.ActivityAddExpense,
		Details:  fmt.Sprintf("#%d %s %s %s", id, e.Date, core.FormatAmount(e.Amount), core.NormalizeName(e.Category)),
	})
	return id, nil
}

// UpdateExpense applies c to expense id. Users may only change their own
// expenses; someone else's reads as core.ErrExpenseNotFound.
func (s *ExpenseService) UpdateExpense(ctx context.Context, actor core.Actor, id int64, c core.ExpenseChange) error {
	if err := s.authorize(ctx, actor, id); err != nil {
		return err
	}
	if err := s.writer.UpdateExpense(ctx, id, c); err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	s.logger.InfoContext(ctx, "Expense updated",
		log.FieldOperation, log.OpUpdate, log.FieldUsername, actor.Username,
		"id", id, "field", string(c.Field))

	s.activity.record(ctx, core.Activity{
		Username: actor.Username,
		Type:     core.ActivityUpdateExpense,
		Details:  fmt.Sprintf("#%d %s", id, c),
	})
	return nil
}

// DeleteExpense removes expense id under the same ownership rule as
// UpdateExpense.
func (s *ExpenseService) DeleteExpense(ctx context.Context, actor core.Actor, id int64) error {
	if err := s.authorize(ctx, actor, id); err != nil {
		return err
	}
	if err := s.writer.DeleteExpense(ctx, id); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	s.logger.InfoContext(ctx, "Expense deleted",
		log.FieldOperation, log.OpDelete, log.FieldUsername, actor.Username, "id", id)

	s.activity.record(ctx, core.Activity{
		Username: actor.Username,
		Type:     core.ActivityDeleteExpense,
		Details:  fmt.Sprintf("#%d", id),
	})
	return nil
}

// authorize lets admins touch any expense and users only their own. A
// foreign id reads as missing.
func (s *ExpenseService) authorize(ctx context.Context, actor core.Actor, id int64) error {
	owner, err := s.writer.ExpenseOwner(ctx, id)
	if err != nil {
		return err
	}
	if actor.Role != core.RoleAdmin && owner != actor.Username {
		s.logger.WarnContext(ctx, "Rejected change to foreign expense",
			log.FieldUsername, actor.Username, "id", id)
		return fmt.Errorf("%w: #%d", core.ErrExpenseNotFound, id)
	}
	return nil
}

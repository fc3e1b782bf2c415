package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ledger/internal/core"
	"ledger/internal/filter"
	"ledger/internal/log"
	"ledger/internal/predicate"
	"ledger/internal/store"
)

var (
	// ErrStoreUnavailable wraps every failure coming back from the backend.
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrExportDisabled   = errors.New("export destination not configured")
	// ErrForbidden is returned when a non-admin asks for another user's data.
	ErrForbidden = errors.New("forbidden")
)

// QueryService runs filtered expense queries on behalf of an actor. It is
// the single entry point shared by the CLI, the HTTP API and the analytics
// path.
type QueryService struct {
	expenses   store.ExpenseQuerier
	users      store.UserReader
	history    store.ActivityLister
	publisher  ActivityPublisher
	exporter   store.RowExporter
	logger     *log.Logger
	structured *log.StructuredLogger
	activity   activityLog
}

type Option func(*QueryService)

// WithPublisher routes activity records through p instead of writing them
// directly.
func WithPublisher(p ActivityPublisher) Option {
	return func(s *QueryService) { s.publisher = p }
}

// WithActivityLister enables Activities.
func WithActivityLister(l store.ActivityLister) Option {
	return func(s *QueryService) { s.history = l }
}

func WithExporter(e store.RowExporter) Option {
	return func(s *QueryService) { s.exporter = e }
}

func WithLogger(l *log.Logger) Option {
	return func(s *QueryService) { s.logger = l }
}

func NewQueryService(expenses store.ExpenseQuerier, users store.UserReader, activities store.ActivityRecorder, opts ...Option) *QueryService {
	s := &QueryService{
		expenses: expenses,
		users:    users,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.FromContext(context.Background())
	}
	s.logger = s.logger.WithComponent(log.ComponentQuery)
	s.structured = log.NewStructuredLogger(s.logger)
	s.activity = activityLog{publisher: s.publisher, recorder: activities, logger: s.logger}
	return s
}

// ResolveActor looks up username and returns it with its stored role.
func (s *QueryService) ResolveActor(ctx context.Context, username string) (core.Actor, error) {
	u, err := s.users.GetUser(ctx, username)
	if errors.Is(err, core.ErrUserNotFound) {
		return core.Actor{}, err
	}
	if err != nil {
		return core.Actor{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return core.Actor{Username: u.Username, Role: u.Role}, nil
}

// List returns the rows visible to actor that match filterText. A parse
// failure returns the filter error and no rows.
func (s *QueryService) List(ctx context.Context, actor core.Actor, filterText string) ([]core.ExpenseRow, error) {
	rows, err := s.run(ctx, log.OpList, actor, filterText)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, core.ActivityListExpenses, filterText)
	return rows, nil
}

// Analytics summarizes the rows List would return.
func (s *QueryService) Analytics(ctx context.Context, actor core.Actor, filterText string) (core.Analytics, error) {
	rows, err := s.run(ctx, log.OpAnalyze, actor, filterText)
	if err != nil {
		return core.Analytics{}, err
	}
	s.record(ctx, actor, core.ActivityAnalyzeExpense, filterText)
	return core.Summarize(rows), nil
}

// TopExpenses returns the n largest rows List would return.
func (s *QueryService) TopExpenses(ctx context.Context, actor core.Actor, filterText string, n int) ([]core.ExpenseRow, error) {
	if n <= 0 {
		return nil, core.ErrInvalidCount
	}
	rows, err := s.run(ctx, log.OpReport, actor, filterText)
	if err != nil {
		return nil, err
	}
	top, err := core.TopExpenses(rows, n)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, core.ActivityReportExpenses, strings.TrimSpace(fmt.Sprintf("top %d %s", n, filterText)))
	return top, nil
}

// AboveAverage returns the rows List would return that are above their
// category's average within that same set.
func (s *QueryService) AboveAverage(ctx context.Context, actor core.Actor, filterText string) ([]core.AboveAverage, error) {
	rows, err := s.run(ctx, log.OpReport, actor, filterText)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, core.ActivityReportExpenses, strings.TrimSpace("above_average "+filterText))
	return core.AboveCategoryAverage(rows), nil
}

// Export sends the matching rows to the configured exporter and returns how
// many were written.
func (s *QueryService) Export(ctx context.Context, actor core.Actor, filterText string) (int, error) {
	if s.exporter == nil {
		return 0, ErrExportDisabled
	}
	rows, err := s.run(ctx, log.OpExport, actor, filterText)
	if err != nil {
		return 0, err
	}
	n, err := s.exporter.ExportRows(ctx, rows)
	if err != nil {
		return n, fmt.Errorf("export rows: %w", err)
	}
	s.record(ctx, actor, core.ActivityExportExpenses, filterText)
	return n, nil
}

// Activities returns activity entries, newest first. Users may only read
// their own; admins read username's entries, or everyone's when username is
// empty.
func (s *QueryService) Activities(ctx context.Context, actor core.Actor, username string, limit int) ([]core.Activity, error) {
	if s.history == nil {
		return nil, fmt.Errorf("%w: activity log not available", ErrStoreUnavailable)
	}
	if actor.Role != core.RoleAdmin {
		if username != "" && username != actor.Username {
			return nil, ErrForbidden
		}
		username = actor.Username
	}
	acts, err := s.history.ListActivities(ctx, username, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return acts, nil
}

func (s *QueryService) run(ctx context.Context, op string, actor core.Actor, filterText string) ([]core.ExpenseRow, error) {
	scope := actor.Scope()

	set, err := filter.Parse(filterText)
	if err != nil {
		s.logger.WarnContext(ctx, "Rejected filter",
			log.NewFields().
				WithQuery(actor.Username, scope.String(), filterText).
				WithErrorKind(filter.KindName(err)).
				WithError(err).
				WithOperation(op).
				ToSlice()...)
		return nil, err
	}

	root := predicate.Build(set, scope)
	s.logger.DebugContext(ctx, "Built predicate", log.FieldOperation, op, "predicate", nodeString(root))

	rows, err := s.expenses.QueryExpenses(ctx, root, scope.AllRows)
	if err != nil {
		s.structured.LogError(ctx, "Expense query failed", err, log.ComponentQuery, op,
			log.NewFields().WithQuery(actor.Username, scope.String(), filterText))
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	s.structured.LogQuery(ctx, op, actor.Username, scope.String(), filterText, len(rows))
	return rows, nil
}

func (s *QueryService) record(ctx context.Context, actor core.Actor, kind, details string) {
	s.activity.record(ctx, core.Activity{Username: actor.Username, Type: kind, Details: details})
}

func nodeString(n predicate.Node) string {
	if n == nil {
		return "true"
	}
	return n.String()
}

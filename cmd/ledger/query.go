package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"ledger/internal/cli"
	"ledger/internal/core"
	"ledger/internal/report"
	"ledger/internal/services"
	"ledger/internal/store"
)

// session is an opened backend plus the services and acting user.
type session struct {
	backend  store.Backend
	svc      *services.QueryService
	expenses *services.ExpenseService
	actor    core.Actor
	format   report.Format
	closers  []func() error
}

func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i]()
	}
}

// openSession opens the backend, the optional broker and exporter, and
// resolves the acting user.
func (a *app) openSession(ctx context.Context, withExporter bool) (*session, error) {
	username, err := a.user()
	if err != nil {
		return nil, err
	}
	format, err := a.format()
	if err != nil {
		return nil, err
	}

	b, err := cli.OpenBackend(a.logger, a.cfg)
	if err != nil {
		return nil, err
	}
	s := &session{backend: b, format: format, closers: []func() error{b.Close}}

	opts := []services.Option{services.WithLogger(a.logger), services.WithActivityLister(b)}

	var publisher services.ActivityPublisher
	mq, err := cli.OpenAMQP(a.logger, a.cfg)
	if err != nil {
		// activities fall back to direct writes
		a.logger.Warn("AMQP unavailable, recording activities directly", "error", err)
	} else if mq != nil {
		s.closers = append(s.closers, mq.Close)
		publisher = mq
		opts = append(opts, services.WithPublisher(mq))
	}

	if withExporter {
		exp, err := cli.OpenExporter(ctx, a.logger, a.cfg)
		if err != nil {
			s.Close()
			return nil, err
		}
		if exp != nil {
			opts = append(opts, services.WithExporter(exp))
		}
	}

	s.svc = services.NewQueryService(b, b, b, opts...)
	s.expenses = services.NewExpenseService(b, b, publisher, a.logger)
	s.actor, err = s.svc.ResolveActor(ctx, username)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("resolve user %q: %w", username, err)
	}
	return s, nil
}

// filterArg rejoins a filter the shell split on spaces, so
// `ledger list amount>10, category=food` reads as one filter.
func filterArg(args []string) string {
	return strings.Join(args, " ")
}

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [filter...]",
		Short: "List expenses matching a filter",
		Long: `List the expenses visible to the acting user that match the filter.

A filter is a comma-separated list of field/operator/value expressions.
Fields: amount, category, date, month, payment_method, tag.
Operators: =, !=, <, >, <=, >=.
Constraints on amount and date are combined with AND; the other fields with OR.`,
		Example: `  ledger list --user alice 'amount>10,amount<100'
  ledger list --user root 'category=food,category=rent,month=june'`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer s.Close()

			rows, err := s.svc.List(cmd.Context(), s.actor, filterArg(args))
			if err != nil {
				return err
			}
			return report.WriteRows(cmd.OutOrStdout(), rows, s.format, s.actor.Scope().AllRows)
		},
	}
}

func (a *app) analyticsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analytics [filter...]",
		Short: "Summarize expenses matching a filter",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer s.Close()

			summary, err := s.svc.Analytics(cmd.Context(), s.actor, filterArg(args))
			if err != nil {
				return err
			}
			return report.WriteAnalytics(cmd.OutOrStdout(), summary, s.format)
		},
	}
}

func (a *app) reportCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "report", Short: "Ranked reports over filtered expenses"}

	top := &cobra.Command{
		Use:     "top <n> [filter...]",
		Short:   "Show the n largest expenses matching a filter",
		Example: `  ledger report top --user root 5 'date>=2023-01-01,date<=2023-12-31'`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("%w: %q", core.ErrInvalidCount, args[0])
			}
			s, err := a.openSession(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer s.Close()

			rows, err := s.svc.TopExpenses(cmd.Context(), s.actor, filterArg(args[1:]), n)
			if err != nil {
				return err
			}
			return report.WriteRows(cmd.OutOrStdout(), rows, s.format, s.actor.Scope().AllRows)
		},
	}

	above := &cobra.Command{
		Use:   "above-average [filter...]",
		Short: "Show expenses above their category average",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer s.Close()

			rows, err := s.svc.AboveAverage(cmd.Context(), s.actor, filterArg(args))
			if err != nil {
				return err
			}
			return report.WriteAboveAverage(cmd.OutOrStdout(), rows, s.format, s.actor.Scope().AllRows)
		},
	}

	cmd.AddCommand(top, above)
	return cmd
}

func (a *app) exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [filter...]",
		Short: "Append matching expenses to the configured Google Sheet",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := s.svc.Export(cmd.Context(), s.actor, filterArg(args))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d rows\n", n)
			return nil
		},
	}
}

func (a *app) activitiesCmd() *cobra.Command {
	var forUser string
	var limit int

	cmd := &cobra.Command{
		Use:   "activities",
		Short: "Show the activity log",
		Long:  `Show recorded activity, newest first. Admins may pass --for to pick a user; without it they see everyone.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.openSession(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer s.Close()

			acts, err := s.svc.Activities(cmd.Context(), s.actor, forUser, limit)
			if err != nil {
				return err
			}
			return report.WriteActivities(cmd.OutOrStdout(), acts, s.format)
		},
	}
	cmd.Flags().StringVar(&forUser, "for", "", "only show this user's activity (admins)")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of entries")
	return cmd
}

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
	"ledger/internal/store"
)

// withBackend opens the configured backend for the duration of fn.
func (a *app) withBackend(fn func(store.Backend) error) error {
	b, err := cli.OpenBackend(a.logger, a.cfg)
	if err != nil {
		return err
	}
	defer b.Close()
	return fn(b)
}

func (a *app) userCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Manage users"}

	var role string
	add := &cobra.Command{
		Use:   "add <username>",
		Short: "Create a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := core.ParseRole(role)
			if err != nil {
				return fmt.Errorf("%w %q: must be admin or user", err, role)
			}
			u := core.User{Username: args[0], Role: r}
			return a.withBackend(func(b store.Backend) error {
				if err := b.AddUser(cmd.Context(), u); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s %q\n", u.Role, u.Username)
				return nil
			})
		},
	}
	add.Flags().StringVar(&role, "role", string(core.RoleUser), "admin or user")

	list := &cobra.Command{
		Use:   "list",
		Short: "List users and their roles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := a.format()
			if err != nil {
				return err
			}
			return a.withBackend(func(b store.Backend) error {
				users, err := b.ListUsers(cmd.Context())
				if err != nil {
					return err
				}
				return report.WriteUsers(cmd.OutOrStdout(), users, format)
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <username>...",
		Short: "Delete users with their expenses and activity log",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withBackend(func(b store.Backend) error {
				for _, name := range args {
					if err := b.DeleteUser(cmd.Context(), name); err != nil {
						return fmt.Errorf("delete user %q: %w", name, err)
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d users\n", len(args))
				return nil
			})
		},
	}

	cmd.AddCommand(add, list, del)
	return cmd
}

func (a *app) categoryCmd() *cobra.Command {
	return a.nameCmd("category", "categories", nameOps{
		title:  "Category",
		add:    store.Backend.AddCategory,
		list:   store.Backend.ListCategories,
		remove: store.Backend.DeleteCategory,
	})
}

func (a *app) paymentCmd() *cobra.Command {
	return a.nameCmd("payment", "payment methods", nameOps{
		title:  "Payment method",
		add:    store.Backend.AddPaymentMethod,
		list:   store.Backend.ListPaymentMethods,
		remove: store.Backend.DeletePaymentMethod,
	})
}

// nameOps are the backend calls behind one reference table.
type nameOps struct {
	title  string
	add    func(store.Backend, context.Context, string) error
	list   func(store.Backend, context.Context) ([]string, error)
	remove func(store.Backend, context.Context, string) error
}

// nameCmd builds "<use> add|list|delete" for reference tables. Adding an
// existing name is a no-op; deleting a name still used by an expense fails.
func (a *app) nameCmd(use, plural string, ops nameOps) *cobra.Command {
	cmd := &cobra.Command{Use: use, Short: "Manage " + plural}
	cmd.AddCommand(&cobra.Command{
		Use:   "add <name>...",
		Short: "Add " + plural,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withBackend(func(b store.Backend) error {
				for _, name := range args {
					if err := ops.add(b, cmd.Context(), name); err != nil {
						return fmt.Errorf("add %s %q: %w", use, name, err)
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %d %s\n", len(args), plural)
				return nil
			})
		},
	}, &cobra.Command{
		Use:   "list",
		Short: "List " + plural,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := a.format()
			if err != nil {
				return err
			}
			return a.withBackend(func(b store.Backend) error {
				names, err := ops.list(b, cmd.Context())
				if err != nil {
					return err
				}
				return report.WriteNames(cmd.OutOrStdout(), ops.title, names, format)
			})
		},
	}, &cobra.Command{
		Use:   "delete <name>...",
		Short: "Delete unused " + plural,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withBackend(func(b store.Backend) error {
				for _, name := range args {
					if err := ops.remove(b, cmd.Context(), name); err != nil {
						return fmt.Errorf("delete %s %q: %w", use, name, err)
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d %s\n", len(args), plural)
				return nil
			})
		},
	})
	return cmd
}

func (a *app) expenseCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "expense", Short: "Record, change and delete expenses"}

	var date, amount, description, category, payment, detail, tag, owner string
	add := &cobra.Command{
		Use:   "add",
		Short: "Record one expense",
		Example: `  ledger expense add --user alice --date 2023-06-10 --amount 25 \
    --category food --payment cash --description groceries`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := core.ParseDate(date)
			if err != nil {
				return fmt.Errorf("date %q: %w", date, err)
			}
			amt, err := core.ParseAmount(amount)
			if err != nil {
				return fmt.Errorf("amount %q: %w", amount, err)
			}
			e := core.Expense{
				Date:          d,
				Amount:        amt,
				Description:   description,
				Category:      category,
				PaymentMethod: payment,
				PaymentDetail: detail,
				Tag:           tag,
				Owner:         owner,
			}

			s, err := a.openSession(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer s.Close()

			id, err := s.expenses.CreateExpense(cmd.Context(), s.actor, e)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded expense #%d\n", id)
			return nil
		},
	}
	f := add.Flags()
	f.StringVar(&date, "date", "", "date as YYYY-MM-DD")
	f.StringVar(&amount, "amount", "", "amount, negative for refunds")
	f.StringVar(&description, "description", "", "free text")
	f.StringVar(&category, "category", "", "category name")
	f.StringVar(&payment, "payment", "", "payment method name")
	f.StringVar(&detail, "detail", "", "card or account identifier")
	f.StringVar(&tag, "tag", "", "optional tag")
	f.StringVar(&owner, "owner", "", "owning user, admins only (defaults to --user)")
	_ = add.MarkFlagRequired("date")
	_ = add.MarkFlagRequired("amount")
	_ = add.MarkFlagRequired("category")
	_ = add.MarkFlagRequired("payment")

	update := &cobra.Command{
		Use:   "update <id> <field> <value>...",
		Short: "Change one field of an expense",
		Long: `Change one field of an expense. Field is one of amount, date,
description, category, tag or payment_method. An empty tag removes it.`,
		Example: `  ledger expense update --user alice 12 amount 30.50
  ledger expense update --user alice 12 description weekly shop
  ledger expense update --user alice 12 amount -- -4.99`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := expenseID(args[0])
			if err != nil {
				return err
			}
			change, err := core.ParseExpenseChange(args[1], strings.Join(args[2:], " "))
			if err != nil {
				return fmt.Errorf("%s: %w", args[1], err)
			}

			s, err := a.openSession(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.expenses.UpdateExpense(cmd.Context(), s.actor, id, change); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated expense #%d\n", id)
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an expense",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := expenseID(args[0])
			if err != nil {
				return err
			}

			s, err := a.openSession(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.expenses.DeleteExpense(cmd.Context(), s.actor, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted expense #%d\n", id)
			return nil
		},
	}

	cmd.AddCommand(add, update, del)
	return cmd
}

func expenseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid expense id %q", s)
	}
	return id, nil
}

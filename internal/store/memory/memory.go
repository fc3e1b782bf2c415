// Package memory is an in-process backend. Queries evaluate the predicate
// tree row by row with predicate.Eval.
package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"ledger/internal/core"
	"ledger/internal/predicate"
)

type Store struct {
	mu         sync.Mutex
	users      map[string]core.User
	categories map[string]struct{}
	payments   map[string]struct{}
	items      []core.Expense
	activities []core.Activity
	nextID     int64
}

func New(categories, paymentMethods []string) *Store {
	s := &Store{
		users:      make(map[string]core.User),
		categories: make(map[string]struct{}),
		payments:   make(map[string]struct{}),
	}
	for _, c := range dedupe(categories) {
		s.categories[core.NormalizeName(c)] = struct{}{}
	}
	for _, p := range dedupe(paymentMethods) {
		s.payments[core.NormalizeName(p)] = struct{}{}
	}
	return s
}

// NewFromFiles seeds reference names from seed_categories.txt and
// seed_payment_methods.txt under base, one name per line.
func NewFromFiles(base string) *Store {
	cats := readLines(filepath.Join(base, "seed_categories.txt"))
	pays := readLines(filepath.Join(base, "seed_payment_methods.txt"))
	if len(cats) == 0 {
		cats = []string{"food", "rent", "utilities", "transport"}
	}
	if len(pays) == 0 {
		pays = []string{"cash", "card"}
	}
	return New(cats, pays)
}

func (s *Store) QueryExpenses(_ context.Context, root predicate.Node, includeOwner bool) ([]core.ExpenseRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.ExpenseRow
	for _, e := range s.items {
		if !predicate.Eval(root, record(e)) {
			continue
		}
		out = append(out, row(e, includeOwner))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) AddExpense(_ context.Context, e core.Expense) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[e.Owner]; !ok {
		return 0, fmt.Errorf("%w: %s", core.ErrUserNotFound, e.Owner)
	}
	e.Category = core.NormalizeName(e.Category)
	if _, ok := s.categories[e.Category]; !ok {
		return 0, fmt.Errorf("%w: %s", core.ErrUnknownCategory, e.Category)
	}
	e.PaymentMethod = core.NormalizeName(e.PaymentMethod)
	if _, ok := s.payments[e.PaymentMethod]; !ok {
		return 0, fmt.Errorf("%w: %s", core.ErrUnknownPaymentMethod, e.PaymentMethod)
	}
	e.Tag = core.NormalizeName(e.Tag)
	e.PaymentDetail = strings.TrimSpace(e.PaymentDetail)
	e.Amount = e.Amount.Round(2)

	s.nextID++
	e.ID = s.nextID
	s.items = append(s.items, e)
	return e.ID, nil
}

func (s *Store) AddCategory(_ context.Context, name string) error {
	name = core.NormalizeName(name)
	if name == "" {
		return core.ErrEmptyCategory
	}
	s.mu.Lock()
	s.categories[name] = struct{}{}
	s.mu.Unlock()
	return nil
}

func (s *Store) AddPaymentMethod(_ context.Context, name string) error {
	name = core.NormalizeName(name)
	if name == "" {
		return core.ErrEmptyPayment
	}
	s.mu.Lock()
	s.payments[name] = struct{}{}
	s.mu.Unlock()
	return nil
}

func (s *Store) AddUser(_ context.Context, u core.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	role, _ := core.ParseRole(string(u.Role))
	name := strings.TrimSpace(u.Username)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[name]; ok {
		return fmt.Errorf("%w: %s", core.ErrUserExists, name)
	}
	s.users[name] = core.User{Username: name, Role: role}
	return nil
}

func (s *Store) GetUser(_ context.Context, username string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		return core.User{}, fmt.Errorf("%w: %s", core.ErrUserNotFound, username)
	}
	return u, nil
}

func (s *Store) RecordActivity(_ context.Context, a core.Activity) error {
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = int64(len(s.activities) + 1)
	s.activities = append(s.activities, a)
	return nil
}

func (s *Store) ListActivities(_ context.Context, username string, limit int) ([]core.Activity, error) {
	if limit <= 0 {
		limit = 100
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Activity
	for i := len(s.activities) - 1; i >= 0 && len(out) < limit; i-- {
		a := s.activities[i]
		if username != "" && a.Username != username {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *Store) UpdateExpense(_ context.Context, id int64, c core.ExpenseChange) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: #%d", core.ErrExpenseNotFound, id)
	}
	e := s.items[i]
	c.Apply(&e)
	switch c.Field {
	case core.ChangeCategory:
		if _, ok := s.categories[e.Category]; !ok {
			return fmt.Errorf("%w: %s", core.ErrUnknownCategory, e.Category)
		}
	case core.ChangePaymentMethod:
		if _, ok := s.payments[e.PaymentMethod]; !ok {
			return fmt.Errorf("%w: %s", core.ErrUnknownPaymentMethod, e.PaymentMethod)
		}
	}
	s.items[i] = e
	return nil
}

func (s *Store) DeleteExpense(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: #%d", core.ErrExpenseNotFound, id)
	}
	s.items = slices.Delete(s.items, i, i+1)
	return nil
}

func (s *Store) ExpenseOwner(_ context.Context, id int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return "", fmt.Errorf("%w: #%d", core.ErrExpenseNotFound, id)
	}
	return s.items[i].Owner, nil
}

// ListUsers returns every user ordered by username.
func (s *Store) ListUsers(context.Context) ([]core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]core.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

// ListCategories returns the known category names, sorted.
func (s *Store) ListCategories(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedKeys(s.categories), nil
}

// ListPaymentMethods returns the known payment method names, sorted.
func (s *Store) ListPaymentMethods(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedKeys(s.payments), nil
}

// DeleteUser drops username with their expenses and activity entries.
func (s *Store) DeleteUser(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[username]; !ok {
		return fmt.Errorf("%w: %s", core.ErrUserNotFound, username)
	}
	s.items = slices.DeleteFunc(s.items, func(e core.Expense) bool { return e.Owner == username })
	s.activities = slices.DeleteFunc(s.activities, func(a core.Activity) bool { return a.Username == username })
	delete(s.users, username)
	return nil
}

func (s *Store) DeleteCategory(_ context.Context, name string) error {
	return s.deleteName(s.categories, name, core.ErrUnknownCategory, core.ErrCategoryInUse,
		func(e core.Expense) string { return e.Category })
}

func (s *Store) DeletePaymentMethod(_ context.Context, name string) error {
	return s.deleteName(s.payments, name, core.ErrUnknownPaymentMethod, core.ErrPaymentMethodInUse,
		func(e core.Expense) string { return e.PaymentMethod })
}

// deleteName removes name from names unless an expense still refers to it.
func (s *Store) deleteName(names map[string]struct{}, name string, errMissing, errInUse error, ref func(core.Expense) string) error {
	name = core.NormalizeName(name)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := names[name]; !ok {
		return fmt.Errorf("%w: %s", errMissing, name)
	}
	n := 0
	for _, e := range s.items {
		if ref(e) == name {
			n++
		}
	}
	if n > 0 {
		return fmt.Errorf("%w: %s is used by %d expenses", errInUse, name, n)
	}
	delete(names, name)
	return nil
}

// indexOf returns the position of id in s.items, or -1. Callers hold s.mu.
func (s *Store) indexOf(id int64) int {
	return slices.IndexFunc(s.items, func(e core.Expense) bool { return e.ID == id })
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func record(e core.Expense) predicate.Record {
	return predicate.Record{
		Owner:         e.Owner,
		Date:          e.Date.String(),
		Amount:        e.Amount,
		Category:      optional(e.Category),
		Tag:           optional(e.Tag),
		PaymentMethod: optional(e.PaymentMethod),
	}
}

func row(e core.Expense, includeOwner bool) core.ExpenseRow {
	r := core.ExpenseRow{
		ID:            e.ID,
		Date:          e.Date.String(),
		Amount:        e.Amount,
		Description:   e.Description,
		Category:      optional(e.Category),
		Tag:           optional(e.Tag),
		PaymentMethod: optional(e.PaymentMethod),
		PaymentDetail: optional(e.PaymentDetail),
	}
	if includeOwner {
		r.Owner = e.Owner
	}
	return r
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return dedupe(out)
}

// dedupe drops blanks and repeats, keeping first-seen order.
func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = core.NormalizeName(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

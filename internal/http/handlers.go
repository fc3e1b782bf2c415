package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"ledger/internal/core"
	"ledger/internal/filter"
	"ledger/internal/log"
	"ledger/internal/services"
)

const maxActivityLimit = 1000

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

type expensesResponse struct {
	Count int               `json:"count"`
	Rows  []core.ExpenseRow `json:"rows"`
}

type activitiesResponse struct {
	Count      int             `json:"count"`
	Activities []core.Activity `json:"activities"`
}

func (s *Server) handleExpenses(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	rows, err := s.queries.List(r.Context(), actor, r.URL.Query().Get("filter"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if rows == nil {
		rows = []core.ExpenseRow{}
	}
	writeJSON(w, http.StatusOK, expensesResponse{Count: len(rows), Rows: rows})
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	a, err := s.queries.Analytics(r.Context(), actor, r.URL.Query().Get("filter"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleActivities(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}

	limit := 0
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxActivityLimit {
			writeJSON(w, http.StatusBadRequest, errorResponse{
				Error: "limit must be a number between 1 and " + strconv.Itoa(maxActivityLimit),
				Kind:  "InvalidParameter",
			})
			return
		}
		limit = n
	}

	acts, err := s.queries.Activities(r.Context(), actor, r.URL.Query().Get("user"), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if acts == nil {
		acts = []core.Activity{}
	}
	writeJSON(w, http.StatusOK, activitiesResponse{Count: len(acts), Activities: acts})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	tm := s.tracer.GetMetrics()
	rm := s.limiter.GetMetrics()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"requests":      tm.TotalRequests,
		"server_errors": tm.ServerErrors,
		"rate_limited":  rm.Limited,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "store not reachable", Kind: "StoreUnavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusTooManyRequests, errorResponse{
		Error: "rate limit exceeded, try again later",
		Kind:  "RateLimited",
	})
}

// actor resolves the acting user from UserHeader. On failure it writes the
// response and returns false.
func (s *Server) actor(w http.ResponseWriter, r *http.Request) (core.Actor, bool) {
	username := strings.TrimSpace(r.Header.Get(UserHeader))
	if username == "" {
		writeJSON(w, http.StatusUnauthorized, errorResponse{
			Error: "missing " + UserHeader + " header",
			Kind:  "Unauthenticated",
		})
		return core.Actor{}, false
	}

	actor, err := s.resolveActor(r.Context(), username)
	if err != nil {
		s.writeError(w, r, err)
		return core.Actor{}, false
	}
	return actor, true
}

func (s *Server) resolveActor(ctx context.Context, username string) (core.Actor, error) {
	if s.actors != nil {
		if a, ok := s.actors.Get(username); ok {
			return a, nil
		}
	}
	a, err := s.queries.ResolveActor(ctx, username)
	if err != nil {
		return core.Actor{}, err
	}
	if s.actors != nil {
		s.actors.Set(username, a)
	}
	return a, nil
}

// writeError maps service errors to status codes. Filter errors carry
// their kind name so clients can tell them apart.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	logger := log.FromContext(r.Context())

	if kind := filter.KindName(err); kind != "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: kind})
		return
	}

	switch {
	case errors.Is(err, core.ErrUserNotFound):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unknown user", Kind: "UnknownUser"})
	case errors.Is(err, services.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: err.Error(), Kind: "Forbidden"})
	case errors.Is(err, services.ErrStoreUnavailable):
		logger.ErrorContext(r.Context(), "Store unavailable", log.FieldError, err)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "store unavailable", Kind: "StoreUnavailable"})
	default:
		logger.ErrorContext(r.Context(), "Request failed", log.FieldError, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error", Kind: "Internal"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

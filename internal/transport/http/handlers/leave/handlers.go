package leavehandler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"intranet/internal/domain/auth"
	"intranet/internal/domain/leave"
	"intranet/internal/platform/jobs"
	"intranet/internal/transport/http/api"
	"intranet/internal/transport/http/middleware"
	"intranet/internal/transport/http/shared"
)

type Handler struct {
	Service *leave.Service
	Jobs    *jobs.Service
}

const defaultExpiringDays = 30

func NewHandler(service *leave.Service, jobsSvc *jobs.Service) *Handler {
	return &Handler{Service: service, Jobs: jobsSvc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/leave", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermLeaveRead)).Get("/calculate", h.handleCalculate)
		r.With(middleware.RequirePermission(auth.PermLeaveAdmin)).Get("/expiring", h.handleListExpiring)
		r.With(middleware.RequirePermission(auth.PermLeaveAdmin)).Post("/expiring/notify", h.handleNotifyExpiring)
		r.With(middleware.RequirePermission(auth.PermLeaveRead)).Get("/{year}", h.handleGet)
		r.With(middleware.RequirePermission(auth.PermLeaveAdmin)).Post("/{year}/adjust", h.handleAdjust)
		r.With(middleware.RequirePermission(auth.PermLeaveAdmin)).Get("/{year}/adjustments", h.handleListAdjustments)
		r.With(middleware.RequirePermission(auth.PermLeaveAdmin)).Post("/{year}/initialize", h.handleInitialize)
		r.With(middleware.RequirePermission(auth.PermLeaveAdmin)).Get("/{year}/statistics", h.handleStatistics)
	})
}

type adjustRequest struct {
	UserID string          `json:"userId"`
	Hours  decimal.Decimal `json:"hours"`
	Reason string          `json:"reason"`
}

type leaveView struct {
	leave.AnnualLeave
	RemainingDays decimal.Decimal `json:"remainingDays"`
}

// handleGet returns the caller's entry for the year. HR may pass userId to
// read someone else's.
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	year, ok := shared.ParseYear(chi.URLParam(r, "year"))
	if !ok {
		api.Fail(w, http.StatusBadRequest, "invalid_year", "year must be a four digit year", middleware.GetRequestID(r.Context()))
		return
	}

	userID := user.UserID
	if other := strings.TrimSpace(r.URL.Query().Get("userId")); other != "" && other != user.UserID {
		if !auth.HasPermission(user.Role, auth.PermLeaveAdmin) {
			api.Fail(w, http.StatusForbidden, "forbidden", "insufficient permissions", middleware.GetRequestID(r.Context()))
			return
		}
		userID = other
	}

	entry, err := h.Service.GetOrCreate(r.Context(), userID, year)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, leaveView{AnnualLeave: entry, RemainingDays: entry.RemainingDays()}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCalculate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	v := shared.NewValidator()
	start, _ := v.Date("startAt", q.Get("startAt"))
	end, _ := v.Date("endAt", q.Get("endAt"))
	v.DateOrder("startAt", start, "endAt", end)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	hours, days, err := leave.CalculateLeaveHours(start, end, q.Get("hourly") == "true")
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]decimal.Decimal{"hours": hours, "days": days}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleAdjust(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	year, ok := shared.ParseYear(chi.URLParam(r, "year"))
	if !ok {
		api.Fail(w, http.StatusBadRequest, "invalid_year", "year must be a four digit year", middleware.GetRequestID(r.Context()))
		return
	}
	var payload adjustRequest
	if !shared.DecodeJSON(w, r, &payload, middleware.GetRequestID(r.Context())) {
		return
	}

	v := shared.NewValidator()
	v.Required("userId", payload.UserID, "required")
	v.Required("reason", payload.Reason, "required")
	if payload.Hours.IsZero() {
		v.Add("hours", "must not be zero")
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	entry, err := h.Service.AdjustLeave(r.Context(), strings.TrimSpace(payload.UserID), year, payload.Hours, payload.Reason, user.UserID)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, leaveView{AnnualLeave: entry, RemainingDays: entry.RemainingDays()}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListAdjustments(w http.ResponseWriter, r *http.Request) {
	year, ok := shared.ParseYear(chi.URLParam(r, "year"))
	if !ok {
		api.Fail(w, http.StatusBadRequest, "invalid_year", "year must be a four digit year", middleware.GetRequestID(r.Context()))
		return
	}
	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	if userID == "" {
		shared.FailValidation(w, middleware.GetRequestID(r.Context()), []shared.ValidationIssue{{Field: "userId", Reason: "required"}})
		return
	}
	items, err := h.Service.ListAdjustments(r.Context(), userID, year)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	if items == nil {
		items = []leave.Adjustment{}
	}
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

// handleInitialize runs the year initialization synchronously. With a job
// service attached the run is recorded like a scheduled one.
func (h *Handler) handleInitialize(w http.ResponseWriter, r *http.Request) {
	year, ok := shared.ParseYear(chi.URLParam(r, "year"))
	if !ok {
		api.Fail(w, http.StatusBadRequest, "invalid_year", "year must be a four digit year", middleware.GetRequestID(r.Context()))
		return
	}
	run := func(ctx context.Context) (any, error) {
		return h.Service.InitializeForYear(ctx, year)
	}

	var (
		summary any
		err     error
	)
	if h.Jobs != nil {
		summary, err = h.Jobs.RunNow(r.Context(), jobs.JobLeaveYearInit, run)
	} else {
		summary, err = run(r.Context())
	}
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, summary, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleStatistics(w http.ResponseWriter, r *http.Request) {
	year, ok := shared.ParseYear(chi.URLParam(r, "year"))
	if !ok {
		api.Fail(w, http.StatusBadRequest, "invalid_year", "year must be a four digit year", middleware.GetRequestID(r.Context()))
		return
	}
	stats, err := h.Service.GetDepartmentStatistics(r.Context(), year)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, stats, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListExpiring(w http.ResponseWriter, r *http.Request) {
	days := defaultExpiringDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			shared.FailValidation(w, middleware.GetRequestID(r.Context()), []shared.ValidationIssue{{Field: "days", Reason: "must be a number"}})
			return
		}
		days = parsed
	}
	items, err := h.Service.GetExpiringLeaves(r.Context(), days)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	if items == nil {
		items = []leave.AnnualLeave{}
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(len(items)))
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleNotifyExpiring(w http.ResponseWriter, r *http.Request) {
	if h.Jobs == nil {
		api.Fail(w, http.StatusServiceUnavailable, "jobs_disabled", "background jobs are not configured", middleware.GetRequestID(r.Context()))
		return
	}
	details, err := h.Jobs.RunNow(r.Context(), jobs.JobLeaveExpiryNotice, h.Jobs.NotifyExpiring)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, details, middleware.GetRequestID(r.Context()))
}

package subscriptions

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/subsavvy/subsavvy/internal/billing"
	domain "github.com/subsavvy/subsavvy/internal/domain/subscription"
	"github.com/subsavvy/subsavvy/internal/lib/civil"
	service "github.com/subsavvy/subsavvy/internal/services/subscriptions"
)

const (
	basePath      = "/api/v1/subscriptions"
	remindersPath = "/api/v1/reminders"
)

type Handler struct {
	service *service.Service
	logger  *slog.Logger
}

func New(svc *service.Service, logger *slog.Logger) *Handler {
	return &Handler{service: svc, logger: logger.WithGroup("subscriptions_http")}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc(remindersPath, h.handleReminders)
	mux.HandleFunc(basePath, h.handleBase)
	mux.HandleFunc(basePath+"/", h.handleWithID)
}

func (h *Handler) handleBase(w http.ResponseWriter, r *http.Request) {
	h.logger.Debug("handling base route", slog.String("method", r.Method), slog.String("path", r.URL.Path))
	switch r.Method {
	case http.MethodPost:
		h.handleCreate(w, r)
	case http.MethodGet:
		h.handleList(w, r)
	default:
		h.logger.Warn("method not allowed", slog.String("method", r.Method), slog.String("path", r.URL.Path))
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleWithID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, basePath+"/")
	idStr, action, _ := strings.Cut(rest, "/")
	if idStr == "" {
		h.logger.Warn("subscription id is required", slog.String("path", r.URL.Path))
		http.NotFound(w, r)
		return
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		h.logger.Warn("failed to parse subscription id", slog.String("subscription_id", idStr), slog.Any("error", err))
		http.Error(w, "invalid subscription id", http.StatusBadRequest)
		return
	}

	if action == "pay" {
		if r.Method != http.MethodPost {
			h.logger.Warn("method not allowed", slog.String("method", r.Method), slog.String("path", r.URL.Path))
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleMarkPaid(w, r, id)
		return
	}

	if action != "" {
		http.NotFound(w, r)
		return
	}

	h.logger.Debug("handling request with subscription id", slog.String("method", r.Method), slog.String("path", r.URL.Path), slog.String("subscription_id", id.String()))
	switch r.Method {
	case http.MethodGet:
		h.handleGet(w, r, id)
	case http.MethodPut:
		h.handleUpdate(w, r, id)
	case http.MethodDelete:
		h.handleDelete(w, r, id)
	default:
		h.logger.Warn("method not allowed", slog.String("method", r.Method), slog.String("path", r.URL.Path))
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode create request", slog.Any("error", err))
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	input, err := req.toCreateInput()
	if err != nil {
		h.logger.Warn("invalid create request", slog.Any("error", err))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sub, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.writeServiceError(w, err, "failed to create subscription")
		return
	}

	h.logger.Info("subscription created", slog.String("subscription_id", sub.ID.String()))
	writeJSON(w, http.StatusCreated, subscriptionResponseFromDomain(sub))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	sub, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "failed to get subscription")
		return
	}

	writeJSON(w, http.StatusOK, subscriptionResponseFromDomain(sub))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode update request", slog.String("subscription_id", id.String()), slog.Any("error", err))
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	input, err := req.toUpdateInput()
	if err != nil {
		h.logger.Warn("invalid update request", slog.String("subscription_id", id.String()), slog.Any("error", err))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sub, err := h.service.Update(r.Context(), id, input)
	if err != nil {
		h.writeServiceError(w, err, "failed to update subscription")
		return
	}

	h.logger.Info("subscription updated", slog.String("subscription_id", sub.ID.String()))
	writeJSON(w, http.StatusOK, subscriptionResponseFromDomain(sub))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, err, "failed to delete subscription")
		return
	}

	h.logger.Info("subscription deleted", slog.String("subscription_id", id.String()))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMarkPaid(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	sub, err := h.service.MarkPaid(r.Context(), id, civil.Today())
	if err != nil {
		h.writeServiceError(w, err, "failed to mark subscription paid")
		return
	}

	writeJSON(w, http.StatusOK, subscriptionResponseFromDomain(sub))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		h.logger.Warn("invalid list filter", slog.Any("error", err))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	subs, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, err, "failed to list subscriptions")
		return
	}

	resp := make([]subscriptionResponse, 0, len(subs))
	for _, sub := range subs {
		resp = append(resp, subscriptionResponseFromDomain(sub))
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleReminders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.logger.Warn("method not allowed", slog.String("method", r.Method), slog.String("path", r.URL.Path))
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	horizon := 0
	if days := r.URL.Query().Get("days"); days != "" {
		parsed, err := strconv.Atoi(days)
		if err != nil || parsed <= 0 {
			h.logger.Warn("invalid reminder horizon", slog.String("days", days))
			http.Error(w, "invalid days", http.StatusBadRequest)
			return
		}
		horizon = parsed
	}

	reminders, err := h.service.Reminders(r.Context(), civil.Today(), horizon)
	if err != nil {
		h.writeServiceError(w, err, "failed to list reminders")
		return
	}

	resp := make([]reminderResponse, 0, len(reminders))
	for _, rem := range reminders {
		resp = append(resp, reminderResponseFromService(rem))
	}

	writeJSON(w, http.StatusOK, resp)
}

// writeServiceError maps domain sentinels onto HTTP statuses: invalid input
// is the client's fault, precondition failures are a conflict with current
// state, anything unknown stays a 500 without leaking internals.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "subscription not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrPreconditionFailed):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		h.logger.Error(msg, slog.Any("error", err))
		http.Error(w, msg, http.StatusInternalServerError)
	}
}

type createRequest struct {
	Name             string          `json:"name"`
	Cost             decimal.Decimal `json:"cost"`
	Category         string          `json:"category"`
	BillingCycle     string          `json:"billing_cycle"`
	FirstPaymentDate string          `json:"first_payment_date"`
	Notes            string          `json:"notes"`
}

func (r createRequest) toCreateInput() (domain.CreateInput, error) {
	category, err := domain.ParseCategory(r.Category)
	if err != nil {
		return domain.CreateInput{}, err
	}

	cycle, err := billing.ParseCycle(r.BillingCycle)
	if err != nil {
		return domain.CreateInput{}, errors.New("invalid billing_cycle, expected monthly or yearly")
	}

	anchor, err := civil.Parse(r.FirstPaymentDate)
	if err != nil {
		return domain.CreateInput{}, errors.New("invalid first_payment_date, expected YYYY-MM-DD")
	}

	return domain.CreateInput{
		Name:         r.Name,
		Cost:         r.Cost,
		Category:     category,
		BillingCycle: cycle,
		FirstPayment: anchor,
		Notes:        r.Notes,
	}, nil
}

type updateRequest struct {
	Name         string          `json:"name"`
	Cost         decimal.Decimal `json:"cost"`
	Category     string          `json:"category"`
	BillingCycle string          `json:"billing_cycle"`
	NextPayment  string          `json:"next_payment"`
	Notes        string          `json:"notes"`
}

func (r updateRequest) toUpdateInput() (domain.UpdateInput, error) {
	category, err := domain.ParseCategory(r.Category)
	if err != nil {
		return domain.UpdateInput{}, err
	}

	cycle, err := billing.ParseCycle(r.BillingCycle)
	if err != nil {
		return domain.UpdateInput{}, errors.New("invalid billing_cycle, expected monthly or yearly")
	}

	next, err := civil.Parse(r.NextPayment)
	if err != nil {
		return domain.UpdateInput{}, errors.New("invalid next_payment, expected YYYY-MM-DD")
	}

	return domain.UpdateInput{
		Name:         r.Name,
		Cost:         r.Cost,
		Category:     category,
		BillingCycle: cycle,
		NextPayment:  next,
		Notes:        r.Notes,
	}, nil
}

type subscriptionResponse struct {
	ID           uuid.UUID       `json:"id"`
	Name         string          `json:"name"`
	Cost         decimal.Decimal `json:"cost"`
	Category     string          `json:"category"`
	BillingCycle string          `json:"billing_cycle"`
	NextPayment  string          `json:"next_payment"`
	Notes        string          `json:"notes"`
	MonthlyCost  decimal.Decimal `json:"monthly_cost"`
	AnnualCost   decimal.Decimal `json:"annual_cost"`
}

func subscriptionResponseFromDomain(sub domain.Subscription) subscriptionResponse {
	return subscriptionResponse{
		ID:           sub.ID,
		Name:         sub.Name,
		Cost:         sub.Cost,
		Category:     sub.Category.String(),
		BillingCycle: sub.BillingCycle.String(),
		NextPayment:  sub.NextPayment.String(),
		Notes:        sub.Notes,
		MonthlyCost:  sub.MonthlyCost(),
		AnnualCost:   sub.AnnualCost(),
	}
}

type reminderResponse struct {
	subscriptionResponse
	Status         string `json:"status"`
	StatusLabel    string `json:"status_label"`
	DaysUntilDue   int    `json:"days_until_due"`
	CanMarkPaidNow bool   `json:"can_mark_paid_now"`
}

func reminderResponseFromService(rem service.Reminder) reminderResponse {
	return reminderResponse{
		subscriptionResponse: subscriptionResponseFromDomain(rem.Subscription),
		Status:               string(rem.Classification.Tier),
		StatusLabel:          rem.Classification.Tier.Label(),
		DaysUntilDue:         rem.Classification.DaysUntilDue,
		CanMarkPaidNow:       rem.Classification.CanMarkPaidNow,
	}
}

func parseListFilter(r *http.Request) (domain.ListFilter, error) {
	var filter domain.ListFilter

	if category := r.URL.Query().Get("category"); category != "" {
		parsed, err := domain.ParseCategory(category)
		if err != nil {
			return domain.ListFilter{}, errors.New("invalid category")
		}
		filter.Category = &parsed
	}

	if cycle := r.URL.Query().Get("billing_cycle"); cycle != "" {
		parsed, err := billing.ParseCycle(cycle)
		if err != nil {
			return domain.ListFilter{}, errors.New("invalid billing_cycle")
		}
		filter.BillingCycle = &parsed
	}

	if due := r.URL.Query().Get("due_before"); due != "" {
		parsed, err := civil.Parse(due)
		if err != nil {
			return domain.ListFilter{}, errors.New("invalid due_before, expected YYYY-MM-DD")
		}
		filter.DueBefore = &parsed
	}

	if limit := r.URL.Query().Get("limit"); limit != "" {
		parsed, err := strconv.Atoi(limit)
		if err != nil || parsed < 0 {
			return domain.ListFilter{}, errors.New("invalid limit")
		}
		filter.Limit = parsed
	}

	if offset := r.URL.Query().Get("offset"); offset != "" {
		parsed, err := strconv.Atoi(offset)
		if err != nil || parsed < 0 {
			return domain.ListFilter{}, errors.New("invalid offset")
		}
		filter.Offset = parsed
	}

	return filter, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Default().Error("failed to encode response", slog.Any("error", err))
	}
}

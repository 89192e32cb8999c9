// File: internal/infra/api/handlers.go
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"goshopper-backend/internal/domain"
	"goshopper-backend/internal/domain/model"
	"goshopper-backend/internal/infra/logging"
	"goshopper-backend/internal/infra/metrics"
	"goshopper-backend/internal/usecase"
)

// Handlers exposes the authenticated API surface. The caller's identity
// always comes from the Auth middleware, never from request bodies.
type Handlers struct {
	payUC     usecase.PaymentUseCase
	subUC     usecase.SubscriptionUseCase
	pricingUC usecase.PricingUseCase
	scanUC    usecase.ScanUseCase
	validate  *validator.Validate
	log       *zerolog.Logger
}

func NewHandlers(payUC usecase.PaymentUseCase, subUC usecase.SubscriptionUseCase, pricingUC usecase.PricingUseCase, scanUC usecase.ScanUseCase, logger *zerolog.Logger) *Handlers {
	l := logger.With().Str("component", "api").Logger()
	return &Handlers{
		payUC:     payUC,
		subUC:     subUC,
		pricingUC: pricingUC,
		scanUC:    scanUC,
		validate:  validator.New(),
		log:       &l,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

// writeDomainError maps domain sentinels to HTTP codes. Internal error text
// never reaches the client for 5xx.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		writeJSONError(w, http.StatusBadRequest, "invalid request")
	case errors.Is(err, domain.ErrUnauthenticated):
		writeJSONError(w, http.StatusUnauthorized, "unauthenticated")
	case errors.Is(err, domain.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrNoActiveSubscription):
		writeJSONError(w, http.StatusForbidden, "no active subscription, subscribe to continue")
	case errors.Is(err, domain.ErrQuotaExhausted):
		writeJSONError(w, http.StatusTooManyRequests, "scan limit reached for this billing period, upgrade to continue")
	case errors.Is(err, domain.ErrTrialAlreadyExtended),
		errors.Is(err, domain.ErrTrialWindowClosed),
		errors.Is(err, domain.ErrTrialStillActive),
		errors.Is(err, domain.ErrPaymentTerminal):
		writeJSONError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrProviderUnavailable):
		writeJSONError(w, http.StatusServiceUnavailable, "payment provider unavailable, try again shortly")
	default:
		writeJSONError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handlers) decodeValid(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "malformed json body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return false
	}
	return true
}

// ===== payments =====

type initiatePaymentRequest struct {
	PlanID         string `json:"planId" validate:"required,oneof=basic standard premium"`
	DurationMonths int    `json:"durationMonths" validate:"required,oneof=1 3 6 12"`
	Currency       string `json:"currency" validate:"omitempty,oneof=USD CDF"`
	Provider       string `json:"provider" validate:"required,oneof=stripe mpesa orange airtel afrimoney"`
	PhoneNumber    string `json:"phoneNumber" validate:"omitempty,e164"`
	Email          string `json:"email" validate:"omitempty,email"`
}

type initiatePaymentResponse struct {
	TransactionID     string `json:"transactionId"`
	Amount            int64  `json:"amount"`
	Currency          string `json:"currency"`
	ContinuationToken string `json:"continuationToken,omitempty"`
	Message           string `json:"message,omitempty"`
}

func (h *Handlers) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	userID := logging.UserIDFromContext(r.Context())
	var req initiatePaymentRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	res, err := h.payUC.Initiate(r.Context(), userID, usecase.InitiateInput{
		PlanID:         model.PlanID(req.PlanID),
		DurationMonths: req.DurationMonths,
		Currency:       req.Currency,
		Provider:       model.PaymentProvider(req.Provider),
		PhoneNumber:    req.PhoneNumber,
		Email:          req.Email,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, initiatePaymentResponse{
		TransactionID:     res.TransactionID,
		Amount:            res.Amount,
		Currency:          res.Currency,
		ContinuationToken: res.ContinuationToken,
		Message:           res.Message,
	})
}

type confirmPaymentRequest struct {
	TransactionID string `json:"transactionId" validate:"required"`
}

type confirmPaymentResponse struct {
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
	PlanID        string `json:"planId"`
}

func (h *Handlers) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	userID := logging.UserIDFromContext(r.Context())
	var req confirmPaymentRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	out, err := h.payUC.ConfirmPoll(r.Context(), userID, req.TransactionID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if out.Transitioned {
		metrics.IncPayment(string(out.Payment.Provider), string(out.Payment.Status))
		if out.Payment.Status == model.PaymentStatusCompleted {
			metrics.AddPaymentRevenue(out.Payment.Currency, out.Payment.Amount)
		}
	}
	writeJSON(w, http.StatusOK, confirmPaymentResponse{
		TransactionID: out.Payment.TransactionID,
		Status:        string(out.Payment.Status),
		PlanID:        string(out.Payment.PlanID),
	})
}

// ===== subscription =====

type subscriptionResponse struct {
	PlanID             string     `json:"planId"`
	Status             string     `json:"status"`
	IsSubscribed       bool       `json:"isSubscribed"`
	AutoRenew          bool       `json:"autoRenew"`
	SubscriptionEnd    *time.Time `json:"subscriptionEndDate,omitempty"`
	TrialEndDate       time.Time  `json:"trialEndDate"`
	CanScan            bool       `json:"canScan"`
	ScansRemaining     int        `json:"scansRemaining"`
	IsTrialActive      bool       `json:"isTrialActive"`
	TrialDaysRemaining int        `json:"trialDaysRemaining"`
}

func subscriptionView(v *usecase.SubscriptionStatusView) subscriptionResponse {
	return subscriptionResponse{
		PlanID:             string(v.Subscription.PlanID),
		Status:             string(v.Subscription.Status),
		IsSubscribed:       v.Subscription.IsSubscribed,
		AutoRenew:          v.Subscription.AutoRenew,
		SubscriptionEnd:    v.Subscription.SubscriptionEndDate,
		TrialEndDate:       v.Subscription.TrialEndDate,
		CanScan:            v.CanScan,
		ScansRemaining:     v.ScansRemaining,
		IsTrialActive:      v.IsTrialActive,
		TrialDaysRemaining: v.TrialDaysRemaining,
	}
}

func (h *Handlers) GetSubscription(w http.ResponseWriter, r *http.Request) {
	userID := logging.UserIDFromContext(r.Context())
	view, err := h.subUC.Status(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, subscriptionView(view))
}

type priceQuery struct {
	PlanID   string `validate:"required,oneof=basic standard premium"`
	Months   int    `validate:"required,oneof=1 3 6 12"`
	Currency string `validate:"omitempty,oneof=USD CDF"`
}

type priceResponse struct {
	PlanID            string `json:"planId"`
	DurationMonths    int    `json:"durationMonths"`
	Currency          string `json:"currency"`
	Total             int64  `json:"total"`
	MonthlyEquivalent int64  `json:"monthlyEquivalent"`
	Savings           int64  `json:"savings"`
	DiscountPercent   int    `json:"discountPercent"`
}

func (h *Handlers) GetPrice(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	months := 1
	if m := q.Get("months"); m != "" {
		v, err := strconv.Atoi(m)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "months must be an integer")
			return
		}
		months = v
	}
	pq := priceQuery{PlanID: q.Get("planId"), Months: months, Currency: q.Get("currency")}
	if err := h.validate.Struct(pq); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	quote, err := h.pricingUC.Quote(model.PlanID(pq.PlanID), pq.Months, pq.Currency)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, priceResponse{
		PlanID:            string(quote.PlanID),
		DurationMonths:    quote.DurationMonths,
		Currency:          quote.Currency,
		Total:             quote.Total,
		MonthlyEquivalent: quote.MonthlyEquivalent,
		Savings:           quote.Savings,
		DiscountPercent:   quote.DiscountPercent,
	})
}

func (h *Handlers) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	userID := logging.UserIDFromContext(r.Context())
	sub, err := h.subUC.Cancel(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":              string(sub.Status),
		"autoRenew":           sub.AutoRenew,
		"subscriptionEndDate": sub.SubscriptionEndDate,
		"message":             "subscription cancelled, access continues until the end date",
	})
}

func (h *Handlers) ExtendTrial(w http.ResponseWriter, r *http.Request) {
	userID := logging.UserIDFromContext(r.Context())
	sub, err := h.subUC.ExtendTrial(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       string(sub.Status),
		"trialEndDate": sub.TrialEndDate,
	})
}

// ===== scan =====

type scanRequest struct {
	ImageURL string `json:"imageUrl" validate:"required,url"`
}

type scanResponse struct {
	Receipt        *model.ParsedReceipt `json:"receipt"`
	ScansRemaining int                  `json:"scansRemaining"`
}

func (h *Handlers) Scan(w http.ResponseWriter, r *http.Request) {
	userID := logging.UserIDFromContext(r.Context())
	var req scanRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	res, err := h.scanUC.Scan(r.Context(), userID, req.ImageURL)
	if err != nil {
		if errors.Is(err, domain.ErrQuotaExhausted) {
			metrics.IncQuotaDenied()
		}
		writeDomainError(w, err)
		return
	}
	metrics.IncScanConsumed("api")
	writeJSON(w, http.StatusOK, scanResponse{Receipt: res.Receipt, ScansRemaining: res.ScansRemaining})
}

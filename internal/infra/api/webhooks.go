// File: internal/infra/api/webhooks.go
package api

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"goshopper-backend/internal/domain/model"
	"goshopper-backend/internal/infra/gateway"
	"goshopper-backend/internal/infra/logging"
	"goshopper-backend/internal/infra/metrics"
	"goshopper-backend/internal/usecase"
)

// maxWebhookBody caps the raw payload read. Providers send small events;
// anything larger is not one of theirs.
const maxWebhookBody = 1 << 20

// Webhooks terminates the asynchronous provider callbacks. Signature
// verification happens against the raw body before any parsing. A verified
// event for an unknown transaction is acked with 200 so the provider does not
// retry forever; only transient store failures return 500.
type Webhooks struct {
	payUC        usecase.PaymentUseCase
	stripeSecret string
	mokoSecret   string
	log          *zerolog.Logger
}

func NewWebhooks(payUC usecase.PaymentUseCase, stripeSecret, mokoSecret string, logger *zerolog.Logger) *Webhooks {
	l := logger.With().Str("component", "webhooks").Logger()
	return &Webhooks{
		payUC:        payUC,
		stripeSecret: stripeSecret,
		mokoSecret:   mokoSecret,
		log:          &l,
	}
}

type stripeEvent struct {
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID       string `json:"id"`
			Status   string `json:"status"`
			Metadata struct {
				TransactionID string `json:"transaction_id"`
			} `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

func (wh *Webhooks) Stripe(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	if err := gateway.VerifyStripeSignature(r.Header.Get("Stripe-Signature"), body, wh.stripeSecret, time.Now()); err != nil {
		metrics.IncWebhook("stripe", "bad_signature")
		writeJSONError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	var ev stripeEvent
	if err := json.Unmarshal(body, &ev); err != nil || ev.Type == "" {
		metrics.IncWebhook("stripe", "malformed")
		writeJSONError(w, http.StatusBadRequest, "malformed event")
		return
	}

	var status model.PaymentStatus
	switch ev.Type {
	case "payment_intent.succeeded":
		status = model.PaymentStatusCompleted
	case "payment_intent.payment_failed", "payment_intent.canceled":
		status = model.PaymentStatusFailed
	default:
		// Event types we do not subscribe to still get acked.
		metrics.IncWebhook("stripe", "ignored")
		writeJSON(w, http.StatusOK, map[string]any{"received": true})
		return
	}

	wh.apply(w, r, "stripe", ev.Data.Object.Metadata.TransactionID, ev.Data.Object.ID, status, "stripe webhook "+ev.Type)
}

type mokoCallback struct {
	Reference  string `json:"reference"`
	ExternalID string `json:"external_id"`
	Status     string `json:"status"`
	Carrier    string `json:"carrier"`
}

func (wh *Webhooks) Moko(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	if err := gateway.VerifyMokoSignature(r.Header.Get("X-Moko-Signature"), body, wh.mokoSecret); err != nil {
		metrics.IncWebhook("moko", "bad_signature")
		writeJSONError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	var cb mokoCallback
	if err := json.Unmarshal(body, &cb); err != nil || (cb.Reference == "" && cb.ExternalID == "") || cb.Status == "" {
		metrics.IncWebhook("moko", "malformed")
		writeJSONError(w, http.StatusBadRequest, "malformed callback")
		return
	}

	status := gateway.NormalizeMokoStatus(cb.Status)
	if status == model.PaymentStatusPending {
		// Intermediate progress pings carry no transition.
		metrics.IncWebhook("moko", "ignored")
		writeJSON(w, http.StatusOK, map[string]any{"received": true})
		return
	}

	wh.apply(w, r, "moko", cb.ExternalID, cb.Reference, status, "moko callback "+cb.Status)
}

func (wh *Webhooks) apply(w http.ResponseWriter, r *http.Request, provider, transactionID, providerRef string, status model.PaymentStatus, note string) {
	out, err := wh.payUC.ApplySignal(r.Context(), transactionID, providerRef, status, note)
	if err != nil {
		if usecase.IsPermanentLookupFailure(err) {
			metrics.IncWebhook(provider, "unknown_transaction")
			writeJSON(w, http.StatusOK, map[string]any{"received": true, "status": "unknown_transaction"})
			return
		}
		metrics.IncWebhook(provider, "store_error")
		l := logging.With(r.Context(), wh.log)
		l.Error().Err(err).Str("provider", provider).Str("transaction_id", transactionID).Msg("webhook store failure")
		writeJSONError(w, http.StatusInternalServerError, "temporary failure, retry")
		return
	}

	if out.Transitioned {
		metrics.IncWebhook(provider, "applied")
		metrics.IncPayment(string(out.Payment.Provider), string(out.Payment.Status))
		if out.Payment.Status == model.PaymentStatusCompleted {
			metrics.AddPaymentRevenue(out.Payment.Currency, out.Payment.Amount)
		}
	} else {
		metrics.IncWebhook(provider, "duplicate")
	}
	writeJSON(w, http.StatusOK, map[string]any{"received": true})
}

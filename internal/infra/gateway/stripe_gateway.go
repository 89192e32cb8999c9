// File: internal/infra/gateway/stripe_gateway.go
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"goshopper-backend/internal/domain/model"
	"goshopper-backend/internal/domain/ports/adapter"
)

var _ adapter.CardGateway = (*StripeGateway)(nil)

// StripeGateway implements adapter.CardGateway against the Stripe REST API.
// Stripe speaks form-encoded requests and JSON responses.
type StripeGateway struct {
	secretKey string
	baseURL   string
	client    *http.Client
}

func NewStripeGateway(secretKey string) (*StripeGateway, error) {
	if secretKey == "" {
		return nil, errors.New("stripe secret key empty")
	}
	return &StripeGateway{
		secretKey: secretKey,
		baseURL:   "https://api.stripe.com",
		client:    &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (s *StripeGateway) Name() string { return "stripe" }

type stripeIntent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
	Error        *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (s *StripeGateway) CreateIntent(ctx context.Context, amount int64, currency, transactionID, userID, email string) (string, string, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amount, 10))
	form.Set("currency", strings.ToLower(currency))
	form.Set("automatic_payment_methods[enabled]", "true")
	form.Set("metadata[transaction_id]", transactionID)
	form.Set("metadata[user_id]", userID)
	if email != "" {
		form.Set("receipt_email", email)
	}

	out, err := s.do(ctx, http.MethodPost, "/v1/payment_intents", form)
	if err != nil {
		return "", "", err
	}
	if out.ID == "" || out.ClientSecret == "" {
		return "", "", errors.New("stripe intent create returned empty response")
	}
	return out.ID, out.ClientSecret, nil
}

func (s *StripeGateway) QueryIntent(ctx context.Context, intentID string) (model.PaymentStatus, error) {
	out, err := s.do(ctx, http.MethodGet, "/v1/payment_intents/"+url.PathEscape(intentID), nil)
	if err != nil {
		return "", err
	}
	return NormalizeStripeStatus(out.Status), nil
}

func (s *StripeGateway) do(ctx context.Context, method, path string, form url.Values) (*stripeIntent, error) {
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.secretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out stripeIntent
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if out.Error != nil {
			return nil, fmt.Errorf("stripe %s: %s", out.Error.Type, out.Error.Message)
		}
		return nil, fmt.Errorf("stripe http %d", resp.StatusCode)
	}
	return &out, nil
}

// NormalizeStripeStatus folds Stripe's intent lifecycle into the internal
// three-state vocabulary. Anything not clearly terminal stays pending.
func NormalizeStripeStatus(s string) model.PaymentStatus {
	switch s {
	case "succeeded":
		return model.PaymentStatusCompleted
	case "canceled":
		return model.PaymentStatusFailed
	default:
		// requires_payment_method, requires_confirmation, requires_action,
		// processing, requires_capture
		return model.PaymentStatusPending
	}
}

// File: internal/infra/gateway/moko_gateway.go
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"goshopper-backend/internal/domain/model"
	"goshopper-backend/internal/domain/ports/adapter"
)

var _ adapter.MobileMoneyGateway = (*MokoGateway)(nil)

// MokoGateway implements adapter.MobileMoneyGateway against the Moko
// aggregator API, which fronts M-Pesa, Orange Money, Airtel Money and
// Afrimoney behind a single charge endpoint.
type MokoGateway struct {
	baseURL    string
	merchantID string
	apiKey     string
	client     *http.Client
}

func NewMokoGateway(baseURL, merchantID, apiKey string) (*MokoGateway, error) {
	if baseURL == "" || merchantID == "" || apiKey == "" {
		return nil, errors.New("moko gateway requires base_url, merchant_id and api_key")
	}
	return &MokoGateway{
		baseURL:    strings.TrimRight(baseURL, "/"),
		merchantID: merchantID,
		apiKey:     apiKey,
		client:     &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (m *MokoGateway) Name() string { return "moko" }

type mokoCharge struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

func (m *MokoGateway) RequestCharge(ctx context.Context, amount int64, currency, phoneNumber string, carrier model.PaymentProvider, transactionID string) (string, error) {
	payload := map[string]any{
		"merchant_id":  m.merchantID,
		"amount":       amount,
		"currency":     currency,
		"phone_number": phoneNumber,
		"carrier":      string(carrier),
		"external_id":  transactionID,
	}
	b, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/v1/charges", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", m.apiKey)

	out, err := m.send(req)
	if err != nil {
		return "", err
	}
	if out.Reference == "" {
		return "", errors.New("moko charge returned empty reference")
	}
	return out.Reference, nil
}

func (m *MokoGateway) QueryCharge(ctx context.Context, reference string) (model.PaymentStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+"/v1/charges/"+url.PathEscape(reference), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("X-API-Key", m.apiKey)

	out, err := m.send(req)
	if err != nil {
		return "", err
	}
	return NormalizeMokoStatus(out.Status), nil
}

func (m *MokoGateway) send(req *http.Request) (*mokoCharge, error) {
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out mokoCharge
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if out.Message != "" {
			return nil, fmt.Errorf("moko http %d: %s", resp.StatusCode, out.Message)
		}
		return nil, fmt.Errorf("moko http %d", resp.StatusCode)
	}
	return &out, nil
}

// NormalizeMokoStatus folds the aggregator's status vocabulary into the
// internal three-state one. Carriers disagree on terminal naming, so every
// variant observed in the field is mapped here and nowhere else.
func NormalizeMokoStatus(s string) model.PaymentStatus {
	switch strings.ToUpper(s) {
	case "SUCCESS", "SUCCESSFUL", "COMPLETED":
		return model.PaymentStatusCompleted
	case "FAILED", "CANCELLED", "CANCELED", "EXPIRED", "DECLINED", "TIMEOUT":
		return model.PaymentStatusFailed
	default:
		// PENDING, INITIATED, PROCESSING, AWAITING_PIN
		return model.PaymentStatusPending
	}
}

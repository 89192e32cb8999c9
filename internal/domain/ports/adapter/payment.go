package adapter

import (
	"context"

	"goshopper-backend/internal/domain/model"
)

// CardGateway is the hex port for the card processor (Stripe).
type CardGateway interface {
	Name() string
	// CreateIntent opens a payment intent for the amount and returns the
	// provider intent id plus the client secret the mobile app continues with.
	// The transaction id travels in provider metadata so webhooks can be
	// correlated back to our ledger.
	CreateIntent(ctx context.Context, amount int64, currency, transactionID, userID, email string) (intentID, clientSecret string, err error)
	// QueryIntent returns the intent's status normalized to the internal enum.
	QueryIntent(ctx context.Context, intentID string) (model.PaymentStatus, error)
}

// MobileMoneyGateway is the hex port for the Moko mobile-money aggregator,
// which fronts the regional carriers (M-Pesa, Orange, Airtel, Afrimoney).
type MobileMoneyGateway interface {
	Name() string
	// RequestCharge pushes a charge prompt to the subscriber's phone and
	// returns the aggregator reference for later correlation.
	RequestCharge(ctx context.Context, amount int64, currency, phoneNumber string, carrier model.PaymentProvider, transactionID string) (reference string, err error)
	// QueryCharge returns the charge status normalized to the internal enum.
	QueryCharge(ctx context.Context, reference string) (model.PaymentStatus, error)
}

package model

import "time"

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"   // record created; awaiting provider signal
	PaymentStatusCompleted PaymentStatus = "completed" // provider confirmed; entitlement granted
	PaymentStatusFailed    PaymentStatus = "failed"    // provider rejected, cancelled, or timed out
)

// Terminal reports whether no further transition is permitted.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusFailed
}

type PaymentProvider string

const (
	ProviderStripe    PaymentProvider = "stripe"
	ProviderMPesa     PaymentProvider = "mpesa"
	ProviderOrange    PaymentProvider = "orange"
	ProviderAirtel    PaymentProvider = "airtel"
	ProviderAfrimoney PaymentProvider = "afrimoney"
)

// MobileMoney reports whether the provider is routed through the Moko aggregator
// rather than the card processor.
func (p PaymentProvider) MobileMoney() bool {
	switch p {
	case ProviderMPesa, ProviderOrange, ProviderAirtel, ProviderAfrimoney:
		return true
	}
	return false
}

// Payment records one payment attempt. It is keyed by TransactionID, generated
// locally before any provider call, and is never deleted (audit trail).
type Payment struct {
	TransactionID string // e.g. "TXN-01J8Z4..."
	UserID        string
	PlanID        PlanID
	Provider      PaymentProvider
	Amount        int64  // minor units (cents / centimes), to avoid float errors
	Currency      string // "USD" | "CDF"
	DurationMonths int

	// Provider references. Exactly one is set depending on the rail.
	StripePaymentIntentID string
	MokoReference         string

	Status      PaymentStatus
	FailureNote string // short provider-facing reason on failure

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time // set when Status becomes completed
}

// ProviderReference returns whichever provider token the payment carries.
func (p *Payment) ProviderReference() string {
	if p.StripePaymentIntentID != "" {
		return p.StripePaymentIntentID
	}
	return p.MokoReference
}

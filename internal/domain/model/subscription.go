package model

import "time"

type SubscriptionStatus string

const (
	SubscriptionStatusTrial        SubscriptionStatus = "trial"
	SubscriptionStatusActive       SubscriptionStatus = "active"
	SubscriptionStatusCancelled    SubscriptionStatus = "cancelled"
	SubscriptionStatusExpiringSoon SubscriptionStatus = "expiring_soon"
	SubscriptionStatusExpired      SubscriptionStatus = "expired"
)

// Trial policy constants.
const (
	TrialDuration       = 7 * 24 * time.Hour
	TrialExtension      = 3 * 24 * time.Hour
	TrialGraceWindow    = 7 * 24 * time.Hour
	ExpiryWarningWindow = 3 * 24 * time.Hour
)

// Subscription is the per-user entitlement document, one row per user. All
// writers (payment confirmer, quota enforcer, cancellation, sweeper) mutate it
// through field-scoped updates inside transactions.
type Subscription struct {
	UserID       string
	IsSubscribed bool
	PlanID       PlanID
	Status       SubscriptionStatus
	AutoRenew    bool

	TrialStartDate time.Time
	TrialEndDate   time.Time
	TrialExtended  bool
	TrialScansUsed int

	MonthlyScansUsed          int
	CurrentBillingPeriodStart time.Time
	CurrentBillingPeriodEnd   time.Time

	SubscriptionStartDate *time.Time
	SubscriptionEndDate   *time.Time

	LastPaymentDate   *time.Time
	LastPaymentAmount int64  // minor units
	TransactionID     string // payment that last activated/renewed this subscription

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewTrialSubscription is the lazily-created default: a fresh trial starting now.
func NewTrialSubscription(userID string, now time.Time) *Subscription {
	return &Subscription{
		UserID:                    userID,
		IsSubscribed:              false,
		PlanID:                    PlanFree,
		Status:                    SubscriptionStatusTrial,
		TrialStartDate:            now,
		TrialEndDate:              now.Add(TrialDuration),
		CurrentBillingPeriodStart: now,
		CurrentBillingPeriodEnd:   now.AddDate(0, 1, 0),
		CreatedAt:                 now,
		UpdatedAt:                 now,
	}
}

// TrialActive reports whether the trial entitles usage at the given instant.
func (s *Subscription) TrialActive(now time.Time) bool {
	return s.Status == SubscriptionStatusTrial && now.Before(s.TrialEndDate)
}

// AccessActive reports whether a paid subscription currently grants access.
// Cancelled subscriptions keep access until the end date passes.
func (s *Subscription) AccessActive(now time.Time) bool {
	if !s.IsSubscribed || s.SubscriptionEndDate == nil {
		return false
	}
	switch s.Status {
	case SubscriptionStatusActive, SubscriptionStatusCancelled, SubscriptionStatusExpiringSoon:
		return now.Before(*s.SubscriptionEndDate)
	}
	return false
}

// TrialDaysRemaining returns whole days left on the trial, never negative.
func (s *Subscription) TrialDaysRemaining(now time.Time) int {
	if s.Status != SubscriptionStatusTrial || !now.Before(s.TrialEndDate) {
		return 0
	}
	d := s.TrialEndDate.Sub(now)
	days := int(d / (24 * time.Hour))
	if d%(24*time.Hour) > 0 {
		days++
	}
	return days
}

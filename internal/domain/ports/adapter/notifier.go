package adapter

import (
	"context"

	"goshopper-backend/internal/domain/model"
)

// Notifier is the fire-and-forget push sink. Delivery failures are logged and
// never surfaced to the flows that trigger them.
type Notifier interface {
	PaymentSucceeded(ctx context.Context, userID string, p *model.Payment) error
	SubscriptionExpiring(ctx context.Context, userID string, daysLeft int) error
	SubscriptionExpired(ctx context.Context, userID string) error
	TrialExpired(ctx context.Context, userID string) error
}

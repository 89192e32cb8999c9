package repository

import (
	"context"
	"time"

	"goshopper-backend/internal/domain/model"
)

// SubscriptionRepository is the port for the per-user subscription document.
type SubscriptionRepository interface {
	// FindByUser returns domain.ErrNotFound when the user has no document yet;
	// lazy trial creation is the use case's job. Locks FOR UPDATE inside a tx.
	FindByUser(ctx context.Context, tx Tx, userID string) (*model.Subscription, error)
	// Save upserts the full document. Only call while holding the row lock.
	Save(ctx context.Context, tx Tx, sub *model.Subscription) error

	// Sweeper queries. Each returns at most limit user ids, oldest first.
	ListExpiredSubscriptions(ctx context.Context, tx Tx, now time.Time, limit int) ([]string, error)
	ListExpiredTrials(ctx context.Context, tx Tx, now time.Time, limit int) ([]string, error)
	ListLapsedBillingPeriods(ctx context.Context, tx Tx, now time.Time, limit int) ([]string, error)
	ListExpiringSoon(ctx context.Context, tx Tx, now, within time.Time, limit int) ([]string, error)

	// CountByStatus feeds the subscriptions_total gauge.
	CountByStatus(ctx context.Context, tx Tx) (map[model.SubscriptionStatus]int, error)
}

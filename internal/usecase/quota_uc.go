package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"goshopper-backend/internal/domain"
	"goshopper-backend/internal/domain/model"
	"goshopper-backend/internal/domain/ports/repository"
)

// ConsumeResult reports the outcome of one metered action.
type ConsumeResult struct {
	CanScan        bool
	ScansRemaining int // -1 when unlimited
}

// QuotaUseCase gates metered actions. The eligibility check and the counter
// increment happen in one transaction, so two concurrent "last unit" requests
// cannot both pass.
type QuotaUseCase interface {
	Consume(ctx context.Context, userID string) (*ConsumeResult, error)
}

var _ QuotaUseCase = (*quotaUC)(nil)

type quotaUC struct {
	subs repository.SubscriptionRepository
	tx   repository.TransactionManager
	log  *zerolog.Logger
}

func NewQuotaUseCase(subs repository.SubscriptionRepository, tx repository.TransactionManager, logger *zerolog.Logger) QuotaUseCase {
	l := logger.With().Str("component", "QuotaUC").Logger()
	return &quotaUC{subs: subs, tx: tx, log: &l}
}

// Consume atomically checks eligibility and increments the relevant counter.
// Ineligible calls mutate nothing: ErrQuotaExhausted when a capped plan is
// depleted, ErrNoActiveSubscription when there is no entitlement at all.
func (uc *quotaUC) Consume(ctx context.Context, userID string) (*ConsumeResult, error) {
	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}
	now := time.Now()
	res := &ConsumeResult{}
	err := uc.tx.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		sub, err := uc.subs.FindByUser(ctx, tx, userID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// First-ever touch: start the trial and count this scan.
				sub = model.NewTrialSubscription(userID, now)
			} else {
				return err
			}
		}

		switch {
		case sub.TrialActive(now):
			// Trial usage is unlimited but tracked.
			sub.TrialScansUsed++
			res.CanScan = true
			res.ScansRemaining = model.UnlimitedSentinel
		case sub.AccessActive(now):
			quota := model.QuotaFor(sub.PlanID)
			if !quota.Unlimited && sub.MonthlyScansUsed >= quota.Limit {
				return domain.ErrQuotaExhausted
			}
			sub.MonthlyScansUsed++
			res.CanScan = true
			res.ScansRemaining = quota.Remaining(sub.MonthlyScansUsed)
		default:
			return domain.ErrNoActiveSubscription
		}
		sub.UpdatedAt = now
		return uc.subs.Save(ctx, tx, sub)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"goshopper-backend/internal/domain"
	"goshopper-backend/internal/domain/model"
	"goshopper-backend/internal/domain/ports/adapter"
	"goshopper-backend/internal/domain/ports/repository"
)

// sweepBatchSize bounds how many documents one sweeper pass touches per run.
const sweepBatchSize = 500

// SubscriptionStatusView is the external projection of a subscription,
// including the derived fields the mobile app consumes. ScansRemaining uses
// the -1 sentinel for unlimited at this boundary only.
type SubscriptionStatusView struct {
	Subscription       *model.Subscription
	CanScan            bool
	ScansRemaining     int
	IsTrialActive      bool
	TrialDaysRemaining int
}

// SubscriptionUseCase owns the per-user subscription state machine:
// activation/renewal (payment-driven), cancellation, trial extension, the
// sweeper's expiry passes, and the status projection.
type SubscriptionUseCase interface {
	Status(ctx context.Context, userID string) (*SubscriptionStatusView, error)
	Cancel(ctx context.Context, userID string) (*model.Subscription, error)
	ExtendTrial(ctx context.Context, userID string) (*model.Subscription, error)

	// ActivateFromPayment applies an activation/renewal inside the caller's
	// transaction; the payment confirmer invokes it with the payment row lock
	// already held.
	ActivateFromPayment(ctx context.Context, tx repository.Tx, p *model.Payment, now time.Time) error

	// Sweeper passes. Each is independent and idempotent.
	ExpireSubscriptions(ctx context.Context, now time.Time) (int, error)
	ExpireTrials(ctx context.Context, now time.Time) (int, error)
	RolloverBillingPeriods(ctx context.Context, now time.Time) (int, error)
	MarkExpiringSoon(ctx context.Context, now time.Time) (int, error)

	CountByStatus(ctx context.Context) (map[model.SubscriptionStatus]int, error)
}

var _ SubscriptionUseCase = (*subscriptionUC)(nil)

type subscriptionUC struct {
	subs     repository.SubscriptionRepository
	tx       repository.TransactionManager
	notifier adapter.Notifier
	log      *zerolog.Logger
}

// NewSubscriptionUseCase constructs the use case. notifier may be nil.
func NewSubscriptionUseCase(subs repository.SubscriptionRepository, tx repository.TransactionManager, notifier adapter.Notifier, logger *zerolog.Logger) SubscriptionUseCase {
	l := logger.With().Str("component", "SubscriptionUC").Logger()
	return &subscriptionUC{subs: subs, tx: tx, notifier: notifier, log: &l}
}

// loadOrCreate returns the user's subscription, lazily creating the default
// trial document on first touch.
func (uc *subscriptionUC) loadOrCreate(ctx context.Context, tx repository.Tx, userID string, now time.Time) (*model.Subscription, error) {
	sub, err := uc.subs.FindByUser(ctx, tx, userID)
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	sub = model.NewTrialSubscription(userID, now)
	if err := uc.subs.Save(ctx, tx, sub); err != nil {
		return nil, err
	}
	uc.log.Info().Str("user_id", userID).Msg("trial started")
	return sub, nil
}

func (uc *subscriptionUC) Status(ctx context.Context, userID string) (*SubscriptionStatusView, error) {
	if userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	var sub *model.Subscription
	err := uc.tx.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		sub, err = uc.loadOrCreate(ctx, tx, userID, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return projectStatus(sub, now), nil
}

func projectStatus(sub *model.Subscription, now time.Time) *SubscriptionStatusView {
	view := &SubscriptionStatusView{
		Subscription:       sub,
		IsTrialActive:      sub.TrialActive(now),
		TrialDaysRemaining: sub.TrialDaysRemaining(now),
	}
	switch {
	case view.IsTrialActive:
		view.CanScan = true
		view.ScansRemaining = model.UnlimitedSentinel
	case sub.AccessActive(now):
		quota := model.QuotaFor(sub.PlanID)
		view.ScansRemaining = quota.Remaining(sub.MonthlyScansUsed)
		view.CanScan = quota.Unlimited || view.ScansRemaining > 0
	default:
		view.CanScan = false
		view.ScansRemaining = 0
	}
	return view
}

// ActivateFromPayment activates a fresh subscription or renews an existing
// one. Renewing before expiry extends from the current end date so no paid
// time is lost; a fresh or lapsed subscription starts from now.
func (uc *subscriptionUC) ActivateFromPayment(ctx context.Context, tx repository.Tx, p *model.Payment, now time.Time) error {
	sub, err := uc.loadOrCreate(ctx, tx, p.UserID, now)
	if err != nil {
		return err
	}

	start := now
	extendFrom := now
	if sub.SubscriptionEndDate != nil && sub.SubscriptionEndDate.After(now) {
		extendFrom = *sub.SubscriptionEndDate
	}
	newEnd := extendFrom.AddDate(0, p.DurationMonths, 0)

	if sub.SubscriptionStartDate == nil || !sub.AccessActive(now) {
		sub.SubscriptionStartDate = &start
	}
	sub.IsSubscribed = true
	sub.PlanID = p.PlanID
	sub.Status = model.SubscriptionStatusActive
	sub.AutoRenew = true
	sub.SubscriptionEndDate = &newEnd
	sub.MonthlyScansUsed = 0
	sub.CurrentBillingPeriodStart = now
	sub.CurrentBillingPeriodEnd = now.AddDate(0, 1, 0)
	sub.LastPaymentDate = &now
	sub.LastPaymentAmount = p.Amount
	sub.TransactionID = p.TransactionID
	sub.UpdatedAt = now

	if err := uc.subs.Save(ctx, tx, sub); err != nil {
		return err
	}
	uc.log.Info().
		Str("user_id", p.UserID).
		Str("plan", string(p.PlanID)).
		Str("transaction_id", p.TransactionID).
		Time("end_date", newEnd).
		Msg("subscription activated")
	return nil
}

// Cancel disables auto-renewal only. Access persists until the natural end
// date; only the sweeper flips IsSubscribed off.
func (uc *subscriptionUC) Cancel(ctx context.Context, userID string) (*model.Subscription, error) {
	if userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	var sub *model.Subscription
	err := uc.tx.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		sub, err = uc.subs.FindByUser(ctx, tx, userID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrNoActiveSubscription
			}
			return err
		}
		if !sub.AccessActive(now) {
			return domain.ErrNoActiveSubscription
		}
		sub.AutoRenew = false
		sub.Status = model.SubscriptionStatusCancelled
		sub.UpdatedAt = now
		return uc.subs.Save(ctx, tx, sub)
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("user_id", userID).Msg("subscription cancelled, access kept until end date")
	return sub, nil
}

// ExtendTrial grants the single permitted extension, only inside the grace
// window that opens when the original trial ends.
func (uc *subscriptionUC) ExtendTrial(ctx context.Context, userID string) (*model.Subscription, error) {
	if userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	var sub *model.Subscription
	err := uc.tx.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		sub, err = uc.loadOrCreate(ctx, tx, userID, now)
		if err != nil {
			return err
		}
		if sub.TrialExtended {
			return domain.ErrTrialAlreadyExtended
		}
		if sub.IsSubscribed {
			return domain.ErrInvalidArgument
		}
		if now.Before(sub.TrialEndDate) {
			return domain.ErrTrialStillActive
		}
		if now.After(sub.TrialEndDate.Add(model.TrialGraceWindow)) {
			return domain.ErrTrialWindowClosed
		}
		sub.TrialEndDate = now.Add(model.TrialExtension)
		sub.TrialExtended = true
		sub.Status = model.SubscriptionStatusTrial
		sub.UpdatedAt = now
		return uc.subs.Save(ctx, tx, sub)
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("user_id", userID).Time("new_end", sub.TrialEndDate).Msg("trial extended")
	return sub, nil
}

// ExpireSubscriptions flips paid subscriptions past their end date to expired.
func (uc *subscriptionUC) ExpireSubscriptions(ctx context.Context, now time.Time) (int, error) {
	users, err := uc.subs.ListExpiredSubscriptions(ctx, repository.NoTX, now, sweepBatchSize)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, userID := range users {
		expired := false
		err := uc.tx.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			sub, err := uc.subs.FindByUser(ctx, tx, userID)
			if err != nil {
				return err
			}
			// Re-check under lock; another writer may have renewed meanwhile.
			if !sub.IsSubscribed || sub.SubscriptionEndDate == nil || sub.SubscriptionEndDate.After(now) {
				return nil
			}
			sub.IsSubscribed = false
			sub.Status = model.SubscriptionStatusExpired
			sub.MonthlyScansUsed = 0
			sub.UpdatedAt = now
			if err := uc.subs.Save(ctx, tx, sub); err != nil {
				return err
			}
			expired = true
			return nil
		})
		if err != nil {
			uc.log.Error().Err(err).Str("user_id", userID).Msg("expire subscription failed")
			continue
		}
		if !expired {
			continue
		}
		n++
		uc.notify(ctx, func(ctx context.Context) error {
			return uc.notifier.SubscriptionExpired(ctx, userID)
		})
	}
	return n, nil
}

// ExpireTrials flips lapsed, never-extended-or-already-extended trials to expired.
func (uc *subscriptionUC) ExpireTrials(ctx context.Context, now time.Time) (int, error) {
	users, err := uc.subs.ListExpiredTrials(ctx, repository.NoTX, now, sweepBatchSize)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, userID := range users {
		expired := false
		err := uc.tx.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			sub, err := uc.subs.FindByUser(ctx, tx, userID)
			if err != nil {
				return err
			}
			if sub.Status != model.SubscriptionStatusTrial || sub.TrialEndDate.After(now) {
				return nil
			}
			sub.Status = model.SubscriptionStatusExpired
			sub.UpdatedAt = now
			if err := uc.subs.Save(ctx, tx, sub); err != nil {
				return err
			}
			expired = true
			return nil
		})
		if err != nil {
			uc.log.Error().Err(err).Str("user_id", userID).Msg("expire trial failed")
			continue
		}
		if !expired {
			continue
		}
		n++
		uc.notify(ctx, func(ctx context.Context) error {
			return uc.notifier.TrialExpired(ctx, userID)
		})
	}
	return n, nil
}

// RolloverBillingPeriods advances lapsed billing windows and resets the
// monthly counter. The window is advanced whole months until it covers now,
// so a sweeper outage never produces a period ending in the past.
func (uc *subscriptionUC) RolloverBillingPeriods(ctx context.Context, now time.Time) (int, error) {
	users, err := uc.subs.ListLapsedBillingPeriods(ctx, repository.NoTX, now, sweepBatchSize)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, userID := range users {
		rolled := false
		err := uc.tx.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			sub, err := uc.subs.FindByUser(ctx, tx, userID)
			if err != nil {
				return err
			}
			if !sub.IsSubscribed || sub.CurrentBillingPeriodEnd.After(now) {
				return nil
			}
			for !sub.CurrentBillingPeriodEnd.After(now) {
				sub.CurrentBillingPeriodStart = sub.CurrentBillingPeriodEnd
				sub.CurrentBillingPeriodEnd = sub.CurrentBillingPeriodEnd.AddDate(0, 1, 0)
			}
			sub.MonthlyScansUsed = 0
			sub.UpdatedAt = now
			if err := uc.subs.Save(ctx, tx, sub); err != nil {
				return err
			}
			rolled = true
			return nil
		})
		if err != nil {
			uc.log.Error().Err(err).Str("user_id", userID).Msg("billing rollover failed")
			continue
		}
		if rolled {
			n++
		}
	}
	return n, nil
}

// MarkExpiringSoon tags active subscriptions ending within the warning window
// so the app can prompt for renewal. Idempotent: already-tagged rows are not
// matched again.
func (uc *subscriptionUC) MarkExpiringSoon(ctx context.Context, now time.Time) (int, error) {
	users, err := uc.subs.ListExpiringSoon(ctx, repository.NoTX, now, now.Add(model.ExpiryWarningWindow), sweepBatchSize)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, userID := range users {
		var daysLeft int
		err := uc.tx.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			sub, err := uc.subs.FindByUser(ctx, tx, userID)
			if err != nil {
				return err
			}
			if sub.Status != model.SubscriptionStatusActive || sub.SubscriptionEndDate == nil {
				return nil
			}
			if !sub.SubscriptionEndDate.After(now) || sub.SubscriptionEndDate.After(now.Add(model.ExpiryWarningWindow)) {
				return nil
			}
			daysLeft = int(sub.SubscriptionEndDate.Sub(now)/(24*time.Hour)) + 1
			sub.Status = model.SubscriptionStatusExpiringSoon
			sub.UpdatedAt = now
			return uc.subs.Save(ctx, tx, sub)
		})
		if err != nil {
			uc.log.Error().Err(err).Str("user_id", userID).Msg("mark expiring soon failed")
			continue
		}
		if daysLeft > 0 {
			n++
			uc.notify(ctx, func(ctx context.Context) error {
				return uc.notifier.SubscriptionExpiring(ctx, userID, daysLeft)
			})
		}
	}
	return n, nil
}

func (uc *subscriptionUC) CountByStatus(ctx context.Context) (map[model.SubscriptionStatus]int, error) {
	return uc.subs.CountByStatus(ctx, repository.NoTX)
}

// notify runs a best-effort notification; failures are logged, never returned.
func (uc *subscriptionUC) notify(ctx context.Context, fn func(ctx context.Context) error) {
	if uc.notifier == nil {
		return
	}
	if err := fn(ctx); err != nil {
		uc.log.Warn().Err(err).Msg("notification dispatch failed")
	}
}

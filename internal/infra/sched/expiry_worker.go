// File: internal/infra/sched/expiry_worker.go
package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"goshopper-backend/internal/domain"
	"goshopper-backend/internal/infra/metrics"
	"goshopper-backend/internal/infra/redis"
	"goshopper-backend/internal/usecase"
)

const sweepLockKey = "sweep:lock"

// ExpiryWorker periodically runs the four subscription sweep passes. A Redis
// lock keeps the passes single-flight across replicas; losing the lock just
// means another replica is already sweeping.
type ExpiryWorker struct {
	interval time.Duration
	subUC    usecase.SubscriptionUseCase
	locker   redis.Locker
	log      *zerolog.Logger
}

func NewExpiryWorker(interval time.Duration, subUC usecase.SubscriptionUseCase, locker redis.Locker, logger *zerolog.Logger) *ExpiryWorker {
	exprLog := logger.With().Str("component", "ExpiryWorker").Logger()
	if interval <= 0 {
		interval = time.Hour
	}
	return &ExpiryWorker{
		interval: interval,
		subUC:    subUC,
		locker:   locker,
		log:      &exprLog,
	}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting expiry worker")
	// Run once on startup, then on every tick
	w.sweep(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *ExpiryWorker) sweep(ctx context.Context) {
	token, err := w.locker.TryLock(ctx, sweepLockKey, w.interval)
	if err != nil {
		if !errors.Is(err, domain.ErrLockNotAcquired) {
			w.log.Error().Err(err).Msg("sweep lock error")
		}
		return
	}
	defer func() {
		if err := w.locker.Unlock(context.Background(), sweepLockKey, token); err != nil {
			w.log.Warn().Err(err).Msg("sweep unlock failed")
		}
	}()

	now := time.Now().UTC()

	// The passes are independent. One failing must not starve the others.
	if n, err := w.subUC.ExpireSubscriptions(ctx, now); err != nil {
		w.log.Error().Err(err).Msg("expire subscriptions pass failed")
	} else if n > 0 {
		metrics.IncSubscriptionsExpired(n)
		w.log.Info().Int("count", n).Msg("subscriptions expired")
	}

	if n, err := w.subUC.ExpireTrials(ctx, now); err != nil {
		w.log.Error().Err(err).Msg("expire trials pass failed")
	} else if n > 0 {
		metrics.IncTrialsExpired(n)
		w.log.Info().Int("count", n).Msg("trials expired")
	}

	if n, err := w.subUC.RolloverBillingPeriods(ctx, now); err != nil {
		w.log.Error().Err(err).Msg("billing rollover pass failed")
	} else if n > 0 {
		metrics.IncBillingRollovers(n)
		w.log.Info().Int("count", n).Msg("billing periods rolled over")
	}

	if n, err := w.subUC.MarkExpiringSoon(ctx, now); err != nil {
		w.log.Error().Err(err).Msg("expiring-soon pass failed")
	} else if n > 0 {
		w.log.Info().Int("count", n).Msg("subscriptions marked expiring soon")
	}

	if counts, err := w.subUC.CountByStatus(ctx); err == nil {
		metrics.SetSubscriptionsTotal(counts)
	}
}

// File: internal/infra/sched/payment_reconciler.go
package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"goshopper-backend/internal/domain"
	"goshopper-backend/internal/domain/model"
	"goshopper-backend/internal/domain/ports/repository"
	"goshopper-backend/internal/infra/metrics"
	"goshopper-backend/internal/infra/redis"
	"goshopper-backend/internal/usecase"
)

const reconcileLockKey = "reconcile:lock"

// PaymentReconciler periodically scans for stale pending payments and polls
// the provider to finalize them. This covers webhooks that never arrived and
// processes that crashed mid-confirm.
type PaymentReconciler struct {
	uc         usecase.PaymentUseCase
	payments   repository.PaymentRepository
	locker     redis.Locker
	interval   time.Duration // how often to scan
	staleAfter time.Duration // how old a pending payment must be to retry
	log        *zerolog.Logger
}

func NewPaymentReconciler(uc usecase.PaymentUseCase, payments repository.PaymentRepository, locker redis.Locker, interval, staleAfter time.Duration, logger *zerolog.Logger) *PaymentReconciler {
	recLog := logger.With().Str("component", "PaymentReconciler").Logger()
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	return &PaymentReconciler{
		uc:         uc,
		payments:   payments,
		locker:     locker,
		interval:   interval,
		staleAfter: staleAfter,
		log:        &recLog,
	}
}

func (w *PaymentReconciler) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting payment reconciler")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping payment reconciler")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *PaymentReconciler) tick(ctx context.Context) {
	token, err := w.locker.TryLock(ctx, reconcileLockKey, w.interval)
	if err != nil {
		if !errors.Is(err, domain.ErrLockNotAcquired) {
			w.log.Error().Err(err).Msg("reconcile lock error")
		}
		return
	}
	defer func() {
		if err := w.locker.Unlock(context.Background(), reconcileLockKey, token); err != nil {
			w.log.Warn().Err(err).Msg("reconcile unlock failed")
		}
	}()

	cutoff := time.Now().UTC().Add(-w.staleAfter)
	pending, err := w.payments.ListPendingOlderThan(ctx, repository.NoTX, cutoff, 200)
	if err != nil {
		w.log.Error().Err(err).Msg("list pending payments failed")
		return
	}

	for _, p := range pending {
		if p.ProviderReference() == "" {
			// Initiate never reached the provider. Nothing to poll.
			continue
		}
		out, err := w.uc.ConfirmPoll(ctx, p.UserID, p.TransactionID)
		if err != nil {
			w.log.Warn().Err(err).Str("transaction_id", p.TransactionID).Msg("reconcile poll failed")
			continue
		}
		if out.Transitioned {
			metrics.IncPayment(string(out.Payment.Provider), string(out.Payment.Status))
			if out.Payment.Status == model.PaymentStatusCompleted {
				metrics.AddPaymentRevenue(out.Payment.Currency, out.Payment.Amount)
			}
			w.log.Info().
				Str("transaction_id", p.TransactionID).
				Str("status", string(out.Payment.Status)).
				Msg("stale payment reconciled")
		}
	}
}

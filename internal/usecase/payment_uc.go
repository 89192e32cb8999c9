package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"goshopper-backend/internal/domain"
	"goshopper-backend/internal/domain/model"
	"goshopper-backend/internal/domain/ports/adapter"
	"goshopper-backend/internal/domain/ports/repository"
)

// InitiateInput carries the caller's payment request after boundary validation.
type InitiateInput struct {
	PlanID         model.PlanID
	DurationMonths int
	Currency       string
	Provider       model.PaymentProvider
	PhoneNumber    string // mobile money only
	Email          string // card only
}

// InitiateResult is returned to the mobile client to continue the flow.
type InitiateResult struct {
	TransactionID     string
	Amount            int64
	Currency          string
	ContinuationToken string // Stripe client secret, empty for mobile money
	Message           string
}

// ConfirmOutcome is the result of applying a provider signal.
type ConfirmOutcome struct {
	Payment      *model.Payment
	Transitioned bool // false when the signal was an idempotent no-op
}

// PaymentUseCase is the payment initiator and confirmer. The webhook and poll
// paths converge on one transactional terminal transition, so whichever
// signal lands first wins and the other becomes a no-op.
type PaymentUseCase interface {
	Initiate(ctx context.Context, userID string, in InitiateInput) (*InitiateResult, error)
	// ConfirmPoll is the user-triggered status check.
	ConfirmPoll(ctx context.Context, userID, transactionID string) (*ConfirmOutcome, error)
	// ApplySignal reconciles an asynchronous provider signal (webhook or
	// reconciler). Either transactionID or providerRef must be set.
	ApplySignal(ctx context.Context, transactionID, providerRef string, status model.PaymentStatus, note string) (*ConfirmOutcome, error)
}

var _ PaymentUseCase = (*paymentUC)(nil)

type paymentUC struct {
	payments repository.PaymentRepository
	tx       repository.TransactionManager
	subs     SubscriptionUseCase
	pricing  PricingUseCase
	card     adapter.CardGateway
	mobile   adapter.MobileMoneyGateway
	notifier adapter.Notifier

	providerTimeout time.Duration
	log             *zerolog.Logger
}

// NewPaymentUseCase wires the payment flows. notifier may be nil.
func NewPaymentUseCase(
	payments repository.PaymentRepository,
	tx repository.TransactionManager,
	subs SubscriptionUseCase,
	pricing PricingUseCase,
	card adapter.CardGateway,
	mobile adapter.MobileMoneyGateway,
	notifier adapter.Notifier,
	providerTimeout time.Duration,
	logger *zerolog.Logger,
) PaymentUseCase {
	if providerTimeout <= 0 {
		providerTimeout = 20 * time.Second
	}
	l := logger.With().Str("component", "PaymentUC").Logger()
	return &paymentUC{
		payments:        payments,
		tx:              tx,
		subs:            subs,
		pricing:         pricing,
		card:            card,
		mobile:          mobile,
		notifier:        notifier,
		providerTimeout: providerTimeout,
		log:             &l,
	}
}

// Initiate creates the pending ledger row BEFORE contacting the provider, so
// a later confirmation signal always has a record to reconcile against.
func (u *paymentUC) Initiate(ctx context.Context, userID string, in InitiateInput) (*InitiateResult, error) {
	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}
	quote, err := u.pricing.Quote(in.PlanID, in.DurationMonths, in.Currency)
	if err != nil {
		return nil, err
	}
	if in.Provider.MobileMoney() {
		if in.PhoneNumber == "" {
			return nil, domain.ErrInvalidArgument
		}
	} else if in.Provider != model.ProviderStripe {
		return nil, domain.ErrInvalidArgument
	}

	now := time.Now()
	p := &model.Payment{
		TransactionID:  NewTransactionID(),
		UserID:         userID,
		PlanID:         in.PlanID,
		Provider:       in.Provider,
		Amount:         quote.Total,
		Currency:       quote.Currency,
		DurationMonths: in.DurationMonths,
		Status:         model.PaymentStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := u.payments.Save(ctx, repository.NoTX, p); err != nil {
		return nil, err
	}

	pctx, cancel := context.WithTimeout(ctx, u.providerTimeout)
	defer cancel()

	res := &InitiateResult{
		TransactionID: p.TransactionID,
		Amount:        p.Amount,
		Currency:      p.Currency,
	}
	if in.Provider.MobileMoney() {
		ref, err := u.mobile.RequestCharge(pctx, p.Amount, p.Currency, in.PhoneNumber, in.Provider, p.TransactionID)
		if err != nil {
			u.markFailed(ctx, p.TransactionID, "charge request failed")
			return nil, fmt.Errorf("%w: %s", domain.ErrProviderUnavailable, u.mobile.Name())
		}
		p.MokoReference = ref
		res.Message = "Payment initiated. Please confirm the charge on your phone."
	} else {
		intentID, secret, err := u.card.CreateIntent(pctx, p.Amount, p.Currency, p.TransactionID, userID, in.Email)
		if err != nil {
			u.markFailed(ctx, p.TransactionID, "intent creation failed")
			return nil, fmt.Errorf("%w: %s", domain.ErrProviderUnavailable, u.card.Name())
		}
		p.StripePaymentIntentID = intentID
		res.ContinuationToken = secret
		res.Message = "Payment intent created."
	}

	if err := u.payments.SetProviderReference(ctx, repository.NoTX, p.TransactionID, p); err != nil {
		// The provider flow is already running; losing the reference only
		// disables the poll path, the webhook still carries the transaction id.
		u.log.Error().Err(err).Str("transaction_id", p.TransactionID).Msg("persist provider reference failed")
	}

	u.log.Info().
		Str("transaction_id", p.TransactionID).
		Str("user_id", userID).
		Str("provider", string(in.Provider)).
		Int64("amount", p.Amount).
		Str("currency", p.Currency).
		Msg("payment initiated")
	return res, nil
}

// markFailed is best-effort cleanup; its own failure is logged, never thrown.
func (u *paymentUC) markFailed(ctx context.Context, transactionID, note string) {
	if _, err := u.ApplySignal(ctx, transactionID, "", model.PaymentStatusFailed, note); err != nil {
		u.log.Error().Err(err).Str("transaction_id", transactionID).Msg("mark payment failed errored")
	}
}

// ConfirmPoll short-circuits on a locally terminal payment, otherwise asks the
// provider and applies the normalized answer through the shared transition.
func (u *paymentUC) ConfirmPoll(ctx context.Context, userID, transactionID string) (*ConfirmOutcome, error) {
	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}
	p, err := u.payments.FindByTransactionID(ctx, repository.NoTX, transactionID)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, domain.ErrNotFound
	}
	if p.Status.Terminal() {
		return &ConfirmOutcome{Payment: p}, nil
	}

	pctx, cancel := context.WithTimeout(ctx, u.providerTimeout)
	defer cancel()

	var status model.PaymentStatus
	if p.Provider.MobileMoney() {
		if p.MokoReference == "" {
			return &ConfirmOutcome{Payment: p}, nil
		}
		status, err = u.mobile.QueryCharge(pctx, p.MokoReference)
	} else {
		if p.StripePaymentIntentID == "" {
			return &ConfirmOutcome{Payment: p}, nil
		}
		status, err = u.card.QueryIntent(pctx, p.StripePaymentIntentID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: status query", domain.ErrProviderUnavailable)
	}
	if !status.Terminal() {
		return &ConfirmOutcome{Payment: p}, nil
	}
	return u.ApplySignal(ctx, transactionID, "", status, "resolved by status poll")
}

// ApplySignal is the single terminal transition both paths converge on. It
// locks the ledger row, no-ops when already terminal, and on completion
// activates the subscription inside the same transaction.
func (u *paymentUC) ApplySignal(ctx context.Context, transactionID, providerRef string, status model.PaymentStatus, note string) (*ConfirmOutcome, error) {
	if !status.Terminal() {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	out := &ConfirmOutcome{}
	err := u.tx.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		// Reset on retry; the closure may re-run after a conflict.
		out.Transitioned = false

		var p *model.Payment
		var err error
		if transactionID != "" {
			p, err = u.payments.FindByTransactionID(ctx, tx, transactionID)
		} else {
			p, err = u.payments.FindByProviderReference(ctx, tx, providerRef)
		}
		if err != nil {
			return err
		}
		out.Payment = p
		if p.Status.Terminal() {
			return nil // duplicate signal, acknowledge without mutation
		}

		var completedAt *time.Time
		if status == model.PaymentStatusCompleted {
			completedAt = &now
		}
		if err := u.payments.UpdateStatus(ctx, tx, p.TransactionID, status, note, completedAt); err != nil {
			return err
		}
		p.Status = status
		p.FailureNote = note
		p.UpdatedAt = now
		p.CompletedAt = completedAt

		if status == model.PaymentStatusCompleted {
			if err := u.subs.ActivateFromPayment(ctx, tx, p, now); err != nil {
				return err
			}
		}
		out.Transitioned = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if out.Transitioned {
		u.log.Info().
			Str("transaction_id", out.Payment.TransactionID).
			Str("status", string(status)).
			Msg("payment reconciled")
		if status == model.PaymentStatusCompleted && u.notifier != nil {
			if nerr := u.notifier.PaymentSucceeded(ctx, out.Payment.UserID, out.Payment); nerr != nil {
				u.log.Warn().Err(nerr).Msg("payment notification failed")
			}
		}
	}
	return out, nil
}

// IsPermanentLookupFailure distinguishes "payment does not exist" (permanent,
// webhook should be acked) from transient store errors (webhook should 500 so
// the provider retries).
func IsPermanentLookupFailure(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}

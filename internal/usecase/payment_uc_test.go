//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"goshopper-backend/internal/domain"
	"goshopper-backend/internal/domain/model"
	"goshopper-backend/internal/usecase"
)

func newPaymentFixture(card *mockCardGateway, mobile *mockMobileGateway) (usecase.PaymentUseCase, *memPaymentRepo, *memSubscriptionRepo, *mockNotifier) {
	logger := newTestLogger()
	tm := newMockTxManager()
	payRepo := newMemPaymentRepo()
	subRepo := newMemSubscriptionRepo()
	notifier := &mockNotifier{}
	if card == nil {
		card = &mockCardGateway{}
	}
	if mobile == nil {
		mobile = &mockMobileGateway{}
	}
	subUC := usecase.NewSubscriptionUseCase(subRepo, tm, notifier, logger)
	payUC := usecase.NewPaymentUseCase(payRepo, tm, subUC, usecase.NewPricingUseCase(), card, mobile, notifier, time.Second, logger)
	return payUC, payRepo, subRepo, notifier
}

func TestPaymentUseCase_Initiate(t *testing.T) {
	ctx := context.Background()

	t.Run("card flow returns client secret and records the intent", func(t *testing.T) {
		payUC, payRepo, _, _ := newPaymentFixture(nil, nil)

		res, err := payUC.Initiate(ctx, "user-1", usecase.InitiateInput{
			PlanID: model.PlanStandard, DurationMonths: 12, Provider: model.ProviderStripe, Email: "a@b.cd",
		})
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if res.ContinuationToken != "pi_test_123_secret" {
			t.Errorf("continuation token: got %q", res.ContinuationToken)
		}
		if res.Amount != 2512 {
			t.Errorf("amount: got %d, want 2512", res.Amount)
		}
		p, err := payRepo.FindByTransactionID(ctx, nil, res.TransactionID)
		if err != nil {
			t.Fatalf("payment not persisted: %v", err)
		}
		if p.Status != model.PaymentStatusPending {
			t.Errorf("status: got %s, want pending", p.Status)
		}
		if p.StripePaymentIntentID != "pi_test_123" {
			t.Errorf("intent id not persisted: %q", p.StripePaymentIntentID)
		}
	})

	t.Run("pending record exists before the provider is contacted", func(t *testing.T) {
		var sawPending bool
		var payRepo *memPaymentRepo
		mobile := &mockMobileGateway{
			RequestChargeFunc: func(ctx context.Context, amount int64, currency, phone string, carrier model.PaymentProvider, txnID string) (string, error) {
				if p, err := payRepo.FindByTransactionID(ctx, nil, txnID); err == nil && p.Status == model.PaymentStatusPending {
					sawPending = true
				}
				return "moko-ref-9", nil
			},
		}
		payUC, repo, _, _ := newPaymentFixture(nil, mobile)
		payRepo = repo

		_, err := payUC.Initiate(ctx, "user-1", usecase.InitiateInput{
			PlanID: model.PlanBasic, DurationMonths: 1, Currency: "CDF",
			Provider: model.ProviderMPesa, PhoneNumber: "+243812345678",
		})
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if !sawPending {
			t.Error("provider was called before the pending payment was recorded")
		}
	})

	t.Run("provider failure marks the payment failed and surfaces unavailable", func(t *testing.T) {
		card := &mockCardGateway{
			CreateIntentFunc: func(ctx context.Context, amount int64, currency, txnID, userID, email string) (string, string, error) {
				return "", "", errors.New("stripe 503: internal upstream detail")
			},
		}
		payUC, payRepo, _, _ := newPaymentFixture(card, nil)

		_, err := payUC.Initiate(ctx, "user-1", usecase.InitiateInput{
			PlanID: model.PlanStandard, DurationMonths: 1, Provider: model.ProviderStripe,
		})
		if !errors.Is(err, domain.ErrProviderUnavailable) {
			t.Fatalf("expected ErrProviderUnavailable, got: %v", err)
		}
		// Internal provider detail must not leak to the caller.
		if got := err.Error(); len(got) > 0 && containsAny(got, "503", "upstream") {
			t.Errorf("error leaks provider internals: %q", got)
		}
		var failed *model.Payment
		for _, p := range allPayments(ctx, payRepo) {
			failed = p
		}
		if failed == nil || failed.Status != model.PaymentStatusFailed {
			t.Errorf("payment not marked failed: %+v", failed)
		}
	})

	t.Run("unknown plan is rejected before any write", func(t *testing.T) {
		payUC, payRepo, _, _ := newPaymentFixture(nil, nil)
		_, err := payUC.Initiate(ctx, "user-1", usecase.InitiateInput{
			PlanID: "gold", DurationMonths: 1, Provider: model.ProviderStripe,
		})
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got: %v", err)
		}
		if n := len(allPayments(ctx, payRepo)); n != 0 {
			t.Errorf("expected no payment rows, got %d", n)
		}
	})

	t.Run("missing phone for mobile money is rejected", func(t *testing.T) {
		payUC, _, _, _ := newPaymentFixture(nil, nil)
		_, err := payUC.Initiate(ctx, "user-1", usecase.InitiateInput{
			PlanID: model.PlanBasic, DurationMonths: 1, Provider: model.ProviderOrange,
		})
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got: %v", err)
		}
	})
}

func TestPaymentUseCase_ApplySignal(t *testing.T) {
	ctx := context.Background()

	initiate := func(t *testing.T, payUC usecase.PaymentUseCase) string {
		t.Helper()
		res, err := payUC.Initiate(ctx, "user-1", usecase.InitiateInput{
			PlanID: model.PlanStandard, DurationMonths: 1, Provider: model.ProviderStripe,
		})
		if err != nil {
			t.Fatalf("initiate: %v", err)
		}
		return res.TransactionID
	}

	t.Run("completion activates the subscription exactly once", func(t *testing.T) {
		payUC, _, subRepo, notifier := newPaymentFixture(nil, nil)
		txnID := initiate(t, payUC)

		out, err := payUC.ApplySignal(ctx, txnID, "", model.PaymentStatusCompleted, "")
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if !out.Transitioned {
			t.Fatal("expected a state transition")
		}
		sub, err := subRepo.FindByUser(ctx, nil, "user-1")
		if err != nil {
			t.Fatalf("subscription missing: %v", err)
		}
		if !sub.IsSubscribed || sub.Status != model.SubscriptionStatusActive {
			t.Errorf("subscription not active: %+v", sub)
		}
		if sub.TransactionID != txnID {
			t.Errorf("trace transaction id: got %q, want %q", sub.TransactionID, txnID)
		}
		firstEnd := *sub.SubscriptionEndDate

		// Duplicate delivery: no error, no mutation, no second notification.
		out2, err := payUC.ApplySignal(ctx, txnID, "", model.PaymentStatusCompleted, "")
		if err != nil {
			t.Fatalf("duplicate signal errored: %v", err)
		}
		if out2.Transitioned {
			t.Error("duplicate signal must be a no-op")
		}
		sub2, _ := subRepo.FindByUser(ctx, nil, "user-1")
		if !sub2.SubscriptionEndDate.Equal(firstEnd) {
			t.Errorf("end date moved on duplicate: %v -> %v", firstEnd, sub2.SubscriptionEndDate)
		}
		if notifier.paymentCount() != 1 {
			t.Errorf("notifications: got %d, want 1", notifier.paymentCount())
		}
	})

	t.Run("webhook and poll racing the same terminal status converge", func(t *testing.T) {
		card := &mockCardGateway{
			QueryIntentFunc: func(ctx context.Context, intentID string) (model.PaymentStatus, error) {
				return model.PaymentStatusCompleted, nil
			},
		}
		payUC, _, subRepo, _ := newPaymentFixture(card, nil)
		txnID := initiate(t, payUC)

		var wg sync.WaitGroup
		var transitions int32
		var mu sync.Mutex
		for i := 0; i < 2; i++ {
			wg.Add(1)
			webhook := i == 0
			go func() {
				defer wg.Done()
				var out *usecase.ConfirmOutcome
				var err error
				if webhook {
					out, err = payUC.ApplySignal(ctx, txnID, "", model.PaymentStatusCompleted, "")
				} else {
					out, err = payUC.ConfirmPoll(ctx, "user-1", txnID)
				}
				if err != nil {
					t.Errorf("racer errored: %v", err)
					return
				}
				if out.Transitioned {
					mu.Lock()
					transitions++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		if transitions != 1 {
			t.Errorf("transitions observed: got %d, want exactly 1", transitions)
		}
		sub, _ := subRepo.FindByUser(ctx, nil, "user-1")
		if sub == nil || !sub.IsSubscribed {
			t.Error("subscription not activated after race")
		}
	})

	t.Run("failed signal does not touch the subscription", func(t *testing.T) {
		payUC, _, subRepo, _ := newPaymentFixture(nil, nil)
		txnID := initiate(t, payUC)

		if _, err := payUC.ApplySignal(ctx, txnID, "", model.PaymentStatusFailed, "card declined"); err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if _, err := subRepo.FindByUser(ctx, nil, "user-1"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("subscription should not exist after failure, got err=%v", err)
		}
	})

	t.Run("unknown transaction surfaces not found", func(t *testing.T) {
		payUC, _, _, _ := newPaymentFixture(nil, nil)
		_, err := payUC.ApplySignal(ctx, "TXN-MISSING", "", model.PaymentStatusCompleted, "")
		if !usecase.IsPermanentLookupFailure(err) {
			t.Errorf("expected permanent lookup failure, got: %v", err)
		}
	})
}

func TestPaymentUseCase_ConfirmPoll(t *testing.T) {
	ctx := context.Background()

	t.Run("terminal payment short-circuits without a provider call", func(t *testing.T) {
		calls := 0
		card := &mockCardGateway{
			QueryIntentFunc: func(ctx context.Context, intentID string) (model.PaymentStatus, error) {
				calls++
				return model.PaymentStatusCompleted, nil
			},
		}
		payUC, _, _, _ := newPaymentFixture(card, nil)
		res, err := payUC.Initiate(ctx, "user-1", usecase.InitiateInput{
			PlanID: model.PlanBasic, DurationMonths: 1, Provider: model.ProviderStripe,
		})
		if err != nil {
			t.Fatalf("initiate: %v", err)
		}
		if _, err := payUC.ApplySignal(ctx, res.TransactionID, "", model.PaymentStatusCompleted, ""); err != nil {
			t.Fatalf("apply: %v", err)
		}
		calls = 0

		out, err := payUC.ConfirmPoll(ctx, "user-1", res.TransactionID)
		if err != nil {
			t.Fatalf("poll: %v", err)
		}
		if calls != 0 {
			t.Errorf("provider queried despite terminal local state (%d calls)", calls)
		}
		if out.Payment.Status != model.PaymentStatusCompleted {
			t.Errorf("status: got %s", out.Payment.Status)
		}
	})

	t.Run("provider pending leaves the payment pending", func(t *testing.T) {
		payUC, payRepo, _, _ := newPaymentFixture(nil, nil) // default mock answers pending
		res, _ := payUC.Initiate(ctx, "user-1", usecase.InitiateInput{
			PlanID: model.PlanBasic, DurationMonths: 1, Provider: model.ProviderStripe,
		})
		out, err := payUC.ConfirmPoll(ctx, "user-1", res.TransactionID)
		if err != nil {
			t.Fatalf("poll: %v", err)
		}
		if out.Transitioned {
			t.Error("pending answer must not transition")
		}
		p, _ := payRepo.FindByTransactionID(ctx, nil, res.TransactionID)
		if p.Status != model.PaymentStatusPending {
			t.Errorf("status: got %s, want pending", p.Status)
		}
	})

	t.Run("another user's transaction is invisible", func(t *testing.T) {
		payUC, _, _, _ := newPaymentFixture(nil, nil)
		res, _ := payUC.Initiate(ctx, "user-1", usecase.InitiateInput{
			PlanID: model.PlanBasic, DurationMonths: 1, Provider: model.ProviderStripe,
		})
		if _, err := payUC.ConfirmPoll(ctx, "user-2", res.TransactionID); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
	})
}

// helpers

func allPayments(ctx context.Context, repo *memPaymentRepo) []*model.Payment {
	ps, _ := repo.ListPendingOlderThan(ctx, nil, time.Now().Add(time.Hour), 1000)
	// ListPendingOlderThan filters to pending; also sweep terminal rows.
	for id := range repo.store {
		p, _ := repo.FindByTransactionID(ctx, nil, id)
		if p != nil && p.Status != model.PaymentStatusPending {
			ps = append(ps, p)
		}
	}
	return ps
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

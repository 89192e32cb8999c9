//go:build !integration

package gateway

import (
	"errors"
	"testing"
	"time"

	"goshopper-backend/internal/domain"
	"goshopper-backend/internal/domain/model"
)

func TestVerifyStripeSignature(t *testing.T) {
	secret := "whsec_test"
	body := []byte(`{"type":"payment_intent.succeeded"}`)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("valid signature passes", func(t *testing.T) {
		header := SignStripePayload(body, secret, now)
		if err := VerifyStripeSignature(header, body, secret, now); err != nil {
			t.Fatalf("expected valid signature, got %v", err)
		}
	})

	t.Run("tampered body rejected", func(t *testing.T) {
		header := SignStripePayload(body, secret, now)
		err := VerifyStripeSignature(header, []byte(`{"type":"other"}`), secret, now)
		if !errors.Is(err, domain.ErrBadSignature) {
			t.Fatalf("expected ErrBadSignature, got %v", err)
		}
	})

	t.Run("wrong secret rejected", func(t *testing.T) {
		header := SignStripePayload(body, "whsec_other", now)
		if err := VerifyStripeSignature(header, body, secret, now); !errors.Is(err, domain.ErrBadSignature) {
			t.Fatalf("expected ErrBadSignature, got %v", err)
		}
	})

	t.Run("stale timestamp rejected", func(t *testing.T) {
		header := SignStripePayload(body, secret, now.Add(-10*time.Minute))
		if err := VerifyStripeSignature(header, body, secret, now); !errors.Is(err, domain.ErrBadSignature) {
			t.Fatalf("expected replay rejection, got %v", err)
		}
	})

	t.Run("missing header rejected", func(t *testing.T) {
		if err := VerifyStripeSignature("", body, secret, now); !errors.Is(err, domain.ErrBadSignature) {
			t.Fatalf("expected ErrBadSignature, got %v", err)
		}
	})

	t.Run("garbage header rejected", func(t *testing.T) {
		if err := VerifyStripeSignature("t=abc,v1=zzz", body, secret, now); !errors.Is(err, domain.ErrBadSignature) {
			t.Fatalf("expected ErrBadSignature, got %v", err)
		}
	})

	t.Run("second v1 candidate accepted", func(t *testing.T) {
		withExtra := SignStripePayload(body, secret, now) + ",v1=deadbeef"
		if err := VerifyStripeSignature(withExtra, body, secret, now); err != nil {
			t.Fatalf("expected extra candidate to be tolerated, got %v", err)
		}
	})
}

func TestVerifyMokoSignature(t *testing.T) {
	secret := "moko-shared-secret"
	body := []byte(`{"reference":"MK-1","status":"SUCCESS"}`)

	t.Run("valid signature passes", func(t *testing.T) {
		if err := VerifyMokoSignature(SignMokoPayload(body, secret), body, secret); err != nil {
			t.Fatalf("expected valid signature, got %v", err)
		}
	})

	t.Run("tampered body rejected", func(t *testing.T) {
		sig := SignMokoPayload(body, secret)
		err := VerifyMokoSignature(sig, []byte(`{"reference":"MK-2"}`), secret)
		if !errors.Is(err, domain.ErrBadSignature) {
			t.Fatalf("expected ErrBadSignature, got %v", err)
		}
	})

	t.Run("non-base64 header rejected", func(t *testing.T) {
		if err := VerifyMokoSignature("!!!", body, secret); !errors.Is(err, domain.ErrBadSignature) {
			t.Fatalf("expected ErrBadSignature, got %v", err)
		}
	})

	t.Run("empty header rejected", func(t *testing.T) {
		if err := VerifyMokoSignature("", body, secret); !errors.Is(err, domain.ErrBadSignature) {
			t.Fatalf("expected ErrBadSignature, got %v", err)
		}
	})
}

func TestNormalizeStripeStatus(t *testing.T) {
	cases := map[string]model.PaymentStatus{
		"succeeded":               model.PaymentStatusCompleted,
		"canceled":                model.PaymentStatusFailed,
		"processing":              model.PaymentStatusPending,
		"requires_action":         model.PaymentStatusPending,
		"requires_payment_method": model.PaymentStatusPending,
		"":                        model.PaymentStatusPending,
	}
	for in, want := range cases {
		if got := NormalizeStripeStatus(in); got != want {
			t.Errorf("NormalizeStripeStatus(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestNormalizeMokoStatus(t *testing.T) {
	cases := map[string]model.PaymentStatus{
		"SUCCESS":    model.PaymentStatusCompleted,
		"success":    model.PaymentStatusCompleted,
		"COMPLETED":  model.PaymentStatusCompleted,
		"FAILED":     model.PaymentStatusFailed,
		"CANCELLED":  model.PaymentStatusFailed,
		"EXPIRED":    model.PaymentStatusFailed,
		"PENDING":    model.PaymentStatusPending,
		"INITIATED":  model.PaymentStatusPending,
		"AWAITING_X": model.PaymentStatusPending,
	}
	for in, want := range cases {
		if got := NormalizeMokoStatus(in); got != want {
			t.Errorf("NormalizeMokoStatus(%q) = %s, want %s", in, got, want)
		}
	}
}

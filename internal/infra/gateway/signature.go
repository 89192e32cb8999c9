// File: internal/infra/gateway/signature.go
package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"goshopper-backend/internal/domain"
)

// stripeSignatureTolerance bounds how stale a signed timestamp may be
// before the event is treated as a replay.
const stripeSignatureTolerance = 5 * time.Minute

// VerifyStripeSignature checks the Stripe-Signature header against the raw
// event body. The header carries a signed timestamp and one or more v1
// signatures, each an HMAC-SHA256 of "<timestamp>.<body>" keyed with the
// endpoint secret.
func VerifyStripeSignature(header string, body []byte, secret string, now time.Time) error {
	if header == "" || secret == "" {
		return domain.ErrBadSignature
	}

	var ts int64
	var candidates []string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			v, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return domain.ErrBadSignature
			}
			ts = v
		case "v1":
			candidates = append(candidates, kv[1])
		}
	}
	if ts == 0 || len(candidates) == 0 {
		return domain.ErrBadSignature
	}

	age := now.Sub(time.Unix(ts, 0))
	if age > stripeSignatureTolerance || age < -stripeSignatureTolerance {
		return domain.ErrBadSignature
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := mac.Sum(nil)

	for _, c := range candidates {
		sig, err := hex.DecodeString(c)
		if err != nil {
			continue
		}
		if hmac.Equal(sig, expected) {
			return nil
		}
	}
	return domain.ErrBadSignature
}

// SignStripePayload produces a Stripe-Signature header value for the body.
// Used by tests and the dev harness.
func SignStripePayload(body []byte, secret string, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	return "t=" + ts + ",v1=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifyMokoSignature checks the X-Moko-Signature header, a base64
// HMAC-SHA256 of the raw callback body keyed with the shared secret.
func VerifyMokoSignature(header string, body []byte, secret string) error {
	if header == "" || secret == "" {
		return domain.ErrBadSignature
	}
	sig, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return domain.ErrBadSignature
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	if !hmac.Equal(sig, mac.Sum(nil)) {
		return domain.ErrBadSignature
	}
	return nil
}

// SignMokoPayload produces an X-Moko-Signature header value for the body.
func SignMokoPayload(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// File: internal/infra/notify/notifier.go
package notify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"goshopper-backend/internal/domain/model"
	"goshopper-backend/internal/domain/ports/adapter"
	"goshopper-backend/internal/infra/worker"
)

var _ adapter.Notifier = (*PushNotifier)(nil)

// Sender delivers one rendered message to a user's device. The mobile app
// registers device tokens out of band; the sender resolves them.
type Sender interface {
	Send(ctx context.Context, userID, title, body string) error
}

// PushNotifier renders subscription lifecycle events into push messages and
// hands delivery to the worker pool so callers never block on it.
type PushNotifier struct {
	sender Sender
	pool   *worker.Pool
	log    zerolog.Logger
}

func NewPushNotifier(sender Sender, pool *worker.Pool, logger zerolog.Logger) *PushNotifier {
	return &PushNotifier{
		sender: sender,
		pool:   pool,
		log:    logger.With().Str("component", "notifier").Logger(),
	}
}

func (n *PushNotifier) dispatch(userID, title, body string) error {
	err := n.pool.Submit(func(ctx context.Context) error {
		if err := n.sender.Send(ctx, userID, title, body); err != nil {
			return fmt.Errorf("push to %s: %w", userID, err)
		}
		return nil
	})
	if err != nil {
		n.log.Warn().Err(err).Str("user_id", userID).Msg("notification dropped")
	}
	return nil
}

func (n *PushNotifier) PaymentSucceeded(ctx context.Context, userID string, p *model.Payment) error {
	body := fmt.Sprintf("Your %s payment was received. Your subscription is now active.", p.PlanID)
	return n.dispatch(userID, "Payment received", body)
}

func (n *PushNotifier) SubscriptionExpiring(ctx context.Context, userID string, daysLeft int) error {
	body := fmt.Sprintf("Your subscription ends in %d day(s). Renew to keep scanning.", daysLeft)
	return n.dispatch(userID, "Subscription expiring", body)
}

func (n *PushNotifier) SubscriptionExpired(ctx context.Context, userID string) error {
	return n.dispatch(userID, "Subscription expired", "Your subscription has ended. Renew any time to pick up where you left off.")
}

func (n *PushNotifier) TrialExpired(ctx context.Context, userID string) error {
	return n.dispatch(userID, "Trial ended", "Your free trial has ended. Subscribe to keep comparing prices.")
}

// LogSender is the dev stand-in for a real push provider.
type LogSender struct {
	log zerolog.Logger
}

func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{log: logger.With().Str("component", "push-log").Logger()}
}

func (s *LogSender) Send(ctx context.Context, userID, title, body string) error {
	s.log.Info().Str("user_id", userID).Str("title", title).Str("body", body).Msg("push")
	return nil
}

package gateway

import (
	"context"
	"fmt"
	"sync"

	"goshopper-backend/internal/domain/model"
	"goshopper-backend/internal/domain/ports/adapter"
)

var (
	_ adapter.CardGateway        = (*NoopGateway)(nil)
	_ adapter.MobileMoneyGateway = (*NoopGateway)(nil)
)

// NoopGateway is a simple in-memory gateway for local/dev runs. Every
// intent or charge it opens reports completed on the first query, so a
// dev stack reconciles payments without touching real providers.
type NoopGateway struct {
	mu   sync.Mutex
	seq  int64
	seen map[string]bool
}

func NewNoopGateway() *NoopGateway {
	return &NoopGateway{seen: make(map[string]bool)}
}

func (g *NoopGateway) Name() string { return "noop" }

func (g *NoopGateway) next(prefix string) string {
	g.seq++
	return fmt.Sprintf("%s-%d", prefix, g.seq)
}

func (g *NoopGateway) CreateIntent(ctx context.Context, amount int64, currency, transactionID, userID, email string) (string, string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.next("noop_pi")
	g.seen[id] = true
	return id, id + "_secret", nil
}

func (g *NoopGateway) QueryIntent(ctx context.Context, intentID string) (model.PaymentStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.seen[intentID] {
		return "", fmt.Errorf("noop: unknown intent %s", intentID)
	}
	return model.PaymentStatusCompleted, nil
}

func (g *NoopGateway) RequestCharge(ctx context.Context, amount int64, currency, phoneNumber string, carrier model.PaymentProvider, transactionID string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ref := g.next("noop_ref")
	g.seen[ref] = true
	return ref, nil
}

func (g *NoopGateway) QueryCharge(ctx context.Context, reference string) (model.PaymentStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.seen[reference] {
		return "", fmt.Errorf("noop: unknown reference %s", reference)
	}
	return model.PaymentStatusCompleted, nil
}

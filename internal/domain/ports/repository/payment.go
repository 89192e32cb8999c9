package repository

import (
	"context"
	"time"

	"goshopper-backend/internal/domain/model"
)

// PaymentRepository is the port for the payment ledger. Rows are keyed by
// transaction id and never deleted.
type PaymentRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Payment) error
	// FindByTransactionID locks the row FOR UPDATE when tx is a real transaction.
	FindByTransactionID(ctx context.Context, tx Tx, transactionID string) (*model.Payment, error)
	// FindByProviderReference resolves a payment from a Stripe intent id or a
	// Moko reference.
	FindByProviderReference(ctx context.Context, tx Tx, reference string) (*model.Payment, error)
	SetProviderReference(ctx context.Context, tx Tx, transactionID string, p *model.Payment) error
	// UpdateStatus applies a terminal status. completedAt is set only for
	// completed payments.
	UpdateStatus(ctx context.Context, tx Tx, transactionID string, status model.PaymentStatus, note string, completedAt *time.Time) error
	// ListPendingOlderThan feeds the reconciler worker.
	ListPendingOlderThan(ctx context.Context, tx Tx, cutoff time.Time, limit int) ([]*model.Payment, error)
}

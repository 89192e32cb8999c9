package ai

import (
	"context"
	"time"

	"goshopper-backend/internal/domain/model"
	"goshopper-backend/internal/domain/ports/adapter"
)

var _ adapter.ReceiptParser = (*NoopReceiptParser)(nil)

// NoopReceiptParser implements adapter.ReceiptParser for local/dev runs.
// It returns a canned receipt instead of calling a real model.
type NoopReceiptParser struct{}

func NewNoopReceiptParser() *NoopReceiptParser { return &NoopReceiptParser{} }

func (p *NoopReceiptParser) Parse(ctx context.Context, imageURL string) (*model.ParsedReceipt, error) {
	select {
	case <-time.After(50 * time.Millisecond):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &model.ParsedReceipt{
		StoreName: "Dev Mart",
		Currency:  "USD",
		Total:     1297,
		Items: []model.ReceiptItem{
			{Name: "Milk 1L", Quantity: 1, UnitPrice: 299, Total: 299},
			{Name: "Bread", Quantity: 2, UnitPrice: 199, Total: 398},
			{Name: "Eggs 12pk", Quantity: 1, UnitPrice: 600, Total: 600},
		},
		ScannedAt: time.Now().UTC(),
	}, nil
}

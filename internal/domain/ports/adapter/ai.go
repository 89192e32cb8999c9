package adapter

import (
	"context"

	"goshopper-backend/internal/domain/model"
)

// ReceiptParser is the external AI model that turns a receipt image into
// structured line items. Consumed strictly as a black box.
type ReceiptParser interface {
	Parse(ctx context.Context, imageURL string) (*model.ParsedReceipt, error)
}

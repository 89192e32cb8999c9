package model

import "time"

// ReceiptItem is one structured line item returned by the external parser.
type ReceiptItem struct {
	Name      string  `json:"name"`
	Quantity  float64 `json:"quantity"`
	UnitPrice int64   `json:"unit_price"` // minor units
	Total     int64   `json:"total"`
}

// ParsedReceipt is the black-box parser output for one scanned receipt.
type ParsedReceipt struct {
	StoreName string        `json:"store_name"`
	Currency  string        `json:"currency"`
	Total     int64         `json:"total"`
	Items     []ReceiptItem `json:"items"`
	ScannedAt time.Time     `json:"scanned_at"`
}

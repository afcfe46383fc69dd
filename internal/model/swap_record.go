package model

import "github.com/shopspring/decimal"

// Swap record statuses.
const (
	SwapStatusSettled   = "settled"
	SwapStatusCancelled = "cancelled"
	SwapStatusFailed    = "failed"
)

// SwapRecord is a journal row for a finished swap. For partially-cancelled
// multi-hop swaps CancelledHop holds the zero-based index of the hop that was
// rejected; Received then reflects what the settled prefix produced.
type SwapRecord struct {
	CorrelationID uint64          `json:"correlation_id"`
	Owner         string          `json:"owner"`
	FromRoot      string          `json:"from_root"`
	ToRoot        string          `json:"to_root"`
	Route         []string        `json:"route"`
	Spent         decimal.Decimal `json:"spent"`
	Received      decimal.Decimal `json:"received"`
	Status        string          `json:"status"`
	CancelledHop  int             `json:"cancelled_hop,omitempty"`
	SubmittedAt   int64           `json:"submitted_at"`
	SettledAt     int64           `json:"settled_at"`
}

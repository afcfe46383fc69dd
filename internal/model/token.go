package model

import "github.com/shopspring/decimal"

// Token captures token metadata plus optional per-user wallet state. Tokens
// are never deleted once discovered; stale balances are overwritten by the
// next sync.
type Token struct {
	Root     string `json:"root"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals uint8  `json:"decimals"`

	// Wallet and Balance are filled lazily for the current user.
	Wallet    string          `json:"wallet,omitempty"`
	Balance   decimal.Decimal `json:"balance,omitempty"`
	SyncedAt  int64           `json:"synced_at,omitempty"`
	Imported  bool            `json:"imported,omitempty"`
}

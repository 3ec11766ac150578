package wallet

import (
	"time"

	"github.com/google/uuid"
)

// DefaultCurrency is assigned to wallets created without one.
const DefaultCurrency = "NGN"

// Wallet holds a user's balance in minor units.
type Wallet struct {
	ID           uuid.UUID `db:"id" json:"id"`
	UserID       uuid.UUID `db:"user_id" json:"user_id"`
	Balance      int64     `db:"balance" json:"balance"`
	CurrencyCode string    `db:"currency_code" json:"currency_code"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// CanCover reports whether the balance covers amount.
func (w *Wallet) CanCover(amount int64) bool {
	return amount > 0 && w.Balance >= amount
}

package transfer

import (
	"time"

	"github.com/google/uuid"
)

// Status is the terminal state of a Transaction.
type Status string

const (
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
)

// Direction is a history entry as seen from the caller's wallet.
type Direction string

const (
	DirectionSent     Direction = "sent"
	DirectionReceived Direction = "received"
)

// PaymentIntent is a proposed transfer waiting for its one-time code.
// It is never updated; a Transaction referencing it marks it consumed.
type PaymentIntent struct {
	ID                uuid.UUID `db:"id" json:"id"`
	IdempotencyKey    string    `db:"idempotency_key" json:"idempotency_key"`
	UserID            uuid.UUID `db:"user_id" json:"user_id"`
	SenderWalletID    uuid.UUID `db:"sender_wallet_id" json:"sender_wallet_id"`
	RecipientWalletID uuid.UUID `db:"recipient_wallet_id" json:"recipient_wallet_id"`
	Amount            int64     `db:"amount" json:"amount"`
	OTPCode           string    `db:"otp_code" json:"-"`
	ExpiresAt         time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`

	Transaction *Transaction `db:"-" json:"transaction,omitempty"`
}

// Consumed reports whether a Transaction already exists for the intent.
func (p *PaymentIntent) Consumed() bool {
	return p.Transaction != nil
}

// Expired reports whether the intent can no longer be completed at now.
func (p *PaymentIntent) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// Transaction is the durable record of a completion attempt.
type Transaction struct {
	ID                uuid.UUID `db:"id" json:"id"`
	Amount            int64     `db:"amount" json:"amount"`
	SenderWalletID    uuid.UUID `db:"sender_wallet_id" json:"sender_wallet_id"`
	RecipientWalletID uuid.UUID `db:"recipient_wallet_id" json:"recipient_wallet_id"`
	PaymentIntentID   uuid.UUID `db:"payment_intent_id" json:"payment_intent_id"`
	Status            Status    `db:"status" json:"status"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

// Counterparty is the other side of a history entry.
type Counterparty struct {
	UserID uuid.UUID `json:"user_id"`
	Name   string    `json:"name"`
	Email  string    `json:"email"`
}

// HistoryEntry is a Transaction annotated for the caller.
type HistoryEntry struct {
	ID           uuid.UUID    `json:"id"`
	Amount       int64        `json:"amount"`
	Status       Status       `json:"status"`
	Direction    Direction    `json:"direction"`
	Counterparty Counterparty `json:"counterparty"`
	CurrencyCode string       `json:"currency_code"`
	CreatedAt    time.Time    `json:"created_at"`
}

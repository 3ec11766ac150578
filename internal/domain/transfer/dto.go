package transfer

import (
	"time"

	"github.com/google/uuid"
)

// InitiateRequest for POST /transactions/initiate. Amount is checked by the
// service so that a bad PIN is reported before a bad amount.
type InitiateRequest struct {
	Amount         int64  `json:"amount"`
	Pin            string `json:"pin" validate:"required,max=64"`
	RecipientID    string `json:"recipient_id" validate:"required,uuid"`
	IdempotencyKey string `json:"idempotency_key" validate:"omitempty,idempotency_key"`
}

// CompleteRequest for POST /transactions/complete
type CompleteRequest struct {
	OTPCode        string `json:"otp_code" validate:"required,otp"`
	IdempotencyKey string `json:"idempotency_key" validate:"required,max=128"`
}

// IntentResponse is a PaymentIntent as returned to its creator.
type IntentResponse struct {
	ID                uuid.UUID `json:"id"`
	IdempotencyKey    string    `json:"idempotency_key"`
	SenderWalletID    uuid.UUID `json:"sender_wallet_id"`
	RecipientWalletID uuid.UUID `json:"recipient_wallet_id"`
	Amount            int64     `json:"amount"`
	OTPCode           string    `json:"otp_code,omitempty"`
	ExpiresAt         time.Time `json:"expires_at"`
	CreatedAt         time.Time `json:"created_at"`
}

// NewIntentResponse converts an intent; the code is included only when
// exposeOTP is set.
func NewIntentResponse(p *PaymentIntent, exposeOTP bool) *IntentResponse {
	resp := &IntentResponse{
		ID:                p.ID,
		IdempotencyKey:    p.IdempotencyKey,
		SenderWalletID:    p.SenderWalletID,
		RecipientWalletID: p.RecipientWalletID,
		Amount:            p.Amount,
		ExpiresAt:         p.ExpiresAt,
		CreatedAt:         p.CreatedAt,
	}
	if exposeOTP {
		resp.OTPCode = p.OTPCode
	}
	return resp
}

package transfer

import "errors"

var (
	ErrInvalidPin              = errors.New("invalid pin")
	ErrInvalidAmount           = errors.New("amount must be greater than 0")
	ErrInsufficientBalance     = errors.New("insufficient balance")
	ErrWalletNotFound          = errors.New("wallet not found")
	ErrRecipientNotFound       = errors.New("recipient not found")
	ErrSelfTransfer            = errors.New("cannot transfer to own wallet")
	ErrDuplicateIdempotencyKey = errors.New("idempotency key already used")
	ErrIntentNotFound          = errors.New("payment intent not found")
	ErrInvalidOTP              = errors.New("invalid otp code")
	ErrIntentExpired           = errors.New("payment intent expired")
	ErrCompletionInProgress    = errors.New("completion already in progress")
	ErrTransferFailed          = errors.New("transaction failed")
	ErrInvalidPagination       = errors.New("page and limit must be positive")

	// ErrAlreadySettled is returned by the store when another completion
	// created the intent's Transaction first.
	ErrAlreadySettled = errors.New("payment intent already settled")
)

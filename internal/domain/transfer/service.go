package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/opticash/opticash-api/internal/domain/user"
	"github.com/opticash/opticash-api/internal/domain/wallet"
	"github.com/opticash/opticash-api/internal/pkg/email"
	"github.com/opticash/opticash-api/internal/pkg/lock"
)

const (
	MsgInitiated        = "Transaction initiated successfully"
	MsgCompleted        = "Transaction completed successfully"
	MsgAlreadyProcessed = "Transaction already processed"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// Identity is the user lookup and PIN check the engine consumes.
type Identity interface {
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
	VerifyPin(ctx context.Context, userID uuid.UUID, pin string) (*user.User, error)
}

// Wallets reads wallets.
type Wallets interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*wallet.Wallet, error)
	GetByID(ctx context.Context, id uuid.UUID) (*wallet.Wallet, error)
}

// Store persists intents and transactions. *Repository implements it.
type Store interface {
	CreateIntent(ctx context.Context, p *PaymentIntent) error
	GetIntentByKey(ctx context.Context, key string) (*PaymentIntent, error)
	Settle(ctx context.Context, p *PaymentIntent) (*Transaction, error)
	RecordFailure(ctx context.Context, p *PaymentIntent) (*Transaction, error)
	ListHistory(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]HistoryEntry, int, error)
}

// Notifier queues outbound email without waiting for delivery.
type Notifier interface {
	Enqueue(msg *email.Message) error
}

// Config holds engine settings.
type Config struct {
	IntentTTL time.Duration
}

// InitiateInput is a request to start a transfer.
type InitiateInput struct {
	CallerID       uuid.UUID
	RecipientID    uuid.UUID
	Amount         int64
	Pin            string
	IdempotencyKey string // optional; generated when empty
}

// InitiateResult is returned by Initiate.
type InitiateResult struct {
	Message string
	Intent  *PaymentIntent
}

// CompleteResult is returned by Complete.
type CompleteResult struct {
	Message          string
	Transaction      *Transaction
	AlreadyProcessed bool
}

// HistoryPage is one page of history.
type HistoryPage struct {
	Entries []HistoryEntry
	Total   int
	Page    int
	Limit   int
}

// Service is the settlement engine.
type Service struct {
	users    Identity
	wallets  Wallets
	store    Store
	locker   lock.Locker
	notifier Notifier
	cfg      Config
	now      func() time.Time
}

// NewService creates the settlement engine.
func NewService(users Identity, wallets Wallets, store Store, locker lock.Locker, notifier Notifier, cfg Config) *Service {
	if cfg.IntentTTL <= 0 {
		cfg.IntentTTL = 5 * time.Minute
	}
	return &Service{
		users:    users,
		wallets:  wallets,
		store:    store,
		locker:   locker,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
	}
}

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Initiate verifies the caller and issues a PaymentIntent guarded by a
// one-time code mailed to the caller. Checks run in a fixed order: PIN,
// amount and balance, then recipient.
func (s *Service) Initiate(ctx context.Context, in InitiateInput) (*InitiateResult, error) {
	caller, err := s.users.VerifyPin(ctx, in.CallerID, in.Pin)
	if err != nil {
		if errors.Is(err, user.ErrInvalidPin) {
			log.Warn().Str("user_id", in.CallerID.String()).Msg("initiate rejected: invalid pin")
			return nil, ErrInvalidPin
		}
		return nil, fmt.Errorf("verify pin: %w", err)
	}

	if in.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	senderWallet, err := s.wallets.GetByUserID(ctx, caller.ID)
	if err != nil {
		if errors.Is(err, wallet.ErrWalletNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("load sender wallet: %w", err)
	}
	if in.Amount > senderWallet.Balance {
		log.Warn().
			Str("user_id", caller.ID.String()).
			Int64("amount", in.Amount).
			Int64("balance", senderWallet.Balance).
			Msg("initiate rejected: insufficient balance")
		return nil, ErrInsufficientBalance
	}

	recipient, err := s.users.GetByID(ctx, in.RecipientID)
	if err != nil {
		return nil, fmt.Errorf("load recipient: %w", err)
	}
	if recipient == nil {
		return nil, ErrRecipientNotFound
	}
	recipientWallet, err := s.wallets.GetByUserID(ctx, recipient.ID)
	if err != nil {
		if errors.Is(err, wallet.ErrWalletNotFound) {
			return nil, ErrRecipientNotFound
		}
		return nil, fmt.Errorf("load recipient wallet: %w", err)
	}
	if recipientWallet.ID == senderWallet.ID {
		return nil, ErrSelfTransfer
	}

	code, err := GenerateOTP()
	if err != nil {
		return nil, fmt.Errorf("generate otp: %w", err)
	}

	key := in.IdempotencyKey
	if key == "" {
		key = uuid.New().String()
	}

	now := s.now().UTC()
	intent := &PaymentIntent{
		ID:                uuid.New(),
		IdempotencyKey:    key,
		UserID:            caller.ID,
		SenderWalletID:    senderWallet.ID,
		RecipientWalletID: recipientWallet.ID,
		Amount:            in.Amount,
		OTPCode:           code,
		ExpiresAt:         now.Add(s.cfg.IntentTTL),
		CreatedAt:         now,
	}

	if err := s.store.CreateIntent(ctx, intent); err != nil {
		return nil, err
	}

	s.notify(&email.Message{
		To:       caller.Email,
		ToName:   caller.Name,
		Subject:  "Confirm your transfer",
		Template: email.TemplatePaymentIntent,
		Data: map[string]any{
			"Name":             caller.Name,
			"OTPCode":          code,
			"ExpiresInMinutes": int(s.cfg.IntentTTL.Minutes()),
		},
	})

	log.Info().
		Str("payment_intent_id", intent.ID.String()).
		Str("user_id", caller.ID.String()).
		Int64("amount", intent.Amount).
		Msg(MsgInitiated)

	return &InitiateResult{Message: MsgInitiated, Intent: intent}, nil
}

// Complete consumes the intent for key if otpCode matches and it has not
// expired. Completing an already consumed intent returns its Transaction.
// Concurrent completions of one key are serialized by a lease, and the
// store's unique intent reference guarantees a single Transaction.
func (s *Service) Complete(ctx context.Context, otpCode, key string) (*CompleteResult, error) {
	var result *CompleteResult
	err := s.locker.WithLock(ctx, lockKey(key), func(ctx context.Context) error {
		var err error
		result, err = s.complete(ctx, otpCode, key)
		return err
	})
	if errors.Is(err, lock.ErrNotAcquired) {
		log.Warn().Str("idempotency_key", key).Msg("complete rejected: another completion holds the lease")
		return nil, ErrCompletionInProgress
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func lockKey(key string) string {
	return "lock:payment_intent:" + key
}

func (s *Service) complete(ctx context.Context, otpCode, key string) (*CompleteResult, error) {
	intent, err := s.store.GetIntentByKey(ctx, key)
	if err != nil {
		return nil, err
	}

	if intent.Consumed() {
		log.Info().Str("idempotency_key", key).Msg(MsgAlreadyProcessed)
		return &CompleteResult{Message: MsgAlreadyProcessed, Transaction: intent.Transaction, AlreadyProcessed: true}, nil
	}

	if otpCode != intent.OTPCode {
		log.Warn().Str("idempotency_key", key).Msg("complete rejected: invalid otp")
		return nil, ErrInvalidOTP
	}
	if intent.Expired(s.now()) {
		log.Warn().Str("idempotency_key", key).Msg("complete rejected: intent expired")
		return nil, ErrIntentExpired
	}

	txn, err := s.store.Settle(ctx, intent)
	if err != nil {
		if errors.Is(err, ErrAlreadySettled) {
			existing, lookupErr := s.store.GetIntentByKey(ctx, key)
			if lookupErr != nil {
				return nil, lookupErr
			}
			return &CompleteResult{Message: MsgAlreadyProcessed, Transaction: existing.Transaction, AlreadyProcessed: true}, nil
		}
		return nil, s.fail(ctx, intent, err)
	}

	log.Info().
		Str("transaction_id", txn.ID.String()).
		Str("payment_intent_id", intent.ID.String()).
		Int64("amount", txn.Amount).
		Msg(MsgCompleted)

	s.sendReceipts(ctx, intent)

	return &CompleteResult{Message: MsgCompleted, Transaction: txn}, nil
}

// fail records the FAILED Transaction and returns the error for the caller.
func (s *Service) fail(ctx context.Context, intent *PaymentIntent, cause error) error {
	log.Error().Err(cause).
		Str("payment_intent_id", intent.ID.String()).
		Str("idempotency_key", intent.IdempotencyKey).
		Msg("transfer failed")

	// The request context may be the reason the transfer failed.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), queryTimeout)
	defer cancel()

	if _, err := s.store.RecordFailure(recordCtx, intent); err != nil {
		log.Error().Err(err).Str("payment_intent_id", intent.ID.String()).Msg("failed to record failed transaction")
	}
	return fmt.Errorf("%w: %v", ErrTransferFailed, cause)
}

func (s *Service) sendReceipts(ctx context.Context, intent *PaymentIntent) {
	sender, senderWallet, err := s.owner(ctx, intent.SenderWalletID)
	if err != nil {
		log.Error().Err(err).Str("payment_intent_id", intent.ID.String()).Msg("receipts skipped: sender lookup failed")
		return
	}
	recipient, _, err := s.owner(ctx, intent.RecipientWalletID)
	if err != nil {
		log.Error().Err(err).Str("payment_intent_id", intent.ID.String()).Msg("receipts skipped: recipient lookup failed")
		return
	}

	currency := senderWallet.CurrencyCode

	s.notify(&email.Message{
		To:       sender.Email,
		ToName:   sender.Name,
		Subject:  "Transfer successful",
		Template: email.TemplateTransferSent,
		Data: map[string]any{
			"Name":          sender.Name,
			"Amount":        intent.Amount,
			"Currency":      currency,
			"RecipientName": recipient.Name,
		},
	})
	s.notify(&email.Message{
		To:       recipient.Email,
		ToName:   recipient.Name,
		Subject:  "You received money",
		Template: email.TemplateTransferReceived,
		Data: map[string]any{
			"Name":       recipient.Name,
			"Amount":     intent.Amount,
			"Currency":   currency,
			"SenderName": sender.Name,
		},
	})
}

func (s *Service) owner(ctx context.Context, walletID uuid.UUID) (*user.User, *wallet.Wallet, error) {
	w, err := s.wallets.GetByID(ctx, walletID)
	if err != nil {
		return nil, nil, err
	}
	u, err := s.users.GetByID(ctx, w.UserID)
	if err != nil {
		return nil, nil, err
	}
	if u == nil {
		return nil, nil, user.ErrUserNotFound
	}
	return u, w, nil
}

func (s *Service) notify(msg *email.Message) {
	if err := s.notifier.Enqueue(msg); err != nil {
		log.Error().Err(err).Str("template", msg.Template).Msg("failed to enqueue notification")
	}
}

// History returns the caller's transactions, newest first. Zero page or
// limit select the defaults; limit is capped at MaxLimit.
func (s *Service) History(ctx context.Context, userID uuid.UUID, page, limit int) (*HistoryPage, error) {
	if page < 0 || limit < 0 {
		return nil, ErrInvalidPagination
	}
	if page == 0 {
		page = DefaultPage
	}
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	w, err := s.wallets.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, wallet.ErrWalletNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("load wallet: %w", err)
	}

	entries, total, err := s.store.ListHistory(ctx, w.ID, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}

	return &HistoryPage{Entries: entries, Total: total, Page: page, Limit: limit}, nil
}

package transfer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const queryTimeout = 3 * time.Second

const uniqueViolation = "23505"

// WalletLedger moves balance inside a caller-owned transaction.
// *wallet.Repository implements it.
type WalletLedger interface {
	DebitTx(ctx context.Context, tx *sqlx.Tx, walletID uuid.UUID, amount int64) error
	CreditTx(ctx context.Context, tx *sqlx.Tx, walletID uuid.UUID, amount int64) error
}

// Repository is the Postgres store for intents and transactions.
type Repository struct {
	db     *sqlx.DB
	ledger WalletLedger
}

func NewRepository(db *sqlx.DB, ledger WalletLedger) *Repository {
	return &Repository{db: db, ledger: ledger}
}

const intentColumns = `id, idempotency_key, user_id, sender_wallet_id, recipient_wallet_id, amount, otp_code, expires_at, created_at`

const transactionColumns = `id, amount, sender_wallet_id, recipient_wallet_id, payment_intent_id, status, created_at`

// CreateIntent persists p. A reused idempotency key yields ErrDuplicateIdempotencyKey.
func (r *Repository) CreateIntent(ctx context.Context, p *PaymentIntent) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payment_intents (`+intentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, p.ID, p.IdempotencyKey, p.UserID, p.SenderWalletID, p.RecipientWalletID,
		p.Amount, p.OTPCode, p.ExpiresAt, p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("create payment intent: %w", err)
	}
	return nil
}

// GetIntentByKey loads the intent with its Transaction, if any.
func (r *Repository) GetIntentByKey(ctx context.Context, key string) (*PaymentIntent, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var p PaymentIntent
	err := r.db.GetContext(ctx, &p, `SELECT `+intentColumns+` FROM payment_intents WHERE idempotency_key = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrIntentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get payment intent: %w", err)
	}

	t, err := r.transactionByIntent(ctx, r.db, p.ID)
	if err != nil {
		return nil, err
	}
	p.Transaction = t
	return &p, nil
}

// Settle runs the atomic transfer for p: the SUCCEEDED Transaction, the
// sender debit and the recipient credit commit together or not at all.
func (r *Repository) Settle(ctx context.Context, p *PaymentIntent) (*Transaction, error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("begin settle tx: %w", err)
	}
	defer tx.Rollback()

	t := &Transaction{
		ID:                uuid.New(),
		Amount:            p.Amount,
		SenderWalletID:    p.SenderWalletID,
		RecipientWalletID: p.RecipientWalletID,
		PaymentIntentID:   p.ID,
		Status:            StatusSucceeded,
	}

	err = tx.GetContext(ctx, &t.CreatedAt, `
		INSERT INTO transactions (id, amount, sender_wallet_id, recipient_wallet_id, payment_intent_id, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, t.ID, t.Amount, t.SenderWalletID, t.RecipientWalletID, t.PaymentIntentID, t.Status)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAlreadySettled
		}
		return nil, fmt.Errorf("insert transaction: %w", err)
	}

	// Lock both rows in a fixed order so opposite transfers cannot deadlock.
	var locked []uuid.UUID
	if err := tx.SelectContext(ctx, &locked, `
		SELECT id FROM wallets WHERE id IN ($1, $2) ORDER BY id FOR UPDATE
	`, p.SenderWalletID, p.RecipientWalletID); err != nil {
		return nil, fmt.Errorf("lock wallets: %w", err)
	}

	if err := r.ledger.DebitTx(ctx, tx, p.SenderWalletID, p.Amount); err != nil {
		return nil, err
	}
	if err := r.ledger.CreditTx(ctx, tx, p.RecipientWalletID, p.Amount); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAlreadySettled
		}
		return nil, fmt.Errorf("commit settle tx: %w", err)
	}
	return t, nil
}

// RecordFailure stores a FAILED Transaction for p. If a Transaction already
// exists for the intent, that one is returned instead.
func (r *Repository) RecordFailure(ctx context.Context, p *PaymentIntent) (*Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	t := &Transaction{
		ID:                uuid.New(),
		Amount:            p.Amount,
		SenderWalletID:    p.SenderWalletID,
		RecipientWalletID: p.RecipientWalletID,
		PaymentIntentID:   p.ID,
		Status:            StatusFailed,
	}

	err := r.db.GetContext(ctx, &t.CreatedAt, `
		INSERT INTO transactions (id, amount, sender_wallet_id, recipient_wallet_id, payment_intent_id, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (payment_intent_id) DO NOTHING
		RETURNING created_at
	`, t.ID, t.Amount, t.SenderWalletID, t.RecipientWalletID, t.PaymentIntentID, t.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return r.transactionByIntent(ctx, r.db, p.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("record failed transaction: %w", err)
	}
	return t, nil
}

// ListHistory returns a page of transactions touching walletID, newest first,
// plus the total count.
func (r *Repository) ListHistory(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]HistoryEntry, int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var total int
	if err := r.db.GetContext(ctx, &total, `
		SELECT COUNT(*) FROM transactions
		WHERE sender_wallet_id = $1 OR recipient_wallet_id = $1
	`, walletID); err != nil {
		return nil, 0, fmt.Errorf("count history: %w", err)
	}

	rows := make([]historyRow, 0)
	err := r.db.SelectContext(ctx, &rows, `
		SELECT t.id, t.amount, t.status, t.created_at,
		       CASE WHEN t.sender_wallet_id = $1 THEN 'sent' ELSE 'received' END AS direction,
		       u.id AS counterparty_id, u.name AS counterparty_name, u.email AS counterparty_email,
		       sw.currency_code
		FROM transactions t
		JOIN wallets sw ON sw.id = t.sender_wallet_id
		JOIN wallets cw ON cw.id = CASE WHEN t.sender_wallet_id = $1 THEN t.recipient_wallet_id ELSE t.sender_wallet_id END
		JOIN users u ON u.id = cw.user_id
		WHERE t.sender_wallet_id = $1 OR t.recipient_wallet_id = $1
		ORDER BY t.created_at DESC, t.id DESC
		LIMIT $2 OFFSET $3
	`, walletID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list history: %w", err)
	}

	entries := make([]HistoryEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.entry())
	}
	return entries, total, nil
}

type historyRow struct {
	ID                uuid.UUID `db:"id"`
	Amount            int64     `db:"amount"`
	Status            Status    `db:"status"`
	CreatedAt         time.Time `db:"created_at"`
	Direction         Direction `db:"direction"`
	CounterpartyID    uuid.UUID `db:"counterparty_id"`
	CounterpartyName  string    `db:"counterparty_name"`
	CounterpartyEmail string    `db:"counterparty_email"`
	CurrencyCode      string    `db:"currency_code"`
}

func (h historyRow) entry() HistoryEntry {
	return HistoryEntry{
		ID:        h.ID,
		Amount:    h.Amount,
		Status:    h.Status,
		Direction: h.Direction,
		Counterparty: Counterparty{
			UserID: h.CounterpartyID,
			Name:   h.CounterpartyName,
			Email:  h.CounterpartyEmail,
		},
		CurrencyCode: h.CurrencyCode,
		CreatedAt:    h.CreatedAt,
	}
}

func (r *Repository) transactionByIntent(ctx context.Context, q sqlx.QueryerContext, intentID uuid.UUID) (*Transaction, error) {
	var t Transaction
	err := sqlx.GetContext(ctx, q, &t, `SELECT `+transactionColumns+` FROM transactions WHERE payment_intent_id = $1`, intentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction by intent: %w", err)
	}
	return &t, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

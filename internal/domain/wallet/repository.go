package wallet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const queryTimeout = 3 * time.Second

const walletColumns = `id, user_id, balance, currency_code, created_at, updated_at`

// Repository is the Postgres wallet store.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// GetByUserID returns the wallet owned by userID.
func (r *Repository) GetByUserID(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var w Wallet
	err := r.db.GetContext(ctx, &w, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("wallet repository get by user: %w", err)
	}
	return &w, nil
}

// GetByID returns the wallet with id.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Wallet, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var w Wallet
	err := r.db.GetContext(ctx, &w, `SELECT `+walletColumns+` FROM wallets WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("wallet repository get: %w", err)
	}
	return &w, nil
}

// Create activates a wallet for userID. Activating twice returns the
// existing wallet unchanged.
func (r *Repository) Create(ctx context.Context, userID uuid.UUID, currency string) (*Wallet, error) {
	if currency == "" {
		currency = DefaultCurrency
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO wallets (id, user_id, balance, currency_code)
		VALUES ($1, $2, 0, $3)
		ON CONFLICT (user_id) DO NOTHING
	`, uuid.New(), userID, currency); err != nil {
		return nil, fmt.Errorf("wallet repository create: %w", err)
	}

	var w Wallet
	if err := r.db.GetContext(ctx, &w, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1`, userID); err != nil {
		return nil, fmt.Errorf("wallet repository create: %w", err)
	}
	return &w, nil
}

// Fund credits an initial or external deposit outside any transfer.
func (r *Repository) Fund(ctx context.Context, walletID uuid.UUID, amount int64) (*Wallet, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var w Wallet
	err := r.db.GetContext(ctx, &w, `
		UPDATE wallets SET balance = balance + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+walletColumns, walletID, amount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("wallet repository fund: %w", err)
	}
	return &w, nil
}

// DebitTx subtracts amount from walletID inside tx. The update only applies
// when the balance covers it, so concurrent debits never overdraw.
func (r *Repository) DebitTx(ctx context.Context, tx *sqlx.Tx, walletID uuid.UUID, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE wallets SET balance = balance - $2, updated_at = NOW()
		WHERE id = $1 AND balance >= $2
	`, walletID, amount)
	if err != nil {
		return fmt.Errorf("wallet debit: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("wallet debit: %w", err)
	}
	if n == 0 {
		var exists bool
		if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM wallets WHERE id = $1)`, walletID); err != nil {
			return fmt.Errorf("wallet debit: %w", err)
		}
		if !exists {
			return ErrWalletNotFound
		}
		return ErrInsufficientFunds
	}
	return nil
}

// CreditTx adds amount to walletID inside tx.
func (r *Repository) CreditTx(ctx context.Context, tx *sqlx.Tx, walletID uuid.UUID, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE wallets SET balance = balance + $2, updated_at = NOW()
		WHERE id = $1
	`, walletID, amount)
	if err != nil {
		return fmt.Errorf("wallet credit: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrWalletNotFound
	}
	return nil
}

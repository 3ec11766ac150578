package wallet

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Store is the wallet persistence the service needs.
type Store interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Wallet, error)
	Create(ctx context.Context, userID uuid.UUID, currency string) (*Wallet, error)
	Fund(ctx context.Context, walletID uuid.UUID, amount int64) (*Wallet, error)
}

type Service struct {
	repo Store
}

func NewService(repo Store) *Service {
	return &Service{repo: repo}
}

// Get returns the caller's wallet.
func (s *Service) Get(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	return s.repo.GetByUserID(ctx, userID)
}

// Activate creates the wallet for userID if it does not exist yet.
func (s *Service) Activate(ctx context.Context, userID uuid.UUID, currency string) (*Wallet, error) {
	w, err := s.repo.Create(ctx, userID, currency)
	if err != nil {
		return nil, err
	}
	log.Info().Str("user_id", userID.String()).Str("wallet_id", w.ID.String()).Msg("wallet activated")
	return w, nil
}

// Fund deposits amount into the user's wallet.
func (s *Service) Fund(ctx context.Context, userID uuid.UUID, amount int64) (*Wallet, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	w, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	funded, err := s.repo.Fund(ctx, w.ID, amount)
	if err != nil {
		return nil, err
	}
	log.Info().Str("user_id", userID.String()).Int64("amount", amount).Int64("balance", funded.Balance).Msg("wallet funded")
	return funded, nil
}

package user

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/opticash/opticash-api/internal/pkg/password"
)

// Service is the identity surface the transfer flow consumes.
type Service struct {
	repo Repository
}

// NewService creates user service
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// GetByID returns the user or nil when absent.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// VerifyPin checks pin against the user's stored hash. A missing user, an
// unset PIN and a mismatch all yield ErrInvalidPin.
func (s *Service) VerifyPin(ctx context.Context, userID uuid.UUID, pin string) (*User, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil || !u.HasPin() || pin == "" {
		return nil, ErrInvalidPin
	}

	ok, err := password.Verify(pin, u.PinHash)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID.String()).Msg("stored pin hash is malformed")
		return nil, ErrInvalidPin
	}
	if !ok {
		return nil, ErrInvalidPin
	}

	return u, nil
}

// SetPin hashes and stores a new transaction PIN.
func (s *Service) SetPin(ctx context.Context, userID uuid.UUID, pin string) error {
	hash, err := password.Hash(pin)
	if err != nil {
		return err
	}
	return s.repo.UpdatePin(ctx, userID, hash)
}

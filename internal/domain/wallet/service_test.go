package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/opticash/opticash-api/internal/middleware"
)

type stubStore struct {
	wallets map[uuid.UUID]*Wallet // by user id
	err     error
}

func (s *stubStore) GetByUserID(_ context.Context, userID uuid.UUID) (*Wallet, error) {
	if s.err != nil {
		return nil, s.err
	}
	w, ok := s.wallets[userID]
	if !ok {
		return nil, ErrWalletNotFound
	}
	return w, nil
}

func (s *stubStore) Create(_ context.Context, userID uuid.UUID, currency string) (*Wallet, error) {
	if w, ok := s.wallets[userID]; ok {
		return w, nil
	}
	w := &Wallet{ID: uuid.New(), UserID: userID, CurrencyCode: currency}
	s.wallets[userID] = w
	return w, nil
}

func (s *stubStore) Fund(_ context.Context, walletID uuid.UUID, amount int64) (*Wallet, error) {
	for _, w := range s.wallets {
		if w.ID == walletID {
			w.Balance += amount
			return w, nil
		}
	}
	return nil, ErrWalletNotFound
}

func TestServiceActivateIsIdempotent(t *testing.T) {
	svc := NewService(&stubStore{wallets: map[uuid.UUID]*Wallet{}})
	userID := uuid.New()

	first, err := svc.Activate(context.Background(), userID, "NGN")
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	second, err := svc.Activate(context.Background(), userID, "NGN")
	if err != nil {
		t.Fatalf("activate again: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("second activation must return the same wallet")
	}
}

func TestServiceFund(t *testing.T) {
	store := &stubStore{wallets: map[uuid.UUID]*Wallet{}}
	svc := NewService(store)
	userID := uuid.New()
	if _, err := svc.Activate(context.Background(), userID, ""); err != nil {
		t.Fatalf("activate: %v", err)
	}

	w, err := svc.Fund(context.Background(), userID, 500)
	if err != nil {
		t.Fatalf("fund: %v", err)
	}
	if w.Balance != 500 {
		t.Fatalf("expected 500, got %d", w.Balance)
	}

	if _, err := svc.Fund(context.Background(), userID, 0); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := svc.Fund(context.Background(), uuid.New(), 10); !errors.Is(err, ErrWalletNotFound) {
		t.Fatalf("expected ErrWalletNotFound, got %v", err)
	}
}

func TestWalletCanCover(t *testing.T) {
	w := &Wallet{Balance: 100}
	if !w.CanCover(100) || w.CanCover(101) || w.CanCover(0) {
		t.Fatalf("CanCover misreports for balance 100")
	}
}

func withUser(id uuid.UUID) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.WithUserID(r.Context(), id)))
		})
	}
}

func TestHandlerBalance(t *testing.T) {
	userID := uuid.New()
	store := &stubStore{wallets: map[uuid.UUID]*Wallet{
		userID: {ID: uuid.New(), UserID: userID, Balance: 1250, CurrencyCode: "NGN"},
	}}
	h := NewHandler(NewService(store))

	w := httptest.NewRecorder()
	h.Routes(withUser(userID)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body struct {
		Success bool            `json:"success"`
		Data    BalanceResponse `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success || body.Data.Balance != 1250 || body.Data.CurrencyCode != "NGN" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestHandlerBalanceErrors(t *testing.T) {
	h := NewHandler(NewService(&stubStore{wallets: map[uuid.UUID]*Wallet{}}))

	w := httptest.NewRecorder()
	h.Routes(withUser(uuid.New())).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}

	failing := NewHandler(NewService(&stubStore{err: errors.New("db down")}))
	w = httptest.NewRecorder()
	failing.Routes(withUser(uuid.New())).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	h.Routes(withUser(uuid.Nil)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

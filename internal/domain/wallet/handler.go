package wallet

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/opticash/opticash-api/internal/middleware"
	"github.com/opticash/opticash-api/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

// BalanceResponse is the wallet as the owner sees it.
type BalanceResponse struct {
	ID           uuid.UUID `json:"id"`
	Balance      int64     `json:"balance"`
	CurrencyCode string    `json:"currency_code"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Balance handles GET /wallet
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	wallet, err := h.svc.Get(r.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrWalletNotFound) {
			response.NotFound(w, "Wallet not found")
			return
		}
		log.Error().Err(err).Str("user_id", userID.String()).Msg("failed to load wallet")
		response.InternalError(w)
		return
	}

	response.OK(w, BalanceResponse{
		ID:           wallet.ID,
		Balance:      wallet.Balance,
		CurrencyCode: wallet.CurrencyCode,
		UpdatedAt:    wallet.UpdatedAt,
	})
}

func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Get("/", h.Balance)
	return r
}

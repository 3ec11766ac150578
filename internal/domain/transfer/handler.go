package transfer

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/opticash/opticash-api/internal/middleware"
	"github.com/opticash/opticash-api/internal/pkg/logger"
	"github.com/opticash/opticash-api/internal/pkg/response"
	"github.com/opticash/opticash-api/internal/pkg/validator"
)

// Handler handles transfer HTTP requests
type Handler struct {
	svc       *Service
	exposeOTP bool
}

// NewHandler creates transfer handler. exposeOTP puts the one-time code in
// the initiate response, for development only.
func NewHandler(svc *Service, exposeOTP bool) *Handler {
	return &Handler{svc: svc, exposeOTP: exposeOTP}
}

// Initiate handles POST /transactions/initiate
func (h *Handler) Initiate(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req InitiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	recipientID, _ := uuid.Parse(req.RecipientID)

	result, err := h.svc.Initiate(r.Context(), InitiateInput{
		CallerID:       userID,
		RecipientID:    recipientID,
		Amount:         req.Amount,
		Pin:            req.Pin,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.WithMessage(w, http.StatusCreated, result.Message, NewIntentResponse(result.Intent, h.exposeOTP))
}

// Complete handles POST /transactions/complete
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	var req CompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	result, err := h.svc.Complete(r.Context(), req.OTPCode, req.IdempotencyKey)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.WithMessage(w, http.StatusOK, result.Message, result.Transaction)
}

// History handles GET /transactions/history?page=&limit=
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	page, err := queryInt(r, "page")
	if err != nil {
		response.BadRequest(w, "page must be a positive integer")
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		response.BadRequest(w, "limit must be a positive integer")
		return
	}

	result, err := h.svc.History(r.Context(), userID, page, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.WithMeta(w, result.Entries, response.NewMeta(result.Total, result.Page, result.Limit))
}

// queryInt reads an optional positive integer; absent means 0.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, ErrInvalidPagination
	}
	return n, nil
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidPin):
		response.Unauthorized(w, "Invalid pin")
	case errors.Is(err, ErrInvalidOTP):
		response.Unauthorized(w, "Invalid OTP code")
	case errors.Is(err, ErrIntentExpired):
		response.Unauthorized(w, "Payment intent expired")
	case errors.Is(err, ErrInvalidAmount):
		response.BadRequest(w, "Amount must be greater than 0")
	case errors.Is(err, ErrInsufficientBalance):
		response.BadRequest(w, "Insufficient balance")
	case errors.Is(err, ErrSelfTransfer):
		response.BadRequest(w, "Cannot transfer to your own wallet")
	case errors.Is(err, ErrInvalidPagination):
		response.BadRequest(w, "page and limit must be positive integers")
	case errors.Is(err, ErrWalletNotFound):
		response.NotFound(w, "Wallet not found")
	case errors.Is(err, ErrRecipientNotFound):
		response.NotFound(w, "Recipient not found")
	case errors.Is(err, ErrIntentNotFound):
		response.NotFound(w, "Payment intent not found")
	case errors.Is(err, ErrDuplicateIdempotencyKey):
		response.Conflict(w, "Idempotency key already used")
	case errors.Is(err, ErrCompletionInProgress):
		response.Conflict(w, "Transaction completion already in progress")
	case errors.Is(err, ErrTransferFailed):
		response.Error(w, http.StatusInternalServerError, "TRANSFER_FAILED", "Transaction failed")
	default:
		logger.FromContext(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("transfer request failed")
		response.InternalError(w)
	}
}

// Routes mounts the transfer endpoints behind authMiddleware.
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Post("/initiate", h.Initiate)
	r.Post("/complete", h.Complete)
	r.Get("/history", h.History)
	return r
}

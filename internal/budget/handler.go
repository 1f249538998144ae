package budget

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"bullpen/internal/httputil"
	"bullpen/internal/types"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type operationRequest struct {
	UserID        string            `json:"user_id"`
	ToUserID      string            `json:"to_user_id,omitempty"`
	Amount        string            `json:"amount"`
	OperationType string            `json:"operation_type"`
	Direction     string            `json:"direction,omitempty"`
	BullPenID     *string           `json:"bull_pen_id,omitempty"`
	SeasonID      *string           `json:"season_id,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Meta          map[string]string `json:"meta,omitempty"`
}

// Operation handles POST /internal/v1/budget/{op}. The Idempotency-Key
// header is mandatory: the ledger's at-most-once contract hangs on it.
func (h *Handler) Operation(w http.ResponseWriter, r *http.Request) {
	op := chi.URLParam(r, "op")
	switch op {
	case "credit", "debit", "lock", "unlock", "transfer", "adjust":
	default:
		httputil.WriteJSON(w, http.StatusNotFound, httputil.ErrorResponse{Error: "unknown budget operation"})
		return
	}
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "Idempotency-Key header is required"})
		return
	}
	var req operationRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	if req.UserID == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "user_id is required"})
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid amount"})
		return
	}
	direction := types.LedgerDirection(req.Direction)
	if op == "adjust" && direction != types.LedgerDirectionCredit && direction != types.LedgerDirectionDebit {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "adjust requires direction credit or debit"})
		return
	}
	if op == "transfer" && req.ToUserID == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "to_user_id is required"})
		return
	}

	m := Mutation{
		UserID:         req.UserID,
		Amount:         amount,
		OperationType:  types.OperationType(req.OperationType),
		IdempotencyKey: key,
		CorrelationID:  req.CorrelationID,
		BullPenID:      req.BullPenID,
		SeasonID:       req.SeasonID,
		Meta:           req.Meta,
	}
	if op == "transfer" {
		m.UserID = req.ToUserID
	}

	res, err := h.svc.Execute(r.Context(), op, req.UserID, direction, m)
	if err != nil {
		status := http.StatusInternalServerError
		code := ""
		switch {
		case errors.Is(err, ErrInsufficientFunds):
			status, code = http.StatusUnprocessableEntity, types.CodeInsufficientFunds
		case errors.Is(err, ErrSameUser):
			status, code = http.StatusBadRequest, types.CodeSameUser
		case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrMissingKey):
			status = http.StatusBadRequest
		case errors.Is(err, ErrAccountNotActive):
			status = http.StatusConflict
		}
		httputil.WriteJSON(w, status, httputil.ErrorResponse{Error: err.Error(), Code: code})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// Balance handles GET /internal/v1/budget/{userID}/balance.
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	available, locked, status, err := h.svc.Account(r.Context(), userID)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: "failed to load account"})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"user_id":           userID,
		"available_balance": available,
		"locked_balance":    locked,
		"status":            status,
	})
}

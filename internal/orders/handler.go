package orders

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"bullpen/internal/bullpen"
	"bullpen/internal/httputil"
	"bullpen/internal/types"
)

type Handler struct {
	svc   *Service
	store *Store
}

func NewHandler(svc *Service, store *Store) *Handler {
	return &Handler{svc: svc, store: store}
}

type placeOrderRequest struct {
	Symbol     string `json:"symbol"`
	Side       string `json:"side"`
	Type       string `json:"type"`
	Qty        string `json:"qty"`
	LimitPrice string `json:"limitPrice,omitempty"`
}

// Place handles POST /api/bull-pens/{id}/orders. A business rejection
// comes back as HTTP 200 with status "rejected": it is a valid outcome,
// not a fault.
func (h *Handler) Place(w http.ResponseWriter, r *http.Request, userID string) {
	var req placeOrderRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "symbol is required"})
		return
	}
	qty, err := decimal.NewFromString(req.Qty)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid qty"})
		return
	}
	var limitPrice *decimal.Decimal
	if req.LimitPrice != "" {
		p, err := decimal.NewFromString(req.LimitPrice)
		if err != nil {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid limitPrice"})
			return
		}
		limitPrice = &p
	}
	res, err := h.svc.PlaceOrder(r.Context(), PlaceOrderRequest{
		BullPenID:  chi.URLParam(r, "id"),
		UserID:     userID,
		Symbol:     symbol,
		Side:       types.OrderSide(req.Side),
		Type:       types.OrderType(req.Type),
		Qty:        qty,
		LimitPrice: limitPrice,
	})
	if err != nil {
		status := http.StatusBadRequest
		code := ""
		switch {
		case errors.Is(err, bullpen.ErrNotFound):
			status = http.StatusNotFound
		case errors.Is(err, ErrRoomNotTradable):
			status, code = http.StatusConflict, types.CodeRoomNotTradable
		case errors.Is(err, ErrNotActiveMember):
			status, code = http.StatusForbidden, types.CodeNotActiveMember
		}
		httputil.WriteJSON(w, status, httputil.ErrorResponse{Error: err.Error(), Code: code})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request, userID string) {
	orders, err := h.store.ListByUser(r.Context(), chi.URLParam(r, "id"), userID, 50)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: "failed to list orders"})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, orders)
}

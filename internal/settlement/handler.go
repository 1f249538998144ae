package settlement

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"bullpen/internal/bullpen"
	"bullpen/internal/httputil"
	"bullpen/internal/marketdata"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Settle handles POST /internal/v1/settlement/rooms/{id}. Replays of
// an already-settled room succeed with the recorded member count.
func (h *Handler) Settle(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.SettleRoom(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// Cancel handles POST /internal/v1/cancellation/rooms/{id}.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.CancelRoom(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// Leaderboard handles GET /api/bull-pens/{id}/leaderboard.
func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request, _ string) {
	snaps, err := h.svc.Leaderboard(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snaps)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, bullpen.ErrNotFound):
		httputil.WriteJSON(w, http.StatusNotFound, httputil.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrRoomNotActive), errors.Is(err, ErrRoomNotCancelable):
		httputil.WriteJSON(w, http.StatusConflict, httputil.ErrorResponse{Error: err.Error()})
	case errors.Is(err, marketdata.ErrPriceUnavailable):
		httputil.WriteJSON(w, http.StatusServiceUnavailable,
			httputil.ErrorResponse{Error: "settlement prices unavailable", Code: "PRICE_UNAVAILABLE"})
	default:
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
	}
}

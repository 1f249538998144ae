package achievements

import (
	"net/http"

	"bullpen/internal/httputil"
	"bullpen/internal/model"
)

type Handler struct {
	store *Store
}

func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

type starsResponse struct {
	TotalStars int               `json:"total_stars"`
	Events     []model.StarEvent `json:"events"`
}

// History handles GET /api/stars: the caller's lifetime star total plus
// their most recent awards, newest first.
func (h *Handler) History(w http.ResponseWriter, r *http.Request, userID string) {
	total, err := h.store.TotalStars(r.Context(), userID)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: "failed to load stars"})
		return
	}
	events, err := h.store.ListByUser(r.Context(), userID, 50)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: "failed to load stars"})
		return
	}
	if events == nil {
		events = []model.StarEvent{}
	}
	httputil.WriteJSON(w, http.StatusOK, starsResponse{TotalStars: total, Events: events})
}

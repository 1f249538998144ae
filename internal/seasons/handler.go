package seasons

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"bullpen/internal/httputil"
)

type Handler struct {
	store *Store
}

func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	seasons, err := h.store.List(r.Context())
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: "failed to list seasons"})
		return
	}
	if seasons == nil {
		seasons = []Season{}
	}
	httputil.WriteJSON(w, http.StatusOK, seasons)
}

func (h *Handler) Active(w http.ResponseWriter, r *http.Request) {
	season, err := h.store.Active(r.Context(), time.Now())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httputil.WriteJSON(w, http.StatusNotFound, httputil.ErrorResponse{Error: "no active season"})
			return
		}
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: "failed to load season"})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, season)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	season, err := h.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httputil.WriteJSON(w, http.StatusNotFound, httputil.ErrorResponse{Error: "season not found"})
			return
		}
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: "failed to load season"})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, season)
}

type createSeasonRequest struct {
	Name     string    `json:"name"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
}

// Create handles POST /internal/v1/seasons.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSeasonRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	season, err := h.store.Create(r.Context(), req.Name, req.StartsAt, req.EndsAt)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, season)
}

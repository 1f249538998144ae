package bullpen

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"bullpen/internal/budget"
	"bullpen/internal/httputil"
	"bullpen/internal/model"
	"bullpen/internal/types"
)

type Handler struct {
	svc   *Service
	store *Store
}

func NewHandler(svc *Service, store *Store) *Handler {
	return &Handler{svc: svc, store: store}
}

type createPenRequest struct {
	Name             string  `json:"name"`
	StartingCash     string  `json:"starting_cash"`
	DurationSec      int64   `json:"duration_sec"`
	MaxPlayers       int     `json:"max_players"`
	AllowFractional  bool    `json:"allow_fractional"`
	ApprovalRequired bool    `json:"approval_required"`
	SeasonID         *string `json:"season_id,omitempty"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request, userID string) {
	var req createPenRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	startingCash, err := decimal.NewFromString(req.StartingCash)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid starting_cash"})
		return
	}
	pen, err := model.NewBullPen(req.Name, userID, startingCash, req.DurationSec, req.MaxPlayers)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	pen.AllowFractional = req.AllowFractional
	pen.ApprovalRequired = req.ApprovalRequired
	pen.SeasonID = req.SeasonID
	created, err := h.svc.Create(r.Context(), pen)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: "failed to create bull pen"})
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	pen, err := h.store.GetPen(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, pen)
}

type updatePenRequest struct {
	Name             *string `json:"name,omitempty"`
	StartingCash     *string `json:"starting_cash,omitempty"`
	DurationSec      *int64  `json:"duration_sec,omitempty"`
	MaxPlayers       *int    `json:"max_players,omitempty"`
	AllowFractional  *bool   `json:"allow_fractional,omitempty"`
	ApprovalRequired *bool   `json:"approval_required,omitempty"`
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request, userID string) {
	var req updatePenRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	params := UpdateParams{
		Name:             req.Name,
		DurationSec:      req.DurationSec,
		MaxPlayers:       req.MaxPlayers,
		AllowFractional:  req.AllowFractional,
		ApprovalRequired: req.ApprovalRequired,
	}
	if req.StartingCash != nil {
		cash, err := decimal.NewFromString(*req.StartingCash)
		if err != nil {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid starting_cash"})
			return
		}
		params.StartingCash = &cash
	}
	pen, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), userID, params)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, pen)
}

type transitionRequest struct {
	To string `json:"to"`
}

func (h *Handler) Transition(w http.ResponseWriter, r *http.Request, userID string) {
	var req transitionRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	penID := chi.URLParam(r, "id")
	pen, err := h.store.GetPen(r.Context(), penID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if pen.HostUserID != userID {
		writeServiceError(w, ErrNotHost)
		return
	}
	updated, err := h.svc.Transition(r.Context(), penID, types.RoomState(req.To))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

type joinRequest struct {
	IdempotencyKey string `json:"idempotency_key"`
}

func (h *Handler) Join(w http.ResponseWriter, r *http.Request, userID string) {
	var req joinRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	if req.IdempotencyKey == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "idempotency_key is required"})
		return
	}
	member, err := h.svc.Join(r.Context(), chi.URLParam(r, "id"), userID, req.IdempotencyKey)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, member)
}

func (h *Handler) Leave(w http.ResponseWriter, r *http.Request, userID string) {
	var req joinRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	if req.IdempotencyKey == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "idempotency_key is required"})
		return
	}
	if err := h.svc.Leave(r.Context(), chi.URLParam(r, "id"), userID, req.IdempotencyKey); err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "left"})
}

type memberActionRequest struct {
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

func (h *Handler) MemberAction(w http.ResponseWriter, r *http.Request, hostID string) {
	penID := chi.URLParam(r, "id")
	userID := chi.URLParam(r, "userID")
	action := chi.URLParam(r, "action")
	var req memberActionRequest
	if err := httputil.ReadJSON(r, &req); err != nil && action != "approve" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	var err error
	switch action {
	case "approve":
		err = h.svc.Approve(r.Context(), penID, hostID, userID)
	case "reject":
		if req.IdempotencyKey == "" {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "idempotency_key is required"})
			return
		}
		err = h.svc.Reject(r.Context(), penID, hostID, userID, req.IdempotencyKey)
	case "kick":
		if req.IdempotencyKey == "" {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "idempotency_key is required"})
			return
		}
		err = h.svc.Kick(r.Context(), penID, hostID, userID, req.IdempotencyKey)
	default:
		httputil.WriteJSON(w, http.StatusNotFound, httputil.ErrorResponse{Error: "unknown member action"})
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrMemberNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrNotHost), errors.Is(err, ErrHostCannotLeave):
		status = http.StatusForbidden
	case errors.Is(err, ErrInvalidStateTransition), errors.Is(err, ErrNotEditable),
		errors.Is(err, ErrRoomNotJoinable), errors.Is(err, ErrRoomFull),
		errors.Is(err, ErrAlreadyMember), errors.Is(err, ErrMemberNotPending):
		status = http.StatusConflict
	case errors.Is(err, budget.ErrInsufficientFunds):
		status = http.StatusUnprocessableEntity
	default:
		var invalid invalidParamError
		if errors.As(err, &invalid) {
			status = http.StatusBadRequest
		}
	}
	httputil.WriteJSON(w, status, httputil.ErrorResponse{Error: err.Error()})
}

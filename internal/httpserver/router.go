package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bullpen/internal/achievements"
	"bullpen/internal/auth"
	"bullpen/internal/budget"
	"bullpen/internal/bullpen"
	"bullpen/internal/health"
	"bullpen/internal/httputil"
	"bullpen/internal/orders"
	"bullpen/internal/seasons"
	"bullpen/internal/settlement"
)

type RouterDeps struct {
	AuthService         *auth.Service
	HealthHandler       *health.Handler
	BudgetHandler       *budget.Handler
	BullPenHandler      *bullpen.Handler
	OrderHandler        *orders.Handler
	SettlementHandler   *settlement.Handler
	SeasonsHandler      *seasons.Handler
	AchievementsHandler *achievements.Handler
	InternalToken       string
}

// withUser adapts a user-scoped handler to http.HandlerFunc; WithAuth
// must already have run on the route.
func withUser(h func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserID(r)
		if !ok {
			httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "unauthorized"})
			return
		}
		h(w, r, userID)
	}
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", d.HealthHandler.Ready)
	r.Get("/health/live", d.HealthHandler.Live)

	r.Route("/api", func(r chi.Router) {
		r.Use(WithAuth(d.AuthService))
		r.Route("/bull-pens", func(r chi.Router) {
			r.Post("/", withUser(d.BullPenHandler.Create))
			r.Get("/{id}", d.BullPenHandler.Get)
			r.Patch("/{id}", withUser(d.BullPenHandler.Update))
			r.Post("/{id}/transition", withUser(d.BullPenHandler.Transition))
			r.Post("/{id}/join", withUser(d.BullPenHandler.Join))
			r.Post("/{id}/leave", withUser(d.BullPenHandler.Leave))
			r.Post("/{id}/members/{userID}/{action}", withUser(d.BullPenHandler.MemberAction))
			r.Post("/{id}/orders", withUser(d.OrderHandler.Place))
			r.Get("/{id}/orders", withUser(d.OrderHandler.History))
			r.Get("/{id}/leaderboard", withUser(d.SettlementHandler.Leaderboard))
		})
		r.Get("/stars", withUser(d.AchievementsHandler.History))
		r.Route("/seasons", func(r chi.Router) {
			r.Get("/", d.SeasonsHandler.List)
			r.Get("/active", d.SeasonsHandler.Active)
			r.Get("/{id}", d.SeasonsHandler.Get)
		})
	})

	r.Route("/internal/v1", func(r chi.Router) {
		r.Use(InternalAuth(d.InternalToken))
		r.Post("/budget/{op}", d.BudgetHandler.Operation)
		r.Get("/budget/{userID}/balance", d.BudgetHandler.Balance)
		r.Post("/settlement/rooms/{id}", d.SettlementHandler.Settle)
		r.Post("/cancellation/rooms/{id}", d.SettlementHandler.Cancel)
		r.Post("/seasons", d.SeasonsHandler.Create)
	})

	r.With(InternalAuth(d.InternalToken)).Handle("/metrics", promhttp.Handler())

	return r
}

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"bullpen/internal/achievements"
	"bullpen/internal/auth"
	"bullpen/internal/budget"
	"bullpen/internal/bullpen"
	"bullpen/internal/config"
	"bullpen/internal/db"
	"bullpen/internal/health"
	"bullpen/internal/httpserver"
	"bullpen/internal/logger"
	"bullpen/internal/marketdata"
	"bullpen/internal/orders"
	"bullpen/internal/ranking"
	"bullpen/internal/seasons"
	"bullpen/internal/settlement"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	zlog, err := logger.New("bullpen-api", cfg.AppEnv)
	if err != nil {
		log.Fatal(err)
	}
	defer zlog.Sync()

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DBDSN)
	if err != nil {
		zlog.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
	}

	quoteSrc := marketdata.NewHTTPSource(cfg.QuoteAPIURL)
	resolver := marketdata.NewResolver(quoteSrc, rdb, cfg.QuoteTTL)

	budgetSvc := budget.NewService(pool, zlog)
	penStore := bullpen.NewStore(pool)
	penSvc := bullpen.NewService(pool, penStore, budgetSvc, zlog)
	orderStore := orders.NewStore(pool)
	orderSvc := orders.NewService(pool, orderStore, penStore, resolver, zlog)
	awardStore := achievements.NewStore(pool)
	awardSvc := achievements.NewService(awardStore, zlog)
	snapStore := settlement.NewStore(pool)
	weights := ranking.Weights{Return: cfg.WeightReturn, Pnl: cfg.WeightPnl, Stars: cfg.WeightStars}
	settleSvc := settlement.NewService(pool, penStore, orderStore, budgetSvc, snapStore,
		resolver, awardSvc, weights, zlog)

	authSvc := auth.NewService(cfg.JWTIssuer, []byte(cfg.JWTSecret), cfg.JWTTTL)

	router := httpserver.NewRouter(httpserver.RouterDeps{
		AuthService:         authSvc,
		HealthHandler:       health.NewHandler(pool, rdb, time.Now()),
		BudgetHandler:       budget.NewHandler(budgetSvc),
		BullPenHandler:      bullpen.NewHandler(penSvc, penStore),
		OrderHandler:        orders.NewHandler(orderSvc, orderStore),
		SettlementHandler:   settlement.NewHandler(settleSvc),
		SeasonsHandler:      seasons.NewHandler(seasons.NewStore(pool)),
		AchievementsHandler: achievements.NewHandler(awardStore),
		InternalToken:       cfg.InternalToken,
	})
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	zlog.Info("server listening", zap.String("addr", cfg.HTTPAddr))
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		zlog.Fatal("server stopped", zap.Error(err))
	}
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/DoyleJ11/party-trivia-backend/internal/auth"
	"github.com/DoyleJ11/party-trivia-backend/internal/authz"
	"github.com/DoyleJ11/party-trivia-backend/internal/config"
	"github.com/DoyleJ11/party-trivia-backend/internal/db"
	"github.com/DoyleJ11/party-trivia-backend/internal/feed"
	"github.com/DoyleJ11/party-trivia-backend/internal/httpapi"
	"github.com/DoyleJ11/party-trivia-backend/internal/party"
	"github.com/DoyleJ11/party-trivia-backend/internal/picks"
	"github.com/DoyleJ11/party-trivia-backend/internal/rounds"
	"github.com/DoyleJ11/party-trivia-backend/internal/stats"
	"github.com/DoyleJ11/party-trivia-backend/internal/ws"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	gdb, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database connect", zap.Error(err))
	}
	if err := db.AutoMigrate(gdb); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := feed.NewHub(ctx)
	guard := authz.NewGuard(gdb)
	jwtSvc := auth.NewJWT(cfg.JWTSecret)

	h := &httpapi.Handlers{
		Party:  party.NewService(gdb, guard, hub, logger),
		Picks:  picks.NewService(gdb, guard, hub, logger),
		Rounds: rounds.NewService(gdb, guard, hub, logger),
		Stats:  stats.NewService(gdb),
		Log:    logger,
	}
	wsHandler := ws.NewHandler(hub, guard, logger)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpapi.SetupRoutes(h, jwtSvc, wsHandler),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("server", zap.Error(err))
	}
	logger.Info("server closed")
}

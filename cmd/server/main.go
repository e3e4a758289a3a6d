package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/run-uniqueness/internal/api"
	"github.com/jengzang/run-uniqueness/internal/config"
	"github.com/jengzang/run-uniqueness/internal/database"
	"github.com/jengzang/run-uniqueness/internal/logging"
	"github.com/jengzang/run-uniqueness/internal/repository"
	"github.com/jengzang/run-uniqueness/internal/service"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Init(cfg.Logging.Logging())
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 初始化数据库
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer db.Close()

	uniquenessService, err := service.NewUniquenessService(repository.NewActivityRepository(db), cfg.Uniqueness)
	if err != nil {
		logging.Fatal().Err(err).Msg("invalid uniqueness configuration")
	}
	taskService := service.NewAnalysisTaskService(db, cfg.Uniqueness)
	statsService := service.NewStatsService(repository.NewStatsRepository(db))

	// 初始化路由
	router := api.SetupRouter(cfg, uniquenessService, taskService, statsService)
	srv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 启动服务器
	go func() {
		logging.Info().Str("addr", cfg.Server.Port).Str("algorithm", cfg.Uniqueness.Algorithm).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	logging.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("server shutdown failed")
	}
	taskService.Shutdown()
}

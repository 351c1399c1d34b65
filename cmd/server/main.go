package main

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/serrf0f/gatehouse/internal/app"
	"github.com/serrf0f/gatehouse/internal/config"
	"github.com/serrf0f/gatehouse/internal/logger"
	"github.com/serrf0f/gatehouse/internal/routes"
)

func main() {
	cfg := config.Load()

	logger.Init(cfg.IsDevelopment(), cfg.SentryDSN)

	app, err := app.New(cfg)
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		panic(err)
	}
	defer func() {
		closeErr := app.Close()
		if closeErr != nil {
			slog.Error("failed to close app", "error", closeErr)
		}
	}()

	go app.SessionService.RunExpiryGC(1 * time.Hour)

	handler := routes.SetupRoutes(app)
	slog.Info("server starting", "port", cfg.Port, "env", cfg.AppEnv, "url", "http://localhost:"+cfg.Port)

	err = http.ListenAndServe(":"+cfg.Port, handler)
	if err != nil {
		slog.Error("server failed", "error", err)
		panic(err)
	}
}

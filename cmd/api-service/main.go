package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"geousers/internal/api"
	"geousers/internal/app"
	"geousers/pkg/config"
	"geousers/pkg/logger"

	_ "geousers/docs"
)

// @title           Geo User API
// @version         1.0
// @description     Stores user profiles in a document store and their location in PostGIS, publishing a change event after every write.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log = log.With("app", "api-service")
	log.Info("Starting api-service...")

	startCtx, cancelStart := context.WithTimeout(context.Background(), 2*time.Minute)
	deps := app.Build(startCtx, cfg, log)
	cancelStart()

	handler := api.NewUserHandler(deps.Coordinator(cfg), deps.Health, log)
	router := api.NewRouter(handler, cfg.CORSAllowedOrigins, log)

	// HTTP server with graceful shutdown
	srv := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Listening", "port", cfg.APIPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server error", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}
	if err := deps.Close(ctx); err != nil {
		log.Error("Error releasing dependencies", "error", err)
	}
	log.Info("Server exited gracefully")
}

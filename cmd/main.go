package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"prizedraw/internal/config"
	"prizedraw/internal/events"
	"prizedraw/internal/handlers"
	"prizedraw/internal/services"
	"prizedraw/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"
)

func main() {
	// 1. Load configuration from the environment
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	// 2. Initialize logging; without a log file the default stderr logger is kept
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			logger.Fatalf("Failed to open log file: %v", err)
		}
		defer f.Close()
		defer logger.Init("prizedraw", cfg.LogVerbose, false, f).Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open the persistence store
	store, err := openStore(cfg)
	if err != nil {
		logger.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	// 4. Initialize the lottery service and the draw session
	lotteryService, err := services.NewLotteryService(ctx, store)
	if err != nil {
		logger.Fatalf("Failed to load lottery state: %v", err)
	}
	hub := events.NewHub()
	go hub.Run(ctx)
	session := services.NewSession(lotteryService, hub, services.WithDismissDelay(cfg.DismissDelay))
	defer session.Close()

	// 5. Set up the Gin router
	r := gin.Default()
	handlers.NewHTTPHandler(lotteryService, session, hub).RegisterRoutes(r)

	// 6. Run the server until interrupted
	srv := &http.Server{Addr: cfg.Addr, Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("Server shutdown: %v", err)
		}
	}()

	logger.Infof("Server starting on http://%s", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Errorf("Failed to run server: %v", err)
	}
	logger.Info("Server stopped")
}

func openStore(cfg config.Config) (storage.Store, error) {
	if cfg.StoreDriver == config.DriverMemory {
		logger.Info("Using in-memory store; state is lost on exit")
		return storage.NewMemoryStore(), nil
	}
	return storage.OpenSQLite(cfg.StorePath)
}

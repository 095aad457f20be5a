package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/jansahayak/agent/adapters/device"
	"github.com/jansahayak/agent/adapters/geo"
	"github.com/jansahayak/agent/adapters/live"
	sqlitestore "github.com/jansahayak/agent/adapters/store"
	"github.com/jansahayak/agent/domain/repositories"
	"github.com/jansahayak/agent/internal/api"
	"github.com/jansahayak/agent/internal/config"
	"github.com/jansahayak/agent/internal/websocket"
	"github.com/jansahayak/agent/usecase"
)

func main() {
	// Optional .env for local development; the environment always wins.
	_ = godotenv.Load()

	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load(os.Getenv("AGENT_CONFIG"))
	if err != nil {
		logger.Fatal("config load failed", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize adapters
	store, err := sqlitestore.Open(ctx, cfg.Store.Path, logger)
	if err != nil {
		logger.Fatal("store open failed", zap.Error(err))
	}
	defer store.Close()

	var transport repositories.LiveTransport
	if cfg.APIKey != "" {
		t, err := live.NewTransport(ctx, cfg.APIKey, cfg.Live.Endpoint, logger)
		if err != nil {
			logger.Fatal("live transport init failed", zap.Error(err))
		}
		transport = t
	} else {
		logger.Warn("GEMINI_API_KEY not set; session start will be refused")
	}

	mic := device.NewMic(device.MicOptions{
		FFmpegPath:  cfg.Audio.FFmpegPath,
		InputFormat: cfg.Audio.InputFormat,
		InputDevice: cfg.Audio.InputDevice,
	}, logger)
	speaker := device.NewSpeaker(device.SpeakerOptions{
		FFplayPath: cfg.Audio.FFplayPath,
		Volume:     cfg.Audio.Volume,
	}, logger)
	locator := geo.NewHTTPLocator(cfg.Agent.GeoEndpoint, logger)

	// Initialize the session driver; snapshots fan out through the hub.
	var hub *websocket.Hub
	driver, err := usecase.NewDriver(usecase.Config{
		APIKey:           cfg.APIKey,
		LiveEndpoint:     cfg.Live.Endpoint,
		DefaultRegion:    cfg.Agent.DefaultRegion,
		FallbackLanguage: cfg.Agent.FallbackLanguage,
		LocationTimeout:  time.Duration(cfg.Agent.LocationTimeoutMS) * time.Millisecond,
	}, usecase.Deps{
		Transport: transport,
		Capture:   mic,
		Playback:  speaker,
		Locator:   locator,
		Store:     store,
		Logger:    logger,
	}, func(s usecase.Snapshot) {
		hub.Publish(s)
	})
	if err != nil {
		logger.Fatal("driver init failed", zap.Error(err))
	}
	hub = websocket.NewHub(driver, logger)

	go hub.Run()
	go func() {
		if err := driver.Run(ctx); err != nil && err != context.Canceled {
			logger.Error("driver stopped", zap.Error(err))
		}
	}()

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Initialize API routes
	api.InitRoutes(e, hub, driver, store, logger)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Bind, cfg.HTTP.Port)

	// Graceful shutdown
	go func() {
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Jan Sahayak agent started", zap.String("addr", addr))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	// Stop the live session before the HTTP surface.
	driver.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

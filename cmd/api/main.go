package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/your-org/facepass/internal/api"
	"github.com/your-org/facepass/internal/api/handlers"
	"github.com/your-org/facepass/internal/api/ws"
	"github.com/your-org/facepass/internal/app"
	"github.com/your-org/facepass/internal/attendance"
	"github.com/your-org/facepass/internal/config"
	"github.com/your-org/facepass/internal/observability"
	"github.com/your-org/facepass/internal/queue"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	envFile := flag.String("env", ".env", "optional dotenv file")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load %s: %v\n", *envFile, err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting facepass API", "port", cfg.Server.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run(ctx)

	checks := []handlers.Check{}

	// With NATS configured, marks go through the stream and the hub is fed
	// by a consumer. Without it the service notifies the hub directly.
	var publisher attendance.Publisher = hub
	if cfg.NATS.URL != "" {
		producer, err := queue.NewProducer(cfg.NATS.URL)
		if err != nil {
			slog.Error("connect to nats", "error", err)
			os.Exit(1)
		}
		defer producer.Close()

		if err := producer.EnsureStreams(ctx); err != nil {
			slog.Warn("ensure nats streams", "error", err)
		}

		consumer, err := queue.NewConsumer(cfg.NATS.URL)
		if err != nil {
			slog.Error("create attendance consumer", "error", err)
			os.Exit(1)
		}
		defer consumer.Close()

		if err := consumer.ConsumeAttendance(ctx, "api-attendance", hub.PublishAttendance); err != nil {
			slog.Warn("start attendance consumer", "error", err)
		}

		go reportQueueDepth(ctx, producer)

		publisher = producer
		checks = append(checks, handlers.Check{Name: "nats", Ping: producer.Ping})
	}

	a, err := app.New(ctx, cfg, publisher)
	if err != nil {
		slog.Error("initialize service", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	checks = append(checks,
		handlers.Check{Name: "store", Ping: a.Store.Ping},
		handlers.Check{Name: "photos", Ping: a.Photos.Ping},
	)

	router := api.NewRouter(api.RouterConfig{
		Service:        a.Service,
		Hub:            hub,
		Checks:         checks,
		MaxUploadBytes: cfg.Attendance.MaxImageBytes,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down API server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	cancel()

	slog.Info("API server stopped")
}

func reportQueueDepth(ctx context.Context, producer *queue.Producer) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			depth, err := producer.QueueDepth(ctx)
			if err != nil {
				slog.Debug("read queue depth", "error", err)
				continue
			}
			observability.QueueDepth.Set(float64(depth))
		}
	}
}

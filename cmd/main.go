package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"anemia-screen/config"
	telegram "anemia-screen/internal/api"
	"anemia-screen/internal/api/web"
	"anemia-screen/internal/container"
	"anemia-screen/internal/domain/port"
	"anemia-screen/internal/infrastructure/backend"
	"anemia-screen/internal/infrastructure/camera"
	"anemia-screen/internal/infrastructure/metrics"
	"anemia-screen/internal/infrastructure/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Клиент сервиса инференса
	analyzer, err := backend.NewClient(cfg.BackendURL, cfg.AnalysisTimeout)
	if err != nil {
		log.Fatalf("Failed to create backend client: %v", err)
	}

	// Сессии живут в памяти, истёкшие освобождают камеру
	sessions := storage.NewMemorySessionRepository(cfg.SessionTTL)
	defer sessions.Close()

	var cam port.Camera
	if cfg.CameraDevice != "" {
		cam = camera.NewWebcam(cfg.CameraDevice)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder, err := metrics.NewScreeningMetrics(registry)
	if err != nil {
		log.Fatalf("Failed to register metrics: %v", err)
	}

	// Собираем сервисы приложения
	appContainer := container.New(sessions, analyzer, cam, recorder, container.Options{
		MaxUploadBytes: cfg.MaxUploadBytes,
		CameraWidth:    cfg.CameraWidth,
		CameraHeight:   cfg.CameraHeight,
	})

	handlers, err := web.NewHandlers(appContainer, cfg.MaxUploadBytes, analyzer.BaseURL())
	if err != nil {
		log.Fatalf("Failed to load templates: %v", err)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           web.NewRouter(handlers, registry),
		ReadHeaderTimeout: 10 * time.Second,
	}
	// Закрытие сессий освобождает камеру и завершает потоки превью.
	srv.RegisterOnShutdown(sessions.Close)

	go func() {
		log.Printf("Web UI listening on %s, backend %s", cfg.HTTPAddr, analyzer.BaseURL())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	if cfg.TelegramToken != "" {
		bot, err := telegram.NewBot(cfg.TelegramToken, appContainer, handlers.RenderReport)
		if err != nil {
			log.Fatalf("Failed to create bot: %v", err)
		}
		go func() {
			log.Println("Bot is running...")
			if err := bot.Run(ctx); err != nil {
				log.Printf("Bot error: %v", err)
			}
		}()
	}

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr        string
	BackendURL      string
	AnalysisTimeout time.Duration
	MaxUploadBytes  int64
	TelegramToken   string
	CameraDevice    string
	CameraWidth     int
	CameraHeight    int
	SessionTTL      time.Duration
}

func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		BackendURL:    getenv("BACKEND_URL", "http://localhost:8000"),
		TelegramToken: os.Getenv("TELEGRAM_TOKEN"),
		CameraDevice:  os.Getenv("CAMERA_DEVICE"),
	}

	var err error
	if cfg.AnalysisTimeout, err = durationEnv("ANALYSIS_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = durationEnv("SESSION_TTL", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.MaxUploadBytes, err = int64Env("MAX_UPLOAD_BYTES", 10<<20); err != nil {
		return nil, err
	}

	width, err := int64Env("CAMERA_WIDTH", 1280)
	if err != nil {
		return nil, err
	}
	height, err := int64Env("CAMERA_HEIGHT", 720)
	if err != nil {
		return nil, err
	}
	cfg.CameraWidth, cfg.CameraHeight = int(width), int(height)

	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return d, nil
}

func int64Env(key string, def int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return n, nil
}

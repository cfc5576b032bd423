package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"symptomdx/db"
	sdhttp "symptomdx/http"
	"symptomdx/logging"
	"symptomdx/monitoring"
	"symptomdx/predict"
	"symptomdx/symptom"
)

// Config is the serving configuration (config.yaml, with a few env
// overrides from .env).
type Config struct {
	Data struct {
		Severity string `yaml:"severity"`
	} `yaml:"data"`
	Models struct {
		Dir string `yaml:"dir"`
	} `yaml:"models"`
	Matcher    symptom.MatcherConfig    `yaml:"matcher"`
	Confidence predict.ConfidenceLevels `yaml:"confidence"`
	Database   struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Http sdhttp.ServerConfig `yaml:"http"`
	Log  logging.Config      `yaml:"log"`
}

func main() {
	// .env is optional; real env vars win either way.
	_ = godotenv.Load()

	config, err := loadConfig(envOr("SYMPTOMDX_CONFIG", "config.yaml"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyEnvOverrides(config)

	logger, err := logging.Init(config.Log)
	if err != nil {
		log.Fatalf("Failed to init logging: %v", err)
	}
	defer logger.Sync()

	var store *db.Store
	if config.Database.Path != "" {
		store, err = db.Open(config.Database.Path)
		if err != nil {
			logger.Fatal("failed to open training run registry", zap.Error(err))
		}
		defer store.Close()
	}

	predictor := predict.New(predict.Config{
		ModelsDir:    config.Models.Dir,
		SeverityPath: config.Data.Severity,
		Matcher:      config.Matcher,
		Confidence:   config.Confidence,
	}, logger)
	// A failed initial load is not fatal: the server answers "model not
	// loaded" until a valid artifact set appears and the watcher swaps it in.
	if err := predictor.Load(); err != nil {
		logger.Warn("starting without a loaded model", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := monitoring.NewHub(logger)
	go hub.Run(ctx)

	watcher := predict.NewWatcher(predictor, config.Models.Dir, logger)
	go func() {
		if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("artifact watcher stopped", zap.Error(err))
		}
	}()

	api := &sdhttp.API{Predictor: predictor, Monitor: hub, Logger: logger}
	if store != nil {
		api.Runs = store
	}
	server := sdhttp.NewServer(config.Http, api, logger)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")
	cancel()

	if err := server.Stop(); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	logger.Info("exiting")
}

func loadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func applyEnvOverrides(config *Config) {
	if v := os.Getenv("SYMPTOMDX_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Http.Port = port
		}
	}
	if v := os.Getenv("SYMPTOMDX_MODELS_DIR"); v != "" {
		config.Models.Dir = v
	}
	if v := os.Getenv("SYMPTOMDX_DB"); v != "" {
		config.Database.Path = v
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jharjadi/wikigpt/core-api-go/internal/config"
	"github.com/jharjadi/wikigpt/core-api-go/internal/handler"
	"github.com/jharjadi/wikigpt/core-api-go/internal/middleware"
	"github.com/jharjadi/wikigpt/core-api-go/internal/service"
	"github.com/spf13/pflag"
)

func main() {
	configPath := pflag.StringP("config", "c", os.Getenv("CONFIG_FILE"), "path to a YAML config file")
	addr := pflag.String("addr", "", "listen address, overrides API_HOST/API_PORT")
	webDir := pflag.String("web-dir", "", "static web UI directory, overrides WEB_DIR")
	debug := pflag.Bool("debug", false, "enable debug logging")
	pflag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *webDir != "" {
		cfg.WebDir = *webDir
	}
	listenAddr := cfg.Addr()
	if *addr != "" {
		listenAddr = *addr
	}

	if cfg.MistralAPIKey == "" {
		slog.Warn("MISTRAL_API_KEY not set, answers will carry a configuration error")
	}

	// Load the tokenizer before serving; it downloads its BPE data on first use
	tokens := service.NewTiktokenCounter("cl100k_base")
	slog.Info("token counter ready", "encoding", "cl100k_base", "exact", tokens.Warm())

	// Initialize services
	pipeline := service.NewPipeline(cfg, tokens)

	// Initialize handlers
	chatHandler := handler.NewChatHandler(cfg, pipeline.Chat)

	// Build router
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimw.Recoverer)

	r.Get("/health", handler.Health)
	r.Post("/chat", chatHandler.Handle)

	// Serve web UI (static files from WEB_DIR if it exists)
	if info, err := os.Stat(cfg.WebDir); err == nil && info.IsDir() {
		slog.Info("serving web UI", "dir", cfg.WebDir)
		fs := http.FileServer(http.Dir(cfg.WebDir))
		r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/" {
				http.ServeFile(w, r, filepath.Join(cfg.WebDir, "index.html"))
				return
			}
			fs.ServeHTTP(w, r)
		})
	} else {
		slog.Info("web UI not available", "dir", cfg.WebDir, "reason", "directory not found")
	}

	slog.Info("wikipedia configuration",
		"endpoint", cfg.WikiEndpoint(),
		"max_results", cfg.MaxWikiResults,
		"content_max_length", cfg.WikiContentMaxLength,
		"extract_format", cfg.WikiExtractFormat,
	)
	slog.Info("completion configuration",
		"base_url", cfg.CompletionBaseURL,
		"model", cfg.ModelID,
		"max_tokens", cfg.MaxTokens,
		"temperature", cfg.Temperature,
		"answer_format", cfg.AnswerFormat,
	)

	srv := &http.Server{
		Addr:         listenAddr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// Graceful shutdown
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("starting server", "addr", listenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-shutdownCtx.Done()
	slog.Info("shutting down server...")

	cancelCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(cancelCtx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped")
}

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"avisio/api/internal/annotate"
	"avisio/api/internal/app"
	"avisio/api/internal/config"
	"avisio/api/internal/gateway"
	"avisio/api/internal/session"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	var sessions session.Store
	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Printf("Using Redis for session storage")
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisStore.Close()
		sessions = redisStore
	} else {
		log.Printf("Using in-memory session storage")
		sessions = session.NewMemoryStore()
	}

	backend := gateway.New(cfg.BackendURL, cfg.BackendTimeout)

	var newClassifier app.ClassifierFactory
	if strings.TrimSpace(cfg.GeminiAPIKey) != "" {
		gemini, err := annotate.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			log.Fatalf("gemini client failed: %v", err)
		}
		newClassifier = func(rules annotate.Ruleset) annotate.Classifier {
			return gemini.ClassifierFor(rules.SystemPrompt)
		}
	} else {
		log.Printf("WARNING: GEMINI_API_KEY not set; review labels will resolve to %q", annotate.LabelUnknown)
		newClassifier = func(annotate.Ruleset) annotate.Classifier {
			return annotate.Disabled()
		}
	}

	service := app.New(cfg, sessions, backend, newClassifier)

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin, cfg.CookieName, cfg.CookieSecure)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Avisio API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

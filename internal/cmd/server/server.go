// Package server parses server flags and starts the session runtime: the
// sqlite store, the approval registry, the staging and challenge services,
// and the websocket transport.
package server

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/louisbranch/stagecraft/internal/approval"
	challengeservice "github.com/louisbranch/stagecraft/internal/challenge/service"
	"github.com/louisbranch/stagecraft/internal/llm"
	"github.com/louisbranch/stagecraft/internal/platform/config"
	"github.com/louisbranch/stagecraft/internal/platform/otel"
	stagingservice "github.com/louisbranch/stagecraft/internal/staging/service"
	"github.com/louisbranch/stagecraft/internal/storage/sqlite"
	"github.com/louisbranch/stagecraft/internal/transport/ws"
)

// shutdownGrace bounds graceful HTTP shutdown.
const shutdownGrace = 10 * time.Second

// Config holds server command configuration.
type Config struct {
	Addr       string `env:"STAGECRAFT_ADDR" envDefault:":8080"`
	DBPath     string `env:"STAGECRAFT_DB_PATH" envDefault:"stagecraft.db"`
	LLMBaseURL string `env:"STAGECRAFT_LLM_BASE_URL"`
	LLMModel   string `env:"STAGECRAFT_LLM_MODEL"`
	LLMAPIKey  string `env:"STAGECRAFT_LLM_API_KEY"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The server listen address")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "The sqlite database path")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the session server and blocks until the context is canceled
// or the listener fails.
func Run(ctx context.Context, cfg Config) error {
	shutdownTracing, err := otel.Setup(ctx, "stagecraft")
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Printf("shutdown tracing: %v", err)
		}
	}()

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("close store: %v", err)
		}
	}()

	registry := approval.NewRegistry(nil)
	defer registry.Close()

	var llmClient llm.Client
	if cfg.LLMBaseURL != "" {
		llmClient, err = llm.NewHTTPClient(llm.HTTPConfig{
			BaseURL: cfg.LLMBaseURL,
			Model:   cfg.LLMModel,
			APIKey:  cfg.LLMAPIKey,
		})
		if err != nil {
			return fmt.Errorf("configure llm client: %w", err)
		}
		log.Printf("llm suggestions enabled via %s", cfg.LLMBaseURL)
	} else {
		log.Print("llm suggestions disabled, rule-based only")
	}

	hub := ws.NewHub()
	staging := stagingservice.NewService(stagingservice.Stores{
		World:       store,
		Region:      store,
		Roster:      store,
		Staging:     store,
		VisualState: store,
	}, registry, hub, llmClient)
	challenge := challengeservice.NewService(challengeservice.Stores{
		Roster:    store,
		Challenge: store,
		Event:     store,
	}, registry, hub, llmClient)
	hub.SetHandler(ws.NewHandler(staging, challenge, registry))

	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", cfg.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

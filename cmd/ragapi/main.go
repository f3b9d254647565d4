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
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/ollama/ollama/api"

	"ragapi/internal/config"
	"ragapi/internal/domain"
	"ragapi/internal/embedding/lexical"
	"ragapi/internal/embedding/openai"
	"ragapi/internal/httpapi"
	"ragapi/internal/llm"
	"ragapi/internal/ollama"
	"ragapi/internal/service"
	"ragapi/internal/vectorstore"
	"ragapi/internal/vectorstore/memory"
	"ragapi/internal/vectorstore/pgvector"
	"ragapi/internal/vectorstore/qdrant"
	"ragapi/internal/vectorstore/sqlite"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", os.Getenv("RAG_CONFIG"), "Path to YAML config file (optional)")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg.Log)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("Server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.AppConfig, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ollamaClient := ollama.NewAPIClient(cfg.Generator.Host, cfg.RequestTimeout())

	emb, err := newEmbedder(cfg, ollamaClient)
	if err != nil {
		return fmt.Errorf("embedder init failed: %w", err)
	}

	storage, err := newStorage(ctx, cfg)
	if err != nil {
		return fmt.Errorf("vector store init failed: %w", err)
	}
	collection := vectorstore.NewCollection(cfg.Storage.Collection, storage, emb)
	defer func() {
		if err := collection.Close(); err != nil {
			log.Warn("Failed to close vector store", "error", err)
		}
	}()

	gen, err := newGenerator(ctx, cfg, ollamaClient)
	if err != nil {
		return fmt.Errorf("generator init failed: %w", err)
	}
	if og, ok := gen.(*ollama.Generator); ok {
		checkModel(ctx, og, log)
	}

	svc := service.NewRAGService(collection, gen, service.Options{
		StoragePath: cfg.Storage.Path,
		Logger:      log,
	})

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: httpapi.NewRouter(httpapi.NewHandler(svc, log)),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("RAG API listening",
			"addr", cfg.Server.Addr,
			"store", cfg.Storage.Type,
			"collection", collection.Name(),
			"embedder", emb.Name(),
			"model", gen.Model(),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}
	return nil
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func newEmbedder(cfg *config.AppConfig, ollamaClient *api.Client) (domain.Embedder, error) {
	switch cfg.Embedder.Type {
	case "ollama", "":
		return ollama.NewEmbedder(ollamaClient, cfg.Embedder.Model), nil
	case "lexical":
		return lexical.NewEmbedder(cfg.Embedder.Dimension), nil
	case "openai":
		client, err := openai.NewClient(openai.Config{
			BaseURL:   cfg.Embedder.OpenAI.BaseURL,
			APIKeyEnv: cfg.Embedder.OpenAI.APIKeyEnv,
			Model:     cfg.Embedder.Model,
			Timeout:   cfg.RequestTimeout(),
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
	}
}

func newStorage(ctx context.Context, cfg *config.AppConfig) (vectorstore.Storage, error) {
	switch cfg.Storage.Type {
	case "sqlite", "":
		st, err := sqlite.NewStorage(cfg.Storage.Path, cfg.Storage.Collection)
		if err != nil {
			return nil, err
		}
		return st, nil
	case "memory":
		return memory.NewStorage(), nil
	case "qdrant":
		return qdrant.NewStorage(qdrant.Config{
			URL:        cfg.Storage.Qdrant.URL,
			APIKey:     cfg.Storage.Qdrant.APIKey,
			Collection: cfg.Storage.Collection,
			Timeout:    cfg.RequestTimeout(),
		}), nil
	case "pgvector":
		if cfg.Storage.PgVector == nil || cfg.Storage.PgVector.DSN == "" {
			return nil, errors.New("pgvector store requires PGVECTOR_DSN")
		}
		st, err := pgvector.NewStorage(ctx, cfg.Storage.PgVector.DSN, cfg.Storage.Collection, cfg.Storage.PgVector.Dimension)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown vector store: %s", cfg.Storage.Type)
	}
}

func newGenerator(ctx context.Context, cfg *config.AppConfig, ollamaClient *api.Client) (domain.Generator, error) {
	switch cfg.Generator.Type {
	case "ollama", "":
		return ollama.NewGenerator(ollamaClient, cfg.Generator.Host, cfg.Generator.Model), nil
	case "openai", "anthropic", "openrouter":
		gen, err := llm.NewFantasyGenerator(ctx, llm.FantasyConfig{
			Provider: cfg.Generator.Type,
			APIKey:   cfg.Generator.APIKey,
			BaseURL:  cfg.Generator.BaseURL,
			Model:    cfg.Generator.Model,
		})
		if err != nil {
			return nil, err
		}
		return gen, nil
	default:
		return nil, fmt.Errorf("unknown generator: %s", cfg.Generator.Type)
	}
}

// checkModel warns when the configured model is missing or Ollama is down.
// The server starts either way.
func checkModel(ctx context.Context, gen *ollama.Generator, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	available, found, err := gen.CheckModel(ctx)
	if err != nil {
		log.Warn("Could not connect to Ollama; the API will start but queries may fail",
			"host", gen.Host(), "error", err)
		return
	}
	if !found {
		log.Warn("Model not found in Ollama",
			"model", gen.Model(), "available", available,
			"hint", "ollama pull "+gen.Model())
	}
}

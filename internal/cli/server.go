package cli

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quiz-kiosk-service/internal/app"
	"quiz-kiosk-service/internal/catalog"
	"quiz-kiosk-service/internal/config"
	"quiz-kiosk-service/internal/infra/memory"
	pginfra "quiz-kiosk-service/internal/infra/postgres"
	redisinfra "quiz-kiosk-service/internal/infra/redis"
	transport "quiz-kiosk-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	// Catalog source precedence: postgres document, then file, then the
	// catalog bundled into the binary. A redis cache wraps the postgres
	// loader when both backends are configured.
	var loader catalog.Loader = catalog.NewEmbeddedLoader()
	if cfg.Catalog.Path != "" {
		loader = catalog.NewFileLoader(cfg.Catalog.Path)
	}
	if pool != nil {
		loader = pginfra.NewCatalogLoader(pool, cfg.Catalog.ID)
		if redisClient != nil {
			cacheTTL := config.Duration(cfg.Redis.TTL, 10*time.Minute)
			loader = redisinfra.NewCatalogCache(redisClient, loader, cacheTTL)
		}
	}

	// Preference storage precedence: postgres, then redis, then in-memory.
	var prefStore app.PreferenceStore = memory.NewPreferenceStore()
	if redisClient != nil {
		prefStore = redisinfra.NewPreferenceStore(redisClient)
	}
	if pool != nil {
		prefStore = pginfra.NewPreferenceStore(pool)
	}

	keeper := app.NewPreferenceKeeper(ctx, prefStore)
	engine := app.NewEngine(loader, keeper)
	engine.Start(ctx)

	questionTimeout := config.Duration(cfg.Quiz.QuestionTimeout, 15*time.Second)
	wsHandler := transport.NewWSHandler(engine, keeper, questionTimeout)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/categories", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(engine.Categories())
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz kiosk on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

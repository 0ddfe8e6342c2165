package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/boardkit/backend/internal/api"
	"github.com/boardkit/backend/internal/board"
	"github.com/boardkit/backend/internal/config"
	"github.com/boardkit/backend/internal/db"
	"github.com/boardkit/backend/internal/message"
	mw "github.com/boardkit/backend/internal/middleware"
	"github.com/boardkit/backend/internal/pubsub"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	// Broker
	broker := pubsub.NewBroker()
	defer broker.Close() //nolint:errcheck // best-effort cleanup on shutdown

	// Store: Postgres when configured and reachable, volatile otherwise.
	var store message.Store = message.NewMemoryStore()
	if cfg.DatabaseURL != "" {
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Printf("WARNING: database connection failed: %v (using in-memory store)", err)
		} else {
			defer pool.Close()
			if err := db.Migrate(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
				log.Printf("WARNING: migrations failed: %v", err)
			}
			store = message.NewPostgresStore(pool)
			log.Println("Using Postgres message store")
		}
	}

	service := board.NewService(store, broker)
	handlers := api.NewHandlers(service, cfg.Origins())

	// Router
	r := mux.NewRouter()

	// Rate limiting: 100 req/s per IP with burst of 200
	r.Use(mw.RateLimit(100, 200))

	r.HandleFunc("/healthz", healthzHandler).Methods(http.MethodGet)
	handlers.RegisterRoutes(r)

	// HTTP Server — CORS wraps the entire router so OPTIONS preflight
	// requests are handled before mux routing (which would 404 on OPTIONS).
	srv := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        corsMiddleware(r, cfg.Origins()),
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Println("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Fatalf("Server shutdown failed: %v", err)
		}
	}()

	log.Printf("Query endpoint ready at http://localhost:%s/query", cfg.Port)
	log.Printf("Subscription endpoint ready at ws://localhost:%s/query", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed to start: %v", err)
	}

	log.Println("Server stopped")
}

func healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"}) //nolint:errcheck
}

func corsMiddleware(next http.Handler, allowedOrigins []string) http.Handler {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		} else if len(origins) == 1 {
			// Single origin mode: always set it (for dev convenience)
			for o := range origins {
				w.Header().Set("Access-Control-Allow-Origin", o)
			}
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/jpcarvalho/askdocs/internal/app"
	"github.com/jpcarvalho/askdocs/internal/config"
	apphttp "github.com/jpcarvalho/askdocs/internal/http"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg := config.Load()
	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to build app: %v", err)
	}
	defer a.Close()

	h := apphttp.NewHandler(a.Service, a.Pipeline, cfg.RequestTimeout)
	router := apphttp.NewRouter(h)
	handler := corsMiddleware(router)

	addr := ":" + cfg.Port
	log.Printf("API listening on %s (store=%s)", addr, cfg.StoreBackend)
	log.Fatal(http.ListenAndServe(addr, handler))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if origin == "http://localhost:3000" || origin == "http://127.0.0.1:3000" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

package main

import (
	"context"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/zzet/cowboy"
	"github.com/zzet/cowboy/config"
	"github.com/zzet/cowboy/http"
	"github.com/zzet/cowboy/middleware"
)

const envPrefix = "COWBOY_"

func main() {
	// absent .env is fine, the environment still applies
	_ = godotenv.Load()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	cfg, err := config.FromEnv(envPrefix)
	if err != nil {
		log.Error("bad configuration", slog.String("err", err.Error()))
		os.Exit(1)
	}

	addr := envOr("COWBOY_ADDR", ":8080")
	metricsAddr := envOr("COWBOY_METRICS_ADDR", ":9090")

	app := cowboy.New(addr).
		Tune(cfg).
		Log(log).
		Use(
			middleware.NewHandler(func(request *http.Request) *http.Response {
				return request.Response.String("hello from cowboy\n")
			}),
			middleware.NewAccessLog(os.Stdout),
		)

	go func() {
		mux := nethttp.NewServeMux()
		mux.Handle("/metrics", app.Metrics().Handler())

		if err := nethttp.ListenAndServe(metricsAddr, mux); err != nil {
			log.Error("metrics listener failed", slog.String("err", err.Error()))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Serve(ctx); err != nil {
		log.Error("server failed", slog.String("err", err.Error()))
		os.Exit(1)
	}

	log.Info("bye")
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return fallback
}

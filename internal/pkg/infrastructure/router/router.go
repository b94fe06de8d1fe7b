package router

import (
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/riandyrn/otelchi"
	"github.com/rs/cors"
)

func New(serviceName string) *chi.Mux {
	return newRouter(serviceName, os.Stdout)
}

func newRouter(serviceName string, accessLog io.Writer) *chi.Mux {
	r := chi.NewRouter()

	r.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Content-Range", "Link", "NGSILD-Results-Count"},
		AllowCredentials: true,
		Debug:            false,
	}).Handler)

	r.Use(httplog.RequestLogger(requestLogger(serviceName, accessLog)))
	r.Use(middleware.Recoverer)
	r.Use(otelchi.Middleware(serviceName, otelchi.WithChiRoutes(r)))

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

// requestLogger writes one json access log entry per request
func requestLogger(serviceName string, w io.Writer) *httplog.Logger {
	opts := httplog.Options{
		JSON:     true,
		LogLevel: slog.LevelInfo,
		Concise:  true,
	}

	return &httplog.Logger{
		Logger:  slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: opts.LogLevel})).With("service", serviceName),
		Options: opts,
	}
}

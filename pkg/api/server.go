// Package api tablekv admin REST API
//
// @title           tablekv admin API
// @version         1.0.0
// @description     Named tables and the change stream of a tablekv database.
// @host            localhost:8080
// @BasePath        /api/v1
//
// @securityDefinitions.apikey ApiKeyAuth
// @in              header
// @name            X-API-Key
package api

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/swaggo/swag"
)

const shutdownTimeout = 10 * time.Second

// Router builds the HTTP handler. gatherer backs /metrics; nil leaves the
// endpoint out.
func (s *Server) Router(gatherer prometheus.Gatherer) http.Handler {
	m := s.metrics
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", m.InstrumentHandler("GET", "/health", s.handleHealth))

	// Prometheus metrics endpoint (unprotected for scraping)
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Get("/swagger/doc.json", s.handleSwaggerDoc)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(apiKeyMiddleware(s.config.APIKey, m))

		r.Get("/tables", m.InstrumentHandler("GET", "/api/v1/tables", s.handleListTables))
		r.Get("/tables/{name}", m.InstrumentHandler("GET", "/api/v1/tables/{name}", s.handleGetTable))
		r.Put("/tables/{name}", m.InstrumentHandler("PUT", "/api/v1/tables/{name}", s.handleCreateTable))
		r.Delete("/tables/{name}", m.InstrumentHandler("DELETE", "/api/v1/tables/{name}", s.handleDropTable))
		r.Post("/tables/{name}/rename", m.InstrumentHandler("POST", "/api/v1/tables/{name}/rename", s.handleRenameTable))

		r.Put("/tables/{name}/kv/{key}", m.InstrumentHandler("PUT", "/api/v1/tables/{name}/kv/{key}", s.handlePut))
		r.Get("/tables/{name}/kv/{key}", m.InstrumentHandler("GET", "/api/v1/tables/{name}/kv/{key}", s.handleGet))
		r.Delete("/tables/{name}/kv/{key}", m.InstrumentHandler("DELETE", "/api/v1/tables/{name}/kv/{key}", s.handleDelete))
		r.Get("/tables/{name}/scan", m.InstrumentHandler("GET", "/api/v1/tables/{name}/scan", s.handleScan))

		r.Get("/changes", m.InstrumentHandler("GET", "/api/v1/changes", s.handleChanges))
	})

	return r
}

func (s *Server) handleSwaggerDoc(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc(SwaggerInfo.InstanceName())
	if err != nil {
		s.log.Error().Err(err).Msg("failed to render swagger doc")
		http.Error(w, "Failed to generate Swagger documentation", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(doc))
}

// StartServer serves the API until ctx is cancelled, then shuts down
// gracefully.
func StartServer(ctx context.Context, store TableStore, config ServerConfig, deps Dependencies) error {
	server := NewServer(store, config, deps.Metrics, deps.Logger)

	addr := net.JoinHostPort(config.Bind, strconv.Itoa(config.Port))
	SwaggerInfo.Host = addr

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Router(deps.Gatherer),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		deps.Logger.Info().Str("addr", addr).Msg("starting tablekv admin API")
		errc <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrapf(err, "listen on %s", addr)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	deps.Logger.Info().Msg("shutting down admin API")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	return nil
}

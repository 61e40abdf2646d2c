package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/motolens/internal/apierr"
	"github.com/sells-group/motolens/internal/model"
	"github.com/sells-group/motolens/internal/pipeline"
	"github.com/sells-group/motolens/internal/scorer"
)

var servePort int

// maxRequestBytes bounds POST bodies.
const maxRequestBytes = 1 << 20

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP lookup server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}

		env, err := initPipeline(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           buildRouter(env.Service),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// buildRouter returns the HTTP routes backed by svc.
func buildRouter(svc *pipeline.Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/vehicles/{vin}", handleLookup(svc))
		r.Post("/vehicles/enrich", handleEnrich(svc))
		r.Get("/enrichment/breaker", handleBreaker(svc))
		r.Post("/enrichment/breaker/reset", handleBreakerReset(svc))
		r.Delete("/enrichment/cache", handleCachePurge(svc))
	})
	return r
}

func handleLookup(svc *pipeline.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		enrich := false
		if raw := r.URL.Query().Get("enrich"); raw != "" {
			b, err := strconv.ParseBool(raw)
			if err != nil {
				writeRequestError(w, "enrich must be true or false")
				return
			}
			enrich = b
		}
		explain, _ := strconv.ParseBool(r.URL.Query().Get("explain"))

		res, err := svc.Lookup(r.Context(), chi.URLParam(r, "vin"), enrich)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newLookupView(res, explain))
	}
}

func handleEnrich(svc *pipeline.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var v model.Vehicle
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&v); err != nil {
			writeRequestError(w, "invalid request body")
			return
		}

		out := svc.Enrich(r.Context(), &v)
		b := scorer.Explain(out)
		writeJSON(w, http.StatusOK, lookupView{
			Vehicle:     out,
			Score:       b.Total,
			DecodeScore: scorer.Score(&v),
			Breakdown:   &b,
		})
	}
}

func handleBreaker(svc *pipeline.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		snap, ok := svc.Breaker()
		if !ok {
			writeJSON(w, http.StatusOK, map[string]any{"enabled": false})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"enabled": true, "breaker": snap})
	}
}

func handleBreakerReset(svc *pipeline.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		snap, ok := svc.ResetBreaker()
		if !ok {
			writeJSON(w, http.StatusOK, map[string]any{"enabled": false})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"enabled": true, "breaker": snap})
	}
}

func handleCachePurge(svc *pipeline.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		n, ok := svc.PurgeCache()
		if !ok {
			writeJSON(w, http.StatusOK, map[string]any{"enabled": false})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"enabled": true, "purged": n})
	}
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeError renders a typed error with its HTTP-equivalent status.
func writeError(w http.ResponseWriter, err error) {
	kind := apierr.KindOf(err)
	writeJSON(w, kind.HTTPStatus(), errorBody{Error: kind.Code(), Message: err.Error()})
}

func writeRequestError(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: "INVALID_REQUEST", Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("serve: encode response", zap.Error(err))
	}
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/policyscout/discovery-cli/internal/model"
	"github.com/policyscout/discovery-cli/internal/neural"
	"github.com/policyscout/discovery-cli/internal/queue"
	"github.com/policyscout/discovery-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  "Serves a small JSON API: enqueue domains for discovery, read queue status, read cached documents, and inspect the link scorer. Discovery itself runs in 'policyscout worker'.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initDiscovery(ctx, "serve", nil)
		if err != nil {
			return err
		}
		defer env.Close()

		proc := queue.NewProcessor(env.Store, env.Engine, nil, cfg.Queue.MaxAttempts)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(env.Store, proc, env.Scorer, cfg.Server.AllowedOrigins),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// newRouter builds the API routes. scorer may be nil when no model loaded.
func newRouter(st store.Store, proc *queue.Processor, scorer *neural.Scorer, origins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/api/discover", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Domain string `json:"domain"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if body.Domain == "" {
			http.Error(w, `{"error":"domain is required"}`, http.StatusBadRequest)
			return
		}

		domain, err := queue.NormalizeDomain(body.Domain)
		if err != nil {
			http.Error(w, `{"error":"invalid domain"}`, http.StatusBadRequest)
			return
		}

		added, err := proc.AddDomains(req.Context(), []string{domain})
		if err != nil {
			zap.L().Error("api: enqueue failed", zap.String("domain", domain), zap.Error(err))
			http.Error(w, `{"error":"enqueue failed"}`, http.StatusInternalServerError)
			return
		}

		// queued 0 means the domain was already in the queue.
		writeJSON(w, http.StatusAccepted, map[string]any{
			"status": "accepted",
			"domain": domain,
			"queued": added,
		})
	})

	r.Get("/api/queue/status", func(w http.ResponseWriter, req *http.Request) {
		counts, err := proc.Status(req.Context())
		if err != nil {
			zap.L().Error("api: queue status failed", zap.Error(err))
			http.Error(w, `{"error":"status unavailable"}`, http.StatusInternalServerError)
			return
		}

		out := make(map[string]int, len(counts)+1)
		total := 0
		for _, status := range model.AllJobStatuses() {
			out[string(status)] = counts[status]
			total += counts[status]
		}
		out["total"] = total
		writeJSON(w, http.StatusOK, out)
	})

	r.Get("/api/documents", func(w http.ResponseWriter, req *http.Request) {
		raw := req.URL.Query().Get("domain")
		if raw == "" {
			http.Error(w, `{"error":"domain query parameter is required"}`, http.StatusBadRequest)
			return
		}
		domain, err := queue.NormalizeDomain(raw)
		if err != nil {
			http.Error(w, `{"error":"invalid domain"}`, http.StatusBadRequest)
			return
		}

		docs, err := st.GetDocuments(req.Context(), domain)
		if err != nil {
			zap.L().Error("api: get documents failed", zap.String("domain", domain), zap.Error(err))
			http.Error(w, `{"error":"lookup failed"}`, http.StatusInternalServerError)
			return
		}
		if docs == nil {
			docs = []model.PolicyDocument{}
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"domain":    domain,
			"documents": docs,
		})
	})

	r.Get("/api/model", func(w http.ResponseWriter, _ *http.Request) {
		if scorer == nil {
			http.Error(w, `{"error":"model unavailable"}`, http.StatusServiceUnavailable)
			return
		}
		state := scorer.Snapshot()
		writeJSON(w, http.StatusOK, map[string]any{
			"key":         scorer.Key(),
			"generation":  state.Generation,
			"input_size":  state.InputSize,
			"hidden_size": state.HiddenSize,
			"output_size": state.OutputSize,
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

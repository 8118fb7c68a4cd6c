package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shipsmith/shipsmith/internal/model"
	"github.com/shipsmith/shipsmith/internal/pipeline"
	"github.com/shipsmith/shipsmith/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  "Serves run management and read endpoints for problems, products, and listings.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: buildRouter(ctx, env),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(ctx)
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

// buildRouter assembles the API routes against the given environment.
// Runs started via POST execute in the background under ctx; the run id
// in the 202 response is the handle for polling progress.
func buildRouter(ctx context.Context, env *pipelineEnv) *chi.Mux {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/api/runs", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			ProblemID string `json:"problem_id"`
			StartFrom string `json:"start_from"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		opts := pipeline.Options{
			ProblemID: body.ProblemID,
			StartFrom: model.Stage(body.StartFrom),
		}
		if opts.StartFrom != "" && !opts.StartFrom.Known() {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown stage: %s", body.StartFrom))
			return
		}
		if opts.StartFrom != "" && opts.StartFrom != model.StageDiscover && opts.ProblemID == "" {
			writeError(w, http.StatusBadRequest, "problem_id is required when skipping discovery")
			return
		}

		run, err := env.Pipeline.Begin(ctx, opts)
		if err != nil {
			zap.L().Error("api run failed to start", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "create run failed")
			return
		}

		go func() {
			done := env.Pipeline.Execute(ctx, run, opts)
			zap.L().Info("api run finished",
				zap.String("run_id", done.ID),
				zap.String("status", string(done.Status)),
			)
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{
			"status": "accepted",
			"run_id": run.ID,
		})
	})

	r.Get("/api/runs", func(w http.ResponseWriter, req *http.Request) {
		filter := store.RunFilter{
			Status: model.Status(req.URL.Query().Get("status")),
			Limit:  queryInt(req, "limit"),
			Offset: queryInt(req, "offset"),
		}
		runs, err := env.Store.ListRuns(req.Context(), filter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "list runs failed")
			return
		}
		writeJSON(w, http.StatusOK, runs)
	})

	r.Get("/api/runs/{id}", func(w http.ResponseWriter, req *http.Request) {
		run, err := env.Store.GetRun(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "get run failed")
			return
		}
		if run == nil {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		writeJSON(w, http.StatusOK, run)
	})

	r.Get("/api/problems", func(w http.ResponseWriter, req *http.Request) {
		problems, err := env.Store.ListProblems(req.Context(), store.ProblemFilter{
			Source: model.Source(req.URL.Query().Get("source")),
			Limit:  queryInt(req, "limit"),
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "list problems failed")
			return
		}
		writeJSON(w, http.StatusOK, problems)
	})

	r.Get("/api/products", func(w http.ResponseWriter, req *http.Request) {
		products, err := env.Store.ListProducts(req.Context(), queryInt(req, "limit"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "list products failed")
			return
		}
		writeJSON(w, http.StatusOK, products)
	})

	r.Get("/api/listings", func(w http.ResponseWriter, req *http.Request) {
		listings, err := env.Store.ListListings(req.Context(), queryInt(req, "limit"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "list listings failed")
			return
		}
		writeJSON(w, http.StatusOK, listings)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func queryInt(req *http.Request, key string) int {
	v := req.URL.Query().Get(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

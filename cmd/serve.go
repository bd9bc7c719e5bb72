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
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clahage/my-clever-crm-sub012/internal/model"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the signal intake server",
	Long:  "Accepts inbound signals over HTTP, persists them, and processes them asynchronously. Runs the lifecycle sweeper in the background.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		go env.Lifecycle.Run(ctx, time.Duration(cfg.Lifecycle.SweepIntervalMins)*time.Minute)

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))

		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		})

		r.Post("/webhook/signal", func(w http.ResponseWriter, req *http.Request) {
			var sig model.Signal
			if err := json.NewDecoder(req.Body).Decode(&sig); err != nil {
				http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
				return
			}
			if sig.SourceID == "" {
				http.Error(w, `{"error":"source_id is required"}`, http.StatusBadRequest)
				return
			}
			if sig.SourceType == "" {
				sig.SourceType = model.SourceWebForm
			}
			if sig.ReceivedAt.IsZero() {
				sig.ReceivedAt = time.Now().UTC()
			}

			// Persist before ack so nothing is lost if processing fails.
			recordID, err := env.Store.SaveSignal(req.Context(), sig)
			if err != nil {
				zap.L().Error("failed to save signal", zap.Error(err))
				http.Error(w, `{"error":"failed to save signal"}`, http.StatusInternalServerError)
				return
			}

			go func() {
				if _, err := env.Pipeline.Process(ctx, recordID, sig); err != nil {
					zap.L().Error("async signal processing failed",
						zap.String("record_id", recordID),
						zap.String("source_id", sig.SourceID),
						zap.Error(err),
					)
				}
			}()

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "accepted",
				"id":     recordID,
			})
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
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

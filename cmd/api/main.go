package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/you/scout/internal/app"
	"github.com/you/scout/internal/config"
	"github.com/you/scout/internal/keys"
)

// The API is the manual trigger surface: each stage can be run once on
// demand, and dead letters are inspectable per stage. The same stage-runner
// functions back the scheduled entrypoint.
func main() {
	cfg := config.Load()
	a, err := app.New(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer a.Log.Sync()

	runners := map[string]func(context.Context) error{
		"discovery":  a.Pipeline.RunDiscovery,
		"enrichment": a.Pipeline.RunEnrichment,
		"delivery":   a.Pipeline.RunDelivery,
	}
	dlqNames := map[string]string{
		"enrichment": keys.QueueEnrich,
		"delivery":   keys.QueueDeliver,
	}

	rtr := chi.NewRouter()

	rtr.Post("/v1/run/{stage}", func(w http.ResponseWriter, r *http.Request) {
		stage := chi.URLParam(r, "stage")
		run, ok := runners[stage]
		if !ok {
			http.Error(w, "unknown stage", http.StatusNotFound)
			return
		}
		runLog := a.Log.With(zap.String("stage", stage), zap.String("runID", uuid.NewString()))
		runLog.Info("manual run starting")
		if err := run(r.Context()); err != nil {
			runLog.Error("stage run failed", zap.Error(err))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		runLog.Info("manual run finished")
		w.WriteHeader(http.StatusNoContent)
	})

	rtr.Get("/v1/dlq/{stage}", func(w http.ResponseWriter, r *http.Request) {
		name, ok := dlqNames[chi.URLParam(r, "stage")]
		if !ok {
			http.Error(w, "unknown stage", http.StatusNotFound)
			return
		}
		letters, err := a.Retry.DeadLetters(r.Context(), name, 100)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(letters)
	})

	rtr.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := a.Redis.Ping(r.Context()).Err(); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	a.Log.Info("api listening", zap.String("addr", cfg.APIAddr))
	if err := http.ListenAndServe(cfg.APIAddr, rtr); err != nil {
		a.Log.Fatal("api server", zap.Error(err))
	}
}

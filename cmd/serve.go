package main

import (
	"context"
	"encoding/json"
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

	"github.com/northcover/parametric-cli/internal/model"
	"github.com/northcover/parametric-cli/internal/pricing"
	"github.com/northcover/parametric-cli/internal/settlement"
	"github.com/northcover/parametric-cli/internal/solvency"
	"github.com/northcover/parametric-cli/internal/store"
)

var servePort int

// serverEnv bundles the handlers' dependencies. engine may be nil when no
// arbiter key is configured; the settle endpoint then answers 503.
type serverEnv struct {
	store    store.Store
	engine   *settlement.Engine
	pricing  pricing.Params
	sim      solvency.Params
	replicas int
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		env := &serverEnv{
			store:    st,
			pricing:  pricingParams(),
			sim:      simulationParams(),
			replicas: cfg.Settlement.Replicas,
		}
		if cfg.Arbiter.Key != "" {
			eng, err := newSettlementEngine()
			if err != nil {
				return err
			}
			env.engine = eng
		} else {
			zap.L().Warn("no arbiter key configured, settle endpoint disabled")
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      env.router(),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func (env *serverEnv) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/price", env.handlePrice)
		r.Post("/simulate", env.handleSimulate)
		r.Post("/settle", env.handleSettle)
		r.Get("/settlements", env.handleListSettlements)
	})

	return r
}

func (env *serverEnv) handlePrice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Route string `json:"route,omitempty"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	observations, err := env.store.ListObservations(r.Context(), store.ObservationFilter{Route: req.Route})
	if err != nil {
		zap.L().Error("price: list observations", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "listing observations failed")
		return
	}
	if len(observations) == 0 {
		writeError(w, http.StatusNotFound, "no observations for pricing")
		return
	}

	writeJSON(w, http.StatusOK, pricing.Aggregate(observations, env.pricing))
}

func (env *serverEnv) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		model.ProductConfig
		Trials     int     `json:"trials,omitempty"`
		Confidence float64 `json:"sim_confidence,omitempty"`
		Seed       *uint64 `json:"seed,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	params := env.sim
	if req.Trials > 0 {
		params.Trials = req.Trials
	}
	if req.Confidence > 0 {
		params.Confidence = req.Confidence
	}
	if req.Seed != nil {
		params.Seed = *req.Seed
	}

	result, err := solvency.Simulate(req.ProductConfig, params)
	if err != nil {
		if eris.Is(err, solvency.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		zap.L().Error("simulate failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "simulation failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (env *serverEnv) handleSettle(w http.ResponseWriter, r *http.Request) {
	if env.engine == nil {
		writeError(w, http.StatusServiceUnavailable, "settlement requires an arbiter key")
		return
	}

	var req settlement.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PolicyID == "" {
		writeError(w, http.StatusBadRequest, "policy_id is required")
		return
	}

	verdict, err := env.engine.SettleWithConsensus(r.Context(), req, env.replicas)
	if err != nil {
		if eris.Is(err, settlement.ErrConsensusMismatch) {
			writeError(w, http.StatusConflict, "replica verdicts diverged")
			return
		}
		zap.L().Error("settle failed", zap.String("policy_id", req.PolicyID), zap.Error(err))
		writeError(w, http.StatusBadGateway, "settlement failed")
		return
	}

	if _, err := env.store.RecordSettlement(r.Context(), req.PolicyID, store.SettlementVerdict{
		Verdict:      verdict.Verdict,
		Confidence:   verdict.Confidence,
		UsedFallback: verdict.UsedFallback,
		Trace:        verdict.Trace,
	}); err != nil {
		zap.L().Error("settle: record verdict", zap.String("policy_id", req.PolicyID), zap.Error(err))
	}

	writeJSON(w, http.StatusOK, verdict)
}

func (env *serverEnv) handleListSettlements(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	records, err := env.store.ListSettlements(r.Context(), r.URL.Query().Get("policy_id"), limit)
	if err != nil {
		zap.L().Error("list settlements", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "listing settlements failed")
		return
	}
	if records == nil {
		records = []store.SettlementRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

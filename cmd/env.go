package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/northcover/parametric-cli/internal/arbiter"
	"github.com/northcover/parametric-cli/internal/pricing"
	"github.com/northcover/parametric-cli/internal/settlement"
	"github.com/northcover/parametric-cli/internal/solvency"
	"github.com/northcover/parametric-cli/internal/sources"
	"github.com/northcover/parametric-cli/internal/store"
)

// openStore creates the configured store backend with migrations applied.
func openStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, &cfg.Store.Pool)
	case "sqlite", "":
		st, err = store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

// newSettlementEngine wires the settlement engine from config. Requires an
// arbiter key; settlement without the AI arbiter would silently degrade every
// verdict to the deterministic path.
func newSettlementEngine() (*settlement.Engine, error) {
	if cfg.Arbiter.Key == "" {
		return nil, eris.New("arbiter.key is required for settlement")
	}

	arb := arbiter.New(arbiter.Config{
		APIKey:            cfg.Arbiter.Key,
		Model:             cfg.Arbiter.Model,
		MaxTokens:         int64(cfg.Arbiter.MaxTokens),
		RequestsPerSecond: cfg.Arbiter.RequestsPerSecond,
	})

	flights := sources.NewHTTPFlightProvider(cfg.Flights.BaseURLs, secs(cfg.Flights.TimeoutSecs))
	properties := sources.NewHTTPPropertyProvider(cfg.Properties.BaseURLs, secs(cfg.Properties.TimeoutSecs))
	weather := sources.NewHTTPWeatherProvider(cfg.Weather.BaseURLs, secs(cfg.Weather.TimeoutSecs))

	return settlement.NewEngine(flights, properties, weather, arb, cfg.Thresholds, settlement.Options{
		ArbiterTimeout:     secs(cfg.Settlement.ArbiterTimeoutSecs),
		TimeoutAsRateLimit: cfg.Settlement.TimeoutAsRateLimit,
	}), nil
}

func pricingParams() pricing.Params {
	return pricing.Params{
		TicketPrice: cfg.Pricing.TicketPrice,
		Tier1Bps:    cfg.Pricing.Tier1Bps,
		Tier2Bps:    cfg.Pricing.Tier2Bps,
		MarginPct:   cfg.Pricing.MarginPct,
		MinSamples:  cfg.Pricing.MinSamples,
	}
}

func simulationParams() solvency.Params {
	return solvency.Params{
		Trials:     cfg.Simulation.Trials,
		Confidence: cfg.Simulation.Confidence,
		Seed:       cfg.Simulation.Seed,
	}
}

func secs(n int) time.Duration {
	return time.Duration(n) * time.Second
}

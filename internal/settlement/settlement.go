// Package settlement orchestrates policy settlement: it fetches the live
// signal snapshot, runs the deterministic classifier, queries the AI arbiter,
// and reconciles the two verdicts. The arbiter's structured verdict wins on
// the normal path; when the arbiter is rate limited the engine settles
// deterministically and tags the result as a fallback. Any other arbiter
// failure aborts the attempt: absence of a decision is preferable to a wrong
// one.
package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/northcover/parametric-cli/internal/arbiter"
	"github.com/northcover/parametric-cli/internal/classifier"
	"github.com/northcover/parametric-cli/internal/model"
	"github.com/northcover/parametric-cli/internal/sources"
)

// PolicyMeta carries the structured identifiers a settlement needs. Policy
// metadata travels alongside the question explicitly; nothing is inferred
// from the question text, which exists only for the arbiter's benefit.
type PolicyMeta struct {
	Type       model.PolicyType `json:"type"`
	FlightID   string           `json:"flight_id,omitempty"`
	FlightDate string           `json:"flight_date,omitempty"`
	PropertyID string           `json:"property_id,omitempty"`
}

// Request is one settlement attempt input.
type Request struct {
	PolicyID string     `json:"policy_id"`
	Question string     `json:"question"`
	Meta     PolicyMeta `json:"meta"`
}

// ReconciledVerdict is the settlement output consumed by the on-chain
// settlement writer. Confidence uses the arbiter's 0..10000 scale. The
// deterministic trace is always attached as the audit trail, whichever path
// produced the verdict.
type ReconciledVerdict struct {
	Verdict      model.Verdict       `json:"verdict"`
	Confidence   int                 `json:"confidence"`
	UsedFallback bool                `json:"used_fallback"`
	Trace        model.DecisionTrace `json:"decision_trace"`
}

// Options tune the reconciliation behavior.
type Options struct {
	// ArbiterTimeout bounds the arbiter call. Default: 30s.
	ArbiterTimeout time.Duration
	// TimeoutAsRateLimit treats an arbiter timeout like a rate limit,
	// settling deterministically instead of failing. Off by default:
	// a timeout is a hard failure unless explicitly configured otherwise.
	TimeoutAsRateLimit bool
}

// Engine wires the collaborators for settlement.
type Engine struct {
	flights    sources.FlightProvider
	properties sources.PropertyProvider
	weather    sources.WeatherProvider
	arbiter    arbiter.Client
	thresholds classifier.Thresholds
	opts       Options
}

// NewEngine creates a settlement engine.
func NewEngine(
	flights sources.FlightProvider,
	properties sources.PropertyProvider,
	weather sources.WeatherProvider,
	arb arbiter.Client,
	th classifier.Thresholds,
	opts Options,
) *Engine {
	if opts.ArbiterTimeout <= 0 {
		opts.ArbiterTimeout = 30 * time.Second
	}
	return &Engine{
		flights:    flights,
		properties: properties,
		weather:    weather,
		arbiter:    arb,
		thresholds: th,
		opts:       opts,
	}
}

// Settle runs one settlement attempt.
func (e *Engine) Settle(ctx context.Context, req Request) (*ReconciledVerdict, error) {
	if !req.Meta.Type.Valid() {
		return nil, eris.Errorf("settlement: unknown policy type %q", req.Meta.Type)
	}

	snap, err := e.fetchSnapshot(ctx, req.Meta)
	if err != nil {
		return nil, err
	}

	trace := classifier.Evaluate(req.Meta.Type, snap, e.thresholds)

	answer, err := e.askArbiter(ctx, req.Question, snap)
	if err != nil {
		if fallback, ok := e.asFallback(err); ok {
			zap.L().Warn("settlement: arbiter unavailable, settling deterministically",
				zap.String("policy_id", req.PolicyID),
				zap.String("cause", fallback),
				zap.String("verdict", string(trace.Verdict)),
			)
			return &ReconciledVerdict{
				Verdict:      trace.Verdict,
				Confidence:   arbiter.MaxConfidence,
				UsedFallback: true,
				Trace:        trace,
			}, nil
		}
		return nil, eris.Wrapf(err, "settlement: arbiter failed for policy %s", req.PolicyID)
	}

	if answer.Result != trace.Verdict {
		zap.L().Warn("settlement: arbiter disagrees with deterministic trace",
			zap.String("policy_id", req.PolicyID),
			zap.String("arbiter_verdict", string(answer.Result)),
			zap.String("deterministic_verdict", string(trace.Verdict)),
		)
	}

	// The arbiter verdict wins; the trace rides along as evidence.
	return &ReconciledVerdict{
		Verdict:      answer.Result,
		Confidence:   answer.Confidence,
		UsedFallback: false,
		Trace:        trace,
	}, nil
}

// fetchSnapshot pulls the signal snapshot from the policy's upstream. The
// two sources are mutually exclusive per policy type.
func (e *Engine) fetchSnapshot(ctx context.Context, meta PolicyMeta) (model.Snapshot, error) {
	if meta.Type == model.PolicyFlight {
		if meta.FlightID == "" {
			return model.Snapshot{}, eris.New("settlement: flight policy missing flight_id")
		}
		sig, err := e.flights.FlightStatus(ctx, meta.FlightID, meta.FlightDate)
		if err != nil {
			return model.Snapshot{}, eris.Wrap(err, "settlement: fetch flight signal")
		}
		return model.Snapshot{Flight: sig}, nil
	}

	if meta.PropertyID == "" {
		return model.Snapshot{}, eris.New("settlement: property policy missing property_id")
	}

	// Sensor and weather readings are independent; fetch both concurrently.
	// A failed reading degrades to unknown dimensions rather than aborting,
	// but if neither source answers there is nothing to settle on.
	var reading *sources.PropertyReading
	var weather *sources.WeatherReading
	var readingErr, weatherErr error

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		reading, readingErr = e.properties.PropertyReading(gCtx, meta.PropertyID)
		return nil
	})
	g.Go(func() error {
		weather, weatherErr = e.weather.CurrentWeather(gCtx)
		return nil
	})
	_ = g.Wait()

	if readingErr != nil {
		zap.L().Warn("settlement: property sensors unavailable",
			zap.String("property_id", meta.PropertyID),
			zap.Error(readingErr),
		)
	}
	if weatherErr != nil {
		zap.L().Warn("settlement: weather source unavailable", zap.Error(weatherErr))
	}
	if readingErr != nil && weatherErr != nil {
		return model.Snapshot{}, eris.Wrap(readingErr, "settlement: all property signal sources failed")
	}

	sig := sources.MergeProperty(reading, weather)
	return model.Snapshot{Property: &sig}, nil
}

func (e *Engine) askArbiter(ctx context.Context, question string, snap model.Snapshot) (*arbiter.Answer, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.ArbiterTimeout)
	defer cancel()

	return e.arbiter.Ask(ctx, arbiter.Question{Text: question, Signals: snap})
}

// asFallback reports whether err should route to the deterministic fallback
// and names the cause.
func (e *Engine) asFallback(err error) (string, bool) {
	if eris.Is(err, arbiter.ErrRateLimited) {
		return "rate_limited", true
	}
	if e.opts.TimeoutAsRateLimit && errors.Is(err, context.DeadlineExceeded) {
		return "timeout", true
	}
	return "", false
}

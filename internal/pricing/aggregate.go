// Package pricing computes per-route breach statistics and premiums from
// historical flight observations.
package pricing

import (
	"sort"

	"go.uber.org/zap"

	"github.com/northcover/parametric-cli/internal/model"
)

// Params configures an aggregation run.
type Params struct {
	// TicketPrice is the insured amount per policy.
	TicketPrice float64
	// Tier1Bps and Tier2Bps are payout fractions in basis points of the
	// ticket price (5000 = 50%, 10000 = 100%).
	Tier1Bps int
	Tier2Bps int
	// MarginPct is the markup over the break-even premium, in percent.
	MarginPct float64
	// MinSamples is the sample count below which a route is flagged as a
	// thin-sample estimate.
	MinSamples int
}

// DefaultParams returns the standard flight product pricing parameters.
func DefaultParams() Params {
	return Params{
		TicketPrice: 100,
		Tier1Bps:    5000,
		Tier2Bps:    10000,
		MarginPct:   20,
		MinSamples:  30,
	}
}

// Aggregate computes RouteRiskMetrics for every distinct route in the
// observation set. It is a pure function of the full set: there is no
// incremental mode, and re-aggregating the same observations yields identical
// results. Output is sorted by route key.
func Aggregate(observations []model.RouteObservation, p Params) []model.RouteRiskMetrics {
	byRoute := make(map[string][]model.RouteObservation)
	for _, obs := range observations {
		byRoute[obs.Route] = append(byRoute[obs.Route], obs)
	}

	routes := make([]string, 0, len(byRoute))
	for route := range byRoute {
		routes = append(routes, route)
	}
	sort.Strings(routes)

	metrics := make([]model.RouteRiskMetrics, 0, len(routes))
	for _, route := range routes {
		m := aggregateRoute(route, byRoute[route], p)
		metrics = append(metrics, m)

		zap.L().Debug("pricing: route aggregated",
			zap.String("route", route),
			zap.Int("samples", m.Samples),
			zap.Float64("p_any_breach", m.PAnyBreach.Point),
			zap.Float64("recommended_premium", m.RecommendedPremium),
			zap.Bool("insufficient_sample", m.InsufficientSample),
		)
	}
	return metrics
}

func aggregateRoute(route string, obs []model.RouteObservation, p Params) model.RouteRiskMetrics {
	m := model.RouteRiskMetrics{Route: route, Samples: len(obs)}

	for _, o := range obs {
		switch DeriveTier(o) {
		case 2:
			m.Tier2++
		case 1:
			m.Tier1++
		default:
			m.Tier0++
		}
	}

	n := m.Samples
	m.PAnyBreach = Wilson(m.Tier1+m.Tier2, n)
	m.PTier1 = Wilson(m.Tier1, n)
	m.PTier2 = Wilson(m.Tier2, n)

	// Expected payout uses the point estimates, not the interval bounds; a
	// conservative caller can reprice from the upper bounds itself.
	m.ExpectedPayout = float64(p.Tier1Bps)/10000*p.TicketPrice*m.PTier1.Point +
		float64(p.Tier2Bps)/10000*p.TicketPrice*m.PTier2.Point
	m.BreakEvenPremium = m.ExpectedPayout
	m.RecommendedPremium = m.BreakEvenPremium * (1 + p.MarginPct/100)

	m.InsufficientSample = n < p.MinSamples
	return m
}

// DeriveTier resolves the payout tier for one historical observation. An
// explicit tier is trusted as recorded; otherwise cancellation maps to tier 2,
// then the breach/percent fields are consulted, then tier 0. Blank cells
// (nil fields) are not breach-classifiable and contribute tier 0.
func DeriveTier(o model.RouteObservation) int {
	if o.Tier != nil {
		return clampTier(*o.Tier)
	}
	if o.Status == model.FlightCancelled {
		return 2
	}
	if o.Breach != nil && *o.Breach {
		if o.PayoutPercent != nil && *o.PayoutPercent >= 100 {
			return 2
		}
		return 1
	}
	return 0
}

func clampTier(tier int) int {
	if tier < 0 {
		return 0
	}
	if tier > 2 {
		return 2
	}
	return tier
}

package model

// RouteObservation is one historical flight record read from the observation
// store. Durable input; the aggregator only reads these. Nil pointer fields
// correspond to blank cells in the source table and are treated as
// not-breach-classifiable rather than as errors.
type RouteObservation struct {
	Route         string       `json:"route"`
	FlightID      string       `json:"flight_id"`
	Status        FlightStatus `json:"status"`
	DelayMinutes  *int         `json:"delay_minutes,omitempty"`
	Tier          *int         `json:"tier,omitempty"`
	Breach        *bool        `json:"breach,omitempty"`
	PayoutPercent *int         `json:"payout_percent,omitempty"`
}

// ProbEstimate is a Bernoulli rate with its Wilson 95% confidence bounds.
// Lower <= Point <= Upper holds for any sample with n > 0.
type ProbEstimate struct {
	Point float64 `json:"point"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// RouteRiskMetrics is the per-route pricing aggregate. Recomputed wholesale on
// each aggregation run; a report artifact, not a live object.
type RouteRiskMetrics struct {
	Route   string `json:"route"`
	Samples int    `json:"samples"`
	Tier0   int    `json:"tier0"`
	Tier1   int    `json:"tier1"`
	Tier2   int    `json:"tier2"`

	PAnyBreach ProbEstimate `json:"p_any_breach"`
	PTier1     ProbEstimate `json:"p_tier1"`
	PTier2     ProbEstimate `json:"p_tier2"`

	ExpectedPayout     float64 `json:"expected_payout"`
	BreakEvenPremium   float64 `json:"break_even_premium"`
	RecommendedPremium float64 `json:"recommended_premium"`

	// InsufficientSample flags routes with fewer observations than the
	// analyst-configured minimum. The numbers above are still produced;
	// downstream pricing must distinguish confident from thin-sample
	// estimates.
	InsufficientSample bool `json:"insufficient_sample"`
}

package model

// ProductConfig is the pricing/simulation input for one parametric product.
// The simulator treats it as read-only per call; callers may mutate it
// between runs. All monetary amounts are in the product's settlement
// currency. BreachProbability is typically sourced from a RouteRiskMetrics
// point estimate, or its upper bound for a conservative stance.
type ProductConfig struct {
	Count             int     `json:"count"`
	BuyerPremium      float64 `json:"buyer_premium"`
	HostStake         float64 `json:"host_stake"`
	PayoutIfYes       float64 `json:"payout_if_yes"`
	HostRefundIfNo    float64 `json:"host_refund_if_no"`
	BreachProbability float64 `json:"breach_probability"`
	OperationalCost   float64 `json:"operational_cost"`
	AutoLockPerPolicy float64 `json:"auto_lock_per_policy"`
}

// Histogram is a fixed-bin net-profit distribution over simulation trials.
type Histogram struct {
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	BinWidth float64 `json:"bin_width"`
	Counts   []int   `json:"counts"`
}

// SimulationResult is the immutable output of one Monte Carlo run, tied to
// the (ProductConfig, SimulationParams) pair that produced it. Re-running
// with the same seed reproduces it bit for bit.
//
// Reserve fields are linear-interpolated loss quantiles; the NoLock variants
// ignore auto-locked capital. BreakEvenProbability is +Inf when
// PayoutIfYes <= HostRefundIfNo. ReserveCoverageRatio is +Inf when the
// unlocked 99% reserve is zero.
type SimulationResult struct {
	ExpectedNetPerPolicy float64 `json:"expected_net_per_policy"`
	ExpectedNetPortfolio float64 `json:"expected_net_portfolio"`
	BreakEvenProbability float64 `json:"break_even_probability"`

	WorstCaseReserve       float64 `json:"worst_case_reserve"`
	WorstCaseReserveNoLock float64 `json:"worst_case_reserve_no_lock"`

	ReserveAtConfidence       float64 `json:"reserve_at_confidence"`
	ReserveAt95               float64 `json:"reserve_at_95"`
	ReserveAt99               float64 `json:"reserve_at_99"`
	ReserveAtConfidenceNoLock float64 `json:"reserve_at_confidence_no_lock"`
	ReserveAt95NoLock         float64 `json:"reserve_at_95_no_lock"`
	ReserveAt99NoLock         float64 `json:"reserve_at_99_no_lock"`

	DeficitProbability       float64 `json:"deficit_probability"`
	DeficitProbabilityNoLock float64 `json:"deficit_probability_no_lock"`

	ReserveCoverageRatio float64 `json:"reserve_coverage_ratio"`

	NetHistogram Histogram `json:"net_histogram"`

	Trials     int     `json:"trials"`
	Confidence float64 `json:"confidence"`
	Seed       uint64  `json:"seed"`
}

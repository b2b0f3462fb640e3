// Package model defines the shared data types for the parametric risk and
// settlement engine.
package model

// PolicyType identifies which parametric product a policy belongs to.
type PolicyType string

const (
	// PolicyProperty is a quality-of-life policy triggered by sensor and
	// weather readings around a property.
	PolicyProperty PolicyType = "property"
	// PolicyFlight is a flight-delay policy with graduated payout tiers.
	PolicyFlight PolicyType = "flight"
)

// Valid reports whether pt is a known policy type.
func (pt PolicyType) Valid() bool {
	return pt == PolicyProperty || pt == PolicyFlight
}

// FlightStatus is the operational status reported by a flight data provider.
type FlightStatus string

const (
	FlightOnTime    FlightStatus = "ON_TIME"
	FlightDelayed   FlightStatus = "DELAYED"
	FlightCancelled FlightStatus = "CANCELLED"
	FlightUnknown   FlightStatus = "UNKNOWN"
)

// PropertySignal is one immutable sensor/weather reading for a property
// policy. Nil fields mean the dimension was not reported; a missing value is
// a first-class state distinct from a value that is present and within bounds.
type PropertySignal struct {
	NoiseLevelDb       *float64 `json:"noise_level_db,omitempty"`
	SafetyIndex        *float64 `json:"safety_index,omitempty"`
	NearbyConstruction *bool    `json:"nearby_construction,omitempty"`
	PrecipitationMm    *float64 `json:"precipitation_mm,omitempty"`
	WindSpeedKmh       *float64 `json:"wind_speed_kmh,omitempty"`
}

// FlightSignal is one immutable flight status reading. PayoutTier,
// PayoutPercent, and PayoutReason are set when an upstream oracle has already
// applied tiering at the data-collection boundary; the classifier passes them
// through unchanged instead of recomputing.
type FlightSignal struct {
	Status           FlightStatus `json:"status"`
	DelayMinutes     *int         `json:"delay_minutes,omitempty"`
	ThresholdMinutes int          `json:"threshold_minutes"`
	PayoutTier       *int         `json:"payout_tier,omitempty"`
	PayoutPercent    *int         `json:"payout_percent,omitempty"`
	PayoutReason     string       `json:"payout_reason,omitempty"`
}

// Snapshot is the per-evaluation input to the classifier. Exactly one of
// Property or Flight is set, matching the policy type.
type Snapshot struct {
	Property *PropertySignal `json:"property,omitempty"`
	Flight   *FlightSignal   `json:"flight,omitempty"`
}

// Float64 returns a pointer to v, for building signals with optional fields.
func Float64(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }

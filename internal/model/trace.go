package model

// CheckStatus is the resolution of a single threshold check. Every check in a
// trace resolves to exactly one of these; a field never silently defaults to
// clear.
type CheckStatus string

const (
	// StatusBreach means the value is present and outside the policy bound.
	StatusBreach CheckStatus = "breach"
	// StatusClear means the value is present and within the policy bound.
	StatusClear CheckStatus = "clear"
	// StatusUnknown means the dimension was not reported upstream.
	StatusUnknown CheckStatus = "unknown"
)

// Verdict is the binary settlement decision.
type Verdict string

const (
	VerdictYes Verdict = "YES"
	VerdictNo  Verdict = "NO"
)

// ThresholdCheck records the evaluation of one signal dimension against its
// configured bound. Immutable once emitted.
type ThresholdCheck struct {
	ID                   string      `json:"id"`
	Label                string      `json:"label"`
	Status               CheckStatus `json:"status"`
	Value                string      `json:"value"`
	ThresholdDescription string      `json:"threshold_description"`
}

// DecisionTrace aggregates the per-dimension checks into a verdict. A fresh
// trace is built on every evaluation and never mutated afterwards.
//
// PayoutTier/PayoutPercent are meaningful for flight policies only; tier 0
// always coincides with verdict NO.
type DecisionTrace struct {
	Verdict       Verdict          `json:"verdict"`
	Reason        string           `json:"reason"`
	Checks        []ThresholdCheck `json:"checks"`
	PayoutTier    int              `json:"payout_tier"`
	PayoutPercent int              `json:"payout_percent"`
	PayoutReason  string           `json:"payout_reason,omitempty"`
}

// Breached reports whether at least one check in the trace resolved to breach.
func (t DecisionTrace) Breached() bool {
	for _, c := range t.Checks {
		if c.Status == StatusBreach {
			return true
		}
	}
	return false
}

// AllUnknown reports whether every check in the trace resolved to unknown,
// i.e. no trusted signal values were available.
func (t DecisionTrace) AllUnknown() bool {
	if len(t.Checks) == 0 {
		return true
	}
	for _, c := range t.Checks {
		if c.Status != StatusUnknown {
			return false
		}
	}
	return true
}

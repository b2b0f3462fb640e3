// Package classifier turns a signal snapshot into a deterministic breach
// verdict. Evaluation is pure and total: missing signal dimensions resolve to
// an unknown check status, never to an error, and the same snapshot always
// produces the same trace.
package classifier

import (
	"fmt"
	"strings"

	"github.com/northcover/parametric-cli/internal/model"
)

// payout percentages by tier.
const (
	percentTier0 = 0
	percentTier1 = 50
	percentTier2 = 100
)

// Evaluate maps a signal snapshot to a decision trace for the given policy
// type. The verdict is YES iff at least one check breached; for flight
// policies the trace additionally carries a payout tier, with tier 0 exactly
// when the verdict is NO.
func Evaluate(policy model.PolicyType, snap model.Snapshot, th Thresholds) model.DecisionTrace {
	switch policy {
	case model.PolicyFlight:
		return evaluateFlight(snap.Flight, th)
	default:
		return evaluateProperty(snap.Property, th)
	}
}

func evaluateProperty(sig *model.PropertySignal, th Thresholds) model.DecisionTrace {
	if sig == nil {
		sig = &model.PropertySignal{}
	}

	checks := []model.ThresholdCheck{
		boundCheck("noise", "Noise level", sig.NoiseLevelDb,
			fmt.Sprintf("> %.0f dB", th.NoiseDbMax),
			func(v float64) bool { return v > th.NoiseDbMax }),
		boundCheck("safety", "Safety index", sig.SafetyIndex,
			fmt.Sprintf("< %.1f", th.SafetyIndexMin),
			func(v float64) bool { return v < th.SafetyIndexMin }),
		constructionCheck(sig.NearbyConstruction),
		weatherCheck(sig, th),
	}

	trace := model.DecisionTrace{Checks: checks}
	breaches := breachLabels(checks)

	switch {
	case len(breaches) > 0:
		trace.Verdict = model.VerdictYes
		trace.Reason = "breach: " + strings.Join(breaches, ", ")
	case trace.AllUnknown():
		trace.Verdict = model.VerdictNo
		trace.Reason = "no trusted signal values were available; insufficient data, not a confirmed clear"
	default:
		trace.Verdict = model.VerdictNo
		trace.Reason = "all reported values within thresholds"
	}
	return trace
}

func evaluateFlight(sig *model.FlightSignal, th Thresholds) model.DecisionTrace {
	if sig == nil {
		sig = &model.FlightSignal{Status: model.FlightUnknown}
	}

	threshold := sig.ThresholdMinutes
	if threshold <= 0 {
		threshold = th.DelayMinutes
	}
	tier2At := 2 * threshold

	// An upstream oracle may have applied the same rule at the collection
	// boundary. Its tier is trusted and passed through unchanged; recomputing
	// could silently diverge if thresholds differ between systems.
	if sig.PayoutTier != nil {
		return passthroughTrace(sig, threshold)
	}

	statusCheck := model.ThresholdCheck{
		ID:                   "status",
		Label:                "Flight status",
		Value:                string(sig.Status),
		ThresholdDescription: "CANCELLED pays tier 2",
	}
	switch sig.Status {
	case model.FlightCancelled:
		statusCheck.Status = model.StatusBreach
	case model.FlightUnknown, "":
		statusCheck.Status = model.StatusUnknown
		statusCheck.Value = string(model.FlightUnknown)
	default:
		statusCheck.Status = model.StatusClear
	}

	delayCheck := model.ThresholdCheck{
		ID:                   "delay",
		Label:                "Departure delay",
		ThresholdDescription: fmt.Sprintf(">= %d min tier 1, >= %d min tier 2", threshold, tier2At),
	}
	switch {
	case sig.DelayMinutes == nil:
		delayCheck.Status = model.StatusUnknown
		delayCheck.Value = "unreported"
	case *sig.DelayMinutes >= threshold:
		delayCheck.Status = model.StatusBreach
		delayCheck.Value = fmt.Sprintf("%d min", *sig.DelayMinutes)
	default:
		delayCheck.Status = model.StatusClear
		delayCheck.Value = fmt.Sprintf("%d min", *sig.DelayMinutes)
	}

	trace := model.DecisionTrace{Checks: []model.ThresholdCheck{statusCheck, delayCheck}}

	var tier int
	var payoutReason string
	switch {
	case sig.Status == model.FlightCancelled:
		// Unconditional: cancellation pays in full regardless of the
		// reported delay value, including nil or zero.
		tier = 2
		payoutReason = "flight cancelled"
	case sig.DelayMinutes != nil && *sig.DelayMinutes >= tier2At:
		tier = 2
		payoutReason = fmt.Sprintf("delay %d min reached tier 2 threshold %d min", *sig.DelayMinutes, tier2At)
	case sig.DelayMinutes != nil && *sig.DelayMinutes >= threshold:
		tier = 1
		payoutReason = fmt.Sprintf("delay %d min reached tier 1 threshold %d min", *sig.DelayMinutes, threshold)
	}

	trace.PayoutTier = tier
	trace.PayoutPercent = tierPercent(tier)
	trace.PayoutReason = payoutReason

	switch {
	case tier > 0:
		trace.Verdict = model.VerdictYes
		trace.Reason = payoutReason
	case trace.AllUnknown():
		trace.Verdict = model.VerdictNo
		trace.Reason = "no trusted signal values were available; insufficient data, not a confirmed clear"
	default:
		trace.Verdict = model.VerdictNo
		trace.Reason = fmt.Sprintf("delay below %d min threshold", threshold)
	}
	return trace
}

// passthroughTrace builds a trace from an upstream-computed tier.
func passthroughTrace(sig *model.FlightSignal, threshold int) model.DecisionTrace {
	tier := *sig.PayoutTier

	percent := tierPercent(tier)
	if sig.PayoutPercent != nil {
		percent = *sig.PayoutPercent
	}
	reason := sig.PayoutReason
	if reason == "" {
		reason = fmt.Sprintf("upstream oracle assigned tier %d", tier)
	}

	check := model.ThresholdCheck{
		ID:                   "oracle_tier",
		Label:                "Upstream-computed tier",
		Value:                fmt.Sprintf("tier %d (%d%%)", tier, percent),
		ThresholdDescription: fmt.Sprintf("trusted as computed upstream (threshold %d min)", threshold),
		Status:               model.StatusClear,
	}
	verdict := model.VerdictNo
	if tier > 0 {
		check.Status = model.StatusBreach
		verdict = model.VerdictYes
	}

	return model.DecisionTrace{
		Verdict:       verdict,
		Reason:        reason,
		Checks:        []model.ThresholdCheck{check},
		PayoutTier:    tier,
		PayoutPercent: percent,
		PayoutReason:  reason,
	}
}

// boundCheck evaluates an optional float dimension against a bound predicate.
func boundCheck(id, label string, v *float64, desc string, breached func(float64) bool) model.ThresholdCheck {
	check := model.ThresholdCheck{
		ID:                   id,
		Label:                label,
		ThresholdDescription: desc,
	}
	if v == nil {
		check.Status = model.StatusUnknown
		check.Value = "unreported"
		return check
	}
	check.Value = fmt.Sprintf("%.1f", *v)
	if breached(*v) {
		check.Status = model.StatusBreach
	} else {
		check.Status = model.StatusClear
	}
	return check
}

func constructionCheck(v *bool) model.ThresholdCheck {
	check := model.ThresholdCheck{
		ID:                   "construction",
		Label:                "Nearby construction",
		ThresholdDescription: "breach when active",
	}
	switch {
	case v == nil:
		check.Status = model.StatusUnknown
		check.Value = "unreported"
	case *v:
		check.Status = model.StatusBreach
		check.Value = "active"
	default:
		check.Status = model.StatusClear
		check.Value = "none"
	}
	return check
}

// weatherCheck combines precipitation and wind into one dimension: either
// value over its bound breaches; both absent is unknown.
func weatherCheck(sig *model.PropertySignal, th Thresholds) model.ThresholdCheck {
	check := model.ThresholdCheck{
		ID:    "weather",
		Label: "Weather",
		ThresholdDescription: fmt.Sprintf(">= %.0f mm precipitation or >= %.0f km/h wind",
			th.PrecipitationMmMax, th.WindSpeedKmhMax),
	}

	if sig.PrecipitationMm == nil && sig.WindSpeedKmh == nil {
		check.Status = model.StatusUnknown
		check.Value = "unreported"
		return check
	}

	var parts []string
	breach := false
	if sig.PrecipitationMm != nil {
		parts = append(parts, fmt.Sprintf("%.1f mm", *sig.PrecipitationMm))
		breach = breach || *sig.PrecipitationMm >= th.PrecipitationMmMax
	}
	if sig.WindSpeedKmh != nil {
		parts = append(parts, fmt.Sprintf("%.1f km/h", *sig.WindSpeedKmh))
		breach = breach || *sig.WindSpeedKmh >= th.WindSpeedKmhMax
	}

	check.Value = strings.Join(parts, ", ")
	if breach {
		check.Status = model.StatusBreach
	} else {
		check.Status = model.StatusClear
	}
	return check
}

func breachLabels(checks []model.ThresholdCheck) []string {
	var labels []string
	for _, c := range checks {
		if c.Status == model.StatusBreach {
			labels = append(labels, c.Label)
		}
	}
	return labels
}

func tierPercent(tier int) int {
	switch tier {
	case 2:
		return percentTier2
	case 1:
		return percentTier1
	default:
		return percentTier0
	}
}

package classifier

import (
	"strings"
	"testing"

	"github.com/northcover/parametric-cli/internal/model"
)

func propertySnap(sig model.PropertySignal) model.Snapshot {
	return model.Snapshot{Property: &sig}
}

func flightSnap(sig model.FlightSignal) model.Snapshot {
	return model.Snapshot{Flight: &sig}
}

func TestPropertyAllUnknown(t *testing.T) {
	trace := Evaluate(model.PolicyProperty, propertySnap(model.PropertySignal{}), DefaultThresholds())

	if trace.Verdict != model.VerdictNo {
		t.Errorf("verdict = %s, want NO", trace.Verdict)
	}
	if !trace.AllUnknown() {
		t.Error("expected every check to be unknown")
	}
	if !strings.Contains(trace.Reason, "no trusted signal values") {
		t.Errorf("reason must distinguish missing data from a confirmed clear, got %q", trace.Reason)
	}
}

func TestPropertyNoiseAndConstruction(t *testing.T) {
	// Scenario: loud, safe, construction active.
	trace := Evaluate(model.PolicyProperty, propertySnap(model.PropertySignal{
		NoiseLevelDb:       model.Float64(85),
		SafetyIndex:        model.Float64(8.5),
		NearbyConstruction: model.Bool(true),
	}), DefaultThresholds())

	if trace.Verdict != model.VerdictYes {
		t.Fatalf("verdict = %s, want YES", trace.Verdict)
	}
	if !strings.Contains(trace.Reason, "Noise") {
		t.Errorf("reason should cite noise: %q", trace.Reason)
	}
	if !strings.Contains(trace.Reason, "construction") {
		t.Errorf("reason should cite construction: %q", trace.Reason)
	}
}

func TestPropertyEveryCheckResolves(t *testing.T) {
	trace := Evaluate(model.PolicyProperty, propertySnap(model.PropertySignal{
		NoiseLevelDb: model.Float64(40),
	}), DefaultThresholds())

	if len(trace.Checks) != 4 {
		t.Fatalf("expected 4 property checks, got %d", len(trace.Checks))
	}
	for _, c := range trace.Checks {
		switch c.Status {
		case model.StatusBreach, model.StatusClear, model.StatusUnknown:
		default:
			t.Errorf("check %s has unresolved status %q", c.ID, c.Status)
		}
	}
	if trace.Verdict != model.VerdictNo {
		t.Errorf("verdict = %s, want NO with one clear reading", trace.Verdict)
	}
}

func TestPropertyWeatherBreach(t *testing.T) {
	tests := []struct {
		name    string
		sig     model.PropertySignal
		verdict model.Verdict
	}{
		{"precipitation at bound", model.PropertySignal{PrecipitationMm: model.Float64(5)}, model.VerdictYes},
		{"precipitation below bound", model.PropertySignal{PrecipitationMm: model.Float64(4.9)}, model.VerdictNo},
		{"wind at bound", model.PropertySignal{WindSpeedKmh: model.Float64(30)}, model.VerdictYes},
		{"wind below with calm rain", model.PropertySignal{PrecipitationMm: model.Float64(1), WindSpeedKmh: model.Float64(10)}, model.VerdictNo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trace := Evaluate(model.PolicyProperty, propertySnap(tt.sig), DefaultThresholds())
			if trace.Verdict != tt.verdict {
				t.Errorf("verdict = %s, want %s", trace.Verdict, tt.verdict)
			}
		})
	}
}

func TestFlightCancelledAlwaysTier2(t *testing.T) {
	tests := []struct {
		name  string
		delay *int
	}{
		{"nil delay", nil},
		{"zero delay", model.Int(0)},
		{"small delay", model.Int(12)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trace := Evaluate(model.PolicyFlight, flightSnap(model.FlightSignal{
				Status:           model.FlightCancelled,
				DelayMinutes:     tt.delay,
				ThresholdMinutes: 45,
			}), DefaultThresholds())

			if trace.PayoutTier != 2 {
				t.Errorf("tier = %d, want 2 for cancellation", trace.PayoutTier)
			}
			if trace.PayoutPercent != 100 {
				t.Errorf("percent = %d, want 100", trace.PayoutPercent)
			}
			if trace.Verdict != model.VerdictYes {
				t.Errorf("verdict = %s, want YES", trace.Verdict)
			}
		})
	}
}

func TestFlightTierBoundaries(t *testing.T) {
	tests := []struct {
		delay   int
		tier    int
		percent int
	}{
		{0, 0, 0},
		{44, 0, 0},
		{45, 1, 50},
		{78, 1, 50}, // below 90, stays tier 1
		{89, 1, 50},
		{90, 2, 100}, // exact tier-2 boundary
		{240, 2, 100},
	}

	for _, tt := range tests {
		trace := Evaluate(model.PolicyFlight, flightSnap(model.FlightSignal{
			Status:           model.FlightDelayed,
			DelayMinutes:     model.Int(tt.delay),
			ThresholdMinutes: 45,
		}), DefaultThresholds())

		if trace.PayoutTier != tt.tier {
			t.Errorf("delay %d: tier = %d, want %d", tt.delay, trace.PayoutTier, tt.tier)
		}
		if trace.PayoutPercent != tt.percent {
			t.Errorf("delay %d: percent = %d, want %d", tt.delay, trace.PayoutPercent, tt.percent)
		}
		if (trace.PayoutTier == 0) != (trace.Verdict == model.VerdictNo) {
			t.Errorf("delay %d: tier 0 must coincide with verdict NO", tt.delay)
		}
	}
}

func TestFlightTierMonotone(t *testing.T) {
	prev := -1
	for delay := 0; delay <= 200; delay += 5 {
		trace := Evaluate(model.PolicyFlight, flightSnap(model.FlightSignal{
			Status:           model.FlightDelayed,
			DelayMinutes:     model.Int(delay),
			ThresholdMinutes: 45,
		}), DefaultThresholds())

		if trace.PayoutTier < prev {
			t.Fatalf("tier decreased from %d to %d at delay %d", prev, trace.PayoutTier, delay)
		}
		prev = trace.PayoutTier
	}
}

func TestFlightAllUnknown(t *testing.T) {
	trace := Evaluate(model.PolicyFlight, flightSnap(model.FlightSignal{
		Status: model.FlightUnknown,
	}), DefaultThresholds())

	if trace.Verdict != model.VerdictNo {
		t.Errorf("verdict = %s, want NO", trace.Verdict)
	}
	if trace.PayoutTier != 0 {
		t.Errorf("tier = %d, want 0", trace.PayoutTier)
	}
	if !strings.Contains(trace.Reason, "no trusted signal values") {
		t.Errorf("reason must flag missing data, got %q", trace.Reason)
	}
}

func TestFlightUpstreamTierTrusted(t *testing.T) {
	// The upstream oracle says tier 1 even though the raw delay would map to
	// tier 2 here; the upstream computation wins.
	trace := Evaluate(model.PolicyFlight, flightSnap(model.FlightSignal{
		Status:           model.FlightDelayed,
		DelayMinutes:     model.Int(300),
		ThresholdMinutes: 45,
		PayoutTier:       model.Int(1),
		PayoutPercent:    model.Int(50),
		PayoutReason:     "oracle tiering",
	}), DefaultThresholds())

	if trace.PayoutTier != 1 {
		t.Errorf("tier = %d, want upstream tier 1", trace.PayoutTier)
	}
	if trace.PayoutPercent != 50 {
		t.Errorf("percent = %d, want upstream 50", trace.PayoutPercent)
	}
	if trace.PayoutReason != "oracle tiering" {
		t.Errorf("reason = %q, want upstream reason", trace.PayoutReason)
	}
	if trace.Verdict != model.VerdictYes {
		t.Errorf("verdict = %s, want YES for nonzero tier", trace.Verdict)
	}
}

func TestFlightDefaultThresholdFromConfig(t *testing.T) {
	// No per-signal threshold: fall back to the configured default (45),
	// so a 50 minute delay is tier 1.
	trace := Evaluate(model.PolicyFlight, flightSnap(model.FlightSignal{
		Status:       model.FlightDelayed,
		DelayMinutes: model.Int(50),
	}), DefaultThresholds())

	if trace.PayoutTier != 1 {
		t.Errorf("tier = %d, want 1 with default 45 min threshold", trace.PayoutTier)
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	snap := propertySnap(model.PropertySignal{
		NoiseLevelDb:    model.Float64(72),
		PrecipitationMm: model.Float64(2),
	})

	a := Evaluate(model.PolicyProperty, snap, DefaultThresholds())
	b := Evaluate(model.PolicyProperty, snap, DefaultThresholds())

	if a.Reason != b.Reason || a.Verdict != b.Verdict || len(a.Checks) != len(b.Checks) {
		t.Error("evaluation is not deterministic")
	}
	for i := range a.Checks {
		if a.Checks[i] != b.Checks[i] {
			t.Errorf("check %d differs between runs", i)
		}
	}
}

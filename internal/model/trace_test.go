package model

import "testing"

func TestBreached(t *testing.T) {
	trace := DecisionTrace{
		Checks: []ThresholdCheck{
			{ID: "noise", Status: StatusClear},
			{ID: "weather", Status: StatusBreach},
		},
	}
	if !trace.Breached() {
		t.Error("expected Breached() = true with one breach check")
	}

	trace.Checks[1].Status = StatusUnknown
	if trace.Breached() {
		t.Error("expected Breached() = false with no breach checks")
	}
}

func TestAllUnknown(t *testing.T) {
	trace := DecisionTrace{
		Checks: []ThresholdCheck{
			{ID: "noise", Status: StatusUnknown},
			{ID: "safety", Status: StatusUnknown},
		},
	}
	if !trace.AllUnknown() {
		t.Error("expected AllUnknown() = true")
	}

	trace.Checks[0].Status = StatusClear
	if trace.AllUnknown() {
		t.Error("expected AllUnknown() = false with a clear check")
	}
}

func TestAllUnknownEmptyTrace(t *testing.T) {
	if !(DecisionTrace{}).AllUnknown() {
		t.Error("a trace with no checks carries no trusted values")
	}
}

func TestPolicyTypeValid(t *testing.T) {
	if !PolicyProperty.Valid() || !PolicyFlight.Valid() {
		t.Error("known policy types should be valid")
	}
	if PolicyType("weather").Valid() {
		t.Error("unknown policy type should be invalid")
	}
}

package settlement

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"

	"github.com/northcover/parametric-cli/internal/arbiter"
	"github.com/northcover/parametric-cli/internal/classifier"
	"github.com/northcover/parametric-cli/internal/model"
	"github.com/northcover/parametric-cli/internal/sources"
)

type fakeFlights struct {
	sig *model.FlightSignal
	err error
}

func (f fakeFlights) FlightStatus(_ context.Context, _, _ string) (*model.FlightSignal, error) {
	return f.sig, f.err
}

type fakeProperties struct {
	reading *sources.PropertyReading
	err     error
}

func (f fakeProperties) PropertyReading(_ context.Context, _ string) (*sources.PropertyReading, error) {
	return f.reading, f.err
}

type fakeWeather struct {
	reading *sources.WeatherReading
	err     error
}

func (f fakeWeather) CurrentWeather(_ context.Context) (*sources.WeatherReading, error) {
	return f.reading, f.err
}

type fakeArbiter struct {
	answer *arbiter.Answer
	err    error

	mu    sync.Mutex
	calls int
}

func (f *fakeArbiter) Ask(_ context.Context, _ arbiter.Question) (*arbiter.Answer, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.answer, f.err
}

// blockingArbiter waits for the context to expire, simulating a hung model.
type blockingArbiter struct{}

func (blockingArbiter) Ask(ctx context.Context, _ arbiter.Question) (*arbiter.Answer, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func delayedFlight(minutes int) *model.FlightSignal {
	return &model.FlightSignal{
		Status:       model.FlightDelayed,
		DelayMinutes: model.Int(minutes),
	}
}

func flightRequest() Request {
	return Request{
		PolicyID: "pol-42",
		Question: "Will flight UA100 on 2026-08-28 be delayed by 45 minutes or more?",
		Meta:     PolicyMeta{Type: model.PolicyFlight, FlightID: "UA100", FlightDate: "2026-08-28"},
	}
}

func newTestEngine(arb arbiter.Client, flights sources.FlightProvider, props sources.PropertyProvider, weather sources.WeatherProvider, opts Options) *Engine {
	return NewEngine(flights, props, weather, arb, classifier.DefaultThresholds(), opts)
}

func TestSettleArbiterVerdictWins(t *testing.T) {
	// Flight delayed 90 minutes: the trace says YES, but the arbiter
	// answers NO. The arbiter's structured verdict is authoritative.
	arb := &fakeArbiter{answer: &arbiter.Answer{Result: model.VerdictNo, Confidence: 8200}}
	eng := newTestEngine(arb, fakeFlights{sig: delayedFlight(90)}, nil, nil, Options{})

	got, err := eng.Settle(context.Background(), flightRequest())
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if got.Verdict != model.VerdictNo {
		t.Errorf("verdict = %s, want NO", got.Verdict)
	}
	if got.Confidence != 8200 {
		t.Errorf("confidence = %d, want 8200", got.Confidence)
	}
	if got.UsedFallback {
		t.Error("UsedFallback = true for a successful arbiter call")
	}
	if got.Trace.Verdict != model.VerdictYes {
		t.Errorf("trace verdict = %s, want YES (audit trail must be attached)", got.Trace.Verdict)
	}
}

func TestSettleRateLimitFallsBackToDeterministic(t *testing.T) {
	arb := &fakeArbiter{err: eris.Wrap(arbiter.ErrRateLimited, "429 from upstream")}
	eng := newTestEngine(arb, fakeFlights{sig: delayedFlight(90)}, nil, nil, Options{})

	got, err := eng.Settle(context.Background(), flightRequest())
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if !got.UsedFallback {
		t.Fatal("UsedFallback = false, want fallback on rate limit")
	}
	if got.Verdict != model.VerdictYes {
		t.Errorf("verdict = %s, want deterministic YES", got.Verdict)
	}
	if got.Confidence != arbiter.MaxConfidence {
		t.Errorf("confidence = %d, want %d", got.Confidence, arbiter.MaxConfidence)
	}
	if got.Trace.PayoutTier != 2 {
		t.Errorf("trace payout tier = %d, want 2 for a 90 minute delay", got.Trace.PayoutTier)
	}
}

func TestSettleOtherArbiterErrorIsFatal(t *testing.T) {
	arb := &fakeArbiter{err: eris.New("model returned malformed verdict")}
	eng := newTestEngine(arb, fakeFlights{sig: delayedFlight(90)}, nil, nil, Options{})

	got, err := eng.Settle(context.Background(), flightRequest())
	if err == nil {
		t.Fatal("Settle returned nil error for a non-rate-limit arbiter failure")
	}
	if got != nil {
		t.Errorf("verdict = %+v, want nil on fatal error", got)
	}
}

func TestSettleTimeoutPolicy(t *testing.T) {
	cases := []struct {
		name         string
		asRateLimit  bool
		wantFallback bool
	}{
		{"timeout is fatal by default", false, false},
		{"timeout treated as rate limit", true, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			eng := newTestEngine(blockingArbiter{}, fakeFlights{sig: delayedFlight(90)}, nil, nil, Options{
				ArbiterTimeout:     10 * time.Millisecond,
				TimeoutAsRateLimit: tc.asRateLimit,
			})
			got, err := eng.Settle(context.Background(), flightRequest())
			if tc.wantFallback {
				if err != nil {
					t.Fatalf("Settle: %v", err)
				}
				if !got.UsedFallback {
					t.Error("UsedFallback = false, want fallback on configured timeout")
				}
				return
			}
			if err == nil {
				t.Fatal("Settle returned nil error for arbiter timeout")
			}
		})
	}
}

func TestSettlePropertyMergesSensorAndWeather(t *testing.T) {
	arb := &fakeArbiter{answer: &arbiter.Answer{Result: model.VerdictYes, Confidence: 9100}}
	props := fakeProperties{reading: &sources.PropertyReading{
		NoiseLevelDb:       model.Float64(85),
		SafetyIndex:        model.Float64(7.5),
		NearbyConstruction: model.Bool(true),
	}}
	weather := fakeWeather{reading: &sources.WeatherReading{
		PrecipitationMm: model.Float64(12),
		WindSpeedKmh:    model.Float64(10),
	}}
	eng := newTestEngine(arb, nil, props, weather, Options{})

	got, err := eng.Settle(context.Background(), Request{
		PolicyID: "pol-7",
		Question: "Did living conditions at property abc-123 degrade this week?",
		Meta:     PolicyMeta{Type: model.PolicyProperty, PropertyID: "abc-123"},
	})
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if got.Trace.Verdict != model.VerdictYes {
		t.Errorf("trace verdict = %s, want YES", got.Trace.Verdict)
	}
	reason := got.Trace.Reason
	for _, want := range []string{"noise", "construction", "weather"} {
		if !strings.Contains(strings.ToLower(reason), want) {
			t.Errorf("trace reason %q does not cite %q", reason, want)
		}
	}
}

func TestSettlePropertyToleratesOneDeadSource(t *testing.T) {
	arb := &fakeArbiter{err: eris.Wrap(arbiter.ErrRateLimited, "429")}
	props := fakeProperties{reading: &sources.PropertyReading{
		NoiseLevelDb: model.Float64(85),
	}}
	weather := fakeWeather{err: eris.New("weather upstream down")}
	eng := newTestEngine(arb, nil, props, weather, Options{})

	got, err := eng.Settle(context.Background(), Request{
		PolicyID: "pol-8",
		Meta:     PolicyMeta{Type: model.PolicyProperty, PropertyID: "abc-123"},
	})
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if got.Verdict != model.VerdictYes {
		t.Errorf("verdict = %s, want YES from the surviving noise reading", got.Verdict)
	}
}

func TestSettlePropertyFailsWhenAllSourcesDead(t *testing.T) {
	eng := newTestEngine(
		&fakeArbiter{answer: &arbiter.Answer{Result: model.VerdictNo}},
		nil,
		fakeProperties{err: eris.New("sensors down")},
		fakeWeather{err: eris.New("weather down")},
		Options{},
	)
	if _, err := eng.Settle(context.Background(), Request{
		Meta: PolicyMeta{Type: model.PolicyProperty, PropertyID: "abc-123"},
	}); err == nil {
		t.Fatal("Settle returned nil error with every signal source failing")
	}
}

func TestSettleRejectsIncompleteMeta(t *testing.T) {
	eng := newTestEngine(&fakeArbiter{}, fakeFlights{}, fakeProperties{}, fakeWeather{}, Options{})
	cases := []struct {
		name string
		meta PolicyMeta
	}{
		{"unknown type", PolicyMeta{Type: "crop"}},
		{"flight without id", PolicyMeta{Type: model.PolicyFlight}},
		{"property without id", PolicyMeta{Type: model.PolicyProperty}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := eng.Settle(context.Background(), Request{Meta: tc.meta}); err == nil {
				t.Fatal("Settle returned nil error")
			}
		})
	}
}

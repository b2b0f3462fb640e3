package settlement

import (
	"context"
	"sync"
	"testing"

	"github.com/rotisserie/eris"

	"github.com/northcover/parametric-cli/internal/arbiter"
	"github.com/northcover/parametric-cli/internal/model"
)

// flakyArbiter alternates YES and NO across calls.
type flakyArbiter struct {
	mu    sync.Mutex
	calls int
}

func (f *flakyArbiter) Ask(_ context.Context, _ arbiter.Question) (*arbiter.Answer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls%2 == 0 {
		return &arbiter.Answer{Result: model.VerdictNo, Confidence: 9000}, nil
	}
	return &arbiter.Answer{Result: model.VerdictYes, Confidence: 9000}, nil
}

func TestConsensusAgreement(t *testing.T) {
	arb := &fakeArbiter{answer: &arbiter.Answer{Result: model.VerdictYes, Confidence: 9500}}
	eng := newTestEngine(arb, fakeFlights{sig: delayedFlight(90)}, nil, nil, Options{})

	got, err := eng.SettleWithConsensus(context.Background(), flightRequest(), 3)
	if err != nil {
		t.Fatalf("SettleWithConsensus: %v", err)
	}
	if got.Verdict != model.VerdictYes {
		t.Errorf("verdict = %s, want YES", got.Verdict)
	}
	if arb.calls != 3 {
		t.Errorf("arbiter calls = %d, want one per replica", arb.calls)
	}
}

func TestConsensusMismatch(t *testing.T) {
	eng := newTestEngine(&flakyArbiter{}, fakeFlights{sig: delayedFlight(90)}, nil, nil, Options{})

	got, err := eng.SettleWithConsensus(context.Background(), flightRequest(), 4)
	if !eris.Is(err, ErrConsensusMismatch) {
		t.Fatalf("err = %v, want ErrConsensusMismatch", err)
	}
	if got != nil {
		t.Errorf("verdict = %+v, want nil on mismatch", got)
	}
}

func TestConsensusSingleReplicaDelegates(t *testing.T) {
	arb := &fakeArbiter{answer: &arbiter.Answer{Result: model.VerdictNo, Confidence: 7000}}
	eng := newTestEngine(arb, fakeFlights{sig: delayedFlight(10)}, nil, nil, Options{})

	got, err := eng.SettleWithConsensus(context.Background(), flightRequest(), 1)
	if err != nil {
		t.Fatalf("SettleWithConsensus: %v", err)
	}
	if got.Verdict != model.VerdictNo {
		t.Errorf("verdict = %s, want NO", got.Verdict)
	}
}

func TestConsensusRejectsNonPositiveReplicas(t *testing.T) {
	eng := newTestEngine(&fakeArbiter{}, fakeFlights{sig: delayedFlight(10)}, nil, nil, Options{})
	if _, err := eng.SettleWithConsensus(context.Background(), flightRequest(), 0); err == nil {
		t.Fatal("SettleWithConsensus accepted zero replicas")
	}
}

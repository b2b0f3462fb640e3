// Package solvency estimates reserve requirements for a parametric product
// portfolio via Monte Carlo simulation of breach outcomes.
package solvency

import (
	"math"
	"math/rand/v2"
	"runtime"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/northcover/parametric-cli/internal/model"
)

// ErrInvalidInput rejects degenerate simulation inputs before any computation.
var ErrInvalidInput = eris.New("solvency: invalid simulation input")

// shardTrials is the fixed shard size for the trial loop. The partition
// depends only on the trial count, so serial and parallel runs draw identical
// PRNG streams and produce bit-identical results.
const shardTrials = 2048

// histogramBins is the bin count of the net-profit histogram.
const histogramBins = 20

// Params configures one simulation run.
type Params struct {
	Trials     int
	Confidence float64
	Seed       uint64
}

// DefaultParams returns the standard simulation parameters.
func DefaultParams() Params {
	return Params{Trials: 10000, Confidence: 0.95, Seed: 1}
}

// Simulate runs trials independent portfolio outcomes for the product and
// returns reserve and solvency metrics. Equal (config, params) pairs produce
// bit-identical results, including the histogram and quantiles.
//
// Auto-lock capital is applied at per-policy granularity: the realized loss
// of a trial is the sum over policies of max(0, -net - autoLock). This keeps
// the Monte Carlo loss consistent with the analytic worst-case reserve and
// makes locked tail reserves strictly smaller whenever unlocked ones are
// positive.
func Simulate(cfg model.ProductConfig, p Params) (*model.SimulationResult, error) {
	if err := validate(cfg, p); err != nil {
		return nil, err
	}

	netYes := cfg.BuyerPremium + cfg.HostStake - cfg.PayoutIfYes - cfg.OperationalCost
	netNo := cfg.BuyerPremium + cfg.HostStake - cfg.HostRefundIfNo - cfg.OperationalCost
	prob := cfg.BreachProbability

	res := &model.SimulationResult{
		Trials:     p.Trials,
		Confidence: p.Confidence,
		Seed:       p.Seed,
	}

	res.ExpectedNetPerPolicy = prob*netYes + (1-prob)*netNo
	res.ExpectedNetPortfolio = res.ExpectedNetPerPolicy * float64(cfg.Count)
	res.BreakEvenProbability = breakEvenProbability(cfg, netNo)

	// Analytic worst case: every policy lands on its worse outcome.
	lockedDeficit := func(net float64) float64 {
		return math.Max(0, -net-cfg.AutoLockPerPolicy)
	}
	unlockedDeficit := func(net float64) float64 {
		return math.Max(0, -net)
	}
	worstNet := math.Min(netYes, netNo)
	res.WorstCaseReserve = lockedDeficit(worstNet) * float64(cfg.Count)
	res.WorstCaseReserveNoLock = unlockedDeficit(worstNet) * float64(cfg.Count)

	breaches := drawBreachCounts(cfg.Count, prob, p)

	nets := make([]float64, p.Trials)
	losses := make([]float64, p.Trials)
	lossesNoLock := make([]float64, p.Trials)
	deficits, deficitsNoLock := 0, 0

	for i, yes := range breaches {
		no := cfg.Count - yes
		nets[i] = float64(yes)*netYes + float64(no)*netNo
		losses[i] = float64(yes)*lockedDeficit(netYes) + float64(no)*lockedDeficit(netNo)
		lossesNoLock[i] = float64(yes)*unlockedDeficit(netYes) + float64(no)*unlockedDeficit(netNo)
		if losses[i] > 0 {
			deficits++
		}
		if lossesNoLock[i] > 0 {
			deficitsNoLock++
		}
	}

	res.DeficitProbability = float64(deficits) / float64(p.Trials)
	res.DeficitProbabilityNoLock = float64(deficitsNoLock) / float64(p.Trials)

	sort.Float64s(losses)
	sort.Float64s(lossesNoLock)
	res.ReserveAtConfidence = quantile(losses, p.Confidence)
	res.ReserveAt95 = quantile(losses, 0.95)
	res.ReserveAt99 = quantile(losses, 0.99)
	res.ReserveAtConfidenceNoLock = quantile(lossesNoLock, p.Confidence)
	res.ReserveAt95NoLock = quantile(lossesNoLock, 0.95)
	res.ReserveAt99NoLock = quantile(lossesNoLock, 0.99)

	totalLock := cfg.AutoLockPerPolicy * float64(cfg.Count)
	if res.ReserveAt99NoLock == 0 {
		res.ReserveCoverageRatio = math.Inf(1)
	} else {
		res.ReserveCoverageRatio = totalLock / res.ReserveAt99NoLock
	}

	res.NetHistogram = buildHistogram(nets)

	zap.L().Info("solvency: simulation complete",
		zap.Int("trials", p.Trials),
		zap.Uint64("seed", p.Seed),
		zap.Float64("expected_net_portfolio", res.ExpectedNetPortfolio),
		zap.Float64("reserve_at_99", res.ReserveAt99),
		zap.Float64("reserve_at_99_no_lock", res.ReserveAt99NoLock),
		zap.Float64("deficit_probability", res.DeficitProbability),
	)

	return res, nil
}

// RequiredPremium returns the buyer premium that achieves the target expected
// per-policy net. Closed form, no simulation.
func RequiredPremium(cfg model.ProductConfig, targetNet float64) float64 {
	p := cfg.BreachProbability
	return targetNet + cfg.OperationalCost +
		p*cfg.PayoutIfYes + (1-p)*cfg.HostRefundIfNo - cfg.HostStake
}

func validate(cfg model.ProductConfig, p Params) error {
	switch {
	case p.Trials <= 0:
		return eris.Wrapf(ErrInvalidInput, "trials must be positive, got %d", p.Trials)
	case cfg.Count <= 0:
		return eris.Wrapf(ErrInvalidInput, "policy count must be positive, got %d", cfg.Count)
	case math.IsNaN(cfg.BreachProbability) || math.IsInf(cfg.BreachProbability, 0):
		return eris.Wrap(ErrInvalidInput, "breach probability must be finite")
	case cfg.BreachProbability < 0 || cfg.BreachProbability > 1:
		return eris.Wrapf(ErrInvalidInput, "breach probability %v outside [0, 1]", cfg.BreachProbability)
	case p.Confidence <= 0 || p.Confidence >= 1:
		return eris.Wrapf(ErrInvalidInput, "confidence %v outside (0, 1)", p.Confidence)
	}
	return nil
}

// breakEvenProbability solves E[net] = 0 for the breach probability. The
// denominator is payout - refund; when it is non-positive the break-even
// point does not exist and +Inf is reported rather than a misleading finite
// number.
func breakEvenProbability(cfg model.ProductConfig, netNo float64) float64 {
	denom := cfg.PayoutIfYes - cfg.HostRefundIfNo
	if denom <= 0 {
		return math.Inf(1)
	}
	return netNo / denom
}

// drawBreachCounts simulates the per-trial breach counts. Trials are
// partitioned into fixed-size shards, each with a PRNG seeded from the master
// seed and the shard index; shards run in parallel but write into disjoint
// slice ranges, so the output is independent of worker scheduling.
func drawBreachCounts(count int, prob float64, p Params) []int {
	out := make([]int, p.Trials)
	shards := (p.Trials + shardTrials - 1) / shardTrials

	g := new(errgroup.Group)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for s := 0; s < shards; s++ {
		start := s * shardTrials
		end := min(start+shardTrials, p.Trials)
		rng := rand.New(rand.NewPCG(p.Seed, uint64(s)+0x9e3779b97f4a7c15))

		g.Go(func() error {
			for i := start; i < end; i++ {
				yes := 0
				for j := 0; j < count; j++ {
					if rng.Float64() < prob {
						yes++
					}
				}
				out[i] = yes
			}
			return nil
		})
	}

	// Workers never fail; the group only bounds parallelism.
	_ = g.Wait()
	return out
}

// quantile returns the linear-interpolated q-quantile of sorted values.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[lo+1]-sorted[lo])*frac
}

func buildHistogram(nets []float64) model.Histogram {
	lo, hi := nets[0], nets[0]
	for _, v := range nets {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	h := model.Histogram{
		Min:    lo,
		Max:    hi,
		Counts: make([]int, histogramBins),
	}
	if hi == lo {
		h.Counts[0] = len(nets)
		return h
	}

	h.BinWidth = (hi - lo) / histogramBins
	for _, v := range nets {
		bin := int((v - lo) / h.BinWidth)
		if bin >= histogramBins {
			bin = histogramBins - 1
		}
		h.Counts[bin]++
	}
	return h
}

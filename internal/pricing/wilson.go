package pricing

import (
	"math"

	"github.com/northcover/parametric-cli/internal/model"
)

// z975 is the two-sided 95% normal quantile used for Wilson intervals.
const z975 = 1.959963984540054

// Wilson computes the Wilson score 95% confidence interval for a binomial
// proportion. It is robust to small samples, unlike the normal approximation.
// For n == 0 the estimate is 0 with a [0, 0] interval.
func Wilson(successes, n int) model.ProbEstimate {
	if n <= 0 {
		return model.ProbEstimate{}
	}

	p := float64(successes) / float64(n)
	nf := float64(n)
	z2 := z975 * z975

	center := (p + z2/(2*nf)) / (1 + z2/nf)
	margin := z975 * math.Sqrt(p*(1-p)/nf+z2/(4*nf*nf)) / (1 + z2/nf)

	return model.ProbEstimate{
		Point: p,
		Lower: math.Max(0, center-margin),
		Upper: math.Min(1, center+margin),
	}
}

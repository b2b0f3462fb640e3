package settlement

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrConsensusMismatch indicates that redundant settlement runs disagreed.
// Disagreement between replicas means some input was non-deterministic or an
// upstream flapped mid-settlement; no verdict is published.
var ErrConsensusMismatch = eris.New("settlement: consensus mismatch between replicas")

// SettleWithConsensus runs the same settlement request on n independent
// replicas and publishes a verdict only if every replica produced a
// byte-identical result. Replica outputs are compared on their canonical
// JSON encoding, so any divergence in verdict, confidence, fallback flag,
// or trace fails consensus.
func (e *Engine) SettleWithConsensus(ctx context.Context, req Request, n int) (*ReconciledVerdict, error) {
	if n <= 0 {
		return nil, eris.Errorf("settlement: replica count must be positive, got %d", n)
	}
	if n == 1 {
		return e.Settle(ctx, req)
	}

	verdicts := make([]*ReconciledVerdict, n)
	g, gCtx := errgroup.WithContext(ctx)
	for i := range n {
		g.Go(func() error {
			v, err := e.Settle(gCtx, req)
			if err != nil {
				return eris.Wrapf(err, "replica %d", i)
			}
			verdicts[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	reference, err := json.Marshal(verdicts[0])
	if err != nil {
		return nil, eris.Wrap(err, "settlement: encode replica verdict")
	}
	for i := 1; i < n; i++ {
		encoded, err := json.Marshal(verdicts[i])
		if err != nil {
			return nil, eris.Wrap(err, "settlement: encode replica verdict")
		}
		if string(encoded) != string(reference) {
			zap.L().Error("settlement: replica verdicts diverged",
				zap.String("policy_id", req.PolicyID),
				zap.Int("replica", i),
				zap.ByteString("reference", reference),
				zap.ByteString("divergent", encoded),
			)
			return nil, eris.Wrapf(ErrConsensusMismatch, "policy %s, replica %d", req.PolicyID, i)
		}
	}

	zap.L().Info("settlement: consensus reached",
		zap.String("policy_id", req.PolicyID),
		zap.Int("replicas", n),
		zap.String("verdict", string(verdicts[0].Verdict)),
	)
	return verdicts[0], nil
}

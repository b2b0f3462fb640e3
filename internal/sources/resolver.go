package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/northcover/parametric-cli/internal/resilience"
)

// Resolver fetches JSON from an ordered list of candidate base URLs. Each
// candidate is tried in sequence; transient failures fall through to the next
// candidate, while client errors (4xx) abort immediately since every mirror
// would answer the same. This is the operational half of multi-provider
// fan-out: the engine asks for a path, the resolver worries about which
// mirror is up.
type Resolver struct {
	name     string
	baseURLs []string
	client   *http.Client
	retry    resilience.RetryConfig
	breakers map[string]*resilience.CircuitBreaker
}

// NewResolver creates a resolver over the given candidate base URLs.
func NewResolver(name string, baseURLs []string, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	breakers := make(map[string]*resilience.CircuitBreaker, len(baseURLs))
	for _, base := range baseURLs {
		breakers[base] = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			ShouldTrip: resilience.IsTransient,
		})
	}
	return &Resolver{
		name:     name,
		baseURLs: baseURLs,
		client:   &http.Client{Timeout: timeout},
		retry:    resilience.DefaultRetryConfig(),
		breakers: breakers,
	}
}

// GetJSON fetches path from the first candidate that answers and decodes the
// body into out.
func (r *Resolver) GetJSON(ctx context.Context, path string, out any) error {
	if len(r.baseURLs) == 0 {
		return eris.Errorf("sources: %s has no base URLs configured", r.name)
	}

	var lastErr error
	for _, base := range r.baseURLs {
		body, err := resilience.ExecuteVal(ctx, r.breakers[base], func(ctx context.Context) ([]byte, error) {
			return resilience.DoVal(ctx, r.retry, func(ctx context.Context) ([]byte, error) {
				return r.fetch(ctx, base+path)
			})
		})
		if err == nil {
			if err := json.Unmarshal(body, out); err != nil {
				return eris.Wrapf(err, "sources: %s decode %s", r.name, path)
			}
			return nil
		}

		if !resilience.IsTransient(err) && !eris.Is(err, resilience.ErrCircuitOpen) {
			return err
		}

		zap.L().Warn("sources: candidate failed, trying next",
			zap.String("provider", r.name),
			zap.String("base_url", base),
			zap.Error(err),
		)
		lastErr = err
	}

	return eris.Wrapf(lastErr, "sources: %s exhausted all %d candidates", r.name, len(r.baseURLs))
}

func (r *Resolver) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "sources: build request %s", url)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(err, 0)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "read body"), resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("sources: %s returned %d: %s", url, resp.StatusCode, truncate(body, 200))
		if resilience.IsTransientHTTPStatus(resp.StatusCode, true) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return fmt.Sprintf("%s... (%d bytes)", b[:n], len(b))
}

// Package arbiter queries the external generative-AI arbiter for a structured
// settlement verdict on a policy question.
package arbiter

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/northcover/parametric-cli/internal/model"
)

// ErrRateLimited signals that the arbiter rejected the call with a rate-limit
// condition (HTTP 429 equivalent). Callers recover locally via the
// deterministic fallback; any other arbiter failure is fatal to the
// settlement attempt.
var ErrRateLimited = eris.New("arbiter: rate limited")

// MaxConfidence is the arbiter confidence scale ceiling.
const MaxConfidence = 10000

// Question is the arbiter input: the natural-language policy question plus
// the structured signal context the classifier evaluated.
type Question struct {
	Text    string         `json:"text"`
	Signals model.Snapshot `json:"signals"`
}

// Answer is the arbiter's structured verdict.
type Answer struct {
	Result     model.Verdict `json:"result"`
	Confidence int           `json:"confidence"`
}

// Client asks the arbiter a settlement question.
type Client interface {
	Ask(ctx context.Context, q Question) (*Answer, error)
}

// parseAnswer decodes the arbiter's reply. A reply that does not decode to a
// YES/NO verdict with an in-range confidence is a hard failure, never a
// default verdict.
func parseAnswer(text string) (*Answer, error) {
	text = cleanJSON(text)

	var raw struct {
		Result     string `json:"result"`
		Confidence int    `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, eris.Wrapf(err, "arbiter: malformed reply %q", text)
	}

	verdict := model.Verdict(strings.ToUpper(strings.TrimSpace(raw.Result)))
	if verdict != model.VerdictYes && verdict != model.VerdictNo {
		return nil, eris.Errorf("arbiter: reply result %q is not YES or NO", raw.Result)
	}
	if raw.Confidence < 0 || raw.Confidence > MaxConfidence {
		return nil, eris.Errorf("arbiter: confidence %d outside [0, %d]", raw.Confidence, MaxConfidence)
	}

	return &Answer{Result: verdict, Confidence: raw.Confidence}, nil
}

// cleanJSON extracts a JSON object from text that may contain markdown code
// fences or other wrapping.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

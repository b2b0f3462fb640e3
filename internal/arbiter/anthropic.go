package arbiter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const systemPrompt = `You are a neutral settlement arbiter for parametric insurance policies. You receive a policy question and the structured signal readings the policy is judged against. Decide whether the payout condition is met. Respond with a valid JSON object: {"result": "YES"|"NO", "confidence": <integer 0-10000>}. Base your decision only on the provided signals.`

// Config configures the Anthropic-backed arbiter.
type Config struct {
	APIKey    string
	Model     string
	MaxTokens int64
	// RequestsPerSecond throttles arbiter calls client-side. Zero disables
	// the local limiter; the remote 429 path still applies.
	RequestsPerSecond float64
}

// anthropicClient implements Client against the Anthropic Messages API.
type anthropicClient struct {
	client    sdk.Client
	model     string
	maxTokens int64
	limiter   *rate.Limiter
}

// New creates an arbiter client backed by anthropic-sdk-go.
func New(cfg Config) Client {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 256
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &anthropicClient{
		client:    sdk.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:     cfg.Model,
		maxTokens: maxTokens,
		limiter:   limiter,
	}
}

func (c *anthropicClient) Ask(ctx context.Context, q Question) (*Answer, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "arbiter: limiter wait")
		}
	}

	signals, err := json.Marshal(q.Signals)
	if err != nil {
		return nil, eris.Wrap(err, "arbiter: marshal signals")
	}

	prompt := "Question: " + q.Text + "\n\nSignal readings:\n" + string(signals)

	msg, err := c.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: c.maxTokens,
		System:    []sdk.TextBlockParam{{Text: systemPrompt}},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		var apierr *sdk.Error
		if errors.As(err, &apierr) && apierr.StatusCode == http.StatusTooManyRequests {
			return nil, eris.Wrap(ErrRateLimited, err.Error())
		}
		return nil, eris.Wrap(err, "arbiter: create message")
	}

	answer, err := parseAnswer(messageText(msg))
	if err != nil {
		return nil, err
	}

	zap.L().Debug("arbiter: verdict received",
		zap.String("model", c.model),
		zap.String("result", string(answer.Result)),
		zap.Int("confidence", answer.Confidence),
		zap.Int64("input_tokens", msg.Usage.InputTokens),
		zap.Int64("output_tokens", msg.Usage.OutputTokens),
	)
	return answer, nil
}

// messageText concatenates the text content blocks of a response.
func messageText(msg *sdk.Message) string {
	var out string
	for _, block := range msg.Content {
		out += block.Text
	}
	return out
}

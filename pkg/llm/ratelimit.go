package llm

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitedClient wraps a Client with a token-bucket limiter so bursts
// of teammate loops cannot exhaust the provider quota.
type RateLimitedClient struct {
	inner   Client
	limiter *rate.Limiter
}

func NewRateLimitedClient(inner Client, requestsPerMin float64) *RateLimitedClient {
	if requestsPerMin <= 0 {
		requestsPerMin = 60
	}
	return &RateLimitedClient{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(requestsPerMin/60.0), 1),
	}
}

func (c *RateLimitedClient) Send(
	ctx context.Context,
	system string,
	messages []Message,
	tools []ToolDef,
	maxTokens int,
) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.inner.Send(ctx, system, messages, tools, maxTokens)
}

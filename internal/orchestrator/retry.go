package orchestrator

import (
	"context"
	"time"

	"genprovider/internal/models"
	"genprovider/internal/provider"
)

const defaultInitialBackoff = 500 * time.Millisecond

func (o *Orchestrator) generateWithRetry(ctx context.Context, p provider.Provider, req models.GenerationRequest) (*models.GenerationResponse, error) {
	attempts := max(1, o.retry.MaxAttempts)
	if n, ok := o.providerRetries[p.Type()]; ok && n > 0 {
		attempts = n + 1
	}
	backoff := o.retry.InitialBackoff
	if backoff <= 0 {
		backoff = defaultInitialBackoff
	}

	for attempt := 1; ; attempt++ {
		resp, err := p.Generate(ctx, req)
		if err == nil || attempt >= attempts || !provider.IsRetryable(err) {
			return resp, err
		}

		o.log.Warn("retrying generation", "provider", p.Name(), "model", req.Model,
			"attempt", attempt, "backoff", backoff, "kind", provider.KindOf(err).String())
		if sleepErr := o.sleep(ctx, backoff); sleepErr != nil {
			return nil, err
		}
		if o.retry.MaxBackoff > 0 {
			backoff = min(backoff*2, o.retry.MaxBackoff)
		} else {
			backoff *= 2
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

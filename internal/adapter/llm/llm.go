// Package llm adapts chat-completion providers to port.LLM.
package llm

import (
	"context"
	"errors"
	"time"

	"ragbench/internal/adapter/httpapi"
	"ragbench/internal/domain"
	"ragbench/internal/log"
	"ragbench/internal/retry"
)

// Options configure an LLM client.
type Options struct {
	BaseURL   string
	MaxTokens int
	Retry     retry.Policy
	httpapi.Options
}

func (o Options) policy() retry.Policy {
	if o.Retry.Attempts <= 0 {
		return retry.DefaultPolicy()
	}
	return o.Retry
}

// call runs op under the retry policy, recording metrics. op must wrap
// errors that are not worth retrying with retry.Permanent.
func call(ctx context.Context, provider, model string, opts Options, op func(ctx context.Context) (string, error)) (string, error) {
	m := opts.Metrics
	notify := func(attempt int, err error, wait time.Duration) {
		m.RecordRetry(provider, "generate")
		log.Warnw("llm call failed, retrying",
			"provider", provider, "model", model, "attempt", attempt, "wait", wait, "error", err)
	}
	text, attempts, err := retry.DoValue(ctx, opts.policy(), notify, func(ctx context.Context) (string, error) {
		start := time.Now()
		text, err := op(ctx)
		status := "success"
		if err != nil {
			status = "error"
		}
		m.RecordProviderCall(provider, "generate", status, time.Since(start).Seconds())
		return text, err
	})
	var perr *domain.ProviderError
	if errors.As(err, &perr) {
		perr.Attempts = attempts
	}
	return text, err
}

// permanentUnlessTransient stops retries for everything but transient
// provider failures.
func permanentUnlessTransient(err error) error {
	if errors.Is(err, domain.ErrTransient) {
		return err
	}
	return retry.Permanent(err)
}

package httpapi

import (
	"context"
	"errors"
	"io"
	"net"
	"net/url"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/sashabaranov/go-openai"

	"ragbench/internal/domain"
)

// Classify converts an SDK error into a *domain.ProviderError. Context
// cancellation is returned unchanged.
func Classify(ctx context.Context, provider, op string, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return withStatus(provider, op, apiErr.HTTPStatusCode, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return withStatus(provider, op, reqErr.HTTPStatusCode, err)
	}
	var antErr *anthropic.Error
	if errors.As(err, &antErr) && antErr.StatusCode != 0 {
		return withStatus(provider, op, antErr.StatusCode, err)
	}

	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return domain.Transient(provider, op, 0, err)
	}
	return domain.Protocol(provider, op, 0, err)
}

func withStatus(provider, op string, status int, err error) error {
	return &domain.ProviderError{
		Reason:     domain.ClassifyStatus(status),
		Provider:   provider,
		Op:         op,
		StatusCode: status,
		Err:        err,
	}
}

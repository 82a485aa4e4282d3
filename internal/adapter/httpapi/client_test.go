package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragbench/internal/domain"
	"ragbench/internal/metrics"
)

type echoRequest struct {
	Query string `json:"query"`
}

type echoResponse struct {
	Echo string `json:"echo"`
}

func TestPostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/echo", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var req echoRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		json.NewEncoder(w).Encode(echoResponse{Echo: req.Query})
	}))
	defer srv.Close()

	m := metrics.New()
	c := New("test", srv.URL+"/v1/", "secret", Options{Metrics: m})
	var out echoResponse
	require.NoError(t, c.PostJSON(context.Background(), "echo", "/echo", echoRequest{Query: "hi"}, &out))
	assert.Equal(t, "hi", out.Echo)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderRequests.WithLabelValues("test", "echo", "success")))
}

func TestPostJSONClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		sentinel error
	}{
		{"rate limited", http.StatusTooManyRequests, `{}`, domain.ErrTransient},
		{"server error", http.StatusBadGateway, `oops`, domain.ErrTransient},
		{"timeout status", http.StatusRequestTimeout, `{}`, domain.ErrTransient},
		{"bad request", http.StatusBadRequest, `{"detail":"bad"}`, domain.ErrProtocol},
		{"unauthorized", http.StatusUnauthorized, `{}`, domain.ErrProtocol},
		{"malformed body", http.StatusOK, `not json`, domain.ErrProtocol},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := New("test", srv.URL, "k", Options{})
			var out echoResponse
			err := c.PostJSON(context.Background(), "echo", "/echo", echoRequest{}, &out)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)
			var perr *domain.ProviderError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, "test", perr.Provider)
		})
	}
}

func TestPostJSONNetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := New("test", url, "k", Options{Timeout: time.Second})
	err := c.PostJSON(context.Background(), "echo", "/echo", echoRequest{}, &echoResponse{})
	assert.ErrorIs(t, err, domain.ErrTransient)
}

func TestPostJSONCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := New("test", "http://127.0.0.1:1", "k", Options{})
	err := c.PostJSON(ctx, "echo", "/echo", echoRequest{}, &echoResponse{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewLimiter(t *testing.T) {
	assert.True(t, NewLimiter(0).Allow())
	l := NewLimiter(2)
	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.False(t, l.Allow(), "burst is capped at ceil(rps)")
}

func TestClassify(t *testing.T) {
	ctx := context.Background()
	assert.NoError(t, Classify(ctx, "p", "op", nil))
	assert.ErrorIs(t, Classify(ctx, "p", "op", &openai.APIError{HTTPStatusCode: 503}), domain.ErrTransient)
	assert.ErrorIs(t, Classify(ctx, "p", "op", &openai.APIError{HTTPStatusCode: 400}), domain.ErrProtocol)
	assert.ErrorIs(t, Classify(ctx, "p", "op", &openai.RequestError{HTTPStatusCode: 429, Err: errors.New("slow down")}), domain.ErrTransient)
	assert.ErrorIs(t, Classify(ctx, "p", "op", errors.New("unexpected shape")), domain.ErrProtocol)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, Classify(canceled, "p", "op", errors.New("x")), context.Canceled)
}

// Package client holds the HTTP clients for the cart, product and
// notification collaborators. Every call is traced, carries the request
// correlation id and passes through a per-collaborator circuit breaker.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"order-service/internal/breaker"
	"order-service/internal/correlation"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// StatusError is returned when a collaborator answers with a non-2xx status.
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s responded with status %d: %s", e.Service, e.StatusCode, e.Body)
}

// Options configures a collaborator client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	Breaker *breaker.Breaker
	// Transport overrides the underlying round tripper; tests use it.
	Transport http.RoundTripper
}

// httpClient is shared by the collaborator clients.
type httpClient struct {
	service string
	baseURL string
	http    *http.Client
	breaker *breaker.Breaker
	logger  zerolog.Logger
}

func newHTTPClient(service string, opts Options, logger zerolog.Logger) *httpClient {
	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	cb := opts.Breaker
	if cb == nil {
		cb = breaker.New(service, 5, 30*time.Second)
	}

	return &httpClient{
		service: service,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http: &http.Client{
			Timeout: opts.Timeout,
			Transport: otelhttp.NewTransport(base,
				otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
					return service + " " + r.Method
				}),
			),
		},
		breaker: cb,
		logger:  logger.With().Str("client", service).Logger(),
	}
}

// do sends a request and decodes a JSON response into out when out is non-nil.
// Transport errors and 5xx responses count against the breaker; 4xx
// responses are returned as *StatusError without tripping it.
func (c *httpClient) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", c.service, err)
		}
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var clientErr error
	start := time.Now()

	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to build %s request: %w", c.service, err)
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if id := correlation.FromContext(ctx); id != "" {
			req.Header.Set(correlation.Header, id)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("%s request failed: %w", c.service, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			statusErr := &StatusError{
				Service:    c.service,
				StatusCode: resp.StatusCode,
				Body:       strings.TrimSpace(string(snippet)),
			}
			if resp.StatusCode >= 500 {
				return statusErr
			}
			clientErr = statusErr
			return nil
		}

		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode %s response: %w", c.service, err)
		}
		return nil
	})

	if err == nil {
		err = clientErr
	}

	event := c.logger.Debug()
	if err != nil {
		event = c.logger.Warn().Err(err)
	}
	event.
		Str("method", method).
		Str("path", path).
		Dur("duration", time.Since(start)).
		Str("correlation_id", correlation.FromContext(ctx)).
		Msg("collaborator call")

	return err
}

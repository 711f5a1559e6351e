// Package openweather implements the upstream One Call API client.
package openweather

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fairyhunter13/openweather-proxy/internal/adapter/observability"
	"github.com/fairyhunter13/openweather-proxy/internal/domain"
)

const onecallPath = "/data/3.0/onecall"

// maxRedirects bounds redirect chasing; the upstream API does not redirect in
// normal operation.
const maxRedirects = 3

// Client calls the upstream API with one shared pooled http.Client so that
// keep-alive connections are reused across all requests in the process.
type Client struct {
	hc      *http.Client
	baseURL string
}

// New constructs the upstream client. timeout bounds each request
// independently of the caller's context.
func New(baseURL string, timeout time.Duration) *Client {
	transport := &http.Transport{
		MaxIdleConns:        64,
		MaxIdleConnsPerHost: 32,
		MaxConnsPerHost:     64,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(transport),
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
	}
}

// Fetch issues one upstream request charged to cred. The response body is
// returned verbatim on 2xx. Non-2xx surfaces as *domain.UpstreamError with
// the original status and body; transport failures wrap
// domain.ErrUpstreamUnavailable with the credential secret redacted.
func (c *Client) Fetch(ctx domain.Context, q domain.WeatherQuery, cred domain.Credential) ([]byte, error) {
	vals := url.Values{}
	vals.Set("lat", strconv.FormatFloat(q.Lat, 'f', -1, 64))
	vals.Set("lon", strconv.FormatFloat(q.Lon, 'f', -1, 64))
	vals.Set("appid", cred.Secret)
	if q.Exclude != "" {
		vals.Set("exclude", q.Exclude)
	}
	if q.Units != "" {
		vals.Set("units", q.Units)
	}
	if q.Lang != "" {
		vals.Set("lang", q.Lang)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+onecallPath+"?"+vals.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", domain.ErrInternal, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.hc.Do(req)
	observability.UpstreamRequestsTotal.WithLabelValues(cred.ID, outcomeOf(resp, err)).Inc()
	if err != nil {
		slog.Warn("upstream transport failure",
			slog.String("credential", cred.ID),
			slog.String("error", redact(err.Error(), cred.Secret)))
		return nil, fmt.Errorf("%w: %s", domain.ErrUpstreamUnavailable, redact(err.Error(), cred.Secret))
	}
	defer func() { _ = resp.Body.Close() }()
	observability.UpstreamRequestDuration.WithLabelValues(cred.ID).Observe(time.Since(start).Seconds())

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrUpstreamUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("upstream non-2xx",
			slog.String("credential", cred.ID),
			slog.Int("status", resp.StatusCode))
		return nil, &domain.UpstreamError{Status: resp.StatusCode, Body: body}
	}
	return body, nil
}

func outcomeOf(resp *http.Response, err error) string {
	switch {
	case err != nil:
		return "transport_error"
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return "success"
	default:
		return "http_error"
	}
}

// redact strips the credential secret from error text so it can never leak
// into logs or client payloads via the request URL.
func redact(s, secret string) string {
	if secret == "" {
		return s
	}
	return strings.ReplaceAll(s, secret, "[redacted]")
}

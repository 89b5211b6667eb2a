// Package api is the client for the storefront REST backend. The backend is
// the authority for price, stock, cart contents and order state.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxResponseSize = 10 << 20 // 10MB

// TokenSource supplies the bearer token for each request. An empty token
// sends the request anonymously.
type TokenSource interface {
	Token() string
}

type Client struct {
	baseURL    string
	tenantID   string
	httpClient *http.Client

	tokens         atomic.Pointer[TokenSource]
	onUnauthorized atomic.Pointer[func(token string)]
}

// NewClient traces every request through otelhttp. Without opts the
// global tracer provider and propagator apply; see telemetry.Setup.
func NewClient(baseURL, tenantID string, timeout time.Duration, opts ...otelhttp.Option) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		tenantID: tenantID,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport, opts...),
		},
	}
}

func (c *Client) SetTokenSource(ts TokenSource) {
	c.tokens.Store(&ts)
}

// OnUnauthorized registers fn to run when a request that carried a token
// is answered with 401. fn receives the rejected token. Anonymous requests
// (login, register) never trigger it.
func (c *Client) OnUnauthorized(fn func(token string)) {
	c.onUnauthorized.Store(&fn)
}

func (c *Client) TenantID() string {
	return c.tenantID
}

type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func (c *Client) token() string {
	ts := c.tokens.Load()
	if ts == nil || *ts == nil {
		return ""
	}
	return (*ts).Token()
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request failed: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request failed: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.tenantID != "" {
		req.Header.Set("X-Tenant-ID", c.tenantID)
	}
	token := c.token()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("read response failed: %w", err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode >= http.StatusBadRequest {
		if resp.StatusCode == http.StatusUnauthorized && token != "" {
			if fn := c.onUnauthorized.Load(); fn != nil && *fn != nil {
				(*fn)(token)
			}
		}
		return &Error{Status: resp.StatusCode, Message: env.Message}
	}
	if len(raw) == 0 {
		return nil
	}
	if decodeErr != nil {
		return fmt.Errorf("decode response failed: %w", decodeErr)
	}
	if env.Success != nil && !*env.Success {
		return &Error{Status: resp.StatusCode, Message: env.Message}
	}

	if out == nil || len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s data failed: %w", path, err)
	}
	return nil
}

func pageQuery(skip, take int) url.Values {
	q := url.Values{}
	if skip > 0 {
		q.Set("skip", fmt.Sprint(skip))
	}
	if take > 0 {
		q.Set("take", fmt.Sprint(take))
	}
	return q
}

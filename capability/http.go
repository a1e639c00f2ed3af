package capability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hupe1980/diligence/core"
)

const maxBodyBytes = 2 << 20

// HTTPClient performs JSON GET requests against one external API and
// classifies every failure as a *core.CapabilityError of its capability.
type HTTPClient struct {
	Capability core.CapabilityKind
	BaseURL    string
	Client     *http.Client
	// Authorize decorates outgoing requests (auth headers, API keys).
	Authorize func(r *http.Request)
	UserAgent string
}

// NewHTTPClient constructs an HTTPClient with the given per-request timeout.
func NewHTTPClient(kind core.CapabilityKind, baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		Capability: kind,
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Client:     &http.Client{Timeout: timeout},
		UserAgent:  "diligence/1.0",
	}
}

// GetJSON issues GET BaseURL+path?query and decodes the body into out.
func (c *HTTPClient) GetJSON(ctx context.Context, action, path string, query url.Values, out any) error {
	body, err := c.Get(ctx, action, path, query, "application/json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return core.NewCapabilityError(core.ErrorKindTransient, c.Capability, action, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// Get issues GET BaseURL+path?query and returns the raw body of a 2xx response.
func (c *HTTPClient) Get(ctx context.Context, action, path string, query url.Values, accept string) ([]byte, error) {
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, core.NewCapabilityError(core.ErrorKindInvalidInput, c.Capability, action, fmt.Errorf("create request: %w", err))
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	if c.Authorize != nil {
		c.Authorize(req)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, core.NewCapabilityError(ClassifyTransportError(err), c.Capability, action, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, core.NewCapabilityError(ClassifyTransportError(err), c.Capability, action, fmt.Errorf("read response: %w", err))
	}

	if kind := core.KindForHTTPStatus(resp.StatusCode); kind != "" {
		return nil, core.NewCapabilityError(kind, c.Capability, action, &StatusError{Code: resp.StatusCode, Body: snippet(body)})
	}
	return body, nil
}

// StatusError is a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("HTTP %d %s: %s", e.Code, http.StatusText(e.Code), e.Body)
}

// ClassifyTransportError maps errors without an HTTP status. Cancellation is
// Cancelled, timeouts and network failures are Transient, anything else Fatal.
func ClassifyTransportError(err error) core.ErrorKind {
	if errors.Is(err, context.Canceled) {
		return core.ErrorKindCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return core.ErrorKindTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return core.ErrorKindTransient
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return core.ErrorKindTransient
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return core.ErrorKindTransient
	}
	return core.ErrorKindFatal
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

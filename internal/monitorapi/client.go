// Package monitorapi is the HTTP client for the monitor backend.
package monitorapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/starford/compass/internal/apperr"
)

const maxBodyBytes = 4 << 20

// IAPHeader carries the Identity-Aware Proxy assertion the backend verifies.
const IAPHeader = "X-Goog-IAP-JWT-Assertion"

// Config holds client settings.
type Config struct {
	BaseURL      string
	Token        string
	IAPAssertion string
	Timeout      time.Duration
	UserAgent    string
}

// Client talks to the monitor-management and report endpoints.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	token        string
	iapAssertion string
	userAgent    string
}

// New creates a Client.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = "compass"
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		token:        cfg.Token,
		iapAssertion: cfg.IAPAssertion,
		userAgent:    ua,
	}
}

type assertionKey struct{}

// WithAssertion returns a context whose requests carry the given IAP
// assertion instead of the configured one.
func WithAssertion(ctx context.Context, assertion string) context.Context {
	if assertion == "" {
		return ctx
	}
	return context.WithValue(ctx, assertionKey{}, assertion)
}

// AssertionFrom returns the assertion set by WithAssertion, or "".
func AssertionFrom(ctx context.Context) string {
	v, _ := ctx.Value(assertionKey{}).(string)
	return v
}

// ForwardAssertion is middleware that passes the caller's IAP assertion on
// to backend requests made while serving r.
func ForwardAssertion(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a := r.Header.Get(IAPHeader); a != "" {
			r = r.WithContext(WithAssertion(r.Context(), a))
		}
		next.ServeHTTP(w, r)
	})
}

// APIError is a non-2xx backend response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("monitor api: status %d", e.Status)
	}
	return fmt.Sprintf("monitor api: status %d: %s", e.Status, e.Message)
}

// Unwrap maps the status onto the shared sentinel errors.
func (e *APIError) Unwrap() error {
	switch {
	case e.Status == http.StatusNotFound:
		return apperr.ErrNotFound
	case e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden:
		return apperr.ErrUnauthorized
	case e.Status == http.StatusBadRequest || e.Status == http.StatusUnprocessableEntity:
		return apperr.ErrInvalidInput
	case e.Status == http.StatusTooManyRequests:
		return apperr.ErrRateLimited
	case e.Status >= 500:
		return apperr.ErrUnavailable
	}
	return nil
}

// do sends a JSON request and decodes a JSON response into out (if non-nil).
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("monitor api: marshal request: %w", err)
		}
		rdr = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("monitor api: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if a := AssertionFrom(ctx); a != "" {
		req.Header.Set(IAPHeader, a)
	} else if c.iapAssertion != "" {
		req.Header.Set(IAPHeader, c.iapAssertion)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("monitor api: %s %s: %w", method, path, ctxErr)
		}
		return fmt.Errorf("monitor api: %s %s: %w: %v", method, path, apperr.ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("monitor api: read body: %w: %v", apperr.ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Message: errorMessage(data)}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("monitor api: decode %s %s: %w", method, path, err)
	}
	return nil
}

func errorMessage(data []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	msg := strings.TrimSpace(string(data))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}

func monitorPath(id int64, suffix string) string {
	return "/api/monitors/" + url.PathEscape(fmt.Sprint(id)) + suffix
}

// IsUnavailable reports whether err means the backend could not be reached
// or failed on its side.
func IsUnavailable(err error) bool {
	return errors.Is(err, apperr.ErrUnavailable)
}

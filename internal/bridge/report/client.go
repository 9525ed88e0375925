package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"k8s.io/utils/clock"
)

// Option configures a reporter.
type Option func(*base)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(b *base) {
		if client != nil {
			b.client = client
		}
	}
}

// WithClock overrides the clock used for token expiry and timestamps.
func WithClock(c clock.PassiveClock) Option {
	return func(b *base) {
		if c != nil {
			b.clock = c
		}
	}
}

// base holds what both integrations share.
type base struct {
	client *http.Client
	clock  clock.PassiveClock
	tokens *tokenCache
}

func newBase(timeout time.Duration, opts []Option) base {
	b := base{
		client: &http.Client{Timeout: timeout},
		clock:  clock.RealClock{},
	}
	for _, opt := range opts {
		opt(&b)
	}
	b.tokens = newTokenCache(b.clock)
	return b
}

// statusError is a non-2xx HTTP response.
type statusError struct {
	URL    string
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.URL, e.Status, e.Body)
}

// postJSON sends body as JSON with a bearer token.
func (b *base) postJSON(ctx context.Context, target, bearer string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+bearer)

	return b.do(req, nil)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// postForm runs an OAuth2 token request.
func (b *base) postForm(ctx context.Context, target string, form url.Values) (string, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var tok tokenResponse
	if err := b.do(req, &tok); err != nil {
		return "", 0, err
	}
	if tok.AccessToken == "" {
		return "", 0, fmt.Errorf("%s: empty access token", target)
	}
	return tok.AccessToken, time.Duration(tok.ExpiresIn) * time.Second, nil
}

func (b *base) do(req *http.Request, out any) error {
	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &statusError{URL: req.URL.String(), Status: resp.StatusCode, Body: string(data)}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

// linkRemoved maps a 404 from a report endpoint to ErrLinkRemoved.
func linkRemoved(err error) error {
	var se *statusError
	if errors.As(err, &se) && se.Status == http.StatusNotFound {
		return fmt.Errorf("%w: %v", ErrLinkRemoved, err)
	}
	return err
}

func isUnauthorized(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.Status == http.StatusUnauthorized
}

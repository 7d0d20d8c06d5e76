// Package authority talks to the remote authority service, the server-side
// source of truth for account entitlements.
//
// Classification matters more than transport detail here: a 2xx response
// with a well-formed body is an authoritative answer, and everything else
// (transport failure, timeout, non-2xx, malformed body, missing credential)
// is a non-authoritative error the resolution engine must treat as silence.
package authority

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/tiergate/tiergate/pkg/entitlements"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodySize    = 64 << 10 // the answer is a couple of fields
	userAgent      = "tiergate"
)

var (
	// ErrNotConfigured means no authority endpoint was configured.
	ErrNotConfigured = errors.New("remote authority not configured")

	// ErrNoCredential means no bearer credential was available for the call.
	ErrNoCredential = errors.New("no bearer credential available")
)

// statusResponse is the authority's wire format. expiresAt is RFC 3339 or
// null; anything else fails decoding and the answer is discarded whole.
type statusResponse struct {
	IsPro     bool       `json:"isPro"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

// Config configures the authority client.
type Config struct {
	BaseURL  string
	Timeout  time.Duration
	DeviceID string
}

// Client checks entitlements against the remote authority over HTTPS.
type Client struct {
	baseURL  string
	deviceID string
	tokens   oauth2.TokenSource
	httpc    *http.Client
}

// New builds an authority client. tokens supplies the bearer credential and
// is typically owned by the session layer; a nil source makes every check
// fail non-authoritatively with ErrNoCredential.
func New(cfg Config, tokens oauth2.TokenSource) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, ErrNotConfigured
	}
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, fmt.Errorf("invalid authority url %q", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialContextWithCache,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return &Client{
		baseURL:  baseURL,
		deviceID: strings.TrimSpace(cfg.DeviceID),
		tokens:   tokens,
		httpc:    &http.Client{Timeout: timeout, Transport: transport},
	}, nil
}

// Check asks the authority whether the account currently holds Pro. The
// client timeout is the only bounding mechanism; callers may pass a broader
// context without further deadlines.
func (c *Client) Check(ctx context.Context) (entitlements.AuthorityStatus, error) {
	if c == nil {
		return entitlements.AuthorityStatus{}, ErrNotConfigured
	}
	if c.tokens == nil {
		return entitlements.AuthorityStatus{}, ErrNoCredential
	}

	token, err := c.tokens.Token()
	if err != nil {
		return entitlements.AuthorityStatus{}, fmt.Errorf("obtain bearer credential: %w", err)
	}
	if token == nil || token.AccessToken == "" {
		return entitlements.AuthorityStatus{}, ErrNoCredential
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/entitlement", nil)
	if err != nil {
		return entitlements.AuthorityStatus{}, fmt.Errorf("build authority request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.deviceID != "" {
		req.Header.Set("X-Device-Id", c.deviceID)
	}
	token.SetAuthHeader(req)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return entitlements.AuthorityStatus{}, fmt.Errorf("reach remote authority: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return entitlements.AuthorityStatus{}, fmt.Errorf("remote authority returned status %d", resp.StatusCode)
	}

	var status statusResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&status); err != nil {
		return entitlements.AuthorityStatus{}, fmt.Errorf("decode remote authority response: %w", err)
	}

	return entitlements.AuthorityStatus{
		IsPro:     status.IsPro,
		ExpiresAt: status.ExpiresAt,
	}, nil
}

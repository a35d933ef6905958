// StreamForge Controller — IPTV playlist automation engine
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package upstream is a typed wrapper over the playlist backend's
// HTTP/JSON API: authentication token lifecycle, list/get/update calls,
// pagination fallback, retry with backoff, outbound rate limiting, and
// a circuit breaker guarding against cascading upstream outages.
package upstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/streamforge/controller/internal/config"
	"github.com/streamforge/controller/internal/metrics"
	"github.com/streamforge/controller/internal/models"
)

// maxErrorBodySize bounds how much of an error response body is read
// for logging, to avoid unbounded memory use on a misbehaving upstream.
const maxErrorBodySize = 64 * 1024

// StreamFilter narrows a ListStreams call. An empty filter lists every
// stream.
type StreamFilter struct {
	IsCustom    *bool
	M3UAccount  *int64
	PageSize    int
}

// Client talks to the playlist backend. All methods accept a context
// and return one of the sentinel errors in errors.go on failure.
type Client struct {
	baseURL    string
	username   string
	password   string
	proxy      string
	httpClient *http.Client
	limiter    *rate.Limiter
	retryMax   int
	retryBase  time.Duration

	mu    sync.RWMutex
	token string
}

// NewClient builds a Client from the engine's upstream configuration.
func NewClient(cfg config.UpstreamConfig) *Client {
	transport := http.DefaultTransport
	if cfg.Proxy != "" {
		if proxyURL, err := url.Parse(cfg.Proxy); err == nil {
			t := http.DefaultTransport.(*http.Transport).Clone()
			t.Proxy = http.ProxyURL(proxyURL)
			transport = t
		}
	}

	return &Client{
		baseURL:   cfg.BaseURL,
		username:  cfg.Username,
		password:  cfg.Password,
		proxy:     cfg.Proxy,
		retryMax:  cfg.RetryMax,
		retryBase: cfg.RetryBaseDelay,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		// One outbound call every 50ms sustained, bursts of 10 — keeps a
		// misconfigured polling loop from hammering the upstream.
		limiter: rate.NewLimiter(rate.Every(50*time.Millisecond), 10),
	}
}

type authResponse struct {
	Access string `json:"access"`
}

// authenticate obtains a fresh access token using configured credentials.
func (c *Client) authenticate(ctx context.Context) error {
	body, err := json.Marshal(map[string]string{
		"username": c.username,
		"password": c.password,
	})
	if err != nil {
		return fmt.Errorf("%w: encode auth request: %v", ErrPermanent, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/token/", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build auth request: %v", ErrPermanent, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return classifyStatus(resp.StatusCode, "authenticate", readBodyForError(resp.Body))
	}

	var out authResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("%w: decode auth response: %v", ErrPermanent, err)
	}

	c.mu.Lock()
	c.token = out.Access
	c.mu.Unlock()
	return nil
}

func (c *Client) currentToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// request performs one HTTP call, retrying transient failures with
// exponential backoff and refreshing the token once on a 401. operation
// is a stable metrics/log label (e.g. "list_streams"); path may carry a
// query string. out receives the decoded JSON body when non-nil.
func (c *Client) request(ctx context.Context, operation, method, path string, body, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter: %v", ErrTransient, err)
	}

	var bodyBytes []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: encode request body: %v", ErrPermanent, err)
		}
		bodyBytes = b
	}

	reauthedOnce := false
	var lastErr error
	for attempt := 0; attempt <= c.retryMax; attempt++ {
		if attempt > 0 {
			delay := c.retryBase * time.Duration(1<<uint(attempt-1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", ErrTransient, ctx.Err())
			}
		}

		if c.currentToken() == "" {
			if err := c.authenticate(ctx); err != nil {
				lastErr = err
				if !IsTransient(err) {
					return err
				}
				continue
			}
		}

		err := c.doOnce(ctx, operation, method, path, bodyBytes, out)
		if err == nil {
			return nil
		}

		if IsAuth(err) && !reauthedOnce {
			reauthedOnce = true
			c.mu.Lock()
			c.token = ""
			c.mu.Unlock()
			if authErr := c.authenticate(ctx); authErr != nil {
				return authErr
			}
			continue
		}

		if !IsTransient(err) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("%w: exhausted %d retries: %v", ErrPermanent, c.retryMax, lastErr)
}

func (c *Client) doOnce(ctx context.Context, operation, method, path string, bodyBytes []byte, out interface{}) error {
	start := time.Now()
	var bodyReader io.Reader
	if bodyBytes != nil {
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrPermanent, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.currentToken())
	if bodyBytes != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	metrics.UpstreamCallDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamCallErrors.WithLabelValues(operation, "transient").Inc()
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				metrics.UpstreamCallErrors.WithLabelValues(operation, "permanent").Inc()
				return fmt.Errorf("%w: decode response: %v", ErrPermanent, err)
			}
		}
		return nil
	}

	classErr := classifyStatus(resp.StatusCode, operation, readBodyForError(resp.Body))
	metrics.UpstreamCallErrors.WithLabelValues(operation, errorClass(classErr)).Inc()
	return classErr
}

func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	return body
}

func classifyStatus(status int, op string, body []byte) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: %s: status %d: %s", ErrAuth, op, status, body)
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %s: status %d: %s", ErrNotFound, op, status, body)
	case status == http.StatusConflict:
		return fmt.Errorf("%w: %s: status %d: %s", ErrConflict, op, status, body)
	case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
		return fmt.Errorf("%w: %s: status %d: %s", ErrTransient, op, status, body)
	default:
		return fmt.Errorf("%w: %s: status %d: %s", ErrPermanent, op, status, body)
	}
}

func errorClass(err error) string {
	switch {
	case IsAuth(err):
		return "auth"
	case IsNotFound(err):
		return "not_found"
	case IsConflict(err):
		return "conflict"
	case IsTransient(err):
		return "transient"
	default:
		return "permanent"
	}
}

// Ping verifies connectivity to the upstream.
func (c *Client) Ping(ctx context.Context) error {
	return c.request(ctx, "ping", http.MethodGet, "/api/core/ping/", nil, nil)
}

type m3uAccountsResponse = []models.M3UAccount

// ListM3UAccounts lists all configured M3U accounts with their profiles.
func (c *Client) ListM3UAccounts(ctx context.Context) ([]models.M3UAccount, error) {
	var out m3uAccountsResponse
	if err := c.request(ctx, "list_m3u_accounts", http.MethodGet, "/api/m3u/accounts/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RefreshM3UAccount triggers an upstream playlist re-fetch for one account.
func (c *Client) RefreshM3UAccount(ctx context.Context, id int64) error {
	path := fmt.Sprintf("/api/m3u/accounts/%d/refresh/", id)
	return c.request(ctx, "refresh_m3u_account", http.MethodPost, path, nil, nil)
}

type streamListPage struct {
	Count   int             `json:"count"`
	Results []models.Stream `json:"results"`
}

// ListStreams lists streams matching the filter, following pagination
// until the upstream reports no further pages. When the upstream does
// not honor server-side filtering it still performs a full page scan,
// applying the filter client-side (early-exiting once enough results
// accumulate is left to callers since page size is server-controlled).
func (c *Client) ListStreams(ctx context.Context, filter StreamFilter) ([]models.Stream, error) {
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 500
	}

	var all []models.Stream
	page := 1
	for {
		q := url.Values{}
		q.Set("page", strconv.Itoa(page))
		q.Set("page_size", strconv.Itoa(pageSize))
		if filter.IsCustom != nil {
			q.Set("is_custom", strconv.FormatBool(*filter.IsCustom))
		}
		if filter.M3UAccount != nil {
			q.Set("m3u_account", strconv.FormatInt(*filter.M3UAccount, 10))
		}

		var pageResp streamListPage
		path := "/api/streams/?" + q.Encode()
		if err := c.request(ctx, "list_streams", http.MethodGet, path, nil, &pageResp); err != nil {
			return nil, err
		}

		for _, s := range pageResp.Results {
			if filter.IsCustom != nil && s.IsCustom != *filter.IsCustom {
				continue
			}
			if filter.M3UAccount != nil && (s.M3UAccountID == nil || *s.M3UAccountID != *filter.M3UAccount) {
				continue
			}
			all = append(all, s)
		}
		if len(pageResp.Results) < pageSize || len(all) >= pageResp.Count {
			break
		}
		page++
	}
	return all, nil
}

// ListChannels lists every channel with its ordered stream membership.
func (c *Client) ListChannels(ctx context.Context) ([]models.Channel, error) {
	var out []models.Channel
	if err := c.request(ctx, "list_channels", http.MethodGet, "/api/channels/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateChannelStreams replaces a channel's ordered stream membership.
func (c *Client) UpdateChannelStreams(ctx context.Context, channelID int64, streamIDs []int64) error {
	path := fmt.Sprintf("/api/channels/%d/streams/", channelID)
	payload := map[string]interface{}{"streams": streamIDs}
	return c.request(ctx, "update_channel_streams", http.MethodPut, path, payload, nil)
}

// ListChannelGroups lists every channel group.
func (c *Client) ListChannelGroups(ctx context.Context) ([]models.ChannelGroup, error) {
	var out []models.ChannelGroup
	if err := c.request(ctx, "list_channel_groups", http.MethodGet, "/api/channel-groups/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type proxySessionsResponse struct {
	Channels []models.ProxySession `json:"channels"`
	Count    int                   `json:"count"`
}

// ProxySessions returns the live per-channel proxy session view. Only
// the structured {channels, count} shape is accepted; any other shape
// fails JSON decoding and surfaces as a permanent error.
func (c *Client) ProxySessions(ctx context.Context) ([]models.ProxySession, error) {
	var out proxySessionsResponse
	if err := c.request(ctx, "proxy_sessions", http.MethodGet, "/api/proxy/sessions/", nil, &out); err != nil {
		return nil, err
	}
	return out.Channels, nil
}

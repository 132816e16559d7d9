package wechat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sethvargo/go-retry"
)

// Headers carrying the credential on authenticated calls.
const (
	headerUin   = "X-Wechat-Uin"
	headerToken = "X-Wechat-Token"
)

type (
	// Client talks to the official-account platform.
	//
	// Transient failures (network, 5xx) are retried with exponential backoff
	// inside a single logical call; everything else fails on first sight so
	// the caller can react to the classification.
	Client struct {
		baseURL string
		http    *http.Client

		maxAttempts    uint64
		baseDelay      time.Duration
		attemptTimeout time.Duration
	}

	Config struct {
		BaseURL string

		// Zero values fall back to 3 attempts, 1s base delay, 10s per-attempt
		// timeout.
		MaxAttempts    int
		BaseDelay      time.Duration
		AttemptTimeout time.Duration
	}
)

func NewClient(cfg Config) *Client {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 10 * time.Second
	}

	return &Client{
		baseURL: cfg.BaseURL,
		http: &http.Client{
			Timeout: cfg.AttemptTimeout,
		},
		maxAttempts:    uint64(cfg.MaxAttempts),
		baseDelay:      cfg.BaseDelay,
		attemptTimeout: cfg.AttemptTimeout,
	}
}

// ResolveFeed resolves a shareable article or profile link to the official
// account behind it. Share pages are public, so no credential is needed.
func (c *Client) ResolveFeed(ctx context.Context, shareLink string) (FeedInfo, error) {
	var info FeedInfo
	err := c.call(ctx, nil, http.MethodGet, "/share/resolve", url.Values{"url": {shareLink}}, &info)
	if err != nil {
		return FeedInfo{}, err
	}

	return info, nil
}

type articlePage struct {
	Items []ArticleItem `json:"items"`
}

// FeedArticles fetches one page of a feed's history, newest first.
func (c *Client) FeedArticles(ctx context.Context, cred Credential, externalFeedID string, page int) ([]ArticleItem, error) {
	var resp articlePage
	path := fmt.Sprintf("/feeds/%s/articles", url.PathEscape(externalFeedID))
	err := c.call(ctx, &cred, http.MethodGet, path, url.Values{"page": {fmt.Sprint(page)}}, &resp)
	if err != nil {
		return nil, err
	}

	return resp.Items, nil
}

// call runs one logical request: credential check, then the attempt loop.
//
// A nil cred makes the request unauthenticated. Only network and server
// failures re-enter the loop; the backoff doubles from the base delay and
// the attempt count is capped.
func (c *Client) call(ctx context.Context, cred *Credential, method, path string, query url.Values, out any) error {
	// Malformed credentials never reach the wire.
	if cred != nil {
		if err := cred.validate(); err != nil {
			return &Error{Kind: KindCredential, Err: err}
		}
	}

	b := retry.WithMaxRetries(c.maxAttempts-1, retry.NewExponential(c.baseDelay))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
		defer cancel()

		err := c.once(attemptCtx, cred, method, path, query, out)
		apiErr := (*Error)(nil)
		if errors.As(err, &apiErr) && apiErr.retryable() {
			return retry.RetryableError(err)
		}

		return err
	})
}

// once performs a single attempt and classifies its outcome.
func (c *Client) once(ctx context.Context, cred *Credential, method, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return fmt.Errorf("error building request: %s", err)
	}
	if cred != nil {
		req.Header.Set(headerUin, cred.ExternalID)
		req.Header.Set(headerToken, cred.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	if kind, ok := classifyStatus(resp.StatusCode); ok {
		return &Error{
			Kind:   kind,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("error decoding response: %s", err)
	}

	return nil
}

// classifyStatus maps a non-2xx status to its kind.
func classifyStatus(status int) (Kind, bool) {
	switch {
	case status >= 200 && status < 300:
		return "", false
	case status == http.StatusTooManyRequests:
		return KindRateLimited, true
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindUnauthorized, true
	case status == http.StatusBadRequest:
		return KindBadRequest, true
	case status >= 500:
		return KindServer, true
	default:
		// Treat anything else we don't recognize as a request defect.
		return KindBadRequest, true
	}
}

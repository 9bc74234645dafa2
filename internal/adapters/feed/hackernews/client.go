// Package hackernews provides a client for the Hacker News firebase item feed
package hackernews

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	perr "feedmirror/internal/platform/errors"
	"feedmirror/internal/platform/logger"

	"github.com/cenkalti/backoff/v4"
)

const (
	baseURLDefault   = "https://hacker-news.firebaseio.com/v0"
	defaultTimeout   = 10 * time.Second
	defaultUA        = "feedmirror"
	defaultMaxRetry  = 3
	defaultRetryBase = 250 * time.Millisecond
	maxBodyBytes     = 4 << 20
)

// Options configures the Client
type Options struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration

	// Retry config for MaxItemID; Item is single shot so callers can pace retries
	MaxRetries int
	RetryBase  time.Duration

	// HTTPClient overrides the transport, mostly for tests
	HTTPClient *http.Client
}

// Client reads maxitem and item documents
type Client struct {
	http *http.Client
	opts Options
	log  logger.Logger
	now  func() time.Time
}

// NewClient creates a new Client with sane defaults
func NewClient(o Options) *Client {
	if o.BaseURL == "" {
		o.BaseURL = baseURLDefault
	}
	o.BaseURL = strings.TrimRight(o.BaseURL, "/")
	if o.UserAgent == "" {
		o.UserAgent = defaultUA
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = defaultMaxRetry
	}
	if o.RetryBase <= 0 {
		o.RetryBase = defaultRetryBase
	}
	hc := o.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: o.Timeout}
	}
	return &Client{
		http: hc,
		opts: o,
		log:  *logger.Named("hackernews"),
		now:  time.Now,
	}
}

// MaxItemID returns the current largest item id, retrying transient failures
func (c *Client) MaxItemID(ctx context.Context) (int64, error) {
	var id int64
	op := func() error {
		body, err := c.get(ctx, "/maxitem.json")
		if err != nil {
			if perr.Retryable(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		s := strings.TrimSpace(string(body))
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return backoff.Permanent(perr.Wrapf(err, perr.ErrorCodeFetch, "maxitem: not an integer: %.64q", s))
		}
		id = v
		return nil
	}
	notify := func(err error, wait time.Duration) {
		c.log.Warn().Err(err).Dur("retry_in", wait).Msg("hackernews maxitem retrying")
	}
	if err := backoff.RetryNotify(op, c.retryPolicy(ctx), notify); err != nil {
		return 0, err
	}
	return id, nil
}

// Item returns the raw JSON body for id, or nil when the feed has no such item.
// One attempt only; errors carry Unavailable/TooManyRequests codes when a retry may help
func (c *Client) Item(ctx context.Context, id int64) ([]byte, error) {
	body, err := c.get(ctx, "/item/"+strconv.FormatInt(id, 10)+".json")
	if err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	return trimmed, nil
}

func (c *Client) retryPolicy(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.opts.RetryBase
	eb.MaxInterval = 30 * time.Second
	eb.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(c.opts.MaxRetries)), ctx)
}

// get issues one GET and classifies the outcome
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	url := c.opts.BaseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "hackernews new request failed")
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "application/json")

	start := c.now()
	resp, err := c.http.Do(req)
	lat := c.now().Sub(start)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "hackernews get %s failed", path)
	}

	c.log.Trace().
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", lat).
		Msg("hackernews http response")

	switch {
	case resp.StatusCode == http.StatusOK:
		defer func() { _ = resp.Body.Close() }()
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "hackernews read %s failed", path)
		}
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := atoi(resp.Header.Get("Retry-After"))
		_ = drainAndClose(resp.Body)
		return nil, &StatusError{
			Status:     resp.StatusCode,
			RetryAfter: time.Duration(retryAfter) * time.Second,
			Err:        perr.Newf(perr.ErrorCodeTooManyRequests, "hackernews rate limited on %s", path),
		}
	case resp.StatusCode >= 500:
		_ = drainAndClose(resp.Body)
		return nil, &StatusError{
			Status: resp.StatusCode,
			Err:    perr.Newf(perr.ErrorCodeUnavailable, "hackernews transient status %d on %s", resp.StatusCode, path),
		}
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		_ = resp.Body.Close()
		code := perr.ErrorCodeFetch
		if resp.StatusCode == http.StatusNotFound {
			code = perr.ErrorCodeNotFound
		}
		return nil, &StatusError{
			Status: resp.StatusCode,
			Body:   string(body),
			Err:    perr.Newf(code, "hackernews unexpected status %d on %s", resp.StatusCode, path),
		}
	}
}

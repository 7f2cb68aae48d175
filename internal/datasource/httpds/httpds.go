// Package httpds fetches dump bytes over HTTP(S) with bounded retries.
//
// A Client GETs whole dumps into memory (dumps are parsed as one buffer, so
// there is no streaming path) and records HTTP metrics for every attempt.
package httpds

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"kbsync/internal/metrics"
)

// ErrNotFound marks a 404 response. It is terminal: the URL is wrong or the
// dump is gone, so retrying cannot help.
var ErrNotFound = errors.New("httpds: not found")

// ErrTooLarge marks a response body over the configured cap. Also terminal;
// the body will not shrink on retry.
var ErrTooLarge = errors.New("httpds: response exceeds byte cap")

// Config tunes a Client. Zero values get defaults.
type Config struct {
	// Timeout bounds each attempt end to end (default 60s).
	Timeout time.Duration

	// MaxAttempts per URL, including the first (default 5).
	MaxAttempts int

	// BaseBackoff and MaxBackoff shape the exponential retry delay
	// (defaults 2s and 60s).
	BaseBackoff time.Duration
	MaxBackoff  time.Duration

	// SleepBefore plus up to JitterMax is slept before every request so
	// concurrent workers do not hit the origin in lockstep (defaults 0
	// and 350ms; use -1 to disable the jitter).
	SleepBefore time.Duration
	JitterMax   time.Duration

	// MaxBytes caps the response body; 0 means no cap.
	MaxBytes int64

	// MaxConnsPerHost limits parallel connections (default 32, 0 from the
	// zero value picks the default; use -1 for unlimited).
	MaxConnsPerHost int

	InsecureSkipVerify bool

	// Job labels the per-attempt HTTP metrics (default "kbsync").
	Job string
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 2 * time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 60 * time.Second
	}
	if c.JitterMax == 0 {
		c.JitterMax = 350 * time.Millisecond
	}
	if c.JitterMax < 0 {
		c.JitterMax = 0
	}
	if c.MaxConnsPerHost == 0 {
		c.MaxConnsPerHost = 32
	}
	if c.MaxConnsPerHost < 0 {
		c.MaxConnsPerHost = 0 // net/http: 0 means unlimited
	}
	if c.Job == "" {
		c.Job = "kbsync"
	}
	return c
}

// Client fetches URLs. Safe for concurrent use.
type Client struct {
	cfg    Config
	client *http.Client

	mu  sync.Mutex
	rng *rand.Rand

	// seams for tests
	sleep func(ctx context.Context, d time.Duration) bool
	now   func() time.Time
}

// NewClient builds a Client with its own transport.
func NewClient(cfg Config) *Client {
	cfg = cfg.withDefaults()

	transport := &http.Transport{
		IdleConnTimeout:     90 * time.Second,
		MaxIdleConns:        256,
		MaxIdleConnsPerHost: 64,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
	}
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Client{
		cfg: cfg,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep: sleepContext,
		now:   time.Now,
	}
}

// attemptResult carries per-attempt observations for metrics and retry
// decisions.
type attemptResult struct {
	status     int
	reqDur     time.Duration
	respDur    time.Duration
	size       int64
	retryAfter time.Duration
}

// Fetch GETs rawURL into memory, retrying transient failures. 404 and
// over-cap responses are returned immediately; everything else retries with
// exponential backoff, honoring Retry-After on 429.
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if !c.sleep(ctx, c.preDelay()) {
			return nil, ctx.Err()
		}

		buf, res, err := c.attempt(ctx, rawURL)
		metrics.RecordHTTP(c.cfg.Job, res.status, err, res.reqDur, res.respDur, res.size)

		if err == nil {
			return buf, nil
		}
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrTooLarge) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, err
		}
		lastErr = err

		if attempt == c.cfg.MaxAttempts {
			break
		}
		if !c.sleep(ctx, retryDelay(res, attempt, c.cfg.BaseBackoff, c.cfg.MaxBackoff)) {
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("fetch %s: %d attempts: %w", rawURL, c.cfg.MaxAttempts, lastErr)
}

// FetchFirstBytes GETs rawURL and returns up to n leading bytes. Single
// attempt, no retries; meant for cheap inspection peeks.
func (c *Client) FetchFirstBytes(ctx context.Context, rawURL string, n int) ([]byte, error) {
	if n <= 0 {
		return nil, fmt.Errorf("httpds: peek size must be > 0")
	}

	start := c.now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("httpds: build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.RecordHTTP(c.cfg.Job, 0, err, c.now().Sub(start), c.now().Sub(start), 0)
		return nil, err
	}
	reqDur := c.now().Sub(start)
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		drained, _ := io.Copy(io.Discard, resp.Body)
		err := fmt.Errorf("peek %s: status %d", rawURL, resp.StatusCode)
		if resp.StatusCode == http.StatusNotFound {
			err = fmt.Errorf("peek %s: %w", rawURL, ErrNotFound)
		}
		metrics.RecordHTTP(c.cfg.Job, resp.StatusCode, err, reqDur, c.now().Sub(start), drained)
		return nil, err
	}

	buf, err := io.ReadAll(io.LimitReader(resp.Body, int64(n)))
	metrics.RecordHTTP(c.cfg.Job, resp.StatusCode, err, reqDur, c.now().Sub(start), int64(len(buf)))
	if err != nil {
		return nil, fmt.Errorf("peek %s: %w", rawURL, err)
	}
	return buf, nil
}

// attempt performs one GET and classifies the outcome.
func (c *Client) attempt(ctx context.Context, rawURL string) ([]byte, attemptResult, error) {
	var res attemptResult
	start := c.now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, res, fmt.Errorf("httpds: build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		res.respDur = c.now().Sub(start)
		return nil, res, err
	}
	res.reqDur = c.now().Sub(start)
	res.status = resp.StatusCode
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain so the connection can be reused.
		n, _ := io.Copy(io.Discard, resp.Body)
		res.size = n
		res.respDur = c.now().Sub(start)

		if resp.StatusCode == http.StatusTooManyRequests {
			res.retryAfter = parseRetryAfter(resp.Header)
		}
		if resp.StatusCode == http.StatusNotFound {
			return nil, res, fmt.Errorf("fetch %s: %w", rawURL, ErrNotFound)
		}
		return nil, res, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}

	var r io.Reader = resp.Body
	if c.cfg.MaxBytes > 0 {
		// One byte past the cap so oversize is detectable.
		r = io.LimitReader(resp.Body, c.cfg.MaxBytes+1)
	}
	buf, err := io.ReadAll(r)
	res.size = int64(len(buf))
	res.respDur = c.now().Sub(start)

	if err != nil {
		return nil, res, fmt.Errorf("fetch %s: read body: %w", rawURL, err)
	}
	if c.cfg.MaxBytes > 0 && int64(len(buf)) > c.cfg.MaxBytes {
		return nil, res, fmt.Errorf("fetch %s: %w (cap %d)", rawURL, ErrTooLarge, c.cfg.MaxBytes)
	}
	return buf, res, nil
}

// preDelay is the jittered sleep applied before every request.
func (c *Client) preDelay() time.Duration {
	d := c.cfg.SleepBefore
	if c.cfg.JitterMax > 0 {
		c.mu.Lock()
		d += time.Duration(c.rng.Int63n(int64(c.cfg.JitterMax) + 1))
		c.mu.Unlock()
	}
	return d
}

// retryDelay picks the wait before the next attempt. Retry-After wins on
// 429; otherwise exponential backoff with a floor for raw network errors
// (status 0) to avoid tight reconnect loops, clamped to max.
func retryDelay(res attemptResult, attempt int, base, max time.Duration) time.Duration {
	if res.status == http.StatusTooManyRequests && res.retryAfter > 0 {
		return res.retryAfter
	}

	d := base << uint(attempt-1)
	if res.status == 0 && d < 10*time.Second {
		d = 10 * time.Second
	}
	if d > max {
		d = max
	}
	return d
}

// sleepContext sleeps for d unless ctx is done first. Returns false when
// interrupted.
func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// parseRetryAfter understands both delta-seconds and HTTP-date forms.
func parseRetryAfter(h http.Header) time.Duration {
	ra := strings.TrimSpace(h.Get("Retry-After"))
	if ra == "" {
		return 0
	}

	if secs, err := strconv.Atoi(ra); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}

	if t, err := http.ParseTime(ra); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}

	return 0
}

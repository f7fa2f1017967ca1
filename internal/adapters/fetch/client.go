// Package fetch performs upstream JSON requests through a shared cache with
// exponential-backoff retries.
package fetch

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"regexp"
	"time"

	"github.com/okian/tierlist/internal/adapters/cache"
	"github.com/okian/tierlist/internal/domain/model"
	"github.com/okian/tierlist/pkg/logger"
	"github.com/okian/tierlist/pkg/metrics"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

const (
	maxJitter       = 250 * time.Millisecond
	maxResponseSize = 32 << 20
	defaultTimeout  = 30 * time.Second
)

// Policy controls caching and retries of a request.
type Policy struct {
	CacheTTL       time.Duration
	RetryCount     int
	RetryBaseDelay time.Duration
}

// DefaultPolicy is used when neither the client nor the request sets one.
func DefaultPolicy() Policy {
	return Policy{CacheTTL: 900 * time.Second, RetryCount: 4, RetryBaseDelay: 500 * time.Millisecond}
}

// PolicyFrom builds a Policy from the stored fetch settings.
func PolicyFrom(f model.FetchConfig) Policy {
	return Policy{CacheTTL: f.CacheTTL(), RetryCount: f.RetryCount, RetryBaseDelay: f.RetryBaseDelay()}
}

// Request describes one upstream call.
type Request struct {
	// Method defaults to GET.
	Method  string
	Headers map[string]string
	Body    []byte
	// Namespace prefixes the cache key; callers use one per purpose.
	Namespace string
	// Policy overrides the client policy when set.
	Policy *Policy
}

// Client fetches JSON documents with caching and retries.
type Client struct {
	http    *http.Client
	cache   cache.Store
	policy  Policy
	limiter *rate.Limiter
	sleep   func(ctx context.Context, d time.Duration) error
	jitter  func() time.Duration
	log     logger.Logger
}

// New creates a Client that caches responses in store.
func New(store cache.Store, opts ...Option) *Client {
	c := &Client{
		http:   &http.Client{Timeout: defaultTimeout},
		cache:  store,
		policy: DefaultPolicy(),
		sleep:  sleepContext,
		jitter: func() time.Duration { return rand.N(maxJitter) },
		log:    logger.Get().Named("fetch"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CacheKey returns cache:{namespace}:{sha256(method:url:body)}.
func CacheKey(namespace, method, url string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method + ":" + url + ":"))
	h.Write(body)
	return "cache:" + namespace + ":" + hex.EncodeToString(h.Sum(nil))
}

// FetchJSON returns the JSON body for url, from cache when present. Responses
// with status 429 or 5xx and transport failures are retried with
// base*2^attempt plus jitter between attempts. Other non-2xx statuses fail
// immediately with a *StatusError. A zero CacheTTL bypasses the cache.
func (c *Client) FetchJSON(ctx context.Context, url string, req Request) ([]byte, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	policy := c.policy
	if req.Policy != nil {
		policy = *req.Policy
	}
	family := namespaceFamily(req.Namespace)
	key := CacheKey(req.Namespace, method, url, req.Body)
	cached := policy.CacheTTL > 0

	if cached {
		if body, ok := c.lookup(ctx, key, family); ok {
			return body, nil
		}
	}

	var lastErr error
	for attempt := 0; attempt <= policy.RetryCount; attempt++ {
		body, retryable, err := c.attempt(ctx, method, url, family, req)
		if err == nil {
			if cached {
				c.store(ctx, key, body, policy.CacheTTL)
			}
			return body, nil
		}
		if !retryable {
			return nil, fmt.Errorf("failed request for %s: %w", url, err)
		}
		lastErr = err
		if attempt == policy.RetryCount {
			break
		}

		delay := policy.RetryBaseDelay*time.Duration(1<<attempt) + c.jitter()
		metrics.RecordUpstreamRetry(family)
		c.log.Debug(ctx, "retrying upstream request",
			logger.String("url", url),
			logger.Int("attempt", attempt+1),
			logger.Duration("delay", delay),
			logger.Error(err),
		)
		if err := c.sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("failed request for %s: %w", url, err)
		}
	}

	c.log.Warn(ctx, "upstream request failed after retries", logger.String("url", url), logger.Error(lastErr))
	return nil, fmt.Errorf("%w: failed request for %s: %w", ErrRetriesExhausted, url, lastErr)
}

// attempt performs one request and reports whether a failure may be retried.
func (c *Client) attempt(ctx context.Context, method, url, family string, req Request) ([]byte, bool, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, false, err
		}
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, false, err
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		metrics.RecordUpstreamRequest(family, "transport_error", time.Since(start))
		return nil, ctx.Err() == nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		metrics.RecordUpstreamRequest(family, "read_error", time.Since(start))
		return nil, ctx.Err() == nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		serr := &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
		metrics.RecordUpstreamRequest(family, fmt.Sprintf("status_%d", resp.StatusCode), time.Since(start))
		return nil, serr.Retryable(), serr
	}
	if !gjson.ValidBytes(data) {
		metrics.RecordUpstreamRequest(family, "invalid_json", time.Since(start))
		return nil, true, fmt.Errorf("%w: %s", ErrUpstream, errInvalidJSONSuffix)
	}
	metrics.RecordUpstreamRequest(family, "ok", time.Since(start))
	return data, false, nil
}

func (c *Client) lookup(ctx context.Context, key, family string) ([]byte, bool) {
	body, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		metrics.RecordCacheError("get")
		c.log.Warn(ctx, "cache read failed, treating as miss", logger.String("key", key), logger.Error(err))
		return nil, false
	}
	metrics.RecordCacheLookup(family, ok)
	return body, ok
}

func (c *Client) store(ctx context.Context, key string, body []byte, ttl time.Duration) {
	if err := c.cache.Set(ctx, key, body, ttl); err != nil {
		metrics.RecordCacheError("set")
		c.log.Warn(ctx, "cache write failed", logger.String("key", key), logger.Error(err))
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var pageSuffix = regexp.MustCompile(`(-\d+)+$`)

// namespaceFamily strips per-page suffixes so metric labels stay bounded:
// wcl-rankings-2512-3 becomes wcl-rankings.
func namespaceFamily(ns string) string {
	if ns == "" {
		return "default"
	}
	return pageSuffix.ReplaceAllString(ns, "")
}

package fetch_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	cache "github.com/okian/tierlist/internal/adapters/cache"
	fetch "github.com/okian/tierlist/internal/adapters/fetch"
	"github.com/okian/tierlist/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
}

type recordedSleeps struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordedSleeps) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return nil
}

// upstream replies with the given statuses in order, then 200 with body.
func upstream(hits *atomic.Int32, body string, statuses ...int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(hits.Add(1)) - 1
		if n < len(statuses) {
			w.WriteHeader(statuses[n])
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
}

func TestCacheKey(t *testing.T) {
	Convey("Cache keys are namespaced content hashes", t, func() {
		a := fetch.CacheKey("raiderio", "GET", "https://raider.io/x", nil)
		So(a, ShouldStartWith, "cache:raiderio:")
		So(len(a), ShouldEqual, len("cache:raiderio:")+64)
		So(fetch.CacheKey("raiderio", "GET", "https://raider.io/x", nil), ShouldEqual, a)
		So(fetch.CacheKey("raiderio", "POST", "https://raider.io/x", nil), ShouldNotEqual, a)
		So(fetch.CacheKey("raiderio", "GET", "https://raider.io/x", []byte("{}")), ShouldNotEqual, a)
		So(fetch.CacheKey("wcl-zone", "GET", "https://raider.io/x", nil), ShouldNotEqual, a)
	})
}

func TestFetchJSON(t *testing.T) {
	ctx := context.Background()

	Convey("Given a client with an in-memory cache and recorded sleeps", t, func() {
		store := cache.NewMemoryStore()
		sleeps := &recordedSleeps{}
		client := fetch.New(store,
			fetch.WithSleeper(sleeps.sleep),
			fetch.WithJitter(func() time.Duration { return 0 }),
			fetch.WithPolicy(fetch.Policy{CacheTTL: time.Minute, RetryCount: 4, RetryBaseDelay: 500 * time.Millisecond}),
		)
		var hits atomic.Int32

		Convey("When the upstream succeeds", func() {
			srv := upstream(&hits, `{"runs":[]}`)
			defer srv.Close()

			body, err := client.FetchJSON(ctx, srv.URL, fetch.Request{Namespace: "raiderio"})

			Convey("Then the body is returned and cached", func() {
				So(err, ShouldBeNil)
				So(string(body), ShouldEqual, `{"runs":[]}`)
				cached, ok, _ := store.Get(ctx, fetch.CacheKey("raiderio", "GET", srv.URL, nil))
				So(ok, ShouldBeTrue)
				So(string(cached), ShouldEqual, `{"runs":[]}`)
			})

			Convey("And a second call is served from cache", func() {
				again, err := client.FetchJSON(ctx, srv.URL, fetch.Request{Namespace: "raiderio"})
				So(err, ShouldBeNil)
				So(string(again), ShouldEqual, `{"runs":[]}`)
				So(hits.Load(), ShouldEqual, 1)
			})
		})

		Convey("When the upstream returns 503 then 429 before succeeding", func() {
			srv := upstream(&hits, `{"ok":true}`, http.StatusServiceUnavailable, http.StatusTooManyRequests)
			defer srv.Close()

			body, err := client.FetchJSON(ctx, srv.URL, fetch.Request{Namespace: "wcl-zone"})

			Convey("Then it retries with exponential backoff", func() {
				So(err, ShouldBeNil)
				So(string(body), ShouldEqual, `{"ok":true}`)
				So(hits.Load(), ShouldEqual, 3)
				So(sleeps.delays, ShouldResemble, []time.Duration{500 * time.Millisecond, time.Second})
			})
		})

		Convey("When the upstream returns a non-retryable status", func() {
			srv := upstream(&hits, `{}`, http.StatusNotFound)
			defer srv.Close()

			_, err := client.FetchJSON(ctx, srv.URL, fetch.Request{})

			Convey("Then it fails immediately with the status", func() {
				var serr *fetch.StatusError
				So(errors.As(err, &serr), ShouldBeTrue)
				So(serr.StatusCode, ShouldEqual, http.StatusNotFound)
				So(errors.Is(err, fetch.ErrUpstream), ShouldBeTrue)
				So(errors.Is(err, fetch.ErrRetriesExhausted), ShouldBeFalse)
				So(err.Error(), ShouldContainSubstring, "404")
				So(hits.Load(), ShouldEqual, 1)
				So(sleeps.delays, ShouldBeEmpty)
			})
		})

		Convey("When every attempt fails", func() {
			srv := upstream(&hits, `{}`, 500, 500, 500, 500, 500, 500)
			defer srv.Close()

			_, err := client.FetchJSON(ctx, srv.URL, fetch.Request{Namespace: "wcl-rankings-1-1"})

			Convey("Then retries are exhausted with the last error", func() {
				So(errors.Is(err, fetch.ErrRetriesExhausted), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "failed request for "+srv.URL)
				So(err.Error(), ShouldContainSubstring, "500")
				So(hits.Load(), ShouldEqual, 5)
				So(sleeps.delays, ShouldHaveLength, 4)
				So(sleeps.delays[3], ShouldEqual, 4*time.Second)
			})

			Convey("And nothing is cached", func() {
				So(store.Len(), ShouldEqual, 0)
			})
		})

		Convey("When the request overrides the policy", func() {
			srv := upstream(&hits, `{}`, 502, 502)
			defer srv.Close()

			policy := fetch.Policy{RetryCount: 0, RetryBaseDelay: time.Millisecond}
			_, err := client.FetchJSON(ctx, srv.URL, fetch.Request{Policy: &policy})

			Convey("Then its retry count is used", func() {
				So(errors.Is(err, fetch.ErrRetriesExhausted), ShouldBeTrue)
				So(hits.Load(), ShouldEqual, 1)
			})
		})

		Convey("When the policy has no cache TTL", func() {
			srv := upstream(&hits, `{"runs":[]}`)
			defer srv.Close()

			policy := fetch.Policy{CacheTTL: 0, RetryCount: 1, RetryBaseDelay: time.Millisecond}
			req := fetch.Request{Namespace: "raiderio", Policy: &policy}
			_, err := client.FetchJSON(ctx, srv.URL, req)
			So(err, ShouldBeNil)
			_, err = client.FetchJSON(ctx, srv.URL, req)
			So(err, ShouldBeNil)

			Convey("Then nothing is cached and every call reaches the upstream", func() {
				So(store.Len(), ShouldEqual, 0)
				So(hits.Load(), ShouldEqual, 2)
			})
		})

		Convey("When the upstream returns invalid JSON", func() {
			srv := upstream(&hits, `<html>`)
			defer srv.Close()

			policy := fetch.Policy{RetryCount: 1, RetryBaseDelay: time.Millisecond}
			_, err := client.FetchJSON(ctx, srv.URL, fetch.Request{Policy: &policy})

			Convey("Then it is treated as a transient failure", func() {
				So(errors.Is(err, fetch.ErrRetriesExhausted), ShouldBeTrue)
				So(hits.Load(), ShouldEqual, 2)
			})
		})

		Convey("When posting a body with headers", func() {
			var gotAuth, gotBody, gotMethod string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				b, _ := io.ReadAll(r.Body)
				gotAuth, gotBody, gotMethod = r.Header.Get("Authorization"), string(b), r.Method
				_, _ = io.WriteString(w, `{"access_token":"t"}`)
			}))
			defer srv.Close()

			_, err := client.FetchJSON(ctx, srv.URL, fetch.Request{
				Method:    http.MethodPost,
				Headers:   map[string]string{"Authorization": "Basic abc"},
				Body:      []byte("grant_type=client_credentials"),
				Namespace: "wcl-oauth",
			})

			Convey("Then they reach the upstream", func() {
				So(err, ShouldBeNil)
				So(gotMethod, ShouldEqual, http.MethodPost)
				So(gotAuth, ShouldEqual, "Basic abc")
				So(gotBody, ShouldEqual, "grant_type=client_credentials")
			})
		})
	})

	Convey("Given a cancelled context during backoff", t, func() {
		var hits atomic.Int32
		srv := upstream(&hits, `{}`, 503, 503, 503)
		defer srv.Close()

		cctx, cancel := context.WithCancel(ctx)
		client := fetch.New(cache.NewMemoryStore(), fetch.WithSleeper(func(c context.Context, _ time.Duration) error {
			cancel()
			return c.Err()
		}))

		_, err := client.FetchJSON(cctx, srv.URL, fetch.Request{})

		Convey("Then the fetch stops with the context error", func() {
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
			So(hits.Load(), ShouldEqual, 1)
		})
	})

	Convey("Given a failing cache store", t, func() {
		var hits atomic.Int32
		srv := upstream(&hits, `{"a":1}`)
		defer srv.Close()

		store := cache.NewMemoryStore()
		So(store.Close(), ShouldBeNil)
		client := fetch.New(store)

		body, err := client.FetchJSON(ctx, srv.URL, fetch.Request{})

		Convey("Then the request still succeeds", func() {
			So(err, ShouldBeNil)
			So(strings.TrimSpace(string(body)), ShouldEqual, `{"a":1}`)
		})
	})

	Convey("Given a rate-limited client", t, func() {
		var hits atomic.Int32
		srv := upstream(&hits, `{}`)
		defer srv.Close()

		client := fetch.New(cache.NewMemoryStore(), fetch.WithRateLimit(1000, 1))
		for i := 0; i < 3; i++ {
			_, err := client.FetchJSON(ctx, srv.URL+"?page="+string(rune('0'+i)), fetch.Request{})
			So(err, ShouldBeNil)
		}
		So(hits.Load(), ShouldEqual, 3)
	})
}

package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	cache "github.com/okian/tierlist/internal/adapters/cache"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()

	Convey("Given a memory store with a controllable clock", t, func() {
		now := time.Unix(1_700_000_000, 0)
		s := cache.NewMemoryStore(cache.WithClock(func() time.Time { return now }))

		Convey("A missing key is a miss", func() {
			v, ok, err := s.Get(ctx, "cache:raiderio:abc")
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)
			So(v, ShouldBeNil)
		})

		Convey("A stored key is returned until it expires", func() {
			So(s.Set(ctx, "k", []byte(`{"a":1}`), 10*time.Second), ShouldBeNil)

			v, ok, err := s.Get(ctx, "k")
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(string(v), ShouldEqual, `{"a":1}`)

			now = now.Add(10 * time.Second)
			_, ok, err = s.Get(ctx, "k")
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)
			So(s.Len(), ShouldEqual, 0)
		})

		Convey("A zero TTL never expires", func() {
			So(s.Set(ctx, "k", []byte("1"), 0), ShouldBeNil)
			now = now.Add(24 * time.Hour)
			_, ok, _ := s.Get(ctx, "k")
			So(ok, ShouldBeTrue)
		})

		Convey("Stored values are copied", func() {
			buf := []byte("abc")
			So(s.Set(ctx, "k", buf, time.Minute), ShouldBeNil)
			buf[0] = 'z'
			v, _, _ := s.Get(ctx, "k")
			So(string(v), ShouldEqual, "abc")
		})

		Convey("A closed store rejects calls", func() {
			So(s.Close(), ShouldBeNil)
			_, _, err := s.Get(ctx, "k")
			So(errors.Is(err, cache.ErrClosed), ShouldBeTrue)
			So(errors.Is(s.Set(ctx, "k", nil, 0), cache.ErrClosed), ShouldBeTrue)
		})
	})
}

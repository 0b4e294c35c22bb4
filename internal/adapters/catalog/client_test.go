package catalog_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"github.com/okian/movierank/internal/adapters/catalog"
	"github.com/okian/movierank/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func TestSearch(t *testing.T) {
	ctx := context.Background()

	convey.Convey("Given a catalog server", t, func() {
		var lastQuery atomic.Value
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lastQuery.Store(r.URL.RawQuery)
			w.Header().Set("Content-Type", "application/json")
			switch r.URL.Query().Get("s") {
			case "matrix":
				_, _ = w.Write([]byte(`{"Search":[{"Title":"The Matrix","Year":"1999","imdbID":"tt0133093","Type":"movie","Poster":"N/A"}],"totalResults":"1","Response":"True"}`))
			case "zzz":
				_, _ = w.Write([]byte(`{"Response":"False","Error":"Movie not found!"}`))
			default:
				_, _ = w.Write([]byte(`{"Response":"False","Error":"Invalid API key!"}`))
			}
		}))
		defer srv.Close()

		client := catalog.New(srv.URL, "k1", catalog.WithRateLimit(1000))

		convey.Convey("When searching a known title", func() {
			got, err := client.Search(ctx, " matrix ")

			convey.Convey("Then hits should be decoded and the key forwarded", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(len(got), convey.ShouldEqual, 1)
				convey.So(got[0].IMDbID, convey.ShouldEqual, "tt0133093")
				convey.So(lastQuery.Load().(string), convey.ShouldContainSubstring, "apikey=k1")
			})
		})

		convey.Convey("When nothing matches", func() {
			got, err := client.Search(ctx, "zzz")
			convey.So(err, convey.ShouldBeNil)
			convey.So(got, convey.ShouldBeEmpty)
		})

		convey.Convey("When the catalog rejects the request", func() {
			_, err := client.Search(ctx, "other")
			convey.So(errors.Is(err, catalog.ErrUpstream), convey.ShouldBeTrue)
		})

		convey.Convey("When the title is blank", func() {
			_, err := client.Search(ctx, "  ")
			convey.So(errors.Is(err, catalog.ErrEmptyTitle), convey.ShouldBeTrue)
		})
	})

	convey.Convey("Given a failing catalog server", t, func() {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		client := catalog.New(srv.URL, "", catalog.WithRateLimit(1000))

		convey.Convey("When failures keep coming", func() {
			for i := 0; i < 5; i++ {
				_, err := client.Search(ctx, "matrix")
				convey.So(errors.Is(err, catalog.ErrUnavailable), convey.ShouldBeTrue)
			}
			_, err := client.Search(ctx, "matrix")

			convey.Convey("Then the breaker should open and stop calling upstream", func() {
				convey.So(errors.Is(err, catalog.ErrUnavailable), convey.ShouldBeTrue)
				convey.So(calls.Load(), convey.ShouldEqual, 5)
			})
		})
	})
}

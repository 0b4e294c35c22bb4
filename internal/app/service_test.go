package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/movierank/internal/adapters/catalog"
	repository "github.com/okian/movierank/internal/adapters/repository"
	service "github.com/okian/movierank/internal/app"
	"github.com/okian/movierank/internal/auth"
	"github.com/okian/movierank/internal/domain/model"
	"github.com/okian/movierank/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func newService(opts ...service.Option) (*service.Service, *repository.MemoryStore) {
	store := repository.NewMemoryStore()
	tokens, err := auth.NewTokenManager("test-secret", time.Hour)
	if err != nil {
		panic(err)
	}
	opts = append([]service.Option{service.WithBcryptCost(4)}, opts...)
	return service.New(store, tokens, opts...), store
}

func register(ctx context.Context, svc *service.Service, email string) string {
	res, err := svc.Register(ctx, "Ann", email, "secret1")
	if err != nil {
		panic(err)
	}
	claims, err := svc.Authenticate(ctx, res.AccessToken)
	if err != nil {
		panic(err)
	}
	return claims.UserID
}

type failingRanker struct {
	service.Ranker
}

func (failingRanker) AssignInitialRank(context.Context, string, string) (model.RankEntry, error) {
	return model.RankEntry{}, errors.New("store down")
}

type stubCatalog struct {
	results []catalog.Result
	err     error
}

func (s stubCatalog) Search(context.Context, string) ([]catalog.Result, error) {
	return s.results, s.err
}

func TestService_Auth(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new service", t, func() {
		svc, _ := newService()

		Convey("When registering a user", func() {
			res, err := svc.Register(ctx, "Ann", "ann@example.com", "secret1")

			Convey("Then a token and profile should be returned", func() {
				So(err, ShouldBeNil)
				So(res.AccessToken, ShouldNotBeEmpty)
				So(res.User, ShouldResemble, model.Profile{Name: "Ann", Email: "ann@example.com"})
			})

			Convey("And registering the same email again should fail", func() {
				_, err := svc.Register(ctx, "Ann", "ann@example.com", "secret1")
				So(errors.Is(err, service.ErrBadRequest), ShouldBeTrue)
				So(service.MessageOf(err, ""), ShouldEqual, "User already exist")
			})

			Convey("And logging in with the right password should succeed", func() {
				res, err := svc.Login(ctx, "ann@example.com", "secret1")
				So(err, ShouldBeNil)
				So(res.User.Name, ShouldEqual, "Ann")
			})

			Convey("And a wrong password should be invalid credentials", func() {
				_, err := svc.Login(ctx, "ann@example.com", "nope")
				So(errors.Is(err, service.ErrBadRequest), ShouldBeTrue)
				So(service.MessageOf(err, ""), ShouldEqual, "Invalid credentials")
			})
		})

		Convey("When logging in with an unknown email", func() {
			_, err := svc.Login(ctx, "ghost@example.com", "secret1")
			So(service.MessageOf(err, ""), ShouldEqual, "Invalid credentials")
		})

		Convey("When the password is too short", func() {
			_, err := svc.Register(ctx, "Ann", "ann@example.com", "abc")
			So(errors.Is(err, service.ErrBadRequest), ShouldBeTrue)
		})

		Convey("When authenticating a bad token", func() {
			_, err := svc.Authenticate(ctx, "garbage")
			So(errors.Is(err, service.ErrUnauthenticated), ShouldBeTrue)
		})
	})
}

func TestService_Movies(t *testing.T) {
	ctx := context.Background()

	Convey("Given two registered users", t, func() {
		svc, store := newService()
		ann := register(ctx, svc, "ann@example.com")
		bob := register(ctx, svc, "bob@example.com")

		Convey("When Ann creates a movie", func() {
			m, err := svc.CreateMovie(ctx, ann, service.MovieInput{Title: "Heat"})
			So(err, ShouldBeNil)

			Convey("Then it should be listed unranked", func() {
				u, _ := store.GetUser(ctx, ann)
				So(len(u.Movies), ShouldEqual, 1)
				So(u.Movies[0].MovieID, ShouldEqual, m.ID)
				So(u.Movies[0].Rank.IsRanked(), ShouldBeFalse)

				list, _ := svc.ListMovies(ctx, ann)
				So(len(list), ShouldEqual, 1)
			})

			Convey("Then the same title should be rejected", func() {
				_, err := svc.CreateMovie(ctx, ann, service.MovieInput{Title: "Heat"})
				So(errors.Is(err, service.ErrBadRequest), ShouldBeTrue)
				So(service.MessageOf(err, ""), ShouldEqual, "You already added the movie titled Heat")
			})

			Convey("Then Bob should not be able to touch it", func() {
				_, err := svc.GetMovie(ctx, bob, m.ID)
				So(errors.Is(err, service.ErrUnauthorized), ShouldBeTrue)
				So(service.MessageOf(err, ""), ShouldEqual, "You are not authorized to view this movie")

				title := "Stolen"
				_, err = svc.UpdateMovie(ctx, bob, m.ID, model.MoviePatch{Title: &title})
				So(service.MessageOf(err, ""), ShouldEqual, "You are not authorized to update this movie")

				err = svc.DeleteMovie(ctx, bob, m.ID)
				So(service.MessageOf(err, ""), ShouldEqual, "You are not authorized to delete this movie")
			})

			Convey("Then Ann can update it", func() {
				overview := "LA crime"
				updated, err := svc.UpdateMovie(ctx, ann, m.ID, model.MoviePatch{Overview: &overview})
				So(err, ShouldBeNil)
				So(updated.Overview, ShouldEqual, "LA crime")
				So(updated.Title, ShouldEqual, "Heat")
			})

			Convey("Then deleting it should drop its rank entry", func() {
				So(svc.RankMovie(ctx, ann, m.ID, 1), ShouldBeNil)
				So(svc.DeleteMovie(ctx, ann, m.ID), ShouldBeNil)

				u, _ := store.GetUser(ctx, ann)
				So(u.Movies, ShouldBeEmpty)
				top, err := svc.TopMovies(ctx, ann, 0)
				So(err, ShouldBeNil)
				So(top, ShouldBeEmpty)

				_, err = svc.GetMovie(ctx, ann, m.ID)
				So(errors.Is(err, service.ErrNotFound), ShouldBeTrue)
				So(service.MessageOf(err, ""), ShouldEqual, "Movie not found")
			})
		})

		Convey("When an unknown movie is fetched", func() {
			_, err := svc.GetMovie(ctx, ann, "missing")
			So(errors.Is(err, service.ErrNotFound), ShouldBeTrue)
		})
	})

	Convey("Given a ranker that cannot write", t, func() {
		svc, store := newService(service.WithRanker(failingRanker{}))
		ann := register(ctx, svc, "ann@example.com")

		Convey("When creating a movie", func() {
			_, err := svc.CreateMovie(ctx, ann, service.MovieInput{Title: "Heat"})

			Convey("Then the movie should be rolled back", func() {
				So(err, ShouldNotBeNil)
				n, _ := store.CountMovies(ctx)
				So(n, ShouldEqual, 0)
			})
		})
	})
}

func TestService_Ranking(t *testing.T) {
	ctx := context.Background()

	Convey("Given a user with movies A, B and C", t, func() {
		svc, _ := newService(service.WithTopLimits(2, 3))
		ann := register(ctx, svc, "ann@example.com")
		ids := map[string]string{}
		for _, title := range []string{"A", "B", "C"} {
			m, err := svc.CreateMovie(ctx, ann, service.MovieInput{Title: title})
			So(err, ShouldBeNil)
			ids[title] = m.ID
		}
		So(svc.RankMovie(ctx, ann, ids["B"], 3), ShouldBeNil)
		So(svc.RankMovie(ctx, ann, ids["C"], 1), ShouldBeNil)

		Convey("When the top list is requested without a limit", func() {
			top, err := svc.TopMovies(ctx, ann, 0)

			Convey("Then the default limit should apply", func() {
				So(err, ShouldBeNil)
				So(len(top), ShouldEqual, 2)
				So(top[0].Movie.Title, ShouldEqual, "C")
				So(top[1].Ranking, ShouldEqual, 3)
			})
		})

		Convey("When a taken rank is requested", func() {
			err := svc.RankMovie(ctx, ann, ids["B"], 1)
			So(errors.Is(err, service.ErrConflict), ShouldBeTrue)
			So(service.MessageOf(err, ""), ShouldEqual, "The rank is already assigned to a movie")
		})

		Convey("When an unlisted movie is ranked", func() {
			err := svc.RankMovie(ctx, ann, "movieX", 5)
			So(errors.Is(err, service.ErrNotFound), ShouldBeTrue)
			So(service.MessageOf(err, ""), ShouldEqual, "Movie not found in user's list")
		})

		Convey("When the rank is zero", func() {
			err := svc.RankMovie(ctx, ann, ids["A"], 0)
			So(errors.Is(err, service.ErrBadRequest), ShouldBeTrue)
		})

		Convey("When the user is unknown", func() {
			_, err := svc.TopMovies(ctx, "ghost", 10)
			So(errors.Is(err, service.ErrNotFound), ShouldBeTrue)
			So(service.MessageOf(err, ""), ShouldEqual, "User not found")
		})
	})
}

func TestService_CatalogAndStats(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service without a catalog", t, func() {
		svc, _ := newService()
		_, err := svc.SearchCatalog(ctx, "matrix")
		So(errors.Is(err, service.ErrUnavailable), ShouldBeTrue)

		Convey("Then stats should still report totals", func() {
			register(ctx, svc, "ann@example.com")
			stats := svc.GetStats(ctx)
			So(stats["store"], ShouldEqual, "memory")
			So(stats["users"], ShouldEqual, 1)
			So(stats["movies"], ShouldEqual, 0)
		})
	})

	Convey("Given a catalog stub", t, func() {
		hits := []catalog.Result{{Title: "The Matrix", IMDbID: "tt0133093"}}

		Convey("Then hits should pass through", func() {
			svc, _ := newService(service.WithCatalog(stubCatalog{results: hits}))
			got, err := svc.SearchCatalog(ctx, "matrix")
			So(err, ShouldBeNil)
			So(got, ShouldResemble, hits)
		})

		Convey("Then an empty title should be a bad request", func() {
			svc, _ := newService(service.WithCatalog(stubCatalog{err: catalog.ErrEmptyTitle}))
			_, err := svc.SearchCatalog(ctx, "")
			So(errors.Is(err, service.ErrBadRequest), ShouldBeTrue)
		})

		Convey("Then an outage should be unavailable", func() {
			svc, _ := newService(service.WithCatalog(stubCatalog{err: catalog.ErrUnavailable}))
			_, err := svc.SearchCatalog(ctx, "matrix")
			So(errors.Is(err, service.ErrUnavailable), ShouldBeTrue)
		})
	})
}

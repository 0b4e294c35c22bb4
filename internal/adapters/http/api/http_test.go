package api_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/okian/movierank/internal/adapters/catalog"
	"github.com/okian/movierank/internal/adapters/http/api"
	repository "github.com/okian/movierank/internal/adapters/repository"
	service "github.com/okian/movierank/internal/app"
	"github.com/okian/movierank/internal/auth"
	"github.com/okian/movierank/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type mockCatalog struct {
	results []catalog.Result
	err     error
}

func (m *mockCatalog) Search(_ context.Context, _ string) ([]catalog.Result, error) {
	return m.results, m.err
}

type envelope struct {
	Msg     string          `json:"msg"`
	Data    json.RawMessage `json:"data"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
}

type testServer struct {
	handler http.Handler
}

func newTestServer(cat service.CatalogSearcher) *testServer {
	tokens, err := auth.NewTokenManager("test-secret", time.Hour)
	if err != nil {
		panic(err)
	}
	opts := []service.Option{service.WithBcryptCost(4)}
	if cat != nil {
		opts = append(opts, service.WithCatalog(cat))
	}
	svc := service.New(repository.NewMemoryStore(), tokens, opts...)

	mux := http.NewServeMux()
	api.NewServer(svc).Register(mux)
	return &testServer{handler: api.RequestIDMiddleware(mux)}
}

func (s *testServer) do(method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func (s *testServer) register(email string) string {
	_, env := s.do(http.MethodPost, "/auth/register", "", map[string]string{
		"name": "Ann", "email": email, "password": "secret1",
	})
	var res struct {
		AccessToken string `json:"accessToken"`
	}
	_ = json.Unmarshal(env.Data, &res)
	return res.AccessToken
}

func (s *testServer) createMovie(token, title string) string {
	_, env := s.do(http.MethodPost, "/movies", token, map[string]any{"title": title, "releaseDate": "1995-12-15"})
	var m struct {
		ID string `json:"_id"`
	}
	_ = json.Unmarshal(env.Data, &m)
	return m.ID
}

func TestAuthRoutes(t *testing.T) {
	Convey("Given an API server", t, func() {
		srv := newTestServer(nil)

		Convey("When registering a user", func() {
			rec, env := srv.do(http.MethodPost, "/auth/register", "", map[string]string{
				"name": "Ann", "email": "ann@example.com", "password": "secret1",
			})

			Convey("Then it should be created with a token", func() {
				So(rec.Code, ShouldEqual, http.StatusCreated)
				So(env.Msg, ShouldEqual, "User successfully SignedUp")
				So(string(env.Data), ShouldContainSubstring, "accessToken")
				So(rec.Header().Get(api.RequestIDHeader), ShouldNotBeEmpty)
			})

			Convey("And a duplicate registration should be rejected", func() {
				rec, env := srv.do(http.MethodPost, "/auth/register", "", map[string]string{
					"name": "Ann", "email": "ann@example.com", "password": "secret1",
				})
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
				So(env.Message, ShouldEqual, "User already exist")
			})

			Convey("And logging in should succeed", func() {
				rec, env := srv.do(http.MethodPost, "/auth/login", "", map[string]string{
					"email": "ann@example.com", "password": "secret1",
				})
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(env.Msg, ShouldEqual, "User loggedIn successfully")
			})
		})

		Convey("When the body fails validation", func() {
			rec, env := srv.do(http.MethodPost, "/auth/register", "", map[string]string{
				"name": "Ann", "email": "not-an-email", "password": "secret1",
			})
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
			So(env.Message, ShouldEqual, "email must be a valid email")
		})

		Convey("When the body is not JSON", func() {
			req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString("{"))
			rec := httptest.NewRecorder()
			srv.handler.ServeHTTP(rec, req)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When a request id is supplied", func() {
			req := httptest.NewRequest(http.MethodGet, "/stats", nil)
			req.Header.Set(api.RequestIDHeader, "req-42")
			rec := httptest.NewRecorder()
			srv.handler.ServeHTTP(rec, req)
			So(rec.Header().Get(api.RequestIDHeader), ShouldEqual, "req-42")
		})
	})
}

func TestMovieRoutes(t *testing.T) {
	Convey("Given a registered user", t, func() {
		srv := newTestServer(nil)
		token := srv.register("ann@example.com")
		So(token, ShouldNotBeEmpty)

		Convey("When no token is sent", func() {
			rec, _ := srv.do(http.MethodGet, "/movies", "", nil)
			So(rec.Code, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("When a forged token is sent", func() {
			rec, _ := srv.do(http.MethodGet, "/movies", "forged", nil)
			So(rec.Code, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("When creating a movie", func() {
			rec, env := srv.do(http.MethodPost, "/movies", token, map[string]any{
				"title": "Heat", "overview": "LA crime", "releaseDate": "1995-12-15",
			})

			Convey("Then it should be created", func() {
				So(rec.Code, ShouldEqual, http.StatusCreated)
				So(env.Msg, ShouldEqual, "Movie created successfully")
				So(string(env.Data), ShouldContainSubstring, `"title":"Heat"`)
			})

			Convey("And the same title should be rejected", func() {
				rec, env := srv.do(http.MethodPost, "/movies", token, map[string]any{"title": "Heat"})
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
				So(env.Message, ShouldEqual, "You already added the movie titled Heat")
			})
		})

		Convey("When another user touches Ann's movie", func() {
			id := srv.createMovie(token, "Heat")
			other := srv.register("bob@example.com")

			rec, env := srv.do(http.MethodGet, "/movies/"+id, other, nil)
			So(rec.Code, ShouldEqual, http.StatusForbidden)
			So(env.Message, ShouldEqual, "You are not authorized to view this movie")

			rec, _ = srv.do(http.MethodDelete, "/movies/"+id, other, nil)
			So(rec.Code, ShouldEqual, http.StatusForbidden)
		})

		Convey("When updating and deleting a movie", func() {
			id := srv.createMovie(token, "Heat")

			rec, env := srv.do(http.MethodPatch, "/movies/"+id, token, map[string]any{"adult": true})
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(string(env.Data), ShouldContainSubstring, `"adult":true`)

			rec, _ = srv.do(http.MethodPatch, "/movies/"+id, token, map[string]any{"releaseDate": "someday"})
			So(rec.Code, ShouldEqual, http.StatusBadRequest)

			rec, env = srv.do(http.MethodDelete, "/movies/"+id, token, nil)
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(env.Msg, ShouldEqual, "Movie deleted successfully")

			rec, env = srv.do(http.MethodGet, "/movies/"+id, token, nil)
			So(rec.Code, ShouldEqual, http.StatusNotFound)
			So(env.Message, ShouldEqual, "Movie not found")
		})
	})
}

func TestRankRoutes(t *testing.T) {
	Convey("Given a user with movies A, B and C", t, func() {
		srv := newTestServer(nil)
		token := srv.register("ann@example.com")
		a := srv.createMovie(token, "A")
		b := srv.createMovie(token, "B")
		c := srv.createMovie(token, "C")

		rec, _ := srv.do(http.MethodPost, "/movies/rank/"+b, token, map[string]int{"rank": 3})
		So(rec.Code, ShouldEqual, http.StatusOK)
		rec, _ = srv.do(http.MethodPost, "/movies/"+c+"/rank", token, map[string]int{"rank": 1})
		So(rec.Code, ShouldEqual, http.StatusOK)

		Convey("When the top list is requested", func() {
			rec, env := srv.do(http.MethodGet, "/movies/top", token, nil)

			Convey("Then C and B should come back in rank order", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var top []struct {
					Ranking int `json:"ranking"`
					Movie   struct {
						Title string `json:"title"`
					} `json:"movie"`
				}
				So(json.Unmarshal(env.Data, &top), ShouldBeNil)
				So(len(top), ShouldEqual, 2)
				So(top[0].Ranking, ShouldEqual, 1)
				So(top[0].Movie.Title, ShouldEqual, "C")
				So(top[1].Movie.Title, ShouldEqual, "B")
			})
		})

		Convey("When the legacy top path and a limit are used", func() {
			rec, env := srv.do(http.MethodGet, "/movies/topMovies?limit=1", token, nil)
			So(rec.Code, ShouldEqual, http.StatusOK)
			var top []map[string]any
			So(json.Unmarshal(env.Data, &top), ShouldBeNil)
			So(len(top), ShouldEqual, 1)
		})

		Convey("When the limit is invalid", func() {
			rec, _ := srv.do(http.MethodGet, "/movies/top?limit=0", token, nil)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When a taken rank is requested", func() {
			rec, env := srv.do(http.MethodPost, "/movies/"+a+"/rank", token, map[string]int{"rank": 1})
			So(rec.Code, ShouldEqual, http.StatusConflict)
			So(env.Message, ShouldEqual, "The rank is already assigned to a movie")
		})

		Convey("When an unlisted movie is ranked", func() {
			rec, env := srv.do(http.MethodPost, "/movies/rank/movieX", token, map[string]int{"rank": 5})
			So(rec.Code, ShouldEqual, http.StatusNotFound)
			So(env.Message, ShouldEqual, "Movie not found in user's list")
		})

		Convey("When the rank is missing or zero", func() {
			rec, _ := srv.do(http.MethodPost, "/movies/rank/"+a, token, map[string]int{})
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
			rec, _ = srv.do(http.MethodPost, "/movies/rank/"+a, token, map[string]int{"rank": 0})
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the path has no rank segment", func() {
			rec, _ := srv.do(http.MethodPost, "/movies/"+a+"/other", token, map[string]int{"rank": 2})
			So(rec.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestCatalogAndOpsRoutes(t *testing.T) {
	Convey("Given a server with a catalog", t, func() {
		cat := &mockCatalog{results: []catalog.Result{{Title: "The Matrix", IMDbID: "tt0133093"}}}
		srv := newTestServer(cat)

		Convey("When searching", func() {
			rec, env := srv.do(http.MethodGet, "/movies/external-api?title=matrix", "", nil)
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(string(env.Data), ShouldContainSubstring, "tt0133093")
		})

		Convey("When the catalog is down", func() {
			cat.err = catalog.ErrUnavailable
			rec, _ := srv.do(http.MethodGet, "/movies/external-api?title=matrix", "", nil)
			So(rec.Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("When reading health and stats", func() {
			rec, _ := srv.do(http.MethodGet, "/healthz", "", nil)
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, "movierank_")

			rec, _ = srv.do(http.MethodGet, "/stats", "", nil)
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, `"store":"memory"`)
		})
	})
}

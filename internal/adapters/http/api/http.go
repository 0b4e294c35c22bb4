// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/go-playground/validator/v10"

	service "github.com/okian/movierank/internal/app"
	"github.com/okian/movierank/pkg/logger"
)

const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	AuthDependencies
	MovieDependencies
	RankDependencies
	CatalogDependencies
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	authHandler    *AuthHandler
	movieHandler   *MovieHandler
	rankHandler    *RankHandler
	catalogHandler *CatalogHandler
	authenticate   func(http.HandlerFunc) http.HandlerFunc
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(deps),
		authHandler:    NewAuthHandler(deps),
		movieHandler:   NewMovieHandler(deps),
		rankHandler:    NewRankHandler(deps),
		catalogHandler: NewCatalogHandler(deps),
		authenticate:   AuthMiddleware(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	auth := s.authenticate

	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("POST /auth/register", MetricsMiddleware(s.authHandler.HandleRegister, "auth_register"))
	mux.HandleFunc("POST /auth/login", MetricsMiddleware(s.authHandler.HandleLogin, "auth_login"))

	mux.HandleFunc("GET /movies/external-api", MetricsMiddleware(s.catalogHandler.HandleSearch, "movies_external"))
	mux.HandleFunc("GET /movies/top", MetricsMiddleware(auth(s.rankHandler.HandleTop), "movies_top"))
	mux.HandleFunc("GET /movies/topMovies", MetricsMiddleware(auth(s.rankHandler.HandleTop), "movies_top"))
	mux.HandleFunc("POST /movies/{first}/{second}", MetricsMiddleware(auth(s.rankHandler.HandleRank), "movies_rank"))

	mux.HandleFunc("GET /movies", MetricsMiddleware(auth(s.movieHandler.HandleList), "movies_list"))
	mux.HandleFunc("POST /movies", MetricsMiddleware(auth(s.movieHandler.HandleCreate), "movies_create"))
	mux.HandleFunc("GET /movies/{id}", MetricsMiddleware(auth(s.movieHandler.HandleGet), "movies_get"))
	mux.HandleFunc("PATCH /movies/{id}", MetricsMiddleware(auth(s.movieHandler.HandleUpdate), "movies_update"))
	mux.HandleFunc("DELETE /movies/{id}", MetricsMiddleware(auth(s.movieHandler.HandleDelete), "movies_delete"))
}

// envelope is the success response shape.
type envelope struct {
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, msg string, data any) {
	writeJSON(w, status, envelope{Msg: msg, Data: data})
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError maps a service error kind to its HTTP status.
// Unclassified errors are logged and reported as 500 without detail.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Get().Error(ctx, "request failed", logger.Error(err))
	}
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: service.MessageOf(err, "Something went wrong, try again later"),
	})
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusForbidden, "unauthorized"
	case errors.Is(err, service.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, service.ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, service.ErrIntegrity):
		return http.StatusInternalServerError, "integrity_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeBody reads a JSON body into dst and validates it.
func decodeBody(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return badRequest("unreadable body")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return badRequest("invalid JSON body")
	}
	if err := validate.Struct(dst); err != nil {
		return badRequest(validationMessage(err))
	}
	return nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

// parseDate accepts RFC 3339 timestamps and plain dates.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, badRequest("releaseDate must be YYYY-MM-DD or RFC 3339")
	}
	return t, nil
}

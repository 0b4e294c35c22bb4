// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/okian/movierank/internal/adapters/catalog"
	repository "github.com/okian/movierank/internal/adapters/repository"
	"github.com/okian/movierank/internal/auth"
	"github.com/okian/movierank/internal/domain/model"
	"github.com/okian/movierank/internal/domain/ranking"
	"github.com/okian/movierank/pkg/logger"
	"github.com/okian/movierank/pkg/metrics"
)

const minPasswordLength = 6

// Ranker maintains per-user rankings.
type Ranker interface {
	AssignInitialRank(ctx context.Context, userID, movieID string) (model.RankEntry, error)
	ReRank(ctx context.Context, userID, movieID string, rank int) error
	RemoveEntry(ctx context.Context, userID, movieID string) error
	TopRanked(ctx context.Context, userID string, limit int) ([]model.TopEntry, error)
}

// CatalogSearcher looks titles up in the external catalog.
type CatalogSearcher interface {
	Search(ctx context.Context, title string) ([]catalog.Result, error)
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	AccessToken string        `json:"accessToken"`
	User        model.Profile `json:"user"`
}

// MovieInput carries the fields of a new movie.
type MovieInput struct {
	Title       string
	Overview    string
	ReleaseDate time.Time
	Adult       bool
}

// Service implements the API dependencies for the movie ranking system.
type Service struct {
	store   repository.Store
	tokens  *auth.TokenManager
	ranker  Ranker
	catalog CatalogSearcher

	bcryptCost           int
	topLimit             int
	maxTopLimit          int
	rankAttempts         int
	hydrationConcurrency int
	started              time.Time

	logger logger.Logger
}

// New constructs a Service over store, issuing tokens with tokens.
func New(store repository.Store, tokens *auth.TokenManager, opts ...Option) *Service {
	s := &Service{
		store:                store,
		tokens:               tokens,
		bcryptCost:           10,
		topLimit:             100,
		maxTopLimit:          100,
		rankAttempts:         3,
		hydrationConcurrency: 16,
		started:              time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Named("service")
	}
	if s.ranker == nil {
		s.ranker = ranking.NewEngine(store, store,
			ranking.WithMaxAttempts(s.rankAttempts),
			ranking.WithHydrationConcurrency(s.hydrationConcurrency),
			ranking.WithLogger(logger.Named("ranking")),
		)
	}
	return s
}

// Register creates an account and returns an access token for it.
func (s *Service) Register(ctx context.Context, name, email, password string) (*AuthResult, error) {
	email = strings.TrimSpace(email)
	if name == "" || email == "" {
		return nil, newError(ErrBadRequest, "Please provide name, email and password", nil)
	}
	if len(password) < minPasswordLength {
		return nil, newError(ErrBadRequest, fmt.Sprintf("Password must be at least %d characters", minPasswordLength), nil)
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	u, err := s.store.CreateUser(ctx, &model.User{Name: name, Email: email, PasswordHash: hash})
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, newError(ErrBadRequest, "User already exist", err)
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info(ctx, "user registered", logger.String("user_id", u.ID))
	return s.authResult(u)
}

// Login verifies credentials and returns a fresh access token.
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	u, err := s.store.FindUserByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, newError(ErrBadRequest, "Invalid credentials", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if err := auth.CheckPassword(u.PasswordHash, password); err != nil {
		return nil, newError(ErrBadRequest, "Invalid credentials", nil)
	}
	return s.authResult(u)
}

func (s *Service) authResult(u *model.User) (*AuthResult, error) {
	token, err := s.tokens.Issue(u.ID, u.Name)
	if err != nil {
		return nil, err
	}
	return &AuthResult{AccessToken: token, User: u.Profile()}, nil
}

// Authenticate resolves a bearer token to its claims.
func (s *Service) Authenticate(_ context.Context, token string) (*auth.Claims, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, newError(ErrUnauthenticated, "Authentication invalid", err)
	}
	return claims, nil
}

// CreateMovie stores a movie for userID and lists it unranked. The movie is
// removed again if the rank entry cannot be written.
func (s *Service) CreateMovie(ctx context.Context, userID string, in MovieInput) (*model.Movie, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, newError(ErrBadRequest, "Please provide a title", nil)
	}
	if _, err := s.store.FindMovieByTitle(ctx, userID, in.Title); err == nil {
		return nil, duplicateTitle(in.Title, nil)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("find movie: %w", err)
	}

	m, err := s.store.CreateMovie(ctx, &model.Movie{
		Title:       in.Title,
		Overview:    in.Overview,
		ReleaseDate: in.ReleaseDate,
		Adult:       in.Adult,
		CreatedBy:   userID,
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, duplicateTitle(in.Title, err)
	}
	if err != nil {
		return nil, fmt.Errorf("create movie: %w", err)
	}

	if _, err := s.ranker.AssignInitialRank(ctx, userID, m.ID); err != nil {
		if derr := s.store.DeleteMovie(ctx, m.ID); derr != nil {
			s.logger.Error(ctx, "failed to roll back movie after rank assignment failure",
				logger.String("movie_id", m.ID), logger.Error(derr))
		}
		return nil, rankError(err)
	}

	metrics.RecordMovieCreated()
	s.logger.Debug(ctx, "movie created",
		logger.String("user_id", userID), logger.String("movie_id", m.ID))
	return m, nil
}

func duplicateTitle(title string, cause error) error {
	return newError(ErrBadRequest, fmt.Sprintf("You already added the movie titled %s", title), cause)
}

// ListMovies returns every movie userID created.
func (s *Service) ListMovies(ctx context.Context, userID string) ([]model.Movie, error) {
	movies, err := s.store.ListMovies(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list movies: %w", err)
	}
	return movies, nil
}

// GetMovie returns one of userID's movies.
func (s *Service) GetMovie(ctx context.Context, userID, movieID string) (*model.Movie, error) {
	return s.ownedMovie(ctx, userID, movieID, "view")
}

// UpdateMovie applies patch to one of userID's movies.
func (s *Service) UpdateMovie(ctx context.Context, userID, movieID string, patch model.MoviePatch) (*model.Movie, error) {
	m, err := s.ownedMovie(ctx, userID, movieID, "update")
	if err != nil {
		return nil, err
	}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, newError(ErrBadRequest, "Please provide a title", nil)
		}
		patch.Title = &title
	}

	next := patch.Apply(*m)
	updated, err := s.store.UpdateMovie(ctx, &next)
	switch {
	case errors.Is(err, repository.ErrDuplicate):
		return nil, duplicateTitle(next.Title, err)
	case errors.Is(err, repository.ErrNotFound):
		return nil, newError(ErrNotFound, "Movie not found", err)
	case err != nil:
		return nil, fmt.Errorf("update movie: %w", err)
	}
	return updated, nil
}

// DeleteMovie removes one of userID's movies together with its rank entry.
func (s *Service) DeleteMovie(ctx context.Context, userID, movieID string) error {
	if _, err := s.ownedMovie(ctx, userID, movieID, "delete"); err != nil {
		return err
	}
	if err := s.ranker.RemoveEntry(ctx, userID, movieID); err != nil {
		return rankError(err)
	}
	err := s.store.DeleteMovie(ctx, movieID)
	if errors.Is(err, repository.ErrNotFound) {
		return newError(ErrNotFound, "Movie not found", err)
	}
	if err != nil {
		return fmt.Errorf("delete movie: %w", err)
	}
	metrics.RecordMovieDeleted()
	return nil
}

func (s *Service) ownedMovie(ctx context.Context, userID, movieID, verb string) (*model.Movie, error) {
	m, err := s.store.GetMovie(ctx, movieID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, newError(ErrNotFound, "Movie not found", err)
	}
	if err != nil {
		return nil, fmt.Errorf("get movie: %w", err)
	}
	if m.CreatedBy != userID {
		return nil, newError(ErrUnauthorized, fmt.Sprintf("You are not authorized to %s this movie", verb), nil)
	}
	return m, nil
}

// RankMovie gives movieID the rank in userID's list.
func (s *Service) RankMovie(ctx context.Context, userID, movieID string, rank int) error {
	return rankError(s.ranker.ReRank(ctx, userID, movieID, rank))
}

// TopMovies returns userID's ranked movies. limit <= 0 selects the default
// and larger values are capped.
func (s *Service) TopMovies(ctx context.Context, userID string, limit int) ([]model.TopEntry, error) {
	if limit <= 0 {
		limit = s.topLimit
	}
	if limit > s.maxTopLimit {
		limit = s.maxTopLimit
	}
	top, err := s.ranker.TopRanked(ctx, userID, limit)
	if err != nil {
		return nil, rankError(err)
	}
	return top, nil
}

// SearchCatalog queries the external catalog by title.
func (s *Service) SearchCatalog(ctx context.Context, title string) ([]catalog.Result, error) {
	if s.catalog == nil {
		return nil, newError(ErrUnavailable, "Movie catalog is not configured", nil)
	}
	results, err := s.catalog.Search(ctx, title)
	switch {
	case err == nil:
		return results, nil
	case errors.Is(err, catalog.ErrEmptyTitle):
		return nil, newError(ErrBadRequest, "Please provide a title", err)
	case errors.Is(err, catalog.ErrUpstream):
		return nil, newError(ErrUnavailable, "Movie catalog rejected the request", err)
	default:
		return nil, newError(ErrUnavailable, "Movie catalog is unavailable", err)
	}
}

// rankError classifies ranking failures. Unknown errors pass through.
func rankError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ranking.ErrUserNotFound):
		return newError(ErrNotFound, "User not found", err)
	case errors.Is(err, ranking.ErrEntryNotFound):
		return newError(ErrNotFound, "Movie not found in user's list", err)
	case errors.Is(err, ranking.ErrRankTaken):
		return newError(ErrConflict, "The rank is already assigned to a movie", err)
	case errors.Is(err, ranking.ErrConcurrentUpdate):
		return newError(ErrConflict, "The list was changed concurrently, please retry", err)
	case errors.Is(err, ranking.ErrInvalidRank):
		return newError(ErrBadRequest, "Rank must be a positive integer", err)
	case errors.Is(err, ranking.ErrInvalidLimit):
		return newError(ErrBadRequest, "Limit must be a positive integer", err)
	case errors.Is(err, ranking.ErrIntegrity):
		return newError(ErrIntegrity, "The ranked list is inconsistent", err)
	default:
		return err
	}
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	stats := map[string]any{
		"store":       s.store.Backend(),
		"uptimeSec":   int64(time.Since(s.started).Seconds()),
		"goroutines":  runtime.NumGoroutine(),
		"topLimit":    s.topLimit,
		"maxTopLimit": s.maxTopLimit,
		"catalog":     s.catalog != nil,
	}

	users, uerr := s.store.CountUsers(ctx)
	movies, merr := s.store.CountMovies(ctx)
	if err := errors.Join(uerr, merr); err != nil {
		s.logger.Warn(ctx, "failed to count records", logger.Error(err))
		return stats
	}
	stats["users"] = users
	stats["movies"] = movies
	metrics.UpdateTotals(users, movies)
	return stats
}

// Close releases the store.
func (s *Service) Close(ctx context.Context) error {
	return s.store.Close(ctx)
}

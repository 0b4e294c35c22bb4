package ranking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/movierank/internal/adapters/repository"
	"github.com/okian/movierank/internal/domain/model"
	"github.com/okian/movierank/pkg/logger"
	"github.com/okian/movierank/pkg/metrics"
)

const (
	defaultMaxAttempts = 3
	defaultHydration   = 16

	opAssign = "assign"
	opReRank = "rerank"
	opRemove = "remove"
	opTop    = "top"
)

// Users is the part of the user store the engine reads and writes.
type Users interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
	SaveMovies(ctx context.Context, userID string, expectedVersion int64, entries []model.RankEntry) (int64, error)
}

// Movies resolves movie references during hydration.
type Movies interface {
	GetMovie(ctx context.Context, id string) (*model.Movie, error)
}

// Engine applies ranking operations. Every mutation loads a snapshot,
// computes the next collection and writes it back only if the stored
// version is unchanged. Mutations for one user are serialized in-process.
type Engine struct {
	users  Users
	movies Movies
	locks  *keyLock

	maxAttempts int
	hydration   int
	log         logger.Logger
}

// NewEngine constructs an Engine over the given stores.
func NewEngine(users Users, movies Movies, opts ...Option) *Engine {
	e := &Engine{
		users:       users,
		movies:      movies,
		locks:       newKeyLock(),
		maxAttempts: defaultMaxAttempts,
		hydration:   defaultHydration,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logger.Named("ranking")
	}
	return e
}

// mutation computes the next collection from a snapshot. changed=false
// skips the write.
type mutation func(entries []model.RankEntry) (next []model.RankEntry, changed bool, err error)

func (e *Engine) mutate(ctx context.Context, op, userID string, fn mutation) error {
	unlock := e.locks.Lock(userID)
	defer unlock()

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		u, err := e.loadUser(ctx, userID)
		if err != nil {
			return err
		}
		next, changed, err := fn(u.Entries())
		if err != nil || !changed {
			return err
		}

		_, err = e.users.SaveMovies(ctx, userID, u.Version, next)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, repository.ErrNotFound):
			return ErrUserNotFound
		case !errors.Is(err, repository.ErrVersionConflict):
			return fmt.Errorf("save movies for user %s: %w", userID, err)
		}

		if attempt >= e.maxAttempts {
			e.log.Warn(ctx, "rank update retries exhausted",
				logger.String("operation", op),
				logger.String("user_id", userID),
				logger.Int("attempts", attempt))
			return ErrConcurrentUpdate
		}
		metrics.RecordRankRetry()
		e.log.Debug(ctx, "version moved, retrying",
			logger.String("operation", op),
			logger.String("user_id", userID),
			logger.Int("attempt", attempt))
	}
}

func (e *Engine) loadUser(ctx context.Context, userID string) (*model.User, error) {
	u, err := e.users.GetUser(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", userID, err)
	}
	return u, nil
}

// AssignInitialRank adds movieID to the user's list as unranked. If the
// movie is already listed its entry is returned unchanged.
func (e *Engine) AssignInitialRank(ctx context.Context, userID, movieID string) (model.RankEntry, error) {
	var entry model.RankEntry
	err := e.mutate(ctx, opAssign, userID, func(entries []model.RankEntry) ([]model.RankEntry, bool, error) {
		next, got, changed := assign(entries, movieID)
		entry = got
		return next, changed, nil
	})
	metrics.RecordRankOperation(opAssign, outcome(err))
	if err != nil {
		return model.RankEntry{}, err
	}
	return entry, nil
}

// ReRank gives movieID the rank newRank. Other entries never move.
func (e *Engine) ReRank(ctx context.Context, userID, movieID string, newRank int) error {
	rank, err := model.Ranked(newRank)
	if err != nil {
		metrics.RecordRankOperation(opReRank, outcome(err))
		return err
	}

	err = e.mutate(ctx, opReRank, userID, func(entries []model.RankEntry) ([]model.RankEntry, bool, error) {
		return reRank(entries, movieID, rank)
	})
	if errors.Is(err, ErrRankTaken) {
		metrics.RecordRankConflict()
	}
	metrics.RecordRankOperation(opReRank, outcome(err))
	if err == nil {
		e.log.Debug(ctx, "movie re-ranked",
			logger.String("user_id", userID),
			logger.String("movie_id", movieID),
			logger.Int("rank", newRank))
	}
	return err
}

// RemoveEntry drops movieID from the user's list. Absent movies are a no-op.
func (e *Engine) RemoveEntry(ctx context.Context, userID, movieID string) error {
	err := e.mutate(ctx, opRemove, userID, func(entries []model.RankEntry) ([]model.RankEntry, bool, error) {
		next, changed := remove(entries, movieID)
		return next, changed, nil
	})
	metrics.RecordRankOperation(opRemove, outcome(err))
	return err
}

// TopRanked returns up to limit ranked movies in ascending rank order with
// their movie records resolved. A dangling reference fails the whole call.
func (e *Engine) TopRanked(ctx context.Context, userID string, limit int) (_ []model.TopEntry, err error) {
	start := time.Now()
	defer func() { metrics.RecordRankOperation(opTop, outcome(err)) }()

	u, err := e.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	ranked, err := top(u.Movies, limit)
	if err != nil {
		if errors.Is(err, ErrIntegrity) {
			e.log.Error(ctx, "duplicate rank in stored list",
				logger.String("user_id", userID), logger.Error(err))
		}
		return nil, err
	}

	out, err := e.hydrate(ctx, userID, ranked)
	if err != nil {
		return nil, err
	}
	metrics.RecordTopRanked(float64(time.Since(start).Microseconds())/1000, len(out))
	return out, nil
}

func (e *Engine) hydrate(ctx context.Context, userID string, ranked []model.RankEntry) ([]model.TopEntry, error) {
	out := make([]model.TopEntry, len(ranked))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.hydration)

	for i, entry := range ranked {
		g.Go(func() error {
			m, err := e.movies.GetMovie(gctx, entry.MovieID)
			if errors.Is(err, repository.ErrNotFound) {
				metrics.RecordHydrationFailure()
				e.log.Error(ctx, "ranked movie missing",
					logger.String("user_id", userID),
					logger.String("movie_id", entry.MovieID),
					logger.Int("rank", entry.Rank.Value()))
				return fmt.Errorf("%w: movie %s ranked %d does not exist",
					ErrIntegrity, entry.MovieID, entry.Rank.Value())
			}
			if err != nil {
				return fmt.Errorf("load movie %s: %w", entry.MovieID, err)
			}
			out[i] = model.TopEntry{Ranking: entry.Rank.Value(), Movie: *m}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrRankTaken), errors.Is(err, ErrConcurrentUpdate):
		return "conflict"
	case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrEntryNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidRank), errors.Is(err, ErrInvalidLimit):
		return "invalid"
	case errors.Is(err, ErrIntegrity):
		return "integrity"
	default:
		return "error"
	}
}

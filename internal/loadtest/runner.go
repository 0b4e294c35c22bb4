// Package loadtest drives a running movierank service with concurrent rank
// claims and checks that every ranked list stays strictly ordered.
package loadtest

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/movierank/pkg/logger"
)

// Limits for a single run.
const (
	MaxMoviesPerUser     = 100
	PercentageMultiplier = 100
)

// Error constants
var (
	ErrInvalidConfig = errors.New("invalid load test config")
	ErrUnhealthy     = errors.New("service health check failed")
	ErrInvariant     = errors.New("ranked list invariant violated")
)

// Validate checks the run parameters.
func (c *Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("%w: base url must not be empty", ErrInvalidConfig)
	case c.Users < 1:
		return fmt.Errorf("%w: users must be positive", ErrInvalidConfig)
	case c.MoviesPerUser < 1 || c.MoviesPerUser > MaxMoviesPerUser:
		return fmt.Errorf("%w: movies per user must be in [1, %d]", ErrInvalidConfig, MaxMoviesPerUser)
	case c.Workers < 1:
		return fmt.Errorf("%w: workers must be positive", ErrInvalidConfig)
	}
	return nil
}

// Run executes the complete load test and returns its statistics.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	stats := &Stats{StartTime: time.Now()}
	log := logger.Named("loadtest")
	client := newHTTPClient(config.BaseURL, config.Timeout)

	log.Info(ctx, "starting movierank load test",
		logger.String("baseURL", config.BaseURL),
		logger.Int("users", config.Users),
		logger.Int("moviesPerUser", config.MoviesPerUser),
		logger.Int("workers", config.Workers),
		logger.Duration("timeout", config.Timeout))

	if err := checkServiceHealth(ctx, client); err != nil {
		return stats, err
	}

	sessions, err := registerUsers(ctx, client, config, stats)
	if err != nil {
		return stats, fmt.Errorf("registration failed: %w", err)
	}

	if err := createMovies(ctx, client, config, sessions, stats); err != nil {
		return stats, fmt.Errorf("movie creation failed: %w", err)
	}

	claims, err := claimRanks(ctx, client, config, sessions, stats)
	if err != nil {
		return stats, fmt.Errorf("rank claims failed: %w", err)
	}

	if err := verifyLists(ctx, client, config, sessions, claims, stats); err != nil {
		return stats, err
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, log, stats)
	return stats, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *HTTPClient) error {
	status, _, err := client.Do(ctx, http.MethodGet, "/healthz", "", nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, status)
	}
	return nil
}

func registerUsers(ctx context.Context, client *HTTPClient, config *Config, stats *Stats) ([]session, error) {
	sessions := make([]session, config.Users)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(config.Workers)

	for i := range sessions {
		g.Go(func() error {
			email := "load-" + uuid.NewString() + "@example.com"
			status, body, err := client.Do(gctx, http.MethodPost, "/auth/register", "", map[string]string{
				"name":     "load " + strconv.Itoa(i),
				"email":    email,
				"password": "password-" + strconv.Itoa(i),
			})
			if err != nil {
				return err
			}
			if status != http.StatusCreated {
				return fmt.Errorf("register %s: status %d: %s", email, status, body)
			}
			data, err := decode[authData](body)
			if err != nil {
				return fmt.Errorf("register %s: %w", email, err)
			}
			sessions[i] = session{email: email, token: data.AccessToken}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	stats.UsersRegistered = len(sessions)
	return sessions, nil
}

func createMovies(ctx context.Context, client *HTTPClient, config *Config, sessions []session, stats *Stats) error {
	for i := range sessions {
		sessions[i].movies = make([]string, config.MoviesPerUser)
	}

	var created int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(config.Workers)
	for u := range sessions {
		for m := 0; m < config.MoviesPerUser; m++ {
			g.Go(func() error {
				title := fmt.Sprintf("Load Movie %d-%d", u, m)
				status, body, err := client.Do(gctx, http.MethodPost, "/movies", sessions[u].token, map[string]any{
					"title":    title,
					"overview": "generated by loadtest",
				})
				if err != nil {
					return err
				}
				if status != http.StatusCreated {
					return fmt.Errorf("create %q: status %d: %s", title, status, body)
				}
				data, err := decode[movieData](body)
				if err != nil {
					return fmt.Errorf("create %q: %w", title, err)
				}
				sessions[u].movies[m] = data.ID
				atomic.AddInt64(&created, 1)
				return nil
			})
		}
	}
	err := g.Wait()
	stats.MoviesCreated = int(created)
	return err
}

// claimRanks has every movie request one rank. Ranks are drawn from the lower
// half of the list so most ranks are contested by several movies at once.
func claimRanks(ctx context.Context, client *HTTPClient, config *Config, sessions []session, stats *Stats) ([]claim, error) {
	log := logger.Named("loadtest")
	span := max(1, config.MoviesPerUser/2)

	var claims []claim
	for u, s := range sessions {
		for _, id := range s.movies {
			claims = append(claims, claim{user: u, movieID: id, rank: rand.IntN(span) + 1})
		}
	}

	var accepted, conflicts, failed int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(config.Workers)
	for i := range claims {
		g.Go(func() error {
			c := &claims[i]
			status, _, err := client.Do(gctx, http.MethodPost, "/movies/"+c.movieID+"/rank",
				sessions[c.user].token, map[string]int{"rank": c.rank})
			if err != nil {
				return err
			}
			c.status = status
			switch status {
			case http.StatusOK:
				atomic.AddInt64(&accepted, 1)
			case http.StatusConflict:
				atomic.AddInt64(&conflicts, 1)
			default:
				atomic.AddInt64(&failed, 1)
			}
			if config.Verbose {
				log.Debug(gctx, "rank claim",
					logger.String("movieId", c.movieID),
					logger.Int("rank", c.rank),
					logger.Int("status", status))
			}
			return nil
		})
	}
	err := g.Wait()

	stats.RankRequests = len(claims)
	stats.RankAccepted = int(accepted)
	stats.RankConflicts = int(conflicts)
	stats.RankFailed = int(failed)
	return claims, err
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var acceptRate, requestsPerSecond float64
	if stats.RankRequests > 0 {
		acceptRate = float64(stats.RankAccepted) / float64(stats.RankRequests) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		requestsPerSecond = float64(stats.RankRequests) / stats.Duration.Seconds()
	}

	log.Info(ctx, "final statistics",
		logger.Int("usersRegistered", stats.UsersRegistered),
		logger.Int("moviesCreated", stats.MoviesCreated),
		logger.Int("rankRequests", stats.RankRequests),
		logger.Int("rankAccepted", stats.RankAccepted),
		logger.Int("rankConflicts", stats.RankConflicts),
		logger.Int("rankFailed", stats.RankFailed),
		logger.Int("listsVerified", stats.ListsVerified),
		logger.Duration("duration", stats.Duration),
		logger.Any("acceptRate", acceptRate),
		logger.Any("requestsPerSecond", requestsPerSecond))
}

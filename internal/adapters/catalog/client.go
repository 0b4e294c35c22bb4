// Package catalog queries an OMDb-compatible external movie catalog.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/okian/movierank/pkg/logger"
	"github.com/okian/movierank/pkg/metrics"
)

const (
	breakerName      = "catalog"
	maxBodyBytes     = 1 << 20
	notFoundResponse = "Movie not found!"
)

var (
	// ErrEmptyTitle is returned when the search title is blank.
	ErrEmptyTitle = errors.New("title is required")
	// ErrUnavailable is returned when the catalog cannot be reached or the
	// breaker is open.
	ErrUnavailable = errors.New("catalog unavailable")
	// ErrUpstream is returned when the catalog rejects the request.
	ErrUpstream = errors.New("catalog rejected request")
)

// Result is one search hit.
type Result struct {
	Title  string `json:"Title"`
	Year   string `json:"Year"`
	IMDbID string `json:"imdbID"`
	Type   string `json:"Type"`
	Poster string `json:"Poster"`
}

type searchResponse struct {
	Search       []Result `json:"Search"`
	TotalResults string   `json:"totalResults"`
	Response     string   `json:"Response"`
	Error        string   `json:"Error"`
}

// Client searches the catalog through a rate limiter and a circuit breaker.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[[]Result]
	log     logger.Logger
}

// New returns a Client for baseURL.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 5 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(5), 5),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Named("catalog")
	}

	metrics.UpdateCatalogBreakerState(stateValue(gobreaker.StateClosed))
	c.cb = gobreaker.NewCircuitBreaker[[]Result](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrUpstream)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn(context.Background(), "circuit breaker state change",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()))
			metrics.UpdateCatalogBreakerState(stateValue(to))
		},
	})
	return c
}

// Search returns catalog entries whose title matches. A title with no
// matches yields an empty slice.
func (c *Client) Search(ctx context.Context, title string) ([]Result, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrEmptyTitle
	}
	if err := c.limiter.Wait(ctx); err != nil {
		metrics.RecordCatalogRequest("throttled")
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	results, err := c.cb.Execute(func() ([]Result, error) {
		return c.search(ctx, title)
	})
	switch {
	case err == nil:
		metrics.RecordCatalogRequest("ok")
		return results, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordCatalogRequest("rejected")
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	case errors.Is(err, ErrUpstream):
		metrics.RecordCatalogRequest("upstream_error")
		return nil, err
	default:
		metrics.RecordCatalogRequest("failure")
		c.log.Error(ctx, "catalog search failed", logger.String("title", title), logger.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
}

func (c *Client) search(ctx context.Context, title string) ([]Result, error) {
	q := url.Values{}
	q.Set("s", title)
	if c.apiKey != "" {
		q.Set("apikey", c.apiKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("catalog status %d", resp.StatusCode)
	}

	var out searchResponse
	if err := json.Unmarshal(body, &out); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
		}
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if out.Response == "False" {
		if out.Error == notFoundResponse {
			return []Result{}, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrUpstream, out.Error)
	}
	if out.Search == nil {
		out.Search = []Result{}
	}
	return out.Search, nil
}

func stateValue(s gobreaker.State) int {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

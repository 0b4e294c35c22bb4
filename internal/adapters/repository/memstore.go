package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/movierank/internal/domain/model"
	"github.com/okian/movierank/pkg/metrics"
)

const memoryBackend = "memory"

// MemoryStore is an in-process Store. Every read returns a copy so callers
// can never mutate stored state outside SaveMovies.
type MemoryStore struct {
	mu      sync.RWMutex
	users   map[string]model.User
	byEmail map[string]string
	movies  map[string]model.Movie

	newID func() string
	now   func() time.Time
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		users:   make(map[string]model.User),
		byEmail: make(map[string]string),
		movies:  make(map[string]model.Movie),
		newID:   func() string { return uuid.NewString() },
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Backend implements Store.
func (s *MemoryStore) Backend() string { return memoryBackend }

// Close implements Store.
func (s *MemoryStore) Close(_ context.Context) error { return nil }

func observe(op string, start time.Time, err error) {
	metrics.RecordStoreCall(memoryBackend, op, float64(time.Since(start).Microseconds())/1000, err)
}

func emailKey(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

func cloneUser(u model.User) *model.User {
	u.Movies = append([]model.RankEntry(nil), u.Movies...)
	return &u
}

// CreateUser implements UserStore.
func (s *MemoryStore) CreateUser(_ context.Context, u *model.User) (out *model.User, err error) {
	defer func(start time.Time) { observe("create_user", start, err) }(time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	key := emailKey(u.Email)
	if _, taken := s.byEmail[key]; taken {
		return nil, ErrDuplicate
	}
	stored := *cloneUser(*u)
	stored.ID = s.newID()
	stored.Email = key
	stored.Version = 1
	stored.CreatedAt = s.now()
	s.users[stored.ID] = stored
	s.byEmail[key] = stored.ID
	return cloneUser(stored), nil
}

// GetUser implements UserStore.
func (s *MemoryStore) GetUser(_ context.Context, id string) (out *model.User, err error) {
	defer func(start time.Time) { observe("get_user", start, err) }(time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(u), nil
}

// FindUserByEmail implements UserStore.
func (s *MemoryStore) FindUserByEmail(_ context.Context, email string) (out *model.User, err error) {
	defer func(start time.Time) { observe("find_user_by_email", start, err) }(time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[emailKey(email)]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(s.users[id]), nil
}

// SaveMovies implements UserStore.
func (s *MemoryStore) SaveMovies(_ context.Context, userID string, expectedVersion int64, entries []model.RankEntry) (v int64, err error) {
	defer func(start time.Time) { observe("save_movies", start, err) }(time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return 0, ErrNotFound
	}
	if u.Version != expectedVersion {
		return 0, ErrVersionConflict
	}
	u.Movies = append([]model.RankEntry(nil), entries...)
	u.Version++
	s.users[userID] = u
	return u.Version, nil
}

// CountUsers implements UserStore.
func (s *MemoryStore) CountUsers(_ context.Context) (n int, err error) {
	defer func(start time.Time) { observe("count_users", start, err) }(time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), nil
}

// CreateMovie implements MovieStore.
func (s *MemoryStore) CreateMovie(_ context.Context, m *model.Movie) (out *model.Movie, err error) {
	defer func(start time.Time) { observe("create_movie", start, err) }(time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findByTitleLocked(m.CreatedBy, m.Title) != nil {
		return nil, ErrDuplicate
	}
	stored := *m
	stored.ID = s.newID()
	stored.CreatedAt = s.now()
	stored.UpdatedAt = stored.CreatedAt
	s.movies[stored.ID] = stored
	return &stored, nil
}

// GetMovie implements MovieStore.
func (s *MemoryStore) GetMovie(_ context.Context, id string) (out *model.Movie, err error) {
	defer func(start time.Time) { observe("get_movie", start, err) }(time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.movies[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &m, nil
}

// FindMovieByTitle implements MovieStore.
func (s *MemoryStore) FindMovieByTitle(_ context.Context, owner, title string) (out *model.Movie, err error) {
	defer func(start time.Time) { observe("find_movie_by_title", start, err) }(time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	if m := s.findByTitleLocked(owner, title); m != nil {
		return m, nil
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) findByTitleLocked(owner, title string) *model.Movie {
	for _, m := range s.movies {
		if m.CreatedBy == owner && m.Title == title {
			return &m
		}
	}
	return nil
}

// ListMovies implements MovieStore. Results are ordered by creation time.
func (s *MemoryStore) ListMovies(_ context.Context, owner string) (out []model.Movie, err error) {
	defer func(start time.Time) { observe("list_movies", start, err) }(time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	out = make([]model.Movie, 0)
	for _, m := range s.movies {
		if m.CreatedBy == owner {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// UpdateMovie implements MovieStore.
func (s *MemoryStore) UpdateMovie(_ context.Context, m *model.Movie) (out *model.Movie, err error) {
	defer func(start time.Time) { observe("update_movie", start, err) }(time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.movies[m.ID]
	if !ok {
		return nil, ErrNotFound
	}
	if other := s.findByTitleLocked(m.CreatedBy, m.Title); other != nil && other.ID != m.ID {
		return nil, ErrDuplicate
	}
	next := *m
	next.CreatedAt = cur.CreatedAt
	next.UpdatedAt = s.now()
	s.movies[m.ID] = next
	return &next, nil
}

// DeleteMovie implements MovieStore.
func (s *MemoryStore) DeleteMovie(_ context.Context, id string) (err error) {
	defer func(start time.Time) { observe("delete_movie", start, err) }(time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.movies[id]; !ok {
		return ErrNotFound
	}
	delete(s.movies, id)
	return nil
}

// CountMovies implements MovieStore.
func (s *MemoryStore) CountMovies(_ context.Context) (n int, err error) {
	defer func(start time.Time) { observe("count_movies", start, err) }(time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.movies), nil
}

// Package repository defines the user and movie stores and their backends.
package repository

import (
	"context"

	"github.com/okian/movierank/internal/domain/model"
)

// UserStore persists users and their rank-entry collections.
type UserStore interface {
	// CreateUser inserts u and returns the stored copy with ID and Version set.
	// Returns ErrDuplicate if the email is taken.
	CreateUser(ctx context.Context, u *model.User) (*model.User, error)

	// GetUser returns ErrNotFound if the id is unknown.
	GetUser(ctx context.Context, id string) (*model.User, error)

	// FindUserByEmail returns ErrNotFound if no user has the email.
	FindUserByEmail(ctx context.Context, email string) (*model.User, error)

	// SaveMovies replaces the user's whole entry collection if the stored
	// version still equals expectedVersion, and returns the new version.
	// Returns ErrVersionConflict when another write got there first.
	SaveMovies(ctx context.Context, userID string, expectedVersion int64, entries []model.RankEntry) (int64, error)

	CountUsers(ctx context.Context) (int, error)
}

// MovieStore persists movie records.
type MovieStore interface {
	// CreateMovie returns ErrDuplicate if the owner already has the title.
	CreateMovie(ctx context.Context, m *model.Movie) (*model.Movie, error)
	GetMovie(ctx context.Context, id string) (*model.Movie, error)
	FindMovieByTitle(ctx context.Context, owner, title string) (*model.Movie, error)
	ListMovies(ctx context.Context, owner string) ([]model.Movie, error)
	UpdateMovie(ctx context.Context, m *model.Movie) (*model.Movie, error)
	DeleteMovie(ctx context.Context, id string) error
	CountMovies(ctx context.Context) (int, error)
}

// Store bundles both stores on one backend.
type Store interface {
	UserStore
	MovieStore

	// Backend names the implementation for logs and metrics.
	Backend() string
	Close(ctx context.Context) error
}

package api

import (
	"context"
	"net/http"
	"time"

	service "github.com/okian/movierank/internal/app"
	"github.com/okian/movierank/internal/domain/model"
)

// MovieDependencies defines the interface for movie CRUD.
type MovieDependencies interface {
	CreateMovie(ctx context.Context, userID string, in service.MovieInput) (*model.Movie, error)
	ListMovies(ctx context.Context, userID string) ([]model.Movie, error)
	GetMovie(ctx context.Context, userID, movieID string) (*model.Movie, error)
	UpdateMovie(ctx context.Context, userID, movieID string, patch model.MoviePatch) (*model.Movie, error)
	DeleteMovie(ctx context.Context, userID, movieID string) error
}

type createMovieRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Overview    string `json:"overview" validate:"max=5000"`
	ReleaseDate string `json:"releaseDate"`
	Adult       bool   `json:"adult"`
}

type updateMovieRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=200"`
	Overview    *string `json:"overview" validate:"omitempty,max=5000"`
	ReleaseDate *string `json:"releaseDate"`
	Adult       *bool   `json:"adult"`
}

// MovieHandler handles movie CRUD requests.
type MovieHandler struct {
	deps MovieDependencies
}

// NewMovieHandler creates a new movie handler.
func NewMovieHandler(deps MovieDependencies) *MovieHandler {
	return &MovieHandler{deps: deps}
}

// HandleCreate handles POST /movies.
func (h *MovieHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createMovieRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	var release time.Time
	if req.ReleaseDate != "" {
		var err error
		if release, err = parseDate(req.ReleaseDate); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", err)
			return
		}
	}

	m, err := h.deps.CreateMovie(r.Context(), userID(r.Context()), service.MovieInput{
		Title:       req.Title,
		Overview:    req.Overview,
		ReleaseDate: release,
		Adult:       req.Adult,
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeData(w, http.StatusCreated, "Movie created successfully", m)
}

// HandleList handles GET /movies.
func (h *MovieHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	movies, err := h.deps.ListMovies(r.Context(), userID(r.Context()))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeData(w, http.StatusOK, "Movies retrieved successfully", movies)
}

// HandleGet handles GET /movies/{id}.
func (h *MovieHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	m, err := h.deps.GetMovie(r.Context(), userID(r.Context()), r.PathValue("id"))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeData(w, http.StatusOK, "Movie retrieved successfully", m)
}

// HandleUpdate handles PATCH /movies/{id}.
func (h *MovieHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateMovieRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	patch := model.MoviePatch{Title: req.Title, Overview: req.Overview, Adult: req.Adult}
	if req.ReleaseDate != nil {
		release, err := parseDate(*req.ReleaseDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", err)
			return
		}
		patch.ReleaseDate = &release
	}

	m, err := h.deps.UpdateMovie(r.Context(), userID(r.Context()), r.PathValue("id"), patch)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeData(w, http.StatusOK, "Movie updated successfully", m)
}

// HandleDelete handles DELETE /movies/{id}.
func (h *MovieHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.DeleteMovie(r.Context(), userID(r.Context()), r.PathValue("id")); err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeData(w, http.StatusOK, "Movie deleted successfully", nil)
}

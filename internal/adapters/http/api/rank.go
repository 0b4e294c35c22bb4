// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/okian/movierank/internal/domain/model"
)

const rankSegment = "rank"

// RankDependencies defines the interface for rank operations.
type RankDependencies interface {
	RankMovie(ctx context.Context, userID, movieID string, rank int) error
	TopMovies(ctx context.Context, userID string, limit int) ([]model.TopEntry, error)
}

type rankRequest struct {
	Rank *int `json:"rank" validate:"required"`
}

// RankHandler handles rank requests.
type RankHandler struct {
	deps RankDependencies
}

// NewRankHandler creates a new rank handler.
func NewRankHandler(deps RankDependencies) *RankHandler {
	return &RankHandler{deps: deps}
}

// HandleRank handles POST /movies/rank/{movieId} and POST /movies/{movieId}/rank.
func (h *RankHandler) HandleRank(w http.ResponseWriter, r *http.Request) {
	movieID, ok := rankTarget(r.PathValue("first"), r.PathValue("second"))
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	var req rankRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := h.deps.RankMovie(r.Context(), userID(r.Context()), movieID, *req.Rank); err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeData(w, http.StatusOK, "Movie ranked successfully", map[string]any{
		"movieId": movieID,
		"rank":    *req.Rank,
	})
}

// rankTarget extracts the movie id from either rank route shape.
func rankTarget(first, second string) (string, bool) {
	switch {
	case first == rankSegment && second != "":
		return second, true
	case second == rankSegment && first != "":
		return first, true
	default:
		return "", false
	}
}

// HandleTop handles GET /movies/top?limit=N.
func (h *RankHandler) HandleTop(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", badRequest("limit must be a positive integer"))
			return
		}
		limit = n
	}
	top, err := h.deps.TopMovies(r.Context(), userID(r.Context()), limit)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeData(w, http.StatusOK, "Top movies retrieved successfully", top)
}

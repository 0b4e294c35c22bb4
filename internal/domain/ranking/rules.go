// Package ranking maintains each user's personal movie ranking: one entry
// per movie, each either unranked or holding a distinct positive rank.
package ranking

import (
	"errors"
	"fmt"
	"sort"

	"github.com/okian/movierank/internal/domain/model"
)

var (
	// ErrUserNotFound is returned when the user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrRankTaken is returned when another movie already holds the rank.
	ErrRankTaken = errors.New("rank already assigned")
	// ErrEntryNotFound is returned when the movie is not in the user's list.
	ErrEntryNotFound = errors.New("movie not in user list")
	// ErrInvalidRank is returned for ranks below 1. It is the model sentinel.
	ErrInvalidRank = model.ErrInvalidRank
	// ErrInvalidLimit is returned for top-N limits below 1.
	ErrInvalidLimit = errors.New("limit must be a positive integer")
	// ErrIntegrity signals stored state that breaks a ranking invariant.
	ErrIntegrity = errors.New("ranking integrity violation")
	// ErrConcurrentUpdate is returned when optimistic retries are exhausted.
	ErrConcurrentUpdate = errors.New("concurrent update")
)

// assign appends an unranked entry for movieID. The existing entry is
// returned instead when the movie is already listed.
func assign(entries []model.RankEntry, movieID string) ([]model.RankEntry, model.RankEntry, bool) {
	for _, e := range entries {
		if e.MovieID == movieID {
			return entries, e, false
		}
	}
	entry := model.RankEntry{MovieID: movieID, Rank: model.Unranked()}
	out := make([]model.RankEntry, 0, len(entries)+1)
	out = append(out, entries...)
	return append(out, entry), entry, true
}

// reRank moves movieID to rank. The holder check runs before the membership
// check, so a taken rank is reported even for an unlisted movie.
func reRank(entries []model.RankEntry, movieID string, rank model.Rank) ([]model.RankEntry, bool, error) {
	if !rank.IsRanked() {
		return nil, false, ErrInvalidRank
	}

	for _, e := range entries {
		if e.Rank == rank {
			if e.MovieID == movieID {
				return entries, false, nil
			}
			return nil, false, ErrRankTaken
		}
	}

	idx := -1
	for i, e := range entries {
		if e.MovieID == movieID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, false, ErrEntryNotFound
	}

	out := make([]model.RankEntry, len(entries))
	copy(out, entries)
	out[idx].Rank = rank
	return out, true, nil
}

// remove drops the entry for movieID if present.
func remove(entries []model.RankEntry, movieID string) ([]model.RankEntry, bool) {
	for i, e := range entries {
		if e.MovieID == movieID {
			out := make([]model.RankEntry, 0, len(entries)-1)
			out = append(out, entries[:i]...)
			return append(out, entries[i+1:]...), true
		}
	}
	return entries, false
}

// top returns the ranked entries in ascending rank order, at most limit.
func top(entries []model.RankEntry, limit int) ([]model.RankEntry, error) {
	if limit < 1 {
		return nil, ErrInvalidLimit
	}

	ranked := make([]model.RankEntry, 0, len(entries))
	for _, e := range entries {
		if e.Rank.IsRanked() {
			ranked = append(ranked, e)
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		return ranked[i].Rank.Value() < ranked[j].Rank.Value()
	})

	for i := 1; i < len(ranked); i++ {
		if ranked[i].Rank == ranked[i-1].Rank {
			return nil, fmt.Errorf("%w: rank %d held by %s and %s",
				ErrIntegrity, ranked[i].Rank.Value(), ranked[i-1].MovieID, ranked[i].MovieID)
		}
	}

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

package loadtest

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"golang.org/x/sync/errgroup"
)

// verifyLists fetches every top list and checks it against the accepted claims.
func verifyLists(ctx context.Context, client *HTTPClient, config *Config, sessions []session, claims []claim, stats *Stats) error {
	if stats.RankFailed > 0 {
		return fmt.Errorf("%w: %d rank requests failed", ErrInvariant, stats.RankFailed)
	}

	byUser := make([][]claim, len(sessions))
	for _, c := range claims {
		byUser[c.user] = append(byUser[c.user], c)
	}

	lists := make([][]topEntry, len(sessions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(config.Workers)
	for u := range sessions {
		g.Go(func() error {
			path := "/movies/top?limit=" + strconv.Itoa(config.MoviesPerUser)
			status, body, err := client.Do(gctx, http.MethodGet, path, sessions[u].token, nil)
			if err != nil {
				return err
			}
			if status != http.StatusOK {
				return fmt.Errorf("top list for %s: status %d: %s", sessions[u].email, status, body)
			}
			lists[u], err = decode[[]topEntry](body)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for u := range sessions {
		if err := checkList(lists[u], byUser[u]); err != nil {
			return fmt.Errorf("%s: %w", sessions[u].email, err)
		}
		stats.ListsVerified++
	}
	return nil
}

// checkList verifies one user's list: ranks strictly ascend, every contested
// rank has exactly one accepted claim, and the list holds exactly the winners.
func checkList(list []topEntry, claims []claim) error {
	for i := 1; i < len(list); i++ {
		if list[i].Ranking <= list[i-1].Ranking {
			return fmt.Errorf("%w: rank %d follows rank %d", ErrInvariant, list[i].Ranking, list[i-1].Ranking)
		}
	}

	winners := make(map[int]string)
	contested := make(map[int]int)
	for _, c := range claims {
		contested[c.rank]++
		if c.status != http.StatusOK {
			continue
		}
		if prev, ok := winners[c.rank]; ok {
			return fmt.Errorf("%w: rank %d accepted for %s and %s", ErrInvariant, c.rank, prev, c.movieID)
		}
		winners[c.rank] = c.movieID
	}
	for rank := range contested {
		if _, ok := winners[rank]; !ok {
			return fmt.Errorf("%w: rank %d was claimed but nobody won it", ErrInvariant, rank)
		}
	}

	if len(list) != len(winners) {
		return fmt.Errorf("%w: list has %d entries, %d claims were accepted", ErrInvariant, len(list), len(winners))
	}
	for _, e := range list {
		if winners[e.Ranking] != e.Movie.ID {
			return fmt.Errorf("%w: rank %d holds %s, expected %s", ErrInvariant, e.Ranking, e.Movie.ID, winners[e.Ranking])
		}
	}
	return nil
}

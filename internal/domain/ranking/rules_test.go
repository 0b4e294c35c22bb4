package ranking

import (
	"errors"
	"sync"
	"testing"

	"github.com/okian/movierank/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func rank(n int) model.Rank {
	r, err := model.Ranked(n)
	if err != nil {
		return model.Unranked()
	}
	return r
}

func sample() []model.RankEntry {
	return []model.RankEntry{
		{MovieID: "A", Rank: model.Unranked()},
		{MovieID: "B", Rank: rank(3)},
		{MovieID: "C", Rank: rank(1)},
	}
}

func TestAssign(t *testing.T) {
	convey.Convey("Given an entry collection", t, func() {
		entries := sample()

		convey.Convey("When assigning a new movie", func() {
			next, entry, changed := assign(entries, "D")

			convey.Convey("Then it should be appended unranked", func() {
				convey.So(changed, convey.ShouldBeTrue)
				convey.So(entry.Rank.IsRanked(), convey.ShouldBeFalse)
				convey.So(len(next), convey.ShouldEqual, 4)
				convey.So(next[3].MovieID, convey.ShouldEqual, "D")
				convey.So(len(entries), convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When assigning a movie already listed", func() {
			next, entry, changed := assign(entries, "B")

			convey.Convey("Then the existing entry should be returned unchanged", func() {
				convey.So(changed, convey.ShouldBeFalse)
				convey.So(entry.Rank.Value(), convey.ShouldEqual, 3)
				convey.So(len(next), convey.ShouldEqual, 3)
			})
		})
	})
}

func TestReRankRule(t *testing.T) {
	convey.Convey("Given entries [(A,0),(B,3),(C,1)]", t, func() {
		entries := sample()

		convey.Convey("When moving A to a free rank", func() {
			next, changed, err := reRank(entries, "A", rank(2))

			convey.Convey("Then only A should change", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(changed, convey.ShouldBeTrue)
				convey.So(next[0].Rank.Value(), convey.ShouldEqual, 2)
				convey.So(next[1].Rank.Value(), convey.ShouldEqual, 3)
				convey.So(next[2].Rank.Value(), convey.ShouldEqual, 1)
				convey.So(entries[0].Rank.IsRanked(), convey.ShouldBeFalse)
			})
		})

		convey.Convey("When moving B onto C's rank", func() {
			_, _, err := reRank(entries, "B", rank(1))
			convey.So(errors.Is(err, ErrRankTaken), convey.ShouldBeTrue)
		})

		convey.Convey("When C is re-ranked to the rank it already holds", func() {
			next, changed, err := reRank(entries, "C", rank(1))
			convey.So(err, convey.ShouldBeNil)
			convey.So(changed, convey.ShouldBeFalse)
			convey.So(next, convey.ShouldResemble, entries)
		})

		convey.Convey("When the movie is not listed", func() {
			_, _, err := reRank(entries, "X", rank(5))
			convey.So(errors.Is(err, ErrEntryNotFound), convey.ShouldBeTrue)
		})

		convey.Convey("When the movie is not listed and the rank is taken", func() {
			_, _, err := reRank(entries, "X", rank(3))
			convey.So(errors.Is(err, ErrRankTaken), convey.ShouldBeTrue)
		})

		convey.Convey("When the rank is Unranked", func() {
			_, _, err := reRank(entries, "A", model.Unranked())
			convey.So(errors.Is(err, ErrInvalidRank), convey.ShouldBeTrue)
		})
	})
}

func TestRemove(t *testing.T) {
	convey.Convey("Given an entry collection", t, func() {
		entries := sample()

		convey.Convey("Then removing a listed movie should drop only that entry", func() {
			next, changed := remove(entries, "B")
			convey.So(changed, convey.ShouldBeTrue)
			convey.So(len(next), convey.ShouldEqual, 2)
			convey.So(next[0].MovieID, convey.ShouldEqual, "A")
			convey.So(next[1].MovieID, convey.ShouldEqual, "C")
			convey.So(len(entries), convey.ShouldEqual, 3)
		})

		convey.Convey("Then removing an unlisted movie should be a no-op", func() {
			_, changed := remove(entries, "Z")
			convey.So(changed, convey.ShouldBeFalse)
		})
	})
}

func TestTop(t *testing.T) {
	convey.Convey("Given entries [(A,0),(B,3),(C,1)]", t, func() {
		convey.Convey("Then top should return C then B and exclude A", func() {
			got, err := top(sample(), 100)
			convey.So(err, convey.ShouldBeNil)
			convey.So(len(got), convey.ShouldEqual, 2)
			convey.So(got[0].MovieID, convey.ShouldEqual, "C")
			convey.So(got[1].MovieID, convey.ShouldEqual, "B")
		})

		convey.Convey("Then a limit below 1 should be rejected", func() {
			_, err := top(sample(), 0)
			convey.So(errors.Is(err, ErrInvalidLimit), convey.ShouldBeTrue)
		})
	})

	convey.Convey("Given only unranked entries", t, func() {
		got, err := top([]model.RankEntry{{MovieID: "A"}, {MovieID: "B"}}, 100)
		convey.So(err, convey.ShouldBeNil)
		convey.So(got, convey.ShouldBeEmpty)
	})

	convey.Convey("Given more than 100 ranked entries in reverse order", t, func() {
		entries := make([]model.RankEntry, 0, 150)
		for i := 150; i >= 1; i-- {
			entries = append(entries, model.RankEntry{MovieID: string(rune('a' + i%26)), Rank: rank(i)})
		}

		got, err := top(entries, 100)

		convey.Convey("Then at most 100 should come back strictly ascending", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(len(got), convey.ShouldEqual, 100)
			for i := 1; i < len(got); i++ {
				convey.So(got[i].Rank.Value(), convey.ShouldBeGreaterThan, got[i-1].Rank.Value())
			}
			convey.So(got[0].Rank.Value(), convey.ShouldEqual, 1)
		})
	})

	convey.Convey("Given a stored duplicate rank", t, func() {
		entries := []model.RankEntry{{MovieID: "A", Rank: rank(2)}, {MovieID: "B", Rank: rank(2)}}
		_, err := top(entries, 10)
		convey.So(errors.Is(err, ErrIntegrity), convey.ShouldBeTrue)
	})
}

func TestKeyLock(t *testing.T) {
	convey.Convey("Given a key lock", t, func() {
		locks := newKeyLock()

		convey.Convey("When many goroutines increment under the same key", func() {
			var wg sync.WaitGroup
			counter := 0
			for i := 0; i < 50; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					unlock := locks.Lock("u1")
					counter++
					unlock()
				}()
			}
			wg.Wait()

			convey.Convey("Then no update should be lost and no entry should leak", func() {
				convey.So(counter, convey.ShouldEqual, 50)
				convey.So(locks.size(), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When different keys are held at once", func() {
			u1 := locks.Lock("u1")
			u2 := locks.Lock("u2")

			convey.So(locks.size(), convey.ShouldEqual, 2)
			u1()
			u2()
			convey.So(locks.size(), convey.ShouldEqual, 0)
		})
	})
}

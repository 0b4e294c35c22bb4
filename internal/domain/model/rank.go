// Package model contains domain models passed between layers.
package model

import (
	"errors"
	"strconv"

	json "github.com/goccy/go-json"
)

// ErrInvalidRank is returned when a ranked value is not a positive integer.
var ErrInvalidRank = errors.New("rank must be a positive integer")

// Rank is either Unranked or Ranked(n) with n >= 1.
// The zero value is Unranked; it is stored and rendered as 0.
type Rank struct {
	n int
}

// Unranked returns the rank of a movie that is listed but not prioritised.
func Unranked() Rank { return Rank{} }

// Ranked returns Ranked(n). n must be >= 1.
func Ranked(n int) (Rank, error) {
	if n < 1 {
		return Rank{}, ErrInvalidRank
	}
	return Rank{n: n}, nil
}

// RankFromStored decodes the persisted integer form. Negative values are
// rejected since they can only come from a corrupted document.
func RankFromStored(n int) (Rank, error) {
	if n == 0 {
		return Unranked(), nil
	}
	return Ranked(n)
}

// IsRanked reports whether r is Ranked(n).
func (r Rank) IsRanked() bool { return r.n > 0 }

// Value returns n for Ranked(n) and 0 for Unranked.
func (r Rank) Value() int { return r.n }

func (r Rank) String() string {
	if !r.IsRanked() {
		return "unranked"
	}
	return strconv.Itoa(r.n)
}

// MarshalJSON renders the stored integer form.
func (r Rank) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.n)
}

// UnmarshalJSON accepts the stored integer form.
func (r *Rank) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	v, err := RankFromStored(n)
	if err != nil {
		return err
	}
	*r = v
	return nil
}

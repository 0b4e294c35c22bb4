package model

import "time"

// RankEntry associates one movie with the owning user's preference rank.
type RankEntry struct {
	MovieID string `json:"movieId"`
	Rank    Rank   `json:"rank"`
}

// User is a registered account together with its rank-entry collection.
// Version increases by one on every successful write of Movies.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Movies       []RankEntry
	Version      int64
	CreatedAt    time.Time
}

// Entries returns a copy of the user's rank entries.
func (u *User) Entries() []RankEntry {
	out := make([]RankEntry, len(u.Movies))
	copy(out, u.Movies)
	return out
}

// Profile is the public view of a user.
type Profile struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Profile returns the user's public view.
func (u *User) Profile() Profile {
	return Profile{Name: u.Name, Email: u.Email}
}

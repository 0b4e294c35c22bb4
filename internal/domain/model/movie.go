package model

import "time"

// Movie is a movie record owned by the user who created it.
type Movie struct {
	ID          string    `json:"_id"`
	Title       string    `json:"title"`
	Overview    string    `json:"overview"`
	ReleaseDate time.Time `json:"releaseDate"`
	Adult       bool      `json:"adult"`
	CreatedBy   string    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// MoviePatch carries a partial update; nil fields are left unchanged.
type MoviePatch struct {
	Title       *string
	Overview    *string
	ReleaseDate *time.Time
	Adult       *bool
}

// Apply returns a copy of m with the patch applied.
func (p MoviePatch) Apply(m Movie) Movie {
	if p.Title != nil {
		m.Title = *p.Title
	}
	if p.Overview != nil {
		m.Overview = *p.Overview
	}
	if p.ReleaseDate != nil {
		m.ReleaseDate = *p.ReleaseDate
	}
	if p.Adult != nil {
		m.Adult = *p.Adult
	}
	return m
}

// TopEntry is one row of a user's ranked list.
type TopEntry struct {
	Ranking int   `json:"ranking"`
	Movie   Movie `json:"movie"`
}

package loadtest

import "time"

// Config holds configuration for a load test run.
type Config struct {
	BaseURL       string        // Base URL of the service
	Users         int           // Number of accounts to register
	MoviesPerUser int           // Movies created in each account
	Workers       int           // Number of concurrent workers
	Timeout       time.Duration // HTTP request timeout
	Verbose       bool          // Log every rank outcome
}

// Stats holds run statistics.
type Stats struct {
	UsersRegistered int
	MoviesCreated   int
	RankRequests    int
	RankAccepted    int
	RankConflicts   int
	RankFailed      int
	ListsVerified   int
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
}

// session is one registered account and the movies it owns.
type session struct {
	email  string
	token  string
	movies []string
}

// claim is a single rank request and its result.
type claim struct {
	user    int
	movieID string
	rank    int
	status  int
}

// envelope mirrors the service's success body.
type envelope[T any] struct {
	Msg  string `json:"msg"`
	Data T      `json:"data"`
}

type authData struct {
	AccessToken string `json:"accessToken"`
}

type movieData struct {
	ID string `json:"_id"`
}

type topEntry struct {
	Ranking int       `json:"ranking"`
	Movie   movieData `json:"movie"`
}

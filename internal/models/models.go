package models

import "time"

// User is a registered player. ID is the Telegram chat id, so it is stable
// across sessions and never reassigned.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Score     int       `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

// Joke is a user-submitted joke. Ids are assigned by the store as
// max(existing)+1, starting at 0 for an empty store, and are never reused.
type Joke struct {
	ID        int64     `json:"id"`
	Body      string    `json:"body"`
	VoteCount int       `json:"vote_count"`
	AuthorID  int64     `json:"author_id"`
	Approved  bool      `json:"approved"`
	CreatedAt time.Time `json:"created_at"`
}

// Vote is one (user, joke) edge. A user votes on a joke at most once and the
// vote cannot be changed afterwards, so the edge set is append-only.
type Vote struct {
	UserID    int64     `json:"user_id"`
	JokeID    int64     `json:"joke_id"`
	Positive  bool      `json:"positive"`
	CreatedAt time.Time `json:"created_at"`
}

// Profile is what /profile shows: the user plus their derived standings.
type Profile struct {
	User           User    `json:"user"`
	Rank           int     `json:"rank"`
	JokesSubmitted int     `json:"jokes_submitted"`
	AverageScore   float64 `json:"average_score"`
}

// LeaderboardEntry is one row of a TopN query.
type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	Username string `json:"username"`
	Score    int    `json:"score"`
}

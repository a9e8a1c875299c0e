package service

import (
	"context"

	"github.com/jac08h/HahOrNahBot/internal/models"
)

// Store is the persistence contract the core runs against. Every operation
// executes inside a single unit of work: WithTx either commits all mutations
// made through the Tx or none of them. Implementations may transparently
// retry fn on transient conflicts, so fn must be safe to run more than once.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is one open unit of work. List methods return rows in stable store
// order (ascending id) so that tie-breaking is deterministic.
type Tx interface {
	UserByID(ctx context.Context, id int64) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	// UsersByScore returns every user ordered ascending by score, ties
	// broken by id.
	UsersByScore(ctx context.Context) ([]models.User, error)

	JokeByID(ctx context.Context, id int64) (*models.Joke, error)
	// CreateJoke assigns joke.ID as max(existing id)+1, or 0 for an empty
	// store, and persists the joke. The id read and the insert happen in
	// the same unit of work.
	CreateJoke(ctx context.Context, joke *models.Joke) error
	DeleteJoke(ctx context.Context, id int64) error
	ApproveJoke(ctx context.Context, id int64) error
	ApprovedJokes(ctx context.Context) ([]models.Joke, error)
	// JokesByVoteCount returns every joke ordered ascending by vote count,
	// ties broken by id.
	JokesByVoteCount(ctx context.Context) ([]models.Joke, error)
	CountJokesByAuthor(ctx context.Context, authorID int64) (int, error)

	// FavoriteJokes returns the jokes userID voted on positively.
	FavoriteJokes(ctx context.Context, userID int64) ([]models.Joke, error)
	VotedJokeIDs(ctx context.Context, userID int64) (map[int64]struct{}, error)
	HasVoted(ctx context.Context, userID, jokeID int64) (bool, error)
	// InsertVote records the edge and fails with ErrDuplicateVote if it
	// already exists.
	InsertVote(ctx context.Context, vote *models.Vote) error

	AdjustScore(ctx context.Context, userID int64, delta int) error
	AdjustVoteCount(ctx context.Context, jokeID int64, delta int) error
}

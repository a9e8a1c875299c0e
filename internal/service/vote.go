package service

import (
	"context"

	"github.com/jac08h/HahOrNahBot/internal/models"
)

// CastVote records a one-time vote by voterID on jokeID. A positive vote
// adds a point to the voter and the joke, a negative vote takes one from
// each. Authors cannot vote on their own jokes and a (voter, joke) pair can
// vote at most once; the self-vote check wins when both would apply.
//
// The score change, the vote edge and the vote-count change commit together
// or not at all.
func (s *Service) CastVote(ctx context.Context, voterID, jokeID int64, positive bool) error {
	return s.store.WithTx(ctx, func(tx Tx) error {
		joke, err := tx.JokeByID(ctx, jokeID)
		if err != nil {
			return err
		}

		if joke.AuthorID == voterID {
			return ErrSelfVote
		}

		voted, err := tx.HasVoted(ctx, voterID, jokeID)
		if err != nil {
			return err
		}
		if voted {
			return ErrDuplicateVote
		}

		delta := 1
		if !positive {
			delta = -1
		}

		if err := tx.AdjustScore(ctx, voterID, delta); err != nil {
			return err
		}

		vote := &models.Vote{
			UserID:   voterID,
			JokeID:   jokeID,
			Positive: positive,
		}
		if err := tx.InsertVote(ctx, vote); err != nil {
			return err
		}

		return tx.AdjustVoteCount(ctx, jokeID, delta)
	})
}

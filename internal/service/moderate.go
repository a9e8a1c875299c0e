package service

import (
	"context"

	"github.com/jac08h/HahOrNahBot/internal/models"
)

// NextPendingJoke returns the head of the approval queue: the unapproved
// joke with the lowest vote count, ties by id. Unlike selection pools there
// is no per-user eligibility filter here; a moderator must be able to reach
// jokes they authored or voted on, otherwise those could never be approved.
func (s *Service) NextPendingJoke(ctx context.Context) (*models.Joke, error) {
	var pending *models.Joke

	err := s.store.WithTx(ctx, func(tx Tx) error {
		jokes, err := tx.JokesByVoteCount(ctx)
		if err != nil {
			return err
		}

		for _, joke := range jokes {
			if !joke.Approved {
				pending = &joke
				return nil
			}
		}
		return ErrNoEligibleJoke
	})
	if err != nil {
		return nil, err
	}

	return pending, nil
}

// ApproveJoke makes a pending joke eligible for random selection. Approval
// is one-way; approving an already approved joke is a no-op.
func (s *Service) ApproveJoke(ctx context.Context, jokeID int64) error {
	return s.store.WithTx(ctx, func(tx Tx) error {
		joke, err := tx.JokeByID(ctx, jokeID)
		if err != nil {
			return err
		}
		if joke.Approved {
			return nil
		}
		return tx.ApproveJoke(ctx, jokeID)
	})
}

// RemoveJoke deletes a joke and cascades: its vote edges disappear, so it
// leaves every user's voted and favorite sets. Cast votes keep their effect
// on user scores. The id is never reused.
func (s *Service) RemoveJoke(ctx context.Context, jokeID int64) error {
	return s.store.WithTx(ctx, func(tx Tx) error {
		if _, err := tx.JokeByID(ctx, jokeID); err != nil {
			return err
		}
		return tx.DeleteJoke(ctx, jokeID)
	})
}

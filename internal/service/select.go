package service

import (
	"context"

	"github.com/jac08h/HahOrNahBot/internal/models"
)

// Pool names the candidate set SelectUnseenJoke draws from.
type Pool int

const (
	// PoolRandom picks uniformly among approved jokes the user has neither
	// authored nor voted on.
	PoolRandom Pool = iota
	// PoolFavorites picks uniformly among the jokes the user voted for
	// positively. No eligibility filter: favorites stay re-readable.
	PoolFavorites
	// PoolBest walks jokes lowest vote count first (ties by id) and
	// returns the first one the user has neither authored nor voted on.
	// Approval is not required here; this pool doubles as the moderation
	// queue, so pending jokes must be reachable through it.
	PoolBest
)

// SelectUnseenJoke returns one joke from the pool for the given user, or
// ErrNoEligibleJoke when the pool is exhausted. The service does not
// remember what it returned; the caller keeps the "last shown joke" for the
// follow-up vote.
func (s *Service) SelectUnseenJoke(ctx context.Context, userID int64, pool Pool) (*models.Joke, error) {
	var picked *models.Joke

	err := s.store.WithTx(ctx, func(tx Tx) error {
		if _, err := tx.UserByID(ctx, userID); err != nil {
			return err
		}

		switch pool {
		case PoolFavorites:
			favorites, err := tx.FavoriteJokes(ctx, userID)
			if err != nil {
				return err
			}
			if len(favorites) == 0 {
				return ErrNoEligibleJoke
			}
			joke := favorites[s.pickIndex(len(favorites))]
			picked = &joke
			return nil

		case PoolBest:
			jokes, err := tx.JokesByVoteCount(ctx)
			if err != nil {
				return err
			}
			eligible, err := s.filterEligible(ctx, tx, userID, jokes)
			if err != nil {
				return err
			}
			if len(eligible) == 0 {
				return ErrNoEligibleJoke
			}
			picked = &eligible[0]
			return nil

		default:
			jokes, err := tx.ApprovedJokes(ctx)
			if err != nil {
				return err
			}
			eligible, err := s.filterEligible(ctx, tx, userID, jokes)
			if err != nil {
				return err
			}
			if len(eligible) == 0 {
				return ErrNoEligibleJoke
			}
			s.shuffleJokes(eligible)
			picked = &eligible[0]
			return nil
		}
	})
	if err != nil {
		return nil, err
	}

	return picked, nil
}

// filterEligible drops jokes the user authored or already voted on,
// preserving input order.
func (s *Service) filterEligible(ctx context.Context, tx Tx, userID int64, jokes []models.Joke) ([]models.Joke, error) {
	voted, err := tx.VotedJokeIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	eligible := make([]models.Joke, 0, len(jokes))
	for _, joke := range jokes {
		if joke.AuthorID == userID {
			continue
		}
		if _, ok := voted[joke.ID]; ok {
			continue
		}
		eligible = append(eligible, joke)
	}

	return eligible, nil
}

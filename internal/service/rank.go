package service

import (
	"context"

	"github.com/jac08h/HahOrNahBot/internal/models"
)

// Rank returns the 1-based position of the user in the full user set ordered
// ascending by score. Every revision of this bot has ranked ascending, so
// the literal ordering is kept until product says otherwise.
func (s *Service) Rank(ctx context.Context, userID int64) (int, error) {
	rank := 0

	err := s.store.WithTx(ctx, func(tx Tx) error {
		users, err := tx.UsersByScore(ctx)
		if err != nil {
			return err
		}

		for i, user := range users {
			if user.ID == userID {
				rank = i + 1
				return nil
			}
		}
		return ErrNotRegistered
	})
	if err != nil {
		return 0, err
	}

	return rank, nil
}

// TopN returns the first n leaderboard rows, ordered ascending by score like
// Rank. n larger than the user count returns everyone.
func (s *Service) TopN(ctx context.Context, n int) ([]models.LeaderboardEntry, error) {
	if n <= 0 {
		return nil, nil
	}

	var entries []models.LeaderboardEntry

	err := s.store.WithTx(ctx, func(tx Tx) error {
		users, err := tx.UsersByScore(ctx)
		if err != nil {
			return err
		}

		if len(users) > n {
			users = users[:n]
		}

		entries = make([]models.LeaderboardEntry, 0, len(users))
		for i, user := range users {
			entries = append(entries, models.LeaderboardEntry{
				Rank:     i + 1,
				Username: user.Username,
				Score:    user.Score,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// AverageScore computes jokesSubmitted/score, or 0 when the score is 0.
// The original bot divides this way round (not points per joke); kept
// literally until the intended semantics are confirmed.
func (s *Service) AverageScore(ctx context.Context, userID int64) (float64, error) {
	avg := 0.0

	err := s.store.WithTx(ctx, func(tx Tx) error {
		user, err := tx.UserByID(ctx, userID)
		if err != nil {
			return err
		}
		if user.Score == 0 {
			return nil
		}

		submitted, err := tx.CountJokesByAuthor(ctx, userID)
		if err != nil {
			return err
		}
		avg = float64(submitted) / float64(user.Score)
		return nil
	})
	if err != nil {
		return 0, err
	}

	return avg, nil
}

// Profile gathers everything /profile displays in one unit of work.
func (s *Service) Profile(ctx context.Context, userID int64) (*models.Profile, error) {
	var profile *models.Profile

	err := s.store.WithTx(ctx, func(tx Tx) error {
		user, err := tx.UserByID(ctx, userID)
		if err != nil {
			return err
		}

		users, err := tx.UsersByScore(ctx)
		if err != nil {
			return err
		}
		rank := 0
		for i, u := range users {
			if u.ID == userID {
				rank = i + 1
				break
			}
		}

		submitted, err := tx.CountJokesByAuthor(ctx, userID)
		if err != nil {
			return err
		}

		avg := 0.0
		if user.Score != 0 {
			avg = float64(submitted) / float64(user.Score)
		}

		profile = &models.Profile{
			User:           *user,
			Rank:           rank,
			JokesSubmitted: submitted,
			AverageScore:   avg,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return profile, nil
}

package service

import (
	"context"
	"errors"

	"github.com/jac08h/HahOrNahBot/internal/models"
)

const (
	UsernameLengthMin = 5
	UsernameLengthMax = 20
	JokeLengthMin     = 10
	JokeLengthMax     = 1000
)

func validUsernameChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z':
		return true
	case c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return true
	case c == '-' || c == '_':
		return true
	}
	return false
}

func validateUsername(username string) error {
	for i := 0; i < len(username); i++ {
		if !validUsernameChar(username[i]) {
			return ErrInvalidCharacters
		}
	}

	if len(username) < UsernameLengthMin {
		return ErrTooShort
	}
	if len(username) > UsernameLengthMax {
		return ErrTooLong
	}

	return nil
}

// RegisterUser creates a new user with score 0. The id is the external chat
// id and must not be registered already.
func (s *Service) RegisterUser(ctx context.Context, id int64, username string) (*models.User, error) {
	var user *models.User

	err := s.store.WithTx(ctx, func(tx Tx) error {
		existing, err := tx.UserByID(ctx, id)
		if err != nil && !errors.Is(err, ErrNotRegistered) {
			return err
		}
		if existing != nil {
			return ErrAlreadyRegistered
		}

		if err := validateUsername(username); err != nil {
			return err
		}

		user = &models.User{
			ID:       id,
			Username: username,
			Score:    0,
		}
		return tx.CreateUser(ctx, user)
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

// SubmitJoke validates the body, assigns the next joke id and persists the
// joke. New jokes start with no votes and await approval before they can
// show up in random selection.
func (s *Service) SubmitJoke(ctx context.Context, authorID int64, body string) (*models.Joke, error) {
	if len(body) < JokeLengthMin {
		return nil, ErrTooShort
	}
	if len(body) > JokeLengthMax {
		return nil, ErrTooLong
	}

	var joke *models.Joke

	err := s.store.WithTx(ctx, func(tx Tx) error {
		if _, err := tx.UserByID(ctx, authorID); err != nil {
			return err
		}

		joke = &models.Joke{
			Body:      body,
			VoteCount: 0,
			AuthorID:  authorID,
			Approved:  false,
		}
		return tx.CreateJoke(ctx, joke)
	})
	if err != nil {
		return nil, err
	}

	return joke, nil
}

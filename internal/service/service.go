package service

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/jac08h/HahOrNahBot/internal/models"
)

// Service implements the joke-bot core: registration, submission, voting,
// selection, ranking and moderation. It holds no per-conversation state;
// "last shown joke" belongs to the caller.
type Service struct {
	store Store

	mu  sync.Mutex
	rng *rand.Rand
}

func New(store Store, opts ...Option) *Service {
	s := &Service{
		store: store,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

type Option func(*Service)

// WithRand replaces the selection randomness source. Used by tests to make
// shuffles reproducible.
func WithRand(rng *rand.Rand) Option {
	return func(s *Service) {
		s.rng = rng
	}
}

// GetUser resolves an external chat id to a registered user, failing with
// ErrNotRegistered when the id is unknown.
func (s *Service) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var user *models.User

	err := s.store.WithTx(ctx, func(tx Tx) error {
		u, err := tx.UserByID(ctx, id)
		if err != nil {
			return err
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (s *Service) shuffleJokes(jokes []models.Joke) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rng.Shuffle(len(jokes), func(i, j int) {
		jokes[i], jokes[j] = jokes[j], jokes[i]
	})
}

func (s *Service) pickIndex(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.rng.Intn(n)
}

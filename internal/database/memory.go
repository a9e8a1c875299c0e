package database

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jac08h/HahOrNahBot/internal/models"
	"github.com/jac08h/HahOrNahBot/internal/service"
)

type voteKey struct {
	userID int64
	jokeID int64
}

// MemoryStore implements service.Store in process memory. It backs local
// runs without Postgres (DB_DRIVER=memory) and the service tests. Units of
// work are serialized by a single mutex; a failed unit of work restores the
// pre-transaction state, so the commit-all-or-nothing contract holds here
// too.
type MemoryStore struct {
	mu    sync.Mutex
	users map[int64]models.User
	jokes map[int64]models.Joke
	votes map[voteKey]models.Vote
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[int64]models.User),
		jokes: make(map[int64]models.Joke),
		votes: make(map[voteKey]models.Vote),
	}
}

func (s *MemoryStore) WithTx(ctx context.Context, fn func(tx service.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, jokes, votes := s.snapshot()

	if err := fn(&memoryTx{store: s}); err != nil {
		s.users, s.jokes, s.votes = users, jokes, votes
		return err
	}
	return nil
}

func (s *MemoryStore) snapshot() (map[int64]models.User, map[int64]models.Joke, map[voteKey]models.Vote) {
	users := make(map[int64]models.User, len(s.users))
	for id, user := range s.users {
		users[id] = user
	}
	jokes := make(map[int64]models.Joke, len(s.jokes))
	for id, joke := range s.jokes {
		jokes[id] = joke
	}
	votes := make(map[voteKey]models.Vote, len(s.votes))
	for key, vote := range s.votes {
		votes[key] = vote
	}
	return users, jokes, votes
}

type memoryTx struct {
	store *MemoryStore
}

func (t *memoryTx) UserByID(_ context.Context, id int64) (*models.User, error) {
	user, ok := t.store.users[id]
	if !ok {
		return nil, service.ErrNotRegistered
	}
	return &user, nil
}

func (t *memoryTx) CreateUser(_ context.Context, user *models.User) error {
	if _, ok := t.store.users[user.ID]; ok {
		return service.ErrAlreadyRegistered
	}
	user.CreatedAt = time.Now()
	t.store.users[user.ID] = *user
	return nil
}

func (t *memoryTx) UsersByScore(_ context.Context) ([]models.User, error) {
	users := make([]models.User, 0, len(t.store.users))
	for _, user := range t.store.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].Score != users[j].Score {
			return users[i].Score < users[j].Score
		}
		return users[i].ID < users[j].ID
	})
	return users, nil
}

func (t *memoryTx) JokeByID(_ context.Context, id int64) (*models.Joke, error) {
	joke, ok := t.store.jokes[id]
	if !ok {
		return nil, service.ErrJokeNotFound
	}
	return &joke, nil
}

func (t *memoryTx) CreateJoke(_ context.Context, joke *models.Joke) error {
	nextID := int64(0)
	for id := range t.store.jokes {
		if id+1 > nextID {
			nextID = id + 1
		}
	}
	joke.ID = nextID
	joke.CreatedAt = time.Now()
	t.store.jokes[joke.ID] = *joke
	return nil
}

func (t *memoryTx) DeleteJoke(_ context.Context, id int64) error {
	if _, ok := t.store.jokes[id]; !ok {
		return service.ErrJokeNotFound
	}
	delete(t.store.jokes, id)
	for key := range t.store.votes {
		if key.jokeID == id {
			delete(t.store.votes, key)
		}
	}
	return nil
}

func (t *memoryTx) ApproveJoke(_ context.Context, id int64) error {
	joke, ok := t.store.jokes[id]
	if !ok {
		return service.ErrJokeNotFound
	}
	joke.Approved = true
	t.store.jokes[id] = joke
	return nil
}

func (t *memoryTx) ApprovedJokes(_ context.Context) ([]models.Joke, error) {
	jokes := t.allJokes()
	approved := jokes[:0]
	for _, joke := range jokes {
		if joke.Approved {
			approved = append(approved, joke)
		}
	}
	return approved, nil
}

func (t *memoryTx) JokesByVoteCount(_ context.Context) ([]models.Joke, error) {
	jokes := t.allJokes()
	sort.Slice(jokes, func(i, j int) bool {
		if jokes[i].VoteCount != jokes[j].VoteCount {
			return jokes[i].VoteCount < jokes[j].VoteCount
		}
		return jokes[i].ID < jokes[j].ID
	})
	return jokes, nil
}

func (t *memoryTx) CountJokesByAuthor(_ context.Context, authorID int64) (int, error) {
	count := 0
	for _, joke := range t.store.jokes {
		if joke.AuthorID == authorID {
			count++
		}
	}
	return count, nil
}

func (t *memoryTx) FavoriteJokes(_ context.Context, userID int64) ([]models.Joke, error) {
	var favorites []models.Joke
	for key, vote := range t.store.votes {
		if key.userID != userID || !vote.Positive {
			continue
		}
		if joke, ok := t.store.jokes[key.jokeID]; ok {
			favorites = append(favorites, joke)
		}
	}
	sort.Slice(favorites, func(i, j int) bool { return favorites[i].ID < favorites[j].ID })
	return favorites, nil
}

func (t *memoryTx) VotedJokeIDs(_ context.Context, userID int64) (map[int64]struct{}, error) {
	voted := make(map[int64]struct{})
	for key := range t.store.votes {
		if key.userID == userID {
			voted[key.jokeID] = struct{}{}
		}
	}
	return voted, nil
}

func (t *memoryTx) HasVoted(_ context.Context, userID, jokeID int64) (bool, error) {
	_, ok := t.store.votes[voteKey{userID: userID, jokeID: jokeID}]
	return ok, nil
}

func (t *memoryTx) InsertVote(_ context.Context, vote *models.Vote) error {
	key := voteKey{userID: vote.UserID, jokeID: vote.JokeID}
	if _, ok := t.store.votes[key]; ok {
		return service.ErrDuplicateVote
	}
	vote.CreatedAt = time.Now()
	t.store.votes[key] = *vote
	return nil
}

func (t *memoryTx) AdjustScore(_ context.Context, userID int64, delta int) error {
	user, ok := t.store.users[userID]
	if !ok {
		return service.ErrNotRegistered
	}
	user.Score += delta
	t.store.users[userID] = user
	return nil
}

func (t *memoryTx) AdjustVoteCount(_ context.Context, jokeID int64, delta int) error {
	joke, ok := t.store.jokes[jokeID]
	if !ok {
		return service.ErrJokeNotFound
	}
	joke.VoteCount += delta
	t.store.jokes[jokeID] = joke
	return nil
}

func (t *memoryTx) allJokes() []models.Joke {
	jokes := make([]models.Joke, 0, len(t.store.jokes))
	for _, joke := range t.store.jokes {
		jokes = append(jokes, joke)
	}
	sort.Slice(jokes, func(i, j int) bool { return jokes[i].ID < jokes[j].ID })
	return jokes
}

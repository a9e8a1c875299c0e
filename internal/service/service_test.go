package service_test

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/jac08h/HahOrNahBot/internal/database"
	"github.com/jac08h/HahOrNahBot/internal/models"
	"github.com/jac08h/HahOrNahBot/internal/service"
)

func newService(t *testing.T) (*service.Service, *database.MemoryStore) {
	t.Helper()
	store := database.NewMemoryStore()
	svc := service.New(store, service.WithRand(rand.New(rand.NewSource(1))))
	return svc, store
}

func register(t *testing.T, svc *service.Service, id int64, username string) *models.User {
	t.Helper()
	user, err := svc.RegisterUser(context.Background(), id, username)
	if err != nil {
		t.Fatalf("RegisterUser(%d, %q) = %v", id, username, err)
	}
	return user
}

func submit(t *testing.T, svc *service.Service, authorID int64, body string) *models.Joke {
	t.Helper()
	joke, err := svc.SubmitJoke(context.Background(), authorID, body)
	if err != nil {
		t.Fatalf("SubmitJoke(%d) = %v", authorID, err)
	}
	return joke
}

func jokeByID(t *testing.T, store *database.MemoryStore, id int64) *models.Joke {
	t.Helper()
	var joke *models.Joke
	err := store.WithTx(context.Background(), func(tx service.Tx) error {
		j, err := tx.JokeByID(context.Background(), id)
		if err != nil {
			return err
		}
		joke = j
		return nil
	})
	if err != nil {
		t.Fatalf("JokeByID(%d) = %v", id, err)
	}
	return joke
}

func TestRegisterUser(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		username string
		wantErr  error
	}{
		{"too short", "ab", service.ErrTooShort},
		{"too long", strings.Repeat("a", 21), service.ErrTooLong},
		{"invalid characters", "has space!", service.ErrInvalidCharacters},
		{"valid", "valid_name-1", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := svc.RegisterUser(ctx, 100, tt.username)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("RegisterUser(%q) = %v, want %v", tt.username, err, tt.wantErr)
			}
			if tt.wantErr == nil && user.Score != 0 {
				t.Errorf("new user score = %d, want 0", user.Score)
			}
		})
	}
}

func TestRegisterUserAlreadyRegistered(t *testing.T) {
	svc, _ := newService(t)

	register(t, svc, 1, "first_name")

	_, err := svc.RegisterUser(context.Background(), 1, "other_name")
	if !errors.Is(err, service.ErrAlreadyRegistered) {
		t.Fatalf("second RegisterUser = %v, want ErrAlreadyRegistered", err)
	}
}

func TestGetUserNotRegistered(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.GetUser(context.Background(), 42)
	if !errors.Is(err, service.ErrNotRegistered) {
		t.Fatalf("GetUser(42) = %v, want ErrNotRegistered", err)
	}
}

func TestSubmitJokeAssignsSequentialIDs(t *testing.T) {
	svc, _ := newService(t)
	register(t, svc, 1, "author_one")

	for want := int64(0); want < 3; want++ {
		joke := submit(t, svc, 1, "a joke long enough to pass")
		if joke.ID != want {
			t.Errorf("joke id = %d, want %d", joke.ID, want)
		}
		if joke.VoteCount != 0 {
			t.Errorf("new joke vote count = %d, want 0", joke.VoteCount)
		}
		if joke.Approved {
			t.Error("new joke should not be approved")
		}
	}
}

func TestSubmitJokeValidation(t *testing.T) {
	svc, _ := newService(t)
	register(t, svc, 1, "author_one")
	ctx := context.Background()

	if _, err := svc.SubmitJoke(ctx, 1, "short"); !errors.Is(err, service.ErrTooShort) {
		t.Errorf("short joke = %v, want ErrTooShort", err)
	}
	if _, err := svc.SubmitJoke(ctx, 1, strings.Repeat("a", 1001)); !errors.Is(err, service.ErrTooLong) {
		t.Errorf("long joke = %v, want ErrTooLong", err)
	}
	if _, err := svc.SubmitJoke(ctx, 99, "a joke long enough to pass"); !errors.Is(err, service.ErrNotRegistered) {
		t.Errorf("unregistered author = %v, want ErrNotRegistered", err)
	}
}

func TestCastVote(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	register(t, svc, 1, "author_one")
	voter := register(t, svc, 2, "voter_two")
	joke := submit(t, svc, 1, "a joke long enough to pass")

	if err := svc.CastVote(ctx, voter.ID, joke.ID, true); err != nil {
		t.Fatalf("first CastVote = %v", err)
	}

	got, err := svc.GetUser(ctx, voter.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Score != 1 {
		t.Errorf("voter score = %d, want 1", got.Score)
	}
	if vc := jokeByID(t, store, joke.ID).VoteCount; vc != 1 {
		t.Errorf("joke vote count = %d, want 1", vc)
	}

	// A second vote must fail regardless of polarity and change nothing.
	for _, positive := range []bool{true, false} {
		if err := svc.CastVote(ctx, voter.ID, joke.ID, positive); !errors.Is(err, service.ErrDuplicateVote) {
			t.Fatalf("second CastVote(positive=%v) = %v, want ErrDuplicateVote", positive, err)
		}
	}

	got, err = svc.GetUser(ctx, voter.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Score != 1 {
		t.Errorf("voter score after duplicate votes = %d, want 1", got.Score)
	}
	if vc := jokeByID(t, store, joke.ID).VoteCount; vc != 1 {
		t.Errorf("joke vote count after duplicate votes = %d, want 1", vc)
	}
}

func TestCastVoteNegative(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	register(t, svc, 1, "author_one")
	voter := register(t, svc, 2, "voter_two")
	joke := submit(t, svc, 1, "a joke long enough to pass")

	if err := svc.CastVote(ctx, voter.ID, joke.ID, false); err != nil {
		t.Fatalf("CastVote = %v", err)
	}

	got, err := svc.GetUser(ctx, voter.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Score != -1 {
		t.Errorf("voter score = %d, want -1", got.Score)
	}
	if vc := jokeByID(t, store, joke.ID).VoteCount; vc != -1 {
		t.Errorf("joke vote count = %d, want -1", vc)
	}
}

func TestCastVoteSelf(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	author := register(t, svc, 1, "author_one")
	joke := submit(t, svc, 1, "a joke long enough to pass")

	for _, positive := range []bool{true, false} {
		if err := svc.CastVote(ctx, author.ID, joke.ID, positive); !errors.Is(err, service.ErrSelfVote) {
			t.Fatalf("CastVote on own joke = %v, want ErrSelfVote", err)
		}
	}

	got, err := svc.GetUser(ctx, author.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Score != 0 {
		t.Errorf("author score = %d, want 0", got.Score)
	}
	if vc := jokeByID(t, store, joke.ID).VoteCount; vc != 0 {
		t.Errorf("joke vote count = %d, want 0", vc)
	}
}

func TestSelectUnseenJokeRandom(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	register(t, svc, 1, "author_one")
	register(t, svc, 2, "voter_two")

	var ids []int64
	for i := 0; i < 5; i++ {
		joke := submit(t, svc, 1, "a joke long enough to pass")
		if err := svc.ApproveJoke(ctx, joke.ID); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, joke.ID)
	}
	// The author's unseen pool is empty: all jokes are their own.
	if _, err := svc.SelectUnseenJoke(ctx, 1, service.PoolRandom); !errors.Is(err, service.ErrNoEligibleJoke) {
		t.Fatalf("author selection = %v, want ErrNoEligibleJoke", err)
	}

	// Voting after each selection must walk every joke exactly once.
	seen := make(map[int64]bool)
	for range ids {
		joke, err := svc.SelectUnseenJoke(ctx, 2, service.PoolRandom)
		if err != nil {
			t.Fatalf("SelectUnseenJoke = %v", err)
		}
		if joke.AuthorID == 2 {
			t.Fatalf("selected own joke %d", joke.ID)
		}
		if seen[joke.ID] {
			t.Fatalf("joke %d selected twice", joke.ID)
		}
		seen[joke.ID] = true
		if err := svc.CastVote(ctx, 2, joke.ID, true); err != nil {
			t.Fatalf("CastVote = %v", err)
		}
	}

	if len(seen) != len(ids) {
		t.Errorf("saw %d jokes, want %d", len(seen), len(ids))
	}
	if _, err := svc.SelectUnseenJoke(ctx, 2, service.PoolRandom); !errors.Is(err, service.ErrNoEligibleJoke) {
		t.Fatalf("exhausted selection = %v, want ErrNoEligibleJoke", err)
	}
}

func TestSelectUnseenJokeRandomRequiresApproval(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	register(t, svc, 1, "author_one")
	register(t, svc, 2, "voter_two")
	joke := submit(t, svc, 1, "a joke long enough to pass")

	if _, err := svc.SelectUnseenJoke(ctx, 2, service.PoolRandom); !errors.Is(err, service.ErrNoEligibleJoke) {
		t.Fatalf("pending joke selected from random pool: %v", err)
	}

	if err := svc.ApproveJoke(ctx, joke.ID); err != nil {
		t.Fatal(err)
	}
	got, err := svc.SelectUnseenJoke(ctx, 2, service.PoolRandom)
	if err != nil {
		t.Fatalf("SelectUnseenJoke after approval = %v", err)
	}
	if got.ID != joke.ID {
		t.Errorf("selected joke %d, want %d", got.ID, joke.ID)
	}
}

func TestSelectUnseenJokeBest(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	register(t, svc, 1, "author_one")
	register(t, svc, 2, "voter_two")
	register(t, svc, 3, "voter_three")

	first := submit(t, svc, 1, "a joke long enough to pass")
	second := submit(t, svc, 1, "another joke long enough too")

	// Push the first joke above the second.
	if err := svc.CastVote(ctx, 3, first.ID, true); err != nil {
		t.Fatal(err)
	}

	// Lowest vote count comes first, deterministically.
	got, err := svc.SelectUnseenJoke(ctx, 2, service.PoolBest)
	if err != nil {
		t.Fatalf("SelectUnseenJoke = %v", err)
	}
	if got.ID != second.ID {
		t.Errorf("best pool returned joke %d, want %d", got.ID, second.ID)
	}

	if err := svc.CastVote(ctx, 2, second.ID, false); err != nil {
		t.Fatal(err)
	}
	got, err = svc.SelectUnseenJoke(ctx, 2, service.PoolBest)
	if err != nil {
		t.Fatalf("SelectUnseenJoke = %v", err)
	}
	if got.ID != first.ID {
		t.Errorf("best pool returned joke %d, want %d", got.ID, first.ID)
	}
}

func TestSelectUnseenJokeFavorites(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	register(t, svc, 1, "author_one")
	register(t, svc, 2, "voter_two")

	liked := submit(t, svc, 1, "a joke long enough to pass")
	disliked := submit(t, svc, 1, "another joke long enough too")

	if _, err := svc.SelectUnseenJoke(ctx, 2, service.PoolFavorites); !errors.Is(err, service.ErrNoEligibleJoke) {
		t.Fatalf("empty favorites = %v, want ErrNoEligibleJoke", err)
	}

	if err := svc.CastVote(ctx, 2, liked.ID, true); err != nil {
		t.Fatal(err)
	}
	if err := svc.CastVote(ctx, 2, disliked.ID, false); err != nil {
		t.Fatal(err)
	}

	// Only the positively voted joke is a favorite, and it stays
	// re-readable across calls.
	for i := 0; i < 5; i++ {
		joke, err := svc.SelectUnseenJoke(ctx, 2, service.PoolFavorites)
		if err != nil {
			t.Fatalf("SelectUnseenJoke = %v", err)
		}
		if joke.ID != liked.ID {
			t.Fatalf("favorites returned joke %d, want %d", joke.ID, liked.ID)
		}
	}
}

func TestRankAndTopN(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	register(t, svc, 1, "user_one")
	register(t, svc, 2, "user_two")
	register(t, svc, 3, "user_three")

	scores := map[int64]int{1: 3, 2: -1, 3: 5}
	err := store.WithTx(ctx, func(tx service.Tx) error {
		for id, score := range scores {
			if err := tx.AdjustScore(ctx, id, score); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	entries, err := svc.TopN(ctx, 3)
	if err != nil {
		t.Fatalf("TopN = %v", err)
	}

	want := []models.LeaderboardEntry{
		{Rank: 1, Username: "user_two", Score: -1},
		{Rank: 2, Username: "user_one", Score: 3},
		{Rank: 3, Username: "user_three", Score: 5},
	}
	if len(entries) != len(want) {
		t.Fatalf("TopN returned %d entries, want %d", len(entries), len(want))
	}
	for i, entry := range entries {
		if entry != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, entry, want[i])
		}
	}

	for id, wantRank := range map[int64]int{2: 1, 1: 2, 3: 3} {
		rank, err := svc.Rank(ctx, id)
		if err != nil {
			t.Fatalf("Rank(%d) = %v", id, err)
		}
		if rank != wantRank {
			t.Errorf("Rank(%d) = %d, want %d", id, rank, wantRank)
		}
	}

	if _, err := svc.Rank(ctx, 99); !errors.Is(err, service.ErrNotRegistered) {
		t.Errorf("Rank(99) = %v, want ErrNotRegistered", err)
	}
}

func TestAverageScore(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	register(t, svc, 1, "author_one")
	submit(t, svc, 1, "a joke long enough to pass")
	submit(t, svc, 1, "another joke long enough too")

	// Score 0 short-circuits to 0 before any division.
	avg, err := svc.AverageScore(ctx, 1)
	if err != nil {
		t.Fatalf("AverageScore = %v", err)
	}
	if avg != 0 {
		t.Errorf("AverageScore with zero score = %v, want 0", avg)
	}

	err = store.WithTx(ctx, func(tx service.Tx) error {
		return tx.AdjustScore(ctx, 1, 4)
	})
	if err != nil {
		t.Fatal(err)
	}

	// Kept literal: jokes submitted divided by score.
	avg, err = svc.AverageScore(ctx, 1)
	if err != nil {
		t.Fatalf("AverageScore = %v", err)
	}
	if avg != 0.5 {
		t.Errorf("AverageScore = %v, want 0.5", avg)
	}
}

func TestProfile(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	register(t, svc, 1, "author_one")
	register(t, svc, 2, "voter_two")
	joke := submit(t, svc, 1, "a joke long enough to pass")

	if err := svc.CastVote(ctx, 2, joke.ID, true); err != nil {
		t.Fatal(err)
	}

	profile, err := svc.Profile(ctx, 1)
	if err != nil {
		t.Fatalf("Profile = %v", err)
	}
	if profile.User.Username != "author_one" {
		t.Errorf("username = %q", profile.User.Username)
	}
	if profile.JokesSubmitted != 1 {
		t.Errorf("jokes submitted = %d, want 1", profile.JokesSubmitted)
	}
	if profile.Rank != 1 {
		t.Errorf("rank = %d, want 1 (score 0 sorts below the voter's 1)", profile.Rank)
	}
}

func TestRemoveJokeCascades(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	register(t, svc, 1, "author_one")
	register(t, svc, 2, "voter_two")
	joke := submit(t, svc, 1, "a joke long enough to pass")

	if err := svc.CastVote(ctx, 2, joke.ID, true); err != nil {
		t.Fatal(err)
	}
	if err := svc.RemoveJoke(ctx, joke.ID); err != nil {
		t.Fatalf("RemoveJoke = %v", err)
	}

	err := store.WithTx(ctx, func(tx service.Tx) error {
		if _, err := tx.JokeByID(ctx, joke.ID); !errors.Is(err, service.ErrJokeNotFound) {
			t.Errorf("JokeByID after delete = %v, want ErrJokeNotFound", err)
		}

		voted, err := tx.VotedJokeIDs(ctx, 2)
		if err != nil {
			return err
		}
		if _, ok := voted[joke.ID]; ok {
			t.Error("deleted joke still in voted set")
		}

		favorites, err := tx.FavoriteJokes(ctx, 2)
		if err != nil {
			return err
		}
		if len(favorites) != 0 {
			t.Errorf("deleted joke still in favorites: %v", favorites)
		}

		count, err := tx.CountJokesByAuthor(ctx, 1)
		if err != nil {
			return err
		}
		if count != 0 {
			t.Errorf("author still has %d jokes after delete", count)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.RemoveJoke(ctx, joke.ID); !errors.Is(err, service.ErrJokeNotFound) {
		t.Errorf("second RemoveJoke = %v, want ErrJokeNotFound", err)
	}
}

func TestCastVoteUnregisteredVoter(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	register(t, svc, 1, "author_one")
	joke := submit(t, svc, 1, "a joke long enough to pass")

	// The bot maps this sentinel to its registration prompt, so it must
	// come through rather than a generic storage failure.
	if err := svc.CastVote(ctx, 99, joke.ID, true); !errors.Is(err, service.ErrNotRegistered) {
		t.Fatalf("CastVote by unregistered voter = %v, want ErrNotRegistered", err)
	}
}

func TestNextPendingJoke(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	admin := register(t, svc, 1, "admin_user")
	register(t, svc, 2, "voter_two")

	// The admin's own pending joke must be reachable: the approval queue
	// carries no per-user eligibility filter.
	own := submit(t, svc, admin.ID, "a joke long enough to pass")
	other := submit(t, svc, 2, "another joke long enough too")

	got, err := svc.NextPendingJoke(ctx)
	if err != nil {
		t.Fatalf("NextPendingJoke = %v", err)
	}
	if got.ID != own.ID {
		t.Errorf("pending head = joke %d, want %d", got.ID, own.ID)
	}

	// A joke the admin voted on stays in the queue too.
	if err := svc.CastVote(ctx, admin.ID, other.ID, true); err != nil {
		t.Fatal(err)
	}
	if err := svc.ApproveJoke(ctx, own.ID); err != nil {
		t.Fatal(err)
	}

	got, err = svc.NextPendingJoke(ctx)
	if err != nil {
		t.Fatalf("NextPendingJoke = %v", err)
	}
	if got.ID != other.ID {
		t.Errorf("pending head = joke %d, want %d", got.ID, other.ID)
	}

	if err := svc.ApproveJoke(ctx, other.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.NextPendingJoke(ctx); !errors.Is(err, service.ErrNoEligibleJoke) {
		t.Fatalf("empty queue = %v, want ErrNoEligibleJoke", err)
	}
}

func TestApproveJokeIdempotent(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	register(t, svc, 1, "author_one")
	joke := submit(t, svc, 1, "a joke long enough to pass")

	if err := svc.ApproveJoke(ctx, joke.ID); err != nil {
		t.Fatalf("ApproveJoke = %v", err)
	}
	if err := svc.ApproveJoke(ctx, joke.ID); err != nil {
		t.Fatalf("second ApproveJoke = %v", err)
	}
	if err := svc.ApproveJoke(ctx, 99); !errors.Is(err, service.ErrJokeNotFound) {
		t.Errorf("ApproveJoke(99) = %v, want ErrJokeNotFound", err)
	}
}

package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jac08h/HahOrNahBot/internal/models"
	"github.com/jac08h/HahOrNahBot/internal/service"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sethvargo/go-retry"
)

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
)

// PostgresStore implements service.Store on a pgx pool. Each unit of work is
// one database transaction; transactions that fail on serialization,
// deadlock or a joke-id collision are retried transparently.
type PostgresStore struct {
	db *DB
}

func NewPostgresStore(db *DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) WithTx(ctx context.Context, fn func(tx service.Tx) error) error {
	backoff := retry.WithMaxRetries(3, retry.NewExponential(25*time.Millisecond))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := s.runTx(ctx, fn)
		if isRetryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (s *PostgresStore) runTx(ctx context.Context, fn func(tx service.Tx) error) error {
	pgxTx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return storageError(err)
	}
	defer pgxTx.Rollback(ctx)

	if err := fn(&postgresTx{tx: pgxTx}); err != nil {
		return err
	}

	if err := pgxTx.Commit(ctx); err != nil {
		return storageError(err)
	}
	return nil
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case pgSerializationFailure, pgDeadlockDetected:
		return true
	case pgUniqueViolation:
		// Two concurrent submissions can race for the same max(id)+1.
		return pgErr.TableName == "jokes"
	}
	return false
}

// storageError keeps both the taxonomy sentinel and the driver error in the
// chain: callers match service.ErrStorageUnavailable, the retry layer still
// sees the pgconn.PgError underneath.
func storageError(err error) error {
	return fmt.Errorf("%w: %w", service.ErrStorageUnavailable, err)
}

type postgresTx struct {
	tx pgx.Tx
}

func (t *postgresTx) UserByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT id, username, score, created_at FROM users WHERE id = $1`

	var user models.User
	err := t.tx.QueryRow(ctx, query, id).Scan(&user.ID, &user.Username, &user.Score, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrNotRegistered
		}
		return nil, storageError(err)
	}
	return &user, nil
}

func (t *postgresTx) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, username, score)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`
	err := t.tx.QueryRow(ctx, query, user.ID, user.Username, user.Score).Scan(&user.CreatedAt)
	if err != nil {
		// Two concurrent registrations of the same chat id race past the
		// existence check; the loser hits the primary key.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return service.ErrAlreadyRegistered
		}
		return storageError(err)
	}
	return nil
}

func (t *postgresTx) UsersByScore(ctx context.Context) ([]models.User, error) {
	query := `SELECT id, username, score, created_at FROM users ORDER BY score, id`

	rows, err := t.tx.Query(ctx, query)
	if err != nil {
		return nil, storageError(err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.ID, &user.Username, &user.Score, &user.CreatedAt); err != nil {
			return nil, storageError(err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError(err)
	}
	return users, nil
}

func (t *postgresTx) JokeByID(ctx context.Context, id int64) (*models.Joke, error) {
	query := `SELECT id, body, vote_count, author_id, approved, created_at FROM jokes WHERE id = $1`

	var joke models.Joke
	err := t.tx.QueryRow(ctx, query, id).Scan(
		&joke.ID, &joke.Body, &joke.VoteCount, &joke.AuthorID, &joke.Approved, &joke.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrJokeNotFound
		}
		return nil, storageError(err)
	}
	return &joke, nil
}

func (t *postgresTx) CreateJoke(ctx context.Context, joke *models.Joke) error {
	// Id assignment and insert in one statement; a collision with a
	// concurrent submission aborts the transaction and WithTx retries.
	query := `
		INSERT INTO jokes (id, body, vote_count, author_id, approved)
		SELECT COALESCE(MAX(id) + 1, 0), $1, $2, $3, $4 FROM jokes
		RETURNING id, created_at
	`
	err := t.tx.QueryRow(ctx, query, joke.Body, joke.VoteCount, joke.AuthorID, joke.Approved).
		Scan(&joke.ID, &joke.CreatedAt)
	if err != nil {
		return storageError(err)
	}
	return nil
}

func (t *postgresTx) DeleteJoke(ctx context.Context, id int64) error {
	// Vote edges go with the joke via ON DELETE CASCADE.
	tag, err := t.tx.Exec(ctx, `DELETE FROM jokes WHERE id = $1`, id)
	if err != nil {
		return storageError(err)
	}
	if tag.RowsAffected() == 0 {
		return service.ErrJokeNotFound
	}
	return nil
}

func (t *postgresTx) ApproveJoke(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE jokes SET approved = TRUE WHERE id = $1`, id)
	if err != nil {
		return storageError(err)
	}
	if tag.RowsAffected() == 0 {
		return service.ErrJokeNotFound
	}
	return nil
}

func (t *postgresTx) ApprovedJokes(ctx context.Context) ([]models.Joke, error) {
	query := `
		SELECT id, body, vote_count, author_id, approved, created_at
		FROM jokes
		WHERE approved
		ORDER BY id
	`
	return t.queryJokes(ctx, query)
}

func (t *postgresTx) JokesByVoteCount(ctx context.Context) ([]models.Joke, error) {
	query := `
		SELECT id, body, vote_count, author_id, approved, created_at
		FROM jokes
		ORDER BY vote_count, id
	`
	return t.queryJokes(ctx, query)
}

func (t *postgresTx) CountJokesByAuthor(ctx context.Context, authorID int64) (int, error) {
	var count int
	err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM jokes WHERE author_id = $1`, authorID).Scan(&count)
	if err != nil {
		return 0, storageError(err)
	}
	return count, nil
}

func (t *postgresTx) FavoriteJokes(ctx context.Context, userID int64) ([]models.Joke, error) {
	query := `
		SELECT j.id, j.body, j.vote_count, j.author_id, j.approved, j.created_at
		FROM jokes j
		JOIN votes v ON v.joke_id = j.id
		WHERE v.user_id = $1 AND v.positive
		ORDER BY j.id
	`
	return t.queryJokes(ctx, query, userID)
}

func (t *postgresTx) VotedJokeIDs(ctx context.Context, userID int64) (map[int64]struct{}, error) {
	rows, err := t.tx.Query(ctx, `SELECT joke_id FROM votes WHERE user_id = $1`, userID)
	if err != nil {
		return nil, storageError(err)
	}
	defer rows.Close()

	voted := make(map[int64]struct{})
	for rows.Next() {
		var jokeID int64
		if err := rows.Scan(&jokeID); err != nil {
			return nil, storageError(err)
		}
		voted[jokeID] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, storageError(err)
	}
	return voted, nil
}

func (t *postgresTx) HasVoted(ctx context.Context, userID, jokeID int64) (bool, error) {
	var voted bool
	err := t.tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM votes WHERE user_id = $1 AND joke_id = $2)`,
		userID, jokeID,
	).Scan(&voted)
	if err != nil {
		return false, storageError(err)
	}
	return voted, nil
}

func (t *postgresTx) InsertVote(ctx context.Context, vote *models.Vote) error {
	query := `
		INSERT INTO votes (user_id, joke_id, positive)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`
	err := t.tx.QueryRow(ctx, query, vote.UserID, vote.JokeID, vote.Positive).Scan(&vote.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return service.ErrDuplicateVote
		}
		return storageError(err)
	}
	return nil
}

func (t *postgresTx) AdjustScore(ctx context.Context, userID int64, delta int) error {
	tag, err := t.tx.Exec(ctx, `UPDATE users SET score = score + $2 WHERE id = $1`, userID, delta)
	if err != nil {
		return storageError(err)
	}
	if tag.RowsAffected() == 0 {
		return service.ErrNotRegistered
	}
	return nil
}

func (t *postgresTx) AdjustVoteCount(ctx context.Context, jokeID int64, delta int) error {
	tag, err := t.tx.Exec(ctx, `UPDATE jokes SET vote_count = vote_count + $2 WHERE id = $1`, jokeID, delta)
	if err != nil {
		return storageError(err)
	}
	if tag.RowsAffected() == 0 {
		return service.ErrJokeNotFound
	}
	return nil
}

func (t *postgresTx) queryJokes(ctx context.Context, query string, args ...any) ([]models.Joke, error) {
	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, storageError(err)
	}
	defer rows.Close()

	var jokes []models.Joke
	for rows.Next() {
		var joke models.Joke
		err := rows.Scan(&joke.ID, &joke.Body, &joke.VoteCount, &joke.AuthorID, &joke.Approved, &joke.CreatedAt)
		if err != nil {
			return nil, storageError(err)
		}
		jokes = append(jokes, joke)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError(err)
	}
	return jokes, nil
}

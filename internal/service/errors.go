package service

import "errors"

// All expected failures are returned as values; the bot layer maps them to
// reply text. ErrStorageUnavailable is the only one that is fatal to a
// request, everything else is a recoverable prompt-again condition.
var (
	ErrNotRegistered     = errors.New("user is not registered")
	ErrAlreadyRegistered = errors.New("user is already registered")
	ErrInvalidCharacters = errors.New("username contains invalid characters")
	ErrTooShort          = errors.New("text is too short")
	ErrTooLong           = errors.New("text is too long")
	ErrSelfVote          = errors.New("voting on own joke")
	ErrDuplicateVote     = errors.New("joke was already voted on")
	ErrNoEligibleJoke    = errors.New("no eligible joke")
	ErrJokeNotFound      = errors.New("joke not found")

	ErrStorageUnavailable = errors.New("storage unavailable")
)

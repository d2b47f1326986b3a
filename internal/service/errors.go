package service

import (
	"errors"

	"cantogame/internal/database"
	"cantogame/internal/repository"
	"cantogame/internal/validation"
)

var (
	ErrDeckNotFound        = errors.New("deck not found")
	ErrEmptyDeck           = errors.New("deck has no words")
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionEnded        = errors.New("session has already ended")
	ErrSessionInProgress   = errors.New("a session on this deck is already in progress")
	ErrUnknownWord         = errors.New("word is not part of this session")
	ErrUserNotFound        = errors.New("user not found")
	ErrForbidden           = errors.New("not allowed to view this user's data")
	ErrConcurrencyConflict = errors.New("session was modified concurrently, retry")
	ErrEmailDisabled       = errors.New("email is not configured")
)

// InProgressError reports the live session that blocked a new start
type InProgressError struct {
	SessionID string
}

func (e *InProgressError) Error() string {
	return ErrSessionInProgress.Error() + ": " + e.SessionID
}

func (e *InProgressError) Is(target error) bool {
	return target == ErrSessionInProgress
}

// Kind groups service errors by how callers should react
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindInvalidState
	KindValidation
	KindForbidden
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidState:
		return "invalid_state"
	case KindValidation:
		return "validation"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	}
	return "internal"
}

// KindOf classifies err
func KindOf(err error) Kind {
	var verr validation.ValidationError
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrDeckNotFound), errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrUnknownWord), errors.Is(err, ErrUserNotFound):
		return KindNotFound
	case errors.Is(err, ErrSessionEnded), errors.Is(err, ErrSessionInProgress):
		return KindInvalidState
	case errors.Is(err, ErrEmptyDeck), errors.As(err, &verr):
		return KindValidation
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrConcurrencyConflict):
		return KindConflict
	}
	return KindInternal
}

// translateStoreError maps repository and database sentinels onto the
// service's own
func translateStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrSessionNotFound):
		return ErrSessionNotFound
	case errors.Is(err, repository.ErrSessionEnded):
		return ErrSessionEnded
	case errors.Is(err, database.ErrConflict):
		return errors.Join(ErrConcurrencyConflict, err)
	}
	return err
}
